// Package textpos provides offset arithmetic over raw source text: newline
// search, moving an offset by whole lines, line numbering and indentation
// removal. All offsets are byte offsets.
package textpos

import "strings"

// NextNewline returns the first offset >= start holding '\n', or len(text)
// when there is none.
func NextNewline(text string, start int) int {
	if start < 0 {
		start = 0
	}
	if start >= len(text) {
		return len(text)
	}
	if i := strings.IndexByte(text[start:], '\n'); i >= 0 {
		return start + i
	}
	return len(text)
}

// MoveByLines moves pos by n whole lines. A negative n walks backward
// counting the newlines crossed, a positive n walks forward. trimNewline
// drops the boundary newline from the result: backward it steps past the
// newline that precedes the first line, forward it stops before the newline
// that ends the last line. n == 0 returns pos unchanged.
//
// A walk that runs into either end of text stops there and trims nothing.
// The result is clamped to [0, len(text)].
func MoveByLines(text string, n, pos int, trimNewline bool) int {
	switch {
	case n < 0:
		remaining := -n
		pos--
		for pos > 0 && remaining > 0 {
			pos--
			if text[pos] == '\n' {
				remaining--
			}
		}
		if trimNewline && pos >= 0 && pos < len(text) && text[pos] == '\n' {
			pos++
		}
	case n > 0:
		remaining := n
		pos++
		for pos < len(text) && remaining > 0 {
			if text[pos] == '\n' {
				remaining--
			}
			pos++
		}
		if trimNewline && pos > 0 && pos <= len(text) && text[pos-1] == '\n' {
			pos--
		}
	default:
		return pos
	}
	return clamp(pos, 0, len(text))
}

// LineOf returns the 1-based line number containing offset idx.
func LineOf(text string, idx int) int {
	idx = clamp(idx, 0, len(text))
	return strings.Count(text[:idx], "\n") + 1
}

// Undent removes the smallest common leading indentation from every line.
// Blank lines take part in the minimum, so a fully empty line anywhere in
// text leaves it unchanged.
func Undent(text string) string {
	lines := strings.Split(text, "\n")
	minIndent := -1
	for _, line := range lines {
		n := indentWidth(line)
		if minIndent < 0 || n < minIndent {
			minIndent = n
		}
	}
	if minIndent <= 0 {
		return text
	}
	for i, line := range lines {
		lines[i] = line[minIndent:]
	}
	return strings.Join(lines, "\n")
}

func indentWidth(line string) int {
	n := 0
	for n < len(line) && isIndent(line[n]) {
		n++
	}
	return n
}

func isIndent(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\v', '\f':
		return true
	}
	return false
}

// IsSpace reports whether c is whitespace for range trimming purposes:
// space, tab, carriage return or newline.
func IsSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
