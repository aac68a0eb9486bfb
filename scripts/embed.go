// Package scripts embeds the operator scripts bundled with cq. The cq command
// loads them unless --operators points somewhere else.
//
//   - head(Q, n): the first n lines of Q.
//   - tail(Q, n): the last n lines of Q.
//   - body(Q): Q without its first and last lines, the inside of a block.
package scripts

import "embed"

// FS holds the bundled *.risor operators.
//
//go:embed *.risor
var FS embed.FS
