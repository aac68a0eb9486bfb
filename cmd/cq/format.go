package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// formatCropText prints the cropped code, newline terminated.
func formatCropText(w io.Writer, c CLICrop) {
	fmt.Fprint(w, c.Code)
	if !strings.HasSuffix(c.Code, "\n") {
		fmt.Fprintln(w)
	}
}

// formatCropsText prints each crop under a header naming its file and
// query. Failed crops print their error instead of code.
func formatCropsText(w io.Writer, crops []CLICrop) {
	for i, c := range crops {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "== %s %s (lines %d-%d)\n", c.File, c.Query, c.StartLine, c.EndLine)
		if c.Error != "" {
			fmt.Fprintf(w, "error: %s\n", c.Error)
			continue
		}
		formatCropText(w, c)
	}
}

// formatNamesText prints one name per line.
func formatNamesText(w io.Writer, names []string) {
	for _, n := range names {
		fmt.Fprintln(w, n)
	}
}

// formatCacheText prints cache statistics as aligned columns.
func formatCacheText(w io.Writer, s CLICacheStats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tCROPS\tREMOVED")
	fmt.Fprintf(tw, "%s\t%d\t%d\n", s.Path, s.Crops, s.Removed)
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	w := io.Writer(os.Stdout)

	switch v := result.Results.(type) {
	case CLICrop:
		formatCropText(w, v)
	case []CLICrop:
		formatCropsText(w, v)
	case []string:
		formatNamesText(w, v)
	case CLICacheStats:
		formatCacheText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
