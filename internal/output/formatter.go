// Package output renders user-facing messages, tables, and JSON to stdout.
// Debug output belongs in the logger package; this package is only for
// results the operator asked for.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	successColor  = color.New(color.FgGreen)
	errorColor    = color.New(color.FgRed)
	warnColor     = color.New(color.FgYellow)
	infoColor     = color.New(color.FgCyan)
	degradedColor = color.New(color.FgRed, color.Bold)
)

// stdout is the destination for all output; replaceable for tests.
var stdout io.Writer = os.Stdout

// SetWriter redirects output, returning a restore function.
func SetWriter(w io.Writer) func() {
	prev := stdout
	stdout = w
	return func() { stdout = prev }
}

// JSON outputs data as indented JSON.
func JSON(data interface{}) error {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Table outputs rows as a column-aligned table with a separator line.
func Table(headers []string, rows [][]string) {
	if len(headers) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	line := func(cells []string) {
		parts := make([]string, len(headers))
		for i := range headers {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		fmt.Fprintln(stdout, strings.Join(parts, "  "))
	}

	line(headers)

	sep := make([]string, len(headers))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	fmt.Fprintln(stdout, strings.Join(sep, "  "))

	for _, row := range rows {
		line(row)
	}
}

// Success prints a success message.
func Success(format string, args ...interface{}) {
	_, _ = successColor.Fprintf(stdout, "✓ "+format+"\n", args...)
}

// Error prints an error message.
func Error(format string, args ...interface{}) {
	_, _ = errorColor.Fprintf(stdout, "✗ "+format+"\n", args...)
}

// Warn prints a warning message.
func Warn(format string, args ...interface{}) {
	_, _ = warnColor.Fprintf(stdout, "! "+format+"\n", args...)
}

// Info prints an info message.
func Info(format string, args ...interface{}) {
	_, _ = infoColor.Fprintf(stdout, "→ "+format+"\n", args...)
}

// Degraded prints a highlighted message for certificates needing manual attention.
func Degraded(format string, args ...interface{}) {
	_, _ = degradedColor.Fprintf(stdout, "✗ "+format+"\n", args...)
}

// Print prints a plain message.
func Print(format string, args ...interface{}) {
	fmt.Fprintf(stdout, format+"\n", args...)
}
