package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// stdout는 CSV 출력 전용, 사람용 요약은 전부 stderr
// ═══════════════════════════════════════════════════════════

var console io.Writer = os.Stderr

// PrintHeader prints a formatted command header
func PrintHeader(title string, fields [][2]string) {
	fmt.Fprintln(console)
	PrintDoubleSeparator()
	fmt.Fprintf(console, "  %s\n", title)
	PrintSeparator()
	for _, kv := range fields {
		PrintKeyValue(kv[0], kv[1], 10)
	}
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Fprintln(console, "───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Fprintln(console, "═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Fprintf(console, "⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Fprintf(console, "✅ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Fprintln(console, strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Fprintf(console, "%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Fprint(console, "  ")
		}
	}
	fmt.Fprintln(console)
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Fprintf(console, "  %-*s : %s\n", keyWidth, key, value)
}

// openOutput returns the --out file or stdout
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}
