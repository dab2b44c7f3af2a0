// Package cli provides the command-line interface for the pattern scanner.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/scoring"
	"pattern-scanner/internal/errors"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	format       string
	colorEnabled bool
}

// NewOutput creates a new Output instance. --json wins over --format.
func NewOutput(cmd *cobra.Command) *Output {
	format, _ := cmd.Flags().GetString("format")
	if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
		format = FormatJSON
	}
	if format == "" {
		format = FormatTable
	}
	return &Output{
		writer:       cmd.OutOrStdout(),
		format:       format,
		colorEnabled: format == FormatTable && !color.NoColor,
	}
}

// ValidateFormat rejects unknown --format values.
func ValidateFormat(format string) error {
	switch format {
	case "", FormatTable, FormatJSON, FormatYAML:
		return nil
	}
	return errors.NewValidationError("format", format, "must be table, json or yaml")
}

// IsStructured reports whether output is JSON or YAML rather than a table.
func (o *Output) IsStructured() bool {
	return o.format == FormatJSON || o.format == FormatYAML
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// YAML outputs data as YAML.
func (o *Output) YAML(data interface{}) error {
	encoder := yaml.NewEncoder(o.writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}

// Structured writes data in the selected machine-readable format.
func (o *Output) Structured(data interface{}) error {
	if o.format == FormatYAML {
		return o.YAML(data)
	}
	return o.JSON(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.line(format, args, color.FgGreen)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.line(format, args, color.FgRed)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.line(format, args, color.FgYellow)
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.line(format, args, color.FgCyan)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	o.line(format, args, color.Bold)
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	o.line(format, args, color.Faint)
}

func (o *Output) line(format string, args []interface{}, attrs ...color.Attribute) {
	fmt.Fprintln(o.writer, o.paint(fmt.Sprintf(format, args...), attrs...))
}

// paint wraps text in the escape codes for attrs when colour is enabled.
func (o *Output) paint(text string, attrs ...color.Attribute) string {
	if !o.colorEnabled {
		return text
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(text)
}

// Green returns green colored text.
func (o *Output) Green(text string) string {
	return o.paint(text, color.FgGreen)
}

// Red returns red colored text.
func (o *Output) Red(text string) string {
	return o.paint(text, color.FgRed)
}

// Yellow returns yellow colored text.
func (o *Output) Yellow(text string) string {
	return o.paint(text, color.FgYellow)
}

// DimText returns dimmed text.
func (o *Output) DimText(text string) string {
	return o.paint(text, color.Faint)
}

// Grade returns the grade label coloured by quality.
func (o *Output) Grade(g scoring.Grade) string {
	switch g {
	case scoring.GradeAPlus:
		return o.paint(string(g), color.FgGreen, color.Bold)
	case scoring.GradeA:
		return o.paint(string(g), color.FgGreen)
	case scoring.GradeB:
		return o.paint(string(g), color.FgCyan)
	case scoring.GradeC:
		return o.paint(string(g), color.FgYellow)
	default:
		return o.paint(string(g), color.FgRed)
	}
}

// Bias returns the bias label coloured by direction.
func (o *Output) Bias(b analysis.PatternDirection) string {
	switch b {
	case analysis.PatternBullish:
		return o.Green(string(b))
	case analysis.PatternBearish:
		return o.Red(string(b))
	default:
		return o.Yellow(string(b))
	}
}

// Table represents a simple table for output.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{
		headers: headers,
		rows:    make([][]string, 0),
		output:  output,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visibleLen(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && visibleLen(cell) > widths[i] {
				widths[i] = visibleLen(cell)
			}
		}
	}

	t.printRow(t.headers, widths, true)
	t.printSeparator(widths)
	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, isHeader bool) {
	var parts []string
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		padding := widths[i] - visibleLen(cell)
		if padding < 0 {
			padding = 0
		}
		padded := cell + strings.Repeat(" ", padding)
		if isHeader {
			padded = t.output.paint(padded, color.Bold)
		}
		parts = append(parts, padded)
	}
	t.output.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
}

func (t *Table) printSeparator(widths []int) {
	var parts []string
	for _, w := range widths {
		parts = append(parts, strings.Repeat("─", w))
	}
	t.output.Println(t.output.DimText(strings.Join(parts, "──")))
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripANSI removes ANSI escape codes from a string.
func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// visibleLen counts runes after stripping escape codes.
func visibleLen(s string) int {
	return len([]rune(stripANSI(s)))
}
