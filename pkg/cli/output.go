package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// OutputFormat is the value of a command's --output flag.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatCSV  OutputFormat = "csv"
)

// Table is command output that renders as rows: game lists, audit logs,
// evidence records and seat status.
type Table interface {
	Header() []string
	Rows() [][]string
}

// Formatter writes command output to w.
type Formatter interface {
	FormatTo(w io.Writer, data any) error
}

// FormatterFunc adapts a function to Formatter.
type FormatterFunc func(w io.Writer, data any) error

func (f FormatterFunc) FormatTo(w io.Writer, data any) error { return f(w, data) }

var formatters = map[OutputFormat]Formatter{
	FormatText: &TextFormatter{},
	FormatJSON: FormatterFunc(writeJSON),
	FormatCSV:  FormatterFunc(writeCSV),
}

// ParseOutputFormat validates a --output value. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	if s == "" {
		return FormatText, nil
	}
	f := OutputFormat(strings.ToLower(s))
	if _, ok := formatters[f]; !ok {
		return "", fmt.Errorf("unknown output format %q (valid: text, json, csv)", s)
	}
	return f, nil
}

// NewFormatter returns the formatter for format, falling back to text.
func NewFormatter(format OutputFormat) Formatter {
	if f, ok := formatters[format]; ok {
		return f
	}
	return formatters[FormatText]
}

// TextFormatter aligns tables into columns and prints other values with %v.
type TextFormatter struct{}

func (*TextFormatter) FormatTo(w io.Writer, data any) error {
	t, ok := data.(Table)
	if !ok {
		_, err := fmt.Fprintf(w, "%v\n", data)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, row := range append([][]string{t.Header()}, t.Rows()...) {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func writeCSV(w io.Writer, data any) error {
	t, ok := data.(Table)
	if !ok {
		return fmt.Errorf("csv output needs a table, got %T", data)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return err
	}
	return cw.WriteAll(t.Rows())
}
