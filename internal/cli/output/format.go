// Package output renders command results as tables, JSON or YAML.
//
// Results go to the data writer; status messages go to a separate writer
// so that commands streaming file contents to stdout stay pipeable.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format represents the output format type.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a string into a Format, returning an error if invalid.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

func (f Format) String() string {
	return string(f)
}

// Printer writes results in one format.
type Printer struct {
	out    io.Writer
	msgs   io.Writer
	format Format
	color  bool
}

// NewPrinter creates a Printer writing results to out and status messages
// to msgs.
func NewPrinter(out, msgs io.Writer, format Format, color bool) *Printer {
	return &Printer{
		out:    out,
		msgs:   msgs,
		format: format,
		color:  color,
	}
}

// DefaultPrinter writes tables to stdout and messages to stderr.
func DefaultPrinter() *Printer {
	return NewPrinter(os.Stdout, os.Stderr, FormatTable, true)
}

func (p *Printer) Format() Format { return p.format }

func (p *Printer) Writer() io.Writer { return p.out }

func (p *Printer) ColorEnabled() bool { return p.color }

// Print outputs data in the configured format. Table output needs a
// TableRenderer; anything else falls back to JSON.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatTable:
		if renderer, ok := data.(TableRenderer); ok {
			return PrintTable(p.out, renderer)
		}
		return PrintJSON(p.out, data)
	case FormatJSON:
		return PrintJSON(p.out, data)
	case FormatYAML:
		return PrintYAML(p.out, data)
	default:
		return fmt.Errorf("unknown format: %s", p.format)
	}
}

// Printf prints a formatted message to the message writer.
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.msgs, format, args...)
}

func (p *Printer) Success(msg string) { p.colored("32", msg) }

func (p *Printer) Warning(msg string) { p.colored("33", msg) }

func (p *Printer) Error(msg string) { p.colored("31", msg) }

func (p *Printer) colored(code, msg string) {
	if p.color {
		_, _ = fmt.Fprintf(p.msgs, "\033[%sm%s\033[0m\n", code, msg)
		return
	}
	_, _ = fmt.Fprintln(p.msgs, msg)
}

// PrintJSON writes data as indented JSON.
func PrintJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// PrintYAML writes data as YAML.
func PrintYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer func() { _ = encoder.Close() }()
	return encoder.Encode(data)
}
