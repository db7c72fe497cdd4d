// Package serializer formats run reports, probe results, and rendered
// documents for stdout or files.
package serializer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the output encoding.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// StdoutPath is the special output path meaning "write to stdout".
const StdoutPath = "-"

// IsUnknown reports whether the format is not one of the supported values.
func (f Format) IsUnknown() bool {
	switch f {
	case FormatYAML, FormatJSON, FormatTable:
		return false
	}
	return true
}

// Writer serializes values in a fixed format to an io.Writer.
type Writer struct {
	format Format
	out    io.Writer
	closer io.Closer
}

// NewWriter returns a writer for the given format and destination.
func NewWriter(format Format, out io.Writer) *Writer {
	return &Writer{format: format, out: out}
}

// NewStdoutWriter returns a writer targeting stdout.
func NewStdoutWriter(format Format) *Writer {
	return NewWriter(format, os.Stdout)
}

// NewFileWriterOrStdout returns a writer for the given path, or a stdout
// writer when the path is empty or "-".
func NewFileWriterOrStdout(format Format, path string) (*Writer, error) {
	if strings.TrimSpace(path) == "" || path == StdoutPath {
		return NewStdoutWriter(format), nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %q: %w", path, err)
	}

	w := NewWriter(format, f)
	w.closer = f
	return w, nil
}

// Serialize writes the value in the configured format.
func (w *Writer) Serialize(v any) error {
	switch w.format {
	case FormatYAML:
		enc := yaml.NewEncoder(w.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to serialize to yaml: %w", err)
		}
		return enc.Close()
	case FormatTable:
		return writeTable(w.out, v)
	default:
		enc := json.NewEncoder(w.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to serialize to json: %w", err)
		}
		return nil
	}
}

// Close releases the underlying file, if any. Safe to call repeatedly and
// on stdout-backed writers.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	c := w.closer
	w.closer = nil
	return c.Close()
}
