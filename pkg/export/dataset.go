package export

import (
	"fmt"
	"strings"
)

// Format is an output encoding for tabular reports.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat accepts csv or pdf, case-insensitively. Empty input means csv.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv"
}

// Column describes one table column. Numeric columns are right aligned in PDFs.
type Column struct {
	Key     string
	Label   string
	Numeric bool
}

// Dataset is the tabular content of an export. Totals are printed below the table in PDFs and as trailing rows in CSVs.
type Dataset struct {
	Title   string
	Columns []Column
	Rows    []map[string]string
	Totals  [][2]string
}

func (d Dataset) labels() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Label
		if out[i] == "" {
			out[i] = c.Key
		}
	}
	return out
}

// Renderer encodes a dataset.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
}

// Render encodes data in the requested format.
func Render(format Format, data Dataset) ([]byte, error) {
	var r Renderer
	switch format {
	case FormatPDF:
		r = NewPDFExporter()
	case FormatCSV:
		r = NewCSVExporter()
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	return r.Render(data)
}
