// Package report serializes tabular report data into the requested output
// format. PDF rendering uses fpdf, excel uses excelize; csv and json use the
// standard encoders. Formats the encoder does not know fall back to json.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// Data is one generated report: a title plus a rectangular table.
type Data struct {
	Title   string     `json:"title"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Encode returns the serialized report and the file extension for the
// artifact path. Unsupported formats encode as json.
func Encode(format string, d *Data) ([]byte, string, error) {
	switch format {
	case "csv":
		b, err := encodeCSV(d)
		return b, "csv", err
	case "pdf":
		b, err := encodePDF(d)
		return b, "pdf", err
	case "excel":
		b, err := encodeExcel(d)
		return b, "xlsx", err
	case "json":
		b, err := encodeJSON(d)
		return b, "json", err
	default:
		b, err := encodeJSON(d)
		return b, "json", err
	}
}

func encodeJSON(d *Data) ([]byte, error) {
	b, err := json.MarshalIndent(d, "", "  ")
	return b, errors.Wrap(err, "encode json report")
}

func encodeCSV(d *Data) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(d.Headers); err != nil {
		return nil, errors.Wrap(err, "write csv header")
	}
	for _, row := range d.Rows {
		if err := w.Write(row); err != nil {
			return nil, errors.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return buf.Bytes(), errors.Wrap(w.Error(), "flush csv")
}

func encodePDF(d *Data) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, d.Title, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	colWidth := 277.0
	if len(d.Headers) > 0 {
		colWidth = 277.0 / float64(len(d.Headers))
	}

	pdf.SetFont("Arial", "B", 9)
	for _, h := range d.Headers {
		pdf.CellFormat(colWidth, 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range d.Rows {
		for _, cell := range row {
			pdf.CellFormat(colWidth, 6, cell, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "render pdf report")
	}
	return buf.Bytes(), nil
}

func encodeExcel(d *Data) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Sheet1"
	for i, h := range d.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for r, row := range d.Rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "write xlsx report")
	}
	return buf.Bytes(), nil
}
