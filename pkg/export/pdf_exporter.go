package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets into a basic tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont("Arial", "B", 10)
	colWidth := 190.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			value := row[header]
			pdf.CellFormat(colWidth, 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Letter describes a free-form letter document.
type Letter struct {
	Heading    string
	Subheading string
	Paragraphs []string
	Fields     Dataset
	Closing    string
}

// RenderLetter creates a one-page letter PDF, optionally embedding a small
// field table between the paragraphs and the closing.
func (e *PDFExporter) RenderLetter(letter Letter) ([]byte, error) {
	if letter.Heading == "" {
		return nil, fmt.Errorf("letter requires a heading")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, strings.ToUpper(letter.Heading), "", 1, "C", false, 0, "")
	if letter.Subheading != "" {
		pdf.SetFont("Arial", "I", 11)
		pdf.CellFormat(0, 8, letter.Subheading, "", 1, "C", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 11)
	for _, paragraph := range letter.Paragraphs {
		pdf.MultiCell(0, 6, paragraph, "", "L", false)
		pdf.Ln(3)
	}

	if len(letter.Fields.Headers) == 2 {
		pdf.SetFont("Arial", "", 10)
		for _, row := range letter.Fields.Rows {
			pdf.CellFormat(60, 7, row[letter.Fields.Headers[0]], "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 7, row[letter.Fields.Headers[1]], "", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	if letter.Closing != "" {
		pdf.SetFont("Arial", "", 11)
		pdf.MultiCell(0, 6, letter.Closing, "", "L", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render letter pdf: %w", err)
	}
	return buf.Bytes(), nil
}
