// Package fallback renders the order as a printable document for the operator when the
// network printers could not be reached.
package fallback

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/ticket"
)

//go:embed templates/*.html
var templates embed.FS

var (
	// ErrRendererUnavailable is returned when a format cannot be produced on this machine.
	ErrRendererUnavailable = errors.New("fallback renderer unavailable")
	ErrUnsupportedFormat   = errors.New("unsupported fallback format")
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatPNG  Format = "png"
	FormatHTML Format = "html"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatPDF, FormatPNG, FormatHTML:
		return f, nil
	case "":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnsupportedFormat, s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/pdf"
	}
}

// Line is one receipt row.
type Line struct {
	Quantity int
	Name     string
	Total    int64
}

// Document carries the same content as the RECEIPT ticket.
type Document struct {
	Header     string
	Footer     string
	Currency   string
	TableLabel string
	OrderID    string
	PrintedAt  time.Time
	Lines      []Line
	Total      int64
}

func NewDocument(enc ticket.Encoder, order model.Order, at time.Time) Document {
	doc := Document{
		Header:     enc.Header,
		Footer:     enc.Footer,
		Currency:   enc.Currency,
		TableLabel: order.TableLabel,
		OrderID:    order.ID,
		PrintedAt:  at,
	}
	for _, it := range order.ActiveItems() {
		doc.Lines = append(doc.Lines, Line{Quantity: it.Quantity, Name: it.Name, Total: it.LineTotal()})
		doc.Total += it.LineTotal()
	}
	return doc
}

// Helper functions for the receipt template.
var templateFuncs = template.FuncMap{
	"formatMoney": func(currency string, amount int64) string {
		return fmt.Sprintf("%s%d", currency, amount)
	},
	"formatDate": func(t time.Time) string {
		return t.Format("02/01/2006 15:04")
	},
}

var receiptTemplate = template.Must(
	template.New("receipt.html").Funcs(templateFuncs).ParseFS(templates, "templates/receipt.html"),
)

// RenderHTML renders the receipt page. html/template escapes the free text.
func RenderHTML(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}
