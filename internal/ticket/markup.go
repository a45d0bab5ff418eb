package ticket

import (
	"strconv"
	"strings"
	"unicode"
)

// Namespaces required by the ePOS-Print firmware.
const (
	EnvelopeNamespace  = "http://schemas.xmlsoap.org/soap/envelope/"
	EposPrintNamespace = "http://www.epson-pos.com/schemas/2011/03/epos-print"
)

type align string

const (
	alignLeft   align = "left"
	alignCenter align = "center"
	alignRight  align = "right"
)

type font string

const (
	fontA font = "font_a"
	fontB font = "font_b"
)

// style holds the attributes of a <text> directive. Zero values are omitted.
type style struct {
	align  align
	font   font
	smooth bool
	dw     bool
	dh     bool
}

var (
	plain    = style{align: alignLeft}
	centered = style{align: alignCenter}
	banner   = style{align: alignCenter, font: fontA, smooth: true, dw: true, dh: true}
	emphasis = style{align: alignLeft, font: fontB, dw: true, dh: true}
	subtitle = style{align: alignCenter, font: fontB}
	grand    = style{align: alignRight, font: fontA, dw: true, dh: true}
)

const rule = "------------------------------------------"

// document accumulates print directives in firmware order.
type document struct {
	b strings.Builder
}

func (d *document) lang() {
	d.b.WriteString(`<text lang="en"/>` + "\n")
}

// text writes one line. The caller sanitizes s.
func (d *document) text(st style, s string) {
	d.b.WriteString("<text")
	if st.align != "" {
		d.b.WriteString(` align="` + string(st.align) + `"`)
	}
	if st.font != "" {
		d.b.WriteString(` font="` + string(st.font) + `"`)
	}
	if st.smooth {
		d.b.WriteString(` smooth="true"`)
	}
	if st.dw {
		d.b.WriteString(` dw="true"`)
	}
	if st.dh {
		d.b.WriteString(` dh="true"`)
	}
	d.b.WriteString(">")
	d.b.WriteString(s)
	d.b.WriteString("&#10;</text>\n")
}

func (d *document) feed(lines int) {
	d.b.WriteString(`<feed line="` + strconv.Itoa(lines) + `"/>` + "\n")
}

func (d *document) cut() {
	d.b.WriteString(`<cut type="feed"/>` + "\n")
}

// envelope wraps the directives in the SOAP request the printer accepts.
func (d *document) envelope() string {
	var out strings.Builder
	out.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	out.WriteString(`<s:Envelope xmlns:s="` + EnvelopeNamespace + `">` + "\n")
	out.WriteString("<s:Body>\n")
	out.WriteString(`<epos-print xmlns="` + EposPrintNamespace + `">` + "\n")
	out.WriteString(d.b.String())
	out.WriteString("</epos-print>\n")
	out.WriteString("</s:Body>\n")
	out.WriteString("</s:Envelope>\n")
	return out.String()
}

// Sanitize drops characters that would break the markup. Text is stripped, not escaped.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '&', '\'', '"':
			return -1
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, s)
}

// fit truncates s to max runes and pads it with spaces to width runes.
func fit(s string, max, width int) string {
	r := []rune(s)
	if len(r) > max {
		r = r[:max]
	}
	out := string(r)
	if n := width - len(r); n > 0 {
		out += strings.Repeat(" ", n)
	}
	return out
}
