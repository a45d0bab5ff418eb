package ticket

import (
	"fmt"
	"time"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
)

const (
	DefaultHeader   = "REFUGIO POS"
	DefaultFooter   = "Gracias por su visita!"
	DefaultCurrency = "C"

	StationKitchen = "COCINA"
	StationBar     = "BARRA"
	receiptTitle   = "FACTURA"

	timeLayout = "15:04:05"
)

// Meta identifies the order a ticket belongs to.
type Meta struct {
	TableLabel string
	OrderID    string
	Timestamp  time.Time
}

// Encoder turns order items into ePOS-Print XML. It holds no state and is safe for
// concurrent use.
type Encoder struct {
	Header   string
	Footer   string
	Currency string
}

func NewEncoder() Encoder {
	return Encoder{Header: DefaultHeader, Footer: DefaultFooter, Currency: DefaultCurrency}
}

// Encode renders items as a kitchen or receipt ticket. It never fails: empty item lists
// produce a ticket without item lines and bad characters are dropped.
func (e Encoder) Encode(items []model.OrderItem, meta Meta, kind model.TicketKind) string {
	var d document
	title := receiptTitle
	if kind != model.TicketReceipt {
		title = Station(items)
	}
	e.header(&d, title, meta)

	if kind == model.TicketReceipt {
		e.receiptBody(&d, items)
	} else {
		kitchenBody(&d, items)
	}

	d.feed(3)
	d.cut()
	return d.envelope()
}

// Station labels a kitchen ticket: the bar gets it when every item is a drink.
func Station(items []model.OrderItem) string {
	if len(items) == 0 {
		return StationKitchen
	}
	for _, it := range items {
		if !it.Category.IsDrink() {
			return StationKitchen
		}
	}
	return StationBar
}

func (e Encoder) header(d *document, title string, meta Meta) {
	d.lang()
	d.text(banner, Sanitize(e.Header))
	d.text(subtitle, title)
	d.text(centered, rule)
	d.text(plain, "Mesa: "+Sanitize(meta.TableLabel))
	d.text(plain, "Orden: #"+Sanitize(meta.OrderID))
	d.text(plain, "Hora: "+meta.Timestamp.Format(timeLayout))
	d.feed(1)
}

func (e Encoder) receiptBody(d *document, items []model.OrderItem) {
	d.text(plain, "Cant.  Desc.                 Total")
	d.text(plain, rule)
	var total int64
	for _, it := range items {
		line := it.LineTotal()
		total += line
		d.text(plain, fmt.Sprintf("%-4d %s %d", it.Quantity, fit(Sanitize(it.Name), 18, 20), line))
	}
	d.feed(1)
	d.text(centered, rule)
	d.text(grand, fmt.Sprintf("TOTAL: %s%d", Sanitize(e.Currency), total))
	d.feed(2)
	d.text(centered, Sanitize(e.Footer))
}

// kitchenBody lists quantities and names only; prices never reach the kitchen.
func kitchenBody(d *document, items []model.OrderItem) {
	for _, it := range items {
		d.text(emphasis, fmt.Sprintf("[ ] %dx %s", it.Quantity, Sanitize(it.Name)))
	}
	d.feed(1)
	d.text(centered, rule)
}

// EncodeTest renders the connection test ticket printed from the settings screen.
func (e Encoder) EncodeTest(p model.Printer, ts time.Time) string {
	var d document
	d.lang()
	d.text(banner, Sanitize(e.Header))
	d.text(centered, "Prueba de Conexion")
	d.text(centered, rule)
	d.feed(1)
	d.text(plain, "Impresora: "+Sanitize(p.Name))
	d.text(plain, "IP: "+Sanitize(p.IP))
	d.text(plain, "Hora: "+ts.Format(timeLayout))
	d.text(plain, "Estado: OK")
	d.feed(2)
	d.text(centered, "Conexion Exitosa!")
	d.feed(3)
	d.cut()
	return d.envelope()
}
