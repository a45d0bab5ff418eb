// Package routing decides which printer receives which part of an order.
package routing

import (
	"errors"
	"fmt"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
)

var (
	ErrNoPrinters      = errors.New("no printers configured")
	ErrPrinterNotFound = errors.New("printer not found")
	ErrUnknownCategory = errors.New("unknown category")
)

// Snapshot is the routing configuration read once at the start of a checkout.
type Snapshot struct {
	Printers []model.Printer `json:"printers"`
	Routes   []model.Route   `json:"routes"`
}

// Clone copies both slices so later settings edits cannot leak into a running checkout.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Printers: append([]model.Printer(nil), s.Printers...),
		Routes:   append([]model.Route(nil), s.Routes...),
	}
}

// CashierPrinter is the default printer, or the first one when none is flagged.
func CashierPrinter(printers []model.Printer) (model.Printer, bool) {
	for _, p := range printers {
		if p.IsDefault {
			return p, true
		}
	}
	if len(printers) > 0 {
		return printers[0], true
	}
	return model.Printer{}, false
}

// Resolve returns the printer id for a category. A missing route, or a route to a
// printer that no longer exists, falls back to the cashier printer.
func Resolve(category model.Category, routes []model.Route, printers []model.Printer) (string, error) {
	for _, r := range routes {
		if r.Category != category {
			continue
		}
		if _, ok := model.FindPrinter(printers, r.PrinterID); ok {
			return r.PrinterID, nil
		}
		break
	}
	p, ok := CashierPrinter(printers)
	if !ok {
		return "", fmt.Errorf("resolve %s: %w", category, ErrNoPrinters)
	}
	return p.ID, nil
}

// Group is the set of items bound for one printer.
type Group struct {
	PrinterID string
	Items     []model.OrderItem
}

// Partition splits items by destination. Groups keep the order in which their
// destination was first seen. Items without a category or without any printer to go to
// end up in residual, so every item lands in exactly one place.
func Partition(items []model.OrderItem, snap Snapshot) (groups []Group, residual []model.OrderItem) {
	index := make(map[string]int)
	for _, it := range items {
		if it.Category == "" {
			residual = append(residual, it)
			continue
		}
		id, err := Resolve(it.Category, snap.Routes, snap.Printers)
		if err != nil {
			residual = append(residual, it)
			continue
		}
		i, ok := index[id]
		if !ok {
			i = len(groups)
			index[id] = i
			groups = append(groups, Group{PrinterID: id})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	return groups, residual
}
