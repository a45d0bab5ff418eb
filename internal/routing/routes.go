package routing

import (
	"fmt"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
)

// DefaultRoutes sends every category to one printer.
func DefaultRoutes(printerID string) []model.Route {
	routes := make([]model.Route, 0, len(model.Categories))
	for _, c := range model.Categories {
		routes = append(routes, model.Route{Category: c, PrinterID: printerID})
	}
	return routes
}

// SetRoute points category at printerID, adding the route when it is missing.
func SetRoute(routes []model.Route, printers []model.Printer, category model.Category, printerID string) ([]model.Route, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("set route %q: %w", category, ErrUnknownCategory)
	}
	if _, ok := model.FindPrinter(printers, printerID); !ok {
		return nil, fmt.Errorf("set route %s -> %s: %w", category, printerID, ErrPrinterNotFound)
	}
	out := make([]model.Route, 0, len(routes)+1)
	found := false
	for _, r := range routes {
		if r.Category == category {
			if found {
				continue
			}
			r.PrinterID = printerID
			found = true
		}
		out = append(out, r)
	}
	if !found {
		out = append(out, model.Route{Category: category, PrinterID: printerID})
	}
	return out, nil
}

// ReassignDeleted moves routes that pointed at a deleted printer to the cashier printer of
// the remaining ones. With no printers left the routes keep an empty printer id and
// resolve to nothing until a printer is added.
func ReassignDeleted(routes []model.Route, deletedID string, remaining []model.Printer) []model.Route {
	target := ""
	if p, ok := CashierPrinter(remaining); ok {
		target = p.ID
	}
	out := make([]model.Route, len(routes))
	for i, r := range routes {
		if r.PrinterID == deletedID {
			r.PrinterID = target
		}
		out[i] = r
	}
	return out
}

// AssignDrinks routes every drink category to printerID. Used when a bar printer is
// discovered.
func AssignDrinks(routes []model.Route, printerID string) []model.Route {
	out := make([]model.Route, len(routes))
	for i, r := range routes {
		if r.Category.IsDrink() {
			r.PrinterID = printerID
		}
		out[i] = r
	}
	return out
}

// Complete adds a route to fallback for every category that has none.
func Complete(routes []model.Route, fallback string) []model.Route {
	seen := make(map[model.Category]bool, len(routes))
	out := append([]model.Route(nil), routes...)
	for _, r := range routes {
		seen[r.Category] = true
	}
	for _, c := range model.Categories {
		if !seen[c] {
			out = append(out, model.Route{Category: c, PrinterID: fallback})
		}
	}
	return out
}
