package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
)

func TestDefaultRoutes(t *testing.T) {
	routes := DefaultRoutes("p1")

	require.Len(t, routes, len(model.Categories))
	for i, r := range routes {
		assert.Equal(t, model.Categories[i], r.Category)
		assert.Equal(t, "p1", r.PrinterID)
	}
}

func TestSetRoute(t *testing.T) {
	printers := []model.Printer{kitchen, bar}
	routes := DefaultRoutes("printerK")

	out, err := SetRoute(routes, printers, model.CategoryCoffee, "printerB")
	require.NoError(t, err)
	id, err := Resolve(model.CategoryCoffee, out, printers)
	require.NoError(t, err)
	assert.Equal(t, "printerB", id)
	assert.Len(t, out, len(routes))
	assert.Equal(t, "printerK", routes[11].PrinterID, "input must not be modified")

	out, err = SetRoute(nil, printers, model.CategoryShots, "printerB")
	require.NoError(t, err)
	assert.Equal(t, []model.Route{{Category: model.CategoryShots, PrinterID: "printerB"}}, out)

	_, err = SetRoute(routes, printers, model.Category("PIZZA"), "printerB")
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = SetRoute(routes, printers, model.CategoryShots, "nope")
	assert.ErrorIs(t, err, ErrPrinterNotFound)
}

func TestReassignDeleted(t *testing.T) {
	routes := AssignDrinks(DefaultRoutes("printerK"), "printerB")

	out := ReassignDeleted(routes, "printerB", []model.Printer{patio, kitchen})
	for _, r := range out {
		assert.Equal(t, "printerK", r.PrinterID, r.Category)
	}

	out = ReassignDeleted(routes, "printerB", []model.Printer{patio})
	for _, r := range out {
		if r.Category.IsDrink() {
			assert.Equal(t, "printerP", r.PrinterID)
		} else {
			assert.Equal(t, "printerK", r.PrinterID)
		}
	}

	out = ReassignDeleted(DefaultRoutes("printerK"), "printerK", nil)
	for _, r := range out {
		assert.Empty(t, r.PrinterID)
	}
}

func TestAssignDrinks(t *testing.T) {
	out := AssignDrinks(DefaultRoutes("printerK"), "printerB")
	for _, r := range out {
		if r.Category.IsDrink() {
			assert.Equal(t, "printerB", r.PrinterID, r.Category)
		} else {
			assert.Equal(t, "printerK", r.PrinterID, r.Category)
		}
	}
}

func TestComplete(t *testing.T) {
	out := Complete([]model.Route{{Category: model.CategoryShots, PrinterID: "printerB"}}, "printerK")

	require.Len(t, out, len(model.Categories))
	assert.Equal(t, model.Route{Category: model.CategoryShots, PrinterID: "printerB"}, out[0])
	for _, r := range out[1:] {
		assert.Equal(t, "printerK", r.PrinterID)
	}
}
