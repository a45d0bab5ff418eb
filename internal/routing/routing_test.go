package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
)

var (
	kitchen = model.Printer{ID: "printerK", Name: "Cocina", IP: "192.168.100.10", IsDefault: true}
	bar     = model.Printer{ID: "printerB", Name: "Barra", IP: "192.168.100.139"}
	patio   = model.Printer{ID: "printerP", Name: "Patio", IP: "192.168.100.140"}
)

func TestResolve(t *testing.T) {
	routes := []model.Route{
		{Category: model.CategoryBurgers, PrinterID: "printerK"},
		{Category: model.CategoryWinesBeers, PrinterID: "printerB"},
		{Category: model.CategoryCoffee, PrinterID: "gone"},
	}
	tests := []struct {
		name     string
		category model.Category
		printers []model.Printer
		want     string
	}{
		{"routed", model.CategoryWinesBeers, []model.Printer{kitchen, bar}, "printerB"},
		{"no route falls back to default", model.CategoryDesserts, []model.Printer{bar, kitchen}, "printerK"},
		{"deleted printer falls back to default", model.CategoryCoffee, []model.Printer{bar, kitchen}, "printerK"},
		{"no default falls back to first", model.CategoryDesserts, []model.Printer{patio, bar}, "printerP"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.category, routes, tt.printers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_NoPrinters(t *testing.T) {
	_, err := Resolve(model.CategoryBurgers, DefaultRoutes("printerK"), nil)
	assert.ErrorIs(t, err, ErrNoPrinters)
}

func TestCashierPrinter(t *testing.T) {
	p, ok := CashierPrinter([]model.Printer{bar, kitchen})
	require.True(t, ok)
	assert.Equal(t, "printerK", p.ID)

	p, ok = CashierPrinter([]model.Printer{bar, patio})
	require.True(t, ok)
	assert.Equal(t, "printerB", p.ID)

	_, ok = CashierPrinter(nil)
	assert.False(t, ok)
}

func TestPartition_Scenario(t *testing.T) {
	items := []model.OrderItem{
		{ID: "1", Name: "Burger", Price: 5000, Quantity: 2, Category: model.CategoryBurgers},
		{ID: "2", Name: "Beer", Price: 1800, Quantity: 3, Category: model.CategoryWinesBeers},
	}
	snap := Snapshot{
		Printers: []model.Printer{kitchen, bar},
		Routes: []model.Route{
			{Category: model.CategoryBurgers, PrinterID: "printerK"},
			{Category: model.CategoryWinesBeers, PrinterID: "printerB"},
		},
	}

	groups, residual := Partition(items, snap)

	assert.Empty(t, residual)
	require.Len(t, groups, 2)
	assert.Equal(t, "printerK", groups[0].PrinterID)
	assert.Equal(t, items[:1], groups[0].Items)
	assert.Equal(t, "printerB", groups[1].PrinterID)
	assert.Equal(t, items[1:], groups[1].Items)
}

func TestPartition_EveryItemExactlyOnce(t *testing.T) {
	var items []model.OrderItem
	for i, c := range model.Categories {
		items = append(items, model.OrderItem{ID: string(c), Name: c.Label(), Price: int64(i), Quantity: 1, Category: c})
	}
	items = append(items, model.OrderItem{ID: "loose", Name: "Sin categoria", Quantity: 1})

	snaps := map[string]Snapshot{
		"all to one": {Printers: []model.Printer{kitchen}, Routes: DefaultRoutes("printerK")},
		"drinks split": {
			Printers: []model.Printer{kitchen, bar},
			Routes:   AssignDrinks(DefaultRoutes("printerK"), "printerB"),
		},
		"partial routes": {
			Printers: []model.Printer{patio, bar},
			Routes:   []model.Route{{Category: model.CategoryShots, PrinterID: "printerB"}},
		},
		"no printers": {Routes: DefaultRoutes("printerK")},
	}
	for name, snap := range snaps {
		t.Run(name, func(t *testing.T) {
			groups, residual := Partition(items, snap)

			seen := map[string]int{}
			for _, g := range groups {
				assert.NotEmpty(t, g.Items)
				for _, it := range g.Items {
					seen[it.ID]++
				}
			}
			for _, it := range residual {
				seen[it.ID]++
			}
			assert.Len(t, seen, len(items))
			for id, n := range seen {
				assert.Equal(t, 1, n, id)
			}
		})
	}
}

func TestPartition_FirstSeenOrder(t *testing.T) {
	snap := Snapshot{
		Printers: []model.Printer{kitchen, bar},
		Routes:   AssignDrinks(DefaultRoutes("printerK"), "printerB"),
	}
	items := []model.OrderItem{
		{ID: "a", Quantity: 1, Category: model.CategoryCocktails},
		{ID: "b", Quantity: 1, Category: model.CategoryBurgers},
		{ID: "c", Quantity: 1, Category: model.CategoryShots},
	}

	groups, _ := Partition(items, snap)

	require.Len(t, groups, 2)
	assert.Equal(t, "printerB", groups[0].PrinterID)
	assert.Equal(t, []string{"a", "c"}, []string{groups[0].Items[0].ID, groups[0].Items[1].ID})
	assert.Equal(t, "printerK", groups[1].PrinterID)
}

func TestSnapshotClone(t *testing.T) {
	snap := Snapshot{Printers: []model.Printer{kitchen}, Routes: DefaultRoutes("printerK")}
	c := snap.Clone()
	c.Printers[0].Name = "changed"
	c.Routes[0].PrinterID = "changed"

	assert.Equal(t, "Cocina", snap.Printers[0].Name)
	assert.Equal(t, "printerK", snap.Routes[0].PrinterID)
}
