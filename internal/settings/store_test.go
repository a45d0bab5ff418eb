package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/routing"
)

func backends(t *testing.T) map[string]func() *Store {
	t.Helper()
	return map[string]func() *Store{
		"memory": func() *Store { return New(NewMemory(), nil) },
		"sqlite": func() *Store {
			db, err := OpenSQLite(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })
			return New(db, nil)
		},
	}
}

func routeOf(routes []model.Route, c model.Category) string {
	for _, r := range routes {
		if r.Category == c {
			return r.PrinterID
		}
	}
	return ""
}

func TestFirstPrinterBecomesDefault(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()

			p, err := s.SavePrinter(ctx, model.Printer{Name: "Caja", IP: "192.168.1.50"})
			require.NoError(t, err)
			assert.NotEmpty(t, p.ID)
			assert.True(t, p.IsDefault)
			assert.Equal(t, DefaultModel, p.Model)
			assert.Equal(t, model.PrinterOnline, p.Status)

			snap, err := s.Snapshot(ctx)
			require.NoError(t, err)
			require.Len(t, snap.Routes, len(model.Categories))
			for _, r := range snap.Routes {
				assert.Equal(t, p.ID, r.PrinterID, r.Category)
			}
		})
	}
}

func TestSavePrinterDedupesByIP(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()

			first, err := s.SavePrinter(ctx, model.Printer{Name: "Caja", IP: "192.168.1.50"})
			require.NoError(t, err)
			again, err := s.SavePrinter(ctx, model.Printer{Name: "Caja nueva", IP: " 192.168.1.50 "})
			require.NoError(t, err)
			assert.Equal(t, first.ID, again.ID)

			printers, err := s.Printers(ctx)
			require.NoError(t, err)
			require.Len(t, printers, 1)
			assert.Equal(t, "Caja nueva", printers[0].Name)
			assert.True(t, printers[0].IsDefault)

			other, err := s.SavePrinter(ctx, model.Printer{Name: "Barra", IP: "192.168.1.51"})
			require.NoError(t, err)
			other.IP = "192.168.1.50"
			_, err = s.SavePrinter(ctx, other)
			assert.ErrorIs(t, err, ErrDuplicateIP)
		})
	}
}

func TestSavePrinterSingleDefault(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()

			_, err := s.SavePrinter(ctx, model.Printer{Name: "Caja", IP: "192.168.1.50"})
			require.NoError(t, err)
			bar, err := s.SavePrinter(ctx, model.Printer{Name: "Barra", IP: "192.168.1.51", IsDefault: true})
			require.NoError(t, err)

			printers, err := s.Printers(ctx)
			require.NoError(t, err)
			defaults := 0
			for _, p := range printers {
				if p.IsDefault {
					defaults++
					assert.Equal(t, bar.ID, p.ID)
				}
			}
			assert.Equal(t, 1, defaults)
		})
	}
}

func TestSavePrinterRejectsBadAddress(t *testing.T) {
	s := New(NewMemory(), nil)
	_, err := s.SavePrinter(context.Background(), model.Printer{Name: "x", IP: "printer.local"})
	assert.ErrorIs(t, err, ErrInvalidPrinter)
	_, err = s.SavePrinter(context.Background(), model.Printer{Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidPrinter)
}

func TestDeletePrinterReassignsRoutes(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()

			caja, err := s.SavePrinter(ctx, model.Printer{Name: "Caja", IP: "192.168.1.50"})
			require.NoError(t, err)
			bar, err := s.SavePrinter(ctx, model.Printer{Name: "Barra", IP: "192.168.1.51"})
			require.NoError(t, err)
			require.NoError(t, s.SetRoute(ctx, model.CategoryCocktails, bar.ID))

			require.NoError(t, s.DeletePrinter(ctx, bar.ID))

			routes, err := s.Routes(ctx)
			require.NoError(t, err)
			assert.Equal(t, caja.ID, routeOf(routes, model.CategoryCocktails))

			assert.ErrorIs(t, s.DeletePrinter(ctx, bar.ID), routing.ErrPrinterNotFound)
		})
	}
}

func TestDeleteDefaultPromotesNext(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemory(), nil)
	caja, err := s.SavePrinter(ctx, model.Printer{Name: "Caja", IP: "192.168.1.50"})
	require.NoError(t, err)
	bar, err := s.SavePrinter(ctx, model.Printer{Name: "Barra", IP: "192.168.1.51"})
	require.NoError(t, err)

	require.NoError(t, s.DeletePrinter(ctx, caja.ID))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Printers, 1)
	assert.True(t, snap.Printers[0].IsDefault)
	for _, r := range snap.Routes {
		assert.Equal(t, bar.ID, r.PrinterID)
	}
}

func TestDeleteLastPrinterLeavesEmptyRoutes(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemory(), nil)
	caja, err := s.SavePrinter(ctx, model.Printer{Name: "Caja", IP: "192.168.1.50"})
	require.NoError(t, err)

	require.NoError(t, s.DeletePrinter(ctx, caja.ID))
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Printers)
	for _, r := range snap.Routes {
		assert.Empty(t, r.PrinterID)
	}

	again, err := s.SavePrinter(ctx, model.Printer{Name: "Nueva", IP: "192.168.1.60"})
	require.NoError(t, err)
	routes, err := s.Routes(ctx)
	require.NoError(t, err)
	assert.Equal(t, again.ID, routeOf(routes, model.CategoryBurgers))
}

func TestSetRouteValidates(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()
			p, err := s.SavePrinter(ctx, model.Printer{Name: "Caja", IP: "192.168.1.50"})
			require.NoError(t, err)

			assert.ErrorIs(t, s.SetRoute(ctx, "PIZZA", p.ID), routing.ErrUnknownCategory)
			assert.ErrorIs(t, s.SetRoute(ctx, model.CategoryCoffee, "nope"), routing.ErrPrinterNotFound)
			require.NoError(t, s.SetRoute(ctx, model.CategoryCoffee, p.ID))
		})
	}
}

func TestAddDiscoveredAssignsDrinks(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()
			caja, err := s.SavePrinter(ctx, model.Printer{Name: "Caja", IP: "192.168.1.50"})
			require.NoError(t, err)

			bar, added, err := s.AddDiscovered(ctx, model.Printer{Name: "Epson Barra", IP: "192.168.1.51"})
			require.NoError(t, err)
			assert.True(t, added)

			routes, err := s.Routes(ctx)
			require.NoError(t, err)
			for _, c := range model.Categories {
				want := caja.ID
				if c.IsDrink() {
					want = bar.ID
				}
				assert.Equal(t, want, routeOf(routes, c), c)
			}

			known, added, err := s.AddDiscovered(ctx, model.Printer{Name: "otra", IP: "192.168.1.51"})
			require.NoError(t, err)
			assert.False(t, added)
			assert.Equal(t, bar.ID, known.ID)
		})
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemory(), nil)
	printers := []model.Printer{
		{ID: "k", Name: "Cocina", IP: "192.168.1.50"},
		{ID: "b", Name: "Barra", IP: "192.168.1.51"},
	}
	routes := []model.Route{{Category: model.CategoryShots, PrinterID: "b"}, {Category: "BOGUS", PrinterID: "b"}}

	require.NoError(t, s.Seed(ctx, printers, routes))
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Printers, 2)
	assert.True(t, snap.Printers[0].IsDefault)
	assert.Len(t, snap.Routes, len(model.Categories))
	assert.Equal(t, "b", routeOf(snap.Routes, model.CategoryShots))
	assert.Equal(t, "k", routeOf(snap.Routes, model.CategoryBurgers))

	// A non-empty store keeps its own settings.
	require.NoError(t, s.Seed(ctx, []model.Printer{{Name: "x", IP: "10.0.0.9"}}, nil))
	again, err := s.Printers(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 2)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "settings.db")

	db, err := OpenSQLite(dsn)
	require.NoError(t, err)
	s := New(db, nil)
	p, err := s.SavePrinter(ctx, model.Printer{Name: "Caja", IP: "192.168.1.50", Status: model.PrinterOffline})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	db, err = OpenSQLite(dsn)
	require.NoError(t, err)
	defer db.Close()
	got, err := New(db, nil).Printer(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemory(), nil)
	_, err := s.SavePrinter(ctx, model.Printer{Name: "Caja", IP: "192.168.1.50"})
	require.NoError(t, err)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	snap.Printers[0].IP = "10.9.9.9"
	snap.Routes[0].PrinterID = "other"

	fresh, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.50", fresh.Printers[0].IP)
	assert.NotEqual(t, "other", fresh.Routes[0].PrinterID)
}

func TestManualPrinter(t *testing.T) {
	p := ManualPrinter("192.168.100.139")
	assert.Equal(t, "Impresora 139", p.Name)
	assert.Equal(t, DefaultModel, p.Model)
	assert.Equal(t, model.PrinterOnline, p.Status)
}
