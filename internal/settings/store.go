// Package settings keeps the printer list and the category routes of the terminal.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/google/uuid"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/routing"
)

const DefaultModel = "Epson TM-T20III"

var (
	ErrInvalidPrinter = errors.New("invalid printer")
	ErrDuplicateIP    = errors.New("another printer already uses this address")
)

// Backend persists the settings as a whole snapshot. Update must apply fn atomically.
type Backend interface {
	Load(ctx context.Context) (routing.Snapshot, error)
	Update(ctx context.Context, fn func(routing.Snapshot) (routing.Snapshot, error)) error
	Close() error
}

// Store applies the settings workflow on top of a backend.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

func New(b Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: b, logger: logger}
}

// Snapshot returns a copy that later edits do not touch.
func (s *Store) Snapshot(ctx context.Context) (routing.Snapshot, error) {
	snap, err := s.backend.Load(ctx)
	if err != nil {
		return routing.Snapshot{}, fmt.Errorf("load settings: %w", err)
	}
	return snap.Clone(), nil
}

func (s *Store) Printers(ctx context.Context) ([]model.Printer, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Printers, nil
}

func (s *Store) Printer(ctx context.Context, id string) (model.Printer, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return model.Printer{}, err
	}
	p, ok := model.FindPrinter(snap.Printers, id)
	if !ok {
		return model.Printer{}, fmt.Errorf("printer %s: %w", id, routing.ErrPrinterNotFound)
	}
	return p, nil
}

func (s *Store) Routes(ctx context.Context) ([]model.Route, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Routes, nil
}

// Seed loads printers and routes from the config file when the store is empty.
func (s *Store) Seed(ctx context.Context, printers []model.Printer, routes []model.Route) error {
	return s.backend.Update(ctx, func(snap routing.Snapshot) (routing.Snapshot, error) {
		if len(snap.Printers) > 0 || len(printers) == 0 {
			return snap, nil
		}
		var seeded routing.Snapshot
		for _, p := range printers {
			var err error
			if seeded, _, err = savePrinter(seeded, p); err != nil {
				return snap, fmt.Errorf("seed printer %s: %w", p.Name, err)
			}
		}
		seeded.Routes = append([]model.Route(nil), routes...)
		seeded = normalize(seeded)
		s.logger.Info("printer settings seeded", "printers", len(seeded.Printers))
		return seeded, nil
	})
}

// SavePrinter adds a printer or updates the one with the same id or, when no id is
// given, the same address. The first printer becomes the default and receives every
// route.
func (s *Store) SavePrinter(ctx context.Context, p model.Printer) (model.Printer, error) {
	var saved model.Printer
	err := s.backend.Update(ctx, func(snap routing.Snapshot) (routing.Snapshot, error) {
		next, out, err := savePrinter(snap, p)
		saved = out
		return next, err
	})
	if err != nil {
		return model.Printer{}, err
	}
	s.logger.Info("printer saved", "printer_id", saved.ID, "printer", saved.Name, "ip", saved.IP)
	return saved, nil
}

// AddDiscovered adds a printer found on the network unless its address is already
// known. New printers take over the drink categories. The bool reports whether the
// printer was added.
func (s *Store) AddDiscovered(ctx context.Context, p model.Printer) (model.Printer, bool, error) {
	var (
		saved model.Printer
		added bool
	)
	err := s.backend.Update(ctx, func(snap routing.Snapshot) (routing.Snapshot, error) {
		for _, existing := range snap.Printers {
			if existing.IP == strings.TrimSpace(p.IP) {
				saved = existing
				return snap, nil
			}
		}
		p.ID = ""
		next, out, err := savePrinter(snap, p)
		if err != nil {
			return snap, err
		}
		next.Routes = routing.AssignDrinks(next.Routes, out.ID)
		saved, added = out, true
		return next, nil
	})
	if err != nil {
		return model.Printer{}, false, err
	}
	if added {
		s.logger.Info("discovered printer added", "printer_id", saved.ID, "ip", saved.IP)
	}
	return saved, added, nil
}

// DeletePrinter removes a printer. Its routes move to the default printer, or the first
// remaining one.
func (s *Store) DeletePrinter(ctx context.Context, id string) error {
	err := s.backend.Update(ctx, func(snap routing.Snapshot) (routing.Snapshot, error) {
		return deletePrinter(snap, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("printer deleted", "printer_id", id)
	return nil
}

// SetRoute sends a category to a printer.
func (s *Store) SetRoute(ctx context.Context, category model.Category, printerID string) error {
	return s.backend.Update(ctx, func(snap routing.Snapshot) (routing.Snapshot, error) {
		routes, err := routing.SetRoute(snap.Routes, snap.Printers, category, printerID)
		if err != nil {
			return snap, err
		}
		snap.Routes = routes
		return snap, nil
	})
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// ManualPrinter fills in the defaults of a printer added by address only.
func ManualPrinter(ip string) model.Printer {
	ip = strings.TrimSpace(ip)
	name := ip
	if i := strings.LastIndex(ip, "."); i >= 0 {
		name = ip[i+1:]
	}
	return model.Printer{
		Name:   "Impresora " + name,
		IP:     ip,
		Model:  DefaultModel,
		Status: model.PrinterOnline,
	}
}

func savePrinter(snap routing.Snapshot, p model.Printer) (routing.Snapshot, model.Printer, error) {
	p.IP = strings.TrimSpace(p.IP)
	p.Name = strings.TrimSpace(p.Name)
	if _, err := netip.ParseAddr(p.IP); err != nil {
		return snap, model.Printer{}, fmt.Errorf("%w: address %q", ErrInvalidPrinter, p.IP)
	}
	defaults := ManualPrinter(p.IP)
	if p.Name == "" {
		p.Name = defaults.Name
	}
	if p.Model == "" {
		p.Model = defaults.Model
	}
	if p.Status == "" {
		p.Status = defaults.Status
	}

	snap = snap.Clone()
	idx := -1
	for i, existing := range snap.Printers {
		switch {
		case p.ID != "" && existing.ID == p.ID:
			idx = i
		case existing.IP == p.IP && p.ID != "" && existing.ID != p.ID:
			return snap, model.Printer{}, fmt.Errorf("%w: %s", ErrDuplicateIP, p.IP)
		case existing.IP == p.IP && p.ID == "":
			p.ID = existing.ID
			idx = i
		}
	}

	if idx >= 0 {
		snap.Printers[idx] = p
	} else {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if len(snap.Printers) == 0 {
			p.IsDefault = true
		}
		snap.Printers = append(snap.Printers, p)
	}
	if p.IsDefault {
		for i := range snap.Printers {
			snap.Printers[i].IsDefault = snap.Printers[i].ID == p.ID
		}
	}
	return normalize(snap), p, nil
}

func deletePrinter(snap routing.Snapshot, id string) (routing.Snapshot, error) {
	snap = snap.Clone()
	idx := -1
	for i, p := range snap.Printers {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return snap, fmt.Errorf("delete printer %s: %w", id, routing.ErrPrinterNotFound)
	}
	snap.Printers = append(snap.Printers[:idx], snap.Printers[idx+1:]...)
	snap = normalize(snap)
	snap.Routes = routing.ReassignDeleted(snap.Routes, id, snap.Printers)
	return snap, nil
}

// normalize keeps exactly one default printer and one route per category, pointing
// dangling routes at the cashier printer. Without printers the routes are left alone.
func normalize(snap routing.Snapshot) routing.Snapshot {
	if len(snap.Printers) == 0 {
		return snap
	}
	seen := false
	for i := range snap.Printers {
		if snap.Printers[i].IsDefault {
			if seen {
				snap.Printers[i].IsDefault = false
			}
			seen = true
		}
	}
	if !seen {
		snap.Printers[0].IsDefault = true
	}

	cashier, _ := routing.CashierPrinter(snap.Printers)
	routes := make([]model.Route, 0, len(model.Categories))
	have := make(map[model.Category]bool, len(snap.Routes))
	for _, r := range snap.Routes {
		if !r.Category.Valid() || have[r.Category] {
			continue
		}
		have[r.Category] = true
		if _, ok := model.FindPrinter(snap.Printers, r.PrinterID); !ok {
			r.PrinterID = cashier.ID
		}
		routes = append(routes, r)
	}
	snap.Routes = routing.Complete(routes, cashier.ID)
	return snap
}
