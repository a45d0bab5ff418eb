// Package checkout fans a finished order out to the kitchen, bar and cashier printers.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/printer"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/routing"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/ticket"
)

const (
	DefaultParallelism = 4

	cashierLabel     = "Caja"
	msgNoPrinters    = "no hay impresoras configuradas"
	msgNoDestination = "articulos sin impresora de destino"

	instrumentation = "github.com/Riboost-Studio/refugio-pos-printing/internal/checkout"
)

// Coordinator runs one checkout: partition, encode, send, aggregate.
type Coordinator struct {
	encoder   ticket.Encoder
	transport printer.Transport
	logger    *slog.Logger
	tracer    trace.Tracer
	parallel  int
	now       func() time.Time
}

type Option func(*Coordinator)

func WithEncoder(e ticket.Encoder) Option {
	return func(c *Coordinator) { c.encoder = e }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithParallelism bounds concurrent sends. 1 sends sequentially.
func WithParallelism(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.parallel = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(t printer.Transport, opts ...Option) *Coordinator {
	c := &Coordinator{
		encoder:   ticket.NewEncoder(),
		transport: t,
		logger:    slog.Default(),
		tracer:    otel.Tracer(instrumentation),
		parallel:  DefaultParallelism,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Encoder() ticket.Encoder {
	return c.encoder
}

// task is one planned send. A task with a non-empty failure is recorded without sending.
type task struct {
	kind    model.TicketKind
	printer model.Printer
	items   []model.OrderItem
	failure string
}

// plan lists kitchen groups in first-seen destination order, then unroutable items,
// then the receipt. Outcomes keep this order whatever order the sends finish in.
func plan(order model.Order, snap routing.Snapshot) []task {
	items := order.ActiveItems()
	groups, residual := routing.Partition(items, snap)

	tasks := make([]task, 0, len(groups)+2)
	for _, g := range groups {
		p, _ := model.FindPrinter(snap.Printers, g.PrinterID)
		tasks = append(tasks, task{kind: model.TicketKitchen, printer: p, items: g.Items})
	}

	unroutable := 0
	for _, it := range residual {
		if it.Category != "" {
			unroutable++
		}
	}
	if unroutable > 0 {
		tasks = append(tasks, task{
			kind:    model.TicketKitchen,
			failure: fmt.Sprintf("%d %s", unroutable, msgNoDestination),
		})
	}

	receipt := task{kind: model.TicketReceipt, items: items}
	if p, ok := routing.CashierPrinter(snap.Printers); ok {
		receipt.printer = p
	} else {
		receipt.failure = cashierLabel + ": " + msgNoPrinters
	}
	return append(tasks, receipt)
}

// Jobs returns the print jobs a checkout of order would send.
func Jobs(order model.Order, snap routing.Snapshot) []model.PrintJob {
	var jobs []model.PrintJob
	for _, t := range plan(order, snap) {
		if t.failure != "" {
			continue
		}
		jobs = append(jobs, model.PrintJob{PrinterID: t.printer.ID, Items: t.items, Kind: t.kind})
	}
	return jobs
}

// Checkout prints order against a snapshot of the routing configuration. It waits for
// every send and always returns an outcome; print failures never abort a checkout.
func (c *Coordinator) Checkout(ctx context.Context, order model.Order, snap routing.Snapshot) model.SessionOutcome {
	snap = snap.Clone()
	ctx, span := c.tracer.Start(ctx, "checkout.Checkout", trace.WithAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.table", order.TableLabel),
		attribute.Int("order.items", len(order.Items)),
	))
	defer span.End()

	meta := ticket.Meta{TableLabel: order.TableLabel, OrderID: order.ID, Timestamp: c.now()}
	tasks := plan(order, snap)
	outcomes := make([]model.PrintOutcome, len(tasks))

	var g errgroup.Group
	g.SetLimit(c.parallel)
	for i, t := range tasks {
		if t.failure != "" {
			outcomes[i] = model.PrintOutcome{Kind: t.kind, Message: t.failure}
			continue
		}
		g.Go(func() error {
			outcomes[i] = c.send(ctx, t, meta)
			return nil
		})
	}
	_ = g.Wait()

	out := Summarize(outcomes)
	span.SetAttributes(
		attribute.String("checkout.status", string(out.Status)),
		attribute.Int("checkout.failures", out.Failures),
	)
	c.logger.Info("checkout printed",
		"order_id", order.ID,
		"table", order.TableLabel,
		"status", out.Status,
		"attempts", out.Attempts,
		"failures", out.Failures,
	)
	return out
}

func (c *Coordinator) send(ctx context.Context, t task, meta ticket.Meta) model.PrintOutcome {
	payload := c.encoder.Encode(t.items, meta, t.kind)
	res := c.transport.Send(ctx, t.printer.IP, payload)

	out := model.PrintOutcome{
		PrinterID:   t.printer.ID,
		PrinterName: t.printer.Name,
		Kind:        t.kind,
		Success:     res.Success,
		Message:     res.Message,
	}
	if !res.Success {
		label := t.printer.Name
		if t.kind == model.TicketReceipt {
			label = cashierLabel
		}
		out.Message = label + ": " + res.Message
		c.logger.Warn("ticket not printed",
			"printer", t.printer.Name,
			"ip", t.printer.IP,
			"kind", t.kind,
			"failure", res.Failure,
		)
	}
	return out
}

// Summarize aggregates outcomes. The retained message is the first failure in outcome
// order.
func Summarize(outcomes []model.PrintOutcome) model.SessionOutcome {
	out := model.SessionOutcome{Outcomes: outcomes, Attempts: len(outcomes)}
	for _, o := range outcomes {
		if o.Success {
			out.Successes++
			continue
		}
		out.Failures++
		if out.FirstErrorMessage == "" {
			out.FirstErrorMessage = o.Message
		}
	}
	out.Status = Status(out.Successes, out.Failures)
	out.OfferFallback = out.Status != model.StatusAllSucceeded
	return out
}

// Status depends only on the counts. No attempts at all counts as failed.
func Status(successes, failures int) model.SessionStatus {
	switch {
	case successes+failures == 0:
		return model.StatusAllFailed
	case failures == 0:
		return model.StatusAllSucceeded
	case successes == 0:
		return model.StatusAllFailed
	default:
		return model.StatusPartial
	}
}
