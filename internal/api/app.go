// Package api serves the terminal's local HTTP API: printer settings, checkout and the
// manual print fallback.
package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/checkout"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/fallback"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/printer"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/routing"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/services"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/settings"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/ticket"
)

type Deps struct {
	Settings  *settings.Store
	Checkouts *checkout.Manager
	Transport printer.Transport
	Encoder   ticket.Encoder
	// Discovery is optional; without it the discover endpoint answers 501.
	Discovery *services.Discovery
	Logger    *slog.Logger
}

// NewApp wires the routes. The returned app is not listening yet.
func NewApp(d Deps) *fiber.App {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	h := &handlers{Deps: d}

	app := fiber.New(fiber.Config{
		AppName:               "refugio-pos",
		DisableStartupMessage: true,
		BodyLimit:             1 << 20,
		ErrorHandler:          h.errorHandler,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(helmet.New())

	app.Get("/health", h.health)

	r := app.Group("/api")
	r.Get("/printers", h.listPrinters)
	r.Post("/printers", h.savePrinter)
	r.Post("/printers/discover", h.discover)
	r.Delete("/printers/:id", h.deletePrinter)
	r.Post("/printers/:id/test", h.testPrinter)

	r.Get("/routes", h.listRoutes)
	r.Put("/routes/:category", h.setRoute)

	r.Post("/checkout", h.checkout)
	r.Get("/sessions/:id", h.session)
	r.Get("/sessions/:id/fallback", h.fallback)
	r.Post("/sessions/:id/dismiss", h.dismiss)

	return app
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, routing.ErrPrinterNotFound),
		errors.Is(err, checkout.ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, settings.ErrInvalidPrinter),
		errors.Is(err, routing.ErrUnknownCategory),
		errors.Is(err, fallback.ErrUnsupportedFormat):
		return fiber.StatusBadRequest
	case errors.Is(err, settings.ErrDuplicateIP),
		errors.Is(err, checkout.ErrSessionNotTerminal),
		errors.Is(err, checkout.ErrFallbackNotOffered):
		return fiber.StatusConflict
	case errors.Is(err, fallback.ErrRendererUnavailable):
		return fiber.StatusNotImplemented
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *handlers) errorHandler(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	rid, _ := c.Locals("requestid").(string)

	msg := err.Error()
	if status >= fiber.StatusInternalServerError && status != fiber.StatusNotImplemented {
		h.Logger.Error("request failed", "request_id", rid, "method", c.Method(), "path", c.Path(), "error", err)
		msg = "internal error"
	} else {
		h.Logger.Debug("request rejected", "request_id", rid, "path", c.Path(), "status", status, "error", err)
	}
	return c.Status(status).JSON(errorBody{Error: msg, RequestID: rid})
}
