package api

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/checkout"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/fallback"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/services"
)

type handlers struct {
	Deps
}

func (h *handlers) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// --- Printers ---

func (h *handlers) listPrinters(c *fiber.Ctx) error {
	printers, err := h.Settings.Printers(c.UserContext())
	if err != nil {
		return err
	}
	if printers == nil {
		printers = []model.Printer{}
	}
	return c.JSON(printers)
}

func (h *handlers) savePrinter(c *fiber.Ctx) error {
	var in model.Printer
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid printer body")
	}
	saved, err := h.Settings.SavePrinter(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(saved)
}

func (h *handlers) deletePrinter(c *fiber.Ctx) error {
	if err := h.Settings.DeletePrinter(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type testResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *handlers) testPrinter(c *fiber.Ctx) error {
	p, err := h.Settings.Printer(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	res := services.TestPrint(c.UserContext(), h.Transport, h.Encoder, p)
	return c.JSON(testResult{Success: res.Success, Message: res.Message})
}

func (h *handlers) discover(c *fiber.Ctx) error {
	if h.Discovery == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "discovery disabled")
	}
	added, err := h.Discovery.Run(c.UserContext())
	if err != nil {
		return err
	}
	if added == nil {
		added = []model.Printer{}
	}
	return c.JSON(added)
}

// --- Routes ---

type routeView struct {
	Category  model.Category `json:"categoryId"`
	Label     string         `json:"label"`
	PrinterID string         `json:"printerId"`
	Drink     bool           `json:"drink"`
}

func (h *handlers) listRoutes(c *fiber.Ctx) error {
	routes, err := h.Settings.Routes(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]routeView, 0, len(routes))
	for _, r := range routes {
		out = append(out, routeView{
			Category:  r.Category,
			Label:     r.Category.Label(),
			PrinterID: r.PrinterID,
			Drink:     r.Category.IsDrink(),
		})
	}
	return c.JSON(out)
}

func (h *handlers) setRoute(c *fiber.Ctx) error {
	var in struct {
		PrinterID string `json:"printerId"`
	}
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid route body")
	}
	category := model.Category(strings.ToUpper(c.Params("category")))
	if err := h.Settings.SetRoute(c.UserContext(), category, in.PrinterID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// --- Checkout ---

type sessionView struct {
	SessionID string         `json:"sessionId"`
	State     checkout.State `json:"state"`
	OrderID   string         `json:"orderId"`
	Table     string         `json:"tableLabel"`
	model.SessionOutcome
}

func viewOf(s *checkout.Session) sessionView {
	out, _ := s.Outcome()
	return sessionView{
		SessionID:      s.ID,
		State:          s.State(),
		OrderID:        s.Order().ID,
		Table:          s.Order().TableLabel,
		SessionOutcome: out,
	}
}

func validateOrder(o model.Order) error {
	for i, it := range o.Items {
		if it.Quantity < 0 {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("item %d: negative quantity", i))
		}
		if it.Price < 0 {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("item %d: negative price", i))
		}
		if it.Category != "" && !it.Category.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("item %d: unknown category %q", i, it.Category))
		}
	}
	return nil
}

func (h *handlers) checkout(c *fiber.Ctx) error {
	var order model.Order
	if err := c.BodyParser(&order); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order body")
	}
	if err := validateOrder(order); err != nil {
		return err
	}
	s := h.Checkouts.Checkout(c.UserContext(), order)
	return c.JSON(viewOf(s))
}

func (h *handlers) session(c *fiber.Ctx) error {
	s, err := h.Checkouts.Get(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(viewOf(s))
}

func (h *handlers) fallback(c *fiber.Ctx) error {
	format, err := fallback.ParseFormat(c.Query("format"))
	if err != nil {
		return err
	}
	doc, err := h.Checkouts.Fallback(c.UserContext(), c.Params("id"), format)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, format.ContentType())
	return c.Send(doc)
}

func (h *handlers) dismiss(c *fiber.Ctx) error {
	if err := h.Checkouts.Dismiss(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
