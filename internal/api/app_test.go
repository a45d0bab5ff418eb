package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/checkout"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/logger"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/printer"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/settings"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/ticket"
)

type stubTransport struct {
	mu      sync.Mutex
	sends   int
	failing map[string]bool
}

func (s *stubTransport) Send(_ context.Context, address, _ string) printer.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends++
	if s.failing[address] {
		return printer.Result{Message: printer.MsgConnectionFailed, Failure: printer.FailureConnection}
	}
	return printer.Result{Success: true, Message: printer.MsgSentUnconfirmed}
}

type testEnv struct {
	app       *fiber.App
	store     *settings.Store
	transport *stubTransport
	released  []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:     settings.New(settings.NewMemory(), logger.Discard()),
		transport: &stubTransport{failing: map[string]bool{}},
	}
	coord := checkout.NewCoordinator(env.transport, checkout.WithLogger(logger.Discard()))
	release := checkout.ReleaseFunc(func(_ context.Context, table string) error {
		env.released = append(env.released, table)
		return nil
	})
	env.app = NewApp(Deps{
		Settings:  env.store,
		Checkouts: checkout.NewManager(coord, env.store, nil, release, logger.Discard()),
		Transport: env.transport,
		Encoder:   ticket.NewEncoder(),
		Logger:    logger.Discard(),
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) addPrinter(t *testing.T, name, ip string) model.Printer {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/printers", model.Printer{Name: name, IP: ip})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))
	var p model.Printer
	require.NoError(t, json.Unmarshal(body, &p))
	return p
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestPrinterCRUD(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/printers", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	caja := env.addPrinter(t, "Caja", "192.168.1.50")
	assert.True(t, caja.IsDefault)
	bar := env.addPrinter(t, "", "192.168.1.51")
	assert.Equal(t, "Impresora 51", bar.Name)

	resp, _ = env.do(t, http.MethodPost, "/api/printers", model.Printer{Name: "x", IP: "not-an-ip"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/printers", model.Printer{ID: bar.ID, Name: "x", IP: caja.IP})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/printers", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var printers []model.Printer
	require.NoError(t, json.Unmarshal(body, &printers))
	assert.Len(t, printers, 2)

	resp, _ = env.do(t, http.MethodDelete, "/api/printers/"+bar.ID, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp, body = env.do(t, http.MethodDelete, "/api/printers/"+bar.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "requestId")
}

func TestTestPrinter(t *testing.T) {
	env := newTestEnv(t)
	caja := env.addPrinter(t, "Caja", "192.168.1.50")
	env.transport.failing["192.168.1.50"] = true

	resp, body := env.do(t, http.MethodPost, "/api/printers/"+caja.ID+"/test", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"message":"Error de conexion"}`, string(body))

	resp, _ = env.do(t, http.MethodPost, "/api/printers/nope/test", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDiscoverDisabled(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodPost, "/api/printers/discover", nil)
	assert.Equal(t, fiber.StatusNotImplemented, resp.StatusCode)
}

func TestRoutes(t *testing.T) {
	env := newTestEnv(t)
	caja := env.addPrinter(t, "Caja", "192.168.1.50")
	bar := env.addPrinter(t, "Barra", "192.168.1.51")

	resp, _ := env.do(t, http.MethodPut, "/api/routes/cocktails", map[string]string{"printerId": bar.ID})
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/api/routes/PIZZA", map[string]string{"printerId": bar.ID})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPut, "/api/routes/COFFEE", map[string]string{"printerId": "ghost"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/routes", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var routes []routeView
	require.NoError(t, json.Unmarshal(body, &routes))
	require.Len(t, routes, len(model.Categories))
	for _, r := range routes {
		want := caja.ID
		if r.Category == model.CategoryCocktails {
			want = bar.ID
			assert.Equal(t, "Cócteles", r.Label)
			assert.True(t, r.Drink)
		}
		assert.Equal(t, want, r.PrinterID, r.Category)
	}
}

func TestCheckoutFlow(t *testing.T) {
	env := newTestEnv(t)
	caja := env.addPrinter(t, "Caja", "192.168.1.50")
	bar := env.addPrinter(t, "Barra", "192.168.1.51")
	resp, _ := env.do(t, http.MethodPut, "/api/routes/WINES_BEERS", map[string]string{"printerId": bar.ID})
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	env.transport.failing[bar.IP] = true

	order := model.Order{
		TableLabel: "Mesa 4",
		Items: []model.OrderItem{
			{Name: "Burger", Price: 5000, Quantity: 2, Category: model.CategoryBurgers},
			{Name: "Beer", Price: 1800, Quantity: 3, Category: model.CategoryWinesBeers},
		},
	}
	resp, body := env.do(t, http.MethodPost, "/api/checkout", order)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	var view sessionView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.NotEmpty(t, view.SessionID)
	assert.Equal(t, checkout.StatePartial, view.State)
	assert.Equal(t, model.StatusPartial, view.Status)
	assert.True(t, view.OfferFallback)
	assert.Equal(t, "Barra: Error de conexion", view.FirstErrorMessage)
	assert.Equal(t, 3, view.Attempts)
	assert.Equal(t, caja.ID, view.Outcomes[0].PrinterID)

	resp, body = env.do(t, http.MethodGet, "/api/sessions/"+view.SessionID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"state":"PARTIAL"`)

	resp, body = env.do(t, http.MethodGet, "/api/sessions/"+view.SessionID+"/fallback?format=html", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, string(body), "C15400")

	resp, _ = env.do(t, http.MethodGet, "/api/sessions/"+view.SessionID+"/fallback", nil)
	assert.Equal(t, fiber.StatusNotImplemented, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/sessions/"+view.SessionID+"/fallback?format=docx", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+view.SessionID+"/dismiss", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"Mesa 4"}, env.released)

	resp, _ = env.do(t, http.MethodGet, "/api/sessions/"+view.SessionID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCheckoutWithoutPrinters(t *testing.T) {
	env := newTestEnv(t)
	order := model.Order{TableLabel: "Mesa 1", Items: []model.OrderItem{{Name: "Cafe", Price: 1200, Quantity: 1, Category: model.CategoryCoffee}}}

	resp, body := env.do(t, http.MethodPost, "/api/checkout", order)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var view sessionView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, model.StatusAllFailed, view.Status)
	assert.True(t, view.OfferFallback)
	assert.Equal(t, 0, env.transport.sends)

	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+view.SessionID+"/dismiss", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestCheckoutFallbackNotOfferedOnSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.addPrinter(t, "Caja", "192.168.1.50")

	resp, body := env.do(t, http.MethodPost, "/api/checkout", model.Order{TableLabel: "Mesa 3"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var view sessionView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, model.StatusAllSucceeded, view.Status)

	resp, _ = env.do(t, http.MethodGet, "/api/sessions/"+view.SessionID+"/fallback?format=html", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestCheckoutValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		item model.OrderItem
	}{
		{"negative quantity", model.OrderItem{Name: "x", Price: 1, Quantity: -1}},
		{"negative price", model.OrderItem{Name: "x", Price: -1, Quantity: 1}},
		{"unknown category", model.OrderItem{Name: "x", Price: 1, Quantity: 1, Category: "PIZZA"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := env.do(t, http.MethodPost, "/api/checkout", model.Order{Items: []model.OrderItem{tt.item}})
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodGet, "/api/sessions/nope/fallback", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/sessions/nope/dismiss", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
