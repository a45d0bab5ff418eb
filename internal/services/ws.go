package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/checkout"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/printer"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/settings"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/ticket"
)

// --- WebSocket Agent Logic ---

const DefaultReconnectDelay = 5 * time.Second

var ErrNotConnected = errors.New("not connected to hub")

// Checkouts runs a checkout for an order received from the hub. The hub closes its own
// tables, so the agent forgets each session once the result is built.
type Checkouts interface {
	Checkout(ctx context.Context, order model.Order) *checkout.Session
	Forget(id string)
}

type AgentOptions struct {
	URL            string
	APIKey         string
	TerminalKey    string
	Version        string
	ReconnectDelay time.Duration
	Logger         *slog.Logger
}

// Agent keeps a connection to the POS hub. The hub sends orders to print and test
// requests; the agent answers with the outcome of each one.
type Agent struct {
	opts      AgentOptions
	store     *settings.Store
	transport printer.Transport
	encoder   ticket.Encoder
	checkouts Checkouts
	logger    *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewAgent(opts AgentOptions, store *settings.Store, transport printer.Transport, encoder ticket.Encoder) *Agent {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Agent{
		opts:      opts,
		store:     store,
		transport: transport,
		encoder:   encoder,
		logger:    opts.Logger.With("hub", opts.URL),
	}
}

// SetCheckouts attaches the checkout manager. It must be called before Run.
func (a *Agent) SetCheckouts(c Checkouts) {
	a.checkouts = c
}

// Run connects and reconnects until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	header := http.Header{}
	header.Add("X-Api-Key", a.opts.APIKey)

	a.logger.Info("connecting to hub")
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.opts.URL, header)
		if err != nil {
			a.logger.Warn("hub connection failed", "error", err, "retry_in", a.opts.ReconnectDelay)
		} else {
			a.logger.Info("hub connected")
			err = a.handleConnection(ctx, conn)
			conn.Close()
			a.logger.Info("hub disconnected", "reason", err, "retry_in", a.opts.ReconnectDelay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.opts.ReconnectDelay):
		}
	}
}

func (a *Agent) handleConnection(ctx context.Context, conn *websocket.Conn) error {
	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.conn = nil
		a.mu.Unlock()
	}()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	err := a.send(model.WSMessage{
		Type:        model.MessageTypeRegister,
		TerminalKey: a.opts.TerminalKey,
		Version:     a.opts.Version,
	})
	if err != nil {
		return fmt.Errorf("send register: %w", err)
	}

	for {
		var msg model.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		switch msg.Type {
		case model.MessageTypeRegistered:
			a.logger.Info("registered with hub", "terminal_key", a.opts.TerminalKey)

		case model.MessageTypePing:
			a.logger.Debug("ping received")
			if err := a.send(model.WSMessage{Type: model.MessageTypePong, TerminalKey: a.opts.TerminalKey}); err != nil {
				return fmt.Errorf("send pong: %w", err)
			}

		case model.MessageTypeCheckout:
			a.reply(a.handleCheckout(ctx, msg))

		case model.MessageTypeTestPrint:
			a.reply(a.handleTestPrint(ctx, msg))

		case model.MessageTypeUnregister:
			a.logger.Info("hub requested unregister")
			return nil

		default:
			a.logger.Warn("unknown message type", "type", msg.Type)
		}
	}
}

func (a *Agent) handleCheckout(ctx context.Context, msg model.WSMessage) model.WSMessage {
	var order model.Order
	if err := json.Unmarshal(msg.Order, &order); err != nil {
		a.logger.Error("parse order", "error", err)
		return model.WSMessage{Type: model.MessageTypeError, TableLabel: msg.TableLabel, Error: "invalid order: " + err.Error()}
	}
	if order.TableLabel == "" {
		order.TableLabel = msg.TableLabel
	}
	if a.checkouts == nil {
		return model.WSMessage{Type: model.MessageTypeError, TableLabel: order.TableLabel, Error: "checkout not available"}
	}

	a.logger.Info("checkout received", "table", order.TableLabel, "items", len(order.Items))
	s := a.checkouts.Checkout(ctx, order)
	defer a.checkouts.Forget(s.ID)
	out, _ := s.Outcome()
	return model.WSMessage{
		Type:       model.MessageTypeCheckoutResult,
		SessionID:  s.ID,
		TableLabel: order.TableLabel,
		Outcome:    &out,
	}
}

func (a *Agent) handleTestPrint(ctx context.Context, msg model.WSMessage) model.WSMessage {
	p, err := a.store.Printer(ctx, msg.PrinterID)
	if err != nil {
		return model.WSMessage{Type: model.MessageTypePrintFailed, PrinterID: msg.PrinterID, Error: err.Error()}
	}
	res := TestPrint(ctx, a.transport, a.encoder, p)
	if !res.Success {
		a.logger.Warn("test print failed", "printer", p.Name, "ip", p.IP, "failure", res.Failure)
		return model.WSMessage{Type: model.MessageTypePrintFailed, PrinterID: p.ID, Error: res.Message}
	}
	return model.WSMessage{Type: model.MessageTypePrinted, PrinterID: p.ID}
}

// TestPrint sends the connection test ticket to p.
func TestPrint(ctx context.Context, t printer.Transport, enc ticket.Encoder, p model.Printer) printer.Result {
	return t.Send(ctx, p.IP, enc.EncodeTest(p, time.Now()))
}

// Release tells the hub a table was closed. Without a connection the release stays
// local and the hub catches up on its own.
func (a *Agent) Release(_ context.Context, tableLabel string) error {
	err := a.send(model.WSMessage{
		Type:        model.MessageTypeTableReleased,
		TerminalKey: a.opts.TerminalKey,
		TableLabel:  tableLabel,
	})
	if errors.Is(err, ErrNotConnected) {
		a.logger.Warn("table released while offline", "table", tableLabel)
		return nil
	}
	return err
}

func (a *Agent) reply(msg model.WSMessage) {
	msg.TerminalKey = a.opts.TerminalKey
	if err := a.send(msg); err != nil {
		a.logger.Error("send reply", "type", msg.Type, "error", err)
	}
}

// send serializes writes; a websocket connection allows one writer at a time.
func (a *Agent) send(msg model.WSMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return ErrNotConnected
	}
	return a.conn.WriteJSON(msg)
}
