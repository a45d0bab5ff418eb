package model

import "encoding/json"

type MessageType string

const (
	MessageTypeRegister       MessageType = "register"
	MessageTypeRegistered     MessageType = "registered"
	MessageTypeUnregister     MessageType = "unregister"
	MessageTypePing           MessageType = "ping"
	MessageTypePong           MessageType = "pong"
	MessageTypeCheckout       MessageType = "checkout"
	MessageTypeCheckoutResult MessageType = "checkout_result"
	MessageTypeTestPrint      MessageType = "test_print"
	MessageTypePrinted        MessageType = "printed"
	MessageTypePrintFailed    MessageType = "print_failed"
	MessageTypeTableReleased  MessageType = "table_released"
	MessageTypeError          MessageType = "error"
)

// --- WebSocket Messages ---

type WSMessage struct {
	Type        MessageType     `json:"type"`
	TerminalKey string          `json:"terminal_key,omitempty"`
	Version     string          `json:"version,omitempty"`
	SessionID   string          `json:"session_id,omitempty"`
	PrinterID   string          `json:"printer_id,omitempty"`
	TableLabel  string          `json:"table_label,omitempty"`
	Order       json.RawMessage `json:"order,omitempty"` // decoded into Order by the handler
	Outcome     *SessionOutcome `json:"outcome,omitempty"`
	Error       string          `json:"error,omitempty"`
}
