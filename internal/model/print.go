package model

// TicketKind selects the layout of a printed ticket.
type TicketKind string

const (
	TicketKitchen TicketKind = "KITCHEN"
	TicketReceipt TicketKind = "RECEIPT"
)

// PrintJob is one ticket bound for one printer. Created per checkout, never stored.
type PrintJob struct {
	PrinterID string      `json:"printerId"`
	Items     []OrderItem `json:"items"`
	Kind      TicketKind  `json:"kind"`
}

// PrintOutcome is the result of one send attempt.
type PrintOutcome struct {
	PrinterID   string     `json:"printerId,omitempty"`
	PrinterName string     `json:"printerName,omitempty"`
	Kind        TicketKind `json:"kind"`
	Success     bool       `json:"success"`
	Message     string     `json:"message"`
}

type SessionStatus string

const (
	StatusAllSucceeded SessionStatus = "all_succeeded"
	StatusPartial      SessionStatus = "partial"
	StatusAllFailed    SessionStatus = "all_failed"
)

// SessionOutcome is what the operator sees after a checkout.
type SessionOutcome struct {
	Status            SessionStatus  `json:"status"`
	FirstErrorMessage string         `json:"firstErrorMessage,omitempty"`
	OfferFallback     bool           `json:"offerFallback"`
	Attempts          int            `json:"attempts"`
	Successes         int            `json:"successes"`
	Failures          int            `json:"failures"`
	Outcomes          []PrintOutcome `json:"outcomes"`
}
