package model

// --- Printer Structures ---

type PrinterStatus string

const (
	PrinterOnline  PrinterStatus = "online"
	PrinterOffline PrinterStatus = "offline"
	PrinterError   PrinterStatus = "error"
)

type Printer struct {
	ID        string        `json:"id" yaml:"id" db:"id"`
	Name      string        `json:"name" yaml:"name" db:"name"`
	IP        string        `json:"ip" yaml:"ip" db:"ip"`
	Model     string        `json:"model" yaml:"model" db:"model"`
	Status    PrinterStatus `json:"status" yaml:"status" db:"status"`
	IsDefault bool          `json:"isDefault,omitempty" yaml:"is_default,omitempty" db:"is_default"`
}

// Route sends every item of a category to one printer.
type Route struct {
	Category  Category `json:"categoryId" yaml:"category" db:"category"`
	PrinterID string   `json:"printerId" yaml:"printer_id" db:"printer_id"`
}

// FindPrinter returns the printer with the given id.
func FindPrinter(printers []Printer, id string) (Printer, bool) {
	for _, p := range printers {
		if p.ID == id {
			return p, true
		}
	}
	return Printer{}, false
}
