package domain

import "strings"

// Category é o conjunto fechado de variantes com tratamento de devolução próprio.
type Category int

const (
	CategoryPeripheral Category = iota
	CategoryComputer
)

func (c Category) String() string {
	if c == CategoryComputer {
		return "COMPUTER"
	}
	return "PERIPHERAL"
}

// ClassifyCategory mapeia o tipo do inventário para a variante. Laptop e PC
// são computadores; o resto é periférico.
func ClassifyCategory(typeName string) Category {
	switch strings.ToLower(strings.TrimSpace(typeName)) {
	case "laptop", "pc":
		return CategoryComputer
	}
	return CategoryPeripheral
}

// ReturnContext carrega o empréstimo sendo devolvido.
type ReturnContext struct {
	LoanID   int64
	Quantity int
}

type ReturnOutcome struct {
	Message            string   `json:"message"`
	RequiresInspection bool     `json:"requires_inspection"`
	Category           Category `json:"-"`
	CategoryName       string   `json:"category"`
}

// ProcessReturn é o ponto único de despacho das devoluções.
func ProcessReturn(c Category, _ ReturnContext) ReturnOutcome {
	switch c {
	case CategoryComputer:
		return ReturnOutcome{
			Message:            "computer return: checklist inspection recorded (condition, accessories)",
			RequiresInspection: true,
			Category:           c,
			CategoryName:       c.String(),
		}
	default:
		return ReturnOutcome{
			Message:      "peripheral return: standard registration, no checklist",
			Category:     c,
			CategoryName: c.String(),
		}
	}
}
