package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// QueueEntry é um pedido de empréstimo adiado aguardando na fila compartilhada.
type QueueEntry struct {
	ID             string    `json:"id"`
	RequesterEmail string    `json:"email"`
	EquipmentID    int64     `json:"equipment_id"`
	Quantity       int       `json:"quantity"`
	SubmittedAt    time.Time `json:"submitted_at"`
	OriginInstance string    `json:"origin_instance"`
}

// Request reconstrói o pedido tipado carregado pela entrada.
func (e QueueEntry) Request() (LoanRequest, error) {
	return NewLoanRequest(e.RequesterEmail, e.EquipmentID, e.Quantity)
}

func EncodeQueueEntry(e QueueEntry) ([]byte, error) {
	return json.Marshal(e)
}

func DecodeQueueEntry(payload []byte) (QueueEntry, error) {
	var e QueueEntry
	if err := json.Unmarshal(payload, &e); err != nil {
		return QueueEntry{}, fmt.Errorf("decode queue entry: %w", err)
	}
	if e.RequesterEmail == "" && e.EquipmentID == 0 {
		return QueueEntry{}, errors.New("decode queue entry: empty payload")
	}
	return e, nil
}
