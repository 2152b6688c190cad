package audit

import (
	"encoding/json"
	"log"
	"time"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Reference string    `json:"reference"`
	Owner     string    `json:"owner"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Details   any       `json:"details"`
}

// Logger emits one JSON line per money movement. Audit lines are
// append-only and written regardless of notification outcomes.
type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogCredit(reference, owner string, amount int64, currency, status string) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "CREDIT",
		Reference: reference,
		Owner:     owner,
		Amount:    amount,
		Currency:  currency,
		Status:    status,
	})
}

func (a *Logger) LogDebit(reference, owner string, amount int64, currency, status string) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "DEBIT",
		Reference: reference,
		Owner:     owner,
		Amount:    amount,
		Currency:  currency,
		Status:    status,
	})
}

func (a *Logger) LogTransfer(transferID, owner, status string, details any) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "FUND_TRANSFER",
		Reference: transferID,
		Owner:     owner,
		Status:    status,
		Details:   details,
	})
}

func (a *Logger) LogError(reference, owner string, err error) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "ERROR",
		Reference: reference,
		Owner:     owner,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
