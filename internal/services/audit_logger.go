package services

import (
	"encoding/json"
	"log"
	"time"

	"github.com/ruralpay/stash/internal/models"
)

type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	UserID    string    `json:"user_id"`
	EntryID   int64     `json:"entry_id,omitempty"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

type AuditLogger struct{}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

func (a *AuditLogger) LogEntry(entry *models.Entry) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "ENTRY",
		UserID:    entry.UserID,
		EntryID:   entry.ID,
		Amount:    entry.AmountCents,
		Status:    "SUCCESS",
		Details:   map[string]string{"kind": string(entry.Kind)},
	}
	a.log(event)
}

func (a *AuditLogger) LogArchive(entry *models.Entry, moved int64) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "ARCHIVE",
		UserID:    entry.UserID,
		EntryID:   entry.ID,
		Amount:    moved,
		Status:    "SUCCESS",
	}
	a.log(event)
}

func (a *AuditLogger) LogError(operation, userID string, err error) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: operation,
		UserID:    userID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	}
	a.log(event)
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
