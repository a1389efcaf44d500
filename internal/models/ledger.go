package models

import (
	"time"
)

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	KindSave    EntryKind = "save"
	KindAdjust  EntryKind = "adjust"
	KindArchive EntryKind = "archive" // written only by the archive transition
)

// Valid reports whether k is one of the known kinds.
func (k EntryKind) Valid() bool {
	switch k {
	case KindSave, KindAdjust, KindArchive:
		return true
	}
	return false
}

// Entry is one immutable ledger row. ID is the recency order; CreatedAt is informational.
type Entry struct {
	ID          int64     `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	AmountCents int64     `json:"amountCents" db:"amount_cents"` // in cents
	Kind        EntryKind `json:"kind" db:"kind"`
	Reason      *string   `json:"reason,omitempty" db:"reason"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Totals is a consistent snapshot of a user's aggregates.
type Totals struct {
	CurrentCents int64 `json:"currentCents" db:"current_cents"`
	HistoryCents int64 `json:"historyCents" db:"history_cents"`
}

// GrandCents is current + history; archiving never changes it.
func (t Totals) GrandCents() int64 {
	return t.CurrentCents + t.HistoryCents
}
