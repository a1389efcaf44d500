package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/ruralpay/stash/internal/models"
)

// LedgerService is the append-only entry store. Every mutation for a user
// runs in a transaction holding that user's row lock, so AddEntry and Archive
// are linearized per user and never block other users.
type LedgerService struct {
	db    *sqlx.DB
	audit *AuditLogger
}

func NewLedgerService(db *sqlx.DB) *LedgerService {
	return &LedgerService{
		db:    db,
		audit: NewAuditLogger(),
	}
}

// AddEntry appends a save or adjust entry. Archive entries are only written
// by Archive.
func (s *LedgerService) AddEntry(ctx context.Context, userID string, amountCents int64, kind models.EntryKind, reason *string) (*models.Entry, error) {
	if err := validateEntry(amountCents, kind); err != nil {
		return nil, err
	}
	if !validUserID(userID) {
		return nil, ErrUserNotFound
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.lockUser(ctx, tx, userID); err != nil {
		return nil, err
	}

	entry := &models.Entry{
		UserID:      userID,
		AmountCents: amountCents,
		Kind:        kind,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.insertEntry(ctx, tx, entry); err != nil {
		s.audit.LogError("ENTRY", userID, err)
		return nil, fmt.Errorf("error appending entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		s.audit.LogError("ENTRY", userID, err)
		return nil, fmt.Errorf("error committing entry: %w", err)
	}

	s.audit.LogEntry(entry)
	return entry, nil
}

// Archive moves the whole current balance into history by appending one
// archive entry of -balance, and returns the amount moved. A zero or
// negative balance fails with ErrNothingToArchive and writes nothing.
func (s *LedgerService) Archive(ctx context.Context, userID string) (int64, error) {
	if !validUserID(userID) {
		return 0, ErrUserNotFound
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := s.lockUser(ctx, tx, userID); err != nil {
		return 0, err
	}

	var balance int64
	if err := tx.GetContext(ctx, &balance,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM entries WHERE user_id = $1`, userID); err != nil {
		return 0, fmt.Errorf("error reading balance: %w", err)
	}

	if balance <= 0 {
		return 0, ErrNothingToArchive
	}

	entry := &models.Entry{
		UserID:      userID,
		AmountCents: -balance,
		Kind:        models.KindArchive,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.insertEntry(ctx, tx, entry); err != nil {
		s.audit.LogError("ARCHIVE", userID, err)
		return 0, fmt.Errorf("error appending archive entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		s.audit.LogError("ARCHIVE", userID, err)
		return 0, fmt.Errorf("error committing archive: %w", err)
	}

	s.audit.LogArchive(entry, balance)
	return balance, nil
}

// CurrentBalance is the signed sum of all the user's entries.
func (s *LedgerService) CurrentBalance(ctx context.Context, userID string) (int64, error) {
	if !validUserID(userID) {
		return 0, nil
	}
	var balance int64
	err := s.db.GetContext(ctx, &balance,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM entries WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("error reading balance: %w", err)
	}
	return balance, nil
}

// HistoryTotal is the total ever moved out by Archive.
func (s *LedgerService) HistoryTotal(ctx context.Context, userID string) (int64, error) {
	if !validUserID(userID) {
		return 0, nil
	}
	var total int64
	err := s.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(ABS(amount_cents)), 0) FROM entries WHERE user_id = $1 AND kind = $2`,
		userID, models.KindArchive)
	if err != nil {
		return 0, fmt.Errorf("error reading history total: %w", err)
	}
	return total, nil
}

// Totals reads current and history balances from a single statement.
func (s *LedgerService) Totals(ctx context.Context, userID string) (models.Totals, error) {
	var totals models.Totals
	if !validUserID(userID) {
		return totals, nil
	}
	err := s.db.GetContext(ctx, &totals, `
		SELECT
			COALESCE(SUM(amount_cents), 0) AS current_cents,
			COALESCE(SUM(ABS(amount_cents)) FILTER (WHERE kind = $2), 0) AS history_cents
		FROM entries WHERE user_id = $1`,
		userID, models.KindArchive)
	if err != nil {
		return models.Totals{}, fmt.Errorf("error reading totals: %w", err)
	}
	return totals, nil
}

// RecentEntries returns up to limit entries, newest (highest id) first.
func (s *LedgerService) RecentEntries(ctx context.Context, userID string, limit int) ([]models.Entry, error) {
	entries := []models.Entry{}
	if limit <= 0 || !validUserID(userID) {
		return entries, nil
	}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, user_id, amount_cents, kind, reason, created_at
		FROM entries
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing entries: %w", err)
	}
	return entries, nil
}

// lockUser takes the per-user row lock that serializes mutations.
func (s *LedgerService) lockUser(ctx context.Context, tx *sqlx.Tx, userID string) error {
	var id string
	err := tx.GetContext(ctx, &id, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("error locking user: %w", err)
	}
	return nil
}

func (s *LedgerService) insertEntry(ctx context.Context, tx *sqlx.Tx, entry *models.Entry) error {
	return tx.QueryRowxContext(ctx, `
		INSERT INTO entries (user_id, amount_cents, kind, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		entry.UserID, entry.AmountCents, entry.Kind, entry.Reason, entry.CreatedAt).Scan(&entry.ID)
}

func validateEntry(amountCents int64, kind models.EntryKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, kind)
	}

	switch kind {
	case models.KindSave:
		if amountCents <= 0 {
			return fmt.Errorf("%w: save amount must be positive", ErrInvalidEntry)
		}
	case models.KindAdjust:
		if amountCents == 0 {
			return fmt.Errorf("%w: adjustment must be non-zero", ErrInvalidEntry)
		}
	case models.KindArchive:
		return fmt.Errorf("%w: archive entries are written by the archive operation", ErrInvalidEntry)
	}
	return nil
}

func validUserID(userID string) bool {
	_, err := uuid.Parse(userID)
	return err == nil
}
