package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/ruralpay/stash/internal/models"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint conflict.
const uniqueViolation = "23505"

type UserRegistry struct {
	db *sqlx.DB
}

func NewUserRegistry(db *sqlx.DB) *UserRegistry {
	return &UserRegistry{db: db}
}

// EnsureUser returns the id registered for externalID, creating the user on
// first contact. Metadata is stored only on creation.
func (r *UserRegistry) EnsureUser(ctx context.Context, externalID int64, username *string, firstName string, lastName *string) (string, error) {
	id, err := r.findByExternalID(ctx, externalID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("error looking up user: %w", err)
	}

	id = uuid.New().String()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, external_id, username, first_name, last_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, externalID, username, firstName, lastName, time.Now().UTC())
	if err == nil {
		log.Printf("[REGISTRY] Registered user %s for external id %d", id, externalID)
		return id, nil
	}

	// Another request registered the same identity first; use its row.
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		id, err := r.findByExternalID(ctx, externalID)
		if err != nil {
			return "", fmt.Errorf("error reading concurrently created user: %w", err)
		}
		return id, nil
	}

	return "", fmt.Errorf("error creating user: %w", err)
}

func (r *UserRegistry) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if !validUserID(userID) {
		return nil, ErrUserNotFound
	}

	var user models.User
	err := r.db.GetContext(ctx, &user, `
		SELECT id, external_id, username, first_name, last_name, created_at
		FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	return &user, nil
}

func (r *UserRegistry) findByExternalID(ctx context.Context, externalID int64) (string, error) {
	var id string
	err := r.db.GetContext(ctx, &id, `SELECT id FROM users WHERE external_id = $1`, externalID)
	return id, err
}
