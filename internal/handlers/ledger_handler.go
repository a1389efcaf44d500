package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ruralpay/stash/internal/amount"
	"github.com/ruralpay/stash/internal/config"
	"github.com/ruralpay/stash/internal/models"
	"github.com/ruralpay/stash/internal/services"
)

// UserDirectory registers and looks up ledger owners.
type UserDirectory interface {
	services.UserResolver
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

type LedgerHandler struct {
	users     UserDirectory
	ledger    services.Ledger
	config    *config.LedgerConfig
	validator *services.ValidationHelper
}

func NewLedgerHandler(users UserDirectory, ledger services.Ledger, cfg *config.LedgerConfig) *LedgerHandler {
	return &LedgerHandler{
		users:     users,
		ledger:    ledger,
		config:    cfg,
		validator: services.NewValidationHelper(),
	}
}

// EnsureUserRequest registers an external identity
type EnsureUserRequest struct {
	ExternalID int64   `json:"externalId" validate:"required" example:"123456789"`
	Username   *string `json:"username,omitempty" example:"jdoe"`
	FirstName  string  `json:"firstName" validate:"required" example:"John"`
	LastName   *string `json:"lastName,omitempty" example:"Doe"`
}

// AddEntryRequest appends a save or adjust entry. Amount is decimal text and
// may carry a trailing note, e.g. "12.34 lunch".
type AddEntryRequest struct {
	Kind   string  `json:"kind" validate:"required,oneof=save adjust" example:"save"`
	Amount string  `json:"amount" validate:"required,max=200" example:"12.34 lunch"`
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type BalanceResponse struct {
	CurrentCents int64 `json:"currentCents"`
	HistoryCents int64 `json:"historyCents"`
	GrandCents   int64 `json:"grandCents"`
}

type ArchiveResponse struct {
	MovedCents   int64 `json:"movedCents"`
	HistoryCents int64 `json:"historyCents"`
}

// EnsureUser resolves an external identity to a user id
// @Summary Ensure user
// @Description Return the user id for an external identity, registering it on first contact
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body EnsureUserRequest true "External identity"
// @Success 200 {object} object{userId=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /users [post]
func (h *LedgerHandler) EnsureUser(w http.ResponseWriter, r *http.Request) {
	var req EnsureUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	userID, err := h.users.EnsureUser(r.Context(), req.ExternalID, req.Username, req.FirstName, req.LastName)
	if err != nil {
		log.Printf("[LEDGER] EnsureUser failed for external id %d: %v", req.ExternalID, err)
		services.SendErrorResponse(w, "Failed to register user", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"userId": userID})
}

// GetUser returns a registered user
// @Summary Get user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /users/{userId} [get]
func (h *LedgerHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		h.sendLedgerError(w, "GetUser", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// AddEntry appends an entry to the user's ledger
// @Summary Add entry
// @Description Append a save (positive) or adjust (non-zero, signed) entry
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param request body AddEntryRequest true "Entry"
// @Success 201 {object} models.Entry
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /users/{userId}/entries [post]
func (h *LedgerHandler) AddEntry(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req AddEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	kind := models.EntryKind(req.Kind)
	cents, note, err := amount.Parse(req.Amount, kind == models.KindAdjust)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	reason := req.Reason
	if reason == nil {
		reason = note
	}

	entry, err := h.ledger.AddEntry(r.Context(), userID, cents, kind, reason)
	if err != nil {
		h.sendLedgerError(w, "AddEntry", userID, err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

// GetBalance returns the user's current, history and grand totals
// @Summary Get balance
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} BalanceResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /users/{userId}/balance [get]
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	totals, err := h.ledger.Totals(r.Context(), userID)
	if err != nil {
		h.sendLedgerError(w, "GetBalance", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{
		CurrentCents: totals.CurrentCents,
		HistoryCents: totals.HistoryCents,
		GrandCents:   totals.GrandCents(),
	})
}

// ListEntries returns the most recent entries, newest first
// @Summary List recent entries
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param limit query int false "Number of entries (default 10, max 50)"
// @Success 200 {object} object{entries=[]models.Entry,count=int}
// @Failure 400 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /users/{userId}/entries [get]
func (h *LedgerHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	limit := h.config.DefaultQueryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			services.SendErrorResponse(w, "limit must be a number", http.StatusBadRequest, nil)
			return
		}
		limit = l
	}

	entries, err := h.ledger.RecentEntries(r.Context(), userID, h.config.ClampLimit(limit))
	if err != nil {
		h.sendLedgerError(w, "ListEntries", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// Archive moves the current balance into history
// @Summary Archive (invest) the current balance
// @Description Debit the whole current balance into the history total
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} ArchiveResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse "Nothing to archive"
// @Failure 500 {object} services.ErrorResponse
// @Router /users/{userId}/archive [post]
func (h *LedgerHandler) Archive(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	moved, err := h.ledger.Archive(r.Context(), userID)
	if err != nil {
		h.sendLedgerError(w, "Archive", userID, err)
		return
	}

	totals, err := h.ledger.Totals(r.Context(), userID)
	if err != nil {
		h.sendLedgerError(w, "Archive", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, ArchiveResponse{MovedCents: moved, HistoryCents: totals.HistoryCents})
}

func (h *LedgerHandler) sendLedgerError(w http.ResponseWriter, op, userID string, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidEntry):
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, services.ErrUserNotFound):
		services.SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
	case errors.Is(err, services.ErrNothingToArchive):
		services.SendErrorResponse(w, "Nothing to archive", http.StatusConflict, nil)
	default:
		log.Printf("[LEDGER] %s failed for user %s: %v", op, userID, err)
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
	}
}
