package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/ruralpay/stash/internal/middleware"
	"github.com/ruralpay/stash/internal/services"
)

// CommandExecutor runs one chat message.
type CommandExecutor interface {
	Execute(ctx context.Context, sender services.Sender, text string) (string, error)
}

type CommandHandler struct {
	service   CommandExecutor
	validator *services.ValidationHelper
}

func NewCommandHandler(service CommandExecutor) *CommandHandler {
	return &CommandHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// CommandRequest is one inbound chat message
type CommandRequest struct {
	ExternalID int64   `json:"externalId" validate:"required" example:"123456789"`
	MessageID  int64   `json:"messageId,omitempty" example:"1001"`
	Username   *string `json:"username,omitempty" example:"jdoe"`
	FirstName  string  `json:"firstName" validate:"required" example:"John"`
	LastName   *string `json:"lastName,omitempty"`
	Text       string  `json:"text" validate:"required,max=4096" example:"/save 12.34 lunch"`
}

// Handle executes a chat command and returns the reply text
// @Summary Execute chat command
// @Description Run /start, /help, /save, /adjust, /allinvoo or /query for the sender and return the reply. An empty reply means the message was not a command or was a repeated delivery.
// @Tags commands
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CommandRequest true "Chat message"
// @Success 200 {object} object{reply=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 429 {object} object{reply=string}
// @Failure 500 {object} services.ErrorResponse
// @Router /commands [post]
func (h *CommandHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	sender := services.Sender{
		ExternalID: req.ExternalID,
		MessageID:  req.MessageID,
		Username:   req.Username,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
	}

	reply, err := h.service.Execute(r.Context(), sender, req.Text)
	if errors.Is(err, services.ErrRateLimited) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"reply": reply})
		return
	}
	if err != nil {
		caller, _ := middleware.Subject(r.Context())
		log.Printf("[COMMAND] Command from %s failed for external id %d: %v", caller, req.ExternalID, err)
		services.SendErrorResponse(w, "Something went wrong, please try again later", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
