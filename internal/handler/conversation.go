package handler

import (
	"log/slog"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"tradedesk/internal/domain"
	"tradedesk/internal/httputil"
)

const maxTitleLength = 200

// ConversationHandler handles conversation CRUD requests.
type ConversationHandler struct {
	conversations domain.ConversationRepository
	logger        *slog.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(conversations domain.ConversationRepository, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		logger:        logger,
	}
}

// CreateConversationRequest is the body for POST /api/conversations.
type CreateConversationRequest struct {
	Title string `json:"title"`
	Mode  string `json:"mode"`
}

func (r CreateConversationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Length(0, maxTitleLength)),
		validation.Field(&r.Mode, validation.In("", "real", "simulated")),
	)
}

// RenameConversationRequest is the body for PATCH /api/conversations/{id}.
type RenameConversationRequest struct {
	Title string `json:"title"`
}

func (r RenameConversationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title,
			validation.Required,
			validation.Length(1, maxTitleLength),
		),
	)
}

// CreateConversation creates a new conversation.
// POST /api/conversations
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req CreateConversationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	title := req.Title
	if title == "" {
		title = "New chat"
	}

	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Mode:      domain.ParseMode(req.Mode),
		Messages:  []domain.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.conversations.Create(r.Context(), conv); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, conv)
}

// ListConversations retrieves all conversations for the authenticated user,
// most recently updated first. Messages are omitted.
// GET /api/conversations
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	convs, err := h.conversations.List(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"conversations": convs,
		"total":         len(convs),
	})
}

// GetConversation retrieves a single conversation with its transcript.
// GET /api/conversations/{id}
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	conv, err := h.conversations.Get(r.Context(), id, httputil.GetUserID(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, conv)
}

// RenameConversation updates a conversation's title.
// PATCH /api/conversations/{id}
func (h *ConversationHandler) RenameConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req RenameConversationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.conversations.Rename(r.Context(), id, httputil.GetUserID(r), req.Title); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]string{"title": req.Title})
}

// DeleteConversation deletes a conversation and its transcript.
// DELETE /api/conversations/{id}
func (h *ConversationHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.conversations.Delete(r.Context(), id, httputil.GetUserID(r)); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pathID extracts and validates the {id} path segment.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Conversation ID is required")
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID format")
		return "", false
	}
	return id, true
}
