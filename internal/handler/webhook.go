package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"tradedesk/internal/delivery"
	"tradedesk/internal/domain"
	"tradedesk/internal/httputil"
)

const webhookConversationTitle = "WhatsApp Chat"

// WebhookHandler accepts inbound provider messages and hands them to the
// background queue. The provider gets its answer before the turn runs.
type WebhookHandler struct {
	queue         *delivery.Queue
	profiles      domain.ProfileRepository
	conversations domain.ConversationRepository
	logger        *slog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(
	queue *delivery.Queue,
	profiles domain.ProfileRepository,
	conversations domain.ConversationRepository,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		queue:         queue,
		profiles:      profiles,
		conversations: conversations,
		logger:        logger,
	}
}

// ReceiveMessage handles an inbound WhatsApp message.
// POST /api/webhook/whatsapp
//
// Twilio-style form payload: Body is the message text, From the sender in
// "whatsapp:+<phone>" form. Responds 202 once the task is queued; a full
// queue gets 503 so the provider retries.
func (h *WebhookHandler) ReceiveMessage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	body := r.PostFormValue("Body")
	from := r.PostFormValue("From")
	if body == "" || from == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Body and From are required")
		return
	}

	phone := strings.TrimPrefix(from, "whatsapp:")
	profile, err := h.profiles.GetByPhone(r.Context(), phone)
	if err != nil {
		h.logger.Warn("webhook from unlinked phone", "error", err)
		// 200 so the provider does not retry a permanent failure.
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Ignored"))
		return
	}

	conv, err := h.webhookConversation(r, profile.UserID)
	if err != nil {
		handleError(w, err)
		return
	}

	queued := h.queue.Enqueue(delivery.Task{
		UserID:         profile.UserID,
		ConversationID: conv.ID,
		ReplyTo:        from,
		Text:           body,
	})
	if !queued {
		httputil.RespondError(w, http.StatusServiceUnavailable, "queue full, retry later")
		return
	}

	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("Accepted"))
}

// webhookConversation finds the user's dedicated webhook conversation,
// creating it on first contact.
func (h *WebhookHandler) webhookConversation(r *http.Request, userID string) (*domain.Conversation, error) {
	convs, err := h.conversations.List(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		if convs[i].Title == webhookConversationTitle {
			return &convs[i], nil
		}
	}

	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     webhookConversationTitle,
		Mode:      domain.ModeSimulated,
		Messages:  []domain.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.conversations.Create(r.Context(), conv); err != nil {
		return nil, err
	}
	return conv, nil
}
