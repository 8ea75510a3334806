package handler

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"tradedesk/internal/domain"
	"tradedesk/internal/handler/sse"
	"tradedesk/internal/httputil"
	"tradedesk/internal/orchestrator"
)

// maxAttachmentMemory bounds the in-memory portion of multipart parsing.
const maxAttachmentMemory = 32 << 20

// ChatHandler handles message turns: the SSE streaming path and the
// plain request/response path.
type ChatHandler struct {
	turns         *orchestrator.Orchestrator
	conversations domain.ConversationRepository
	sseConfig     *sse.Config
	logger        *slog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(
	turns *orchestrator.Orchestrator,
	conversations domain.ConversationRepository,
	sseConfig *sse.Config,
	logger *slog.Logger,
) *ChatHandler {
	return &ChatHandler{
		turns:         turns,
		conversations: conversations,
		sseConfig:     sseConfig,
		logger:        logger,
	}
}

// StreamMessage runs one turn and streams its events to the client.
// POST /api/conversations/{id}/messages/stream
//
// Accepts either a JSON body {"message": "..."} or multipart/form-data
// with a "message" field and optional "files" parts.
func (h *ChatHandler) StreamMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	userID := httputil.GetUserID(r)

	text, attachments, err := h.parseTurnInput(w, r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.conversations.Get(r.Context(), id, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	keepAlive := sse.NewTickerKeepAlive(h.sseConfig.KeepAliveInterval)
	keepAliveDone := keepAlive.Start(writer, h.logger)
	defer func() {
		// The ResponseWriter must not be touched after this handler
		// returns, so wait for the keep-alive loop to exit.
		keepAlive.Stop()
		<-keepAliveDone
	}()

	// The turn must outlive the HTTP request: a client that drops
	// mid-stream still gets its messages persisted.
	turnCtx := context.WithoutCancel(r.Context())
	events := h.turns.ProcessTurn(turnCtx, orchestrator.TurnRequest{
		UserID:         userID,
		ConversationID: conv.ID,
		Text:           text,
		Mode:           conv.Mode,
		History:        conv.Messages,
		Attachments:    attachments,
	})

	connected := true
	for ev := range events {
		if !connected {
			continue // drain so the turn goroutine finishes
		}
		if err := writer.WriteData(framePayload(ev)); err != nil {
			h.logger.Debug("client disconnected mid-stream",
				"conversation_id", conv.ID,
				"error", err,
			)
			connected = false
		}
	}
}

// SendMessage runs one turn and returns the assistant reply in a single
// JSON response. Structured payloads are included alongside the text.
// POST /api/conversations/{id}/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	userID := httputil.GetUserID(r)

	text, attachments, err := h.parseTurnInput(w, r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.conversations.Get(r.Context(), id, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	events := h.turns.ProcessTurn(context.WithoutCancel(r.Context()), orchestrator.TurnRequest{
		UserID:         userID,
		ConversationID: conv.ID,
		Text:           text,
		Mode:           conv.Mode,
		History:        conv.Messages,
		Attachments:    attachments,
	})

	var reply strings.Builder
	var payloads []string
	title := ""
	for ev := range events {
		switch ev.Kind {
		case orchestrator.EventText:
			reply.WriteString(ev.Data)
		case orchestrator.EventHoldings, orchestrator.EventStocks:
			payloads = append(payloads, framePayload(ev))
		case orchestrator.EventTitle:
			title = ev.Data
		}
	}

	resp := map[string]any{"reply": reply.String()}
	if len(payloads) > 0 {
		resp["payloads"] = payloads
	}
	if title != "" {
		resp["title"] = title
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// framePayload renders one turn event as the wire payload the client
// parses: plain text for prose, a tag prefix for structured frames.
func framePayload(ev orchestrator.Event) string {
	switch ev.Kind {
	case orchestrator.EventHoldings:
		return "[HOLDINGS] " + ev.Data
	case orchestrator.EventStocks:
		return "[STOCKS] " + ev.Data
	case orchestrator.EventTitle:
		return "[TITLE] " + ev.Data
	case orchestrator.EventDone:
		return "[DONE]"
	default:
		return ev.Data
	}
}

// parseTurnInput extracts the message text and attachments from either a
// JSON or multipart request body.
func (h *ChatHandler) parseTurnInput(w http.ResponseWriter, r *http.Request) (string, []orchestrator.Attachment, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req struct {
			Message string `json:"message"`
		}
		if err := httputil.ParseJSON(w, r, &req); err != nil {
			return "", nil, err
		}
		return req.Message, nil, nil
	}

	if err := r.ParseMultipartForm(maxAttachmentMemory); err != nil {
		return "", nil, err
	}

	text := r.FormValue("message")
	var attachments []orchestrator.Attachment
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["files"] {
			file, err := header.Open()
			if err != nil {
				h.logger.Warn("failed to open uploaded file",
					"filename", header.Filename, "error", err)
				attachments = append(attachments, orchestrator.Attachment{Name: header.Filename})
				continue
			}
			data, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				h.logger.Warn("failed to read uploaded file",
					"filename", header.Filename, "error", err)
				data = nil
			}
			attachments = append(attachments, orchestrator.Attachment{
				Name:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	return text, attachments, nil
}
