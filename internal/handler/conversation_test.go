package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"tradedesk/internal/domain"
	"tradedesk/internal/httputil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memConversations is an in-memory ConversationRepository.
type memConversations struct {
	convs map[string]*domain.Conversation
}

func newMemConversations() *memConversations {
	return &memConversations{convs: make(map[string]*domain.Conversation)}
}

func (m *memConversations) Create(ctx context.Context, conv *domain.Conversation) error {
	m.convs[conv.ID] = conv
	return nil
}

func (m *memConversations) Get(ctx context.Context, id, userID string) (*domain.Conversation, error) {
	conv, ok := m.convs[id]
	if !ok || conv.UserID != userID {
		return nil, &domain.NotFoundError{Message: "conversation not found"}
	}
	return conv, nil
}

func (m *memConversations) List(ctx context.Context, userID string) ([]domain.Conversation, error) {
	var out []domain.Conversation
	for _, conv := range m.convs {
		if conv.UserID == userID {
			out = append(out, *conv)
		}
	}
	return out, nil
}

func (m *memConversations) Rename(ctx context.Context, id, userID, title string) error {
	conv, err := m.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	conv.Title = title
	return nil
}

func (m *memConversations) Delete(ctx context.Context, id, userID string) error {
	if _, err := m.Get(ctx, id, userID); err != nil {
		return err
	}
	delete(m.convs, id)
	return nil
}

func (m *memConversations) AppendMessages(ctx context.Context, id string, at time.Time, msgs ...domain.Message) error {
	conv, ok := m.convs[id]
	if !ok {
		return &domain.NotFoundError{Message: "conversation not found"}
	}
	conv.Messages = append(conv.Messages, msgs...)
	conv.UpdatedAt = at
	return nil
}

func (m *memConversations) SetTitle(ctx context.Context, id, title string) error {
	if conv, ok := m.convs[id]; ok {
		conv.Title = title
	}
	return nil
}

// newConversationMux routes requests through a real ServeMux so path
// values resolve the way they do in production.
func newConversationMux(repo domain.ConversationRepository) *http.ServeMux {
	h := NewConversationHandler(repo, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/conversations", h.CreateConversation)
	mux.HandleFunc("GET /api/conversations", h.ListConversations)
	mux.HandleFunc("GET /api/conversations/{id}", h.GetConversation)
	mux.HandleFunc("PATCH /api/conversations/{id}", h.RenameConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", h.DeleteConversation)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, target, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req = httputil.WithUserID(req, userID)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestCreateConversationDefaults(t *testing.T) {
	mux := newConversationMux(newMemConversations())

	rec := doRequest(t, mux, http.MethodPost, "/api/conversations", `{}`, "user-1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var conv domain.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if conv.Title != "New chat" {
		t.Errorf("title = %q, want %q", conv.Title, "New chat")
	}
	if conv.Mode != domain.ModeReal {
		t.Errorf("mode = %q, want %q", conv.Mode, domain.ModeReal)
	}
	if conv.UserID != "user-1" {
		t.Errorf("user id = %q, want user-1", conv.UserID)
	}
	if _, err := uuid.Parse(conv.ID); err != nil {
		t.Errorf("id %q is not a UUID", conv.ID)
	}
}

func TestCreateConversationValidation(t *testing.T) {
	mux := newConversationMux(newMemConversations())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"bad mode", `{"mode":"paper"}`, http.StatusBadRequest},
		{"simulated mode", `{"mode":"simulated","title":"Sim run"}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, mux, http.MethodPost, "/api/conversations", tt.body, "user-1")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body: %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestGetConversationScopedToUser(t *testing.T) {
	repo := newMemConversations()
	id := uuid.New().String()
	repo.convs[id] = &domain.Conversation{ID: id, UserID: "owner", Title: "Mine"}
	mux := newConversationMux(repo)

	if rec := doRequest(t, mux, http.MethodGet, "/api/conversations/"+id, "", "owner"); rec.Code != http.StatusOK {
		t.Errorf("owner get status = %d, want 200", rec.Code)
	}
	if rec := doRequest(t, mux, http.MethodGet, "/api/conversations/"+id, "", "intruder"); rec.Code != http.StatusNotFound {
		t.Errorf("intruder get status = %d, want 404", rec.Code)
	}
}

func TestGetConversationRejectsBadID(t *testing.T) {
	mux := newConversationMux(newMemConversations())

	rec := doRequest(t, mux, http.MethodGet, "/api/conversations/not-a-uuid", "", "user-1")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRenameConversation(t *testing.T) {
	repo := newMemConversations()
	id := uuid.New().String()
	repo.convs[id] = &domain.Conversation{ID: id, UserID: "user-1", Title: "Old"}
	mux := newConversationMux(repo)

	rec := doRequest(t, mux, http.MethodPatch, "/api/conversations/"+id, `{"title":"New name"}`, "user-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	if repo.convs[id].Title != "New name" {
		t.Errorf("title = %q, want %q", repo.convs[id].Title, "New name")
	}

	rec = doRequest(t, mux, http.MethodPatch, "/api/conversations/"+id, `{"title":""}`, "user-1")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty title status = %d, want 400", rec.Code)
	}
}

func TestDeleteConversation(t *testing.T) {
	repo := newMemConversations()
	id := uuid.New().String()
	repo.convs[id] = &domain.Conversation{ID: id, UserID: "user-1"}
	mux := newConversationMux(repo)

	rec := doRequest(t, mux, http.MethodDelete, "/api/conversations/"+id, "", "user-1")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec := doRequest(t, mux, http.MethodDelete, "/api/conversations/"+id, "", "user-1"); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}
