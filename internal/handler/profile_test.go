package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"tradedesk/internal/domain"
)

// memProfiles is an in-memory ProfileRepository keyed by user id.
type memProfiles struct {
	profiles map[string]*domain.UserProfile
}

func newMemProfiles() *memProfiles {
	return &memProfiles{profiles: make(map[string]*domain.UserProfile)}
}

func (m *memProfiles) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	if p, ok := m.profiles[userID]; ok {
		return p, nil
	}
	return nil, &domain.NotFoundError{Message: "profile not found"}
}

func (m *memProfiles) GetByPhone(ctx context.Context, phone string) (*domain.UserProfile, error) {
	for _, p := range m.profiles {
		if p.PhoneNumber == phone {
			return p, nil
		}
	}
	return nil, &domain.NotFoundError{Message: "profile not found"}
}

func (m *memProfiles) Upsert(ctx context.Context, profile *domain.UserProfile) error {
	m.profiles[profile.UserID] = profile
	return nil
}

func newProfileMux(repo domain.ProfileRepository) *http.ServeMux {
	h := NewProfileHandler(repo, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/profile", h.GetProfile)
	mux.HandleFunc("PUT /api/profile", h.UpdateProfile)
	return mux
}

func TestGetProfileDefaultsWhenMissing(t *testing.T) {
	mux := newProfileMux(newMemProfiles())

	rec := doRequest(t, mux, http.MethodGet, "/api/profile", "", "user-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp profileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UserID != "user-1" {
		t.Errorf("user_id = %q, want user-1", resp.UserID)
	}
	if resp.Bio != "" || resp.TradeThreshold != nil || resp.CredentialsConfigured {
		t.Errorf("expected zero-value defaults, got %+v", resp)
	}
}

func TestUpdateProfileRoundTrip(t *testing.T) {
	repo := newMemProfiles()
	mux := newProfileMux(repo)

	body := `{"bio":"Swing trader","trade_threshold":50000,"phone_number":"+911234567890","broker_api_key":"kite-key-123","broker_token":"kite-token-456"}`
	rec := doRequest(t, mux, http.MethodPut, "/api/profile", body, "user-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp profileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.CredentialsConfigured {
		t.Error("credentials_configured = false, want true")
	}
	if raw := rec.Body.String(); strings.Contains(raw, "kite-key-123") || strings.Contains(raw, "kite-token-456") {
		t.Errorf("response leaks credentials: %s", raw)
	}

	saved, err := repo.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("profile not persisted: %v", err)
	}
	if saved.Bio != "Swing trader" || saved.BrokerAPIKey != "kite-key-123" {
		t.Errorf("persisted profile = %+v", saved)
	}
	if saved.TradeThreshold == nil || *saved.TradeThreshold != 50000 {
		t.Errorf("trade_threshold = %v, want 50000", saved.TradeThreshold)
	}
}

func TestUpdateProfileRejectsNegativeThreshold(t *testing.T) {
	mux := newProfileMux(newMemProfiles())

	rec := doRequest(t, mux, http.MethodPut, "/api/profile", `{"trade_threshold":-1}`, "user-1")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
