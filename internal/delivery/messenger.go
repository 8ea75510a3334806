package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Messenger sends an outbound reply back to the provider that delivered
// the inbound webhook message.
type Messenger interface {
	SendMessage(ctx context.Context, to, body string) error
}

// TwilioConfig carries the provider credentials and sender identity.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string // e.g. "whatsapp:+14155238886"
}

// TwilioMessenger delivers replies over the Twilio messaging REST API.
type TwilioMessenger struct {
	httpClient *http.Client
	baseURL    string
	cfg        TwilioConfig
	logger     *slog.Logger
}

// NewTwilioMessenger creates a Twilio-backed messenger.
func NewTwilioMessenger(cfg TwilioConfig, logger *slog.Logger) *TwilioMessenger {
	return &TwilioMessenger{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api.twilio.com/2010-04-01",
		cfg:        cfg,
		logger:     logger,
	}
}

// SendMessage posts one message to the provider. The recipient keeps the
// channel prefix it arrived with (e.g. "whatsapp:+911234567890").
func (m *TwilioMessenger) SendMessage(ctx context.Context, to, body string) error {
	if m.cfg.AccountSID == "" || m.cfg.AuthToken == "" {
		return fmt.Errorf("messenger credentials not configured")
	}

	form := url.Values{}
	form.Set("From", m.cfg.From)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", m.baseURL, m.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(m.cfg.AccountSID, m.cfg.AuthToken)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Message == "" {
			apiErr.Message = string(raw)
		}
		return fmt.Errorf("provider rejected message (status %d): %s", resp.StatusCode, apiErr.Message)
	}
	return nil
}
