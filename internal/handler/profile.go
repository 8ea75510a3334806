package handler

import (
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"tradedesk/internal/domain"
	"tradedesk/internal/httputil"
)

const maxBioLength = 2000

// ProfileHandler handles per-user settings: bio, trade threshold, and
// brokerage credentials.
type ProfileHandler struct {
	profiles domain.ProfileRepository
	logger   *slog.Logger
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(profiles domain.ProfileRepository, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   logger,
	}
}

// UpdateProfileRequest is the body for PUT /api/profile. Credential fields
// are write-only: they are accepted here and never echoed back.
type UpdateProfileRequest struct {
	Bio            string   `json:"bio"`
	TradeThreshold *float64 `json:"trade_threshold"`
	PhoneNumber    string   `json:"phone_number"`
	BrokerAPIKey   string   `json:"broker_api_key"`
	BrokerToken    string   `json:"broker_token"`
}

func (r UpdateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Bio, validation.Length(0, maxBioLength)),
		validation.Field(&r.TradeThreshold, validation.Min(0.0)),
	)
}

// profileResponse is the outbound shape: credentials reduced to a
// configured/not-configured flag.
type profileResponse struct {
	UserID                string   `json:"user_id"`
	Bio                   string   `json:"bio"`
	TradeThreshold        *float64 `json:"trade_threshold"`
	PhoneNumber           string   `json:"phone_number"`
	CredentialsConfigured bool     `json:"credentials_configured"`
}

// GetProfile retrieves the authenticated user's profile. Users that have
// never saved a profile get zero-value defaults.
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	profile, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			profile = &domain.UserProfile{UserID: userID}
		} else {
			handleError(w, err)
			return
		}
	}

	httputil.RespondJSON(w, http.StatusOK, profileResponse{
		UserID:                profile.UserID,
		Bio:                   profile.Bio,
		TradeThreshold:        profile.TradeThreshold,
		PhoneNumber:           profile.PhoneNumber,
		CredentialsConfigured: profile.BrokerAPIKey != "" && profile.BrokerToken != "",
	})
}

// UpdateProfile upserts the authenticated user's profile.
// PUT /api/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req UpdateProfileRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile := &domain.UserProfile{
		UserID:         userID,
		Bio:            req.Bio,
		TradeThreshold: req.TradeThreshold,
		PhoneNumber:    req.PhoneNumber,
		BrokerAPIKey:   req.BrokerAPIKey,
		BrokerToken:    req.BrokerToken,
	}
	if err := h.profiles.Upsert(r.Context(), profile); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, profileResponse{
		UserID:                profile.UserID,
		Bio:                   profile.Bio,
		TradeThreshold:        profile.TradeThreshold,
		PhoneNumber:           profile.PhoneNumber,
		CredentialsConfigured: profile.BrokerAPIKey != "" && profile.BrokerToken != "",
	})
}
