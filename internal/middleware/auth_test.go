package middleware

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"tradedesk/internal/auth"
	"tradedesk/internal/httputil"
)

type fakeVerifier struct {
	subject string
}

func (f *fakeVerifier) VerifyToken(token string) (*auth.Claims, error) {
	if token != "valid-token" {
		return nil, fmt.Errorf("bad token")
	}
	claims := &auth.Claims{}
	claims.RegisteredClaims = jwt.RegisteredClaims{Subject: f.subject}
	return claims, nil
}

func (f *fakeVerifier) Close() error { return nil }

func newAuthChain(verifier auth.JWTVerifier) (http.Handler, *string) {
	var seenUser string
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = httputil.GetUserID(r)
		w.WriteHeader(http.StatusOK)
	})
	return Auth(verifier, logger)(next), &seenUser
}

func TestAuthAcceptsBearerToken(t *testing.T) {
	handler, seenUser := newAuthChain(&fakeVerifier{subject: "user-42"})

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if *seenUser != "user-42" {
		t.Errorf("user id = %q, want user-42", *seenUser)
	}
}

func TestAuthRejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"empty token", "Bearer "},
		{"invalid token", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, seenUser := newAuthChain(&fakeVerifier{subject: "user-42"})

			req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if *seenUser != "" {
				t.Errorf("handler reached with user %q", *seenUser)
			}
		})
	}
}
