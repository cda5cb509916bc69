package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/campaign"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, subject string, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func authedHandler(t *testing.T) (http.Handler, *string, *bool) {
	t.Helper()
	var gotUser string
	var gotChain bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotChain = IsChainCall(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return UserJWT(testSecret, "chain-secret")(inner), &gotUser, &gotChain
}

func TestUserJWTValidToken(t *testing.T) {
	handler, gotUser, gotChain := authedHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/calling/campaigns/c1/execute", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", testSecret))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if *gotUser != "user-1" {
		t.Errorf("user id: %q", *gotUser)
	}
	if *gotChain {
		t.Error("bearer request marked as chain call")
	}
}

func TestUserJWTRejections(t *testing.T) {
	handler, _, _ := authedHandler(t)

	tests := []struct {
		name  string
		setup func(*http.Request)
	}{
		{"missing header", func(*http.Request) {}},
		{"not bearer", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }},
		{"wrong secret", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", "other-secret"))
		}},
		{"no subject", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, "", testSecret))
		}},
		{"garbage token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer not.a.jwt") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/x", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status: got %d, want 401", rec.Code)
			}
		})
	}
}

func TestUserJWTExpiredToken(t *testing.T) {
	handler, _, _ := authedHandler(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expired token accepted: %d", rec.Code)
	}
}

func TestChainCallBypassesBearer(t *testing.T) {
	handler, gotUser, gotChain := authedHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/calling/campaigns/c1/execute", nil)
	req.Header.Set(campaign.ChainHeader, "true")
	req.Header.Set(campaign.ChainSecretHeader, "chain-secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if !*gotChain {
		t.Error("chain marker not propagated")
	}
	if *gotUser != "" {
		t.Errorf("chain call should carry no bearer identity, got %q", *gotUser)
	}
}

func TestChainCallWrongSecret(t *testing.T) {
	handler, _, _ := authedHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set(campaign.ChainHeader, "true")
	req.Header.Set(campaign.ChainSecretHeader, "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong chain secret accepted: %d", rec.Code)
	}
}
