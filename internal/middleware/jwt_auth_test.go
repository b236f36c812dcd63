package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key"

func newTestJWTMiddleware(t *testing.T) *JWTAuthMiddleware {
	t.Helper()
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return NewJWTAuthMiddleware(&JWTAuthConfig{
		Enabled:           true,
		AdminUsername:     "admin",
		AdminPasswordHash: hash,
		JWTSecret:         testSecret,
		JWTExpiryHours:    1,
		SkipPaths:         []string{"/health", "/auth/login", "/static/*"},
		QueryTokenPaths:   []string{"/ws/live"},
	})
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(GetUserFromContext(r.Context())))
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	m := newTestJWTMiddleware(t)

	token, err := m.GenerateToken("admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Username != "admin" || claims.Issuer != tokenIssuer {
		t.Errorf("claims = %+v", claims)
	}
	if m.TokenExpiry() != time.Hour {
		t.Errorf("TokenExpiry = %v, want 1h", m.TokenExpiry())
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	m := newTestJWTMiddleware(t)

	sign := func(method jwt.SigningMethod, key interface{}, claims UserClaims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	valid := func() UserClaims {
		return UserClaims{
			Username: "admin",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    tokenIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	otherIssuer := valid()
	otherIssuer.Issuer = "someone-else"
	noExpiry := valid()
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign(jwt.SigningMethodHS256, []byte("other"), valid())},
		{"expired", sign(jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{"other issuer", sign(jwt.SigningMethodHS256, []byte(testSecret), otherIssuer)},
		{"no expiry", sign(jwt.SigningMethodHS256, []byte(testSecret), noExpiry)},
		{"other algorithm", sign(jwt.SigningMethodHS512, []byte(testSecret), valid())},
		{"garbage", "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.ValidateToken(tt.token); err == nil {
				t.Error("expected token to be rejected")
			}
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	m := newTestJWTMiddleware(t)

	if !m.ValidateCredentials("admin", "s3cret") {
		t.Error("expected valid credentials")
	}
	if m.ValidateCredentials("admin", "wrong") {
		t.Error("expected wrong password to fail")
	}
	if m.ValidateCredentials("root", "s3cret") {
		t.Error("expected wrong username to fail")
	}
}

func TestWrap(t *testing.T) {
	m := newTestJWTMiddleware(t)
	token, err := m.GenerateToken("admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	handler := m.Wrap(echoUser())

	tests := []struct {
		name       string
		method     string
		target     string
		authHeader string
		wantStatus int
		wantUser   string
	}{
		{"missing token", http.MethodGet, "/api/incidents", "", http.StatusUnauthorized, ""},
		{"bearer token", http.MethodGet, "/api/incidents", "Bearer " + token, http.StatusOK, "admin"},
		{"invalid token", http.MethodGet, "/api/incidents", "Bearer nope", http.StatusUnauthorized, ""},
		{"basic scheme", http.MethodGet, "/api/incidents", "Basic abc", http.StatusUnauthorized, ""},
		{"skip exact", http.MethodGet, "/health", "", http.StatusOK, ""},
		{"skip login", http.MethodPost, "/auth/login", "", http.StatusOK, ""},
		{"skip prefix", http.MethodGet, "/static/app.js", "", http.StatusOK, ""},
		{"preflight", http.MethodOptions, "/api/incidents", "", http.StatusOK, ""},
		{"query token on ws", http.MethodGet, "/ws/live?token=" + token, "", http.StatusOK, "admin"},
		{"query token elsewhere", http.MethodGet, "/api/incidents?token=" + token, "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusOK && w.Body.String() != tt.wantUser {
				t.Errorf("user = %q, want %q", w.Body.String(), tt.wantUser)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				if !strings.Contains(w.Header().Get("WWW-Authenticate"), "Bearer") {
					t.Errorf("missing WWW-Authenticate header")
				}
				if !strings.Contains(w.Body.String(), `"code":"unauthorized"`) {
					t.Errorf("body = %s", w.Body.String())
				}
			}
		})
	}
}

func TestWrap_Disabled(t *testing.T) {
	m := NewJWTAuthMiddleware(&JWTAuthConfig{Enabled: false})
	handler := m.Wrap(echoUser())

	req := httptest.NewRequest(http.MethodGet, "/api/incidents", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when auth is disabled", w.Code)
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash should not equal the plaintext")
	}
	if !CheckPassword("hunter2", hash) {
		t.Error("expected password to match")
	}
	if CheckPassword("hunter3", hash) {
		t.Error("expected mismatch")
	}
}
