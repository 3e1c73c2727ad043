package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reservio/pkg/logger"
	"reservio/pkg/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
)

const testSecret = "test-secret-at-least-32-bytes-long!!"

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
}

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func validClaims(subject string, isAdmin bool) Claims {
	now := time.Now()
	return Claims{
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		},
	}
}

func TestAuthenticate(t *testing.T) {
	m := New(testSecret, testLogger())

	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectedUserID string
	}{
		{
			name:           "valid token",
			header:         "Bearer " + signToken(t, testSecret, validClaims("65f000000000000000000002", false)),
			expectedStatus: http.StatusOK,
			expectedUserID: "65f000000000000000000002",
		},
		{
			name:           "missing header",
			header:         "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "not a bearer token",
			header:         "Basic dXNlcjpwYXNz",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrong secret",
			header:         "Bearer " + signToken(t, "some-other-secret-entirely-here!!!!!", validClaims("65f000000000000000000002", false)),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "expired token",
			header: "Bearer " + signToken(t, testSecret, Claims{
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   "65f000000000000000000002",
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
				},
			}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "missing subject",
			header:         "Bearer " + signToken(t, testSecret, validClaims("", false)),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen model.Identity
			handler := m.Authenticate(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
				seen, _ = IdentityFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler(rec, req, nil)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.expectedUserID != "" && seen.UserID != tt.expectedUserID {
				t.Errorf("expected identity %s, got %s", tt.expectedUserID, seen.UserID)
			}
		})
	}
}

// The "none" algorithm must never be accepted, even with a syntactically
// valid token.
func TestAuthenticate_RejectsUnsignedToken(t *testing.T) {
	m := New(testSecret, testLogger())

	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims("65f000000000000000000002", true))
	unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	handler := m.Authenticate(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		t.Error("handler must not run for an unsigned token")
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+unsigned)
	rec := httptest.NewRecorder()

	handler(rec, req, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	m := New(testSecret, testLogger())

	tests := []struct {
		name           string
		isAdmin        bool
		expectedStatus int
	}{
		{"admin passes", true, http.StatusOK},
		{"non-admin rejected", false, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := m.Authenticate(m.RequireAdmin(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
				w.WriteHeader(http.StatusOK)
			}))

			token := signToken(t, testSecret, validClaims("65f000000000000000000002", tt.isAdmin))
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			handler(rec, req, nil)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}
