package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "reservio/pkg/errors"
	httputil "reservio/pkg/http"
	"reservio/pkg/logger"
	"reservio/pkg/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
)

type contextKey string

const identityKey contextKey = "identity"

// Claims is the access token payload. "adm" marks administrators; everything
// else is standard registered claims.
type Claims struct {
	IsAdmin bool `json:"adm"`
	jwt.RegisteredClaims
}

// Middleware authenticates requests and establishes the caller's Identity.
// Token validation happens exactly once per request; domain services receive
// the Identity as plain data.
type Middleware struct {
	secret []byte
	log    *logger.Logger
}

func New(secret string, log *logger.Logger) *Middleware {
	return &Middleware{
		secret: []byte(secret),
		log:    log,
	}
}

// Authenticate rejects requests without a valid Bearer access token and puts
// the caller's Identity into the request context.
func (m *Middleware) Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := extractBearerToken(r)
		if token == "" {
			m.writeAuthError(w, apperrors.Unauthorized("Missing or malformed Authorization header"))
			return
		}

		identity, err := m.verify(token)
		if err != nil {
			m.log.Warn("Token verification failed", "path", r.URL.Path, "error", err)
			m.writeAuthError(w, apperrors.Unauthorized("Invalid or expired access token"))
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next(w, r.WithContext(ctx), ps)
	}
}

// RequireAdmin must run inside Authenticate.
func (m *Middleware) RequireAdmin(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok || !identity.IsAdmin {
			m.writeAuthError(w, apperrors.Forbidden("Administrator access required"))
			return
		}
		next(w, r, ps)
	}
}

func (m *Middleware) verify(tokenString string) (model.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return model.Identity{}, err
	}
	if !token.Valid || claims.Subject == "" {
		return model.Identity{}, jwt.ErrTokenInvalidClaims
	}

	return model.Identity{
		UserID:  claims.Subject,
		IsAdmin: claims.IsAdmin,
	}, nil
}

func (m *Middleware) writeAuthError(w http.ResponseWriter, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		m.log.Error("failed to write auth error response", "error", writeErr)
	}
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(model.Identity)
	return identity, ok
}

// ContextWithIdentity is a test helper for exercising protected handlers and
// services without a real token.
func ContextWithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}
