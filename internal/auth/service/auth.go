package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	autherrors "reservio/internal/auth/errors"
	authmw "reservio/internal/auth/middleware"
	"reservio/internal/auth/repository"
	"reservio/pkg/config"
	apperrors "reservio/pkg/errors"
	"reservio/pkg/model"
	"reservio/pkg/sanitizer"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenPair is what a successful login or refresh returns. The refresh token
// is opaque and single use; presenting it rotates the chain.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*model.User, error)
	Login(ctx context.Context, req *LoginRequest) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
}

type authService struct {
	users    repository.UserRepository
	tokens   repository.RefreshTokenRepository
	validate *validator.Validate
	cfg      *config.Config
}

func NewAuthService(
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	cfg *config.Config,
) AuthService {
	return &authService{
		users:    users,
		tokens:   tokens,
		validate: validator.New(),
		cfg:      cfg,
	}
}

func (s *authService) Register(ctx context.Context, req *RegisterRequest) (*model.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = sanitizer.SanitizeLabel(req.Name)

	if err := s.validate.Struct(req); err != nil {
		s.cfg.Log.Warn("Registration validation failed", "error", err)
		return nil, apperrors.Validation("Invalid registration input", map[string]any{"error": err.Error()})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}

	user := &model.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, autherrors.ErrEmailTaken) {
			return nil, apperrors.Conflict("Email is already registered")
		}
		s.cfg.Log.Error("Failed to create user", "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}

	s.cfg.Log.Info("User registered", "id", user.ID, "email", user.Email)
	return user, nil
}

func (s *authService) Login(ctx context.Context, req *LoginRequest) (*TokenPair, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.Validation("Invalid login input", map[string]any{"error": err.Error()})
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, autherrors.ErrUserNotFound) {
			// Same response as a wrong password, so callers cannot probe
			// which emails are registered.
			return nil, apperrors.Unauthorized("Invalid email or password")
		}
		return nil, apperrors.Internal("Failed to look up user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperrors.Unauthorized("Invalid email or password")
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("User logged in", "id", user.ID)
	return pair, nil
}

// Refresh rotates the chain: the presented token is revoked and a fresh pair
// is issued. Presenting an already revoked token is treated as theft and
// kills every live token the user has.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidInput("Refresh token is required")
	}

	stored, err := s.tokens.FindByHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, autherrors.ErrTokenNotFound) {
			return nil, apperrors.Unauthorized("Invalid refresh token")
		}
		return nil, apperrors.Internal("Failed to look up refresh token", err)
	}

	now := time.Now()
	if stored.RevokedAt != nil {
		s.cfg.Log.Warn("Revoked refresh token presented, revoking all user tokens", "user_id", stored.UserID)
		if _, revokeErr := s.tokens.RevokeAllForUser(ctx, stored.UserID); revokeErr != nil {
			s.cfg.Log.Error("Failed to revoke user tokens", "user_id", stored.UserID, "error", revokeErr)
		}
		return nil, apperrors.Unauthorized("Invalid refresh token")
	}
	if !stored.IsUsable(now) {
		return nil, apperrors.Unauthorized("Refresh token has expired")
	}

	user, err := s.users.FindByID(ctx, stored.UserID)
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid refresh token")
	}

	if err := s.tokens.Revoke(ctx, stored.TokenHash); err != nil {
		return nil, apperrors.Internal("Failed to rotate refresh token", err)
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Refresh token rotated", "user_id", user.ID)
	return pair, nil
}

func (s *authService) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return apperrors.InvalidInput("Refresh token is required")
	}

	if err := s.tokens.Revoke(ctx, hashToken(refreshToken)); err != nil {
		if errors.Is(err, autherrors.ErrTokenNotFound) {
			return apperrors.Unauthorized("Invalid refresh token")
		}
		return apperrors.Internal("Failed to revoke refresh token", err)
	}

	return nil
}

func (s *authService) issueTokenPair(ctx context.Context, user *model.User) (*TokenPair, error) {
	now := time.Now()
	accessExpiry := now.Add(s.cfg.AccessTokenTTL)
	refreshExpiry := now.Add(s.cfg.RefreshTokenTTL)

	claims := authmw.Claims{
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, apperrors.Internal("Failed to sign access token", err)
	}

	refreshToken, err := newOpaqueToken()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate refresh token", err)
	}

	if err := s.tokens.Create(ctx, &model.RefreshToken{
		TokenHash: hashToken(refreshToken),
		UserID:    user.ID,
		ExpiresAt: refreshExpiry,
	}); err != nil {
		return nil, apperrors.Internal("Failed to store refresh token", err)
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// Refresh tokens are opaque 256-bit random strings; only their hash is
// stored.
func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
