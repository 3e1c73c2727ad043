package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	autherrors "reservio/internal/auth/errors"
	"reservio/pkg/config"
	apperrors "reservio/pkg/errors"
	"reservio/pkg/logger"
	"reservio/pkg/model"

	"golang.org/x/crypto/bcrypt"
)

// ────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────

type mockUserRepository struct {
	createFunc      func(ctx context.Context, user *model.User) error
	findByEmailFunc func(ctx context.Context, email string) (*model.User, error)
	findByIDFunc    func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	user.ID = "65f000000000000000000002"
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFunc != nil {
		return m.findByEmailFunc(ctx, email)
	}
	return nil, autherrors.ErrUserNotFound
}

func (m *mockUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, autherrors.ErrUserNotFound
}

// mockTokenStore keeps refresh tokens in memory so rotation chains are
// observable across calls.
type mockTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*model.RefreshToken

	revokedAll map[string]int
}

func newMockTokenStore() *mockTokenStore {
	return &mockTokenStore{
		tokens:     map[string]*model.RefreshToken{},
		revokedAll: map[string]int{},
	}
}

func (m *mockTokenStore) Create(ctx context.Context, token *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *token
	copied.CreatedAt = time.Now()
	m.tokens[token.TokenHash] = &copied
	return nil
}

func (m *mockTokenStore) FindByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[tokenHash]
	if !ok {
		return nil, autherrors.ErrTokenNotFound
	}
	copied := *token
	return &copied, nil
}

func (m *mockTokenStore) Revoke(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[tokenHash]
	if !ok || token.RevokedAt != nil {
		return autherrors.ErrTokenNotFound
	}
	now := time.Now()
	token.RevokedAt = &now
	return nil
}

func (m *mockTokenStore) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokedAll[userID]++
	var count int64
	now := time.Now()
	for _, token := range m.tokens {
		if token.UserID == userID && token.RevokedAt == nil {
			token.RevokedAt = &now
			count++
		}
	}
	return count, nil
}

// ────────────────────────────────────────────────
// Fixtures
// ────────────────────────────────────────────────

func testAuthConfig() *config.Config {
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	return &config.Config{
		Log:             log,
		JWTSecret:       "test-secret-at-least-32-bytes-long!!",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

func userWithPassword(t *testing.T, password string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return &model.User{
		ID:           "65f000000000000000000002",
		Email:        "alice@example.com",
		Name:         "Alice",
		PasswordHash: string(hash),
	}
}

func expectAppError(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, appErr.Code, err)
	}
	return appErr
}

// ────────────────────────────────────────────────
// Register
// ────────────────────────────────────────────────

func TestRegister_Success(t *testing.T) {
	users := &mockUserRepository{}
	service := NewAuthService(users, newMockTokenStore(), testAuthConfig())

	user, err := service.Register(context.Background(), &RegisterRequest{
		Email:    "  Alice@Example.COM ",
		Name:     "  Alice   Smith ",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if user.Email != "alice@example.com" {
		t.Errorf("expected normalized email, got %q", user.Email)
	}
	if user.Name != "Alice Smith" {
		t.Errorf("expected sanitized name, got %q", user.Name)
	}
	if user.PasswordHash == "" || user.PasswordHash == "correct horse battery" {
		t.Error("password must be stored hashed")
	}
}

func TestRegister_EmailTaken(t *testing.T) {
	users := &mockUserRepository{
		createFunc: func(ctx context.Context, user *model.User) error {
			return autherrors.ErrEmailTaken
		},
	}
	service := NewAuthService(users, newMockTokenStore(), testAuthConfig())

	_, err := service.Register(context.Background(), &RegisterRequest{
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "correct horse battery",
	})
	expectAppError(t, err, apperrors.CodeConflict)
}

func TestRegister_Validation(t *testing.T) {
	service := NewAuthService(&mockUserRepository{}, newMockTokenStore(), testAuthConfig())

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"bad email", RegisterRequest{Email: "not-an-email", Name: "Alice", Password: "longenough"}},
		{"short password", RegisterRequest{Email: "alice@example.com", Name: "Alice", Password: "short"}},
		{"missing name", RegisterRequest{Email: "alice@example.com", Password: "longenough"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Register(context.Background(), &tt.req)
			expectAppError(t, err, apperrors.CodeValidation)
		})
	}
}

// ────────────────────────────────────────────────
// Login
// ────────────────────────────────────────────────

func TestLogin_Success(t *testing.T) {
	user := userWithPassword(t, "correct horse battery")
	users := &mockUserRepository{
		findByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			return user, nil
		},
	}
	tokens := newMockTokenStore()
	service := NewAuthService(users, tokens, testAuthConfig())

	pair, err := service.Login(context.Background(), &LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}
	if len(tokens.tokens) != 1 {
		t.Errorf("expected 1 stored refresh token, got %d", len(tokens.tokens))
	}
	for hash := range tokens.tokens {
		if hash == pair.RefreshToken {
			t.Error("refresh token must be stored hashed, not raw")
		}
	}
}

// Wrong password and unknown email produce the same response.
func TestLogin_UniformRejection(t *testing.T) {
	user := userWithPassword(t, "correct horse battery")

	tests := []struct {
		name  string
		users *mockUserRepository
	}{
		{
			name:  "unknown email",
			users: &mockUserRepository{},
		},
		{
			name: "wrong password",
			users: &mockUserRepository{
				findByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
					return user, nil
				},
			},
		},
	}

	var messages []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewAuthService(tt.users, newMockTokenStore(), testAuthConfig())
			_, err := service.Login(context.Background(), &LoginRequest{
				Email:    "alice@example.com",
				Password: "wrong password!!",
			})
			appErr := expectAppError(t, err, apperrors.CodeUnauthorized)
			messages = append(messages, appErr.Message)
		})
	}

	if len(messages) == 2 && messages[0] != messages[1] {
		t.Errorf("rejection messages differ: %q vs %q", messages[0], messages[1])
	}
}

// ────────────────────────────────────────────────
// Refresh
// ────────────────────────────────────────────────

func loginPair(t *testing.T, service AuthService) *TokenPair {
	t.Helper()
	pair, err := service.Login(context.Background(), &LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return pair
}

func authServiceWithUser(t *testing.T) (AuthService, *mockTokenStore) {
	t.Helper()
	user := userWithPassword(t, "correct horse battery")
	users := &mockUserRepository{
		findByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			return user, nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			if id != user.ID {
				return nil, autherrors.ErrUserNotFound
			}
			return user, nil
		},
	}
	tokens := newMockTokenStore()
	return NewAuthService(users, tokens, testAuthConfig()), tokens
}

func TestRefresh_Rotation(t *testing.T) {
	service, tokens := authServiceWithUser(t)
	pair := loginPair(t, service)

	rotated, err := service.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Error("refresh must issue a new token")
	}

	// The presented token is spent; it cannot be used again normally.
	if len(tokens.tokens) != 2 {
		t.Errorf("expected 2 stored tokens after rotation, got %d", len(tokens.tokens))
	}

	// The rotated token still works.
	if _, err := service.Refresh(context.Background(), rotated.RefreshToken); err != nil {
		t.Fatalf("rotated token rejected: %v", err)
	}
}

// Reusing a spent refresh token is treated as theft: every live token the
// user holds is revoked.
func TestRefresh_ReuseRevokesAll(t *testing.T) {
	service, tokens := authServiceWithUser(t)
	pair := loginPair(t, service)

	rotated, err := service.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = service.Refresh(context.Background(), pair.RefreshToken)
	expectAppError(t, err, apperrors.CodeUnauthorized)

	if tokens.revokedAll["65f000000000000000000002"] != 1 {
		t.Error("expected RevokeAllForUser to run on token reuse")
	}

	// The rotated token died with the rest of the chain.
	_, err = service.Refresh(context.Background(), rotated.RefreshToken)
	expectAppError(t, err, apperrors.CodeUnauthorized)
}

func TestRefresh_Expired(t *testing.T) {
	service, tokens := authServiceWithUser(t)
	pair := loginPair(t, service)

	tokens.mu.Lock()
	for _, token := range tokens.tokens {
		token.ExpiresAt = time.Now().Add(-time.Minute)
	}
	tokens.mu.Unlock()

	_, err := service.Refresh(context.Background(), pair.RefreshToken)
	appErr := expectAppError(t, err, apperrors.CodeUnauthorized)
	if !strings.Contains(appErr.Message, "expired") {
		t.Errorf("unexpected message: %s", appErr.Message)
	}
}

func TestRefresh_UnknownToken(t *testing.T) {
	service, _ := authServiceWithUser(t)

	_, err := service.Refresh(context.Background(), "never-issued")
	expectAppError(t, err, apperrors.CodeUnauthorized)
}

// ────────────────────────────────────────────────
// Revoke
// ────────────────────────────────────────────────

func TestRevoke(t *testing.T) {
	service, _ := authServiceWithUser(t)
	pair := loginPair(t, service)

	if err := service.Revoke(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := service.Refresh(context.Background(), pair.RefreshToken)
	expectAppError(t, err, apperrors.CodeUnauthorized)
}
