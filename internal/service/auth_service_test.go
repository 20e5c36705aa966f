package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cantolico/guard/internal/audit"
	"github.com/cantolico/guard/internal/loginmon"
	"github.com/cantolico/guard/internal/models"
	"github.com/cantolico/guard/internal/repository"
	"github.com/cantolico/guard/pkg/tokens"
)

type authFixture struct {
	svc  *AuthService
	repo *repository.MemoryRepository
	mr   *miniredis.Miniredis
}

func setupAuth(t *testing.T) *authFixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := repository.NewMemoryRepository()
	writer := audit.NewWriter(repo, nil, nil, audit.Config{})
	monitor := loginmon.NewMonitor(client, writer, nil, loginmon.Config{
		FailureWindow:    15 * time.Minute,
		FailureThreshold: 5,
		LockoutDuration:  15 * time.Minute,
	})
	tg := tokens.NewTokenGenerator("test-secret", 15*time.Minute)

	return &authFixture{
		svc:  NewAuthService(repo, tg, monitor, writer, nil),
		repo: repo,
		mr:   mr,
	}
}

func (f *authFixture) seedUser(t *testing.T, email, password string, enabled bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		Email:        email,
		Name:         "Test User",
		Role:         models.RoleUser,
		PasswordHash: string(hash),
		Enabled:      enabled,
	}
	require.NoError(t, f.repo.CreateUser(context.Background(), user))
	return user
}

func (f *authFixture) eventTypes(t *testing.T) []string {
	t.Helper()
	events, err := f.repo.ListSecurityEvents(context.Background(), &models.ListEventsRequest{Limit: 100})
	require.NoError(t, err)
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.EventType
	}
	return types
}

func TestLogin_Success(t *testing.T) {
	f := setupAuth(t)
	f.seedUser(t, "maria@cantolico.pt", "s3gr3do", true)

	resp, err := f.svc.Login(context.Background(), &models.LoginRequest{
		Email:    "maria@cantolico.pt",
		Password: "s3gr3do",
	}, "203.0.113.4", "ua")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int((15 * time.Minute).Seconds()), resp.ExpiresIn)

	assert.Contains(t, f.eventTypes(t), models.EventLoginSuccess)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := setupAuth(t)
	f.seedUser(t, "maria@cantolico.pt", "s3gr3do", true)

	_, err := f.svc.Login(context.Background(), &models.LoginRequest{
		Email:    "maria@cantolico.pt",
		Password: "errado",
	}, "203.0.113.4", "ua")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Contains(t, f.eventTypes(t), models.EventLoginFailure)
}

func TestLogin_UnknownEmailSameError(t *testing.T) {
	f := setupAuth(t)
	f.seedUser(t, "maria@cantolico.pt", "s3gr3do", true)

	_, wrongPw := f.svc.Login(context.Background(), &models.LoginRequest{
		Email:    "maria@cantolico.pt",
		Password: "errado",
	}, "203.0.113.4", "ua")
	_, unknown := f.svc.Login(context.Background(), &models.LoginRequest{
		Email:    "ninguem@cantolico.pt",
		Password: "tanto-faz",
	}, "203.0.113.4", "ua")

	// Account enumeration is prevented by returning the identical error.
	assert.Equal(t, wrongPw, unknown)
}

func TestLogin_DisabledAccount(t *testing.T) {
	f := setupAuth(t)
	f.seedUser(t, "antigo@cantolico.pt", "s3gr3do", false)

	_, err := f.svc.Login(context.Background(), &models.LoginRequest{
		Email:    "antigo@cantolico.pt",
		Password: "s3gr3do",
	}, "203.0.113.4", "ua")
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	f := setupAuth(t)
	f.seedUser(t, "maria@cantolico.pt", "s3gr3do", true)
	ctx := context.Background()
	req := &models.LoginRequest{Email: "maria@cantolico.pt", Password: "errado"}

	for i := 0; i < 5; i++ {
		_, err := f.svc.Login(ctx, req, "203.0.113.4", "ua")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Locked now. Even the correct password is rejected without a
	// credential check.
	_, err := f.svc.Login(ctx, &models.LoginRequest{
		Email:    "maria@cantolico.pt",
		Password: "s3gr3do",
	}, "203.0.113.4", "ua")
	assert.ErrorIs(t, err, ErrLockedOut)

	assert.Contains(t, f.eventTypes(t), models.EventLoginLockout)
}

func TestLogin_LockoutExpires(t *testing.T) {
	f := setupAuth(t)
	f.seedUser(t, "maria@cantolico.pt", "s3gr3do", true)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.svc.Login(ctx, &models.LoginRequest{Email: "maria@cantolico.pt", Password: "errado"}, "203.0.113.4", "ua")
	}
	f.mr.FastForward(16 * time.Minute)

	resp, err := f.svc.Login(ctx, &models.LoginRequest{
		Email:    "maria@cantolico.pt",
		Password: "s3gr3do",
	}, "203.0.113.4", "ua")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestLogin_SuccessResetsCounter(t *testing.T) {
	f := setupAuth(t)
	f.seedUser(t, "maria@cantolico.pt", "s3gr3do", true)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		f.svc.Login(ctx, &models.LoginRequest{Email: "maria@cantolico.pt", Password: "errado"}, "203.0.113.4", "ua")
	}
	_, err := f.svc.Login(ctx, &models.LoginRequest{Email: "maria@cantolico.pt", Password: "s3gr3do"}, "203.0.113.4", "ua")
	require.NoError(t, err)

	// Four more failures start a fresh count, so no lockout.
	for i := 0; i < 4; i++ {
		_, err = f.svc.Login(ctx, &models.LoginRequest{Email: "maria@cantolico.pt", Password: "errado"}, "203.0.113.4", "ua")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	assert.NotContains(t, f.eventTypes(t), models.EventLoginLockout)
}

func TestRegister(t *testing.T) {
	f := setupAuth(t)

	user, err := f.svc.Register(context.Background(), "novo@cantolico.pt", "Novo Cantor", "senha-forte")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.True(t, user.Enabled)
	assert.NotEqual(t, "senha-forte", user.PasswordHash)

	_, err = f.svc.Register(context.Background(), "novo@cantolico.pt", "Outro", "senha")
	assert.ErrorIs(t, err, repository.ErrUserExists)

	assert.Contains(t, f.eventTypes(t), models.EventAccountChange)
}
