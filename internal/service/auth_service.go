// Package service holds the business logic between the HTTP handlers and the
// storage, lockout, and audit layers.
package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/cantolico/guard/internal/audit"
	"github.com/cantolico/guard/internal/logging"
	"github.com/cantolico/guard/internal/loginmon"
	"github.com/cantolico/guard/internal/models"
	"github.com/cantolico/guard/internal/repository"
	"github.com/cantolico/guard/pkg/tokens"
)

var (
	// ErrInvalidCredentials is returned for a bad email or password. The two
	// cases are indistinguishable to the caller so accounts cannot be
	// enumerated.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrLockedOut is returned while a key is locked. Credentials are not
	// checked in this state.
	ErrLockedOut = errors.New("too many failed attempts, try again later")

	// ErrAccountDisabled is returned for valid credentials on a disabled
	// account.
	ErrAccountDisabled = errors.New("account is disabled")
)

// AuthService authenticates catalog users and feeds the security pipeline.
type AuthService struct {
	repo    repository.Repository
	tokens  *tokens.TokenGenerator
	monitor *loginmon.Monitor
	writer  *audit.Writer
	logger  *logging.Logger
}

func NewAuthService(repo repository.Repository, tg *tokens.TokenGenerator, monitor *loginmon.Monitor, writer *audit.Writer, logger *logging.Logger) *AuthService {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthService{
		repo:    repo,
		tokens:  tg,
		monitor: monitor,
		writer:  writer,
		logger:  logger,
	}
}

// Login verifies credentials and issues an access token. The lockout check
// runs before any credential work, so a locked key is rejected without
// revealing whether the password was correct. Every outcome is audited.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest, ip, userAgent string) (*models.LoginResponse, error) {
	user, lookupErr := s.repo.GetUserByEmail(ctx, req.Email)

	var actorID *int64
	if lookupErr == nil {
		actorID = &user.ID
	}
	key := loginmon.Key(actorID, ip)

	locked, err := s.monitor.IsLocked(ctx, key)
	if err != nil {
		// Redis being down must not let attackers bypass the lockout check
		// silently, but it also must not take login down. Log and proceed.
		s.logger.ErrorContext(ctx, "lockout check failed, allowing attempt",
			logging.ActorKey(key), logging.Err(err))
	}
	if locked {
		s.audit(ctx, models.EventLoginFailure, "login attempt while locked out", actorID, ip, userAgent, nil)
		return nil, ErrLockedOut
	}

	if lookupErr != nil {
		if !errors.Is(lookupErr, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to look up user: %w", lookupErr)
		}
		s.failLogin(ctx, key, nil, ip, userAgent, "unknown email")
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.failLogin(ctx, key, actorID, ip, userAgent, "wrong password")
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive() {
		s.audit(ctx, models.EventLoginFailure, "login on disabled account", actorID, ip, userAgent, nil)
		return nil, ErrAccountDisabled
	}

	if err := s.monitor.RecordSuccess(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to reset failure counter",
			logging.ActorKey(key), logging.Err(err))
	}

	token, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.audit(ctx, models.EventLoginSuccess, "login succeeded", actorID, ip, userAgent, nil)

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int(s.tokens.AccessTTL().Seconds()),
		TokenType:   "Bearer",
	}, nil
}

// Register creates a new catalog account with the default role.
func (s *AuthService) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		Role:         models.RoleUser,
		PasswordHash: string(hash),
		Enabled:      true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.audit(ctx, models.EventAccountChange, "account created", &user.ID, "", "", map[string]interface{}{
		"action": "register",
	})
	return user, nil
}

func (s *AuthService) failLogin(ctx context.Context, key string, actorID *int64, ip, userAgent, reason string) {
	s.audit(ctx, models.EventLoginFailure, "login failed: "+reason, actorID, ip, userAgent, nil)
	if _, err := s.monitor.RecordFailure(ctx, key, actorID, ip, userAgent); err != nil {
		s.logger.WarnContext(ctx, "failed to record login failure",
			logging.ActorKey(key), logging.Err(err))
	}
}

func (s *AuthService) audit(ctx context.Context, eventType, message string, actorID *int64, ip, userAgent string, metadata map[string]interface{}) {
	if s.writer == nil {
		return
	}
	s.writer.Record(ctx, &models.SecurityEventInput{
		Message:   message,
		EventType: eventType,
		ActorID:   actorID,
		IPAddress: ip,
		UserAgent: userAgent,
		Metadata:  metadata,
	})
}
