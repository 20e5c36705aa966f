package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cantolico/guard/internal/models"
)

var (
	ErrEventNotFound    = errors.New("security event not found")
	ErrAlertNotFound    = errors.New("security alert not found")
	ErrAlertAcknowledged = errors.New("security alert already acknowledged")
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
)

// Repository is the durable store for security events, alerts and users.
// The security_events table is append-only; events are never updated.
type Repository interface {
	// Security events
	InsertSecurityEvent(ctx context.Context, event *models.SecurityEvent) error
	GetSecurityEvent(ctx context.Context, id string) (*models.SecurityEvent, error)
	ListSecurityEvents(ctx context.Context, req *models.ListEventsRequest) ([]*models.SecurityEvent, error)

	// Security alerts
	InsertSecurityAlert(ctx context.Context, alert *models.SecurityAlert) error
	GetSecurityAlert(ctx context.Context, id string) (*models.SecurityAlert, error)
	ListSecurityAlerts(ctx context.Context, onlyOpen bool, limit int) ([]*models.SecurityAlert, error)
	FindOpenAlert(ctx context.Context, actorKey, eventType string, since time.Time) (*models.SecurityAlert, error)
	AcknowledgeAlert(ctx context.Context, id string, adminID int64, at time.Time) error

	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)

	Close()
}
