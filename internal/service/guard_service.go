package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cantolico/guard/internal/logging"
	"github.com/cantolico/guard/internal/models"
	"github.com/cantolico/guard/internal/repository"
)

// GuardService exposes the read and remediation side of the security
// pipeline: listing events and alerts, and acknowledging alerts.
type GuardService struct {
	repo   repository.Repository
	logger *logging.Logger
}

func NewGuardService(repo repository.Repository, logger *logging.Logger) *GuardService {
	if logger == nil {
		logger = logging.Default()
	}
	return &GuardService{repo: repo, logger: logger}
}

// ListAlerts returns alerts newest first, optionally only open ones.
func (s *GuardService) ListAlerts(ctx context.Context, onlyOpen bool, limit int) ([]*models.SecurityAlert, error) {
	alerts, err := s.repo.ListSecurityAlerts(ctx, onlyOpen, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// GetAlert fetches a single alert by id.
func (s *GuardService) GetAlert(ctx context.Context, id string) (*models.SecurityAlert, error) {
	return s.repo.GetSecurityAlert(ctx, id)
}

// AckAlert marks an alert as handled by the given admin. Acknowledging an
// already acknowledged alert returns repository.ErrAlertAcknowledged.
func (s *GuardService) AckAlert(ctx context.Context, alertID string, admin *models.Identity) (*models.SecurityAlert, error) {
	if err := s.repo.AcknowledgeAlert(ctx, alertID, admin.ID, time.Now().UTC()); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "alert acknowledged",
		logging.AlertID(alertID),
		logging.ActorID(admin.ID),
	)
	return s.repo.GetSecurityAlert(ctx, alertID)
}

// ListEvents returns security events matching the filter, newest first.
func (s *GuardService) ListEvents(ctx context.Context, req *models.ListEventsRequest) ([]*models.SecurityEvent, error) {
	events, err := s.repo.ListSecurityEvents(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// GetEvent fetches a single event by id.
func (s *GuardService) GetEvent(ctx context.Context, id string) (*models.SecurityEvent, error) {
	return s.repo.GetSecurityEvent(ctx, id)
}
