package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cantolico/guard/internal/models"
)

// MemoryRepository is an in-memory Repository used by tests and local
// development. It mirrors the PostgreSQL semantics, including the
// conditional acknowledge update.
type MemoryRepository struct {
	mu     sync.RWMutex
	events map[string]*models.SecurityEvent
	alerts map[string]*models.SecurityAlert
	users  map[int64]*models.User
	nextID int64
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		events: make(map[string]*models.SecurityEvent),
		alerts: make(map[string]*models.SecurityAlert),
		users:  make(map[int64]*models.User),
		nextID: 1,
	}
}

func (r *MemoryRepository) Close() {}

func (r *MemoryRepository) InsertSecurityEvent(_ context.Context, event *models.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *event
	r.events[event.ID] = &copied
	return nil
}

func (r *MemoryRepository) GetSecurityEvent(_ context.Context, id string) (*models.SecurityEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	copied := *event
	return &copied, nil
}

func (r *MemoryRepository) ListSecurityEvents(_ context.Context, req *models.ListEventsRequest) ([]*models.SecurityEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := []*models.SecurityEvent{}
	for _, event := range r.events {
		if req.ActorID != nil && (event.ActorID == nil || *event.ActorID != *req.ActorID) {
			continue
		}
		if req.EventType != "" && event.EventType != req.EventType {
			continue
		}
		copied := *event
		events = append(events, &copied)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].OccurredAt.After(events[j].OccurredAt)
	})

	limit := req.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if len(events) > limit {
		events = events[:limit]
	}

	return events, nil
}

func (r *MemoryRepository) InsertSecurityAlert(_ context.Context, alert *models.SecurityAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *alert
	r.alerts[alert.ID] = &copied
	return nil
}

func (r *MemoryRepository) GetSecurityAlert(_ context.Context, id string) (*models.SecurityAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	alert, ok := r.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	copied := *alert
	return &copied, nil
}

func (r *MemoryRepository) ListSecurityAlerts(_ context.Context, onlyOpen bool, limit int) ([]*models.SecurityAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	alerts := []*models.SecurityAlert{}
	for _, alert := range r.alerts {
		if onlyOpen && !alert.Open() {
			continue
		}
		copied := *alert
		alerts = append(alerts, &copied)
	}

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})

	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if len(alerts) > limit {
		alerts = alerts[:limit]
	}

	return alerts, nil
}

func (r *MemoryRepository) FindOpenAlert(_ context.Context, actorKey, eventType string, since time.Time) (*models.SecurityAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *models.SecurityAlert
	for _, alert := range r.alerts {
		if alert.ActorKey != actorKey || alert.EventType != eventType {
			continue
		}
		if !alert.Open() || alert.CreatedAt.Before(since) {
			continue
		}
		if latest == nil || alert.CreatedAt.After(latest.CreatedAt) {
			latest = alert
		}
	}

	if latest == nil {
		return nil, ErrAlertNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *MemoryRepository) AcknowledgeAlert(_ context.Context, id string, adminID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[id]
	if !ok {
		return ErrAlertNotFound
	}
	if !alert.Open() {
		return ErrAlertAcknowledged
	}

	alert.AcknowledgedAt = &at
	alert.AcknowledgedBy = &adminID
	return nil
}

func (r *MemoryRepository) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email {
			return ErrUserExists
		}
	}

	if user.ID == 0 {
		user.ID = r.nextID
		r.nextID++
	} else if user.ID >= r.nextID {
		r.nextID = user.ID + 1
	}

	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *MemoryRepository) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemoryRepository) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}
