package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cantolico/guard/internal/models"
)

// setupTestDatabase creates a PostgreSQL testcontainer and runs migrations.
func setupTestDatabase(t *testing.T) *PostgresRepository {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("guard_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, runMigrations(connStr))

	repo, err := NewPostgresRepository(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	return repo
}

func runMigrations(connStr string) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	migrationPath := filepath.Join("..", "..", "migrations", "001_init.up.sql")
	migrationSQL, err := os.ReadFile(migrationPath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

func newEvent(t *testing.T, eventType string, actorID *int64) *models.SecurityEvent {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	return &models.SecurityEvent{
		ID:         id.String(),
		EventType:  eventType,
		Severity:   models.DefaultSeverity(eventType),
		Message:    "test event",
		ActorID:    actorID,
		IPAddress:  "203.0.113.1",
		UserAgent:  "test-agent",
		Metadata:   map[string]interface{}{"songSlug": "salve-rainha"},
		OccurredAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func newAlert(t *testing.T, actorKey, eventType string) *models.SecurityAlert {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	return &models.SecurityAlert{
		ID:        id.String(),
		EventIDs:  []string{"ev-1", "ev-2"},
		Reason:    "repeated denial",
		Severity:  models.SeverityHigh,
		ActorKey:  actorKey,
		EventType: eventType,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestSecurityEvent_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	repo := setupTestDatabase(t)
	ctx := context.Background()

	actorID := int64(42)
	event := newEvent(t, models.EventForbiddenAccess, &actorID)
	require.NoError(t, repo.InsertSecurityEvent(ctx, event))

	got, err := repo.GetSecurityEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.EventType, got.EventType)
	assert.Equal(t, event.Severity, got.Severity)
	assert.Equal(t, event.Metadata, got.Metadata)
	require.NotNil(t, got.ActorID)
	assert.Equal(t, actorID, *got.ActorID)

	_, err = repo.GetSecurityEvent(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestListSecurityEvents_Filters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	repo := setupTestDatabase(t)
	ctx := context.Background()

	actorA, actorB := int64(1), int64(2)
	require.NoError(t, repo.InsertSecurityEvent(ctx, newEvent(t, models.EventLoginFailure, &actorA)))
	require.NoError(t, repo.InsertSecurityEvent(ctx, newEvent(t, models.EventLoginFailure, &actorB)))
	require.NoError(t, repo.InsertSecurityEvent(ctx, newEvent(t, models.EventForbiddenAccess, &actorA)))

	events, err := repo.ListSecurityEvents(ctx, &models.ListEventsRequest{ActorID: &actorA, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = repo.ListSecurityEvents(ctx, &models.ListEventsRequest{EventType: models.EventLoginFailure, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = repo.ListSecurityEvents(ctx, &models.ListEventsRequest{
		ActorID:   &actorA,
		EventType: models.EventForbiddenAccess,
		Limit:     10,
	})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSecurityAlert_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	repo := setupTestDatabase(t)
	ctx := context.Background()

	alert := newAlert(t, "actor:7", models.EventForbiddenAccess)
	require.NoError(t, repo.InsertSecurityAlert(ctx, alert))

	since := time.Now().UTC().Add(-15 * time.Minute)
	open, err := repo.FindOpenAlert(ctx, "actor:7", models.EventForbiddenAccess, since)
	require.NoError(t, err)
	assert.Equal(t, alert.ID, open.ID)
	assert.Equal(t, alert.EventIDs, open.EventIDs)

	// No match for a different actor or type.
	_, err = repo.FindOpenAlert(ctx, "actor:8", models.EventForbiddenAccess, since)
	assert.ErrorIs(t, err, ErrAlertNotFound)
	_, err = repo.FindOpenAlert(ctx, "actor:7", models.EventUnauthorizedAccess, since)
	assert.ErrorIs(t, err, ErrAlertNotFound)

	require.NoError(t, repo.AcknowledgeAlert(ctx, alert.ID, 99, time.Now().UTC()))

	// Acknowledged alerts no longer suppress new ones.
	_, err = repo.FindOpenAlert(ctx, "actor:7", models.EventForbiddenAccess, since)
	assert.ErrorIs(t, err, ErrAlertNotFound)

	got, err := repo.GetSecurityAlert(ctx, alert.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AcknowledgedBy)
	assert.Equal(t, int64(99), *got.AcknowledgedBy)

	// Double acknowledge conflicts, missing alert is not found.
	assert.ErrorIs(t, repo.AcknowledgeAlert(ctx, alert.ID, 99, time.Now().UTC()), ErrAlertAcknowledged)
	assert.ErrorIs(t, repo.AcknowledgeAlert(ctx, uuid.NewString(), 99, time.Now().UTC()), ErrAlertNotFound)
}

func TestUsers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	repo := setupTestDatabase(t)
	ctx := context.Background()

	user := &models.User{
		Email:        "maria@cantolico.pt",
		Name:         "Maria",
		Role:         models.RoleReviewer,
		PasswordHash: "hashed",
		Enabled:      true,
	}
	require.NoError(t, repo.CreateUser(ctx, user))
	assert.NotZero(t, user.ID)

	dup := &models.User{Email: "maria@cantolico.pt", Name: "Other", Role: models.RoleUser, PasswordHash: "x", Enabled: true}
	assert.ErrorIs(t, repo.CreateUser(ctx, dup), ErrUserExists)

	byEmail, err := repo.GetUserByEmail(ctx, "maria@cantolico.pt")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, models.RoleReviewer, byEmail.Role)

	byID, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maria", byID.Name)

	_, err = repo.GetUserByEmail(ctx, "missing@cantolico.pt")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
