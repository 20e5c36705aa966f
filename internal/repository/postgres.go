package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cantolico/guard/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// =============================================================================
// SECURITY EVENTS (append-only)
// =============================================================================

// InsertSecurityEvent appends an event row. Events are never updated.
func (r *PostgresRepository) InsertSecurityEvent(ctx context.Context, event *models.SecurityEvent) error {
	var metadataJSON []byte
	var err error
	if event.Metadata != nil {
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO security_events (
			id, event_type, severity, message, actor_id,
			ip_address, user_agent, metadata, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.pool.Exec(ctx, query,
		event.ID, event.EventType, string(event.Severity), event.Message,
		event.ActorID, event.IPAddress, event.UserAgent, metadataJSON,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert security event: %w", err)
	}

	return nil
}

// GetSecurityEvent retrieves an event by id.
func (r *PostgresRepository) GetSecurityEvent(ctx context.Context, id string) (*models.SecurityEvent, error) {
	query := `
		SELECT id, event_type, severity, message, actor_id,
		       ip_address, user_agent, metadata, occurred_at
		FROM security_events
		WHERE id = $1
	`

	event, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get security event: %w", err)
	}

	return event, nil
}

// ListSecurityEvents retrieves events filtered by actor, type and time range,
// newest first.
func (r *PostgresRepository) ListSecurityEvents(ctx context.Context, req *models.ListEventsRequest) ([]*models.SecurityEvent, error) {
	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argPos := 1

	if req.ActorID != nil {
		whereClause += fmt.Sprintf(" AND actor_id = $%d", argPos)
		args = append(args, *req.ActorID)
		argPos++
	}
	if req.EventType != "" {
		whereClause += fmt.Sprintf(" AND event_type = $%d", argPos)
		args = append(args, req.EventType)
		argPos++
	}
	if req.From != "" {
		whereClause += fmt.Sprintf(" AND occurred_at >= $%d", argPos)
		args = append(args, req.From)
		argPos++
	}
	if req.To != "" {
		whereClause += fmt.Sprintf(" AND occurred_at < $%d", argPos)
		args = append(args, req.To)
		argPos++
	}

	limit := req.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, event_type, severity, message, actor_id,
		       ip_address, user_agent, metadata, occurred_at
		FROM security_events
		%s
		ORDER BY occurred_at DESC
		LIMIT $%d
	`, whereClause, argPos)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list security events: %w", err)
	}
	defer rows.Close()

	events := []*models.SecurityEvent{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*models.SecurityEvent, error) {
	event := &models.SecurityEvent{}
	var severity string
	var metadataJSON []byte

	err := row.Scan(
		&event.ID, &event.EventType, &severity, &event.Message,
		&event.ActorID, &event.IPAddress, &event.UserAgent,
		&metadataJSON, &event.OccurredAt,
	)
	if err != nil {
		return nil, err
	}

	event.Severity = models.Severity(severity)
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return event, nil
}

// =============================================================================
// SECURITY ALERTS
// =============================================================================

// InsertSecurityAlert creates an alert row.
func (r *PostgresRepository) InsertSecurityAlert(ctx context.Context, alert *models.SecurityAlert) error {
	query := `
		INSERT INTO security_alerts (
			id, event_ids, reason, severity, actor_key, event_type,
			created_at, acknowledged_at, acknowledged_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		alert.ID, alert.EventIDs, alert.Reason, string(alert.Severity),
		alert.ActorKey, alert.EventType, alert.CreatedAt,
		alert.AcknowledgedAt, alert.AcknowledgedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert security alert: %w", err)
	}

	return nil
}

// GetSecurityAlert retrieves an alert by id.
func (r *PostgresRepository) GetSecurityAlert(ctx context.Context, id string) (*models.SecurityAlert, error) {
	query := `
		SELECT id, event_ids, reason, severity, actor_key, event_type,
		       created_at, acknowledged_at, acknowledged_by
		FROM security_alerts
		WHERE id = $1
	`

	alert, err := scanAlert(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get security alert: %w", err)
	}

	return alert, nil
}

// ListSecurityAlerts retrieves alerts, newest first. When onlyOpen is set,
// acknowledged alerts are filtered out.
func (r *PostgresRepository) ListSecurityAlerts(ctx context.Context, onlyOpen bool, limit int) ([]*models.SecurityAlert, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	whereClause := ""
	if onlyOpen {
		whereClause = "WHERE acknowledged_at IS NULL"
	}

	query := fmt.Sprintf(`
		SELECT id, event_ids, reason, severity, actor_key, event_type,
		       created_at, acknowledged_at, acknowledged_by
		FROM security_alerts
		%s
		ORDER BY created_at DESC
		LIMIT $1
	`, whereClause)

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list security alerts: %w", err)
	}
	defer rows.Close()

	alerts := []*models.SecurityAlert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

// FindOpenAlert returns the most recent unacknowledged alert for the same
// actor key and event type created at or after since. Used by the escalator
// to avoid duplicate alerts within a window.
func (r *PostgresRepository) FindOpenAlert(ctx context.Context, actorKey, eventType string, since time.Time) (*models.SecurityAlert, error) {
	query := `
		SELECT id, event_ids, reason, severity, actor_key, event_type,
		       created_at, acknowledged_at, acknowledged_by
		FROM security_alerts
		WHERE actor_key = $1 AND event_type = $2
		  AND acknowledged_at IS NULL AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT 1
	`

	alert, err := scanAlert(r.pool.QueryRow(ctx, query, actorKey, eventType, since))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to find open alert: %w", err)
	}

	return alert, nil
}

// AcknowledgeAlert marks an open alert as acknowledged. The conditional
// update makes concurrent acknowledgements race-safe: only one wins.
func (r *PostgresRepository) AcknowledgeAlert(ctx context.Context, id string, adminID int64, at time.Time) error {
	query := `
		UPDATE security_alerts
		SET acknowledged_at = $2, acknowledged_by = $3
		WHERE id = $1 AND acknowledged_at IS NULL
	`

	tag, err := r.pool.Exec(ctx, query, id, at, adminID)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Distinguish missing from already-acknowledged
		if _, err := r.GetSecurityAlert(ctx, id); err != nil {
			return err
		}
		return ErrAlertAcknowledged
	}

	return nil
}

func scanAlert(row rowScanner) (*models.SecurityAlert, error) {
	alert := &models.SecurityAlert{}
	var severity string

	err := row.Scan(
		&alert.ID, &alert.EventIDs, &alert.Reason, &severity,
		&alert.ActorKey, &alert.EventType, &alert.CreatedAt,
		&alert.AcknowledgedAt, &alert.AcknowledgedBy,
	)
	if err != nil {
		return nil, err
	}

	alert.Severity = models.Severity(severity)
	return alert, nil
}

// =============================================================================
// USERS
// =============================================================================

// CreateUser inserts a new account and fills in its generated id.
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, name, role, password_hash, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO NOTHING
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		user.Email, user.Name, string(user.Role), user.PasswordHash,
		user.Enabled, user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves an account by email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, name, role, password_hash, enabled, created_at
		FROM users
		WHERE email = $1
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetUserByID retrieves an account by id.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, email, name, role, password_hash, enabled, created_at
		FROM users
		WHERE id = $1
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var role string

	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &role,
		&user.PasswordHash, &user.Enabled, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.Role = models.Role(role)
	return user, nil
}
