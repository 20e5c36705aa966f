package escalation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantolico/guard/internal/models"
	"github.com/cantolico/guard/internal/repository"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

type countingDispatcher struct {
	mu     sync.Mutex
	alerts []*models.SecurityAlert
}

func (d *countingDispatcher) Dispatch(alert *models.SecurityAlert) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, alert)
}

func (d *countingDispatcher) Close() {}

func (d *countingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.alerts)
}

func newTestEscalator(t *testing.T) (*Escalator, *miniredis.Miniredis, *repository.MemoryRepository, *countingDispatcher) {
	t.Helper()

	mr, client := setupTestRedis(t)
	t.Cleanup(mr.Close)
	t.Cleanup(func() { client.Close() })

	repo := repository.NewMemoryRepository()
	disp := &countingDispatcher{}
	esc := NewEscalator(client, repo, disp, nil, Config{
		Window:          15 * time.Minute,
		RepeatThreshold: 5,
	})

	return esc, mr, repo, disp
}

func denyEvent(id string, actor int64) *models.SecurityEvent {
	return &models.SecurityEvent{
		ID:         id,
		EventType:  models.EventForbiddenAccess,
		Severity:   models.SeverityMedium,
		ActorID:    &actor,
		OccurredAt: time.Now().UTC(),
	}
}

func highEvent(id string, actor int64) *models.SecurityEvent {
	return &models.SecurityEvent{
		ID:         id,
		EventType:  models.EventLoginLockout,
		Severity:   models.SeverityHigh,
		ActorID:    &actor,
		OccurredAt: time.Now().UTC(),
	}
}

func TestEvaluate_HighSeverityAlertsImmediately(t *testing.T) {
	esc, _, repo, disp := newTestEscalator(t)
	ctx := context.Background()

	alert, err := esc.Evaluate(ctx, highEvent("ev-1", 7))
	require.NoError(t, err)
	require.NotNil(t, alert)

	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Equal(t, "actor:7", alert.ActorKey)
	assert.Equal(t, []string{"ev-1"}, alert.EventIDs)
	assert.True(t, alert.Open())

	stored, err := repo.GetSecurityAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, alert.Reason, stored.Reason)
	assert.Equal(t, 1, disp.count())
}

func TestEvaluate_LowSeverityIgnored(t *testing.T) {
	esc, _, _, disp := newTestEscalator(t)

	alert, err := esc.Evaluate(context.Background(), &models.SecurityEvent{
		ID:        "ev-1",
		EventType: models.EventLoginSuccess,
		Severity:  models.SeverityLow,
	})
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Equal(t, 0, disp.count())
}

func TestEvaluate_MediumBelowThresholdNoAlert(t *testing.T) {
	esc, _, _, _ := newTestEscalator(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		alert, err := esc.Evaluate(ctx, denyEvent("ev", 7))
		require.NoError(t, err)
		assert.Nil(t, alert)
	}
}

func TestEvaluate_MediumAtThresholdAlerts(t *testing.T) {
	esc, _, _, disp := newTestEscalator(t)
	ctx := context.Background()

	var raised *models.SecurityAlert
	for i := 0; i < 5; i++ {
		alert, err := esc.Evaluate(ctx, denyEvent("ev", 7))
		require.NoError(t, err)
		if alert != nil {
			raised = alert
		}
	}

	require.NotNil(t, raised)
	assert.Equal(t, models.SeverityMedium, raised.Severity)
	assert.Contains(t, raised.Reason, "repeated")
	assert.Equal(t, 1, disp.count())
}

func TestEvaluate_NoDuplicateAlertWithinWindow(t *testing.T) {
	esc, _, _, disp := newTestEscalator(t)
	ctx := context.Background()

	// Cross the threshold, then keep going.
	for i := 0; i < 8; i++ {
		_, err := esc.Evaluate(ctx, denyEvent("ev", 7))
		require.NoError(t, err)
	}

	assert.Equal(t, 1, disp.count())
}

func TestEvaluate_WindowExpiryAllowsNewAlert(t *testing.T) {
	esc, mr, _, disp := newTestEscalator(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := esc.Evaluate(ctx, highEvent("ev", 7))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, disp.count())

	// Fast forward past the window; the open alert from the first round is
	// acknowledged so the store lookup does not suppress the new one.
	alerts, err := esc.store.(*repository.MemoryRepository).ListSecurityAlerts(ctx, true, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.NoError(t, esc.store.(*repository.MemoryRepository).AcknowledgeAlert(ctx, alerts[0].ID, 1, time.Now().UTC()))

	mr.FastForward(16 * time.Minute)

	alert, err := esc.Evaluate(ctx, highEvent("ev-2", 7))
	require.NoError(t, err)
	assert.NotNil(t, alert)
	assert.Equal(t, 2, disp.count())
}

func TestEvaluate_DistinctActorsAlertIndependently(t *testing.T) {
	esc, _, _, disp := newTestEscalator(t)
	ctx := context.Background()

	_, err := esc.Evaluate(ctx, highEvent("ev-a", 7))
	require.NoError(t, err)
	_, err = esc.Evaluate(ctx, highEvent("ev-b", 8))
	require.NoError(t, err)

	assert.Equal(t, 2, disp.count())
}

func TestEvaluate_IPKeyedWhenNoActor(t *testing.T) {
	esc, _, _, _ := newTestEscalator(t)
	ctx := context.Background()

	event := &models.SecurityEvent{
		ID:        "ev-1",
		EventType: models.EventUnauthorizedAccess,
		Severity:  models.SeverityMedium,
		IPAddress: "198.51.100.4",
	}

	var raised *models.SecurityAlert
	for i := 0; i < 5; i++ {
		alert, err := esc.Evaluate(ctx, event)
		require.NoError(t, err)
		if alert != nil {
			raised = alert
		}
	}

	require.NotNil(t, raised)
	assert.Equal(t, "ip:198.51.100.4", raised.ActorKey)
}

func TestEvaluate_ConcurrentHighEventsSingleAlert(t *testing.T) {
	esc, _, repo, _ := newTestEscalator(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := esc.Evaluate(ctx, highEvent("ev", 7))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	alerts, err := repo.ListSecurityAlerts(ctx, true, 100)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestEvaluate_OpenAlertInStoreSuppressesEvenWithoutMarker(t *testing.T) {
	esc, mr, repo, disp := newTestEscalator(t)
	ctx := context.Background()

	_, err := esc.Evaluate(ctx, highEvent("ev-1", 7))
	require.NoError(t, err)
	require.Equal(t, 1, disp.count())

	// Simulate marker loss (e.g. Redis restart) while the alert stays open.
	mr.FlushAll()

	alert, err := esc.Evaluate(ctx, highEvent("ev-2", 7))
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Equal(t, 1, disp.count())

	alerts, err := repo.ListSecurityAlerts(ctx, true, 100)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}
