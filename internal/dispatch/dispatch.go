// Package dispatch decouples alert notification delivery from the request
// path. A dispatch never blocks its caller and its failure is logged, never
// propagated: the alert row is already durable by the time delivery starts.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/cantolico/guard/internal/logging"
	"github.com/cantolico/guard/internal/metrics"
	"github.com/cantolico/guard/internal/models"
	"github.com/cantolico/guard/internal/notification"
)

// Dispatcher delivers alert notifications without blocking the caller.
type Dispatcher interface {
	Dispatch(alert *models.SecurityAlert)
	Close()
}

// AsyncDispatcher sends through a notification channel on a detached
// goroutine with a bounded timeout.
type AsyncDispatcher struct {
	channel notification.Channel
	timeout time.Duration
	logger  *logging.Logger
	wg      sync.WaitGroup
}

// NewAsyncDispatcher creates an in-process dispatcher.
func NewAsyncDispatcher(channel notification.Channel, timeout time.Duration, logger *logging.Logger) *AsyncDispatcher {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AsyncDispatcher{
		channel: channel,
		timeout: timeout,
		logger:  logger,
	}
}

// Dispatch hands the alert to the channel in the background and returns
// immediately.
func (d *AsyncDispatcher) Dispatch(alert *models.SecurityAlert) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.channel.Send(ctx, alert); err != nil {
			metrics.NotificationsSent.WithLabelValues(d.channel.Type(), "error").Inc()
			d.logger.Error("alert notification failed",
				logging.AlertID(alert.ID),
				logging.Err(err),
			)
			return
		}
		metrics.NotificationsSent.WithLabelValues(d.channel.Type(), "ok").Inc()
	}()
}

// Wait blocks until all in-flight dispatches finish. Test hook.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}

// Close waits for in-flight dispatches to drain.
func (d *AsyncDispatcher) Close() {
	d.wg.Wait()
}
