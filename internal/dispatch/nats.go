package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/cantolico/guard/internal/logging"
	"github.com/cantolico/guard/internal/metrics"
	"github.com/cantolico/guard/internal/models"
	"github.com/cantolico/guard/internal/notification"
)

// NATSDispatcher publishes alerts to a NATS subject so that delivery
// happens in a worker decoupled from the serving instance.
type NATSDispatcher struct {
	conn    *nats.Conn
	subject string
	logger  *logging.Logger
}

// Connect establishes the NATS connection used by both the dispatcher and
// the subscriber.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// NewNATSDispatcher creates a queue-backed dispatcher.
func NewNATSDispatcher(conn *nats.Conn, subject string, logger *logging.Logger) *NATSDispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &NATSDispatcher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}
}

// Dispatch publishes the alert for asynchronous delivery. Publish failures
// are logged and swallowed; the alert remains visible in the store.
func (d *NATSDispatcher) Dispatch(alert *models.SecurityAlert) {
	data, err := json.Marshal(alert)
	if err != nil {
		d.logger.Error("failed to marshal alert for dispatch",
			logging.AlertID(alert.ID),
			logging.Err(err),
		)
		return
	}

	if err := d.conn.Publish(d.subject, data); err != nil {
		metrics.NotificationsSent.WithLabelValues("nats", "error").Inc()
		d.logger.Error("failed to publish alert",
			logging.AlertID(alert.ID),
			logging.Err(err),
		)
		return
	}
	metrics.NotificationsSent.WithLabelValues("nats", "ok").Inc()
}

// Close flushes pending publishes.
func (d *NATSDispatcher) Close() {
	_ = d.conn.Flush()
}

// Subscriber consumes published alerts and delivers them through a
// notification channel. Run it on the instance that owns SMTP credentials.
type Subscriber struct {
	conn    *nats.Conn
	subject string
	channel notification.Channel
	timeout time.Duration
	logger  *logging.Logger
	sub     *nats.Subscription
}

// NewSubscriber creates an alert delivery worker.
func NewSubscriber(conn *nats.Conn, subject string, channel notification.Channel, timeout time.Duration, logger *logging.Logger) *Subscriber {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Subscriber{
		conn:    conn,
		subject: subject,
		channel: channel,
		timeout: timeout,
		logger:  logger,
	}
}

// Start subscribes to the alert subject. Delivery failures are logged; the
// message is not redelivered (the alert is durable and visible in-app
// regardless).
func (s *Subscriber) Start() error {
	sub, err := s.conn.QueueSubscribe(s.subject, "guard-notify", func(msg *nats.Msg) {
		var alert models.SecurityAlert
		if err := json.Unmarshal(msg.Data, &alert); err != nil {
			s.logger.Error("failed to decode queued alert", logging.Err(err))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.channel.Send(ctx, &alert); err != nil {
			metrics.NotificationsSent.WithLabelValues(s.channel.Type(), "error").Inc()
			s.logger.Error("queued alert notification failed",
				logging.AlertID(alert.ID),
				logging.Err(err),
			)
			return
		}
		metrics.NotificationsSent.WithLabelValues(s.channel.Type(), "ok").Inc()
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}

	s.sub = sub
	return nil
}

// Stop unsubscribes from the alert subject.
func (s *Subscriber) Stop() {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
}
