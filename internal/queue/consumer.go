package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking/internal/mail"
	"github.com/iliyamo/tour-booking/internal/metrics"
)

// HandlerFunc processes one message body.  A returned error rejects the
// message without requeueing it.
type HandlerFunc func(ctx context.Context, body []byte) error

// Consumer drains one queue.  Run keeps reconnecting with exponential
// backoff until ctx is cancelled.
type Consumer struct {
	URL      string
	Queue    string
	Prefetch int
	Handle   HandlerFunc
	Log      *zap.Logger
	Metrics  *metrics.Metrics
}

const maxBackoff = 30 * time.Second

// Run blocks until ctx is done and returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	log := c.Log.With(zap.String("queue", c.Queue))
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Warn("consumer dial failed", zap.Duration("retry_in", backoff), zap.Error(err))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	prefetch := c.Prefetch
	if prefetch <= 0 {
		prefetch = 50
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		c.Log.Warn("consumer qos failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.deliver(ctx, d)
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery) {
	if err := c.Handle(ctx, d.Body); err != nil {
		c.Log.Error("handle message failed", zap.String("queue", c.Queue), zap.Error(err))
		_ = d.Nack(false, false)
		c.count("rejected")
		return
	}
	_ = d.Ack(false)
	c.count("acked")
}

func (c *Consumer) count(outcome string) {
	if c.Metrics != nil {
		c.Metrics.Events.WithLabelValues(c.Queue, outcome).Inc()
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// DeliverEmail returns the email queue handler: each message goes out
// through sender.
func DeliverEmail(sender mail.Sender, m *metrics.Metrics) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var ev EmailRequested
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal email event: %w", err)
		}
		err := sender.Send(ctx, ev.Message)
		if m != nil {
			result := "sent"
			if err != nil {
				result = "failed"
			}
			m.Emails.WithLabelValues(ev.Message.Template, result).Inc()
		}
		return err
	}
}

// LogBooking returns the booking queue handler, which records each
// booking as a structured log line.
func LogBooking(log *zap.Logger) HandlerFunc {
	return func(_ context.Context, body []byte) error {
		var ev BookingCreated
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal booking event: %w", err)
		}
		log.Info("booking created",
			zap.Uint64("booking_id", ev.BookingID),
			zap.Uint64("tour_id", ev.TourID),
			zap.String("tour", ev.TourName),
			zap.Uint64("user_id", ev.UserID),
			zap.String("price", ev.Price.StringFixed(2)),
			zap.String("session_id", ev.SessionID),
			zap.Time("created_at", ev.CreatedAt),
		)
		return nil
	}
}
