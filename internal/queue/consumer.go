package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

// NotificationSink stores notifications derived from events.
type NotificationSink interface {
	Create(ctx context.Context, n *model.Notification) error
}

// StartNotificationConsumer consumes payment.confirmed and
// reservation.created and turns every event into a notification for the
// affected user.  It reconnects with exponential backoff until ctx is
// cancelled, which is the only way it returns.
func StartNotificationConsumer(ctx context.Context, url string, sink NotificationSink, log logger.ILogger) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("notification-consumer", "dial failed, retrying", map[string]interface{}{
				"error": err.Error(), "backoff": backoff.String(),
			})
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, sink, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("notification-consumer", "consume loop ended, reconnecting", map[string]interface{}{"error": err.Error()})
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
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

type delivery struct {
	queue string
	amqp.Delivery
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, sink NotificationSink, log logger.ILogger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("notification-consumer", "set QoS failed", map[string]interface{}{"error": err.Error()})
	}

	merged := make(chan delivery)
	for _, name := range []string{PaymentConfirmedQueue, ReservationCreatedQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		go func(name string, msgs <-chan amqp.Delivery) {
			for d := range msgs {
				select {
				case merged <- delivery{queue: name, Delivery: d}:
				case <-ctx.Done():
					return
				}
			}
		}(name, msgs)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-closed:
			if e != nil {
				return e
			}
			return errors.New("channel closed")
		case d := <-merged:
			if err := HandleMessage(ctx, d.queue, d.Body, sink); err != nil {
				log.Error("notification-consumer", "handle message failed", map[string]interface{}{
					"queue": d.queue, "error": err,
				})
				_ = d.Nack(false, false) // reject without requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one event body and writes the matching
// notification.
func HandleMessage(ctx context.Context, queue string, body []byte, sink NotificationSink) error {
	var n model.Notification
	switch queue {
	case PaymentConfirmedQueue:
		var ev PaymentConfirmedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		n = model.Notification{
			UserID:  ev.UserID,
			Title:   "Payment " + ev.Status,
			Message: fmt.Sprintf("Payment %s of %.2f is now %s (%s).", ev.TransactionID, ev.Amount, ev.Status, ev.Outcome),
		}
	case ReservationCreatedQueue:
		var ev ReservationCreatedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		n = model.Notification{
			UserID: ev.UserID,
			Title:  "Reservation received",
			Message: fmt.Sprintf("Your reservation #%d at %s on %s from %s to %s is pending confirmation.",
				ev.ReservationID, ev.PoolName, ev.Date, ev.StartTime, ev.EndTime),
		}
	default:
		return fmt.Errorf("unknown queue %q", queue)
	}
	if n.UserID == 0 {
		return errors.New("event without user_id")
	}
	return sink.Create(ctx, &n)
}
