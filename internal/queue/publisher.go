package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
)

// Publisher sends domain events to RabbitMQ.  Each call dials, declares
// the durable queue and publishes a persistent message; errors are logged
// and returned so callers may ignore them without failing the request.
type Publisher struct {
	url string
	log logger.ILogger
}

func NewPublisher(url string, log logger.ILogger) *Publisher {
	return &Publisher{url: url, log: log}
}

// Publish marshals event as JSON and sends it to the named queue.
func (p *Publisher) Publish(ctx context.Context, queue string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		p.log.Error("queue", "marshal event failed", map[string]interface{}{"queue": queue, "error": err})
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("queue", "dial failed", map[string]interface{}{"queue": queue, "error": err.Error()})
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("queue", "channel open failed", map[string]interface{}{"queue": queue, "error": err.Error()})
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		p.log.Warn("queue", "queue declare failed", map[string]interface{}{"queue": queue, "error": err.Error()})
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		p.log.Warn("queue", "publish failed", map[string]interface{}{"queue": queue, "error": err.Error()})
		return err
	}
	p.log.Debug("queue", "event published", map[string]interface{}{"queue": queue})
	return nil
}
