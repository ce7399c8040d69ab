package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/customer-portal/internal/metrics"
)

const publishTimeout = 5 * time.Second

// Publisher sends activity events to a durable queue on the default
// exchange.  A Publisher with an empty URL is disabled and drops events.
type Publisher struct {
	url   string
	queue string
	log   zerolog.Logger
}

func NewPublisher(url, queue string, log zerolog.Logger) *Publisher {
	return &Publisher{url: url, queue: queue, log: log}
}

// Enabled reports whether a broker URL is configured.
func (p *Publisher) Enabled() bool { return p != nil && p.url != "" }

// Publish sends ev in the background.  Failures are logged and counted but
// never reach the caller, whose write has already been committed.
func (p *Publisher) Publish(ctx context.Context, ev ActivityEvent) {
	if !p.Enabled() {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := p.publish(ctx, ev); err != nil {
			p.log.Warn().Err(err).Str("type", ev.Type).Msg("activity event not published")
			metrics.EventsPublished.WithLabelValues(ev.Type, "error").Inc()
			return
		}
		metrics.EventsPublished.WithLabelValues(ev.Type, "ok").Inc()
	}()
}

// dialBudget is the time left on ctx, at most publishTimeout.  It bounds
// the TCP connect and the AMQP handshake, which amqp.Dial would otherwise
// allow 30s.
func dialBudget(ctx context.Context) time.Duration {
	budget := publishTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < budget {
			budget = left
		}
	}
	if budget <= 0 {
		budget = time.Millisecond
	}
	return budget
}

func (p *Publisher) publish(ctx context.Context, ev ActivityEvent) error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Locale: "en_US",
		Dial:   amqp.DefaultDial(dialBudget(ctx)),
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	})
}
