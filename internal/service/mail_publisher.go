// Package mailer publishes mail events to RabbitMQ. Publishing is best
// effort by design: the caller has already committed the token the mail
// refers to, so a broker failure is logged and reported but must never roll
// the flow back.
package mailer

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ouvidoria/ocorrencias-api/internal/queue"
)

const mailQueueName = "mail.outbound"

// Publisher sends MailEvents to the broker. A zero URL disables publishing
// (useful in tests and in deployments without a broker).
type Publisher struct {
	URL string
}

func NewPublisher(url string) *Publisher { return &Publisher{URL: url} }

// PublishMail marshals the event and publishes it persistently on the
// mail.outbound queue. The queue declaration is idempotent. Errors are
// logged here and returned so callers can decide whether to surface them;
// none of the auth flows do.
func (p *Publisher) PublishMail(ctx context.Context, ev queue.MailEvent) error {
	if p == nil || p.URL == "" {
		return nil
	}
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Printf("mailer: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("mailer: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(mailQueueName, true, false, false, false, nil); err != nil {
		log.Printf("mailer: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("mailer: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", mailQueueName, false, false, pub); err != nil {
		log.Printf("mailer: publish failed: %v", err)
		return err
	}
	return nil
}
