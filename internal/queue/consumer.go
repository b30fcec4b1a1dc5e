package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ouvidoria/ocorrencias-api/internal/config"
)

const mailQueueName = "mail.outbound"

// StartMailConsumer connects to RabbitMQ, declares the durable mail.outbound
// queue and delivers each MailEvent over SMTP. It runs a reconnect loop with
// capped backoff and never returns under normal operation; failed messages
// are rejected without requeue so a poison message cannot spin the worker.
func StartMailConsumer(cfg config.Config) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			log.Printf("mail-consumer: dial failed: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(conn, cfg); err != nil {
			log.Printf("mail-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, cfg config.Config) error {
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		log.Printf("mail-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(mailQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(mailQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(cfg, d.Body); err != nil {
			log.Printf("mail-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(cfg config.Config, body []byte) error {
	var ev MailEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	subject, text, err := RenderMail(ev)
	if err != nil {
		return err
	}
	return sendSMTP(cfg, ev.To, subject, text)
}

// RenderMail produces the subject and plain-text body for a mail event.
func RenderMail(ev MailEvent) (subject, body string, err error) {
	name := ev.Name
	if name == "" {
		name = ev.To
	}
	switch ev.Kind {
	case MailKindVerification:
		subject = "Confirme seu e-mail"
		body = fmt.Sprintf(
			"Olá %s,\n\nUse o código abaixo para confirmar seu e-mail:\n\n%s\n\n"+
				"Se você não criou esta conta, ignore esta mensagem.\n", name, ev.Token)
	case MailKindPasswordReset:
		subject = "Redefinição de senha"
		body = fmt.Sprintf(
			"Olá %s,\n\nUse o código abaixo para redefinir sua senha:\n\n%s\n\n"+
				"O código expira em breve. Se você não pediu a redefinição, ignore esta mensagem.\n",
			name, ev.Token)
	default:
		return "", "", fmt.Errorf("unknown mail kind %q", ev.Kind)
	}
	return subject, body, nil
}

func sendSMTP(cfg config.Config, to, subject, body string) error {
	if cfg.MailHost == "" || cfg.MailFrom == "" {
		// Mail transport not configured: log instead of failing the queue.
		log.Printf("mail-consumer: SMTP not configured, dropping mail to %s (%s)", to, subject)
		return nil
	}
	addr := cfg.MailHost + ":" + cfg.MailPort
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		cfg.MailFrom, to, subject, body))

	var auth smtp.Auth
	if cfg.MailUser != "" {
		auth = smtp.PlainAuth("", cfg.MailUser, cfg.MailPass, cfg.MailHost)
	}
	return smtp.SendMail(addr, auth, cfg.MailFrom, []string{to}, msg)
}
