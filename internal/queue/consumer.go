package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/traincore/lms-platform/internal/mailer"
)

// StartMailConsumer connects to RabbitMQ, declares the auth.mail queue
// (durable), and delivers each event through the SMTP mailer. It runs a
// reconnect loop with backoff and keeps going through processing
// failures, rejecting the offending message without requeue so a broken
// payload cannot spin the consumer.
func StartMailConsumer(m *mailer.Mailer, logger *zerolog.Logger) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			logger.Warn().Err(err).Dur("retry_in", backoff).Msg("mail-consumer: failed to dial broker")
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, m, logger); err != nil {
			logger.Warn().Err(err).Msg("mail-consumer: consume loop ended; reconnecting")
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, m *mailer.Mailer, logger *zerolog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		logger.Warn().Err(err).Msg("mail-consumer: set QoS failed")
	}

	if _, err := ch.QueueDeclare(mailQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(mailQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, m); err != nil {
			logger.Error().Err(err).Msg("mail-consumer: handle message failed")
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, m *mailer.Mailer) error {
	var ev MailEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	switch ev.Kind {
	case KindForgotPassword:
		return m.SendForgotPasswordEmail(ev.To, ev.FirstName, ev.Code, ev.CompanyName)
	case KindChangeEmail:
		return m.SendChangeEmailMail(ev.To, ev.FirstName, ev.ChangeToken, ev.ExpiryMinutes, ev.CompanyName)
	default:
		return fmt.Errorf("unknown mail event kind %q", ev.Kind)
	}
}
