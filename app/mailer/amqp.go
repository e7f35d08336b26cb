package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSender queues mails on a topic exchange for an external delivery worker.
type AMQPSender struct {
	ch         publisher
	exchange   string
	routingKey string
}

func NewAMQPSender(ch publisher, exchange, routingKey string) *AMQPSender {
	return &AMQPSender{ch: ch, exchange: exchange, routingKey: routingKey}
}

// DialAMQP connects, declares the exchange and returns a sender with a close func
// for both the channel and the connection.
func DialAMQP(url, exchange, routingKey string) (*AMQPSender, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp exchange declare: %w", err)
	}

	closeFn := func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return NewAMQPSender(ch, exchange, routingKey), closeFn, nil
}

func (s *AMQPSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return s.ch.PublishWithContext(
		ctx,
		s.exchange,
		s.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
