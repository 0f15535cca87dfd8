package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/lionswap/accounts/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQBackend publishes account events to per-topic queues.
type RabbitMQBackend struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	queueDurable bool
}

// NewRabbitMQBackend connects to RabbitMQ from config.
func NewRabbitMQBackend(cfg config.RabbitMQConfig) (*RabbitMQBackend, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &RabbitMQBackend{
		conn:         conn,
		channel:      ch,
		queueDurable: cfg.QueueDurable,
	}, nil
}

// Publish sends a message to the queue named after the topic,
// declaring it on first use.
func (r *RabbitMQBackend) Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", errors.New("rabbitmq topic is required")
	}

	if _, err := r.channel.QueueDeclare(topic, r.queueDurable, false, false, false, nil); err != nil {
		return "", err
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}

	messageID := newMessageID()
	err := r.channel.PublishWithContext(ctx, "", topic, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   messageID,
		Headers:     headers,
		Body:        data,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Close closes the underlying channel and connection.
func (r *RabbitMQBackend) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func newMessageID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}
