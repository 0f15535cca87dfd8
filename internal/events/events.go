package events

import (
	"context"
	"encoding/json"
	"time"
)

// Topics for account lifecycle events.
const (
	TopicAccountCreated = "account.created"
	TopicAccountDeleted = "account.deleted"
)

// AccountCreated is emitted after a new account record is persisted.
type AccountCreated struct {
	UserID int64  `json:"user_id"`
	Handle string `json:"uni"`
	Email  string `json:"email"`
	Name   string `json:"student_name"`
}

// AccountDeleted is emitted after the identity leg of a composite
// deletion succeeds. Per-leg statuses ride along for downstream
// reconcilers.
type AccountDeleted struct {
	UserID   int64  `json:"user_id"`
	Handle   string `json:"uni"`
	Identity string `json:"ms1_identity"`
	Catalog  string `json:"ms2_catalog"`
}

// Backend defines the broker-agnostic publish operation.
type Backend interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Publisher serialises account events and hands them to a backend.
type Publisher struct {
	backend Backend
}

func NewPublisher(backend Backend) *Publisher {
	return &Publisher{backend: backend}
}

func (p *Publisher) AccountCreated(ctx context.Context, event AccountCreated) error {
	return p.publish(ctx, TopicAccountCreated, event)
}

func (p *Publisher) AccountDeleted(ctx context.Context, event AccountDeleted) error {
	return p.publish(ctx, TopicAccountDeleted, event)
}

func (p *Publisher) publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	attrs := map[string]string{
		"event":        topic,
		"emitted_at":   time.Now().UTC().Format(time.RFC3339),
		"content_type": "application/json",
	}
	_, err = p.backend.Publish(ctx, topic, data, attrs)
	return err
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	return p.backend.Close()
}
