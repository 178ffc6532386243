package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/todoapi/apiserver/config"
)

// Backend names accepted by MQ_BACKEND.
const (
	BackendNone     = "none"
	BackendRabbitMQ = "rabbitmq"
	BackendPubSub   = "pubsub"
	BackendNATS     = "nats"
)

// ErrUnknownBackend is returned by NewFromConfig for an unrecognised MQ_BACKEND.
var ErrUnknownBackend = errors.New("unknown mq backend")

// Message is a change event as seen by a subscriber.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to have it redelivered.
type Handler func(ctx context.Context, msg Message) error

// Backend is implemented by each broker client.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ fronts a Backend. It satisfies services.EventPublisher.
type MQ struct {
	backend Backend
	name    string
}

// New wraps backend. name is used in errors only.
func New(name string, backend Backend) *MQ {
	return &MQ{backend: backend, name: name}
}

// NewFromConfig connects to the broker selected by cfg.Backend. It returns
// nil, nil when events are disabled.
func NewFromConfig(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "", BackendNone:
		return nil, nil
	case BackendRabbitMQ:
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return New(backend, client), nil
	case BackendPubSub:
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("connect pubsub: %w", err)
		}
		return New(backend, client), nil
	case BackendNATS:
		client, err := NewNATSClient(cfg.NATS)
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		return New(backend, client), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Name reports which backend is in use.
func (m *MQ) Name() string {
	return m.name
}

func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	id, err := m.backend.Publish(ctx, channel, data, attrs)
	if err != nil {
		return "", fmt.Errorf("%s publish to %s: %w", m.name, channel, err)
	}
	return id, nil
}

// Subscribe blocks, delivering messages on channel to handler until ctx is
// done or the backend fails.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close is safe on a nil MQ.
func (m *MQ) Close() error {
	if m == nil {
		return nil
	}
	return m.backend.Close()
}
