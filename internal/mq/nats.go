package mq

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/todoapi/apiserver/config"
)

const natsMessageIDHeader = "Nats-Msg-Id"

// NATSClient publishes change events to core NATS subjects named after the
// event channel. Delivery is at-most-once; a handler error is only logged.
type NATSClient struct {
	conn *nats.Conn
}

// NewNATSClient connects to the server at cfg.URL.
func NewNATSClient(cfg config.NATSConfig) (*NATSClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("nats url is required")
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("todoapi"),
		nats.Timeout(5*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}
	return &NATSClient{conn: conn}, nil
}

func (n *NATSClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("nats channel is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := uuid.NewString()
	msg := nats.NewMsg(channel)
	msg.Data = data
	for key, value := range attrs {
		msg.Header.Set(key, value)
	}
	msg.Header.Set(natsMessageIDHeader, messageID)

	if err := n.conn.PublishMsg(msg); err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe delivers messages on the channel's subject until ctx is done.
func (n *NATSClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("nats channel is required")
	}

	msgs := make(chan *nats.Msg, 64)
	sub, err := n.conn.ChanSubscribe(channel, msgs)
	if err != nil {
		return err
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-msgs:
			message := Message{
				ID:         msg.Header.Get(natsMessageIDHeader),
				Data:       msg.Data,
				Attributes: natsHeaderToAttributes(msg.Header),
			}
			if err := handler(ctx, message); err != nil {
				log.Printf("nats handler for %s: %v", channel, err)
			}
		}
	}
}

// Close drains pending publishes before closing the connection.
func (n *NATSClient) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}

func natsHeaderToAttributes(header nats.Header) map[string]string {
	if len(header) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(header))
	for key, values := range header {
		if key == natsMessageIDHeader || len(values) == 0 {
			continue
		}
		attrs[key] = values[0]
	}
	return attrs
}
