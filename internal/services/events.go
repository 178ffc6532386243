package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/todoapi/apiserver/types"
)

// EventPublisher sends change notifications to a broker. mq.MQ implements it.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// eventEmitter publishes best-effort: failures are logged, never returned.
// A nil publisher disables it.
type eventEmitter struct {
	publisher EventPublisher
}

func (e eventEmitter) emit(ctx context.Context, channel, eventType string, entityID int64, payload any) {
	if e.publisher == nil {
		return
	}

	event := types.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("encode %s payload for %d: %v", eventType, entityID, err)
			return
		}
		event.Data = data
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("encode %s event for %d: %v", eventType, entityID, err)
		return
	}

	attrs := map[string]string{"type": eventType, "event_id": event.ID}
	if _, err := e.publisher.Publish(ctx, channel, body, attrs); err != nil {
		log.Printf("publish %s event for %d: %v", eventType, entityID, err)
	}
}
