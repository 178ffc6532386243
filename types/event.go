package types

import (
	"encoding/json"
	"time"
)

// Event channels.
const (
	ChannelUsers     = "users"
	ChannelTodoItems = "todoitems"
)

// Event types published after successful mutations.
const (
	EventUserCreated     = "user.created"
	EventUserUpdated     = "user.updated"
	EventUserDeleted     = "user.deleted"
	EventTodoItemCreated = "todoitem.created"
	EventTodoItemUpdated = "todoitem.updated"
	EventTodoItemDeleted = "todoitem.deleted"
)

// Event is the change notification published to the message broker.
// Data always holds a DTO, never an entity.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Type is one of the Event* constants.
	Type string `json:"type"`

	// EntityID is the id of the user or todo item that changed.
	EntityID int64 `json:"entity_id"`

	// OccurredAt is when the mutation was committed.
	OccurredAt time.Time `json:"occurred_at"`

	// Data is the DTO after the change. Empty for deletions.
	Data json.RawMessage `json:"data,omitempty"`
}

// Snapshot is the document written by the export command.
type Snapshot struct {
	ExportedAt time.Time `json:"exported_at"`
	Users      []UserDTO `json:"users"`
}
