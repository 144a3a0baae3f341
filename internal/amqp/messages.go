package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// ChangeEvent announces a write to a remote collection. It carries only the
// document coordinates; consumers read the document back if they need it.
type ChangeEvent struct {
	Type       ChangeType `json:"type"`
	Collection string     `json:"collection"`
	ID         string     `json:"id"`
	UserID     string     `json:"userId,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

func NewChangeEvent(typ ChangeType, collection, id, userID string) *ChangeEvent {
	return &ChangeEvent{
		Type:       typ,
		Collection: collection,
		ID:         id,
		UserID:     userID,
		Timestamp:  time.Now().UTC(),
	}
}

func (e *ChangeEvent) Validate() error {
	switch e.Type {
	case ChangeCreated, ChangeUpdated, ChangeDeleted:
	default:
		return fmt.Errorf("unknown change type %q", e.Type)
	}
	if e.Collection == "" {
		return errors.New("missing collection")
	}
	if e.ID == "" {
		return errors.New("missing document id")
	}
	return nil
}

func (e *ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ChangeEventFromJSON decodes and validates an event.
func ChangeEventFromJSON(data []byte) (*ChangeEvent, error) {
	var e ChangeEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
