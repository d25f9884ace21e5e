// Package syncqueue records write intents made while offline and replays
// them to allow-listed origin endpoints when connectivity returns.
package syncqueue

import (
	"encoding/json"
	"errors"
	"time"
)

// Item types
const (
	TypeForm = "form"
)

var (
	// ErrNotFound indicates no item exists for the given id
	ErrNotFound = errors.New("sync item not found")

	// ErrDuplicateID indicates an item with the same id is already queued
	ErrDuplicateID = errors.New("duplicate sync item id")
)

// Item is a queued write intent. It exists in the queue until its delivery
// has been confirmed and is never mutated in place.
type Item struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	URL        string            `json:"url"`
	Method     string            `json:"method,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`
}

// UnmarshalJSON accepts "data" as an alias for "payload", the field name
// older page scripts send.
func (i *Item) UnmarshalJSON(b []byte) error {
	type plain Item
	aux := struct {
		*plain
		Data json.RawMessage `json:"data,omitempty"`
	}{plain: (*plain)(i)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if len(i.Payload) == 0 && len(aux.Data) > 0 {
		i.Payload = aux.Data
	}
	return nil
}
