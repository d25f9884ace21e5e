// Package bridge carries notifications from the edge to page clients over
// Server-Sent Events and answers commands pages send over the reply channel.
package bridge

import (
	"encoding/json"
	"time"
)

// Notification types broadcast to page clients.
const (
	TypeOfflineReady = "OFFLINE_READY"
	TypeActivated    = "SW_ACTIVATED"
	TypeSyncSuccess  = "SYNC_SUCCESS"
	TypeSyncError    = "SYNC_ERROR"
	TypeNotification = "NOTIFICATION"
	TypeFocus        = "FOCUS"
)

// Activation tones.
const (
	ToneInfo   = "info"
	ToneUpdate = "update"
)

// Message is one notification as delivered to pages. Data holds the
// type-specific payload, already encoded.
type Message struct {
	Type    string          `json:"type"`
	Version string          `json:"version,omitempty"`
	Tone    string          `json:"tone,omitempty"`
	ID      string          `json:"id,omitempty"`
	URL     string          `json:"url,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`

	// Target restricts delivery to one client id; empty means everyone.
	Target string `json:"target,omitempty"`
}

// NewOfflineReady announces that the shell namespace is populated.
func NewOfflineReady(version string) Message {
	return Message{Type: TypeOfflineReady, Version: version}
}

// NewActivated announces that version now controls pages.
func NewActivated(version, tone string) Message {
	return Message{Type: TypeActivated, Version: version, Tone: tone}
}

// NewSyncSuccess reports a delivered queue item; data carries the item.
func NewSyncSuccess(id string, item any) Message {
	data, _ := json.Marshal(item)
	return Message{Type: TypeSyncSuccess, ID: id, Message: "Form synced successfully", Data: data}
}

// NewSyncError reports a failed delivery that stays queued.
func NewSyncError(id, url, reason string) Message {
	return Message{Type: TypeSyncError, ID: id, URL: url, Error: reason}
}

// NewNotification carries a user-visible notification payload.
func NewNotification(payload any) Message {
	data, _ := json.Marshal(payload)
	return Message{Type: TypeNotification, Data: data}
}

// NewFocus asks the client with clientID to bring itself to the front.
func NewFocus(clientID, url string) Message {
	return Message{Type: TypeFocus, URL: url, Target: clientID}
}

// connectedData is the payload of the first event on every stream.
type connectedData struct {
	ClientID  string `json:"clientId"`
	Timestamp string `json:"timestamp"`
}

func newConnected(clientID string) connectedData {
	return connectedData{ClientID: clientID, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}
