package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sternrassler/museum-edge/pkg/syncqueue"
)

// Command types pages may send.
const (
	CommandSkipWaiting    = "SKIP_WAITING"
	CommandCacheURLs      = "CACHE_URLS"
	CommandAddToSyncQueue = "ADD_TO_SYNC_QUEUE"
	CommandGetSyncQueue   = "GET_SYNC_QUEUE"
)

// ErrUnknownCommand is returned for envelopes with an unrecognized type.
var ErrUnknownCommand = errors.New("unknown command")

// Command is one of SkipWaiting, CacheURLs, AddToSyncQueue or GetSyncQueue.
type Command interface {
	CommandType() string
}

// SkipWaiting asks a waiting worker to activate now.
type SkipWaiting struct{}

// CacheURLs adds URLs to the shell namespace on demand.
type CacheURLs struct {
	URLs []string `json:"urls"`
}

// AddToSyncQueue enqueues a write intent.
type AddToSyncQueue struct {
	Item syncqueue.Item `json:"item"`
}

// GetSyncQueue lists pending write intents.
type GetSyncQueue struct{}

func (SkipWaiting) CommandType() string    { return CommandSkipWaiting }
func (CacheURLs) CommandType() string      { return CommandCacheURLs }
func (AddToSyncQueue) CommandType() string { return CommandAddToSyncQueue }
func (GetSyncQueue) CommandType() string   { return CommandGetSyncQueue }

// DecodeCommand decodes a {"type": ...} envelope into its command.
func DecodeCommand(data []byte) (Command, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}

	switch envelope.Type {
	case CommandSkipWaiting:
		return SkipWaiting{}, nil
	case CommandGetSyncQueue:
		return GetSyncQueue{}, nil
	case CommandCacheURLs:
		var cmd CacheURLs
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
		}
		if len(cmd.URLs) == 0 {
			return nil, fmt.Errorf("decode %s: urls are required", envelope.Type)
		}
		return cmd, nil
	case CommandAddToSyncQueue:
		var cmd AddToSyncQueue
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, envelope.Type)
	}
}

// Reply is the structured result of a command.
type Reply struct {
	Success bool             `json:"success"`
	ID      string           `json:"id,omitempty"`
	Queue   []syncqueue.Item `json:"queue,omitzero"`
	Error   string           `json:"error,omitempty"`
}

func failure(err error) Reply {
	return Reply{Success: false, Error: err.Error()}
}
