package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"finsight/internal/store"
)

// Message is a lightweight change notice. It carries no transaction data:
// consumers reload from the backend instead of applying foreign state.
type Message struct {
	Op            store.Op  `json:"op"`
	TransactionID string    `json:"transactionId,omitempty"`
	Version       uint64    `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
}

var ErrMalformed = errors.New("malformed event")

// NewMessage describes a cache event.
func NewMessage(ev store.Event) *Message {
	return &Message{
		Op:            ev.Op,
		TransactionID: ev.Transaction.ID,
		Version:       ev.Snapshot.Version,
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MessageFromJSON decodes and checks a message body.
func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch msg.Op {
	case store.OpLoad, store.OpAdd, store.OpUpdate, store.OpRemove, store.OpReset:
	default:
		return nil, fmt.Errorf("%w: unknown op %q", ErrMalformed, msg.Op)
	}
	return &msg, nil
}
