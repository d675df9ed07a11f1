package agent

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is the one canonical record agents exchange. Content is an
// opaque payload the core never interprets.
type Message struct {
	ID          string
	SenderID    string
	RecipientID string
	Content     any
	Timestamp   time.Time
	Type        string
	Metadata    map[string]any
}

// MessageOption configures a Message at construction time.
type MessageOption func(*Message)

// WithType sets the message's type tag.
func WithType(t string) MessageOption {
	return func(m *Message) { m.Type = t }
}

// WithMetadata attaches metadata to the message.
func WithMetadata(meta map[string]any) MessageOption {
	return func(m *Message) { m.Metadata = meta }
}

// WithTimestamp overrides the default (time.Now) timestamp — mainly
// useful in tests that assert ordering.
func WithTimestamp(ts time.Time) MessageOption {
	return func(m *Message) { m.Timestamp = ts }
}

// NewMessage constructs an AgentMessage, rejecting a missing sender or
// recipient at construction time, per the data model's invariant.
func NewMessage(senderID, recipientID string, content any, opts ...MessageOption) (*Message, error) {
	if senderID == "" {
		return nil, ErrMissingSender
	}
	if recipientID == "" {
		return nil, ErrMissingRecipient
	}
	m := &Message{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		Timestamp:   time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// FromMap converts a caller-supplied mapping into a canonical Message.
// This is the ingestion-layer adapter the design notes call for: the
// core's ProcessMessage never branches on input shape, so any dict-style
// payload must be normalized here before it reaches an Agent.
//
// Accepted keys: sender_id|sender, recipient_id|recipient, content,
// message_type, timestamp, metadata.
func FromMap(m map[string]any) (*Message, error) {
	sender, _ := stringField(m, "sender_id", "sender")
	recipient, _ := stringField(m, "recipient_id", "recipient")
	if sender == "" {
		return nil, ErrMissingSender
	}
	if recipient == "" {
		return nil, ErrMissingRecipient
	}

	var opts []MessageOption
	if mt, ok := stringField(m, "message_type"); ok {
		opts = append(opts, WithType(mt))
	}
	if ts, ok := m["timestamp"].(time.Time); ok {
		opts = append(opts, WithTimestamp(ts))
	}
	if meta, ok := m["metadata"].(map[string]any); ok {
		opts = append(opts, WithMetadata(meta))
	}

	return NewMessage(sender, recipient, m["content"], opts...)
}

func stringField(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// isSimulatedFailure reports whether content requests the ErrSimulatedFailure
// testability hook described in spec §4.2.
func isSimulatedFailure(content any) bool {
	m, ok := content.(map[string]any)
	if !ok {
		return false
	}
	fail, _ := m["should_fail"].(bool)
	return fail
}

func (m *Message) String() string {
	return fmt.Sprintf("Message{%s: %s -> %s}", m.ID, m.SenderID, m.RecipientID)
}
