package store

import (
	"sync"
	"time"
)

// MessageType distinguishes literal text from media references.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
)

// Status is the delivery state of a locally originated message.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Message is a single entry in a conversation log.
type Message struct {
	ID             string
	ConversationID string
	From           string
	To             string
	Body           string
	Type           MessageType
	CreatedAt      time.Time
	Status         Status
	// TempID is set only while an outgoing message awaits acknowledgment.
	TempID string
}

// Patch carries the fields reconciliation may change.
type Patch struct {
	ID     string
	Status Status
}

// Log is an ordered, de-duplicated, append-only message log bucketed by
// conversation. Messages are mutated in place on reconciliation and never
// removed or reordered, so a position in the sequence is stable for the
// lifetime of the log.
type Log struct {
	mu     sync.Mutex
	byConv map[string]*sequence
}

type sequence struct {
	order    []*Message
	byID     map[string]*Message
	byTempID map[string]*Message
}

// NewLog creates an empty message log.
func NewLog() *Log {
	return &Log{byConv: make(map[string]*sequence)}
}

func (l *Log) conversation(conversationID string) *sequence {
	seq, ok := l.byConv[conversationID]
	if !ok {
		seq = &sequence{
			byID:     make(map[string]*Message),
			byTempID: make(map[string]*Message),
		}
		l.byConv[conversationID] = seq
	}
	return seq
}

// Append inserts the message at the end of its conversation's sequence.
// It reports false, without modifying the log, if the id is already present.
func (l *Log) Append(conversationID string, msg Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.conversation(conversationID)
	if _, exists := seq.byID[msg.ID]; exists {
		return false
	}

	entry := msg
	entry.ConversationID = conversationID
	seq.order = append(seq.order, &entry)
	seq.byID[entry.ID] = &entry
	if entry.TempID != "" {
		seq.byTempID[entry.TempID] = &entry
	}
	return true
}

// UpdateByTempID reconciles the pending message matching tempID: it applies
// the patch in place and clears the temp id. A missing tempID is a no-op
// (an ack for an already-reconciled or unknown message is ignored), as is a
// patch that would move a message out of a terminal status.
func (l *Log) UpdateByTempID(conversationID, tempID string, patch Patch) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.conversation(conversationID)
	entry, ok := seq.byTempID[tempID]
	if !ok {
		return false
	}
	if entry.Status != StatusPending {
		return false
	}

	if patch.ID != "" && patch.ID != entry.ID {
		if _, taken := seq.byID[patch.ID]; taken {
			// The server id already landed through another path; absorb the ack.
			return false
		}
		delete(seq.byID, entry.ID)
		entry.ID = patch.ID
		seq.byID[entry.ID] = entry
	}
	if patch.Status != "" {
		entry.Status = patch.Status
	}

	entry.TempID = ""
	delete(seq.byTempID, tempID)
	return true
}

// MergeHistory appends a server-fetched page, skipping anything already
// present by id. It returns the number of messages actually merged.
func (l *Log) MergeHistory(conversationID string, msgs []Message) int {
	merged := 0
	for _, m := range msgs {
		if l.Append(conversationID, m) {
			merged++
		}
	}
	return merged
}

// Get returns a copy of the message with the given id, if present.
func (l *Log) Get(conversationID, id string) (Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq, ok := l.byConv[conversationID]
	if !ok {
		return Message{}, false
	}
	entry, ok := seq.byID[id]
	if !ok {
		return Message{}, false
	}
	return *entry, true
}

// Query returns the conversation's messages in insertion order.
func (l *Log) Query(conversationID string) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq, ok := l.byConv[conversationID]
	if !ok {
		return nil
	}
	out := make([]Message, len(seq.order))
	for i, m := range seq.order {
		out[i] = *m
	}
	return out
}

// Len reports how many messages the conversation holds.
func (l *Log) Len(conversationID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq, ok := l.byConv[conversationID]
	if !ok {
		return 0
	}
	return len(seq.order)
}
