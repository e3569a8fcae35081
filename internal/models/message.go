package models

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// ProvisionalPrefix marks client-generated ids of messages that the server
// has not confirmed yet.
const ProvisionalPrefix = "temp-"

// Message is a single chat message in a group.
type Message struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"groupId,omitempty"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Timestamp  Timestamp `json:"timestamp"`
}

// IsProvisional reports whether the message carries a temporary id.
func (m Message) IsProvisional() bool {
	return strings.HasPrefix(m.ID, ProvisionalPrefix)
}

var provisionalSeq atomic.Uint64

// NewProvisionalMessage builds the optimistic copy of a message being sent.
// The id is temp-<unix millis>; a sequence suffix keeps two sends within
// the same millisecond apart.
func NewProvisionalMessage(groupID string, sender Identity, content string, now time.Time) Message {
	seq := provisionalSeq.Add(1)
	return Message{
		ID:         fmt.Sprintf("%s%d-%d", ProvisionalPrefix, now.UnixMilli(), seq),
		GroupID:    groupID,
		SenderID:   sender.UserID,
		SenderName: sender.DisplayName,
		Content:    content,
		Timestamp:  NewTimestamp(now),
	}
}
