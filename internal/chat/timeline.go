package chat

import (
	"sort"
	"sync"

	"github.com/srmsweets/hrportal/internal/models"
)

// EntryStatus describes how far a timeline entry got towards the server.
type EntryStatus int

const (
	// StatusConfirmed entries came from the authoritative message list.
	StatusConfirmed EntryStatus = iota
	// StatusPending entries were appended optimistically and the send is
	// still in flight.
	StatusPending
	// StatusSent entries were accepted by the server but have not shown up
	// in a fetch yet.
	StatusSent
	// StatusFailed entries were rejected. They stay visible until the
	// group is reset.
	StatusFailed
)

func (s EntryStatus) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusPending:
		return "pending"
	case StatusSent:
		return "sent"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TimelineEntry is one rendered row of a conversation.
type TimelineEntry struct {
	Message models.Message
	Status  EntryStatus
	// Own is set when the viewer wrote the message.
	Own bool
	// Err holds the send failure of a StatusFailed entry.
	Err error
}

type overlayEntry struct {
	msg    models.Message
	status EntryStatus
	err    error
	// known holds the authoritative ids present when the entry was
	// appended; only messages outside it may confirm the entry.
	known map[string]struct{}
}

// Timeline is the message list of the open group. It keeps two tiers: the
// authoritative list replaced wholesale by every fetch, and a provisional
// overlay of optimistic sends.
type Timeline struct {
	viewerID string

	mu        sync.RWMutex
	groupID   string
	confirmed []models.Message
	overlay   []*overlayEntry
}

// NewTimeline creates an empty timeline rendered from viewerID's side.
func NewTimeline(viewerID string) *Timeline {
	return &Timeline{viewerID: viewerID}
}

// Reset clears both tiers and binds the timeline to groupID. An empty id
// leaves the timeline unbound.
func (t *Timeline) Reset(groupID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.groupID = groupID
	t.confirmed = nil
	t.overlay = nil
}

// GroupID returns the group the timeline is bound to.
func (t *Timeline) GroupID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.groupID
}

// LoadFull replaces the authoritative tier with msgs sorted by timestamp.
// It returns false without touching anything when groupID is not the bound
// group, so a fetch finishing after a switch cannot leak into the new one.
//
// Overlay entries already accepted by the server are dropped. Pending
// entries are dropped when a new authoritative message from the same
// sender with the same content appears. Failed entries stay.
func (t *Timeline) LoadFull(groupID string, msgs []models.Message) bool {
	sorted := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.GroupID == "" {
			m.GroupID = groupID
		}
		sorted = append(sorted, m)
	}
	sortMessages(sorted)

	t.mu.Lock()
	defer t.mu.Unlock()

	if groupID == "" || groupID != t.groupID {
		return false
	}
	t.confirmed = sorted

	if len(t.overlay) == 0 {
		return true
	}
	claimed := make(map[string]struct{})
	kept := t.overlay[:0]
	for _, entry := range t.overlay {
		switch entry.status {
		case StatusSent:
			continue
		case StatusPending:
			if id, ok := matchConfirmed(entry, sorted, claimed); ok {
				claimed[id] = struct{}{}
				continue
			}
		}
		kept = append(kept, entry)
	}
	for i := len(kept); i < len(t.overlay); i++ {
		t.overlay[i] = nil
	}
	t.overlay = kept
	return true
}

func matchConfirmed(entry *overlayEntry, confirmed []models.Message, claimed map[string]struct{}) (string, bool) {
	for _, m := range confirmed {
		if _, seen := entry.known[m.ID]; seen {
			continue
		}
		if _, taken := claimed[m.ID]; taken {
			continue
		}
		if m.SenderID == entry.msg.SenderID && m.Content == entry.msg.Content {
			return m.ID, true
		}
	}
	return "", false
}

// AppendOptimistic adds a pending provisional message. It returns false
// when msg belongs to another group than the bound one.
func (t *Timeline) AppendOptimistic(msg models.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.groupID == "" || msg.GroupID != t.groupID {
		return false
	}
	known := make(map[string]struct{}, len(t.confirmed))
	for _, m := range t.confirmed {
		known[m.ID] = struct{}{}
	}
	t.overlay = append(t.overlay, &overlayEntry{msg: msg, status: StatusPending, known: known})
	return true
}

// MarkSent records that the server accepted the provisional message
// tempID. The entry stays visible until the next LoadFull.
func (t *Timeline) MarkSent(tempID string) bool {
	return t.setStatus(tempID, StatusSent, nil)
}

// MarkFailed records a rejected send. The entry is never removed
// automatically.
func (t *Timeline) MarkFailed(tempID string, err error) bool {
	return t.setStatus(tempID, StatusFailed, err)
}

func (t *Timeline) setStatus(tempID string, status EntryStatus, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, entry := range t.overlay {
		if entry.msg.ID == tempID {
			entry.status = status
			entry.err = err
			return true
		}
	}
	return false
}

// Messages returns the merged view ordered by timestamp. Ties keep
// authoritative messages first, then overlay entries in append order.
func (t *Timeline) Messages() []TimelineEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]TimelineEntry, 0, len(t.confirmed)+len(t.overlay))
	for _, m := range t.confirmed {
		out = append(out, TimelineEntry{Message: m, Status: StatusConfirmed, Own: m.SenderID == t.viewerID})
	}
	for _, entry := range t.overlay {
		out = append(out, TimelineEntry{
			Message: entry.msg,
			Status:  entry.status,
			Own:     entry.msg.SenderID == t.viewerID,
			Err:     entry.err,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Message.Timestamp.Before(out[j].Message.Timestamp.Time)
	})
	return out
}

// Len returns the number of rendered entries.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.confirmed) + len(t.overlay)
}

// LatestConfirmed returns the newest authoritative message.
func (t *Timeline) LatestConfirmed() (models.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.confirmed) == 0 {
		return models.Message{}, false
	}
	return t.confirmed[len(t.confirmed)-1], true
}

func sortMessages(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp.Time)
	})
}
