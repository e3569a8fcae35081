package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/srmsweets/hrportal/internal/logging"
	"github.com/srmsweets/hrportal/internal/models"
)

// ReadState is a group's read state from the viewer's side.
type ReadState int

const (
	ReadStateRead ReadState = iota
	ReadStateUnread
	ReadStateViewing
)

func (s ReadState) String() string {
	switch s {
	case ReadStateUnread:
		return "unread"
	case ReadStateViewing:
		return "viewing"
	default:
		return "read"
	}
}

// ReadTracker clears unread counts for the group being viewed. Leaving a
// group never raises its count; only new messages from others do, through
// the next directory refresh.
type ReadTracker struct {
	directory *Directory
	viewerID  string
	logger    zerolog.Logger

	mu       sync.Mutex
	viewing  string
	marker   string
	observed bool
}

// NewReadTracker creates a tracker for viewerID.
func NewReadTracker(directory *Directory, viewerID string) *ReadTracker {
	return &ReadTracker{
		directory: directory,
		viewerID:  viewerID,
		logger:    logging.Component("readstate"),
	}
}

// Enter makes groupID the viewed group and marks it read when the
// directory reports anything to clear.
func (r *ReadTracker) Enter(ctx context.Context, groupID string) error {
	if groupID == "" {
		return nil
	}
	r.mu.Lock()
	if r.viewing != groupID {
		r.viewing = groupID
		r.marker = ""
		r.observed = false
	}
	r.mu.Unlock()

	if r.directory.Unread(groupID, r.viewerID) == 0 {
		return nil
	}
	return r.markRead(ctx, groupID, "enter")
}

// Observe is called with the newest confirmed message after each load of
// the viewed conversation. The first call only records it; a later, newer
// message from someone else was seen while viewing and is marked read.
func (r *ReadTracker) Observe(ctx context.Context, groupID string, latest models.Message) error {
	if latest.ID == "" {
		return nil
	}

	r.mu.Lock()
	if groupID != r.viewing {
		r.mu.Unlock()
		return nil
	}
	if !r.observed {
		r.observed = true
		r.marker = latest.ID
		r.mu.Unlock()
		return nil
	}
	if latest.ID == r.marker {
		r.mu.Unlock()
		return nil
	}
	r.marker = latest.ID
	r.mu.Unlock()

	if latest.SenderID == r.viewerID {
		return nil
	}
	return r.markRead(ctx, groupID, "arrival")
}

// Reconcile is the backup path from a directory refresh: the server still
// reports unread messages for the viewed group.
func (r *ReadTracker) Reconcile(ctx context.Context, groupID string, serverUnread int) error {
	if groupID == "" || serverUnread <= 0 {
		return nil
	}
	r.mu.Lock()
	viewing := r.viewing == groupID
	r.mu.Unlock()
	if !viewing {
		return nil
	}
	return r.markRead(ctx, groupID, "reconcile")
}

// Leave stops viewing groupID. Unread counts are untouched.
func (r *ReadTracker) Leave(groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if groupID == "" || r.viewing == groupID {
		r.viewing = ""
		r.marker = ""
		r.observed = false
	}
}

// Viewing returns the group currently viewed.
func (r *ReadTracker) Viewing() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewing
}

// State reports groupID's read state.
func (r *ReadTracker) State(groupID string) ReadState {
	r.mu.Lock()
	viewing := r.viewing == groupID
	r.mu.Unlock()
	switch {
	case viewing:
		return ReadStateViewing
	case r.directory.Unread(groupID, r.viewerID) > 0:
		return ReadStateUnread
	default:
		return ReadStateRead
	}
}

func (r *ReadTracker) markRead(ctx context.Context, groupID, reason string) error {
	if err := r.directory.MarkGroupRead(ctx, groupID, r.viewerID); err != nil {
		r.logger.Warn().Err(err).Str("group_id", groupID).Str("reason", reason).Msg("mark read failed")
		return err
	}
	r.logger.Debug().Str("group_id", groupID).Str("reason", reason).Msg("marked read")
	return nil
}
