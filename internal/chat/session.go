package chat

import (
	"sync"
	"time"

	"github.com/srmsweets/hrportal/internal/models"
)

// ViewContext is what the pollers need to know about the view at tick
// time.
type ViewContext struct {
	Identity      models.Identity
	ActiveGroupID string
	Watermark     time.Time
}

// ViewSource supplies the view context. The synchronizer and notifier read
// it on every tick instead of holding their own copy.
type ViewSource interface {
	ViewContext() ViewContext
}

// StaticView is a fixed ViewSource.
type StaticView ViewContext

func (v StaticView) ViewContext() ViewContext { return ViewContext(v) }

// Watermark is the boundary the notifier compares group updates against.
// It never moves backwards.
type Watermark struct {
	mu sync.RWMutex
	t  time.Time
}

// NewWatermark starts the watermark at t.
func NewWatermark(t time.Time) *Watermark {
	return &Watermark{t: t}
}

// Load returns the current boundary.
func (w *Watermark) Load() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.t
}

// Advance moves the boundary to t unless t is earlier. It reports whether
// the boundary moved.
func (w *Watermark) Advance(t time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !t.After(w.t) {
		return false
	}
	w.t = t
	return true
}

// Session is the per-process view state: who is signed in, which group is
// open and the notification watermark. The active group has one writer,
// the selection actions; the watermark has one writer, the notifier.
type Session struct {
	identity  models.Identity
	watermark *Watermark

	mu     sync.RWMutex
	active string
}

// NewSession creates a session with no group open.
func NewSession(identity models.Identity, watermark *Watermark) *Session {
	if watermark == nil {
		watermark = NewWatermark(time.Now())
	}
	return &Session{identity: identity, watermark: watermark}
}

// Identity returns the signed-in user.
func (s *Session) Identity() models.Identity { return s.identity }

// Watermark returns the shared watermark.
func (s *Session) Watermark() *Watermark { return s.watermark }

// ActiveGroupID returns the open group, or "".
func (s *Session) ActiveGroupID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Select opens groupID and returns the previously open group.
func (s *Session) Select(groupID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.active
	s.active = groupID
	return prev
}

// Clear closes the open group and returns it.
func (s *Session) Clear() string {
	return s.Select("")
}

// ViewContext snapshots the session.
func (s *Session) ViewContext() ViewContext {
	return ViewContext{
		Identity:      s.identity,
		ActiveGroupID: s.ActiveGroupID(),
		Watermark:     s.watermark.Load(),
	}
}
