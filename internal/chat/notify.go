package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/srmsweets/hrportal/internal/chatapi"
	"github.com/srmsweets/hrportal/internal/events"
	"github.com/srmsweets/hrportal/internal/logging"
	"github.com/srmsweets/hrportal/internal/models"
)

// Alert is the single activity notice shown to the viewer.
type Alert struct {
	GroupID   string
	GroupName string
	Sender    string
	Preview   string
	UpdatedAt time.Time
}

// Text is the one-line rendering of the alert.
func (a Alert) Text() string {
	if a.Sender == "" {
		return "New activity in " + a.GroupName
	}
	return "New message in " + a.GroupName + " from " + a.Sender
}

// Notifier decides, once per cycle, whether some group has activity the
// viewer has not seen.
type Notifier struct {
	transport chatapi.Transport
	view      ViewSource
	watermark *Watermark
	alerts    *AlertCenter
	now       func() time.Time
	logger    zerolog.Logger
}

// NewNotifier creates a notifier. It is the only writer of watermark.
func NewNotifier(transport chatapi.Transport, view ViewSource, watermark *Watermark, alerts *AlertCenter, now func() time.Time) *Notifier {
	if now == nil {
		now = time.Now
	}
	return &Notifier{
		transport: transport,
		view:      view,
		watermark: watermark,
		alerts:    alerts,
		now:       now,
		logger:    logging.Component("notify"),
	}
}

// Cycle runs one notification pass. A group is new when it was updated
// after the watermark, its last message came from someone else and it is
// not the open group. The first new group in server order is alerted; the
// order carries no importance. The watermark then advances to the time the
// fetch returned, or to the newest update it saw when that is later, whether
// or not anything was alerted. Two updates landing in one cycle produce one
// alert and no update is alerted twice. A failed fetch leaves the watermark
// alone.
func (n *Notifier) Cycle(ctx context.Context) (*Alert, error) {
	view := n.view.ViewContext()

	groups, err := n.transport.ListGroups(ctx, view.Identity.UserID)
	if err != nil {
		return nil, err
	}
	mark := n.now()
	for _, g := range groups {
		if g.UpdatedAt.After(mark) {
			mark = g.UpdatedAt.Time
		}
	}

	var alert *Alert
	for _, g := range groups {
		if !isNewActivity(g, view) {
			continue
		}
		alert = &Alert{
			GroupID:   g.ID,
			GroupName: g.Name,
			Sender:    g.LastMessageSender,
			Preview:   g.LastMessage,
			UpdatedAt: g.UpdatedAt.Time,
		}
		break
	}

	if alert != nil && n.alerts != nil {
		n.alerts.Show(*alert)
	}
	n.watermark.Advance(mark)

	if alert != nil {
		n.logger.Debug().Str("group_id", alert.GroupID).Msg("activity alert")
	}
	return alert, nil
}

func isNewActivity(g models.Group, view ViewContext) bool {
	if g.ID == view.ActiveGroupID {
		return false
	}
	if g.LastMessageSender == view.Identity.DisplayName {
		return false
	}
	return g.UpdatedAt.After(view.Watermark)
}

// AlertCenter holds at most one visible alert. A new alert replaces the
// current one; each alert dismisses itself after the TTL.
type AlertCenter struct {
	ttl       time.Duration
	publisher events.Publisher

	mu      sync.Mutex
	current *Alert
	timer   *time.Timer
	gen     uint64
}

// NewAlertCenter creates an empty alert center. publisher may be nil.
func NewAlertCenter(ttl time.Duration, publisher events.Publisher) *AlertCenter {
	return &AlertCenter{ttl: ttl, publisher: publisher}
}

// Show replaces the visible alert and arms its self-dismiss timer.
func (c *AlertCenter) Show(alert Alert) {
	c.mu.Lock()
	c.stopTimerLocked()
	c.gen++
	gen := c.gen
	shown := alert
	c.current = &shown
	if c.ttl > 0 {
		c.timer = time.AfterFunc(c.ttl, func() { c.expire(gen) })
	}
	c.mu.Unlock()

	c.publish(models.EventTypeAlertShown, alert)
}

// Current returns the visible alert.
func (c *AlertCenter) Current() (Alert, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Alert{}, false
	}
	return *c.current, true
}

// Dismiss hides the visible alert. It reports whether one was shown.
func (c *AlertCenter) Dismiss() bool {
	alert, ok := c.take()
	if ok {
		c.publish(models.EventTypeAlertDismissed, alert)
	}
	return ok
}

// Open hides the visible alert and returns its group so the caller can
// navigate there.
func (c *AlertCenter) Open() (string, bool) {
	alert, ok := c.take()
	if !ok {
		return "", false
	}
	c.publish(models.EventTypeAlertDismissed, alert)
	return alert.GroupID, true
}

// Close stops the pending timer without publishing.
func (c *AlertCenter) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.current = nil
}

func (c *AlertCenter) expire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.current == nil {
		c.mu.Unlock()
		return
	}
	alert := *c.current
	c.current = nil
	c.timer = nil
	c.mu.Unlock()

	c.publish(models.EventTypeAlertDismissed, alert)
}

func (c *AlertCenter) take() (Alert, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Alert{}, false
	}
	alert := *c.current
	c.current = nil
	c.gen++
	c.stopTimerLocked()
	return alert, true
}

func (c *AlertCenter) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *AlertCenter) publish(eventType models.EventType, alert Alert) {
	if c.publisher == nil {
		return
	}
	event := models.NewEvent(eventType, alert.GroupID)
	event.Message = alert.Text()
	c.publisher.Publish(event)
}
