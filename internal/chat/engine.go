package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/srmsweets/hrportal/internal/chatapi"
	"github.com/srmsweets/hrportal/internal/events"
	"github.com/srmsweets/hrportal/internal/logging"
	"github.com/srmsweets/hrportal/internal/models"
)

// errGroupSwitched is returned by Send when the open group changed between
// reading it and appending the pending message.
var errGroupSwitched = errors.New("open group changed before the message was queued")

// Config configures an Engine.
type Config struct {
	Identity models.Identity
	Sync     SyncConfig
	AlertTTL time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Engine ties the stores, pollers and alerting together behind the
// operations a view performs.
type Engine struct {
	cfg       Config
	transport chatapi.Transport
	people    chatapi.Directory
	publisher *events.InMemoryPublisher
	logger    zerolog.Logger

	session   *Session
	directory *Directory
	timeline  *Timeline
	reads     *ReadTracker
	alerts    *AlertCenter
	notifier  *Notifier
	sync      *Synchronizer
}

// NewEngine wires an engine. people may be nil, which disables the request
// badge and employee lookups.
func NewEngine(cfg Config, transport chatapi.Transport, people chatapi.Directory) *Engine {
	if cfg.Identity.UserID == "" {
		cfg.Identity = models.DefaultIdentity()
	}
	if cfg.AlertTTL <= 0 {
		cfg.AlertTTL = 4 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	publisher := events.NewInMemoryPublisher()
	session := NewSession(cfg.Identity, NewWatermark(cfg.Now()))
	directory := NewDirectory(transport)
	timeline := NewTimeline(cfg.Identity.UserID)
	reads := NewReadTracker(directory, cfg.Identity.UserID)
	alerts := NewAlertCenter(cfg.AlertTTL, publisher)
	notifier := NewNotifier(transport, session, session.Watermark(), alerts, cfg.Now)

	e := &Engine{
		cfg:       cfg,
		transport: transport,
		people:    people,
		publisher: publisher,
		logger:    logging.Component("engine"),
		session:   session,
		directory: directory,
		timeline:  timeline,
		reads:     reads,
		alerts:    alerts,
		notifier:  notifier,
	}
	e.sync = NewSynchronizer(cfg.Sync, SyncDeps{
		Transport: transport,
		Requests:  people,
		View:      session,
		Directory: directory,
		Timeline:  timeline,
		Reads:     reads,
		Notifier:  notifier,
		Publisher: publisher,
	})
	return e
}

// Start begins polling.
func (e *Engine) Start(ctx context.Context) error {
	return e.sync.Start(ctx)
}

// Close stops polling and drops all subscribers.
func (e *Engine) Close() {
	e.sync.Stop()
	e.alerts.Close()
	e.publisher.Close()
}

// Identity returns the signed-in user.
func (e *Engine) Identity() models.Identity { return e.cfg.Identity }

// Subscribe registers handler for engine events.
func (e *Engine) Subscribe(id string, filter events.Filter, handler events.EventHandler) error {
	return e.publisher.Subscribe(id, filter, handler)
}

// Unsubscribe removes a subscription.
func (e *Engine) Unsubscribe(id string) error {
	return e.publisher.Unsubscribe(id)
}

// Refresh runs one directory pass immediately.
func (e *Engine) Refresh(ctx context.Context) error {
	return e.sync.RefreshDirectory(ctx)
}

// SelectGroup opens groupID: the timeline is reset and the conversation
// task restarts for it, then it is marked read when it has unread
// messages. The timeline never shows the previous group while the
// mark-read call is in flight. An empty id closes the open group.
func (e *Engine) SelectGroup(ctx context.Context, groupID string) error {
	if groupID == "" {
		e.ClearSelection()
		return nil
	}
	prev := e.session.Select(groupID)
	if prev == groupID {
		return nil
	}
	if prev != "" {
		e.reads.Leave(prev)
	}

	e.sync.SetActiveGroup(groupID)
	markErr := e.reads.Enter(ctx, groupID)
	e.publisher.Publish(models.NewEvent(models.EventTypeGroupSelected, groupID))

	if markErr != nil {
		return e.fail(groupID, "mark read", markErr)
	}
	return nil
}

// ClearSelection closes the open group.
func (e *Engine) ClearSelection() {
	prev := e.session.Clear()
	if prev == "" {
		return
	}
	e.reads.Leave(prev)
	e.sync.SetActiveGroup("")
	e.publisher.Publish(models.NewEvent(models.EventTypeGroupSelected, ""))
}

// ActiveGroupID returns the open group, or "".
func (e *Engine) ActiveGroupID() string {
	return e.session.ActiveGroupID()
}

// ActiveGroup returns the open group as last seen by the directory.
func (e *Engine) ActiveGroup() (models.Group, bool) {
	id := e.session.ActiveGroupID()
	if id == "" {
		return models.Group{}, false
	}
	return e.directory.Group(id)
}

// Send posts content to the open group. The message shows up at once as
// pending; on failure it stays visible as failed and the error is
// returned. A success triggers an immediate refetch.
func (e *Engine) Send(ctx context.Context, content string) (models.Message, error) {
	content, err := models.ValidateMessageContent(content)
	if err != nil {
		return models.Message{}, err
	}
	groupID := e.session.ActiveGroupID()
	if groupID == "" {
		return models.Message{}, &models.ValidationErrors{Errors: []models.ValidationError{{
			Field:   "group",
			Message: models.ErrNoActiveGroup.Error(),
			Cause:   models.ErrNoActiveGroup,
		}}}
	}

	provisional := models.NewProvisionalMessage(groupID, e.cfg.Identity, content, e.cfg.Now())
	if !e.timeline.AppendOptimistic(provisional) {
		return models.Message{}, e.fail(groupID, "send message", errGroupSwitched)
	}
	e.publisher.Publish(models.NewEvent(models.EventTypeTimelineUpdated, groupID))

	_, err = e.transport.SendMessage(ctx, groupID, chatapi.SendMessageRequest{
		SenderID:   e.cfg.Identity.UserID,
		SenderName: e.cfg.Identity.DisplayName,
		Content:    content,
	})
	if err != nil {
		e.timeline.MarkFailed(provisional.ID, err)
		e.publisher.Publish(models.NewEvent(models.EventTypeTimelineUpdated, groupID))
		return provisional, e.fail(groupID, "send message", err)
	}

	e.timeline.MarkSent(provisional.ID)
	if err := e.sync.LoadConversation(ctx, groupID); err != nil {
		e.logger.Warn().Err(err).Str("group_id", groupID).Msg("refetch after send failed")
	}
	return provisional, nil
}

// CreateGroup creates a group owned by the signed-in user.
func (e *Engine) CreateGroup(ctx context.Context, name string, members []string) (*models.Group, error) {
	created, err := e.directory.CreateGroup(ctx, name, members, e.cfg.Identity.UserID)
	if err != nil {
		return nil, e.fail("", "create group", err)
	}
	e.publishDirectory()
	return created, nil
}

// DeleteGroup deletes a group the signed-in user created. Deleting the
// open group closes it.
func (e *Engine) DeleteGroup(ctx context.Context, groupID string) error {
	if err := e.directory.DeleteGroup(ctx, groupID, e.cfg.Identity.UserID); err != nil {
		return e.fail(groupID, "delete group", err)
	}
	if e.session.ActiveGroupID() == groupID {
		e.ClearSelection()
	}
	e.publishDirectory()
	return nil
}

// MarkRead acknowledges groupID without opening it.
func (e *Engine) MarkRead(ctx context.Context, groupID string) error {
	if err := e.directory.MarkGroupRead(ctx, groupID, e.cfg.Identity.UserID); err != nil {
		return e.fail(groupID, "mark read", err)
	}
	e.publishDirectory()
	return nil
}

// Groups returns the directory snapshot in server order.
func (e *Engine) Groups() []models.Group {
	return e.directory.Snapshot()
}

// TotalUnread sums the viewer's unread counts.
func (e *Engine) TotalUnread() int {
	return e.directory.TotalUnread(e.cfg.Identity.UserID)
}

// Timeline returns the open conversation. It is empty when no group is
// open.
func (e *Engine) Timeline() []TimelineEntry {
	if e.session.ActiveGroupID() == "" {
		return nil
	}
	return e.timeline.Messages()
}

// ReadState reports groupID's read state for the viewer.
func (e *Engine) ReadState(groupID string) ReadState {
	return e.reads.State(groupID)
}

// Alert returns the visible activity alert.
func (e *Engine) Alert() (Alert, bool) {
	return e.alerts.Current()
}

// OpenAlert clears the visible alert and opens its group.
func (e *Engine) OpenAlert(ctx context.Context) (string, error) {
	groupID, ok := e.alerts.Open()
	if !ok {
		return "", nil
	}
	return groupID, e.SelectGroup(ctx, groupID)
}

// DismissAlert hides the visible alert.
func (e *Engine) DismissAlert() {
	e.alerts.Dismiss()
}

// CheckActivity runs one notification cycle immediately.
func (e *Engine) CheckActivity(ctx context.Context) (*Alert, error) {
	return e.notifier.Cycle(ctx)
}

// PendingRequests returns the last fetched pending-request count.
func (e *Engine) PendingRequests() int {
	return e.sync.PendingRequests()
}

// Employees lists member candidates matching filter by name or employee
// id.
func (e *Engine) Employees(ctx context.Context, filter string) ([]models.Employee, error) {
	if e.people == nil {
		return nil, errors.New("employee directory not configured")
	}
	list, err := e.people.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return FilterEmployees(list, filter), nil
}

// fail logs a user-initiated action failure and publishes it once.
func (e *Engine) fail(groupID, action string, err error) error {
	if models.IsValidation(err) {
		e.logger.Debug().Err(err).Str("action", action).Msg("action rejected")
	} else {
		e.logger.Warn().Err(err).Str("action", action).Str("group_id", groupID).Msg("action failed")
	}
	event := models.NewEvent(models.EventTypeActionFailed, groupID)
	event.Message = action + ": " + err.Error()
	event.Err = err
	e.publisher.Publish(event)
	return err
}

func (e *Engine) publishDirectory() {
	event := models.NewEvent(models.EventTypeDirectoryRefreshed, e.session.ActiveGroupID())
	event.Count = len(e.directory.Snapshot())
	e.publisher.Publish(event)
}
