package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/srmsweets/hrportal/internal/chatapi"
	"github.com/srmsweets/hrportal/internal/events"
	"github.com/srmsweets/hrportal/internal/logging"
	"github.com/srmsweets/hrportal/internal/models"
)

// SyncConfig holds the polling periods.
type SyncConfig struct {
	DirectoryInterval    time.Duration
	ConversationInterval time.Duration
	NotifyInterval       time.Duration
	RequestBadgeInterval time.Duration
}

// DefaultSyncConfig returns the console's polling periods.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		DirectoryInterval:    5 * time.Second,
		ConversationInterval: 3 * time.Second,
		NotifyInterval:       10 * time.Second,
		RequestBadgeInterval: 30 * time.Second,
	}
}

// SyncDeps are the stores and sources a Synchronizer drives.
type SyncDeps struct {
	Transport chatapi.Transport
	// Requests feeds the pending-request badge; nil disables it.
	Requests  chatapi.Directory
	View      ViewSource
	Directory *Directory
	Timeline  *Timeline
	Reads     *ReadTracker
	Notifier  *Notifier
	Publisher events.Publisher
}

// Synchronizer keeps the stores current by polling. It owns one task per
// concern; the conversation task is bound to a single group and replaced on
// every switch so no run ever fires against a stale group.
type Synchronizer struct {
	cfg    SyncConfig
	deps   SyncDeps
	logger zerolog.Logger

	mu            sync.Mutex
	parent        context.Context
	started       bool
	background    []*Task
	conversation  *Task
	conversingIn  string
	pendingCount  atomic.Int64
	badgeReported atomic.Bool
}

// NewSynchronizer creates a stopped synchronizer. Zero periods fall back
// to the defaults.
func NewSynchronizer(cfg SyncConfig, deps SyncDeps) *Synchronizer {
	defaults := DefaultSyncConfig()
	if cfg.DirectoryInterval <= 0 {
		cfg.DirectoryInterval = defaults.DirectoryInterval
	}
	if cfg.ConversationInterval <= 0 {
		cfg.ConversationInterval = defaults.ConversationInterval
	}
	if cfg.NotifyInterval <= 0 {
		cfg.NotifyInterval = defaults.NotifyInterval
	}
	if cfg.RequestBadgeInterval <= 0 {
		cfg.RequestBadgeInterval = defaults.RequestBadgeInterval
	}

	s := &Synchronizer{
		cfg:    cfg,
		deps:   deps,
		logger: logging.Component("sync"),
	}
	s.background = append(s.background,
		NewTask("directory", cfg.DirectoryInterval, s.refreshDirectory),
		NewTask("notify", cfg.NotifyInterval, s.notify),
	)
	if deps.Requests != nil {
		s.background = append(s.background, NewTask("request-badge", cfg.RequestBadgeInterval, s.refreshBadge))
	}
	return s
}

// Start launches the background tasks, and the conversation task when a
// group is already open.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrTaskAlreadyRunning
	}
	s.parent = ctx
	s.started = true

	for _, task := range s.background {
		if err := task.Start(ctx); err != nil {
			return err
		}
	}
	if active := s.deps.View.ViewContext().ActiveGroupID; active != "" {
		s.startConversationLocked(active)
	}

	s.logger.Info().
		Dur("directory_interval", s.cfg.DirectoryInterval).
		Dur("conversation_interval", s.cfg.ConversationInterval).
		Dur("notify_interval", s.cfg.NotifyInterval).
		Msg("synchronizer started")
	return nil
}

// Stop cancels every task and waits for in-flight runs.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.stopConversationLocked()
	for _, task := range s.background {
		if err := task.Stop(); err != nil && !errors.Is(err, ErrTaskNotRunning) {
			s.logger.Warn().Err(err).Str("task", task.Name()).Msg("stop task")
		}
	}
	s.started = false
	s.logger.Info().Msg("synchronizer stopped")
}

// SetActiveGroup switches the conversation task to groupID. The old task
// is stopped and drained before the timeline is reset, so its last fetch
// cannot land in the new group. An empty id leaves no conversation task.
func (s *Synchronizer) SetActiveGroup(groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopConversationLocked()
	s.deps.Timeline.Reset(groupID)
	if groupID != "" && s.started {
		s.startConversationLocked(groupID)
	}
}

// ConversationGroup returns the group the conversation task polls.
func (s *Synchronizer) ConversationGroup() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversingIn
}

// Tasks returns the running tasks, conversation last.
func (s *Synchronizer) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]*Task(nil), s.background...)
	if s.conversation != nil {
		out = append(out, s.conversation)
	}
	return out
}

// PendingRequests returns the last fetched pending-request count.
func (s *Synchronizer) PendingRequests() int {
	return int(s.pendingCount.Load())
}

// LoadConversation fetches groupID's messages into the timeline and runs
// the read-state pass. It is the conversation task's body and also backs
// the refetch after a send.
func (s *Synchronizer) LoadConversation(ctx context.Context, groupID string) error {
	msgs, err := s.deps.Transport.ListMessages(ctx, groupID)
	if err != nil {
		return err
	}
	if !s.deps.Timeline.LoadFull(groupID, msgs) {
		return nil
	}
	s.publish(models.NewEvent(models.EventTypeTimelineUpdated, groupID))

	if latest, ok := s.deps.Timeline.LatestConfirmed(); ok && s.deps.Reads != nil {
		if err := s.deps.Reads.Observe(ctx, groupID, latest); err != nil {
			return err
		}
	}
	return nil
}

// RefreshDirectory runs one directory pass with the current view.
func (s *Synchronizer) RefreshDirectory(ctx context.Context) error {
	return s.refreshDirectory(ctx)
}

func (s *Synchronizer) startConversationLocked(groupID string) {
	task := NewTask("conversation", s.cfg.ConversationInterval, func(ctx context.Context) error {
		return s.LoadConversation(ctx, groupID)
	})
	log := logging.WithGroup("sync", groupID)
	if err := task.Start(s.parent); err != nil {
		log.Warn().Err(err).Msg("start conversation task")
		return
	}
	log.Debug().Dur("interval", s.cfg.ConversationInterval).Msg("conversation task started")
	s.conversation = task
	s.conversingIn = groupID
}

func (s *Synchronizer) stopConversationLocked() {
	if s.conversation == nil {
		return
	}
	if err := s.conversation.Stop(); err != nil && !errors.Is(err, ErrTaskNotRunning) {
		s.logger.Warn().Err(err).Msg("stop conversation task")
	}
	s.conversation = nil
	s.conversingIn = ""
}

func (s *Synchronizer) refreshDirectory(ctx context.Context) error {
	view := s.deps.View.ViewContext()
	result, err := s.deps.Directory.Refresh(ctx, view.Identity.UserID, view.ActiveGroupID)
	if err != nil {
		return err
	}
	event := models.NewEvent(models.EventTypeDirectoryRefreshed, view.ActiveGroupID)
	event.Count = len(result.Groups)
	s.publish(event)

	if s.deps.Reads != nil {
		return s.deps.Reads.Reconcile(ctx, view.ActiveGroupID, result.ActiveServerUnread)
	}
	return nil
}

func (s *Synchronizer) notify(ctx context.Context) error {
	if s.deps.Notifier == nil {
		return nil
	}
	_, err := s.deps.Notifier.Cycle(ctx)
	return err
}

func (s *Synchronizer) refreshBadge(ctx context.Context) error {
	n, err := s.deps.Requests.PendingRequestCount(ctx)
	if err != nil {
		return err
	}
	prev := s.pendingCount.Swap(int64(n))
	if prev != int64(n) || !s.badgeReported.Swap(true) {
		event := models.NewEvent(models.EventTypeBadgeUpdated, "")
		event.Count = n
		s.publish(event)
	}
	return nil
}

func (s *Synchronizer) publish(event *models.Event) {
	if s.deps.Publisher != nil {
		s.deps.Publisher.Publish(event)
	}
}
