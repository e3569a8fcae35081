package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/srmsweets/hrportal/internal/events"
	"github.com/srmsweets/hrportal/internal/models"
)

type eventLog struct {
	mu     sync.Mutex
	events []models.Event
}

func (l *eventLog) handle(e *models.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, *e)
}

func (l *eventLog) ofType(t models.EventType) []models.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func fastSync() SyncConfig {
	return SyncConfig{
		DirectoryInterval:    15 * time.Millisecond,
		ConversationInterval: 10 * time.Millisecond,
		NotifyInterval:       20 * time.Millisecond,
		RequestBadgeInterval: 20 * time.Millisecond,
	}
}

func newTestEngine(t *testing.T, fake *fakeTransport, people *fakePeople, cfg Config) (*Engine, *eventLog) {
	t.Helper()
	if cfg.Identity.UserID == "" {
		cfg.Identity = viewer()
	}
	var engine *Engine
	if people == nil {
		engine = NewEngine(cfg, fake, nil)
	} else {
		engine = NewEngine(cfg, fake, people)
	}
	log := &eventLog{}
	require.NoError(t, engine.Subscribe("test", events.Filter{}, log.handle))
	t.Cleanup(engine.Close)
	return engine, log
}

func TestEngineOpeningUnreadGroup(t *testing.T) {
	ctx := context.Background()
	groups := seedGroups()
	groups[1].UpdatedAt = models.NewTimestamp(time.Date(2026, 10, 15, 7, 0, 0, 0, time.UTC))
	fake := newFakeTransport(groups...)
	fake.messages["G1"] = []models.Message{
		msg("m1", "G1", "E100", "stock report", at(0)),
	}
	engine, _ := newTestEngine(t, fake, nil, Config{
		Sync: fastSync(),
		Now:  func() time.Time { return time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC) },
	})

	require.NoError(t, engine.Refresh(ctx))
	require.NoError(t, engine.SelectGroup(ctx, "G1"))
	require.Equal(t, 1, fake.count("MarkRead"))

	require.NoError(t, engine.Start(ctx))
	require.Eventually(t, func() bool {
		return fake.count("ListGroups") >= 4 && fake.count("ListMessages") >= 3
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, []string{"G1/hr-admin-1"}, fake.markCalls(), "mark-read invoked once")
	require.NoError(t, engine.Refresh(ctx))
	g, ok := engine.ActiveGroup()
	require.True(t, ok)
	require.Zero(t, g.Unread(viewer().UserID))
	require.Equal(t, ReadStateViewing, engine.ReadState("G1"))

	// G1 was updated after the watermark but is the open group.
	alert, err := engine.CheckActivity(ctx)
	require.NoError(t, err)
	require.Nil(t, alert)
}

func TestEngineArrivalWhileViewingIsMarkedRead(t *testing.T) {
	ctx := context.Background()
	fake := newFakeTransport(seedGroups()...)
	fake.messages["G2"] = []models.Message{msg("seed1", "G2", "E200", "hi", at(0))}
	engine, _ := newTestEngine(t, fake, nil, Config{Sync: fastSync()})

	require.NoError(t, engine.SelectGroup(ctx, "G2"))
	require.NoError(t, engine.Start(ctx))
	require.Eventually(t, func() bool { return len(engine.Timeline()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Zero(t, fake.count("MarkRead"))

	fake.deliver("G2", "E200", "Anita", "payslips are out")
	require.Eventually(t, func() bool {
		return len(engine.Timeline()) == 2 && fake.count("MarkRead") >= 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		g, ok := engine.ActiveGroup()
		return ok && g.Unread(viewer().UserID) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestEngineSwitchingGroupsShowsOnlyNewGroup(t *testing.T) {
	ctx := context.Background()
	fake := newFakeTransport(seedGroups()...)
	fake.messages["G1"] = []models.Message{msg("a1", "G1", "E100", "from A", at(1))}
	fake.messages["G2"] = []models.Message{msg("b1", "G2", "E200", "from B", at(2))}
	engine, _ := newTestEngine(t, fake, nil, Config{Sync: fastSync()})
	require.NoError(t, engine.Start(ctx))

	require.NoError(t, engine.SelectGroup(ctx, "G1"))
	require.Eventually(t, func() bool { return len(engine.Timeline()) == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, engine.SelectGroup(ctx, "G2"))
	for _, e := range engine.Timeline() {
		require.Equal(t, "G2", e.Message.GroupID)
	}
	require.Eventually(t, func() bool { return len(engine.Timeline()) == 1 }, 2*time.Second, 5*time.Millisecond)
	for i := 0; i < 5; i++ {
		for _, e := range engine.Timeline() {
			require.Equal(t, "G2", e.Message.GroupID)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEngineTimelineFollowsSelectionDuringMarkRead(t *testing.T) {
	ctx := context.Background()
	fake := newFakeTransport(seedGroups()...)
	fake.messages["G1"] = []models.Message{msg("a1", "G1", "E100", "from A", at(1))}
	fake.messages["G2"] = []models.Message{msg("b1", "G2", "E200", "payroll only", at(2))}
	engine, _ := newTestEngine(t, fake, nil, Config{Sync: fastSync()})
	require.NoError(t, engine.Start(ctx))
	require.NoError(t, engine.Refresh(ctx))

	require.NoError(t, engine.SelectGroup(ctx, "G2"))
	require.Eventually(t, func() bool { return len(engine.Timeline()) == 1 }, 2*time.Second, 5*time.Millisecond)

	var (
		once     sync.Once
		active   string
		during   []TimelineEntry
		sent     models.Message
		sendErr  error
		afterSnd []TimelineEntry
	)
	fake.markReadHook = func(groupID string) {
		if groupID != "G1" {
			return
		}
		once.Do(func() {
			active = engine.ActiveGroupID()
			during = engine.Timeline()
			sent, sendErr = engine.Send(ctx, "sent while marking read")
			afterSnd = engine.Timeline()
		})
	}

	require.NoError(t, engine.SelectGroup(ctx, "G1"))
	require.GreaterOrEqual(t, fake.count("MarkRead"), 1)

	require.Equal(t, "G1", active)
	for _, e := range during {
		require.Equal(t, "G1", e.Message.GroupID, "previous group's messages visible after switching")
	}
	require.NoError(t, sendErr)
	require.Equal(t, "G1", sent.GroupID)
	var contents []string
	for _, e := range afterSnd {
		require.Equal(t, "G1", e.Message.GroupID)
		contents = append(contents, e.Message.Content)
	}
	require.Contains(t, contents, "sent while marking read")
}

func TestEngineFailedSendStaysVisible(t *testing.T) {
	ctx := context.Background()
	fake := newFakeTransport(seedGroups()...)
	fake.sendErr = &models.TransportError{Op: "send message", StatusCode: 503}
	engine, log := newTestEngine(t, fake, nil, Config{Sync: fastSync()})

	require.NoError(t, engine.SelectGroup(ctx, "G2"))
	require.Empty(t, engine.Timeline())

	sent, err := engine.Send(ctx, "hello")
	require.True(t, models.IsTransport(err))
	require.True(t, sent.IsProvisional())

	entries := engine.Timeline()
	require.Len(t, entries, 1)
	require.Equal(t, sent.ID, entries[0].Message.ID)
	require.Equal(t, StatusFailed, entries[0].Status)

	failures := log.ofType(models.EventTypeActionFailed)
	require.Len(t, failures, 1)
	require.Equal(t, "G2", failures[0].GroupID)

	// Polling does not remove it.
	require.NoError(t, engine.Start(ctx))
	require.Eventually(t, func() bool { return fake.count("ListMessages") >= 3 }, 2*time.Second, 5*time.Millisecond)
	entries = engine.Timeline()
	require.Len(t, entries, 1)
	require.Equal(t, StatusFailed, entries[0].Status)
}

func TestEngineSendRefetches(t *testing.T) {
	ctx := context.Background()
	fake := newFakeTransport(seedGroups()...)
	engine, _ := newTestEngine(t, fake, nil, Config{Sync: fastSync()})
	require.NoError(t, engine.SelectGroup(ctx, "G2"))

	sent, err := engine.Send(ctx, "  hello  ")
	require.NoError(t, err)
	require.Equal(t, "hello", sent.Content)

	entries := engine.Timeline()
	require.Len(t, entries, 1)
	require.Equal(t, StatusConfirmed, entries[0].Status)
	require.False(t, entries[0].Message.IsProvisional())
	require.True(t, entries[0].Own)
	require.Equal(t, 1, fake.count("ListMessages"))
}

func TestEngineSendValidation(t *testing.T) {
	ctx := context.Background()
	fake := newFakeTransport(seedGroups()...)
	engine, _ := newTestEngine(t, fake, nil, Config{})

	_, err := engine.Send(ctx, "hello")
	require.ErrorIs(t, err, models.ErrNoActiveGroup)

	require.NoError(t, engine.SelectGroup(ctx, "G2"))
	_, err = engine.Send(ctx, "   ")
	require.ErrorIs(t, err, models.ErrEmptyContent)
	require.Zero(t, fake.count("SendMessage"))
	require.Empty(t, engine.Timeline())
}

func TestEngineDeletingActiveGroupClearsSelection(t *testing.T) {
	ctx := context.Background()
	fake := newFakeTransport(seedGroups()...)
	fake.messages["G1"] = []models.Message{msg("m1", "G1", "E100", "hi", at(1))}
	engine, log := newTestEngine(t, fake, nil, Config{Sync: fastSync()})
	require.NoError(t, engine.Start(ctx))
	require.NoError(t, engine.Refresh(ctx))

	require.NoError(t, engine.SelectGroup(ctx, "G1"))
	require.Eventually(t, func() bool { return len(engine.Timeline()) == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, engine.DeleteGroup(ctx, "G1"))
	require.Equal(t, "", engine.ActiveGroupID())
	require.Empty(t, engine.Timeline())
	_, ok := engine.ActiveGroup()
	require.False(t, ok)

	selected := log.ofType(models.EventTypeGroupSelected)
	require.Equal(t, "", selected[len(selected)-1].GroupID)

	// Deleting someone else's group is refused locally.
	err := engine.DeleteGroup(ctx, "G2")
	require.ErrorIs(t, err, models.ErrNotOwner)
	require.Equal(t, 1, fake.count("DeleteGroup"))
}

func TestEngineCreateGroup(t *testing.T) {
	ctx := context.Background()
	fake := newFakeTransport()
	engine, log := newTestEngine(t, fake, nil, Config{})

	_, err := engine.CreateGroup(ctx, "", []string{"E1"})
	require.True(t, models.IsValidation(err))
	require.Len(t, log.ofType(models.EventTypeActionFailed), 1)

	created, err := engine.CreateGroup(ctx, "Audit", []string{"E1"})
	require.NoError(t, err)
	require.Len(t, engine.Groups(), 1)
	require.Equal(t, created.ID, engine.Groups()[0].ID)
}

func TestEngineOpenAlertSelectsGroup(t *testing.T) {
	ctx := context.Background()
	fake := newFakeTransport(seedGroups()...)
	engine, log := newTestEngine(t, fake, nil, Config{
		Now: func() time.Time { return time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, engine.Refresh(ctx))

	alert, err := engine.CheckActivity(ctx)
	require.NoError(t, err)
	require.NotNil(t, alert)
	require.Equal(t, "G1", alert.GroupID)
	_, ok := engine.Alert()
	require.True(t, ok)

	groupID, err := engine.OpenAlert(ctx)
	require.NoError(t, err)
	require.Equal(t, "G1", groupID)
	require.Equal(t, "G1", engine.ActiveGroupID())
	_, ok = engine.Alert()
	require.False(t, ok)
	require.Len(t, log.ofType(models.EventTypeAlertShown), 1)
	require.Len(t, log.ofType(models.EventTypeAlertDismissed), 1)

	groupID, err = engine.OpenAlert(ctx)
	require.NoError(t, err)
	require.Empty(t, groupID)
}

func TestEngineRequestBadgeAndEmployees(t *testing.T) {
	ctx := context.Background()
	people := &fakePeople{
		pending: 4,
		employees: []models.Employee{
			{EmployeeID: "E100", Name: "Ravi Kumar"},
			{EmployeeID: "E200", Name: "Anita Rao"},
		},
	}
	engine, log := newTestEngine(t, newFakeTransport(seedGroups()...), people, Config{Sync: fastSync()})
	require.NoError(t, engine.Start(ctx))

	require.Eventually(t, func() bool { return engine.PendingRequests() == 4 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(log.ofType(models.EventTypeBadgeUpdated)) == 1 }, 2*time.Second, 5*time.Millisecond)

	found, err := engine.Employees(ctx, "rao")
	require.NoError(t, err)
	require.Equal(t, []models.Employee{{EmployeeID: "E200", Name: "Anita Rao"}}, found)

	noPeople, _ := newTestEngine(t, newFakeTransport(), nil, Config{})
	_, err = noPeople.Employees(ctx, "")
	require.Error(t, err)
}
