package events

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srmsweets/hrportal/internal/models"
)

func TestFilter_Matches(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		event  *models.Event
		want   bool
	}{
		{
			name:   "empty filter matches any event",
			filter: Filter{},
			event:  &models.Event{Type: models.EventTypeAlertShown, GroupID: "g1"},
			want:   true,
		},
		{
			name:   "nil event returns false",
			filter: Filter{},
			event:  nil,
			want:   false,
		},
		{
			name:   "event type filter rejects non-matching",
			filter: Filter{EventTypes: []models.EventType{models.EventTypeAlertShown}},
			event:  &models.Event{Type: models.EventTypeBadgeUpdated},
			want:   false,
		},
		{
			name: "multiple event types - matches any",
			filter: Filter{EventTypes: []models.EventType{
				models.EventTypeAlertShown,
				models.EventTypeAlertDismissed,
			}},
			event: &models.Event{Type: models.EventTypeAlertDismissed},
			want:  true,
		},
		{
			name:   "group filter rejects other groups",
			filter: Filter{GroupID: "g1"},
			event:  &models.Event{Type: models.EventTypeTimelineUpdated, GroupID: "g2"},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.filter.Matches(tt.event))
		})
	}
}

func TestInMemoryPublisher_SubscribeAndPublish(t *testing.T) {
	p := NewInMemoryPublisher()

	var alerts, all atomic.Int32
	require.NoError(t, p.Subscribe("alerts", Filter{EventTypes: []models.EventType{models.EventTypeAlertShown}}, func(*models.Event) {
		alerts.Add(1)
	}))
	require.NoError(t, p.Subscribe("all", Filter{}, func(*models.Event) {
		all.Add(1)
	}))
	require.ErrorIs(t, p.Subscribe("all", Filter{}, func(*models.Event) {}), ErrSubscriptionExists)
	require.ErrorIs(t, p.Subscribe("", Filter{}, func(*models.Event) {}), ErrInvalidSubscriptionID)
	require.ErrorIs(t, p.Subscribe("nil", Filter{}, nil), ErrNilHandler)

	p.Publish(models.NewEvent(models.EventTypeAlertShown, "g1"))
	p.Publish(models.NewEvent(models.EventTypeBadgeUpdated, ""))
	p.Publish(nil)

	require.Equal(t, int32(1), alerts.Load())
	require.Equal(t, int32(2), all.Load())
	require.Equal(t, 2, p.SubscriberCount())

	require.NoError(t, p.Unsubscribe("alerts"))
	require.ErrorIs(t, p.Unsubscribe("alerts"), ErrSubscriptionNotFound)
	p.Close()
	require.Equal(t, 0, p.SubscriberCount())
}

func TestInMemoryPublisher_HandlerMayUnsubscribe(t *testing.T) {
	p := NewInMemoryPublisher()
	var calls atomic.Int32
	require.NoError(t, p.Subscribe("once", Filter{}, func(*models.Event) {
		calls.Add(1)
		_ = p.Unsubscribe("once")
	}))

	p.Publish(models.NewEvent(models.EventTypeGroupSelected, "g1"))
	p.Publish(models.NewEvent(models.EventTypeGroupSelected, "g1"))
	require.Equal(t, int32(1), calls.Load())
}
