package models

import (
	"time"
)

// EventType categorizes engine events delivered to the UI.
type EventType string

const (
	EventTypeDirectoryRefreshed EventType = "directory.refreshed"
	EventTypeTimelineUpdated    EventType = "timeline.updated"
	EventTypeGroupSelected      EventType = "group.selected"
	EventTypeAlertShown         EventType = "alert.shown"
	EventTypeAlertDismissed     EventType = "alert.dismissed"
	EventTypeActionFailed       EventType = "action.failed"
	EventTypeBadgeUpdated       EventType = "badge.updated"
)

// Event is a notification from the messaging engine to its views.
type Event struct {
	Type      EventType `json:"type"`
	GroupID   string    `json:"group_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Count     int       `json:"count,omitempty"`
	Err       error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType EventType, groupID string) *Event {
	return &Event{
		Type:      eventType,
		GroupID:   groupID,
		Timestamp: time.Now().UTC(),
	}
}
