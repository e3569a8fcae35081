package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroupUnreadAndClone(t *testing.T) {
	g := Group{
		ID:           "g1",
		Name:         "sales team",
		Members:      []string{"EMP1", "hr-admin-1"},
		CreatedBy:    "hr-admin-1",
		UnreadCounts: map[string]int{"hr-admin-1": 3, "EMP1": -2},
	}
	require.Equal(t, 3, g.Unread("hr-admin-1"))
	require.Equal(t, 0, g.Unread("EMP1"))
	require.Equal(t, 0, g.Unread("nobody"))
	require.True(t, g.OwnedBy("hr-admin-1"))
	require.False(t, g.OwnedBy(""))
	require.Equal(t, "SA", g.Initials())
	require.Equal(t, "No messages yet", g.Preview())

	zeroed := g.WithUnread("hr-admin-1", 0)
	require.Equal(t, 0, zeroed.Unread("hr-admin-1"))
	require.Equal(t, 3, g.Unread("hr-admin-1"), "original must not change")

	clone := g.Clone()
	clone.Members[0] = "changed"
	require.Equal(t, "EMP1", g.Members[0])
}

func TestGroupDecodesFirestorePayload(t *testing.T) {
	payload := `{
		"id": "g1",
		"name": "Kitchen",
		"members": ["EMP7", "hr-admin-1"],
		"createdBy": "hr-admin-1",
		"lastMessage": "stock arrived",
		"lastMessageSender": "Ravi",
		"updatedAt": {"_seconds": 1760000000, "_nanoseconds": 500000000},
		"unreadCounts": {"hr-admin-1": 2}
	}`
	var g Group
	require.NoError(t, json.Unmarshal([]byte(payload), &g))
	require.Equal(t, time.Unix(1760000000, 500000000).UTC(), g.UpdatedAt.Time)
	require.Equal(t, 2, g.Unread("hr-admin-1"))
	require.Equal(t, "Ravi", g.LastMessageSender)
}

func TestTimestampForms(t *testing.T) {
	want := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		name    string
		payload string
		want    time.Time
	}{
		{name: "firestore", payload: `{"_seconds":1792056600,"_nanoseconds":0}`, want: want},
		{name: "rfc3339", payload: `"2026-10-15T09:30:00Z"`, want: want},
		{name: "millis", payload: `1792056600000`, want: want},
		{name: "null", payload: `null`},
		{name: "empty object", payload: `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &ts))
			require.True(t, tt.want.Equal(ts.Time), "got %v", ts.Time)
		})
	}

	var bad Timestamp
	require.Error(t, json.Unmarshal([]byte(`"yesterday"`), &bad))
}

func TestProvisionalMessageIDs(t *testing.T) {
	now := time.UnixMilli(1792056600000)
	a := NewProvisionalMessage("g1", DefaultIdentity(), "hello", now)
	b := NewProvisionalMessage("g1", DefaultIdentity(), "hello", now)
	require.True(t, a.IsProvisional())
	require.NotEqual(t, a.ID, b.ID)
	require.Contains(t, a.ID, "temp-1792056600000")
	require.Equal(t, "HR Manager", a.SenderName)
}
