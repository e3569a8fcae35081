package models

import (
	"strings"
)

// Group is a named set of users sharing a message timeline, with the
// denormalized preview the group list renders.
type Group struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Members           []string       `json:"members"`
	CreatedBy         string         `json:"createdBy"`
	LastMessage       string         `json:"lastMessage,omitempty"`
	LastMessageSender string         `json:"lastMessageSender,omitempty"`
	UpdatedAt         Timestamp      `json:"updatedAt"`
	UnreadCounts      map[string]int `json:"unreadCounts,omitempty"`
}

// Unread returns the unread count for userID. Missing entries and
// negative counts read as zero.
func (g Group) Unread(userID string) int {
	if g.UnreadCounts == nil {
		return 0
	}
	n := g.UnreadCounts[userID]
	if n < 0 {
		return 0
	}
	return n
}

// WithUnread returns a copy of g with userID's unread count set to n.
func (g Group) WithUnread(userID string, n int) Group {
	out := g.Clone()
	if out.UnreadCounts == nil {
		out.UnreadCounts = make(map[string]int, 1)
	}
	if n < 0 {
		n = 0
	}
	out.UnreadCounts[userID] = n
	return out
}

// IsMember reports whether userID belongs to the group.
func (g Group) IsMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// OwnedBy reports whether userID created the group (and may delete it).
func (g Group) OwnedBy(userID string) bool {
	return userID != "" && g.CreatedBy == userID
}

// Initials is the two-letter avatar label shown in the group list.
func (g Group) Initials() string {
	name := []rune(strings.TrimSpace(g.Name))
	if len(name) > 2 {
		name = name[:2]
	}
	return strings.ToUpper(string(name))
}

// Preview is the last-message line, with the empty-group fallback.
func (g Group) Preview() string {
	if strings.TrimSpace(g.LastMessage) == "" {
		return "No messages yet"
	}
	return g.LastMessage
}

// Clone deep-copies the member list and unread map.
func (g Group) Clone() Group {
	out := g
	if g.Members != nil {
		out.Members = append([]string(nil), g.Members...)
	}
	if g.UnreadCounts != nil {
		out.UnreadCounts = make(map[string]int, len(g.UnreadCounts))
		for k, v := range g.UnreadCounts {
			out.UnreadCounts[k] = v
		}
	}
	return out
}

// CloneGroups deep-copies a slice of groups, preserving order.
func CloneGroups(groups []Group) []Group {
	if groups == nil {
		return nil
	}
	out := make([]Group, len(groups))
	for i := range groups {
		out[i] = groups[i].Clone()
	}
	return out
}
