// Package chat is the group messaging engine behind the HR console: the
// group directory, the open conversation, read-state tracking, polling and
// activity alerts.
package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/srmsweets/hrportal/internal/chatapi"
	"github.com/srmsweets/hrportal/internal/logging"
	"github.com/srmsweets/hrportal/internal/models"
)

// RefreshResult is the outcome of one directory refresh.
type RefreshResult struct {
	// Groups is the stored snapshot, in server order.
	Groups []models.Group
	// ActiveServerUnread is the count the server reported for the active
	// group before it was forced to zero locally.
	ActiveServerUnread int
}

// Directory holds the viewer's group list with its denormalized previews.
// Every refresh replaces the snapshot; the last completion wins.
type Directory struct {
	transport chatapi.Transport
	logger    zerolog.Logger

	mu          sync.RWMutex
	groups      []models.Group
	refreshedAt time.Time
	lastUserID  string
	lastActive  string
}

// NewDirectory creates an empty directory backed by transport.
func NewDirectory(transport chatapi.Transport) *Directory {
	return &Directory{
		transport: transport,
		logger:    logging.Component("directory"),
	}
}

// Refresh fetches userID's groups. The active group's unread count is
// forced to zero before the snapshot is stored so its badge never flickers
// between the server's mark-read and the next refresh.
func (d *Directory) Refresh(ctx context.Context, userID, activeGroupID string) (RefreshResult, error) {
	groups, err := d.transport.ListGroups(ctx, userID)
	if err != nil {
		return RefreshResult{}, err
	}

	result := RefreshResult{}
	snapshot := make([]models.Group, 0, len(groups))
	for _, g := range groups {
		if activeGroupID != "" && g.ID == activeGroupID {
			result.ActiveServerUnread = g.Unread(userID)
			g = g.WithUnread(userID, 0)
		} else {
			g = g.Clone()
		}
		snapshot = append(snapshot, g)
	}

	d.mu.Lock()
	d.groups = snapshot
	d.refreshedAt = time.Now()
	d.lastUserID = userID
	d.lastActive = activeGroupID
	d.mu.Unlock()

	result.Groups = models.CloneGroups(snapshot)
	d.logger.Debug().
		Int("groups", len(snapshot)).
		Str("active_group", activeGroupID).
		Int("active_server_unread", result.ActiveServerUnread).
		Msg("directory refreshed")
	return result, nil
}

// MarkGroupRead acknowledges groupID for userID on the server, then zeroes
// the local count.
func (d *Directory) MarkGroupRead(ctx context.Context, groupID, userID string) error {
	if err := d.transport.MarkRead(ctx, groupID, userID); err != nil {
		return err
	}

	d.mu.Lock()
	for i := range d.groups {
		if d.groups[i].ID == groupID {
			d.groups[i] = d.groups[i].WithUnread(userID, 0)
			break
		}
	}
	d.mu.Unlock()

	d.logger.Debug().Str("group_id", groupID).Msg("group marked read")
	return nil
}

// CreateGroup validates the request locally, creates the group and
// refreshes the list.
func (d *Directory) CreateGroup(ctx context.Context, name string, members []string, creator string) (*models.Group, error) {
	input, err := models.ValidateCreateGroup(name, members, creator)
	if err != nil {
		return nil, err
	}

	created, err := d.transport.CreateGroup(ctx, chatapi.CreateGroupRequest{
		Name:      input.Name,
		Members:   input.Members,
		CreatedBy: input.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create group %q: %w", input.Name, err)
	}

	d.refreshAfterChange(ctx, input.CreatedBy)
	d.logger.Info().Str("name", input.Name).Int("members", len(input.Members)).Msg("group created")
	return created, nil
}

// DeleteGroup removes groupID. A cached group owned by someone other than
// requester is rejected before any call.
func (d *Directory) DeleteGroup(ctx context.Context, groupID, requester string) error {
	if g, ok := d.Group(groupID); ok && !g.OwnedBy(requester) {
		return &models.ValidationErrors{Errors: []models.ValidationError{{
			Field:   "createdBy",
			Message: models.ErrNotOwner.Error(),
			Cause:   models.ErrNotOwner,
		}}}
	}

	if err := d.transport.DeleteGroup(ctx, groupID); err != nil {
		return fmt.Errorf("delete group %s: %w", groupID, err)
	}

	d.mu.Lock()
	for i := range d.groups {
		if d.groups[i].ID == groupID {
			d.groups = append(d.groups[:i], d.groups[i+1:]...)
			break
		}
	}
	d.mu.Unlock()

	d.refreshAfterChange(ctx, requester)
	d.logger.Info().Str("group_id", groupID).Msg("group deleted")
	return nil
}

// refreshAfterChange re-reads the list with the view of the last refresh.
// A failure here only delays the new state until the next poll.
func (d *Directory) refreshAfterChange(ctx context.Context, fallbackUser string) {
	d.mu.RLock()
	userID, active := d.lastUserID, d.lastActive
	d.mu.RUnlock()
	if userID == "" {
		userID = fallbackUser
	}
	if _, err := d.Refresh(ctx, userID, active); err != nil {
		d.logger.Warn().Err(err).Msg("refresh after change failed")
	}
}

// Snapshot returns a copy of the stored groups in server order.
func (d *Directory) Snapshot() []models.Group {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return models.CloneGroups(d.groups)
}

// Group returns a copy of one stored group.
func (d *Directory) Group(groupID string) (models.Group, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, g := range d.groups {
		if g.ID == groupID {
			return g.Clone(), true
		}
	}
	return models.Group{}, false
}

// Unread returns userID's stored unread count for groupID.
func (d *Directory) Unread(groupID, userID string) int {
	g, ok := d.Group(groupID)
	if !ok {
		return 0
	}
	return g.Unread(userID)
}

// TotalUnread sums userID's unread counts over all groups.
func (d *Directory) TotalUnread(userID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	total := 0
	for _, g := range d.groups {
		total += g.Unread(userID)
	}
	return total
}

// RefreshedAt returns when the snapshot was last replaced.
func (d *Directory) RefreshedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.refreshedAt
}

// SortByRecency returns a copy of groups, most recently updated first.
// The directory itself never reorders.
func SortByRecency(groups []models.Group) []models.Group {
	out := models.CloneGroups(groups)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt.Time)
	})
	return out
}

// FilterByName keeps the groups whose name contains term, ignoring case.
func FilterByName(groups []models.Group, term string) []models.Group {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return models.CloneGroups(groups)
	}
	out := make([]models.Group, 0, len(groups))
	for _, g := range groups {
		if strings.Contains(strings.ToLower(g.Name), term) {
			out = append(out, g.Clone())
		}
	}
	return out
}

// FilterEmployees keeps the employees whose name or employee id contains
// term, ignoring case.
func FilterEmployees(employees []models.Employee, term string) []models.Employee {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]models.Employee, 0, len(employees))
	for _, e := range employees {
		if term == "" ||
			strings.Contains(strings.ToLower(e.Name), term) ||
			strings.Contains(strings.ToLower(e.EmployeeID), term) {
			out = append(out, e)
		}
	}
	return out
}
