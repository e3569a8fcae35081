package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/srmsweets/hrportal/internal/chatapi"
	"github.com/srmsweets/hrportal/internal/models"
)

var errBackendDown = errors.New("backend down")

// fakeTransport is an in-memory backend with call counters. Mark-read
// zeroes the count synchronously.
type fakeTransport struct {
	mu       sync.Mutex
	groups   []models.Group
	messages map[string][]models.Message
	clock    time.Time
	nextID   int

	listGroupsErr error
	listMsgsErr   error
	sendErr       error
	markReadErr   error

	// listMessagesHook runs before ListMessages answers.
	listMessagesHook func(groupID string)
	// listGroupsHook runs before ListGroups reads the groups.
	listGroupsHook func()
	// markReadHook runs before MarkRead applies.
	markReadHook func(groupID string)

	calls map[string]int
	marks []string
}

func newFakeTransport(groups ...models.Group) *fakeTransport {
	return &fakeTransport{
		groups:   groups,
		messages: make(map[string][]models.Message),
		clock:    time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
		calls:    make(map[string]int),
	}
}

func (f *fakeTransport) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeTransport) markCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.marks...)
}

func (f *fakeTransport) setErr(target *error, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*target = err
}

// deliver stores a message from someone else the way the backend does:
// preview fields updated and unread raised for every other member.
func (f *fakeTransport) deliver(groupID, senderID, senderName, content string) models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.storeLocked(groupID, senderID, senderName, content)
}

func (f *fakeTransport) storeLocked(groupID, senderID, senderName, content string) models.Message {
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	msg := models.Message{
		ID:         fmt.Sprintf("m%d", f.nextID),
		GroupID:    groupID,
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
		Timestamp:  models.NewTimestamp(f.clock),
	}
	f.messages[groupID] = append(f.messages[groupID], msg)
	for i := range f.groups {
		if f.groups[i].ID != groupID {
			continue
		}
		g := f.groups[i].Clone()
		g.LastMessage = content
		g.LastMessageSender = senderName
		g.UpdatedAt = msg.Timestamp
		if g.UnreadCounts == nil {
			g.UnreadCounts = map[string]int{}
		}
		for _, member := range g.Members {
			if member != senderID {
				g.UnreadCounts[member]++
			}
		}
		f.groups[i] = g
	}
	return msg
}

func (f *fakeTransport) ListGroups(ctx context.Context, userID string) ([]models.Group, error) {
	f.mu.Lock()
	hook := f.listGroupsHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListGroups"]++
	if f.listGroupsErr != nil {
		return nil, f.listGroupsErr
	}
	out := []models.Group{}
	for _, g := range f.groups {
		if g.IsMember(userID) {
			out = append(out, g.Clone())
		}
	}
	return out, nil
}

func (f *fakeTransport) ListMessages(ctx context.Context, groupID string) ([]models.Message, error) {
	f.mu.Lock()
	hook := f.listMessagesHook
	f.calls["ListMessages"]++
	err := f.listMsgsErr
	msgs := append([]models.Message(nil), f.messages[groupID]...)
	f.mu.Unlock()

	if hook != nil {
		hook(groupID)
	}
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (f *fakeTransport) SendMessage(ctx context.Context, groupID string, req chatapi.SendMessageRequest) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["SendMessage"]++
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	msg := f.storeLocked(groupID, req.SenderID, req.SenderName, req.Content)
	return &msg, nil
}

func (f *fakeTransport) CreateGroup(ctx context.Context, req chatapi.CreateGroupRequest) (*models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateGroup"]++
	f.nextID++
	g := models.Group{
		ID:           fmt.Sprintf("g%d", f.nextID),
		Name:         req.Name,
		Members:      append([]string(nil), req.Members...),
		CreatedBy:    req.CreatedBy,
		UpdatedAt:    models.NewTimestamp(f.clock),
		UnreadCounts: map[string]int{},
	}
	f.groups = append(f.groups, g)
	out := g.Clone()
	return &out, nil
}

func (f *fakeTransport) DeleteGroup(ctx context.Context, groupID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DeleteGroup"]++
	for i := range f.groups {
		if f.groups[i].ID == groupID {
			f.groups = append(f.groups[:i], f.groups[i+1:]...)
			delete(f.messages, groupID)
			return nil
		}
	}
	return &models.NotFoundError{Kind: "group", ID: groupID}
}

func (f *fakeTransport) MarkRead(ctx context.Context, groupID, userID string) error {
	f.mu.Lock()
	hook := f.markReadHook
	f.mu.Unlock()
	if hook != nil {
		hook(groupID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["MarkRead"]++
	f.marks = append(f.marks, groupID+"/"+userID)
	if f.markReadErr != nil {
		return f.markReadErr
	}
	for i := range f.groups {
		if f.groups[i].ID == groupID {
			f.groups[i] = f.groups[i].WithUnread(userID, 0)
		}
	}
	return nil
}

// fakePeople implements chatapi.Directory.
type fakePeople struct {
	mu        sync.Mutex
	employees []models.Employee
	pending   int
	err       error
}

func (p *fakePeople) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Employee(nil), p.employees...), p.err
}

func (p *fakePeople) PendingRequestCount(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending, p.err
}

func at(minute int) models.Timestamp {
	return models.NewTimestamp(time.Date(2026, 10, 15, 9, minute, 0, 0, time.UTC))
}

func viewer() models.Identity {
	return models.DefaultIdentity()
}

// seedGroups returns G1 (three unread for the viewer) and G2 (none).
func seedGroups() []models.Group {
	me := viewer().UserID
	return []models.Group{
		{
			ID: "G1", Name: "Branch Managers", Members: []string{"E100", me}, CreatedBy: me,
			LastMessage: "stock report", LastMessageSender: "Ravi", UpdatedAt: at(0),
			UnreadCounts: map[string]int{me: 3},
		},
		{
			ID: "G2", Name: "Payroll", Members: []string{"E200", me}, CreatedBy: "E200",
			LastMessage: "", UpdatedAt: at(0),
			UnreadCounts: map[string]int{me: 0},
		},
	}
}
