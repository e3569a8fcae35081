package devserver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/srmsweets/hrportal/internal/chat"
	"github.com/srmsweets/hrportal/internal/chatapi"
	"github.com/srmsweets/hrportal/internal/devserver"
	"github.com/srmsweets/hrportal/internal/models"
)

func startServer(t *testing.T) (*devserver.Store, *httptest.Server, *chatapi.Client) {
	t.Helper()
	store, err := devserver.Open(filepath.Join(t.TempDir(), "dev.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := httptest.NewServer(devserver.NewServer(store).Handler())
	t.Cleanup(srv.Close)

	client, err := chatapi.NewClient(chatapi.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return store, srv, client
}

func TestClientAgainstDevServer(t *testing.T) {
	ctx := context.Background()
	_, _, client := startServer(t)
	hr := models.DefaultIdentity()

	created, err := client.CreateGroup(ctx, chatapi.CreateGroupRequest{
		Name: "Ops", Members: []string{"E1", hr.UserID}, CreatedBy: hr.UserID,
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	sent, err := client.SendMessage(ctx, created.ID, chatapi.SendMessageRequest{
		SenderID: "E1", SenderName: "Ravi", Content: "stock arrived",
	})
	require.NoError(t, err)
	require.Equal(t, created.ID, sent.GroupID)

	groups, err := client.ListGroups(ctx, hr.UserID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, 1, groups[0].Unread(hr.UserID))
	require.Equal(t, "Ravi", groups[0].LastMessageSender)

	msgs, err := client.ListMessages(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, sent.Timestamp.Unix(), msgs[0].Timestamp.Unix())

	require.NoError(t, client.MarkRead(ctx, created.ID, hr.UserID))
	groups, err = client.ListGroups(ctx, hr.UserID)
	require.NoError(t, err)
	require.Zero(t, groups[0].Unread(hr.UserID))

	require.NoError(t, client.DeleteGroup(ctx, created.ID))
	_, err = client.ListMessages(ctx, created.ID)
	require.True(t, models.IsNotFound(err))
	require.True(t, models.IsNotFound(client.DeleteGroup(ctx, created.ID)))
}

func TestDevServerRejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	_, srv, client := startServer(t)

	_, err := client.CreateGroup(ctx, chatapi.CreateGroupRequest{Name: "Solo", Members: []string{"hr"}, CreatedBy: "hr"})
	var te *models.TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, http.StatusBadRequest, te.StatusCode)

	resp, err := http.Post(srv.URL+"/api/chat/groups/x/read", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDevServerDirectoryEndpoints(t *testing.T) {
	ctx := context.Background()
	store, _, client := startServer(t)
	require.NoError(t, store.Seed(ctx, models.DefaultIdentity()))

	employees, err := client.ListEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, employees, 4)

	pending, err := client.PendingRequestCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, pending)
}

func TestEngineAgainstDevServer(t *testing.T) {
	ctx := context.Background()
	store, _, client := startServer(t)
	hr := models.DefaultIdentity()
	require.NoError(t, store.Seed(ctx, hr))

	engine := chat.NewEngine(chat.Config{Identity: hr}, client, client)
	t.Cleanup(engine.Close)
	require.NoError(t, engine.Refresh(ctx))

	var managers models.Group
	for _, g := range engine.Groups() {
		if g.Name == "Branch Managers" {
			managers = g
		}
	}
	require.NotEmpty(t, managers.ID)
	require.Equal(t, 2, managers.Unread(hr.UserID))

	require.NoError(t, engine.SelectGroup(ctx, managers.ID))
	require.NoError(t, engine.Refresh(ctx))
	g, ok := engine.ActiveGroup()
	require.True(t, ok)
	require.Zero(t, g.Unread(hr.UserID))

	_, err := engine.Send(ctx, "Thanks, both.")
	require.NoError(t, err)
	entries := engine.Timeline()
	require.Len(t, entries, 4)
	last := entries[len(entries)-1]
	require.Equal(t, chat.StatusConfirmed, last.Status)
	require.True(t, last.Own)
	require.Equal(t, "Thanks, both.", last.Message.Content)

	// The creator check runs locally before any call.
	var payroll models.Group
	for _, g := range engine.Groups() {
		if g.Name == "Payroll Desk" {
			payroll = g
		}
	}
	require.ErrorIs(t, engine.DeleteGroup(ctx, payroll.ID), models.ErrNotOwner)

	require.NoError(t, engine.DeleteGroup(ctx, managers.ID))
	require.Empty(t, engine.ActiveGroupID())
	require.Empty(t, engine.Timeline())
	require.Len(t, engine.Groups(), 1)
}
