// Package chatapi is the request/response client for the HR backend's
// chat endpoints. It performs no retries; callers poll again instead.
package chatapi

import (
	"context"

	"github.com/srmsweets/hrportal/internal/models"
)

// Transport is the remote messaging API as the engine sees it.
type Transport interface {
	// ListGroups returns the groups userID belongs to, in server order.
	ListGroups(ctx context.Context, userID string) ([]models.Group, error)
	// ListMessages returns every message of a group.
	ListMessages(ctx context.Context, groupID string) ([]models.Message, error)
	// SendMessage posts a message and returns the server copy when the
	// backend echoes one.
	SendMessage(ctx context.Context, groupID string, req SendMessageRequest) (*models.Message, error)
	// CreateGroup creates a group and returns it when the backend echoes it.
	CreateGroup(ctx context.Context, req CreateGroupRequest) (*models.Group, error)
	// DeleteGroup removes a group permanently.
	DeleteGroup(ctx context.Context, groupID string) error
	// MarkRead zeroes userID's unread count for a group.
	MarkRead(ctx context.Context, groupID, userID string) error
}

// Directory is the non-chat lookup surface the console also needs.
type Directory interface {
	// ListEmployees returns the member candidates for group creation.
	ListEmployees(ctx context.Context) ([]models.Employee, error)
	// PendingRequestCount returns the number of requests awaiting HR.
	PendingRequestCount(ctx context.Context) (int, error)
}

// SendMessageRequest is the body of a message post.
type SendMessageRequest struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
}

// CreateGroupRequest is the body of a group creation.
type CreateGroupRequest struct {
	Name      string   `json:"name"`
	Members   []string `json:"members"`
	CreatedBy string   `json:"createdBy"`
}

type markReadRequest struct {
	UserID string `json:"userId"`
}
