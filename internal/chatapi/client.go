package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/srmsweets/hrportal/internal/logging"
	"github.com/srmsweets/hrportal/internal/models"
)

const (
	defaultTimeout  = 30 * time.Second
	maxErrorBody    = 512
	requestIDHeader = "X-Request-ID"
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements Transport and Directory over the backend's REST API.
type Client struct {
	base   string
	http   *http.Client
	logger zerolog.Logger
}

var (
	_ Transport = (*Client)(nil)
	_ Directory = (*Client)(nil)
)

// envelope is the backend's response wrapper.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// NewClient validates the base URL and builds a client.
func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, fmt.Errorf("base url required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", raw)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		base:   base.String(),
		http:   httpClient,
		logger: logging.Component("chatapi"),
	}, nil
}

func (c *Client) ListGroups(ctx context.Context, userID string) ([]models.Group, error) {
	var groups []models.Group
	path := "/api/chat/groups/" + url.PathEscape(userID)
	if err := c.do(ctx, "list groups", http.MethodGet, path, nil, &groups); err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []models.Group{}
	}
	return groups, nil
}

func (c *Client) ListMessages(ctx context.Context, groupID string) ([]models.Message, error) {
	var msgs []models.Message
	path := "/api/chat/groups/" + url.PathEscape(groupID) + "/messages"
	if err := c.do(ctx, "list messages", http.MethodGet, path, nil, &msgs); err != nil {
		return nil, notFoundAs(err, "group", groupID)
	}
	for i := range msgs {
		if msgs[i].GroupID == "" {
			msgs[i].GroupID = groupID
		}
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

func (c *Client) SendMessage(ctx context.Context, groupID string, req SendMessageRequest) (*models.Message, error) {
	var created models.Message
	path := "/api/chat/groups/" + url.PathEscape(groupID) + "/messages"
	if err := c.do(ctx, "send message", http.MethodPost, path, req, &created); err != nil {
		return nil, notFoundAs(err, "group", groupID)
	}
	if created.ID == "" {
		// Accepted without a body; the caller refetches for the stored copy.
		created = models.Message{SenderID: req.SenderID, SenderName: req.SenderName, Content: req.Content}
	}
	if created.GroupID == "" {
		created.GroupID = groupID
	}
	return &created, nil
}

func (c *Client) CreateGroup(ctx context.Context, req CreateGroupRequest) (*models.Group, error) {
	var created models.Group
	if err := c.do(ctx, "create group", http.MethodPost, "/api/chat/groups", req, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		created = models.Group{
			Name:      req.Name,
			Members:   append([]string(nil), req.Members...),
			CreatedBy: req.CreatedBy,
		}
	}
	return &created, nil
}

func (c *Client) DeleteGroup(ctx context.Context, groupID string) error {
	path := "/api/chat/groups/" + url.PathEscape(groupID)
	return notFoundAs(c.do(ctx, "delete group", http.MethodDelete, path, nil, nil), "group", groupID)
}

func (c *Client) MarkRead(ctx context.Context, groupID, userID string) error {
	path := "/api/chat/groups/" + url.PathEscape(groupID) + "/read"
	return notFoundAs(c.do(ctx, "mark read", http.MethodPost, path, markReadRequest{UserID: userID}, nil), "group", groupID)
}

// ListEmployees accepts both {employees:[...]} and bare array payloads.
func (c *Client) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	raw, err := c.doRaw(ctx, "list employees", http.MethodGet, "/api/employees", nil)
	if err != nil {
		return nil, err
	}
	payload := unwrapData(raw)

	var list []models.Employee
	if err := json.Unmarshal(payload, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Employees []models.Employee `json:"employees"`
	}
	if err := json.Unmarshal(payload, &wrapped); err != nil {
		return nil, c.decodeError("list employees", http.MethodGet, "/api/employees", err)
	}
	if wrapped.Employees == nil {
		wrapped.Employees = []models.Employee{}
	}
	return wrapped.Employees, nil
}

func (c *Client) PendingRequestCount(ctx context.Context) (int, error) {
	const path = "/api/requests?status=PENDING"
	raw, err := c.doRaw(ctx, "pending requests", http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	var wrapped struct {
		Requests []json.RawMessage `json:"requests"`
	}
	if err := json.Unmarshal(unwrapData(raw), &wrapped); err != nil {
		return 0, c.decodeError("pending requests", http.MethodGet, path, err)
	}
	return len(wrapped.Requests), nil
}

// do performs a call whose payload is an envelope and decodes envelope.data
// into out (when out is non-nil).
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	raw, err := c.doRaw(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}

	// Some endpoints answer with the bare resource instead of an envelope.
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || (env.Success == nil && len(env.Data) == 0) {
		if err := json.Unmarshal(raw, out); err != nil {
			return c.decodeError(op, method, path, err)
		}
		return nil
	}
	data := env.Data
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return c.decodeError(op, method, path, err)
	}
	return nil
}

// doRaw sends one request and returns the raw success body. Non-2xx
// statuses and success:false envelopes become errors.
func (c *Client) doRaw(ctx context.Context, op, method, path string, body any) ([]byte, error) {
	target := c.base + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &models.TransportError{Op: op, Method: method, Path: path, Err: fmt.Errorf("encode body: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &models.TransportError{Op: op, Method: method, Path: path, Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("request_id", requestID).Str("method", method).Str("path", path).Msg("request failed")
		return nil, &models.TransportError{Op: op, Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.TransportError{Op: op, Method: method, Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := errorReason(payload)
		if resp.StatusCode == http.StatusNotFound {
			return nil, &models.NotFoundError{Kind: "resource", ID: path}
		}
		return nil, &models.TransportError{Op: op, Method: method, Path: path, StatusCode: resp.StatusCode, Body: reason}
	}

	var env envelope
	if json.Unmarshal(payload, &env) == nil && env.Success != nil && !*env.Success {
		return nil, &models.TransportError{Op: op, Method: method, Path: path, StatusCode: resp.StatusCode, Body: envelopeReason(env)}
	}
	return payload, nil
}

func (c *Client) decodeError(op, method, path string, err error) error {
	return &models.TransportError{Op: op, Method: method, Path: path, Err: fmt.Errorf("decode response: %w", err)}
}

// unwrapData returns envelope.data when the payload is an envelope, or the
// payload itself otherwise.
func unwrapData(raw []byte) []byte {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Success != nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		return env.Data
	}
	return raw
}

func envelopeReason(env envelope) string {
	reason := strings.TrimSpace(env.Message)
	if reason == "" {
		reason = strings.TrimSpace(env.Error)
	}
	if reason == "" {
		reason = "request unsuccessful"
	}
	return logging.Redact(reason)
}

func errorReason(payload []byte) string {
	var env envelope
	if err := json.Unmarshal(payload, &env); err == nil && (env.Message != "" || env.Error != "") {
		return envelopeReason(env)
	}
	text := strings.TrimSpace(string(payload))
	if len(text) > maxErrorBody {
		n := maxErrorBody
		for n > 0 && !utf8.RuneStart(text[n]) {
			n--
		}
		text = text[:n]
	}
	return logging.Redact(text)
}

// notFoundAs rewrites a generic 404 into a NotFoundError naming the entity.
func notFoundAs(err error, kind, id string) error {
	var nf *models.NotFoundError
	if errors.As(err, &nf) {
		return &models.NotFoundError{Kind: kind, ID: id}
	}
	return err
}
