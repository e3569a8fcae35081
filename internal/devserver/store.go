package devserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/srmsweets/hrportal/internal/models"
)

// Store errors.
var (
	ErrGroupNotFound = errors.New("group not found")
	ErrNotMember     = errors.New("sender is not a member of the group")
)

// Request is a leave or attendance request awaiting HR.
type Request struct {
	ID         string           `json:"id"`
	EmployeeID string           `json:"employeeId"`
	Kind       string           `json:"type"`
	Status     string           `json:"status"`
	CreatedAt  models.Timestamp `json:"createdAt"`
}

// Store is the SQLite backing of the development backend.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating when needed) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open dev database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to dev database: %w", err)
	}

	store := &Store{db: db, now: time.Now}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS chat_groups (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_by TEXT NOT NULL,
			last_message TEXT NOT NULL DEFAULT '',
			last_message_sender TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_members (
			group_id TEXT NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			unread INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (group_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			group_id TEXT NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
			sender_id TEXT NOT NULL,
			sender_name TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS employees (
			employee_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			branch TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS hr_requests (
			id TEXT PRIMARY KEY,
			employee_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS chat_members_user_idx ON chat_members(user_id)`,
		`CREATE INDEX IF NOT EXISTS chat_messages_group_idx ON chat_messages(group_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure dev schema: %w", err)
		}
	}
	return nil
}

// ListGroups returns userID's groups, most recently updated first.
func (s *Store) ListGroups(ctx context.Context, userID string) ([]models.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id FROM chat_groups g
		JOIN chat_members m ON m.group_id = g.id
		WHERE m.user_id = ?
		ORDER BY g.updated_at DESC, g.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	groups := make([]models.Group, 0, len(ids))
	for _, id := range ids {
		g, err := s.GetGroup(ctx, id)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// idRows is the part of *sql.Rows collectIDs reads.
type idRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// collectIDs drains a single-column id result and closes it. An iteration
// error fails the whole read instead of returning a short list.
func collectIDs(rows idRows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetGroup loads one group with its members and unread counts.
func (s *Store) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	return getGroup(ctx, s.db, groupID)
}

type queryer interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func getGroup(ctx context.Context, q queryer, groupID string) (models.Group, error) {
	var (
		g         models.Group
		updatedAt int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, name, created_by, last_message, last_message_sender, updated_at
		FROM chat_groups WHERE id = ?`, groupID).
		Scan(&g.ID, &g.Name, &g.CreatedBy, &g.LastMessage, &g.LastMessageSender, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	if err != nil {
		return models.Group{}, fmt.Errorf("get group: %w", err)
	}
	g.UpdatedAt = models.NewTimestamp(time.Unix(0, updatedAt))

	rows, err := q.QueryContext(ctx, `
		SELECT user_id, unread FROM chat_members
		WHERE group_id = ? ORDER BY position`, groupID)
	if err != nil {
		return models.Group{}, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	g.Members = []string{}
	g.UnreadCounts = map[string]int{}
	for rows.Next() {
		var (
			userID string
			unread int
		)
		if err := rows.Scan(&userID, &unread); err != nil {
			return models.Group{}, fmt.Errorf("scan member: %w", err)
		}
		g.Members = append(g.Members, userID)
		g.UnreadCounts[userID] = unread
	}
	return g, rows.Err()
}

// CreateGroup stores a validated group.
func (s *Store) CreateGroup(ctx context.Context, input models.CreateGroupInput) (models.Group, error) {
	id := uuid.NewString()
	now := s.now().UnixNano()

	err := s.transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_groups (id, name, created_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`, id, input.Name, input.CreatedBy, now, now); err != nil {
			return fmt.Errorf("insert group: %w", err)
		}
		for i, member := range input.Members {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO chat_members (group_id, user_id, position) VALUES (?, ?, ?)`,
				id, member, i); err != nil {
				return fmt.Errorf("insert member: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.Group{}, err
	}
	return s.GetGroup(ctx, id)
}

// DeleteGroup removes a group with its members and messages.
func (s *Store) DeleteGroup(ctx context.Context, groupID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_groups WHERE id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// ListMessages returns a group's messages in send order.
func (s *Store) ListMessages(ctx context.Context, groupID string) ([]models.Message, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_id, sender_id, sender_name, content, created_at
		FROM chat_messages WHERE group_id = ? ORDER BY created_at, seq`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		var (
			m         models.Message
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &m.GroupID, &m.SenderID, &m.SenderName, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Timestamp = models.NewTimestamp(time.Unix(0, createdAt))
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SendMessage stores a message, updates the group preview and raises the
// unread count of every member except the sender.
func (s *Store) SendMessage(ctx context.Context, groupID, senderID, senderName, content string) (models.Message, error) {
	msg := models.Message{
		ID:         uuid.NewString(),
		GroupID:    groupID,
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
	}
	now := s.now()
	msg.Timestamp = models.NewTimestamp(now)

	err := s.transaction(ctx, func(tx *sql.Tx) error {
		g, err := getGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if !g.IsMember(senderID) {
			return ErrNotMember
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_messages (id, group_id, sender_id, sender_name, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			msg.ID, groupID, senderID, senderName, content, now.UnixNano()); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE chat_groups SET last_message = ?, last_message_sender = ?, updated_at = ?
			WHERE id = ?`, content, senderName, now.UnixNano(), groupID); err != nil {
			return fmt.Errorf("update preview: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE chat_members SET unread = unread + 1
			WHERE group_id = ? AND user_id <> ?`, groupID, senderID); err != nil {
			return fmt.Errorf("raise unread: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// MarkRead zeroes userID's unread count for a group.
func (s *Store) MarkRead(ctx context.Context, groupID, userID string) error {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE chat_members SET unread = 0 WHERE group_id = ? AND user_id = ?`,
		groupID, userID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// UpsertEmployee adds or updates a member candidate.
func (s *Store) UpsertEmployee(ctx context.Context, e models.Employee) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (employee_id, name, branch) VALUES (?, ?, ?)
		ON CONFLICT(employee_id) DO UPDATE SET name = excluded.name, branch = excluded.branch`,
		e.EmployeeID, e.Name, e.Branch)
	if err != nil {
		return fmt.Errorf("upsert employee: %w", err)
	}
	return nil
}

// ListEmployees returns all employees by name.
func (s *Store) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT employee_id, name, branch FROM employees ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	out := []models.Employee{}
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(&e.EmployeeID, &e.Name, &e.Branch); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AddRequest records an HR request.
func (s *Store) AddRequest(ctx context.Context, employeeID, kind, status string) (Request, error) {
	req := Request{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		Kind:       kind,
		Status:     strings.ToUpper(status),
		CreatedAt:  models.NewTimestamp(s.now()),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hr_requests (id, employee_id, kind, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		req.ID, req.EmployeeID, req.Kind, req.Status, req.CreatedAt.UnixNano())
	if err != nil {
		return Request{}, fmt.Errorf("insert request: %w", err)
	}
	return req, nil
}

// ListRequests returns requests, filtered by status when one is given.
func (s *Store) ListRequests(ctx context.Context, status string) ([]Request, error) {
	query := `SELECT id, employee_id, kind, status, created_at FROM hr_requests`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, strings.ToUpper(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	out := []Request{}
	for rows.Next() {
		var (
			r         Request
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.Kind, &r.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		r.CreatedAt = models.NewTimestamp(time.Unix(0, createdAt))
		out = append(out, r)
	}
	return out, rows.Err()
}

// Empty reports whether no group exists yet.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_groups`).Scan(&n); err != nil {
		return false, fmt.Errorf("count groups: %w", err)
	}
	return n == 0, nil
}
