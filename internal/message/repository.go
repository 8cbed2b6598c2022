package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmptyBody is returned when a message has no content.
	ErrEmptyBody = errors.New("message body is empty")

	// ErrEmptyPhone is returned when a message has no phone number.
	ErrEmptyPhone = errors.New("message phone is empty")

	// ErrInvalidDirection is returned for a direction other than
	// inbound or outbound.
	ErrInvalidDirection = errors.New("invalid message direction")
)

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message is a single SMS in a conversation thread.
type Message struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Direction string    `json:"direction"`
	Body      string    `json:"body"`
	ThreadID  string    `json:"thread_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation summarises the latest message exchanged with a phone number.
type Conversation struct {
	Phone         string    `json:"phone"`
	LastBody      string    `json:"last_body"`
	LastDirection string    `json:"last_direction"`
	LastAt        time.Time `json:"last_at"`
	MessageCount  int       `json:"message_count"`
}

// Repository defines the interface for message persistence.
type Repository interface {
	Add(ctx context.Context, m *Message) error
	ByPhone(ctx context.Context, phone string, limit, offset int) ([]Message, error)
	ByThread(ctx context.Context, threadID string) ([]Message, error)
	Recent(ctx context.Context, limit int) ([]Message, error)
	Conversations(ctx context.Context, limit int) ([]Conversation, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed message repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Add persists a message. The ID and timestamp are generated if empty.
func (r *SQLiteRepository) Add(ctx context.Context, m *Message) error {
	if m.Phone == "" {
		return ErrEmptyPhone
	}
	if m.Body == "" {
		return ErrEmptyBody
	}
	if m.Direction != DirectionInbound && m.Direction != DirectionOutbound {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, m.Direction)
	}
	if m.ID == "" {
		m.ID = "msg-" + uuid.NewString()[:8]
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, phone, direction, body, thread_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Phone, m.Direction, m.Body, nullString(m.ThreadID),
		m.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// ByPhone returns a phone number's messages, newest first.
func (r *SQLiteRepository) ByPhone(ctx context.Context, phone string, limit, offset int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return r.query(ctx,
		`SELECT id, phone, direction, body, thread_id, created_at
		 FROM messages WHERE phone = ?
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		phone, limit, offset)
}

// ByThread returns a thread's messages in chronological order.
func (r *SQLiteRepository) ByThread(ctx context.Context, threadID string) ([]Message, error) {
	return r.query(ctx,
		`SELECT id, phone, direction, body, thread_id, created_at
		 FROM messages WHERE thread_id = ?
		 ORDER BY created_at, id`, threadID)
}

// Recent returns the latest messages across all conversations, newest first.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.query(ctx,
		`SELECT id, phone, direction, body, thread_id, created_at
		 FROM messages ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

// Conversations returns one summary row per phone number, ordered by most
// recent activity.
func (r *SQLiteRepository) Conversations(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT m.phone, m.body, m.direction, m.created_at, c.message_count
		 FROM messages m
		 JOIN (
			SELECT phone, MAX(created_at) AS last_at, COUNT(*) AS message_count
			FROM messages GROUP BY phone
		 ) c ON c.phone = m.phone AND c.last_at = m.created_at
		 GROUP BY m.phone
		 ORDER BY m.created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var createdAt string
		if err := rows.Scan(&c.Phone, &c.LastBody, &c.LastDirection, &createdAt, &c.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		c.LastAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // schema-enforced format
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}
	return convs, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var threadID sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Phone, &m.Direction, &m.Body, &threadID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		m.ThreadID = threadID.String
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // schema-enforced format
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}
	return messages, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
