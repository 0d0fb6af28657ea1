package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BrewPi/brewpi-service/internal/controller"
)

const (
	defaultLimit = 50
	maxLimit     = 500

	// timeLayout is fixed width so created_at sorts chronologically as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Entry is one journaled controller event.
type Entry struct {
	ID          string               `json:"id"`
	EventType   controller.EventType `json:"event_type"`
	URI         string               `json:"uri"`
	Name        string               `json:"name,omitempty"`
	Description string               `json:"description,omitempty"`
	Connected   bool                 `json:"connected"`
	CreatedAt   time.Time            `json:"created_at"`
}

// EntryFromEvent converts a controller event into a journal entry.
func EntryFromEvent(evt controller.Event) Entry {
	return Entry{
		EventType:   evt.Type,
		URI:         evt.Controller.URI,
		Name:        evt.Controller.Name,
		Description: evt.Controller.Description,
		Connected:   evt.Controller.Connected,
		CreatedAt:   evt.Timestamp,
	}
}

// Filter controls which entries List returns.
type Filter struct {
	URI       string               // optional: one controller
	EventType controller.EventType // optional: connected or disconnected
	Limit     int                  // default 50, max 500
}

// Repository defines the journal operations.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// SQLiteRepository stores entries in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a journal repository over db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts entry. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "evt-" + uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO controller_events (id, event_type, uri, name, description, connected, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.EventType), entry.URI,
		nullableString(entry.Name), nullableString(entry.Description),
		entry.Connected,
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting controller event: %w", err)
	}
	return nil
}

// nullableString maps "" to NULL for optional TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}

	var conditions []string
	var args []any
	if filter.URI != "" {
		conditions = append(conditions, "uri = ?")
		args = append(args, filter.URI)
	}
	if filter.EventType != "" {
		conditions = append(conditions, "event_type = ?")
		args = append(args, string(filter.EventType))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		"SELECT id, event_type, uri, name, description, connected, created_at FROM controller_events %s ORDER BY created_at DESC, rowid DESC LIMIT ?",
		where,
	)
	args = append(args, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying controller events: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var eventType, createdAt string
		var name, description sql.NullString

		if err := rows.Scan(&e.ID, &eventType, &e.URI, &name, &description, &e.Connected, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning controller event: %w", err)
		}
		e.EventType = controller.EventType(eventType)
		e.Name = name.String
		e.Description = description.String

		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing controller event timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating controller events: %w", err)
	}

	return entries, nil
}
