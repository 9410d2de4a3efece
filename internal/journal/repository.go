// Package journal keeps a local history of connectivity events in SQLite so
// an outage can be reconstructed after the link comes back.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 500
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// KindBoot marks a node start-up record.
const KindBoot = "boot"

// Entry is one journal row.
type Entry struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Layer      string         `json:"layer,omitempty"`
	State      string         `json:"state,omitempty"`
	Attempt    int            `json:"attempt"`
	Outcome    string         `json:"outcome,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Kind   string    // optional: exact event kind
	Layer  string    // optional: network or transport
	Since  time.Time // optional: entries at or after this time
	Limit  int       // default 50, max 500
	Offset int
}

// ListResult is a page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the journal storage operations.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	Prune(ctx context.Context, keep int) (int64, error)
}

// SQLiteRepository stores the journal in the connectivity_journal table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a journal repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an entry. ID and OccurredAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "jrn-" + uuid.NewString()[:8]
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	var details *string
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshalling journal details: %w", err)
		}
		s := string(b)
		details = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO connectivity_journal (id, kind, layer, state, attempt, outcome, details, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.Layer, e.State, e.Attempt, e.Outcome, details,
		e.OccurredAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// List returns entries matching the filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Layer != "" {
		conditions = append(conditions, "layer = ?")
		args = append(args, filter.Layer)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM connectivity_journal " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting journal entries: %w", err)
	}

	query := "SELECT id, kind, layer, state, attempt, outcome, details, occurred_at FROM connectivity_journal " + //nolint:gosec // WHERE built from parameterised conditions
		where + " ORDER BY occurred_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var details sql.NullString
		var occurredAt string

		if err := rows.Scan(&e.ID, &e.Kind, &e.Layer, &e.State, &e.Attempt, &e.Outcome, &details, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		if details.Valid && details.String != "" {
			var d map[string]any
			if json.Unmarshal([]byte(details.String), &d) == nil {
				e.Details = d
			}
		}
		t, err := time.Parse(timeLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing journal timestamp %q: %w", occurredAt, err)
		}
		e.OccurredAt = t

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// Prune deletes all but the newest keep entries and returns how many were
// removed. keep <= 0 disables pruning.
func (r *SQLiteRepository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM connectivity_journal WHERE id NOT IN (
			SELECT id FROM connectivity_journal ORDER BY occurred_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	return n, nil
}
