package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500

	// pruneEvery is how many writes pass between retention sweeps.
	pruneEvery = 100

	// timeLayout is fixed-width so stored times sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Repository stores notices in the journal table.
type Repository struct {
	db     *sql.DB
	retain int
	writes int
}

// NewRepository creates a repository.
//
// Parameters:
//   - db: Open SQLite connection with the journal schema applied
//   - retain: Rows to keep; older rows are pruned (0 keeps everything)
func NewRepository(db *sql.DB, retain int) *Repository {
	return &Repository{db: db, retain: retain}
}

// Write inserts n. It satisfies Sink and is called from the recorder
// goroutine only.
func (r *Repository) Write(ctx context.Context, n Notice) error {
	if n.ID == "" {
		return fmt.Errorf("notice id is required")
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO journal (id, at, kind, component, state, detail) VALUES (?, ?, ?, ?, ?, ?)",
		n.ID,
		n.At.UTC().Format(timeLayout),
		string(n.Kind),
		n.Component,
		n.State,
		n.Detail,
	)
	if err != nil {
		return fmt.Errorf("inserting notice: %w", err)
	}

	r.writes++
	if r.retain > 0 && r.writes%pruneEvery == 0 {
		if _, err := r.Prune(ctx, r.retain); err != nil {
			return err
		}
	}
	return nil
}

// Recent returns notices newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - kind: Only this kind, or all kinds when empty
//   - limit: Maximum entries (default 50, max 500)
func (r *Repository) Recent(ctx context.Context, kind Kind, limit int) ([]Notice, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, at, kind, component, state, detail
		 FROM journal
		 WHERE (? = '' OR kind = ?)
		 ORDER BY at DESC, rowid DESC
		 LIMIT ?`,
		string(kind), string(kind), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	notices := make([]Notice, 0, limit)
	for rows.Next() {
		var n Notice
		var at, k string
		if err := rows.Scan(&n.ID, &at, &k, &n.Component, &n.State, &n.Detail); err != nil {
			return nil, fmt.Errorf("scanning journal: %w", err)
		}
		n.Kind = Kind(k)
		if n.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("parsing journal time: %w", err)
		}
		notices = append(notices, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}
	return notices, nil
}

// Prune keeps the newest keep rows and deletes the rest.
//
// Returns:
//   - int64: Number of rows deleted
func (r *Repository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, fmt.Errorf("keep must be positive")
	}
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM journal WHERE rowid NOT IN (
			SELECT rowid FROM journal ORDER BY at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
