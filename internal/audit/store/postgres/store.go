package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"dgtt/internal/audit"
	txcontext "dgtt/pkg/platform/tx"
)

// Store persists audit entries in the audit_log table. Rows are never updated.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// execer joins the caller's transaction so the audit row commits with the
// entity mutation it describes.
func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const selectColumns = `id, action, level, entity_type, entity_id, actor_id, actor_role,
		message, before, after, client_ip, user_agent, request_id, created_at`

func (s *Store) Append(ctx context.Context, e audit.Entry) error {
	query := `
		INSERT INTO audit_log (` + selectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		e.ID,
		string(e.Action),
		string(e.Level),
		string(e.EntityType),
		e.EntityID,
		e.ActorID,
		e.ActorRole,
		e.Message,
		nullableJSON(e.Before),
		nullableJSON(e.After),
		e.ClientIP,
		e.UserAgent,
		e.RequestID,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	where, args := whereClause(filter)
	query := `SELECT ` + selectColumns + ` FROM audit_log` + where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

var groupColumns = map[audit.GroupBy]string{
	audit.GroupByAction: "action",
	audit.GroupByActor:  "actor_id",
	audit.GroupByLevel:  "level",
	audit.GroupByEntity: "entity_type",
}

func (s *Store) Count(ctx context.Context, groupBy audit.GroupBy, filter audit.Filter) ([]audit.Count, error) {
	col, ok := groupColumns[groupBy]
	if !ok {
		return nil, fmt.Errorf("unsupported grouping %q", groupBy)
	}
	where, args := whereClause(filter)
	query := `SELECT ` + col + `, COUNT(*) FROM audit_log` + where +
		` GROUP BY ` + col + ` ORDER BY COUNT(*) DESC, ` + col

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count audit entries: %w", err)
	}
	defer rows.Close()

	var out []audit.Count
	for rows.Next() {
		var c audit.Count
		if err := rows.Scan(&c.Key, &c.Total); err != nil {
			return nil, fmt.Errorf("scan audit count: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit counts: %w", err)
	}
	return out, nil
}

// PurgeBefore deletes rows created strictly before cutoff.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	return n, nil
}

func whereClause(f audit.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.EntityType != "" {
		add("entity_type = $%d", string(f.EntityType))
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if f.MinLevel != "" {
		levels := audit.LevelsAtLeast(f.MinLevel)
		names := make([]string, len(levels))
		for i, l := range levels {
			names[i] = string(l)
		}
		add("level = ANY($%d)", pq.Array(names))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var out []audit.Entry
	for rows.Next() {
		var (
			e                     audit.Entry
			action, level, entity string
			before, after         []byte
		)
		err := rows.Scan(
			&e.ID,
			&action,
			&level,
			&entity,
			&e.EntityID,
			&e.ActorID,
			&e.ActorRole,
			&e.Message,
			&before,
			&after,
			&e.ClientIP,
			&e.UserAgent,
			&e.RequestID,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = audit.Action(action)
		e.Level = audit.Level(level)
		e.EntityType = audit.EntityType(entity)
		if len(before) > 0 {
			e.Before = before
		}
		if len(after) > 0 {
			e.After = after
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
