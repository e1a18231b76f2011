package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dgtt/internal/candidate/models"
	"dgtt/internal/platform/postgres"
	id "dgtt/pkg/domain"
	"dgtt/pkg/platform/sentinel"
	txcontext "dgtt/pkg/platform/tx"
)

// Postgres stores each candidate as a JSONB document keyed by id, with the
// school, license number and status as columns.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) Create(ctx context.Context, c *models.Candidate) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode candidate: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO candidats (id, school_id, license_number, status, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID.String(), c.SchoolID.String(), c.LicenseNumber, string(c.Status), doc, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("candidate %s: %w", c.LicenseNumber, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT document FROM candidats WHERE id = $1`, candidateID.String())
	return scanCandidate(row)
}

func (s *Postgres) FindByLicenseNumber(ctx context.Context, number string) (*models.Candidate, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT document FROM candidats WHERE license_number = $1`, number)
	return scanCandidate(row)
}

func (s *Postgres) List(ctx context.Context, filter models.ListFilter) ([]*models.Candidate, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !filter.SchoolID.IsNil() {
		add("school_id = $%d", filter.SchoolID.String())
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Category != "" {
		add("document->>'category' = $%d", filter.Category)
	}
	query := `SELECT document FROM candidats`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, license_number"

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Candidate, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Postgres) ListBySchool(ctx context.Context, schoolID id.SchoolID) ([]*models.Candidate, error) {
	return s.List(ctx, models.ListFilter{SchoolID: schoolID})
}

func (s *Postgres) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `SELECT status, COUNT(*) FROM candidats GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count candidates: %w", err)
	}
	defer rows.Close()
	counts := make(map[models.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan candidate count: %w", err)
		}
		counts[models.Status(status)] = n
	}
	return counts, rows.Err()
}

// Execute locks the row with SELECT ... FOR UPDATE, joining the caller's
// transaction when there is one.
func (s *Postgres) Execute(ctx context.Context, candidateID id.CandidateID, validate func(*models.Candidate) error, mutate func(*models.Candidate)) (*models.Candidate, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return s.executeInTx(ctx, tx, candidateID, validate, mutate)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	c, err := s.executeInTx(ctx, tx, candidateID, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return c, nil
}

func (s *Postgres) executeInTx(ctx context.Context, tx *sql.Tx, candidateID id.CandidateID, validate func(*models.Candidate) error, mutate func(*models.Candidate)) (*models.Candidate, error) {
	row := tx.QueryRowContext(ctx, `SELECT document FROM candidats WHERE id = $1 FOR UPDATE`, candidateID.String())
	c, err := scanCandidate(row)
	if err != nil {
		return nil, err
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	mutate(c)

	doc, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode candidate: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE candidats SET status = $2, document = $3, updated_at = $4 WHERE id = $1
	`, candidateID.String(), string(c.Status), doc, c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update candidate: %w", err)
	}
	return c, nil
}

func scanCandidate(row *sql.Row) (*models.Candidate, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan candidate: %w", err)
	}
	return decode(doc)
}

func decode(doc []byte) (*models.Candidate, error) {
	var c models.Candidate
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("decode candidate: %w", err)
	}
	return &c, nil
}
