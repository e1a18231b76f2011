package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"dgtt/internal/exam/models"
	"dgtt/internal/platform/postgres"
	id "dgtt/pkg/domain"
	"dgtt/pkg/platform/sentinel"
	txcontext "dgtt/pkg/platform/tx"
)

// Postgres stores each exam as a JSONB document with its number, candidate,
// school and status as columns.
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

func (s *Postgres) Create(ctx context.Context, e *models.Exam) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode exam: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO examens (id, exam_number, candidate_id, school_id, status, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID.String(), e.ExamNumber, e.CandidateID.String(), e.SchoolID.String(), string(e.Status), doc, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("exam %s: %w", e.ExamNumber, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert exam: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, examID id.ExamID) (*models.Exam, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT document FROM examens WHERE id = $1`, examID.String())
	return scanExam(row)
}

func (s *Postgres) FindByNumber(ctx context.Context, number string) (*models.Exam, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT document FROM examens WHERE exam_number = $1`, number)
	return scanExam(row)
}

// List filters on the indexed columns. A status set is bound as one array
// parameter.
func (s *Postgres) List(ctx context.Context, filter models.ListFilter) ([]*models.Exam, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !filter.CandidateID.IsNil() {
		add("candidate_id = $%d", filter.CandidateID.String())
	}
	if !filter.SchoolID.IsNil() {
		add("school_id = $%d", filter.SchoolID.String())
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		add("status = ANY($%d)", pq.Array(statuses))
	}
	query := `SELECT document FROM examens`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, exam_number"

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Exam, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan exam: %w", err)
		}
		e, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Postgres) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `SELECT status, COUNT(*) FROM examens GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count exams: %w", err)
	}
	defer rows.Close()

	out := make(map[models.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan exam count: %w", err)
		}
		out[models.Status(status)] = n
	}
	return out, rows.Err()
}

// Execute locks the row with SELECT ... FOR UPDATE, joining the caller's
// transaction when there is one.
func (s *Postgres) Execute(ctx context.Context, examID id.ExamID, validate func(*models.Exam) error, mutate func(*models.Exam)) (*models.Exam, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return s.executeInTx(ctx, tx, examID, validate, mutate)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	e, err := s.executeInTx(ctx, tx, examID, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return e, nil
}

func (s *Postgres) executeInTx(ctx context.Context, tx *sql.Tx, examID id.ExamID, validate func(*models.Exam) error, mutate func(*models.Exam)) (*models.Exam, error) {
	row := tx.QueryRowContext(ctx, `SELECT document FROM examens WHERE id = $1 FOR UPDATE`, examID.String())
	e, err := scanExam(row)
	if err != nil {
		return nil, err
	}
	if err := validate(e); err != nil {
		return nil, err
	}
	mutate(e)

	doc, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode exam: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE examens SET status = $2, document = $3, updated_at = $4 WHERE id = $1
	`, examID.String(), string(e.Status), doc, e.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update exam: %w", err)
	}
	return e, nil
}

func scanExam(row *sql.Row) (*models.Exam, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan exam: %w", err)
	}
	return decode(doc)
}

func decode(doc []byte) (*models.Exam, error) {
	var e models.Exam
	if err := json.Unmarshal(doc, &e); err != nil {
		return nil, fmt.Errorf("decode exam: %w", err)
	}
	return &e, nil
}
