package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dgtt/internal/platform/postgres"
	"dgtt/internal/school/models"
	id "dgtt/pkg/domain"
	"dgtt/pkg/platform/sentinel"
	txcontext "dgtt/pkg/platform/tx"
)

// Postgres stores each school as a JSONB document next to the columns used
// for lookups and filters.
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

func (s *Postgres) Create(ctx context.Context, school *models.School) error {
	doc, err := json.Marshal(school)
	if err != nil {
		return fmt.Errorf("encode school: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO auto_ecoles (id, request_number, status, name, city, province, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, school.ID.String(), school.RequestNumber, string(school.Status), school.Name,
		school.City, school.Province, doc, school.CreatedAt, school.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("school %s: %w", school.RequestNumber, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert school: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, schoolID id.SchoolID) (*models.School, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT document FROM auto_ecoles WHERE id = $1`, schoolID.String())
	return scanSchool(row)
}

func (s *Postgres) FindByRequestNumber(ctx context.Context, number string) (*models.School, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT document FROM auto_ecoles WHERE request_number = $1`, number)
	return scanSchool(row)
}

func (s *Postgres) List(ctx context.Context, filter models.ListFilter) ([]*models.School, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.City != "" {
		add("LOWER(city) = LOWER($%d)", filter.City)
	}
	if filter.Province != "" {
		add("LOWER(province) = LOWER($%d)", filter.Province)
	}
	if filter.Name != "" {
		add("name ILIKE '%%' || $%d || '%%'", filter.Name)
	}
	query := `SELECT document FROM auto_ecoles`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, request_number"

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	defer rows.Close()

	var out []*models.School
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan school: %w", err)
		}
		school, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, school)
	}
	return out, rows.Err()
}

func (s *Postgres) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `SELECT status, COUNT(*) FROM auto_ecoles GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count schools: %w", err)
	}
	defer rows.Close()
	counts := make(map[models.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan school count: %w", err)
		}
		counts[models.Status(status)] = n
	}
	return counts, rows.Err()
}

// Execute locks the row with SELECT ... FOR UPDATE. It joins the caller's
// transaction when there is one and opens its own otherwise.
func (s *Postgres) Execute(ctx context.Context, schoolID id.SchoolID, validate func(*models.School) error, mutate func(*models.School)) (*models.School, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return s.executeInTx(ctx, tx, schoolID, validate, mutate)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	school, err := s.executeInTx(ctx, tx, schoolID, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return school, nil
}

func (s *Postgres) executeInTx(ctx context.Context, tx *sql.Tx, schoolID id.SchoolID, validate func(*models.School) error, mutate func(*models.School)) (*models.School, error) {
	row := tx.QueryRowContext(ctx, `SELECT document FROM auto_ecoles WHERE id = $1 FOR UPDATE`, schoolID.String())
	school, err := scanSchool(row)
	if err != nil {
		return nil, err
	}
	if err := validate(school); err != nil {
		return nil, err
	}
	mutate(school)

	doc, err := json.Marshal(school)
	if err != nil {
		return nil, fmt.Errorf("encode school: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE auto_ecoles
		SET status = $2, name = $3, city = $4, province = $5, document = $6, updated_at = $7
		WHERE id = $1
	`, schoolID.String(), string(school.Status), school.Name, school.City, school.Province, doc, school.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update school: %w", err)
	}
	return school, nil
}

func scanSchool(row *sql.Row) (*models.School, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan school: %w", err)
	}
	return decode(doc)
}

func decode(doc []byte) (*models.School, error) {
	var school models.School
	if err := json.Unmarshal(doc, &school); err != nil {
		return nil, fmt.Errorf("decode school: %w", err)
	}
	return &school, nil
}
