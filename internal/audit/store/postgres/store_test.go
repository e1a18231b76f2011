package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/suite"

	"dgtt/internal/audit"
	txcontext "dgtt/pkg/platform/tx"
)

type AuditPostgresSuite struct {
	suite.Suite
	db    *sql.DB
	mock  sqlmock.Sqlmock
	store *Store
	ctx   context.Context
}

func TestAuditPostgresSuite(t *testing.T) {
	suite.Run(t, new(AuditPostgresSuite))
}

func (s *AuditPostgresSuite) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.db, s.mock = db, mock
	s.store = New(db)
	s.ctx = context.Background()
}

func (s *AuditPostgresSuite) TearDownTest() {
	s.Require().NoError(s.mock.ExpectationsWereMet())
	_ = s.db.Close()
}

var columns = []string{"id", "action", "level", "entity_type", "entity_id", "actor_id", "actor_role",
	"message", "before", "after", "client_ip", "user_agent", "request_id", "created_at"}

func (s *AuditPostgresSuite) TestAppend() {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	entry := audit.Entry{
		ID:         "01HV0000000000000000000000",
		Action:     audit.ActionPaiement,
		Level:      audit.LevelInfo,
		EntityType: audit.EntitySchool,
		EntityID:   "school-1",
		ActorID:    "agent-7",
		ActorRole:  "SAF",
		Message:    "payment validated",
		After:      []byte(`{"status":"PAIEMENT_VALIDE"}`),
		CreatedAt:  at,
	}

	s.Run("writes every column and a NULL before snapshot", func() {
		s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_log")).
			WithArgs(entry.ID, "PAIEMENT", "INFO", "AUTO_ECOLE", "school-1", "agent-7", "SAF",
				"payment validated", nil, []byte(`{"status":"PAIEMENT_VALIDE"}`), "", "", "", at).
			WillReturnResult(sqlmock.NewResult(0, 1))

		s.Require().NoError(s.store.Append(s.ctx, entry))
	})

	s.Run("joins the transaction carried by context", func() {
		s.mock.ExpectBegin()
		s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_log")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		s.mock.ExpectCommit()

		tx, err := s.db.Begin()
		s.Require().NoError(err)
		s.Require().NoError(s.store.Append(txcontext.WithTx(s.ctx, tx), entry))
		s.Require().NoError(tx.Commit())
	})
}

func (s *AuditPostgresSuite) TestList() {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	s.Run("builds filter and scans rows", func() {
		rows := sqlmock.NewRows(columns).
			AddRow("01B", "SUPPRESSION", "CRITIQUE", "CANDIDAT", "cand-1", "agent-7", "SEV",
				"deleted", []byte(`{"a":1}`), nil, "10.0.0.1", "curl", "req-1", at)

		s.mock.ExpectQuery(regexp.QuoteMeta("FROM audit_log WHERE entity_type = $1 AND entity_id = $2 AND level = ANY($3) AND created_at >= $4 ORDER BY created_at DESC, id DESC LIMIT $5")).
			WithArgs("CANDIDAT", "cand-1", sqlmock.AnyArg(), at.Add(-time.Hour), 10).
			WillReturnRows(rows)

		entries, err := s.store.List(s.ctx, audit.Filter{
			EntityType: audit.EntityCandidate,
			EntityID:   "cand-1",
			MinLevel:   audit.LevelAlerte,
			From:       at.Add(-time.Hour),
			Limit:      10,
		})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(audit.LevelCritique, entries[0].Level)
		s.JSONEq(`{"a":1}`, string(entries[0].Before))
		s.Nil(entries[0].After)
	})

	s.Run("no filter means no WHERE clause", func() {
		s.mock.ExpectQuery(regexp.QuoteMeta("FROM audit_log ORDER BY created_at DESC")).
			WillReturnRows(sqlmock.NewRows(columns))

		entries, err := s.store.List(s.ctx, audit.Filter{})
		s.Require().NoError(err)
		s.Empty(entries)
	})
}

func (s *AuditPostgresSuite) TestCount() {
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT actor_id, COUNT(*) FROM audit_log WHERE action = $1 GROUP BY actor_id")).
		WithArgs("VALIDATION").
		WillReturnRows(sqlmock.NewRows([]string{"actor_id", "count"}).
			AddRow("agent-1", 4).
			AddRow("agent-2", 1))

	counts, err := s.store.Count(s.ctx, audit.GroupByActor, audit.Filter{Action: audit.ActionValidation})
	s.Require().NoError(err)
	s.Equal([]audit.Count{{Key: "agent-1", Total: 4}, {Key: "agent-2", Total: 1}}, counts)
}

func (s *AuditPostgresSuite) TestPurgeBefore() {
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM audit_log WHERE created_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	removed, err := s.store.PurgeBefore(s.ctx, cutoff)
	s.Require().NoError(err)
	s.Equal(int64(7), removed)
}
