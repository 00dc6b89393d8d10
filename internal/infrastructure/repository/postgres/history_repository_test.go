package postgres

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
)

func TestRecordInsertsAllFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO ask_history").
		WithArgs("id-1", "ask", "openrouter", "deepseek/deepseek-chat", "distinct_hits", 5, int64(420), "ok", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewHistoryRepository(db)
	err = repo.Record(context.Background(), domain.AskRecord{
		ID:          "id-1",
		Endpoint:    "ask",
		Provider:    "openrouter",
		Model:       "deepseek/deepseek-chat",
		Mode:        "distinct_hits",
		SourceCount: 5,
		DurationMS:  420,
		Status:      "ok",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecentScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "endpoint", "provider", "model", "dedup_mode", "source_count", "duration_ms", "status",
	}).
		AddRow("id-2", "ask_stream", "anthropic", "claude-sonnet-4-5", "distinct_hits", 3, int64(900), "ok").
		AddRow("id-1", "ask", "openrouter", "deepseek/deepseek-chat", "distinct_hits", 5, int64(420), "error")
	mock.ExpectQuery("SELECT (.+) FROM ask_history").WithArgs(10).WillReturnRows(rows)

	got, err := NewHistoryRepository(db).Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "id-2" || got[1].Status != "error" {
		t.Fatalf("unexpected records: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaRunsInTransactionWithAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(int64(2026082401)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ask_history").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := NewHistoryRepository(db).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
