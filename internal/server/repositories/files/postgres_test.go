package files

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const insertQ = `(?s)^INSERT\s+INTO\s+file_metadata\b.*VALUES\s*\(\$1,.*\$8\)\s*RETURNING\s+id,\s*upload_time\s*$`

func sample() *models.FileMetadata {
	return &models.FileMetadata{
		Filename:  "report.pdf",
		Owner:     "alice",
		Size:      3,
		MimeType:  "application/pdf",
		RiskScore: 0,
		Analysis:  "ok",
		Active:    true,
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(insertQ).
		WithArgs(nil, "report.pdf", "alice", int64(3), "application/pdf", 0, "ok", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "upload_time"}).AddRow(int64(7), at))

	got, err := repo.Create(context.Background(), sample())
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.True(t, got.UploadTime.Equal(at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Errors(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), sample())
	assert.ErrorIs(t, err, common.ErrDuplicateIdentity)

	_, err = repo.Create(context.Background(), sample())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestDeleteByName(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE\s+FROM\s+file_metadata\s+WHERE\s+owner\s*=\s*\$1\s+AND\s+filename\s*=\s*\$2\s+AND\s+active$`
	mock.ExpectExec(q).WithArgs("alice", "a.txt").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteByName(context.Background(), "alice", "a.txt"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRisky(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+id,\s*filename,\s*owner,\s*size,\s*risk_score,\s*analysis\s+FROM\s+file_metadata\s+WHERE\s+active\s+AND\s+risk_score\s*>\s*\$1\s+ORDER\s+BY\s+id\s*$`
	rows := sqlmock.NewRows([]string{"id", "filename", "owner", "size", "risk_score", "analysis"}).
		AddRow(int64(1), "x.exe", "alice", int64(10), 95, "bad").
		AddRow(int64(2), "y.bin", "bob", int64(20), 81, "meh")
	mock.ExpectQuery(q).WithArgs(80).WillReturnRows(rows)

	got, err := repo.ListRisky(context.Background(), 80)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "x.exe", got[0].Filename)
	assert.Equal(t, 95, got[0].RiskScore)
	assert.True(t, got[1].Active)
}

func TestListRisky_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).WithArgs(80).WillReturnError(errors.New("boom"))

	_, err := repo.ListRisky(context.Background(), 80)
	assert.ErrorContains(t, err, "failed to select files: boom")
}

func TestQuarantine(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+file_metadata\s+SET\s+active\s*=\s*FALSE,\s*filename\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+AND\s+active$`
	mock.ExpectExec(q).WithArgs(int64(1), "x.exe.quarantine").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(int64(2), "y.quarantine").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Quarantine(context.Background(), 1, "x.exe.quarantine"))
	assert.ErrorIs(t, repo.Quarantine(context.Background(), 2, "y.quarantine"), common.ErrorNotFound)
}

func TestStats(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+COUNT\(\*\),.*AVG\(risk_score\).*FILTER\s+\(WHERE\s+NOT\s+active\).*risk_score\s*<\s*\$1.*risk_score\s*>=\s*\$2\)\s+FROM\s+file_metadata\s*$`
	cols := []string{"count", "avg", "quarantined", "safe", "warning", "critical"}
	mock.ExpectQuery(q).WithArgs(50, 80).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(4), 42.5, int64(1), int64(2), int64(1), int64(1)))
	mock.ExpectQuery(q).WithArgs(50, 80).WillReturnError(errors.New("db down"))

	got, err := repo.Stats(context.Background(), 50, 80)
	require.NoError(t, err)
	assert.Equal(t, models.FileStats{Total: 4, AvgRisk: 42.5, Quarantined: 1, Safe: 2, Warning: 1, Critical: 1}, *got)

	_, err = repo.Stats(context.Background(), 50, 80)
	assert.ErrorContains(t, err, "failed to aggregate files: db down")
	require.NoError(t, mock.ExpectationsWereMet())
}
