package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unipal-workers/internal/common/config"
	"unipal-workers/internal/common/database"
	apperrors "unipal-workers/internal/common/errors"
	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/models"
)

var studentCols = []string{
	"contact_info", "name", "marks_10th", "marks_12th", "btech_cgpa", "ielts_score", "toefl_score",
	"work_experience", "preferred_countries", "btech_branch", "interested_field_for_masters",
}

func testProfile() models.StudentProfile {
	ielts := 7.0
	return models.StudentProfile{
		Name:                      "Asha Rao",
		ContactInfo:               "asha@example.com",
		Marks10th:                 91,
		Marks12th:                 88,
		BtechCGPA:                 8.5,
		IELTSScore:                &ielts,
		WorkExperience:            "1 year",
		PreferredCountries:        []string{"USA", "Canada"},
		BtechBranch:               "Computer Science",
		InterestedFieldForMasters: "Data Science",
	}
}

// ==========================
// Upsert
// ==========================

func TestUpsert_InsertsWhenMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE students SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO students").
		WithArgs("asha@example.com", "Asha Rao", 91, 88, 8.5, 7.0, nil,
			"1 year", `["USA","Canada"]`, "Computer Science", "Data Science", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	s := NewStudentStore(db, database.DialectSQLite, logger.NewNoOpLogger())
	require.NoError(t, s.Upsert(context.Background(), testProfile()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_UpdatesExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE students SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	s := NewStudentStore(db, database.DialectSQLite, nil)
	require.NoError(t, s.Upsert(context.Background(), testProfile()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_RollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE students SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO students").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	s := NewStudentStore(db, database.DialectSQLite, nil)
	err = s.Upsert(context.Background(), testProfile())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabaseWriteFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_PostgresPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`WHERE contact_info = \$12`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`VALUES \(\$1, \$2, .*\$12\)`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	s := NewStudentStore(db, database.DialectPostgres, nil)
	require.NoError(t, s.Upsert(context.Background(), testProfile()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRebind(t *testing.T) {
	pg := NewStudentStore(nil, database.DialectPostgres, nil)
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	lite := NewStudentStore(nil, database.DialectSQLite, nil)
	assert.Equal(t, "a = ? AND b = ?", lite.rebind("a = ? AND b = ?"))
}

// ==========================
// Get / Delete / Clear
// ==========================

func TestGet_Found(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows(studentCols).
		AddRow("asha@example.com", "Asha Rao", 91, 88, 8.5, 7.0, nil,
			"1 year", `["USA","Canada"]`, "Computer Science", "Data Science")
	mock.ExpectQuery("SELECT .* FROM students WHERE contact_info = ?").
		WithArgs("asha@example.com").
		WillReturnRows(rows)

	s := NewStudentStore(db, database.DialectSQLite, nil)
	p, err := s.Get(context.Background(), "asha@example.com")
	require.NoError(t, err)

	assert.Equal(t, "Asha Rao", p.Name)
	assert.Equal(t, []string{"USA", "Canada"}, p.PreferredCountries)
	require.NotNil(t, p.IELTSScore)
	assert.Equal(t, 7.0, *p.IELTSScore)
	assert.Nil(t, p.TOEFLScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT .* FROM students").
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows(studentCols))

	s := NewStudentStore(db, database.DialectSQLite, nil)
	_, err = s.Get(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrStudentNotFound)
}

func TestClear(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM students").WillReturnResult(sqlmock.NewResult(0, 3))

	s := NewStudentStore(db, database.DialectSQLite, nil)
	n, err := s.Clear(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

// ==========================
// SQLite round trip
// ==========================

func TestStudentStore_SQLiteRoundTrip(t *testing.T) {
	client, err := database.NewSQL(config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "students.db")},
	})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	s := NewStudentStore(client.DB, client.Dialect, logger.NewTestLogger(t))
	require.NoError(t, s.EnsureSchema(ctx))

	p := testProfile()
	require.NoError(t, s.Upsert(ctx, p))

	p.BtechCGPA = 9.1
	p.IELTSScore = nil
	require.NoError(t, s.Upsert(ctx, p))

	got, err := s.Get(ctx, p.ContactInfo)
	require.NoError(t, err)
	assert.Equal(t, 9.1, got.BtechCGPA)
	assert.Nil(t, got.IELTSScore)

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Get(ctx, p.ContactInfo)
	assert.ErrorIs(t, err, ErrStudentNotFound)
}
