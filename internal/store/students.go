// Package store persists student profiles and caches pipeline artefacts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"unipal-workers/internal/common/database"
	apperrors "unipal-workers/internal/common/errors"
	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/models"
)

var ErrStudentNotFound = errors.New("STUDENT_NOT_FOUND")

const studentColumns = `contact_info, name, marks_10th, marks_12th, btech_cgpa, ielts_score, toefl_score,
	work_experience, preferred_countries, btech_branch, interested_field_for_masters`

// StudentStore keeps the most recent profile per contact in a SQL table.
type StudentStore struct {
	db      *sql.DB
	dialect database.Dialect
	logger  logger.Logger
}

func NewStudentStore(db *sql.DB, dialect database.Dialect, log logger.Logger) *StudentStore {
	return &StudentStore{
		db:      db,
		dialect: dialect,
		logger:  logger.OrNop(log).WithFields(map[string]interface{}{"component": "student-store"}),
	}
}

// rebind turns ? markers into the dialect's placeholders.
func (s *StudentStore) rebind(query string) string {
	if s.dialect != database.DialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString(s.dialect.Placeholder(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// EnsureSchema creates the students table when missing.
func (s *StudentStore) EnsureSchema(ctx context.Context) error {
	tsType := "TIMESTAMP"
	realType := "REAL"
	if s.dialect == database.DialectPostgres {
		tsType = "TIMESTAMPTZ"
		realType = "DOUBLE PRECISION"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS students (
	contact_info TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	marks_10th INTEGER NOT NULL,
	marks_12th INTEGER NOT NULL,
	btech_cgpa %[1]s NOT NULL,
	ielts_score %[1]s,
	toefl_score %[1]s,
	work_experience TEXT,
	preferred_countries TEXT NOT NULL,
	btech_branch TEXT NOT NULL,
	interested_field_for_masters TEXT,
	updated_at %[2]s NOT NULL
)`, realType, tsType)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return apperrors.NewDatabaseConnectionError(fmt.Errorf("create students table: %w", err))
	}
	return nil
}

// Upsert updates the row for p.ContactInfo, inserting it when absent.
func (s *StudentStore) Upsert(ctx context.Context, p models.StudentProfile) error {
	countries, err := json.Marshal(p.PreferredCountries)
	if err != nil {
		return apperrors.NewDatabaseWriteError("encode countries", err)
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseConnectionError(err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, s.rebind(`UPDATE students SET
	name = ?, marks_10th = ?, marks_12th = ?, btech_cgpa = ?, ielts_score = ?, toefl_score = ?,
	work_experience = ?, preferred_countries = ?, btech_branch = ?, interested_field_for_masters = ?, updated_at = ?
	WHERE contact_info = ?`),
		p.Name, p.Marks10th, p.Marks12th, p.BtechCGPA, nullFloat(p.IELTSScore), nullFloat(p.TOEFLScore),
		p.WorkExperience, string(countries), p.BtechBranch, p.InterestedFieldForMasters, now,
		p.ContactInfo,
	)
	if err != nil {
		return apperrors.NewDatabaseWriteError("update student", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewDatabaseWriteError("update student", err)
	}

	if affected == 0 {
		_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO students (`+studentColumns+`, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			p.ContactInfo, p.Name, p.Marks10th, p.Marks12th, p.BtechCGPA, nullFloat(p.IELTSScore), nullFloat(p.TOEFLScore),
			p.WorkExperience, string(countries), p.BtechBranch, p.InterestedFieldForMasters, now,
		)
		if err != nil {
			return apperrors.NewDatabaseWriteError("insert student", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewDatabaseWriteError("commit student", err)
	}

	s.logger.Info("student saved", map[string]interface{}{
		"contactInfo": p.ContactInfo,
		"inserted":    affected == 0,
	})
	return nil
}

// Get loads the profile stored for contact.
func (s *StudentStore) Get(ctx context.Context, contact string) (models.StudentProfile, error) {
	var (
		p            models.StudentProfile
		ielts, toefl sql.NullFloat64
		work, field  sql.NullString
		countries    string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+studentColumns+` FROM students WHERE contact_info = ?`), contact).
		Scan(&p.ContactInfo, &p.Name, &p.Marks10th, &p.Marks12th, &p.BtechCGPA, &ielts, &toefl,
			&work, &countries, &p.BtechBranch, &field)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StudentProfile{}, fmt.Errorf("%w: %s", ErrStudentNotFound, contact)
	}
	if err != nil {
		return models.StudentProfile{}, apperrors.NewDatabaseReadError("get student", err)
	}

	if ielts.Valid {
		v := ielts.Float64
		p.IELTSScore = &v
	}
	if toefl.Valid {
		v := toefl.Float64
		p.TOEFLScore = &v
	}
	p.WorkExperience = work.String
	p.InterestedFieldForMasters = field.String
	if err := json.Unmarshal([]byte(countries), &p.PreferredCountries); err != nil {
		return models.StudentProfile{}, apperrors.NewDatabaseReadError("decode countries", err)
	}
	return p, nil
}

// Delete removes one student. Deleting an unknown contact is not an error.
func (s *StudentStore) Delete(ctx context.Context, contact string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM students WHERE contact_info = ?`), contact); err != nil {
		return apperrors.NewDatabaseWriteError("delete student", err)
	}
	return nil
}

// Clear removes every student.
func (s *StudentStore) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM students`)
	if err != nil {
		return 0, apperrors.NewDatabaseWriteError("clear students", err)
	}
	n, _ := res.RowsAffected()
	s.logger.Info("students cleared", map[string]interface{}{"rows": n})
	return n, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
