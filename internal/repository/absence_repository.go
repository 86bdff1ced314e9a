package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/ttapp-api/internal/models"
)

// ErrDuplicate is returned when a unique constraint rejects an insert.
var ErrDuplicate = errors.New("duplicate record")

const uniqueViolation = "23505"

const absenceColumns = "id, teacher_id, absence_date, is_substituted, substitute_teacher_id, created_at, updated_at"

// AbsenceRepository persists teacher absences.
type AbsenceRepository struct {
	db *sqlx.DB
}

// NewAbsenceRepository constructs an AbsenceRepository.
func NewAbsenceRepository(db *sqlx.DB) *AbsenceRepository {
	return &AbsenceRepository{db: db}
}

func (r *AbsenceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new absence. A second absence for the same teacher and date yields ErrDuplicate.
func (r *AbsenceRepository) Create(ctx context.Context, absence *models.Absence) error {
	if absence.ID == "" {
		absence.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if absence.CreatedAt.IsZero() {
		absence.CreatedAt = now
	}
	absence.UpdatedAt = now

	const query = `INSERT INTO teacher_absences (id, teacher_id, absence_date, is_substituted, substitute_teacher_id, created_at, updated_at)
		VALUES (:id, :teacher_id, :absence_date, :is_substituted, :substitute_teacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, absence); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("create absence: %w", err)
	}
	return nil
}

// FindByID fetches an absence by ID.
func (r *AbsenceRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Absence, error) {
	query := "SELECT " + absenceColumns + " FROM teacher_absences WHERE id = $1"
	var absence models.Absence
	if err := sqlx.GetContext(ctx, r.exec(exec), &absence, query, id); err != nil {
		return nil, err
	}
	return &absence, nil
}

// ExistsForTeacherDate reports whether the teacher already has an absence on the date.
func (r *AbsenceRepository) ExistsForTeacherDate(ctx context.Context, teacherID string, date time.Time) (bool, error) {
	const query = `SELECT 1 FROM teacher_absences WHERE teacher_id = $1 AND absence_date = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, teacherID, date); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check absence: %w", err)
	}
	return true, nil
}

// ListByDate returns the absences recorded for a date ordered by teacher.
func (r *AbsenceRepository) ListByDate(ctx context.Context, exec sqlx.ExtContext, date time.Time) ([]models.Absence, error) {
	query := "SELECT " + absenceColumns + " FROM teacher_absences WHERE absence_date = $1 ORDER BY teacher_id ASC"
	var absences []models.Absence
	if err := sqlx.SelectContext(ctx, r.exec(exec), &absences, query, date); err != nil {
		return nil, fmt.Errorf("list absences: %w", err)
	}
	return absences, nil
}

// MarkSubstituted moves a recorded absence to substituted. It returns sql.ErrNoRows when
// the absence is missing or already substituted.
func (r *AbsenceRepository) MarkSubstituted(ctx context.Context, exec sqlx.ExtContext, id, substituteTeacherID string) error {
	const query = `UPDATE teacher_absences SET is_substituted = TRUE, substitute_teacher_id = $2, updated_at = $3
		WHERE id = $1 AND is_substituted = FALSE`
	res, err := r.exec(exec).ExecContext(ctx, query, id, substituteTeacherID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark absence substituted: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark absence substituted: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
