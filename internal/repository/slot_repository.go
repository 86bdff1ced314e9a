package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ttapp-api/internal/models"
)

// SlotRepository manages the weekly timetable slots.
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository builds repository.
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

func (r *SlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// LockGeneration takes the transaction-scoped advisory lock serialising regenerations.
func (r *SlotRepository) LockGeneration(ctx context.Context, tx sqlx.ExtContext, key int64) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		return fmt.Errorf("acquire generation lock: %w", err)
	}
	return nil
}

// ReplaceAll deletes every stored slot and inserts the new week. Callers run it inside a transaction.
func (r *SlotRepository) ReplaceAll(ctx context.Context, tx sqlx.ExtContext, slots []models.Slot) error {
	target := r.exec(tx)
	if _, err := target.ExecContext(ctx, `DELETE FROM timetable_slots`); err != nil {
		return fmt.Errorf("clear timetable slots: %w", err)
	}

	now := time.Now().UTC()
	const query = `
INSERT INTO timetable_slots (id, class_id, day_of_week, period, subject_id, teacher_id, created_at)
VALUES (:id, :class_id, :day_of_week, :period, :subject_id, :teacher_id, :created_at)`

	for i := range slots {
		slot := &slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		if slot.CreatedAt.IsZero() {
			slot.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, slot); err != nil {
			return fmt.Errorf("insert timetable slot: %w", err)
		}
	}
	return nil
}

// List returns slots matching the filter ordered by class, day and period.
func (r *SlotRepository) List(ctx context.Context, exec sqlx.ExtContext, filter models.SlotFilter) ([]models.Slot, error) {
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.DayOfWeek != nil {
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)+1))
		args = append(args, *filter.DayOfWeek)
	}

	query := "SELECT id, class_id, day_of_week, period, subject_id, teacher_id, created_at FROM timetable_slots"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY class_id ASC, day_of_week ASC, period ASC"

	var slots []models.Slot
	if err := sqlx.SelectContext(ctx, r.exec(exec), &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list timetable slots: %w", err)
	}
	return slots, nil
}
