package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ttapp-api/internal/models"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type classLister interface {
	ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.Class, error)
}

type subjectLister interface {
	ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.Subject, error)
}

type teacherReader interface {
	ListWithSubjects(ctx context.Context, exec sqlx.ExtContext) ([]models.Teacher, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type slotStore interface {
	LockGeneration(ctx context.Context, tx sqlx.ExtContext, key int64) error
	ReplaceAll(ctx context.Context, tx sqlx.ExtContext, slots []models.Slot) error
	List(ctx context.Context, exec sqlx.ExtContext, filter models.SlotFilter) ([]models.Slot, error)
}

type slotLister interface {
	List(ctx context.Context, exec sqlx.ExtContext, filter models.SlotFilter) ([]models.Slot, error)
}

type absenceStore interface {
	Create(ctx context.Context, absence *models.Absence) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Absence, error)
	ExistsForTeacherDate(ctx context.Context, teacherID string, date time.Time) (bool, error)
	ListByDate(ctx context.Context, exec sqlx.ExtContext, date time.Time) ([]models.Absence, error)
	MarkSubstituted(ctx context.Context, exec sqlx.ExtContext, id, substituteTeacherID string) error
}

type absenceLister interface {
	ListByDate(ctx context.Context, exec sqlx.ExtContext, date time.Time) ([]models.Absence, error)
}
