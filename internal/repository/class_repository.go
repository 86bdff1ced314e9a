package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ttapp-api/internal/models"
)

// ClassRepository reads class sections.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// ListAll returns every class ordered by id.
func (r *ClassRepository) ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.Class, error) {
	if exec == nil {
		exec = r.db
	}
	const query = `SELECT id, name, grade, class_teacher_id, created_at, updated_at FROM classes ORDER BY id ASC`
	var classes []models.Class
	if err := sqlx.SelectContext(ctx, exec, &classes, query); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}
