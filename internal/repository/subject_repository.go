package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ttapp-api/internal/models"
)

// SubjectRepository reads the subject roster.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new repository instance.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListAll returns every subject ordered by id.
func (r *SubjectRepository) ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.Subject, error) {
	if exec == nil {
		exec = r.db
	}
	const query = `SELECT id, code, name, created_at, updated_at FROM subjects ORDER BY id ASC`
	var subjects []models.Subject
	if err := sqlx.SelectContext(ctx, exec, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}
