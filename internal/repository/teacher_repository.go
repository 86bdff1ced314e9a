package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ttapp-api/internal/models"
)

// TeacherRepository reads teachers and their subject qualifications.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

func (r *TeacherRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListWithSubjects returns every teacher ordered by id with SubjectIDs populated.
func (r *TeacherRepository) ListWithSubjects(ctx context.Context, exec sqlx.ExtContext) ([]models.Teacher, error) {
	target := r.exec(exec)

	const teachersQuery = `SELECT id, full_name, is_class_teacher, is_leisure, created_at, updated_at FROM teachers ORDER BY id ASC`
	var teachers []models.Teacher
	if err := sqlx.SelectContext(ctx, target, &teachers, teachersQuery); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}

	const linksQuery = `SELECT teacher_id, subject_id FROM teacher_subjects ORDER BY teacher_id ASC, subject_id ASC`
	var links []models.TeacherSubject
	if err := sqlx.SelectContext(ctx, target, &links, linksQuery); err != nil {
		return nil, fmt.Errorf("list teacher subjects: %w", err)
	}

	byTeacher := make(map[string][]string, len(teachers))
	for _, link := range links {
		byTeacher[link.TeacherID] = append(byTeacher[link.TeacherID], link.SubjectID)
	}
	for i := range teachers {
		teachers[i].SubjectIDs = byTeacher[teachers[i].ID]
		if teachers[i].SubjectIDs == nil {
			teachers[i].SubjectIDs = []string{}
		}
	}
	return teachers, nil
}

// FindByID fetches a teacher by ID without qualifications.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	const query = `SELECT id, full_name, is_class_teacher, is_leisure, created_at, updated_at FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}
