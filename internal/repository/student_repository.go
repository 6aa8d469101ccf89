package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sinovhub/sinov-backend/internal/model"
)

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// GetByUsername retrieves a student by username (login).
func (r *StudentRepository) GetByUsername(ctx context.Context, username string) (*model.Student, error) {
	s := &model.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, username, password_hash, grade_level, class_group, created_at
		 FROM students
		 WHERE username = $1`, username,
	).Scan(&s.ID, &s.Name, &s.Username, &s.PasswordHash, &s.GradeLevel, &s.ClassGroup, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a student by primary key.
func (r *StudentRepository) GetByID(ctx context.Context, id int) (*model.Student, error) {
	s := &model.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, username, password_hash, grade_level, class_group, created_at
		 FROM students
		 WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.Username, &s.PasswordHash, &s.GradeLevel, &s.ClassGroup, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO students (name, username, password_hash, grade_level, class_group)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		s.Name, s.Username, s.PasswordHash, s.GradeLevel, s.ClassGroup,
	).Scan(&s.ID, &s.CreatedAt)
}
