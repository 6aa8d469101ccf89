package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sinovhub/sinov-backend/internal/model"
)

// AttemptRepository handles completed attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts a completed attempt record.
func (r *AttemptRepository) Create(ctx context.Context, a *model.TestAttempt) error {
	raw, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO test_attempts (test_id, student_id, answers, score, time_taken_minutes)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		a.TestID, a.StudentID, raw, a.Score, a.TimeTakenMinutes,
	).Scan(&a.ID, &a.CreatedAt)
}

// ExistsByTestAndStudent reports whether a student already completed a test.
func (r *AttemptRepository) ExistsByTestAndStudent(ctx context.Context, testID uuid.UUID, studentID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM test_attempts WHERE test_id = $1 AND student_id = $2
		 )`, testID, studentID).Scan(&exists)
	return exists, err
}

// ListByStudent retrieves a student's attempts, optionally filtered by test.
func (r *AttemptRepository) ListByStudent(ctx context.Context, studentID int, testID *uuid.UUID) ([]model.TestAttempt, error) {
	query := `SELECT id, test_id, student_id, answers, score, time_taken_minutes, created_at
	          FROM test_attempts
	          WHERE student_id = $1`
	args := []any{studentID}
	if testID != nil {
		args = append(args, *testID)
		query += ` AND test_id = $2`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.TestAttempt
	for rows.Next() {
		var a model.TestAttempt
		var answersRaw []byte
		if err := rows.Scan(&a.ID, &a.TestID, &a.StudentID, &answersRaw, &a.Score, &a.TimeTakenMinutes, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Answers = map[string]string{}
		if len(answersRaw) > 0 {
			if err := json.Unmarshal(answersRaw, &a.Answers); err != nil {
				return nil, err
			}
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
