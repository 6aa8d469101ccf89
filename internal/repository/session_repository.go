package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sinovhub/sinov-backend/internal/model"
)

// SessionRepository handles test session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, test_id, student_id, answers, started_at, expires_at,
	finished_at, status, warning_count, locked, final_score`

func scanSession(row interface{ Scan(...any) error }) (*model.TestSession, error) {
	s := &model.TestSession{}
	var answersRaw []byte
	err := row.Scan(
		&s.ID, &s.TestID, &s.StudentID, &answersRaw, &s.StartedAt, &s.ExpiresAt,
		&s.FinishedAt, &s.Status, &s.WarningCount, &s.Locked, &s.FinalScore,
	)
	if err != nil {
		return nil, err
	}
	s.Answers = map[string]string{}
	if len(answersRaw) > 0 {
		if err := json.Unmarshal(answersRaw, &s.Answers); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// GetByID retrieves a session owned by the given student.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.TestSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM test_sessions
		 WHERE id = $1 AND student_id = $2`, sessionID, studentID))
}

// GetActiveByTestAndStudent retrieves the single ACTIVE session for a
// (test, student) pair, if one exists.
func (r *SessionRepository) GetActiveByTestAndStudent(ctx context.Context, testID uuid.UUID, studentID int) (*model.TestSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM test_sessions
		 WHERE test_id = $1 AND student_id = $2 AND status = $3`,
		testID, studentID, model.SessionStatusActive))
}

// Create inserts a new ACTIVE session. The partial unique index on
// (test_id, student_id) WHERE status = 'ACTIVE' makes a concurrent
// duplicate start surface as pgx.ErrNoRows here.
func (r *SessionRepository) Create(ctx context.Context, s *model.TestSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO test_sessions (test_id, student_id, expires_at, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (test_id, student_id) WHERE status = 'ACTIVE' DO NOTHING
		 RETURNING id, started_at`,
		s.TestID, s.StudentID, s.ExpiresAt, model.SessionStatusActive,
	).Scan(&s.ID, &s.StartedAt)
}

// MergeAnswers merges a partial answers map into the stored jsonb.
// Existing keys are overwritten, other keys are untouched.
func (r *SessionRepository) MergeAnswers(ctx context.Context, sessionID uuid.UUID, answers map[string]string) error {
	raw, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET answers = answers || $2::jsonb
		 WHERE id = $1`, sessionID, raw)
	return err
}

// SetWarningState persists the warning counter and the lock flag.
func (r *SessionRepository) SetWarningState(ctx context.Context, sessionID uuid.UUID, count int, locked bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET warning_count = $2, locked = $3
		 WHERE id = $1`, sessionID, count, locked)
	return err
}

// Finalize moves an ACTIVE session to a terminal status with its score.
// Returns false when the session was already finalized; repeat submits
// must not overwrite the first result.
func (r *SessionRepository) Finalize(ctx context.Context, sessionID uuid.UUID, status model.SessionStatus, score float64, finishedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET status = $2, final_score = $3, finished_at = $4
		 WHERE id = $1 AND status = $5`,
		sessionID, status, score, finishedAt, model.SessionStatusActive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListByStudent retrieves all sessions of a student, newest first.
func (r *SessionRepository) ListByStudent(ctx context.Context, studentID int) ([]model.TestSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM test_sessions
		 WHERE student_id = $1
		 ORDER BY started_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.TestSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ListExpiredActive retrieves ACTIVE sessions whose deadline has passed.
// Used by the expiry worker to finalize abandoned attempts.
func (r *SessionRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]model.TestSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM test_sessions
		 WHERE status = $1 AND expires_at <= $2
		 ORDER BY expires_at ASC
		 LIMIT $3`, model.SessionStatusActive, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.TestSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// SessionResult combines student data with session outcome for proctor views.
type SessionResult struct {
	StudentID    int                 `json:"student_id"`
	Name         string              `json:"name"`
	ClassGroup   string              `json:"class_group"`
	FinalScore   *float64            `json:"score"`
	Status       model.SessionStatus `json:"status"`
	WarningCount int                 `json:"warning_count"`
	StartedAt    *time.Time          `json:"started_at"`
	FinishedAt   *time.Time          `json:"finished_at"`
}

// ListResultsByTest retrieves paginated per-student results for a test.
func (r *SessionRepository) ListResultsByTest(ctx context.Context, testID uuid.UUID, page, perPage int) ([]SessionResult, int64, error) {
	offset := (page - 1) * perPage

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM test_sessions ts
		 JOIN students s ON ts.student_id = s.id
		 WHERE ts.test_id = $1`, testID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.name, s.class_group,
		        ts.final_score, ts.status, ts.warning_count, ts.started_at, ts.finished_at
		 FROM test_sessions ts
		 JOIN students s ON ts.student_id = s.id
		 WHERE ts.test_id = $1
		 ORDER BY s.class_group ASC, s.name ASC
		 LIMIT $2 OFFSET $3`, testID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []SessionResult
	for rows.Next() {
		var res SessionResult
		if err := rows.Scan(
			&res.StudentID, &res.Name, &res.ClassGroup,
			&res.FinalScore, &res.Status, &res.WarningCount, &res.StartedAt, &res.FinishedAt,
		); err != nil {
			return nil, 0, err
		}
		results = append(results, res)
	}
	return results, total, rows.Err()
}
