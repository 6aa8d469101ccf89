package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sinovhub/sinov-backend/internal/config"
	"github.com/sinovhub/sinov-backend/internal/model"
	"github.com/sinovhub/sinov-backend/internal/repository"
)

// SessionService owns the server side of the test session lifecycle:
// starting, resuming, autosaving, warning bookkeeping and finalization.
type SessionService struct {
	cfg          *config.Config
	testRepo     *repository.TestRepository
	questionRepo *repository.QuestionRepository
	sessionRepo  *repository.SessionRepository
	attemptRepo  *repository.AttemptRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	cfg *config.Config,
	testRepo *repository.TestRepository,
	questionRepo *repository.QuestionRepository,
	sessionRepo *repository.SessionRepository,
	attemptRepo *repository.AttemptRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		cfg:          cfg,
		testRepo:     testRepo,
		questionRepo: questionRepo,
		sessionRepo:  sessionRepo,
		attemptRepo:  attemptRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "session_service").Logger(),
	}
}

// Start begins a test session for a student. Starting is idempotent: if an
// ACTIVE session for this (test, student) already exists, including one
// created by a concurrent request, it is returned instead of a new one.
// A test the student already completed cannot be started again.
func (s *SessionService) Start(ctx context.Context, studentID int, gradeLevel string, testID uuid.UUID) (*model.TestSession, error) {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotAvailable
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	if !test.IsActive || !test.AvailableFor(gradeLevel) {
		return nil, ErrTestNotAvailable
	}

	taken, err := s.attemptRepo.ExistsByTestAndStudent(ctx, testID, studentID)
	if err != nil {
		return nil, fmt.Errorf("check attempt: %w", err)
	}
	if taken {
		return nil, ErrTestAlreadyTaken
	}

	if existing, err := s.sessionRepo.GetActiveByTestAndStudent(ctx, testID, studentID); err == nil {
		return existing, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check active session: %w", err)
	}

	session := &model.TestSession{
		TestID:    testID,
		StudentID: studentID,
		Answers:   map[string]string{},
		ExpiresAt: time.Now().Add(time.Duration(test.TimeLimitMinutes) * time.Minute),
		Status:    model.SessionStatusActive,
	}

	err = s.sessionRepo.Create(ctx, session)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race against another request from the same student.
		// The winner's row is the session.
		session, err = s.sessionRepo.GetActiveByTestAndStudent(ctx, testID, studentID)
		if err != nil {
			return nil, fmt.Errorf("recover concurrent start: %w", err)
		}
		return session, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.cacheDeadline(ctx, session)

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("test_id", testID.String()).
		Int("student_id", studentID).
		Msg("Session started")

	return session, nil
}

// ActiveForTest returns the student's ACTIVE session for a test, if any.
// Used by clients at startup to decide between resuming and starting fresh.
func (s *SessionService) ActiveForTest(ctx context.Context, studentID int, testID uuid.UUID) (*model.SessionState, error) {
	session, err := s.sessionRepo.GetActiveByTestAndStudent(ctx, testID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get active session: %w", err)
	}
	return s.buildState(ctx, session)
}

// Get returns the resume state of a session. A session whose deadline has
// passed is finalized as EXPIRED on the spot and reported as expired.
func (s *SessionService) Get(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.SessionState, error) {
	session, err := s.loadOwned(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case model.SessionStatusCompleted:
		return nil, ErrSessionCompleted
	case model.SessionStatusExpired:
		return nil, ErrSessionExpired
	}

	if time.Now().After(session.ExpiresAt) {
		if err := s.finalizeExpired(ctx, session); err != nil {
			s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Failed to finalize expired session on resume")
		}
		return nil, ErrSessionExpired
	}

	return s.buildState(ctx, session)
}

// UpdateAnswers merges a partial answers map into the session. Writes go to
// the Redis hash immediately and are queued for asynchronous persistence to
// PostgreSQL. Locked and finished sessions reject writes.
func (s *SessionService) UpdateAnswers(ctx context.Context, sessionID uuid.UUID, studentID int, answers map[string]string) error {
	session, err := s.loadOwned(ctx, sessionID, studentID)
	if err != nil {
		return err
	}

	switch session.Status {
	case model.SessionStatusCompleted:
		return ErrSessionCompleted
	case model.SessionStatusExpired:
		return ErrSessionExpired
	}
	if session.Locked {
		return ErrSessionLocked
	}
	if time.Now().After(session.ExpiresAt) {
		if err := s.finalizeExpired(ctx, session); err != nil {
			s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Failed to finalize expired session on autosave")
		}
		return ErrSessionExpired
	}

	fields := make([]any, 0, len(answers)*2)
	for k, v := range answers {
		fields = append(fields, k, v)
	}

	job, err := json.Marshal(model.AnswerPersistJob{SessionID: sessionID, Answers: answers})
	if err != nil {
		return fmt.Errorf("marshal answer job: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, config.CacheKey.SessionAnswersKey(sessionID.String()), fields...)
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, job)
	if _, err := pipe.Exec(ctx); err != nil {
		// Redis down: persist synchronously so the student never loses work.
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Answer cache write failed, persisting directly")
		if err := s.sessionRepo.MergeAnswers(ctx, sessionID, answers); err != nil {
			return fmt.Errorf("merge answers: %w", err)
		}
	}

	return nil
}

// Submit finalizes a session, grades it and records the attempt. A repeat
// submit, or a submit racing the expiry worker, returns the session's
// terminal state instead of grading twice.
func (s *SessionService) Submit(ctx context.Context, sessionID uuid.UUID, studentID int, reason model.SubmitReason) (*model.SubmitResult, error) {
	session, err := s.loadOwned(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case model.SessionStatusCompleted, model.SessionStatusExpired:
		return nil, ErrSessionCompleted
	}

	now := time.Now()
	expired := now.After(session.ExpiresAt)

	status := model.SessionStatusCompleted
	if expired && reason != model.SubmitReasonTimeout {
		// Deadline passed before a manual submit arrived. The attempt
		// still counts, graded on what was saved.
		status = model.SessionStatusExpired
	}

	result, err := s.finalize(ctx, session, status, now)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Str("reason", string(reason)).
		Float64("score", result.Score).
		Bool("expired", result.Expired).
		Msg("Session submitted")

	return result, nil
}

// RecordWarning increments the session's proctoring warning counter and
// locks the session when the configured limit is reached. The event itself
// is queued for the warning worker's bulk insert.
func (s *SessionService) RecordWarning(ctx context.Context, sessionID uuid.UUID, studentID int, req *model.WarningRequest) (count int, locked bool, err error) {
	session, err := s.loadOwned(ctx, sessionID, studentID)
	if err != nil {
		return 0, false, err
	}
	if session.Status != model.SessionStatusActive {
		return 0, false, ErrSessionCompleted
	}

	warningsKey := config.CacheKey.SessionWarningsKey(sessionID.String())
	n, err := s.rdb.Incr(ctx, warningsKey).Result()
	if err != nil {
		// Fall back to the persisted counter.
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Warning counter unavailable in cache")
		n = int64(session.WarningCount + 1)
	} else if int(n) <= session.WarningCount {
		// Counter key was lost (restart, eviction): re-seed from PostgreSQL.
		n = int64(session.WarningCount + 1)
		if err := s.rdb.Set(ctx, warningsKey, n, 0).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to re-seed warning counter")
		}
	}

	count = int(n)
	locked = count >= s.cfg.WarningLimit

	if err := s.sessionRepo.SetWarningState(ctx, sessionID, count, locked); err != nil {
		return 0, false, fmt.Errorf("persist warning state: %w", err)
	}

	event, err := json.Marshal(model.WarningEvent{
		SessionID:   sessionID,
		StudentID:   studentID,
		WarningType: req.WarningType,
		Message:     req.Message,
		OccurredAt:  time.Now(),
	})
	if err == nil {
		if err := s.rdb.RPush(ctx, config.WorkerKey.PersistWarningsQueue, event).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to queue warning event")
		}
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Str("warning_type", req.WarningType).
		Int("count", count).
		Bool("locked", locked).
		Msg("Warning recorded")

	return count, locked, nil
}

// IssueUnbanCode generates a short numeric code a proctor reads out to a
// locked-out student. The code expires after the configured TTL and a new
// issue replaces any previous one.
func (s *SessionService) IssueUnbanCode(ctx context.Context, sessionID uuid.UUID) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	code := fmt.Sprintf("%04d", n.Int64())

	key := config.CacheKey.SessionUnbanCodeKey(sessionID.String())
	if err := s.rdb.Set(ctx, key, code, s.cfg.UnbanCodeTTL).Err(); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}

	s.log.Info().Str("session_id", sessionID.String()).Msg("Unban code issued")
	return code, nil
}

// VerifyUnbanCode checks a student-entered code against the issued one.
// On success the session is unlocked, its warning counter reset and the
// code consumed so it cannot be replayed.
func (s *SessionService) VerifyUnbanCode(ctx context.Context, sessionID uuid.UUID, studentID int, code string) error {
	session, err := s.loadOwned(ctx, sessionID, studentID)
	if err != nil {
		return err
	}
	if session.Status != model.SessionStatusActive {
		return ErrSessionCompleted
	}
	if !session.Locked {
		return nil
	}

	key := config.CacheKey.SessionUnbanCodeKey(sessionID.String())
	stored, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNoUnbanCode
		}
		return fmt.Errorf("get code: %w", err)
	}
	if stored != code {
		return ErrInvalidUnbanCode
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, config.CacheKey.SessionWarningsKey(sessionID.String()))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Failed to clear unban keys")
	}

	if err := s.sessionRepo.SetWarningState(ctx, sessionID, 0, false); err != nil {
		return fmt.Errorf("unlock session: %w", err)
	}

	s.log.Info().Str("session_id", sessionID.String()).Msg("Session unlocked")
	return nil
}

// ListAttempts retrieves a student's completed attempts, optionally for one test.
func (s *SessionService) ListAttempts(ctx context.Context, studentID int, testID *uuid.UUID) ([]model.TestAttempt, error) {
	return s.attemptRepo.ListByStudent(ctx, studentID, testID)
}

// ListResults retrieves paginated per-student results of a test for proctors.
func (s *SessionService) ListResults(ctx context.Context, testID uuid.UUID, page, perPage int) ([]repository.SessionResult, int64, error) {
	return s.sessionRepo.ListResultsByTest(ctx, testID, page, perPage)
}

// SweepExpired finalizes up to limit ACTIVE sessions whose deadline has
// passed. Called periodically by the expiry worker so abandoned attempts
// still get graded. Returns how many sessions were finalized.
func (s *SessionService) SweepExpired(ctx context.Context, limit int) (int, error) {
	sessions, err := s.sessionRepo.ListExpiredActive(ctx, time.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired: %w", err)
	}

	finalized := 0
	for i := range sessions {
		if err := s.finalizeExpired(ctx, &sessions[i]); err != nil {
			s.log.Error().Err(err).Str("session_id", sessions[i].ID.String()).Msg("Failed to finalize expired session")
			continue
		}
		finalized++
	}
	return finalized, nil
}

// loadOwned fetches a session and enforces ownership.
func (s *SessionService) loadOwned(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.TestSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// buildState assembles the resume payload, preferring Redis for answers
// (freshest autosaves) and the deadline, with PostgreSQL as fallback.
func (s *SessionService) buildState(ctx context.Context, session *model.TestSession) (*model.SessionState, error) {
	answers := s.collectAnswers(ctx, session)

	return &model.SessionState{
		SessionID:        session.ID,
		TestID:           session.TestID,
		Answers:          answers,
		RemainingSeconds: s.remainingSeconds(ctx, session),
		WarningCount:     session.WarningCount,
		Locked:           session.Locked,
	}, nil
}

// collectAnswers merges the Redis answer hash over the persisted jsonb.
// Entries still in the persist queue only exist in the hash, so the hash wins.
func (s *SessionService) collectAnswers(ctx context.Context, session *model.TestSession) map[string]string {
	answers := make(map[string]string, len(session.Answers))
	for k, v := range session.Answers {
		answers[k] = v
	}

	cached, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(session.ID.String())).Result()
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Answer cache read failed, serving persisted answers")
		return answers
	}
	for k, v := range cached {
		answers[k] = v
	}
	return answers
}

// remainingSeconds reads the deadline from Redis, self-healing the key from
// PostgreSQL when missing.
func (s *SessionService) remainingSeconds(ctx context.Context, session *model.TestSession) int {
	key := config.CacheKey.SessionDeadlineKey(session.ID.String())
	raw, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		if deadline, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil {
			remaining := deadline - time.Now().Unix()
			if remaining < 0 {
				remaining = 0
			}
			return int(remaining)
		}
	} else if errors.Is(err, redis.Nil) {
		s.cacheDeadline(ctx, session)
	}
	return session.RemainingSeconds(time.Now())
}

// cacheDeadline stores the session deadline in Redis, expiring shortly
// after the session itself does.
func (s *SessionService) cacheDeadline(ctx context.Context, session *model.TestSession) {
	ttl := time.Until(session.ExpiresAt) + 5*time.Minute
	if ttl <= 0 {
		return
	}
	key := config.CacheKey.SessionDeadlineKey(session.ID.String())
	if err := s.rdb.Set(ctx, key, session.ExpiresAt.Unix(), ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Failed to cache session deadline")
	}
}

// finalizeExpired grades and closes a session whose deadline passed.
func (s *SessionService) finalizeExpired(ctx context.Context, session *model.TestSession) error {
	_, err := s.finalize(ctx, session, model.SessionStatusExpired, time.Now())
	if errors.Is(err, ErrSessionCompleted) {
		// Someone else finalized it first. Fine either way.
		return nil
	}
	return err
}

// finalize grades the session, moves it to a terminal status and records
// the attempt. The guarded UPDATE in Finalize makes this exactly-once:
// only the caller that flips ACTIVE to terminal creates the attempt.
func (s *SessionService) finalize(ctx context.Context, session *model.TestSession, status model.SessionStatus, now time.Time) (*model.SubmitResult, error) {
	answers := s.collectAnswers(ctx, session)

	questions, err := s.questionRepo.ListByTest(ctx, session.TestID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	score, _ := Score(questions, answers)

	won, err := s.sessionRepo.Finalize(ctx, session.ID, status, score, now)
	if err != nil {
		return nil, fmt.Errorf("finalize session: %w", err)
	}
	if !won {
		return nil, ErrSessionCompleted
	}

	// Answers queued in Redis but not yet drained by the worker are flushed
	// here so the attempt record is complete.
	if err := s.sessionRepo.MergeAnswers(ctx, session.ID, answers); err != nil {
		s.log.Error().Err(err).Str("session_id", session.ID.String()).Msg("Failed to flush answers on finalize")
	}

	timeTaken := int(now.Sub(session.StartedAt).Minutes())
	if timeTaken < 1 {
		timeTaken = 1
	}

	attempt := &model.TestAttempt{
		TestID:           session.TestID,
		StudentID:        session.StudentID,
		Answers:          answers,
		Score:            score,
		TimeTakenMinutes: timeTaken,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}

	s.cleanupSessionKeys(ctx, session.ID)

	expired := status == model.SessionStatusExpired
	message := "Test muvaffaqiyatli topshirildi"
	if expired {
		message = "Vaqt tugadi, test avtomatik topshirildi"
	}

	return &model.SubmitResult{
		Success:   true,
		Score:     score,
		AttemptID: attempt.ID,
		Expired:   expired,
		Message:   message,
	}, nil
}

// cleanupSessionKeys drops the session's transient Redis state.
func (s *SessionService) cleanupSessionKeys(ctx context.Context, sessionID uuid.UUID) {
	id := sessionID.String()
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.SessionAnswersKey(id))
	pipe.Del(ctx, config.CacheKey.SessionDeadlineKey(id))
	pipe.Del(ctx, config.CacheKey.SessionWarningsKey(id))
	pipe.Del(ctx, config.CacheKey.SessionUnbanCodeKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("session_id", id).Msg("Failed to clean up session keys")
	}
}
