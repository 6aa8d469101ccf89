package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sinovhub/sinov-backend/internal/config"
	"github.com/sinovhub/sinov-backend/internal/model"
	"github.com/sinovhub/sinov-backend/internal/repository"
)

// TakeState represents the concrete state of a test in the student catalog.
type TakeState string

const (
	TakeStateAvailable  TakeState = "AVAILABLE"
	TakeStateInProgress TakeState = "IN_PROGRESS"
	TakeStateCompleted  TakeState = "COMPLETED"
)

// CatalogEntry represents a test as displayed in the student catalog,
// overlaid with the student's own progress so the UI can badge tests as
// resumable or already taken.
type CatalogEntry struct {
	model.Test
	TakeState       TakeState  `json:"take_state"`
	ActiveSessionID *uuid.UUID `json:"active_session_id,omitempty"`
	FinalScore      *float64   `json:"final_score,omitempty"`
}

// CatalogService serves the read-only test catalog.
type CatalogService struct {
	testRepo     *repository.TestRepository
	questionRepo *repository.QuestionRepository
	sessionRepo  *repository.SessionRepository
	attemptRepo  *repository.AttemptRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(
	testRepo *repository.TestRepository,
	questionRepo *repository.QuestionRepository,
	sessionRepo *repository.SessionRepository,
	attemptRepo *repository.AttemptRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *CatalogService {
	return &CatalogService{
		testRepo:     testRepo,
		questionRepo: questionRepo,
		sessionRepo:  sessionRepo,
		attemptRepo:  attemptRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "catalog_service").Logger(),
	}
}

// ListForStudent returns active tests visible to the student's grade,
// each overlaid with the student's session/attempt state.
func (s *CatalogService) ListForStudent(ctx context.Context, studentID int, gradeLevel string) ([]CatalogEntry, error) {
	tests, err := s.testRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}

	sessions, err := s.sessionRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessionMap := make(map[uuid.UUID]*model.TestSession, len(sessions))
	for i := range sessions {
		sess := &sessions[i]
		// Prefer the ACTIVE session when both an old completed one and a
		// resumable one exist for the same test.
		if existing, ok := sessionMap[sess.TestID]; !ok || existing.Status != model.SessionStatusActive {
			sessionMap[sess.TestID] = sess
		}
	}

	attempts, err := s.attemptRepo.ListByStudent(ctx, studentID, nil)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	taken := make(map[uuid.UUID]*model.TestAttempt, len(attempts))
	for i := range attempts {
		taken[attempts[i].TestID] = &attempts[i]
	}

	var catalog []CatalogEntry
	for _, t := range tests {
		if !t.AvailableFor(gradeLevel) {
			continue
		}

		entry := CatalogEntry{Test: t, TakeState: TakeStateAvailable}

		if attempt, ok := taken[t.ID]; ok {
			entry.TakeState = TakeStateCompleted
			entry.FinalScore = &attempt.Score
		} else if sess, ok := sessionMap[t.ID]; ok && sess.Status == model.SessionStatusActive {
			entry.TakeState = TakeStateInProgress
			id := sess.ID
			entry.ActiveSessionID = &id
		}

		catalog = append(catalog, entry)
	}

	return catalog, nil
}

// GetTest returns test metadata if the test is active and visible to the grade.
func (s *CatalogService) GetTest(ctx context.Context, testID uuid.UUID, gradeLevel string) (*model.Test, error) {
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
	return test, nil
}

// QuestionsForStudent returns the ordered, answer-stripped question list.
// Served from the Redis payload cache with a PostgreSQL fallback that
// self-heals the cache.
func (s *CatalogService) QuestionsForStudent(ctx context.Context, testID uuid.UUID) ([]model.QuestionForStudent, error) {
	cacheKey := config.CacheKey.TestQuestionsKey(testID.String())

	cached, err := s.rdb.Get(ctx, cacheKey).Result()
	if err == nil {
		var questions []model.QuestionForStudent
		if jsonErr := json.Unmarshal([]byte(cached), &questions); jsonErr == nil {
			return questions, nil
		}
		// Corrupt cache entry: fall through to the database and rewrite it.
		s.log.Warn().Str("test_id", testID.String()).Msg("Dropping corrupt question cache entry")
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("question cache: %w", err)
	}

	questions, err := s.loadQuestions(ctx, testID)
	if err != nil {
		return nil, err
	}

	if raw, jsonErr := json.Marshal(questions); jsonErr == nil {
		if err := s.rdb.Set(ctx, cacheKey, raw, 0).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache questions")
		}
	}

	return questions, nil
}

// PrewarmCaches loads every active test's questions and time limit into
// Redis before the server accepts traffic, avoiding lazy-load races
// under a thundering herd at test start.
func (s *CatalogService) PrewarmCaches(ctx context.Context) error {
	tests, err := s.testRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list tests: %w", err)
	}

	for _, t := range tests {
		questions, err := s.loadQuestions(ctx, t.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("test_id", t.ID.String()).Msg("Prewarm: load questions failed")
			continue
		}
		raw, err := json.Marshal(questions)
		if err != nil {
			continue
		}
		pipe := s.rdb.Pipeline()
		pipe.Set(ctx, config.CacheKey.TestQuestionsKey(t.ID.String()), raw, 0)
		pipe.Set(ctx, config.CacheKey.TestTimeLimitKey(t.ID.String()), strconv.Itoa(t.TimeLimitMinutes), 0)
		if _, err := pipe.Exec(ctx); err != nil {
			s.log.Warn().Err(err).Str("test_id", t.ID.String()).Msg("Prewarm: cache write failed")
		}
	}

	s.log.Info().Int("tests", len(tests)).Msg("Question caches prewarmed")
	return nil
}

func (s *CatalogService) loadQuestions(ctx context.Context, testID uuid.UUID) ([]model.QuestionForStudent, error) {
	full, err := s.questionRepo.ListByTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	questions := make([]model.QuestionForStudent, 0, len(full))
	for i := range full {
		questions = append(questions, full[i].ForStudent())
	}
	return questions, nil
}
