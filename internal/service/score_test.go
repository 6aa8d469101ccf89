package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sinovhub/sinov-backend/internal/model"
)

func question(id uuid.UUID, correct string) model.Question {
	return model.Question{
		ID:            id,
		QuestionText:  "q",
		QuestionType:  model.QuestionTypeShortAnswer,
		CorrectAnswer: correct,
	}
}

func TestScore(t *testing.T) {
	q1 := uuid.New()
	q2 := uuid.New()
	q3 := uuid.New()
	questions := []model.Question{
		question(q1, "4"),
		question(q2, "Toshkent"),
		question(q3, "true"),
	}

	tests := []struct {
		name        string
		answers     map[string]string
		wantScore   float64
		wantCorrect int
	}{
		{
			name:        "all correct",
			answers:     map[string]string{q1.String(): "4", q2.String(): "Toshkent", q3.String(): "true"},
			wantScore:   100,
			wantCorrect: 3,
		},
		{
			name:        "case insensitive",
			answers:     map[string]string{q1.String(): "4", q2.String(): "TOSHKENT", q3.String(): "True"},
			wantScore:   100,
			wantCorrect: 3,
		},
		{
			name:        "whitespace trimmed",
			answers:     map[string]string{q2.String(): "  toshkent  "},
			wantScore:   33.33,
			wantCorrect: 1,
		},
		{
			name:        "wrong answers score zero",
			answers:     map[string]string{q1.String(): "5", q2.String(): "Samarqand"},
			wantScore:   0,
			wantCorrect: 0,
		},
		{
			name:        "unanswered questions count against",
			answers:     map[string]string{q1.String(): "4", q2.String(): "Toshkent"},
			wantScore:   66.67,
			wantCorrect: 2,
		},
		{
			name:        "unknown question ids ignored",
			answers:     map[string]string{uuid.NewString(): "4"},
			wantScore:   0,
			wantCorrect: 0,
		},
		{
			name:        "no answers",
			answers:     map[string]string{},
			wantScore:   0,
			wantCorrect: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			score, correct := Score(questions, tc.answers)
			if score != tc.wantScore {
				t.Errorf("score = %v, want %v", score, tc.wantScore)
			}
			if correct != tc.wantCorrect {
				t.Errorf("correct = %d, want %d", correct, tc.wantCorrect)
			}
		})
	}
}

func TestScoreEmptyQuestionList(t *testing.T) {
	score, correct := Score(nil, map[string]string{"x": "y"})
	if score != 0 || correct != 0 {
		t.Fatalf("Score(nil) = (%v, %d), want (0, 0)", score, correct)
	}
}
