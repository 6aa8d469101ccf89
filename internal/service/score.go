package service

import (
	"math"
	"strings"

	"github.com/sinovhub/sinov-backend/internal/model"
)

// Score grades a set of answers against the question list. Comparison is
// case-insensitive and whitespace-trimmed so short answers like " Paris "
// still count. Returns the percentage score (two decimals) and the number
// of correct answers.
func Score(questions []model.Question, answers map[string]string) (float64, int) {
	if len(questions) == 0 {
		return 0, 0
	}

	correct := 0
	for i := range questions {
		q := &questions[i]
		given, ok := answers[q.ID.String()]
		if !ok {
			continue
		}
		if answersMatch(q.CorrectAnswer, given) {
			correct++
		}
	}

	score := float64(correct) / float64(len(questions)) * 100
	return math.Round(score*100) / 100, correct
}

func answersMatch(expected, given string) bool {
	return strings.EqualFold(strings.TrimSpace(expected), strings.TrimSpace(given))
}
