package model

import (
	"time"

	"github.com/google/uuid"
)

// Difficulty enumerates test difficulty levels.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Test represents a multiple-choice test authored by a teacher.
type Test struct {
	ID               uuid.UUID  `json:"id"`
	TeacherID        int        `json:"teacher_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Subject          string     `json:"subject"`
	Difficulty       Difficulty `json:"difficulty"`
	TimeLimitMinutes int        `json:"time_limit"`
	TotalQuestions   int        `json:"total_questions"`
	// TargetGrades limits visibility to specific grade levels.
	// Empty means the test is available to every grade.
	TargetGrades []string  `json:"target_grades"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AvailableFor reports whether the test targets the given grade level.
func (t *Test) AvailableFor(gradeLevel string) bool {
	if len(t.TargetGrades) == 0 {
		return true
	}
	for _, g := range t.TargetGrades {
		if g == gradeLevel {
			return true
		}
	}
	return false
}
