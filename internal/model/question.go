package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Question represents a single test question.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	TestID        uuid.UUID       `json:"test_id"`
	QuestionText  string          `json:"question_text"`
	QuestionType  QuestionType    `json:"question_type"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer string          `json:"correct_answer"`
	ImageURL      *string         `json:"image_url,omitempty"`
	OrderNum      int             `json:"order_num"`
}

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
)

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	QuestionType QuestionType    `json:"question_type"`
	Options      json.RawMessage `json:"options"`
	ImageURL     *string         `json:"image_url,omitempty"`
	OrderNum     int             `json:"order_num"`
}

// ForStudent strips grading data from a question.
func (q *Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		QuestionType: q.QuestionType,
		Options:      q.Options,
		ImageURL:     q.ImageURL,
		OrderNum:     q.OrderNum,
	}
}
