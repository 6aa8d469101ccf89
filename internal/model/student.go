package model

import "time"

// Student represents a student account.
type Student struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	GradeLevel   string    `json:"grade_level"`
	ClassGroup   string    `json:"class_group"`
	CreatedAt    time.Time `json:"created_at"`
}

// StudentLoginRequest is the payload for student login.
type StudentLoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=6"`
}
