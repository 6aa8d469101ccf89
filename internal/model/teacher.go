package model

import "time"

// Teacher represents a teacher (proctor / test author) account.
type Teacher struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Subject      string    `json:"subject"`
	CreatedAt    time.Time `json:"created_at"`
}

// TeacherLoginRequest is the payload for teacher login.
type TeacherLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}
