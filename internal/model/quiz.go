package model

import "time"

// QuizMode describes how a quiz's questions were chosen. Question order is
// always the stored quiz_questions order regardless of mode.
type QuizMode string

const (
	QuizModeBySubject QuizMode = "by_subject"
	QuizModeMixedBag  QuizMode = "mixed_bag"
	QuizModeAdaptive  QuizMode = "adaptive"
)

// Valid reports whether m is a known mode.
func (m QuizMode) Valid() bool {
	switch m {
	case QuizModeBySubject, QuizModeMixedBag, QuizModeAdaptive:
		return true
	}
	return false
}

// Quiz is an ordered set of questions, optionally time limited.
type Quiz struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	CreatedBy        int64     `json:"created_by"`
	Mode             QuizMode  `json:"mode"`
	SubjectID        *int64    `json:"subject_id"`
	TimeLimitMinutes *int      `json:"time_limit_minutes"`
	TotalQuestions   int       `json:"total_questions"`
	CreatedAt        time.Time `json:"created_at"`
	QuestionIDs      []int64   `json:"question_ids,omitempty"`
}

// CreateQuizRequest is the payload for defining a quiz. QuestionIDs order
// becomes the attempt order.
type CreateQuizRequest struct {
	Title            string  `json:"title" binding:"required,min=3,max=255"`
	Mode             string  `json:"mode" binding:"required,oneof=by_subject mixed_bag adaptive"`
	SubjectID        *int64  `json:"subject_id" binding:"omitempty,gt=0"`
	TimeLimitMinutes *int    `json:"time_limit_minutes" binding:"omitempty,min=1,max=600"`
	QuestionIDs      []int64 `json:"question_ids" binding:"required,min=1,unique,dive,gt=0"`
}
