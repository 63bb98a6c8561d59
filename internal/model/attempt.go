package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrOptionMismatch means the selected option does not belong to the question.
var ErrOptionMismatch = errors.New("selected option does not belong to the question")

// Attempt is one student's run through a quiz. EndedAt nil means in progress.
type Attempt struct {
	ID             uuid.UUID  `json:"id"`
	QuizID         int64      `json:"quiz_id"`
	StudentID      int64      `json:"student_id"`
	StartedAt      time.Time  `json:"started_at"`
	EndsAt         *time.Time `json:"ends_at"`
	EndedAt        *time.Time `json:"ended_at"`
	Score          int        `json:"score"`
	TotalCorrect   int        `json:"total_correct"`
	TotalIncorrect int        `json:"total_incorrect"`
	TotalQuestions int        `json:"total_questions"`
	LastIndex      int        `json:"last_index"`
}

// Deadline returns start plus the limit, or nil for untimed quizzes.
func Deadline(start time.Time, limitMinutes *int) *time.Time {
	if limitMinutes == nil || *limitMinutes <= 0 {
		return nil
	}
	end := start.Add(time.Duration(*limitMinutes) * time.Minute)
	return &end
}

// Finished reports whether the attempt has been closed.
func (a *Attempt) Finished() bool {
	return a.EndedAt != nil
}

// Expired reports whether the deadline has passed at now.
func (a *Attempt) Expired(now time.Time) bool {
	return a.EndsAt != nil && !now.Before(*a.EndsAt)
}

// RemainingSeconds is ends_at - now clamped at zero. The second result is
// false for untimed attempts.
func (a *Attempt) RemainingSeconds(now time.Time) (int64, bool) {
	if a.EndsAt == nil {
		return 0, false
	}
	remaining := a.EndsAt.Sub(now)
	if remaining < 0 {
		return 0, true
	}
	return int64(remaining.Seconds()), true
}

// InRange reports whether index addresses a question of this attempt.
func (a *Attempt) InRange(index int) bool {
	return index >= 0 && index < a.TotalQuestions
}

// Finalize closes the attempt and computes the tally. Skipped and wrong
// answers both count as incorrect; one point per correct answer.
func (a *Attempt) Finalize(now time.Time, answers []Answer) {
	correct := 0
	for _, ans := range answers {
		if ans.IsCorrect != nil && *ans.IsCorrect {
			correct++
		}
	}
	if correct > a.TotalQuestions {
		correct = a.TotalQuestions
	}
	ended := now
	a.EndedAt = &ended
	a.TotalCorrect = correct
	a.TotalIncorrect = a.TotalQuestions - correct
	a.Score = correct
}

// Answer is a student's response to one question of an attempt.
type Answer struct {
	ID               int64      `json:"id"`
	AttemptID        uuid.UUID  `json:"attempt_id"`
	QuestionID       int64      `json:"question_id"`
	SelectedOptionID *int64     `json:"selected_option_id"`
	IsCorrect        *bool      `json:"is_correct"`
	IsFlagged        bool       `json:"is_flagged"`
	AnsweredAt       *time.Time `json:"answered_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Grade checks selected against the question's options. A nil selection is a
// skip and stays ungraded.
func Grade(options []QuestionOption, selected *int64) (*bool, error) {
	if selected == nil {
		return nil, nil
	}
	for _, o := range options {
		if o.ID == *selected {
			correct := o.IsCorrect
			return &correct, nil
		}
	}
	return nil, ErrOptionMismatch
}

// ResumeIndex picks where a returning student lands: the first question with
// no submitted answer, or the last visited index when everything is answered.
func ResumeIndex(questionIDs []int64, answers map[int64]Answer, lastIndex int) int {
	for i, qid := range questionIDs {
		ans, ok := answers[qid]
		if !ok || ans.AnsweredAt == nil {
			return i
		}
	}
	if len(questionIDs) == 0 {
		return 0
	}
	if lastIndex < 0 {
		return 0
	}
	if lastIndex >= len(questionIDs) {
		return len(questionIDs) - 1
	}
	return lastIndex
}

// OptionForStudent hides correctness while an attempt is open.
type OptionForStudent struct {
	ID         int64  `json:"id"`
	OptionText string `json:"option_text"`
	Position   int    `json:"position"`
}

// AttemptQuestion is the view returned by Take.
type AttemptQuestion struct {
	AttemptID        uuid.UUID          `json:"attempt_id"`
	Index            int                `json:"index"`
	TotalQuestions   int                `json:"total_questions"`
	QuestionID       int64              `json:"question_id"`
	QuestionText     string             `json:"question_text"`
	Options          []OptionForStudent `json:"options"`
	SelectedOptionID *int64             `json:"selected_option_id"`
	IsFlagged        bool               `json:"is_flagged"`
	RemainingSeconds *int64             `json:"remaining_seconds"`
}

// SubmitResult reports the graded answer and where navigation goes next.
type SubmitResult struct {
	Answer    Answer   `json:"answer"`
	NextIndex int      `json:"next_index"`
	Finished  bool     `json:"finished"`
	Attempt   *Attempt `json:"attempt,omitempty"`
}

// ReviewItem is one question of a finished attempt with its outcome.
type ReviewItem struct {
	Index            int              `json:"index"`
	QuestionID       int64            `json:"question_id"`
	QuestionText     string           `json:"question_text"`
	Options          []QuestionOption `json:"options"`
	SelectedOptionID *int64           `json:"selected_option_id"`
	IsCorrect        bool             `json:"is_correct"`
	Skipped          bool             `json:"skipped"`
	Explanation      string           `json:"explanation,omitempty"`
}

// AttemptReview is the post-finish view of an attempt.
type AttemptReview struct {
	Attempt Attempt      `json:"attempt"`
	Items   []ReviewItem `json:"items"`
}

// SubmitAnswerRequest carries the chosen option; omit it to skip.
type SubmitAnswerRequest struct {
	SelectedOptionID *int64 `json:"selected_option_id" binding:"omitempty,gt=0"`
}

// TimerSnapshot is what the timer stream pushes to the client each tick.
type TimerSnapshot struct {
	AttemptID        uuid.UUID  `json:"attempt_id"`
	EndsAt           *time.Time `json:"ends_at"`
	RemainingSeconds *int64     `json:"remaining_seconds"`
	Finished         bool       `json:"finished"`
	ServerTime       time.Time  `json:"server_time"`
}
