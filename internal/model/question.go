package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// QuestionState is the review lifecycle position of a question.
type QuestionState string

const (
	StateInitial     QuestionState = "initial"
	StateUnderReview QuestionState = "under_review"
	StateDone        QuestionState = "done"
)

// Valid reports whether s is one of the three review states.
func (s QuestionState) Valid() bool {
	switch s {
	case StateInitial, StateUnderReview, StateDone:
		return true
	}
	return false
}

// UnassignNote is recorded on every unassign history entry.
const UnassignNote = "Question unassigned"

// Option count bounds for a question.
const (
	MinOptions = 1
	MaxOptions = 5
)

// Question authoring errors.
var (
	ErrOptionCount        = fmt.Errorf("a question needs between %d and %d options", MinOptions, MaxOptions)
	ErrCorrectOptionCount = errors.New("exactly one option must be marked correct")
	ErrEmptyOptionText    = errors.New("option text must not be empty")
	ErrExplanationKey     = errors.New("explanation keys must be correct, wrong or option1..option5")
)

var optionKeyPattern = regexp.MustCompile(`^option[1-5]$`)

// Explanations holds the text shown after answering, keyed by
// "correct", "wrong" or "option{n}".
type Explanations map[string]string

// Validate rejects keys outside the known explanation slots.
func (e Explanations) Validate() error {
	for k := range e {
		if k == "correct" || k == "wrong" || optionKeyPattern.MatchString(k) {
			continue
		}
		return fmt.Errorf("%w: %q", ErrExplanationKey, k)
	}
	return nil
}

// For picks the explanation for an outcome: the option-specific text for the
// chosen position when present, otherwise the generic correct/wrong text.
// Position 0 means nothing was selected.
func (e Explanations) For(position int, correct bool) string {
	if position > 0 {
		if text, ok := e[fmt.Sprintf("option%d", position)]; ok && text != "" {
			return text
		}
	}
	if correct {
		return e["correct"]
	}
	return e["wrong"]
}

// Question is a multiple-choice item moving through the review workflow.
type Question struct {
	ID           int64            `json:"id"`
	SubjectID    int64            `json:"subject_id"`
	QuestionText string           `json:"question_text"`
	Explanations Explanations     `json:"explanations"`
	CreatedBy    int64            `json:"created_by"`
	State        QuestionState    `json:"state"`
	AssignedTo   *int64           `json:"assigned_to"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Options      []QuestionOption `json:"options,omitempty"`
	TagIDs       []int64          `json:"tag_ids,omitempty"`
}

// QuestionOption is one selectable answer.
type QuestionOption struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	OptionText string `json:"option_text"`
	IsCorrect  bool   `json:"is_correct"`
	Position   int    `json:"position"`
}

// QuestionStateHistory is one append-only audit row.
type QuestionStateHistory struct {
	ID         int64         `json:"id"`
	QuestionID int64         `json:"question_id"`
	FromState  QuestionState `json:"from_state"`
	ToState    QuestionState `json:"to_state"`
	ChangedBy  int64         `json:"changed_by"`
	Notes      *string       `json:"notes"`
	CreatedAt  time.Time     `json:"created_at"`
}

// AssignTo hands an initial question to a reviewer. It reports false and
// leaves q untouched unless q is in the initial state.
func (q *Question) AssignTo(userID, actor int64) (QuestionStateHistory, bool) {
	if q.State != StateInitial {
		return QuestionStateHistory{}, false
	}
	h := q.moveTo(StateUnderReview, actor, nil)
	assignee := userID
	q.AssignedTo = &assignee
	return h, true
}

// CanBeUnassigned reports whether userID may release the question: it must be
// under review and assigned either to userID or the caller must be an admin.
func (q *Question) CanBeUnassigned(userID int64, isAdmin bool) bool {
	if q.AssignedTo == nil || q.State != StateUnderReview {
		return false
	}
	return *q.AssignedTo == userID || isAdmin
}

// Unassign returns the question to the initial state. It reports false when
// nobody is assigned.
func (q *Question) Unassign(actor int64) (QuestionStateHistory, bool) {
	if q.AssignedTo == nil {
		return QuestionStateHistory{}, false
	}
	note := UnassignNote
	h := q.moveTo(StateInitial, actor, &note)
	q.AssignedTo = nil
	return h, true
}

// ChangeState is the manual admin override. Any valid state is reachable from
// any state, the current one included; only membership in the state set is
// checked. Leaving under_review drops the assignee so assigned_to stays
// meaningful.
func (q *Question) ChangeState(to QuestionState, actor int64, notes string) (QuestionStateHistory, bool) {
	if !to.Valid() {
		return QuestionStateHistory{}, false
	}
	var n *string
	if trimmed := strings.TrimSpace(notes); trimmed != "" {
		n = &trimmed
	}
	h := q.moveTo(to, actor, n)
	if to != StateUnderReview {
		q.AssignedTo = nil
	}
	return h, true
}

func (q *Question) moveTo(to QuestionState, actor int64, notes *string) QuestionStateHistory {
	h := QuestionStateHistory{
		QuestionID: q.ID,
		FromState:  q.State,
		ToState:    to,
		ChangedBy:  actor,
		Notes:      notes,
	}
	q.State = to
	return h
}

// CorrectOption returns the option flagged correct, if any.
func (q *Question) CorrectOption() (QuestionOption, bool) {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o, true
		}
	}
	return QuestionOption{}, false
}

// ValidateOptions enforces 1..5 non-empty options with exactly one correct.
func ValidateOptions(options []QuestionOption) error {
	if len(options) < MinOptions || len(options) > MaxOptions {
		return ErrOptionCount
	}
	correct := 0
	for _, o := range options {
		if strings.TrimSpace(o.OptionText) == "" {
			return ErrEmptyOptionText
		}
		if o.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return ErrCorrectOptionCount
	}
	return nil
}

// OptionInput is one option in a create request.
type OptionInput struct {
	OptionText string `json:"option_text" binding:"required,min=1,max=2000"`
	IsCorrect  bool   `json:"is_correct"`
}

// CreateQuestionRequest is the payload for authoring a question.
type CreateQuestionRequest struct {
	SubjectID    int64         `json:"subject_id" binding:"required,gt=0"`
	QuestionText string        `json:"question_text" binding:"required,min=1,max=5000"`
	Options      []OptionInput `json:"options" binding:"required,min=1,max=5,dive"`
	Explanations Explanations  `json:"explanations" binding:"omitempty,explanation_keys"`
	TagIDs       []int64       `json:"tag_ids" binding:"omitempty,dive,gt=0"`
}

// AssignRequest names the reviewer. Zero means the caller.
type AssignRequest struct {
	UserID int64 `json:"user_id" binding:"omitempty,gt=0"`
}

// ChangeStateRequest is the admin override payload. State is validated by
// the state machine, not the binder, so unknown states report a plain failure.
type ChangeStateRequest struct {
	State string `json:"state" binding:"required,max=50"`
	Notes string `json:"notes" binding:"omitempty,max=2000"`
}

// ReviewQueueFilter narrows the review listing.
type ReviewQueueFilter struct {
	State      *QuestionState
	AssignedTo *int64
	SubjectID  *int64
	Page       int
	PerPage    int
}

// ReviewQueueQuery is the query string of the review queue listing.
type ReviewQueueQuery struct {
	State      string `form:"state" binding:"omitempty,oneof=initial under_review done"`
	AssignedTo int64  `form:"assigned_to" binding:"omitempty,gt=0"`
	Mine       bool   `form:"mine"`
	SubjectID  int64  `form:"subject_id" binding:"omitempty,gt=0"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PerPage    int    `form:"per_page" binding:"omitempty,min=1,max=100"`
}

// Filter converts the query into a repository filter. Mine narrows to the
// caller's own assignments.
func (q ReviewQueueQuery) Filter(callerID int64) ReviewQueueFilter {
	f := ReviewQueueFilter{Page: q.Page, PerPage: q.PerPage}
	if q.State != "" {
		s := QuestionState(q.State)
		f.State = &s
	}
	switch {
	case q.Mine:
		f.AssignedTo = &callerID
	case q.AssignedTo > 0:
		id := q.AssignedTo
		f.AssignedTo = &id
	}
	if q.SubjectID > 0 {
		id := q.SubjectID
		f.SubjectID = &id
	}
	return f
}
