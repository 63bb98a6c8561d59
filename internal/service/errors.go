package service

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Review workflow errors. A rejected transition is reported as a false
// result, not an error.
var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrSubjectNotFound  = errors.New("subject not found")
	ErrTagNotFound      = errors.New("tag not found")
	ErrUserNotFound     = errors.New("user not found")
)

// Quiz and attempt errors.
var (
	ErrQuizNotFound    = errors.New("quiz not found")
	ErrQuizEmpty       = errors.New("quiz has no questions")
	ErrUnknownQuestion = errors.New("quiz references a question that does not exist")
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrAttemptClosed   = errors.New("attempt is already finished")
	ErrAttemptExpired  = errors.New("attempt deadline has passed")
	ErrAttemptOpen     = errors.New("attempt is still in progress")
	ErrIndexOutOfRange = errors.New("question index out of range")
	// ErrAttemptCorrupted means the attempt no longer lines up with its quiz,
	// for example a linked question was removed after the attempt started.
	ErrAttemptCorrupted = errors.New("attempt does not match its quiz")
)

// RangeError reports an index outside 0..Total-1. Index == Total means the
// student walked past the last question and should be sent to finish.
type RangeError struct {
	Index int
	Total int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("question index %d out of range [0, %d)", e.Index, e.Total)
}

func (e *RangeError) Unwrap() error { return ErrIndexOutOfRange }

// PastEnd reports whether the index is just past the last question.
func (e *RangeError) PastEnd() bool { return e.Index == e.Total }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isForeignKeyViolation reports a write that referenced a missing row.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
