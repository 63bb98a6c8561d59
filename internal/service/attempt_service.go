package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quizroom/quizroom-backend/internal/database"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/repository"
	"github.com/rs/zerolog"
)

// DeadlineTracker mirrors open timed attempts into the expiry index.
type DeadlineTracker interface {
	Track(ctx context.Context, attemptID uuid.UUID, endsAt time.Time) error
	Forget(ctx context.Context, attemptID uuid.UUID) error
}

// AttemptService runs quiz attempts: start, navigate, answer, finish.
// Deadlines are enforced here; a request arriving after ends_at closes the
// attempt and fails with ErrAttemptExpired.
type AttemptService struct {
	db        database.Pool
	deadlines DeadlineTracker
	now       func() time.Time
	log       zerolog.Logger
}

// NewAttemptService creates a new AttemptService. deadlines may be nil.
func NewAttemptService(db database.Pool, deadlines DeadlineTracker, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		db:        db,
		deadlines: deadlines,
		now:       time.Now,
		log:       log.With().Str("component", "attempt_service").Logger(),
	}
}

// WithClock replaces the time source.
func (s *AttemptService) WithClock(now func() time.Time) *AttemptService {
	s.now = now
	return s
}

// clock is truncated to what timestamptz stores so returned structs match
// what a later read gives back.
func (s *AttemptService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Start opens an attempt for the student. A still-running attempt on the same
// quiz is handed back instead of opening a second one; one whose deadline has
// passed is closed first.
func (s *AttemptService) Start(ctx context.Context, quizID, studentID int64) (*model.Attempt, error) {
	a, err := s.start(ctx, quizID, studentID)
	if isUniqueViolation(err) {
		// A concurrent Start won the insert; the retry finds its attempt.
		a, err = s.start(ctx, quizID, studentID)
	}
	return a, err
}

func (s *AttemptService) start(ctx context.Context, quizID, studentID int64) (*model.Attempt, error) {
	now := s.clock()
	var (
		attempt *model.Attempt
		expired *model.Attempt
		created bool
	)

	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		quizzes := repository.NewQuizRepository(tx)
		attempts := repository.NewAttemptRepository(tx)

		quiz, err := quizzes.GetByID(ctx, quizID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrQuizNotFound
			}
			return fmt.Errorf("get quiz: %w", err)
		}
		qids, err := quizzes.QuestionIDs(ctx, quizID)
		if err != nil {
			return fmt.Errorf("get quiz questions: %w", err)
		}
		if len(qids) == 0 {
			return ErrQuizEmpty
		}

		open, err := attempts.FindOpen(ctx, quizID, studentID)
		switch {
		case err == nil:
			if !open.Expired(now) {
				attempt = open
				return nil
			}
			if err := s.finalize(ctx, attempts, open, now); err != nil {
				return err
			}
			expired = open
		case errors.Is(err, pgx.ErrNoRows):
		default:
			return fmt.Errorf("find open attempt: %w", err)
		}

		attempt = &model.Attempt{
			ID:             uuid.New(),
			QuizID:         quizID,
			StudentID:      studentID,
			StartedAt:      now,
			EndsAt:         model.Deadline(now, quiz.TimeLimitMinutes),
			TotalQuestions: len(qids),
		}
		if err := attempts.Create(ctx, attempt); err != nil {
			return fmt.Errorf("create attempt: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expired != nil {
		s.forget(ctx, expired.ID)
		s.log.Info().Str("attempt_id", expired.ID.String()).Msg("Expired attempt closed on restart")
	}
	if created {
		if attempt.EndsAt != nil && s.deadlines != nil {
			if err := s.deadlines.Track(ctx, attempt.ID, *attempt.EndsAt); err != nil {
				// The database sweep still catches it.
				s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Failed to index attempt deadline")
			}
		}
		s.log.Info().
			Str("attempt_id", attempt.ID.String()).
			Int64("quiz_id", quizID).
			Int64("student_id", studentID).
			Int("total_questions", attempt.TotalQuestions).
			Msg("Attempt started")
	}
	return attempt, nil
}

// Take returns the question at index along with the student's saved answer
// state and the remaining time.
func (s *AttemptService) Take(ctx context.Context, attemptID uuid.UUID, studentID int64, index int) (*model.AttemptQuestion, error) {
	now := s.clock()
	attempts := repository.NewAttemptRepository(s.db)

	a, err := s.owned(ctx, attempts, attemptID, studentID, false)
	if err != nil {
		return nil, err
	}
	if err := s.ensureOpen(ctx, a, now); err != nil {
		return nil, err
	}
	if !a.InRange(index) {
		return nil, &RangeError{Index: index, Total: a.TotalQuestions}
	}

	qid, err := questionAt(ctx, s.db, a, index)
	if err != nil {
		return nil, err
	}
	questions := repository.NewQuestionRepository(s.db)
	q, err := questions.GetByID(ctx, qid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptCorrupted
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	options, err := questions.Options(ctx, qid)
	if err != nil {
		return nil, fmt.Errorf("get options: %w", err)
	}
	answers, err := attempts.Answers(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}
	if err := attempts.SetLastIndex(ctx, a.ID, index); err != nil {
		return nil, fmt.Errorf("record position: %w", err)
	}

	view := &model.AttemptQuestion{
		AttemptID:      a.ID,
		Index:          index,
		TotalQuestions: a.TotalQuestions,
		QuestionID:     q.ID,
		QuestionText:   q.QuestionText,
		Options:        make([]model.OptionForStudent, 0, len(options)),
	}
	for _, o := range options {
		view.Options = append(view.Options, model.OptionForStudent{ID: o.ID, OptionText: o.OptionText, Position: o.Position})
	}
	if ans, ok := answers[qid]; ok {
		view.SelectedOptionID = ans.SelectedOptionID
		view.IsFlagged = ans.IsFlagged
	}
	if remaining, ok := a.RemainingSeconds(now); ok {
		view.RemainingSeconds = &remaining
	}
	return view, nil
}

// SubmitSingle records the answer for index, graded against the question's
// options. A nil selection is a skip. Submitting the last question finishes
// the attempt.
func (s *AttemptService) SubmitSingle(ctx context.Context, attemptID uuid.UUID, studentID int64, index int, selected *int64) (*model.SubmitResult, error) {
	now := s.clock()
	var (
		result  *model.SubmitResult
		expired bool
	)

	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		attempts := repository.NewAttemptRepository(tx)

		a, err := s.owned(ctx, attempts, attemptID, studentID, true)
		if err != nil {
			return err
		}
		if a.Finished() {
			return ErrAttemptClosed
		}
		if a.Expired(now) {
			expired = true
			return s.finalize(ctx, attempts, a, now)
		}
		if !a.InRange(index) {
			return &RangeError{Index: index, Total: a.TotalQuestions}
		}

		qid, err := questionAt(ctx, tx, a, index)
		if err != nil {
			return err
		}
		options, err := repository.NewQuestionRepository(tx).Options(ctx, qid)
		if err != nil {
			return fmt.Errorf("get options: %w", err)
		}
		if len(options) == 0 {
			return ErrAttemptCorrupted
		}
		correct, err := model.Grade(options, selected)
		if err != nil {
			return err
		}

		ans := &model.Answer{AttemptID: a.ID, QuestionID: qid, SelectedOptionID: selected, IsCorrect: correct}
		if err := attempts.UpsertAnswer(ctx, ans); err != nil {
			return fmt.Errorf("save answer: %w", err)
		}

		result = &model.SubmitResult{Answer: *ans, NextIndex: index + 1}
		if result.NextIndex >= a.TotalQuestions {
			if err := s.finalize(ctx, attempts, a, now); err != nil {
				return err
			}
			result.Finished = true
			result.Attempt = a
			return nil
		}
		return attempts.SetLastIndex(ctx, a.ID, result.NextIndex)
	})
	if err != nil {
		return nil, err
	}

	if expired {
		s.forget(ctx, attemptID)
		s.log.Info().Str("attempt_id", attemptID.String()).Msg("Late submission rejected, attempt closed")
		return nil, ErrAttemptExpired
	}
	if result.Finished {
		s.forget(ctx, attemptID)
		s.logFinished(result.Attempt, "last question submitted")
	}
	return result, nil
}

// ToggleFlag flips the review flag on the question at index.
func (s *AttemptService) ToggleFlag(ctx context.Context, attemptID uuid.UUID, studentID int64, index int) (*model.Answer, error) {
	now := s.clock()
	var (
		ans     *model.Answer
		expired bool
	)

	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		attempts := repository.NewAttemptRepository(tx)

		a, err := s.owned(ctx, attempts, attemptID, studentID, true)
		if err != nil {
			return err
		}
		if a.Finished() {
			return ErrAttemptClosed
		}
		if a.Expired(now) {
			expired = true
			return s.finalize(ctx, attempts, a, now)
		}
		if !a.InRange(index) {
			return &RangeError{Index: index, Total: a.TotalQuestions}
		}

		qid, err := questionAt(ctx, tx, a, index)
		if err != nil {
			return err
		}
		ans, err = attempts.ToggleFlag(ctx, a.ID, qid)
		if err != nil {
			return fmt.Errorf("toggle flag: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		s.forget(ctx, attemptID)
		return nil, ErrAttemptExpired
	}
	return ans, nil
}

// Resume returns the index a returning student should land on.
func (s *AttemptService) Resume(ctx context.Context, attemptID uuid.UUID, studentID int64) (int, error) {
	now := s.clock()
	attempts := repository.NewAttemptRepository(s.db)

	a, err := s.owned(ctx, attempts, attemptID, studentID, false)
	if err != nil {
		return 0, err
	}
	if err := s.ensureOpen(ctx, a, now); err != nil {
		return 0, err
	}

	qids, err := repository.NewQuizRepository(s.db).QuestionIDs(ctx, a.QuizID)
	if err != nil {
		return 0, fmt.Errorf("get quiz questions: %w", err)
	}
	if len(qids) > a.TotalQuestions {
		qids = qids[:a.TotalQuestions]
	}
	answers, err := attempts.Answers(ctx, a.ID)
	if err != nil {
		return 0, fmt.Errorf("get answers: %w", err)
	}
	return model.ResumeIndex(qids, answers, a.LastIndex), nil
}

// Finish closes the attempt and computes its score. Finishing twice fails
// with ErrAttemptClosed.
func (s *AttemptService) Finish(ctx context.Context, attemptID uuid.UUID, studentID int64) (*model.Attempt, error) {
	now := s.clock()
	var attempt *model.Attempt

	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		attempts := repository.NewAttemptRepository(tx)

		a, err := s.owned(ctx, attempts, attemptID, studentID, true)
		if err != nil {
			return err
		}
		if a.Finished() {
			return ErrAttemptClosed
		}
		if err := s.finalize(ctx, attempts, a, now); err != nil {
			return err
		}
		attempt = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.forget(ctx, attemptID)
	s.logFinished(attempt, "finished by student")
	return attempt, nil
}

// ForceFinish closes an attempt whose deadline has passed. It reports false
// when the attempt is already closed or still within its time limit.
func (s *AttemptService) ForceFinish(ctx context.Context, attemptID uuid.UUID) (bool, error) {
	now := s.clock()
	var attempt *model.Attempt

	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		attempts := repository.NewAttemptRepository(tx)

		a, err := attempts.GetForUpdate(ctx, attemptID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("lock attempt: %w", err)
		}
		if a.Finished() || !a.Expired(now) {
			return nil
		}
		if err := s.finalize(ctx, attempts, a, now); err != nil {
			return err
		}
		attempt = a
		return nil
	})
	if err != nil {
		return false, err
	}
	if attempt == nil {
		return false, nil
	}

	s.forget(ctx, attemptID)
	s.logFinished(attempt, "deadline passed")
	return true, nil
}

// ForceFinishExpired closes up to limit attempts whose deadline is at or
// before now and returns how many it closed.
func (s *AttemptService) ForceFinishExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	ids, err := repository.NewAttemptRepository(s.db).ListExpiredOpen(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("list expired attempts: %w", err)
	}

	closed := 0
	for _, id := range ids {
		ok, err := s.ForceFinish(ctx, id)
		if err != nil {
			if errors.Is(err, ErrAttemptNotFound) {
				continue
			}
			return closed, err
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}

// Timer reports the remaining time of an attempt, closing it when the
// deadline has passed.
func (s *AttemptService) Timer(ctx context.Context, attemptID uuid.UUID, studentID int64) (*model.TimerSnapshot, error) {
	now := s.clock()
	a, err := s.owned(ctx, repository.NewAttemptRepository(s.db), attemptID, studentID, false)
	if err != nil {
		return nil, err
	}

	snap := &model.TimerSnapshot{
		AttemptID:  a.ID,
		EndsAt:     a.EndsAt,
		Finished:   a.Finished(),
		ServerTime: now,
	}
	if remaining, ok := a.RemainingSeconds(now); ok {
		snap.RemainingSeconds = &remaining
	}
	if !snap.Finished && a.Expired(now) {
		if _, err := s.ForceFinish(ctx, a.ID); err != nil {
			return nil, err
		}
		snap.Finished = true
	}
	return snap, nil
}

// Review shows a finished attempt question by question with the correct
// option and explanation.
func (s *AttemptService) Review(ctx context.Context, attemptID uuid.UUID, studentID int64) (*model.AttemptReview, error) {
	attempts := repository.NewAttemptRepository(s.db)

	a, err := s.owned(ctx, attempts, attemptID, studentID, false)
	if err != nil {
		return nil, err
	}
	if !a.Finished() {
		return nil, ErrAttemptOpen
	}

	qids, err := repository.NewQuizRepository(s.db).QuestionIDs(ctx, a.QuizID)
	if err != nil {
		return nil, fmt.Errorf("get quiz questions: %w", err)
	}
	questions := repository.NewQuestionRepository(s.db)
	byID, err := questions.ListByIDs(ctx, qids)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	options, err := questions.OptionsFor(ctx, qids)
	if err != nil {
		return nil, fmt.Errorf("get options: %w", err)
	}
	answers, err := attempts.Answers(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}

	review := &model.AttemptReview{Attempt: *a, Items: make([]model.ReviewItem, 0, len(qids))}
	for i, qid := range qids {
		q, ok := byID[qid]
		if !ok {
			continue
		}
		item := model.ReviewItem{
			Index:        i,
			QuestionID:   qid,
			QuestionText: q.QuestionText,
			Options:      options[qid],
			Skipped:      true,
		}
		position := 0
		if ans, ok := answers[qid]; ok && ans.SelectedOptionID != nil {
			item.SelectedOptionID = ans.SelectedOptionID
			item.Skipped = false
			item.IsCorrect = ans.IsCorrect != nil && *ans.IsCorrect
			for _, o := range item.Options {
				if o.ID == *ans.SelectedOptionID {
					position = o.Position
				}
			}
		}
		item.Explanation = q.Explanations.For(position, item.IsCorrect)
		review.Items = append(review.Items, item)
	}
	return review, nil
}

// ListAttempts returns the student's attempts newest first.
func (s *AttemptService) ListAttempts(ctx context.Context, studentID int64) ([]model.Attempt, error) {
	return repository.NewAttemptRepository(s.db).ListByStudent(ctx, studentID)
}

// owned loads the attempt and hides it from anyone but its student.
func (s *AttemptService) owned(ctx context.Context, attempts *repository.AttemptRepository, id uuid.UUID, studentID int64, lock bool) (*model.Attempt, error) {
	var (
		a   *model.Attempt
		err error
	)
	if lock {
		a, err = attempts.GetForUpdate(ctx, id)
	} else {
		a, err = attempts.GetByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if a.StudentID != studentID {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

// ensureOpen rejects closed attempts and closes ones past their deadline.
func (s *AttemptService) ensureOpen(ctx context.Context, a *model.Attempt, now time.Time) error {
	if a.Finished() {
		return ErrAttemptClosed
	}
	if a.Expired(now) {
		if _, err := s.ForceFinish(ctx, a.ID); err != nil {
			return err
		}
		return ErrAttemptExpired
	}
	return nil
}

func (s *AttemptService) finalize(ctx context.Context, attempts *repository.AttemptRepository, a *model.Attempt, now time.Time) error {
	answers, err := attempts.Answers(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("get answers: %w", err)
	}
	list := make([]model.Answer, 0, len(answers))
	for _, ans := range answers {
		list = append(list, ans)
	}

	a.Finalize(now, list)
	closed, err := attempts.Finalize(ctx, a)
	if err != nil {
		return fmt.Errorf("finalize attempt: %w", err)
	}
	if !closed {
		return ErrAttemptClosed
	}
	return nil
}

func (s *AttemptService) forget(ctx context.Context, id uuid.UUID) {
	if s.deadlines == nil {
		return
	}
	if err := s.deadlines.Forget(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", id.String()).Msg("Failed to drop attempt deadline")
	}
}

func (s *AttemptService) logFinished(a *model.Attempt, reason string) {
	s.log.Info().
		Str("attempt_id", a.ID.String()).
		Int64("student_id", a.StudentID).
		Int("score", a.Score).
		Int("total_questions", a.TotalQuestions).
		Str("reason", reason).
		Msg("Attempt finished")
}

// questionAt maps an attempt index onto the quiz's ordered question list.
func questionAt(ctx context.Context, db database.DBTX, a *model.Attempt, index int) (int64, error) {
	qids, err := repository.NewQuizRepository(db).QuestionIDs(ctx, a.QuizID)
	if err != nil {
		return 0, fmt.Errorf("get quiz questions: %w", err)
	}
	if index >= len(qids) {
		return 0, ErrAttemptCorrupted
	}
	return qids[index], nil
}
