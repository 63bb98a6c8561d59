package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/quizroom/quizroom-backend/internal/database"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/repository"
	"github.com/quizroom/quizroom-backend/internal/response"
	"github.com/rs/zerolog"
)

// ReviewService drives questions through initial → under_review → done.
// Every mutation locks the question row, applies the transition and writes
// the history row in one transaction.
type ReviewService struct {
	db  database.Pool
	log zerolog.Logger
}

// NewReviewService creates a new ReviewService.
func NewReviewService(db database.Pool, log zerolog.Logger) *ReviewService {
	return &ReviewService{
		db:  db,
		log: log.With().Str("component", "review_service").Logger(),
	}
}

type transition func(q *model.Question) (model.QuestionStateHistory, bool)

// apply runs t against the locked question. It returns false without writing
// anything when t rejects the transition.
func (s *ReviewService) apply(ctx context.Context, questionID int64, t transition) (bool, *model.QuestionStateHistory, error) {
	var (
		applied bool
		history model.QuestionStateHistory
	)
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		repo := repository.NewQuestionRepository(tx)

		q, err := repo.GetForUpdate(ctx, questionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrQuestionNotFound
			}
			return fmt.Errorf("lock question: %w", err)
		}

		history, applied = t(q)
		if !applied {
			return nil
		}
		// assigned_to and changed_by are the only user references written here.
		if err := repo.SaveReviewState(ctx, q); err != nil {
			if isForeignKeyViolation(err) {
				return ErrUserNotFound
			}
			return fmt.Errorf("save review state: %w", err)
		}
		if err := repo.InsertHistory(ctx, &history); err != nil {
			if isForeignKeyViolation(err) {
				return ErrUserNotFound
			}
			return fmt.Errorf("insert history: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	if !applied {
		return false, nil, nil
	}
	return true, &history, nil
}

// AssignTo hands an initial question to assignee on behalf of actor.
func (s *ReviewService) AssignTo(ctx context.Context, questionID, assignee, actor int64) (bool, error) {
	ok, h, err := s.apply(ctx, questionID, func(q *model.Question) (model.QuestionStateHistory, bool) {
		return q.AssignTo(assignee, actor)
	})
	if err != nil {
		return false, err
	}
	if ok {
		s.log.Info().
			Int64("question_id", questionID).
			Int64("assignee", assignee).
			Int64("actor", actor).
			Str("to", string(h.ToState)).
			Msg("Question assigned")
	}
	return ok, nil
}

// CanBeUnassigned reports whether userID may release the question.
func (s *ReviewService) CanBeUnassigned(ctx context.Context, questionID, userID int64, isAdmin bool) (bool, error) {
	q, err := repository.NewQuestionRepository(s.db).GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrQuestionNotFound
		}
		return false, fmt.Errorf("get question: %w", err)
	}
	return q.CanBeUnassigned(userID, isAdmin), nil
}

// Unassign returns the question to the initial pool.
func (s *ReviewService) Unassign(ctx context.Context, questionID, actor int64) (bool, error) {
	ok, _, err := s.apply(ctx, questionID, func(q *model.Question) (model.QuestionStateHistory, bool) {
		return q.Unassign(actor)
	})
	if err != nil {
		return false, err
	}
	if ok {
		s.log.Info().Int64("question_id", questionID).Int64("actor", actor).Msg("Question unassigned")
	}
	return ok, nil
}

// ChangeState is the admin override into any known state.
func (s *ReviewService) ChangeState(ctx context.Context, questionID int64, to model.QuestionState, actor int64, notes string) (bool, error) {
	ok, h, err := s.apply(ctx, questionID, func(q *model.Question) (model.QuestionStateHistory, bool) {
		return q.ChangeState(to, actor, notes)
	})
	if err != nil {
		return false, err
	}
	if ok {
		s.log.Info().
			Int64("question_id", questionID).
			Int64("actor", actor).
			Str("from", string(h.FromState)).
			Str("to", string(h.ToState)).
			Msg("Question state overridden")
	}
	return ok, nil
}

// History returns the question's audit trail oldest first.
func (s *ReviewService) History(ctx context.Context, questionID int64) ([]model.QuestionStateHistory, error) {
	repo := repository.NewQuestionRepository(s.db)
	if _, err := repo.GetByID(ctx, questionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	return repo.History(ctx, questionID)
}

// ReviewQueue lists questions filtered by state, assignee and subject.
func (s *ReviewService) ReviewQueue(ctx context.Context, f model.ReviewQueueFilter) ([]model.Question, *response.Pagination, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = model.DefaultPageSize
	}
	if f.PerPage > model.MaxPageSize {
		f.PerPage = model.MaxPageSize
	}

	questions, total, err := repository.NewQuestionRepository(s.db).List(ctx, f)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, response.NewPagination(f.Page, f.PerPage, total), nil
}
