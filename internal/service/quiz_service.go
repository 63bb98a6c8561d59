package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/quizroom/quizroom-backend/internal/database"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/repository"
	"github.com/rs/zerolog"
)

// ErrDuplicateQuestion means a quiz lists the same question twice.
var ErrDuplicateQuestion = errors.New("a question may appear only once per quiz")

// QuizService handles quiz definitions.
type QuizService struct {
	db  database.Pool
	log zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(db database.Pool, log zerolog.Logger) *QuizService {
	return &QuizService{
		db:  db,
		log: log.With().Str("component", "quiz_service").Logger(),
	}
}

// CreateQuiz stores a quiz whose attempt order is the order of req.QuestionIDs.
func (s *QuizService) CreateQuiz(ctx context.Context, req model.CreateQuizRequest, actor int64) (*model.Quiz, error) {
	if len(req.QuestionIDs) == 0 {
		return nil, ErrQuizEmpty
	}
	if len(dedupeIDs(req.QuestionIDs)) != len(req.QuestionIDs) {
		return nil, ErrDuplicateQuestion
	}

	quiz := &model.Quiz{
		Title:            strings.TrimSpace(req.Title),
		CreatedBy:        actor,
		Mode:             model.QuizMode(req.Mode),
		SubjectID:        req.SubjectID,
		TimeLimitMinutes: req.TimeLimitMinutes,
		QuestionIDs:      req.QuestionIDs,
	}
	if !quiz.Mode.Valid() {
		return nil, fmt.Errorf("unknown quiz mode %q", req.Mode)
	}

	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if quiz.SubjectID != nil {
			ok, err := repository.NewSubjectRepository(tx).Exists(ctx, *quiz.SubjectID)
			if err != nil {
				return fmt.Errorf("check subject: %w", err)
			}
			if !ok {
				return ErrSubjectNotFound
			}
		}

		repo := repository.NewQuizRepository(tx)
		n, err := repo.CountExisting(ctx, quiz.QuestionIDs)
		if err != nil {
			return fmt.Errorf("check questions: %w", err)
		}
		if n != len(quiz.QuestionIDs) {
			return ErrUnknownQuestion
		}
		return repo.Create(ctx, quiz)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("quiz_id", quiz.ID).
		Int("total_questions", quiz.TotalQuestions).
		Msg("Quiz created")
	return quiz, nil
}

// GetQuiz returns a quiz with its ordered question ids.
func (s *QuizService) GetQuiz(ctx context.Context, id int64) (*model.Quiz, error) {
	repo := repository.NewQuizRepository(s.db)

	quiz, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if quiz.QuestionIDs, err = repo.QuestionIDs(ctx, id); err != nil {
		return nil, fmt.Errorf("get quiz questions: %w", err)
	}
	return quiz, nil
}
