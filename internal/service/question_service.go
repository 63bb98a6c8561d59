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

// QuestionService handles question authoring.
type QuestionService struct {
	db  database.Pool
	log zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(db database.Pool, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		db:  db,
		log: log.With().Str("component", "question_service").Logger(),
	}
}

// CreateQuestion stores a new question in the initial state.
func (s *QuestionService) CreateQuestion(ctx context.Context, req model.CreateQuestionRequest, actor int64) (*model.Question, error) {
	q := &model.Question{
		SubjectID:    req.SubjectID,
		QuestionText: strings.TrimSpace(req.QuestionText),
		Explanations: req.Explanations,
		CreatedBy:    actor,
		TagIDs:       dedupeIDs(req.TagIDs),
	}
	for _, o := range req.Options {
		q.Options = append(q.Options, model.QuestionOption{
			OptionText: strings.TrimSpace(o.OptionText),
			IsCorrect:  o.IsCorrect,
		})
	}
	if err := model.ValidateOptions(q.Options); err != nil {
		return nil, err
	}
	if err := q.Explanations.Validate(); err != nil {
		return nil, err
	}

	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		subjects := repository.NewSubjectRepository(tx)

		ok, err := subjects.Exists(ctx, q.SubjectID)
		if err != nil {
			return fmt.Errorf("check subject: %w", err)
		}
		if !ok {
			return ErrSubjectNotFound
		}

		n, err := subjects.CountTags(ctx, q.TagIDs)
		if err != nil {
			return fmt.Errorf("check tags: %w", err)
		}
		if n != len(q.TagIDs) {
			return ErrTagNotFound
		}

		return repository.NewQuestionRepository(tx).Create(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("question_id", q.ID).Int64("actor", actor).Msg("Question created")
	return q, nil
}

// GetQuestion returns a question with its options and tags.
func (s *QuestionService) GetQuestion(ctx context.Context, id int64) (*model.Question, error) {
	repo := repository.NewQuestionRepository(s.db)

	q, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("get question: %w", err)
	}

	if q.Options, err = repo.Options(ctx, id); err != nil {
		return nil, fmt.Errorf("get options: %w", err)
	}
	if q.TagIDs, err = repo.TagIDs(ctx, id); err != nil {
		return nil, fmt.Errorf("get tags: %w", err)
	}
	return q, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
