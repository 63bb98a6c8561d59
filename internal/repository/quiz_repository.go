package repository

import (
	"context"
	"fmt"

	"github.com/quizroom/quizroom-backend/internal/database"
	"github.com/quizroom/quizroom-backend/internal/model"
)

// QuizRepository handles quiz definitions and their ordered question links.
type QuizRepository struct {
	db database.DBTX
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(db database.DBTX) *QuizRepository {
	return &QuizRepository{db: db}
}

// Create inserts the quiz and links QuestionIDs in slice order starting at 1.
func (r *QuizRepository) Create(ctx context.Context, q *model.Quiz) error {
	q.TotalQuestions = len(q.QuestionIDs)
	err := r.db.QueryRow(ctx,
		`INSERT INTO quizzes (title, created_by, mode, subject_id, time_limit_minutes, total_questions)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		q.Title, q.CreatedBy, q.Mode, q.SubjectID, q.TimeLimitMinutes, q.TotalQuestions,
	).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO quiz_questions (quiz_id, question_id, "order")
		 SELECT $1, u.question_id, u.ord
		 FROM UNNEST($2::bigint[]) WITH ORDINALITY AS u (question_id, ord)`,
		q.ID, q.QuestionIDs,
	)
	if err != nil {
		return fmt.Errorf("link quiz questions: %w", err)
	}
	return nil
}

// GetByID retrieves a quiz without its question list.
func (r *QuizRepository) GetByID(ctx context.Context, id int64) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := r.db.QueryRow(ctx,
		`SELECT id, title, created_by, mode, subject_id, time_limit_minutes, total_questions, created_at
		 FROM quizzes WHERE id = $1`, id,
	).Scan(&q.ID, &q.Title, &q.CreatedBy, &q.Mode, &q.SubjectID, &q.TimeLimitMinutes, &q.TotalQuestions, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// QuestionIDs returns the quiz's questions in attempt order.
func (r *QuizRepository) QuestionIDs(ctx context.Context, quizID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT question_id FROM quiz_questions WHERE quiz_id = $1 ORDER BY "order"`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountExisting reports how many of ids are real questions.
func (r *QuizRepository) CountExisting(ctx context.Context, ids []int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(DISTINCT id) FROM questions WHERE id = ANY($1)`, ids).Scan(&n)
	return n, err
}
