package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quizroom/quizroom-backend/internal/database"
	"github.com/quizroom/quizroom-backend/internal/model"
)

// AttemptRepository handles quiz attempts and their answers.
type AttemptRepository struct {
	db database.DBTX
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(db database.DBTX) *AttemptRepository {
	return &AttemptRepository{db: db}
}

const attemptColumns = `id, quiz_id, student_id, started_at, ends_at, ended_at, score,
	total_correct, total_incorrect, total_questions, last_index`

func scanAttempt(row interface{ Scan(...any) error }, a *model.Attempt) error {
	return row.Scan(&a.ID, &a.QuizID, &a.StudentID, &a.StartedAt, &a.EndsAt, &a.EndedAt, &a.Score,
		&a.TotalCorrect, &a.TotalIncorrect, &a.TotalQuestions, &a.LastIndex)
}

// Create inserts a new attempt. ID, StartedAt and EndsAt must already be set.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO quiz_attempts (id, quiz_id, student_id, started_at, ends_at, total_questions)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.QuizID, a.StudentID, a.StartedAt, a.EndsAt, a.TotalQuestions,
	)
	return err
}

// GetByID retrieves an attempt.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	if err := scanAttempt(r.db.QueryRow(ctx, `SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = $1`, id), a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetForUpdate locks the attempt row for the rest of the transaction.
func (r *AttemptRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	if err := scanAttempt(r.db.QueryRow(ctx, `SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = $1 FOR UPDATE`, id), a); err != nil {
		return nil, err
	}
	return a, nil
}

// FindOpen returns the student's newest unfinished attempt for the quiz.
func (r *AttemptRepository) FindOpen(ctx context.Context, quizID, studentID int64) (*model.Attempt, error) {
	a := &model.Attempt{}
	row := r.db.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts
		 WHERE quiz_id = $1 AND student_id = $2 AND ended_at IS NULL
		 ORDER BY started_at DESC
		 LIMIT 1
		 FOR UPDATE`, quizID, studentID)
	if err := scanAttempt(row, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListByStudent returns a student's attempts newest first.
func (r *AttemptRepository) ListByStudent(ctx context.Context, studentID int64) ([]model.Attempt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts
		 WHERE student_id = $1
		 ORDER BY started_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := []model.Attempt{}
	for rows.Next() {
		var a model.Attempt
		if err := scanAttempt(rows, &a); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ListExpiredOpen returns ids of unfinished attempts whose deadline is at or
// before now.
func (r *AttemptRepository) ListExpiredOpen(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM quiz_attempts
		 WHERE ended_at IS NULL AND ends_at IS NOT NULL AND ends_at <= $1
		 ORDER BY ends_at
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetLastIndex records the most recently visited question.
func (r *AttemptRepository) SetLastIndex(ctx context.Context, id uuid.UUID, index int) error {
	_, err := r.db.Exec(ctx, `UPDATE quiz_attempts SET last_index = $1 WHERE id = $2`, index, id)
	return err
}

// Finalize writes the tally. The ended_at IS NULL guard makes a second close a
// no-op; the result reports whether this call closed the attempt.
func (r *AttemptRepository) Finalize(ctx context.Context, a *model.Attempt) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE quiz_attempts
		 SET ended_at = $1, score = $2, total_correct = $3, total_incorrect = $4
		 WHERE id = $5 AND ended_at IS NULL`,
		a.EndedAt, a.Score, a.TotalCorrect, a.TotalIncorrect, a.ID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const answerColumns = `id, attempt_id, question_id, selected_option_id, is_correct, is_flagged,
	answered_at, created_at, updated_at`

func scanAnswer(row interface{ Scan(...any) error }, ans *model.Answer) error {
	return row.Scan(&ans.ID, &ans.AttemptID, &ans.QuestionID, &ans.SelectedOptionID, &ans.IsCorrect,
		&ans.IsFlagged, &ans.AnsweredAt, &ans.CreatedAt, &ans.UpdatedAt)
}

// UpsertAnswer stores the final selection for (attempt, question). The flag
// survives resubmission.
func (r *AttemptRepository) UpsertAnswer(ctx context.Context, ans *model.Answer) error {
	return scanAnswer(r.db.QueryRow(ctx,
		`INSERT INTO quiz_answers (attempt_id, question_id, selected_option_id, is_correct, answered_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET selected_option_id = EXCLUDED.selected_option_id,
		     is_correct = EXCLUDED.is_correct,
		     answered_at = EXCLUDED.answered_at,
		     updated_at = NOW()
		 RETURNING `+answerColumns,
		ans.AttemptID, ans.QuestionID, ans.SelectedOptionID, ans.IsCorrect,
	), ans)
}

// ToggleFlag flips the review flag, creating an unanswered row when needed.
func (r *AttemptRepository) ToggleFlag(ctx context.Context, attemptID uuid.UUID, questionID int64) (*model.Answer, error) {
	ans := &model.Answer{}
	err := scanAnswer(r.db.QueryRow(ctx,
		`INSERT INTO quiz_answers (attempt_id, question_id, is_flagged)
		 VALUES ($1, $2, TRUE)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET is_flagged = NOT quiz_answers.is_flagged,
		     updated_at = NOW()
		 RETURNING `+answerColumns,
		attemptID, questionID,
	), ans)
	if err != nil {
		return nil, err
	}
	return ans, nil
}

// Answers returns every stored answer of an attempt keyed by question id.
func (r *AttemptRepository) Answers(ctx context.Context, attemptID uuid.UUID) (map[int64]model.Answer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+answerColumns+` FROM quiz_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64]model.Answer{}
	for rows.Next() {
		var ans model.Answer
		if err := scanAnswer(rows, &ans); err != nil {
			return nil, err
		}
		out[ans.QuestionID] = ans
	}
	return out, rows.Err()
}
