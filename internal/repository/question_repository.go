package repository

import (
	"context"
	"fmt"

	"github.com/quizroom/quizroom-backend/internal/database"
	"github.com/quizroom/quizroom-backend/internal/model"
)

// QuestionRepository handles question, option, tag link and review history
// data access.
type QuestionRepository struct {
	db database.DBTX
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(db database.DBTX) *QuestionRepository {
	return &QuestionRepository{db: db}
}

const questionColumns = `id, subject_id, question_text, explanations, created_by, state, assigned_to, created_at, updated_at`

func scanQuestion(row interface{ Scan(...any) error }, q *model.Question) error {
	return row.Scan(&q.ID, &q.SubjectID, &q.QuestionText, &q.Explanations, &q.CreatedBy,
		&q.State, &q.AssignedTo, &q.CreatedAt, &q.UpdatedAt)
}

// Create inserts the question with its options and tag links. Call it inside
// a transaction so a failed option insert does not leave a bare question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	if q.Explanations == nil {
		q.Explanations = model.Explanations{}
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO questions (subject_id, question_text, explanations, created_by, state)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		q.SubjectID, q.QuestionText, q.Explanations, q.CreatedBy, model.StateInitial,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	q.State = model.StateInitial

	for i := range q.Options {
		o := &q.Options[i]
		o.QuestionID = q.ID
		o.Position = i + 1
		if err := r.db.QueryRow(ctx,
			`INSERT INTO question_options (question_id, option_text, is_correct, position)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			o.QuestionID, o.OptionText, o.IsCorrect, o.Position,
		).Scan(&o.ID); err != nil {
			return fmt.Errorf("insert option %d: %w", o.Position, err)
		}
	}

	if len(q.TagIDs) > 0 {
		if _, err := r.db.Exec(ctx,
			`INSERT INTO question_tag (question_id, tag_id)
			 SELECT $1, t FROM UNNEST($2::bigint[]) AS t
			 ON CONFLICT DO NOTHING`,
			q.ID, q.TagIDs,
		); err != nil {
			return fmt.Errorf("link tags: %w", err)
		}
	}
	return nil
}

// GetByID retrieves a question row without options.
func (r *QuestionRepository) GetByID(ctx context.Context, id int64) (*model.Question, error) {
	q := &model.Question{}
	row := r.db.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)
	if err := scanQuestion(row, q); err != nil {
		return nil, err
	}
	return q, nil
}

// GetForUpdate locks the question row for the rest of the transaction.
func (r *QuestionRepository) GetForUpdate(ctx context.Context, id int64) (*model.Question, error) {
	q := &model.Question{}
	row := r.db.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1 FOR UPDATE`, id)
	if err := scanQuestion(row, q); err != nil {
		return nil, err
	}
	return q, nil
}

// SaveReviewState persists state and assignee after a workflow transition.
func (r *QuestionRepository) SaveReviewState(ctx context.Context, q *model.Question) error {
	return r.db.QueryRow(ctx,
		`UPDATE questions SET state = $1, assigned_to = $2, updated_at = NOW()
		 WHERE id = $3
		 RETURNING updated_at`,
		q.State, q.AssignedTo, q.ID,
	).Scan(&q.UpdatedAt)
}

// InsertHistory appends one audit row.
func (r *QuestionRepository) InsertHistory(ctx context.Context, h *model.QuestionStateHistory) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO question_state_history (question_id, from_state, to_state, changed_by, notes)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		h.QuestionID, h.FromState, h.ToState, h.ChangedBy, h.Notes,
	).Scan(&h.ID, &h.CreatedAt)
}

// History returns the audit trail oldest first.
func (r *QuestionRepository) History(ctx context.Context, questionID int64) ([]model.QuestionStateHistory, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, question_id, from_state, to_state, changed_by, notes, created_at
		 FROM question_state_history
		 WHERE question_id = $1
		 ORDER BY id`, questionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []model.QuestionStateHistory{}
	for rows.Next() {
		var h model.QuestionStateHistory
		if err := rows.Scan(&h.ID, &h.QuestionID, &h.FromState, &h.ToState, &h.ChangedBy, &h.Notes, &h.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// Options returns the options of one question in display order.
func (r *QuestionRepository) Options(ctx context.Context, questionID int64) ([]model.QuestionOption, error) {
	byQuestion, err := r.OptionsFor(ctx, []int64{questionID})
	if err != nil {
		return nil, err
	}
	return byQuestion[questionID], nil
}

// OptionsFor loads the options of several questions in one round trip.
func (r *QuestionRepository) OptionsFor(ctx context.Context, questionIDs []int64) (map[int64][]model.QuestionOption, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, question_id, option_text, is_correct, position
		 FROM question_options
		 WHERE question_id = ANY($1)
		 ORDER BY question_id, position`, questionIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]model.QuestionOption, len(questionIDs))
	for rows.Next() {
		var o model.QuestionOption
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.OptionText, &o.IsCorrect, &o.Position); err != nil {
			return nil, err
		}
		out[o.QuestionID] = append(out[o.QuestionID], o)
	}
	return out, rows.Err()
}

// ListByIDs returns the questions with the given ids keyed by id.
func (r *QuestionRepository) ListByIDs(ctx context.Context, ids []int64) (map[int64]model.Question, error) {
	rows, err := r.db.Query(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]model.Question, len(ids))
	for rows.Next() {
		var q model.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, err
		}
		out[q.ID] = q
	}
	return out, rows.Err()
}

// TagIDs returns the tags attached to a question.
func (r *QuestionRepository) TagIDs(ctx context.Context, questionID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT tag_id FROM question_tag WHERE question_id = $1 ORDER BY tag_id`, questionID)
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

// List returns the review queue page and the total number of matches.
func (r *QuestionRepository) List(ctx context.Context, f model.ReviewQueueFilter) ([]model.Question, int64, error) {
	where := ` WHERE 1=1`
	args := []any{}

	if f.State != nil {
		args = append(args, *f.State)
		where += fmt.Sprintf(" AND state = $%d", len(args))
	}
	if f.AssignedTo != nil {
		args = append(args, *f.AssignedTo)
		where += fmt.Sprintf(" AND assigned_to = $%d", len(args))
	}
	if f.SubjectID != nil {
		args = append(args, *f.SubjectID)
		where += fmt.Sprintf(" AND subject_id = $%d", len(args))
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM questions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)
	query := `SELECT ` + questionColumns + ` FROM questions` + where +
		fmt.Sprintf(" ORDER BY updated_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, 0, err
		}
		questions = append(questions, q)
	}
	return questions, total, rows.Err()
}
