package repository

import (
	"context"

	"github.com/quizroom/quizroom-backend/internal/database"
	"github.com/quizroom/quizroom-backend/internal/model"
)

// SubjectRepository reads subjects and tags. Their CRUD lives outside this
// service; the review and explorer flows only need lookups.
type SubjectRepository struct {
	db database.DBTX
}

func NewSubjectRepository(db database.DBTX) *SubjectRepository {
	return &SubjectRepository{db: db}
}

func (r *SubjectRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM subjects WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// CountTags returns how many of ids exist in the tags table.
func (r *SubjectRepository) CountTags(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tags WHERE id = ANY($1)`, ids).Scan(&n)
	return n, err
}

// CreateSubject and CreateTag are used by seeding and integration tests.
func (r *SubjectRepository) CreateSubject(ctx context.Context, s *model.Subject) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO subjects (name) VALUES ($1) RETURNING id, created_at`,
		s.Name).Scan(&s.ID, &s.CreatedAt)
}

func (r *SubjectRepository) CreateTag(ctx context.Context, t *model.Tag) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO tags (tag_text) VALUES ($1) RETURNING id, created_at`,
		t.TagText).Scan(&t.ID, &t.CreatedAt)
}

// LinkTag associates a tag with a subject. Linking twice refreshes updated_at.
func (r *SubjectRepository) LinkTag(ctx context.Context, subjectID, tagID int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO subject_tag (subject_id, tag_id) VALUES ($1, $2)
		 ON CONFLICT (subject_id, tag_id) DO UPDATE SET updated_at = NOW()`,
		subjectID, tagID)
	return err
}
