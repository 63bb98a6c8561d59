package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/quizroom/quizroom-backend/internal/database"
	"github.com/quizroom/quizroom-backend/internal/model"
)

// RelationshipRepository reads the subject_tag join table.
type RelationshipRepository struct {
	db database.DBTX
}

// NewRelationshipRepository creates a new RelationshipRepository.
func NewRelationshipRepository(db database.DBTX) *RelationshipRepository {
	return &RelationshipRepository{db: db}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns s into an ILIKE pattern matching it literally anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func relationshipWhere(f model.RelationshipFilter) (string, []any) {
	where := ` WHERE 1=1`
	args := []any{}

	if f.SubjectID != nil {
		args = append(args, *f.SubjectID)
		where += fmt.Sprintf(" AND st.subject_id = $%d", len(args))
	}
	if f.TagID != nil {
		args = append(args, *f.TagID)
		where += fmt.Sprintf(" AND st.tag_id = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, containsPattern(f.Search))
		where += fmt.Sprintf(` AND (s.name ILIKE $%d ESCAPE '\' OR t.tag_text ILIKE $%d ESCAPE '\')`, len(args), len(args))
	}
	return where, args
}

const relationshipFrom = `
	FROM subject_tag st
	JOIN subjects s ON s.id = st.subject_id
	JOIN tags t ON t.id = st.tag_id`

// List returns one page of relationships, newest first, and the total match count.
func (r *RelationshipRepository) List(ctx context.Context, f model.RelationshipFilter) ([]model.Relationship, int64, error) {
	where, args := relationshipWhere(f)

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*)`+relationshipFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.PerPage, f.Offset())
	query := `SELECT st.subject_id, s.name, st.tag_id, t.tag_text, st.created_at` + relationshipFrom + where +
		fmt.Sprintf(" ORDER BY st.created_at DESC, st.subject_id, st.tag_id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rels, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return rels, total, nil
}

// All returns every relationship matching the filter, ignoring paging.
func (r *RelationshipRepository) All(ctx context.Context, f model.RelationshipFilter) ([]model.Relationship, error) {
	where, args := relationshipWhere(f)
	return r.query(ctx,
		`SELECT st.subject_id, s.name, st.tag_id, t.tag_text, st.created_at`+relationshipFrom+where+
			` ORDER BY s.name, t.tag_text`, args...)
}

func (r *RelationshipRepository) query(ctx context.Context, sql string, args ...any) ([]model.Relationship, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rels := []model.Relationship{}
	for rows.Next() {
		var rel model.Relationship
		if err := rows.Scan(&rel.SubjectID, &rel.SubjectName, &rel.TagID, &rel.TagText, &rel.CreatedAt); err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

// Total counts every association.
func (r *RelationshipRepository) Total(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM subject_tag`).Scan(&n)
	return n, err
}

// TopSubjects ranks subjects by tag count, highest first, ties by id.
// Subjects without tags are left out.
func (r *RelationshipRepository) TopSubjects(ctx context.Context, limit int) ([]model.CountEntry, error) {
	return r.counts(ctx,
		`SELECT s.id, s.name, COUNT(*) AS n
		 FROM subjects s JOIN subject_tag st ON st.subject_id = s.id
		 GROUP BY s.id, s.name
		 ORDER BY n DESC, s.id ASC
		 LIMIT $1`, limit)
}

// TopTags ranks tags by subject count, highest first, ties by id.
func (r *RelationshipRepository) TopTags(ctx context.Context, limit int) ([]model.CountEntry, error) {
	return r.counts(ctx,
		`SELECT t.id, t.tag_text, COUNT(*) AS n
		 FROM tags t JOIN subject_tag st ON st.tag_id = t.id
		 GROUP BY t.id, t.tag_text
		 ORDER BY n DESC, t.id ASC
		 LIMIT $1`, limit)
}

func (r *RelationshipRepository) counts(ctx context.Context, sql string, limit int) ([]model.CountEntry, error) {
	rows, err := r.db.Query(ctx, sql, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.CountEntry{}
	for rows.Next() {
		var e model.CountEntry
		if err := rows.Scan(&e.ID, &e.Label, &e.Count); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// OrphanedSubjects lists subjects with no tag.
func (r *RelationshipRepository) OrphanedSubjects(ctx context.Context) ([]model.NamedRef, error) {
	return r.refs(ctx,
		`SELECT s.id, s.name FROM subjects s
		 WHERE NOT EXISTS (SELECT 1 FROM subject_tag st WHERE st.subject_id = s.id)
		 ORDER BY s.id`)
}

// OrphanedTags lists tags attached to no subject.
func (r *RelationshipRepository) OrphanedTags(ctx context.Context) ([]model.NamedRef, error) {
	return r.refs(ctx,
		`SELECT t.id, t.tag_text FROM tags t
		 WHERE NOT EXISTS (SELECT 1 FROM subject_tag st WHERE st.tag_id = t.id)
		 ORDER BY t.id`)
}

func (r *RelationshipRepository) refs(ctx context.Context, sql string) ([]model.NamedRef, error) {
	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := []model.NamedRef{}
	for rows.Next() {
		var ref model.NamedRef
		if err := rows.Scan(&ref.ID, &ref.Label); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
