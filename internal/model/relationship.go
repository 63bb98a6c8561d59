package model

import (
	"strings"
	"time"
)

// Relationship page size bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Relationship is one subject-tag association row.
type Relationship struct {
	SubjectID   int64     `json:"subject_id"`
	SubjectName string    `json:"subject_name"`
	TagID       int64     `json:"tag_id"`
	TagText     string    `json:"tag_text"`
	CreatedAt   time.Time `json:"created_at"`
}

// RelationshipFilter narrows the association listing. Search is a
// case-insensitive substring match on subject name or tag text.
type RelationshipFilter struct {
	SubjectID *int64
	TagID     *int64
	Search    string
	Page      int
	PerPage   int
}

// Normalize clamps paging and trims the search term.
func (f RelationshipFilter) Normalize() RelationshipFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = DefaultPageSize
	}
	if f.PerPage > MaxPageSize {
		f.PerPage = MaxPageSize
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// Offset is the row offset of the filter's page.
func (f RelationshipFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// CountEntry is one ranked entity in a top-N listing.
type CountEntry struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// NamedRef identifies an entity by id and display text.
type NamedRef struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// RelationshipSummary aggregates the subject-tag join table.
type RelationshipSummary struct {
	TotalRelationships   int          `json:"total_relationships"`
	TopSubjects          []CountEntry `json:"top_subjects"`
	TopTags              []CountEntry `json:"top_tags"`
	OrphanedSubjects     []NamedRef   `json:"orphaned_subjects"`
	OrphanedTags         []NamedRef   `json:"orphaned_tags"`
	OrphanedSubjectCount int          `json:"orphaned_subject_count"`
	OrphanedTagCount     int          `json:"orphaned_tag_count"`
	GeneratedAt          time.Time    `json:"generated_at"`
}

// RelationshipQuery is the query string of the explorer endpoints.
type RelationshipQuery struct {
	SubjectID int64  `form:"subject_id" binding:"omitempty,gt=0"`
	TagID     int64  `form:"tag_id" binding:"omitempty,gt=0"`
	Search    string `form:"search" binding:"omitempty,max=100"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PerPage   int    `form:"per_page" binding:"omitempty,min=1,max=100"`
}

// Filter converts the query into a normalized filter.
func (q RelationshipQuery) Filter() RelationshipFilter {
	f := RelationshipFilter{Search: q.Search, Page: q.Page, PerPage: q.PerPage}
	if q.SubjectID > 0 {
		id := q.SubjectID
		f.SubjectID = &id
	}
	if q.TagID > 0 {
		id := q.TagID
		f.TagID = &id
	}
	return f.Normalize()
}
