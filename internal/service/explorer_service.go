package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/quizroom/quizroom-backend/internal/database"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/repository"
	"github.com/quizroom/quizroom-backend/internal/response"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

// DefaultTopN is the summary size when the caller does not pick one.
const DefaultTopN = 5

// MaxTopN caps the summary size.
const MaxTopN = 50

// SummaryStore caches relationship summaries.
type SummaryStore interface {
	Get(ctx context.Context, topN int) (*model.RelationshipSummary, bool, error)
	Set(ctx context.Context, topN int, s *model.RelationshipSummary) error
}

// ExplorerService reports on the subject-tag association table.
type ExplorerService struct {
	db    database.DBTX
	cache SummaryStore
	log   zerolog.Logger
}

// NewExplorerService creates a new ExplorerService. cache may be nil.
func NewExplorerService(db database.DBTX, cache SummaryStore, log zerolog.Logger) *ExplorerService {
	return &ExplorerService{
		db:    db,
		cache: cache,
		log:   log.With().Str("component", "explorer_service").Logger(),
	}
}

// List returns one page of relationships.
func (s *ExplorerService) List(ctx context.Context, f model.RelationshipFilter) ([]model.Relationship, *response.Pagination, error) {
	f = f.Normalize()
	rels, total, err := repository.NewRelationshipRepository(s.db).List(ctx, f)
	if err != nil {
		return nil, nil, fmt.Errorf("list relationships: %w", err)
	}
	return rels, response.NewPagination(f.Page, f.PerPage, total), nil
}

// Summary aggregates the association table. Results are served from the
// cache when present.
func (s *ExplorerService) Summary(ctx context.Context, topN int) (*model.RelationshipSummary, error) {
	topN = clampTopN(topN)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, topN)
		if err != nil {
			s.log.Warn().Err(err).Msg("Summary cache read failed")
		}
		if ok {
			return cached, nil
		}
	}

	summary, err := s.buildSummary(ctx, topN)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, topN, summary); err != nil {
			s.log.Warn().Err(err).Msg("Summary cache write failed")
		}
	}
	return summary, nil
}

// buildSummary runs the five aggregate queries concurrently.
func (s *ExplorerService) buildSummary(ctx context.Context, topN int) (*model.RelationshipSummary, error) {
	repo := repository.NewRelationshipRepository(s.db)
	summary := &model.RelationshipSummary{GeneratedAt: time.Now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		summary.TotalRelationships, err = repo.Total(gctx)
		return wrap("count relationships", err)
	})
	g.Go(func() (err error) {
		summary.TopSubjects, err = repo.TopSubjects(gctx, topN)
		return wrap("rank subjects", err)
	})
	g.Go(func() (err error) {
		summary.TopTags, err = repo.TopTags(gctx, topN)
		return wrap("rank tags", err)
	})
	g.Go(func() (err error) {
		summary.OrphanedSubjects, err = repo.OrphanedSubjects(gctx)
		return wrap("orphaned subjects", err)
	})
	g.Go(func() (err error) {
		summary.OrphanedTags, err = repo.OrphanedTags(gctx)
		return wrap("orphaned tags", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.OrphanedSubjectCount = len(summary.OrphanedSubjects)
	summary.OrphanedTagCount = len(summary.OrphanedTags)
	return summary, nil
}

// ExportXLSX writes the filtered relationships and a summary sheet as an
// Excel workbook.
func (s *ExplorerService) ExportXLSX(ctx context.Context, f model.RelationshipFilter, w io.Writer) error {
	f = f.Normalize()
	rels, err := repository.NewRelationshipRepository(s.db).All(ctx, f)
	if err != nil {
		return fmt.Errorf("list relationships: %w", err)
	}
	summary, err := s.Summary(ctx, DefaultTopN)
	if err != nil {
		return err
	}

	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	const relSheet = "Relationships"
	if err := book.SetSheetName("Sheet1", relSheet); err != nil {
		return err
	}

	sw, err := book.NewStreamWriter(relSheet)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", []interface{}{"Subject ID", "Subject", "Tag ID", "Tag", "Linked At"}); err != nil {
		return err
	}
	for i, rel := range rels {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{rel.SubjectID, rel.SubjectName, rel.TagID, rel.TagText, rel.CreatedAt.UTC().Format(time.RFC3339)}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	if err := writeSummarySheet(book, summary); err != nil {
		return err
	}

	s.log.Info().Int("rows", len(rels)).Msg("Relationship export generated")
	return book.Write(w)
}

func writeSummarySheet(book *excelize.File, summary *model.RelationshipSummary) error {
	const sheet = "Summary"
	if _, err := book.NewSheet(sheet); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Total relationships", summary.TotalRelationships},
		{"Orphaned subjects", summary.OrphanedSubjectCount},
		{"Orphaned tags", summary.OrphanedTagCount},
		{},
		{"Top subjects", "Tags"},
	}
	for _, e := range summary.TopSubjects {
		rows = append(rows, []interface{}{e.Label, e.Count})
	}
	rows = append(rows, []interface{}{}, []interface{}{"Top tags", "Subjects"})
	for _, e := range summary.TopTags {
		rows = append(rows, []interface{}{e.Label, e.Count})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func clampTopN(n int) int {
	if n < 1 {
		return DefaultTopN
	}
	if n > MaxTopN {
		return MaxTopN
	}
	return n
}

func wrap(op string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
