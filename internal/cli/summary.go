package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/quizroom/quizroom-backend/internal/cache"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/service"
	"github.com/spf13/cobra"
)

// NewSummaryCmd prints the tag-subject relationship summary.
func NewSummaryCmd() *cobra.Command {
	var (
		top     int
		refresh bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the tag-subject relationship summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := connect(ctx, true)
			if err != nil {
				return err
			}
			defer d.Close()

			var store service.SummaryStore
			if d.rdb != nil {
				summaries := cache.NewSummaryCache(d.rdb, d.cfg.ExplorerCacheTTL)
				if refresh {
					if err := summaries.Invalidate(ctx); err != nil {
						return fmt.Errorf("invalidate summary cache: %w", err)
					}
				}
				store = summaries
			}

			summary, err := service.NewExplorerService(d.pool, store, d.log).Summary(ctx, top)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			return printSummary(out, summary)
		},
	}

	cmd.Flags().IntVar(&top, "top", service.DefaultTopN, "number of subjects and tags to rank")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "drop cached summaries before reading")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of tables")
	return cmd
}

func printSummary(out io.Writer, s *model.RelationshipSummary) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Total relationships:\t%d\n", s.TotalRelationships)
	fmt.Fprintf(tw, "Orphaned subjects:\t%d\n", s.OrphanedSubjectCount)
	fmt.Fprintf(tw, "Orphaned tags:\t%d\n", s.OrphanedTagCount)
	fmt.Fprintf(tw, "Generated at:\t%s\n", s.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	printRanking(tw, "Top subjects (by tag count)", s.TopSubjects)
	printRanking(tw, "Top tags (by subject count)", s.TopTags)
	printRefs(tw, "Orphaned subjects", s.OrphanedSubjects)
	printRefs(tw, "Orphaned tags", s.OrphanedTags)

	return tw.Flush()
}

func printRanking(w io.Writer, title string, entries []model.CountEntry) {
	fmt.Fprintf(w, "\n%s\n", title)
	if len(entries) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for i, e := range entries {
		fmt.Fprintf(w, "  %d.\t%s\t#%d\t%d\n", i+1, e.Label, e.ID, e.Count)
	}
}

func printRefs(w io.Writer, title string, refs []model.NamedRef) {
	fmt.Fprintf(w, "\n%s\n", title)
	if len(refs) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, r := range refs {
		fmt.Fprintf(w, "  #%d\t%s\n", r.ID, r.Label)
	}
}
