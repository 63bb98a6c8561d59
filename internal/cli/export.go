package cli

import (
	"fmt"
	"os"

	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/service"
	"github.com/spf13/cobra"
)

// NewExportCmd writes the relationship workbook to a file.
func NewExportCmd() *cobra.Command {
	var (
		out       string
		subjectID int64
		tagID     int64
		search    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tag-subject relationships to an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := connect(ctx, false)
			if err != nil {
				return err
			}
			defer d.Close()

			q := model.RelationshipQuery{SubjectID: subjectID, TagID: tagID, Search: search}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			explorer := service.NewExplorerService(d.pool, nil, d.log)
			if err := explorer.ExportXLSX(ctx, q.Filter(), f); err != nil {
				_ = f.Close()
				_ = os.Remove(out)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "relationships.xlsx", "output file")
	cmd.Flags().Int64Var(&subjectID, "subject", 0, "only this subject id")
	cmd.Flags().Int64Var(&tagID, "tag", 0, "only this tag id")
	cmd.Flags().StringVar(&search, "search", "", "subject name or tag text substring")
	return cmd
}
