package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	internaldb "air2graph/internal/db"
	"air2graph/internal/db/repository"
	"air2graph/internal/domain"
)

func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent ingestion runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfigAndLogger()
			if err != nil {
				return err
			}

			pool, err := internaldb.OpenSQLite(cfg.RunDBPath, "read", 0)
			if err != nil {
				return err
			}
			defer pool.Close() //nolint:errcheck

			runs, err := repository.NewIngestRunRepo(pool).List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(os.Stdout, "no runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tNODES\tEDGES CREATED\tERROR")
			for i := range runs {
				run := &runs[i]
				errMsg := ""
				if run.Error != nil {
					errMsg = *run.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					run.ID, run.Status, domain.FormatTimestamp(run.StartedAt),
					run.Nodes, run.Edges.Created, errMsg)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	return cmd
}
