package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"air2graph/internal/ingest"
)

func newIngestCmd() *cobra.Command {
	var wipe bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one full ingestion and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfigAndLogger()
			if err != nil {
				return err
			}

			a, cleanup, err := openApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			run, err := a.Orchestrator.Run(cmd.Context(), ingest.Options{Wipe: wipe})
			if run != nil {
				fmt.Fprintf(os.Stdout, "run %s: %s\n", run.ID, run.Status)
				fmt.Fprintf(os.Stdout, "  labels: %d  nodes: %d\n", run.Labels, run.Nodes)
				fmt.Fprintf(os.Stdout, "  edges: created %d, skipped %d, sources missing %d, targets missing %d, failed batches %d\n",
					run.Edges.Created, run.Edges.Skipped,
					run.Edges.SourcesNotFound, run.Edges.TargetsNotFound, run.Edges.FailedBatches)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&wipe, "wipe", false, "remove every node and relationship before ingesting")
	return cmd
}
