package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/boovboyz/azurerag/cmd/cmdutil"
	"github.com/boovboyz/azurerag/internal/graph"
	"github.com/boovboyz/azurerag/internal/ingest"
)

var ingestWorkers int

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest the SharePoint document library into the search index",
	Long: `Downloads every file in the configured SharePoint folder, extracts
and chunks its text, fetches the item's sharing permissions, and stores
embedded units tagged with the allowed principals. Re-running replaces
previously ingested documents along with their permission tags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := cmdutil.NewBundle(cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		client, err := cmdutil.NewGraphClient(cfg)
		if err != nil {
			return err
		}

		pipeline := ingest.NewPipeline(
			client,
			graph.NewPermissionFetcher(client),
			bundle.LLM,
			bundle.Store,
			cfg.RAG.ChunkSize,
			cfg.RAG.ChunkOverlap,
			ingest.WithWorkers(ingestWorkers),
		)

		summary, err := pipeline.Run(cmd.Context())
		if err != nil {
			return err
		}

		log.Printf("Ingestion complete: %d documents, %d units, %d skipped, %d failed",
			summary.Documents, summary.Units, summary.Skipped, summary.Failed)
		return nil
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 4, "Documents processed concurrently")
	rootCmd.AddCommand(ingestCmd)
}
