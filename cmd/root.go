package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/boovboyz/azurerag/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ragapi",
	Short: "Permission-aware RAG API over a SharePoint document library",
	Long: `ragapi answers natural-language questions over the documents of a
SharePoint library. The secure query path filters retrieval by the
caller's Azure AD identity so answers only draw on documents the
caller is allowed to read.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().String("server-addr", "", "Server bind address (env: RAG_SERVER_ADDR)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: RAG_DEBUG)")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
