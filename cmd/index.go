package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/boovboyz/azurerag/cmd/cmdutil"
)

var indexDims int

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the search index",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create or update the search index schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := cmdutil.NewBundle(cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		if err := bundle.Store.EnsureIndex(cmd.Context(), indexDims); err != nil {
			return err
		}
		log.Printf("Index %s ready (%d dimensions)", cfg.Search.Index, indexDims)
		return nil
	},
}

var indexResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the search index and all ingested units",
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := cmdutil.NewBundle(cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		if err := bundle.Store.Reset(cmd.Context()); err != nil {
			return err
		}
		log.Printf("Index %s deleted", cfg.Search.Index)
		return nil
	},
}

func init() {
	indexCreateCmd.Flags().IntVar(&indexDims, "dims", 1536, "Embedding dimensionality")
	indexCmd.AddCommand(indexCreateCmd)
	indexCmd.AddCommand(indexResetCmd)
	rootCmd.AddCommand(indexCmd)
}
