package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boovboyz/azurerag/cmd/cmdutil"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <folder-url>",
	Short: "Resolve a SharePoint folder URL to the ids ingestion needs",
	Long: `Takes a browser URL of a SharePoint document library folder and
resolves the site, drive, and folder ids to put in the configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.NewGraphClient(cfg)
		if err != nil {
			return err
		}

		ids, err := client.DiscoverIDs(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("discover folder: %w", err)
		}

		fmt.Printf("site_id:   %s\n", ids.SiteID)
		fmt.Printf("drive_id:  %s\n", ids.DriveID)
		fmt.Printf("folder_id: %s\n", ids.FolderID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
