package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

var tokenScopes []string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Obtain a user bearer token via the device-code flow",
	Long: `Acquires an access token for a user of the configured tenant so the
secured endpoints can be exercised by hand. Prints a code to enter at
the verification URL, waits for sign-in, and prints the token as an
Authorization header value.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.TenantID == "" || cfg.Graph.ClientID == "" {
			return fmt.Errorf("tenant_id and graph.client_id are required")
		}

		conf := &oauth2.Config{
			ClientID: cfg.Graph.ClientID,
			Scopes:   tokenScopes,
			Endpoint: oauth2.Endpoint{
				DeviceAuthURL: cfg.DeviceAuthEndpoint(),
				TokenURL:      cfg.TokenEndpoint(),
			},
		}

		response, err := conf.DeviceAuth(cmd.Context())
		if err != nil {
			return fmt.Errorf("request device code: %w", err)
		}

		fmt.Printf("To sign in, open %s and enter the code %s\n",
			response.VerificationURI, response.UserCode)

		token, err := conf.DeviceAccessToken(cmd.Context(), response)
		if err != nil {
			return fmt.Errorf("acquire token: %w", err)
		}

		fmt.Println("\nSUCCESS! Here is your Bearer token:")
		fmt.Println(token.AccessToken)
		fmt.Println("\nUse it in your request header:")
		fmt.Printf("Authorization: Bearer %s\n", token.AccessToken)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringSliceVar(&tokenScopes, "scopes",
		[]string{"User.Read", "Files.Read"}, "OAuth2 scopes to request")
	rootCmd.AddCommand(tokenCmd)
}
