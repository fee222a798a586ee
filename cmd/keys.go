package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KatnessChen/MaraMap-Backend/internal/api"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Inspect the identity provider's signing keys",
}

var keysListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the signing keys",
	Long: `Without --server the key set is fetched from the configured identity provider.
With --server the keys cached by the running server are listed (admin only).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp *api.KeysResponse
		if f.serverURL() != "" {
			cli, err := f.GetClient()
			if err != nil {
				return err
			}
			log.Debug().Msg("Retrieving keys from server...")
			var correlation string
			resp, correlation, err = cli.ListKeys(cmd.Context())
			if err != nil {
				return logError(err, correlation, "failed to list keys")
			}
		} else {
			cfg, err := f.LoadServerConfig()
			if err != nil {
				return err
			}
			resolver, err := f.BuildResolver(cmd.Context(), cfg.Auth)
			if err != nil {
				return err
			}
			log.Debug().Msgf("Fetching key set from %s...", resolver.URL())
			if err := resolver.Refresh(cmd.Context()); err != nil {
				return fmt.Errorf("fetching key set: %w", err)
			}
			resp = &api.KeysResponse{JWKSURL: resolver.URL()}
			for _, key := range resolver.Keys() {
				resp.Keys = append(resp.Keys, api.KeyInfo{
					KeyID:     key.KeyID,
					Algorithm: key.Algorithm,
					Use:       key.Use,
					Type:      key.KeyType(),
				})
			}
		}

		log.Info().Msgf("Key set: %s", resp.JWKSURL)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Key ID", "Type", "Algorithm", "Use"})
		for _, key := range resp.Keys {
			t.AppendRow(table.Row{bold(key.KeyID), key.Type, key.Algorithm, key.Use})
		}
		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysListCmd)
}
