package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether a remote server is up and can reach its store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		health, correlation, err := cli.Health(cmd.Context())
		if err != nil {
			return logError(err, correlation, "server is not healthy")
		}
		log.Info().Msgf("%s server is %s (server time %s)", greenCheck, health.Status, health.Timestamp)

		if correlation, err := cli.Ready(cmd.Context()); err != nil {
			return logError(err, correlation, "server is up but not ready")
		}
		log.Info().Msgf("%s store is reachable", greenCheck)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
