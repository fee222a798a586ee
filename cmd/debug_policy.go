package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KatnessChen/MaraMap-Backend/internal/engine"
)

var policyCmd = &cobra.Command{
	Use:   "policy JWT-TOKEN",
	Short: "Shows whether a token passes the admin policy",
	Long: `Verifies the token like the server does, then evaluates auth.admin from
the configuration against it and prints every branch of the decision.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadServerConfig()
		if err != nil {
			return err
		}
		if cfg.Auth.Admin == nil {
			log.Warn().Msg("auth.admin is not configured, the admin routes are disabled")
			return nil
		}
		policy, err := engine.Compile(*cfg.Auth.Admin)
		if err != nil {
			return fmt.Errorf("compiling admin policy: %w", err)
		}

		resolver, err := f.BuildResolver(cmd.Context(), cfg.Auth)
		if err != nil {
			return err
		}
		principal, err := f.BuildVerifier(cfg.Auth, resolver).Verify(cmd.Context(), args[0])
		if err != nil {
			log.Error().Err(err).Msgf("%s token rejected before the policy was checked", redCross)
			return BeQuietError{}
		}

		result := policy.Evaluate(principal)
		fmt.Println(engine.Explain(result))
		if !result.Matched {
			log.Warn().Str("sub", principal.Subject).Msgf("%s admin access would be denied", redCross)
			return BeQuietError{}
		}
		log.Info().Str("sub", principal.Subject).Msgf("%s admin access would be granted", greenCheck)
		return nil
	},
}

func init() {
	debugCmd.AddCommand(policyCmd)
}
