package cmd

import (
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KatnessChen/MaraMap-Backend/internal/auth"
)

var verifyCmd = &cobra.Command{
	Use:   "verify JWT-TOKEN",
	Short: "Verifies a token the way the server does",
	Long: `Fetches the configured key set and runs the same verification as the
ingest endpoint. On failure the precise rejection reason is printed, which the
server never reveals to callers.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadServerConfig()
		if err != nil {
			return err
		}
		resolver, err := f.BuildResolver(cmd.Context(), cfg.Auth)
		if err != nil {
			return err
		}
		verifier := f.BuildVerifier(cfg.Auth, resolver)

		principal, err := verifier.Verify(cmd.Context(), args[0])
		if err != nil {
			reason := auth.ReasonUnauthenticated
			var authErr *auth.Error
			if errors.As(err, &authErr) {
				reason = authErr.Reason
			}
			log.Error().Err(err).Str("reason", string(reason)).Msgf("%s token rejected", redCross)
			return BeQuietError{}
		}

		log.Info().Msgf("%s token is valid", greenCheck)
		fmt.Printf("  %s:  %s\n", faint("Subject"), principal.Subject)
		fmt.Printf("  %s:    %s\n", faint("Email"), principal.Email)
		if len(principal.Claims) > 0 {
			fmt.Printf("  %s:\n%s", faint("Other claims"), spew.Sdump(principal.Claims))
		}
		return nil
	},
}

func init() {
	debugCmd.AddCommand(verifyCmd)
}
