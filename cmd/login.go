package cmd

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KatnessChen/MaraMap-Backend/internal/cliconfig"
)

var loginCmd = &cobra.Command{
	Use:   "login ACCESS-TOKEN",
	Short: "Store an access token for the remote server",
	Long: `Saves an access token issued by the identity provider so that later
commands against --server are authenticated. The token is not sent anywhere;
it is only checked to be a well-formed, unexpired JWT.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server := f.serverURL()
		if server == "" {
			return fmt.Errorf("server address not configured, provide via --server or env")
		}

		token, _, err := jwt.NewParser().ParseUnverified(args[0], jwt.MapClaims{})
		if err != nil {
			return fmt.Errorf("parsing token: %w", err)
		}
		cred := &cliconfig.Credential{Token: args[0]}
		if sub, err := token.Claims.GetSubject(); err == nil {
			cred.Subject = sub
		}
		if exp, err := token.Claims.GetExpirationTime(); err == nil && exp != nil {
			cred.ExpiresAt = exp.Time
		}
		if cred.Expired(timeNow()) {
			return fmt.Errorf("token expired at %s", cred.ExpiresAt)
		}

		cfg, err := cliconfig.Load()
		if err != nil {
			return fmt.Errorf("loading credentials: %w", err)
		}
		if err := cfg.SetCredential(server, cred); err != nil {
			return err
		}
		if err := cliconfig.Save(cfg); err != nil {
			return logError(err, "", "could not save credentials")
		}

		log.Info().Msgf("%s saved token for %s as %s", greenCheck, server, bold(cred.Subject))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored access token for the remote server",
	RunE: func(cmd *cobra.Command, args []string) error {
		server := f.serverURL()
		if server == "" {
			return fmt.Errorf("server address not configured, provide via --server or env")
		}
		cfg, err := cliconfig.Load()
		if err != nil {
			return fmt.Errorf("loading credentials: %w", err)
		}
		removed, err := cfg.RemoveCredential(server)
		if err != nil {
			return err
		}
		if !removed {
			log.Info().Msgf("no token stored for %s", server)
			return nil
		}
		if err := cliconfig.Save(cfg); err != nil {
			return fmt.Errorf("saving credentials: %w", err)
		}
		log.Info().Msgf("%s removed token for %s", greenCheck, server)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
