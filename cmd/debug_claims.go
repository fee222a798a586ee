package cmd

import (
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debugging commands",
	Long:  `Commands for debugging tokens and MaraMap configurations`,
}

var claimsCmd = &cobra.Command{
	Use:   "claims JWT-TOKEN",
	Short: "Prints the header and claims of a JWT",
	Long: `The claims command decodes a token and displays its contents.
It does not perform any validation; use 'debug verify' for that.`,
	Example: `  maramap debug claims <JWT token>`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenInput := args[0]
		if tokenInput == "" {
			return fmt.Errorf("token cannot be empty")
		}

		parser := jwt.NewParser()
		token, _, err := parser.ParseUnverified(tokenInput, jwt.MapClaims{})
		if err != nil {
			return fmt.Errorf("parsing token: %w", err)
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fmt.Errorf("invalid token claims")
		}

		log.Info().Msg("Token Header:")
		log.Info().Msg(spew.Sdump(token.Header))
		log.Info().Msg("Token Claims:")
		log.Info().Msg(spew.Sdump(claims))

		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			log.Info().Msgf("Subject (sub): %s", sub)
		} else {
			log.Warn().Msg("Token does not contain a 'sub' claim, it will be rejected")
		}
		if _, ok := claims["email"].(string); !ok {
			log.Warn().Msg("Token does not contain an 'email' claim, it will be rejected")
		}
		if iss, err := claims.GetIssuer(); err == nil && iss != "" {
			log.Info().Msgf("Issuer (iss): %s", iss)
		}

		// print expiration and remaining lifetime
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			remaining := time.Until(exp.Time).Round(time.Second)
			if remaining < 0 {
				log.Warn().Msgf("Expiration (exp): %v (expired %v ago)", exp.Time, -remaining)
			} else {
				log.Info().Msgf("Expiration (exp): %v (in %v)", exp.Time, remaining)
			}
		} else {
			log.Warn().Msg("Token does not contain an 'exp' claim, it will be rejected")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(claimsCmd)
}
