package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KatnessChen/MaraMap-Backend/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the posts table in the configured SQL store",
	Long: `Applies the schema of the posts table, including the unique constraint
on source_id that keeps ingestion idempotent. Running it again is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadServerConfig()
		if err != nil {
			return err
		}

		s, err := store.Build(cmd.Context(), cfg.Store)
		if err != nil {
			return fmt.Errorf("building store: %w", err)
		}
		defer func() {
			_ = s.Close()
		}()

		m, ok := s.(store.Migrator)
		if !ok {
			log.Warn().Msgf("store type '%s' does not manage its schema, nothing to do", cfg.Store.Type)
			return nil
		}
		if err := m.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
		log.Info().Msgf("%s Schema applied to %s store.", greenCheck, cfg.Store.Type)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
