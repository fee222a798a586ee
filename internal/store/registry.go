package store

import (
	"context"
	"fmt"
	"io"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"

	"github.com/KatnessChen/MaraMap-Backend/internal/config"
	"github.com/KatnessChen/MaraMap-Backend/internal/core"
)

// Store is a PostStore that holds resources.
type Store interface {
	core.PostStore
	io.Closer
}

// Migrator is implemented by stores that own their schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

func decodeOptions(raw map[string]any, dest any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           dest,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// Build opens the store selected by conf.
func Build(ctx context.Context, conf config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error

		autoMigrate bool
	)

	switch conf.Type {
	case config.StoreMemory, "":
		s = NewMemoryPostStore()

	case config.StorePostgres:
		var opts PostgresOptions
		if err := decodeOptions(conf.Options, &opts); err != nil {
			return nil, fmt.Errorf("decoding postgres options: %w", err)
		}
		autoMigrate = opts.AutoMigrate
		s, err = OpenPostgres(ctx, opts)

	case config.StoreSQLite:
		var opts SQLiteOptions
		if err := decodeOptions(conf.Options, &opts); err != nil {
			return nil, fmt.Errorf("decoding sqlite options: %w", err)
		}
		autoMigrate = opts.AutoMigrate
		s, err = OpenSQLite(ctx, opts)

	case config.StorePostgREST:
		var opts PostgRESTOptions
		if err := decodeOptions(conf.Options, &opts); err != nil {
			return nil, fmt.Errorf("decoding postgrest options: %w", err)
		}
		s, err = NewPostgRESTPostStore(opts, nil)

	default:
		return nil, fmt.Errorf("unknown store type '%s'", conf.Type)
	}
	if err != nil {
		return nil, err
	}

	if m, ok := s.(Migrator); ok && autoMigrate {
		log.Ctx(ctx).Info().Str("store", conf.Type).Msg("applying schema")
		if err := m.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}
