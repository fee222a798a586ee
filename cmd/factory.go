package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/KatnessChen/MaraMap-Backend/internal/auth"
	"github.com/KatnessChen/MaraMap-Backend/internal/cliconfig"
	"github.com/KatnessChen/MaraMap-Backend/internal/config"
	"github.com/KatnessChen/MaraMap-Backend/internal/keys"
	"github.com/KatnessChen/MaraMap-Backend/pkg/client"
)

type Factory struct {
	// RemoteAddr is the URL of the MaraMap server to connect to.
	RemoteAddr string

	// Token overrides the stored credential for RemoteAddr.
	Token string
}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) serverURL() string {
	if f.RemoteAddr != "" { // prio 1: command-line flag
		return f.RemoteAddr
	}
	return viper.GetString(ServerURLKey) // prio 2: config/env
}

// GetClient returns an HTTP client for the remote server, authenticated when
// a token is available.
func (f *Factory) GetClient() (*client.Client, error) {
	server := f.serverURL()
	if server == "" {
		return nil, fmt.Errorf("server address not configured (use --server or set MARAMAP_SERVER)")
	}

	token := f.Token
	if token == "" {
		token = viper.GetString(TokenKey) // MARAMAP_TOKEN
	}
	if token == "" {
		cfg, err := cliconfig.Load()
		if err != nil {
			return nil, err
		}
		cred, err := cfg.GetCredential(server)
		switch {
		case err == nil:
			if cred.Expired(timeNow()) {
				log.Warn().Msgf("stored token for %s expired at %s, run 'maramap login' again", server, cred.ExpiresAt)
			}
			token = cred.Token
		case !errors.Is(err, cliconfig.ErrCredentialNotFound):
			return nil, err
		}
	}

	var opts []client.Option
	if token != "" {
		opts = append(opts, client.WithAuthToken(token))
	}
	return client.New(server, opts...)
}

// LoadServerConfig loads the --config file, applies environment overrides
// and validates the result.
func (f *Factory) LoadServerConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.ApplyOverrides(viper.GetViper())
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// JWKSURL returns the configured key set location, discovering it from the
// issuer when enabled.
func (f *Factory) JWKSURL(ctx context.Context, conf config.AuthConfig) (string, error) {
	switch {
	case conf.JWKSURL != "":
		return conf.JWKSURL, nil
	case conf.Discovery:
		client := &http.Client{Timeout: conf.FetchTimeout}
		url, err := keys.DiscoverJWKSURL(ctx, conf.IssuerURL, client)
		if err != nil {
			return "", fmt.Errorf("discovering jwks url: %w", err)
		}
		log.Ctx(ctx).Info().Str("jwks_url", url).Msg("discovered key set location")
		return url, nil
	default:
		return keys.JWKSURLFromIssuer(conf.IssuerURL), nil
	}
}

func (f *Factory) BuildResolver(ctx context.Context, conf config.AuthConfig) (*keys.Resolver, error) {
	url, err := f.JWKSURL(ctx, conf)
	if err != nil {
		return nil, err
	}
	return keys.NewResolver(keys.Config{
		JWKSURL:          url,
		CacheTTL:         conf.CacheTTL,
		NegativeTTL:      conf.NegativeTTL,
		RefreshPerMinute: conf.RefreshPerMinute,
		RefreshBurst:     conf.RefreshBurst,
		FetchTimeout:     conf.FetchTimeout,
	})
}

func (f *Factory) BuildVerifier(conf config.AuthConfig, resolver auth.KeyResolver) *auth.Verifier {
	opts := []auth.Option{
		auth.WithLeeway(conf.Leeway),
	}
	if len(conf.Algorithms) > 0 {
		opts = append(opts, auth.WithAlgorithms(conf.Algorithms...))
	}
	if conf.CheckIssuer {
		opts = append(opts, auth.WithIssuer(conf.IssuerURL))
	}
	if conf.Audience != "" {
		opts = append(opts, auth.WithAudience(conf.Audience))
	}
	return auth.NewVerifier(resolver, opts...)
}
