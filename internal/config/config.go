package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/viper"

	"github.com/KatnessChen/MaraMap-Backend/internal/core"
)

const (
	StoreMemory    = "memory"
	StorePostgres  = "postgres"
	StoreSQLite    = "sqlite"
	StorePostgREST = "postgrest"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Auth   AuthConfig   `yaml:"auth"`
	Store  StoreConfig  `yaml:"store"`
	Audit  AuditConfig  `yaml:"audit"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes bounds the size of an ingest request body.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// AuthConfig holds configuration for verifying bearer tokens.
type AuthConfig struct {
	// IssuerURL is the base URL of the identity provider,
	// e.g. https://<project>.supabase.co/auth/v1
	IssuerURL string `yaml:"issuer_url"`

	// JWKSURL overrides the key set location. If empty it is derived from
	// IssuerURL, or discovered when Discovery is set.
	JWKSURL   string `yaml:"jwks_url"`
	Discovery bool   `yaml:"discovery"`

	// CheckIssuer requires the iss claim to equal IssuerURL.
	CheckIssuer bool   `yaml:"check_issuer"`
	Audience    string `yaml:"audience"`

	Algorithms []string      `yaml:"algorithms"`
	Leeway     time.Duration `yaml:"leeway"`

	CacheTTL         time.Duration `yaml:"cache_ttl"`
	NegativeTTL      time.Duration `yaml:"negative_ttl"`
	RefreshPerMinute int           `yaml:"refresh_per_minute"`
	RefreshBurst     int           `yaml:"refresh_burst"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`

	// PrefetchInterval schedules a background key refresh. Zero disables it.
	PrefetchInterval time.Duration `yaml:"prefetch_interval"`

	// Admin decides which principals may use the admin routes. Unset disables them.
	Admin *core.Condition `yaml:"admin"`
}

// StoreConfig selects the post store. Backend specific options are kept
// inline and decoded by the store package.
type StoreConfig struct {
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:",inline"`
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Type     string `yaml:"type"` // e.g., "file", "memory"
	Path     string `yaml:"path"`
	Capacity int    `yaml:"capacity"`
}

// Default returns a configuration that serves on :8080 with an in-memory store.
// It still needs an issuer to be usable.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Auth: AuthConfig{
			Algorithms:       []string{"RS256", "ES256"},
			CacheTTL:         time.Hour,
			NegativeTTL:      30 * time.Second,
			RefreshPerMinute: 10,
			RefreshBurst:     1,
			FetchTimeout:     5 * time.Second,
		},
		Store: StoreConfig{
			Type: StoreMemory,
		},
	}
}

// Load reads and parses the configuration file at the given path on top of
// the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Environment and flag keys understood by ApplyOverrides.
const (
	ServerAddrKey     = "server.addr"
	AuthIssuerURLKey  = "auth.issuer_url"
	AuthJWKSURLKey    = "auth.jwks_url"
	AuthDiscoveryKey  = "auth.discovery"
	StoreTypeKey      = "store.type"
	StoreDSNKey       = "store.dsn"
	StoreURLKey       = "store.url"
	StoreServiceKey   = "store.service_key"
	AuditEnabledKey   = "audit.enabled"
	AuditPathKey      = "audit.path"
	SupabaseURLKey    = "supabase_url"
	SupabaseSecretKey = "supabase_service_role_key"
)

// BindEnv registers the deployment variables of the hosted setup, which are
// read without the application prefix.
func BindEnv(v *viper.Viper) {
	_ = v.BindEnv(SupabaseURLKey, "SUPABASE_URL")
	_ = v.BindEnv(SupabaseSecretKey, "SUPABASE_SERVICE_ROLE_KEY")
	for _, key := range []string{
		ServerAddrKey, AuthIssuerURLKey, AuthJWKSURLKey, AuthDiscoveryKey,
		StoreTypeKey, StoreDSNKey, StoreURLKey, StoreServiceKey,
		AuditEnabledKey, AuditPathKey,
	} {
		_ = v.BindEnv(key)
	}
}

// ApplyOverrides copies values set through flags or the environment into c.
func (c *Config) ApplyOverrides(v *viper.Viper) {
	if s := v.GetString(ServerAddrKey); s != "" {
		c.Server.Addr = s
	}
	if s := v.GetString(AuthIssuerURLKey); s != "" {
		c.Auth.IssuerURL = s
	}
	if s := v.GetString(AuthJWKSURLKey); s != "" {
		c.Auth.JWKSURL = s
	}
	if v.IsSet(AuthDiscoveryKey) {
		c.Auth.Discovery = v.GetBool(AuthDiscoveryKey)
	}
	if v.IsSet(AuditEnabledKey) {
		c.Audit.Enabled = v.GetBool(AuditEnabledKey)
	}
	if s := v.GetString(AuditPathKey); s != "" {
		c.Audit.Path = s
		c.Audit.Type = "file"
		if !v.IsSet(AuditEnabledKey) {
			c.Audit.Enabled = true
		}
	}

	storeType := v.GetString(StoreTypeKey)
	supabaseURL := strings.TrimSuffix(v.GetString(SupabaseURLKey), "/")
	if supabaseURL != "" {
		if c.Auth.IssuerURL == "" {
			c.Auth.IssuerURL = supabaseURL + "/auth/v1"
		}
		// the hosted deployment stores posts through the REST interface
		if storeType == "" && c.Store.Type == StoreMemory && len(c.Store.Options) == 0 {
			storeType = StorePostgREST
		}
	}
	if storeType != "" && storeType != c.Store.Type {
		c.Store.Type = storeType
		c.Store.Options = nil
	}

	setOpt := func(name, value string) {
		if value == "" {
			return
		}
		if c.Store.Options == nil {
			c.Store.Options = make(map[string]any)
		}
		c.Store.Options[name] = value
	}
	setOpt("dsn", v.GetString(StoreDSNKey))
	if c.Store.Type == StorePostgREST {
		setOpt("url", supabaseURL)
		setOpt("service_key", v.GetString(SupabaseSecretKey))
	}
	setOpt("url", v.GetString(StoreURLKey))
	setOpt("service_key", v.GetString(StoreServiceKey))
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must not be negative")
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("validating auth: %w", err)
	}
	switch c.Store.Type {
	case StoreMemory, StorePostgres, StoreSQLite, StorePostgREST:
	default:
		return fmt.Errorf("unknown store type '%s'", c.Store.Type)
	}
	if c.Audit.Enabled && c.Audit.Type == "file" && c.Audit.Path == "" {
		return fmt.Errorf("audit type 'file' requires a path")
	}
	return nil
}

var supportedAlgorithms = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "PS256", "PS384", "PS512", "EdDSA"}

func (a *AuthConfig) Validate() error {
	if a.IssuerURL == "" && a.JWKSURL == "" {
		return fmt.Errorf("either issuer_url or jwks_url is required")
	}
	for name, raw := range map[string]string{"issuer_url": a.IssuerURL, "jwks_url": a.JWKSURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an absolute http(s) url", name)
		}
	}
	if a.Discovery && a.IssuerURL == "" {
		return fmt.Errorf("discovery requires issuer_url")
	}
	if a.CheckIssuer && a.IssuerURL == "" {
		return fmt.Errorf("check_issuer requires issuer_url")
	}
	for _, alg := range a.Algorithms {
		if alg == "none" || strings.HasPrefix(alg, "HS") {
			return fmt.Errorf("algorithm %q cannot be verified with a public key", alg)
		}
		if !slices.Contains(supportedAlgorithms, alg) {
			return fmt.Errorf("unsupported algorithm %q", alg)
		}
	}
	if err := a.Admin.Validate(); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	if a.Leeway < 0 {
		return fmt.Errorf("leeway must not be negative")
	}
	if a.RefreshPerMinute < 0 || a.RefreshBurst < 0 {
		return fmt.Errorf("refresh limits must not be negative")
	}
	if a.RefreshPerMinute > 0 && a.RefreshBurst > a.RefreshPerMinute {
		return fmt.Errorf("refresh_burst must not exceed refresh_per_minute")
	}
	if a.PrefetchInterval != 0 && a.PrefetchInterval < time.Minute {
		return fmt.Errorf("prefetch_interval must be at least 1m")
	}
	return nil
}
