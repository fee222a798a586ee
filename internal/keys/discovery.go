package keys

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// JWKSURLFromIssuer derives the conventional key set location of an issuer.
func JWKSURLFromIssuer(issuer string) string {
	return strings.TrimSuffix(issuer, "/") + "/.well-known/jwks.json"
}

// DiscoverJWKSURL reads jwks_uri from the issuer's OpenID configuration.
func DiscoverJWKSURL(ctx context.Context, issuer string, client *http.Client) (string, error) {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}

	provider, err := oidc.NewProvider(ctx, strings.TrimSuffix(issuer, "/"))
	if err != nil {
		return "", fmt.Errorf("discovering issuer %q: %w", issuer, err)
	}

	var meta struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := provider.Claims(&meta); err != nil {
		return "", fmt.Errorf("reading discovery document: %w", err)
	}
	if meta.JWKSURI == "" {
		return "", fmt.Errorf("issuer %q does not advertise a jwks_uri", issuer)
	}
	return meta.JWKSURI, nil
}
