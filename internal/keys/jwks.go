package keys

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-jose/go-jose/v4"
	"github.com/rs/zerolog/log"

	"github.com/KatnessChen/MaraMap-Backend/internal/buildinfo"
)

const maxKeySetSize = 1 << 20

// keySetDocument is decoded leniently so one unsupported key does not
// discard the whole set.
type keySetDocument struct {
	Keys []json.RawMessage `json:"keys"`
}

func fetchKeySet(ctx context.Context, client *http.Client, url string) ([]*SigningKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent("jwks"))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching jwks: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetSize))
	if err != nil {
		return nil, fmt.Errorf("reading jwks: %w", err)
	}
	return parseKeySet(ctx, body)
}

func parseKeySet(ctx context.Context, body []byte) ([]*SigningKey, error) {
	var doc keySetDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decoding jwks: %w", err)
	}

	logger := log.Ctx(ctx)
	var out []*SigningKey
	for i, raw := range doc.Keys {
		var jwk jose.JSONWebKey
		if err := jwk.UnmarshalJSON(raw); err != nil {
			logger.Warn().Err(err).Int("index", i).Msg("skipping unparsable jwk")
			continue
		}
		if jwk.KeyID == "" {
			logger.Debug().Int("index", i).Msg("skipping jwk without kid")
			continue
		}
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		if !jwk.Valid() {
			logger.Warn().Str("kid", jwk.KeyID).Msg("skipping invalid jwk")
			continue
		}
		if !jwk.IsPublic() {
			// symmetric keys have no public half
			kid := jwk.KeyID
			if jwk = jwk.Public(); jwk.Key == nil {
				logger.Warn().Str("kid", kid).Msg("skipping non-asymmetric jwk")
				continue
			}
		}
		out = append(out, &SigningKey{
			KeyID:     jwk.KeyID,
			Algorithm: jwk.Algorithm,
			Use:       jwk.Use,
			Key:       jwk.Key,
		})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("jwks contains no usable signing keys")
	}
	return out, nil
}
