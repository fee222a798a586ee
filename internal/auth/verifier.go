// Package auth verifies bearer tokens issued by the identity provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/KatnessChen/MaraMap-Backend/internal/core"
	"github.com/KatnessChen/MaraMap-Backend/internal/keys"
)

var DefaultAlgorithms = []string{"RS256", "ES256"}

// KeyResolver looks up the public key a token was signed with.
type KeyResolver interface {
	Resolve(ctx context.Context, kid string) (*keys.SigningKey, error)
}

type Option func(*Verifier)

// WithAlgorithms replaces the accepted signing algorithms.
func WithAlgorithms(algs ...string) Option {
	return func(v *Verifier) {
		if len(algs) > 0 {
			v.algorithms = algs
		}
	}
}

// WithLeeway allows for clock skew when checking exp, nbf and iat.
func WithLeeway(d time.Duration) Option {
	return func(v *Verifier) {
		v.leeway = d
	}
}

// WithClock sets the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// WithIssuer requires the iss claim to equal iss.
func WithIssuer(iss string) Option {
	return func(v *Verifier) {
		v.issuer = iss
	}
}

// WithAudience requires aud to contain aud.
func WithAudience(aud string) Option {
	return func(v *Verifier) {
		v.audience = aud
	}
}

type Verifier struct {
	resolver   KeyResolver
	algorithms []string
	leeway     time.Duration
	now        func() time.Time
	issuer     string
	audience   string
}

func NewVerifier(resolver KeyResolver, opts ...Option) *Verifier {
	v := &Verifier{
		resolver:   resolver,
		algorithms: DefaultAlgorithms,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the token and returns the principal it identifies.
// The signature is checked before any claim, so a forged token is reported
// as invalid_signature even if it is also expired.
func (v *Verifier) Verify(ctx context.Context, raw string) (*core.Principal, error) {
	if raw == "" {
		return nil, reject(ReasonMalformed, errors.New("empty token"))
	}

	unverified, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, reject(ReasonMalformed, err)
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, reject(ReasonMalformed, errors.New("token header has no kid"))
	}
	alg := unverified.Method.Alg()
	if !slices.Contains(v.algorithms, alg) {
		return nil, reject(ReasonMalformed, fmt.Errorf("signing algorithm %q is not accepted", alg))
	}

	key, err := v.resolver.Resolve(ctx, kid)
	switch {
	case errors.Is(err, keys.ErrKeyNotFound):
		return nil, reject(ReasonUnknownKey, err)
	case err != nil:
		return nil, reject(ReasonKeyUnavailable, err)
	}
	if key.Algorithm != "" && key.Algorithm != alg {
		return nil, reject(ReasonInvalidSig,
			fmt.Errorf("key %q is for %s, token uses %s", kid, key.Algorithm, alg))
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{alg}),
		jwt.WithoutClaimsValidation(),
	)
	token, err := parser.Parse(raw, func(*jwt.Token) (any, error) {
		return key.Key, nil
	})
	if err != nil {
		return nil, reject(ReasonInvalidSig, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, reject(ReasonMalformedClaims, errors.New("unexpected claims type"))
	}
	if err := v.validator().Validate(claims); err != nil {
		return nil, reject(claimsReason(err), err)
	}

	return principalFromClaims(claims)
}

func (v *Verifier) validator() *jwt.Validator {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(v.now),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	return jwt.NewValidator(opts...)
}

func claimsReason(err error) Reason {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ReasonNotYetValid
	default:
		return ReasonMalformedClaims
	}
}

func principalFromClaims(claims jwt.MapClaims) (*core.Principal, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, reject(ReasonMalformedClaims, errors.New("sub claim is missing or not a string"))
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return nil, reject(ReasonMalformedClaims, errors.New("email claim is missing or not a string"))
	}

	rest := make(map[string]any, len(claims))
	for k, val := range claims {
		if k == "sub" || k == "email" {
			continue
		}
		rest[k] = val
	}
	return &core.Principal{
		Subject: sub,
		Email:   email,
		Claims:  rest,
	}, nil
}
