// Package testutil provides a fake identity provider for tests.
package testutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ECKeyID  = "ec-1"
	RSAKeyID = "rsa-1"
)

type signer struct {
	kid string
	alg string
	key crypto.Signer
}

// IdP serves a JWKS document and mints tokens signed with its keys.
type IdP struct {
	Server *httptest.Server

	mu       sync.RWMutex
	signers  map[string]*signer
	hidden   map[string]bool
	status   int
	requests atomic.Int64
}

// NewIdP starts a fake provider publishing one ES256 and one RS256 key.
// The server is closed when the test ends.
func NewIdP(t testing.TB) *IdP {
	t.Helper()

	idp := &IdP{
		signers: make(map[string]*signer),
		hidden:  make(map[string]bool),
		status:  http.StatusOK,
	}
	idp.AddECKey(t, ECKeyID)
	idp.AddRSAKey(t, RSAKeyID)

	idp.Server = httptest.NewServer(http.HandlerFunc(idp.serveJWKS))
	t.Cleanup(idp.Server.Close)
	return idp
}

// JWKSURL returns the endpoint of the published key set.
func (p *IdP) JWKSURL() string {
	return p.Server.URL + "/.well-known/jwks.json"
}

// Requests returns how many times the key set was fetched.
func (p *IdP) Requests() int64 {
	return p.requests.Load()
}

// AddECKey generates a P-256 key and publishes it under kid.
func (p *IdP) AddECKey(t testing.TB, kid string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating ec key: %v", err)
	}
	p.addSigner(&signer{kid: kid, alg: "ES256", key: key})
}

// AddRSAKey generates a 2048 bit key and publishes it under kid.
func (p *IdP) AddRSAKey(t testing.TB, kid string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating rsa key: %v", err)
	}
	p.addSigner(&signer{kid: kid, alg: "RS256", key: key})
}

func (p *IdP) addSigner(s *signer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signers[s.kid] = s
	delete(p.hidden, s.kid)
}

// Hide keeps the key usable for signing but removes it from the key set.
func (p *IdP) Hide(kid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hidden[kid] = true
}

// Publish puts a hidden key back into the key set.
func (p *IdP) Publish(kid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.hidden, kid)
}

// FailWith makes the JWKS endpoint answer with status. Pass http.StatusOK to recover.
func (p *IdP) FailWith(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

func (p *IdP) serveJWKS(w http.ResponseWriter, _ *http.Request) {
	p.requests.Add(1)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.status != http.StatusOK {
		http.Error(w, http.StatusText(p.status), p.status)
		return
	}

	set := jose.JSONWebKeySet{}
	for kid, s := range p.signers {
		if p.hidden[kid] {
			continue
		}
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       s.key.Public(),
			KeyID:     kid,
			Algorithm: s.alg,
			Use:       "sig",
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(set)
}

func (p *IdP) lookup(t testing.TB, kid string) *signer {
	t.Helper()
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.signers[kid]
	if !ok {
		t.Fatalf("unknown signing key %q", kid)
	}
	return s
}

// PublicKey returns the public half of the key registered under kid
// and the algorithm it signs with.
func (p *IdP) PublicKey(t testing.TB, kid string) (crypto.PublicKey, string) {
	t.Helper()
	s := p.lookup(t, kid)
	return s.key.Public(), s.alg
}

// Mint signs claims with the key registered under kid.
func (p *IdP) Mint(t testing.TB, kid string, claims jwt.MapClaims) string {
	t.Helper()
	return p.MintWith(t, kid, claims, nil)
}

// MintWith is like Mint but lets the caller edit the token before signing.
func (p *IdP) MintWith(t testing.TB, kid string, claims jwt.MapClaims, edit func(*jwt.Token)) string {
	t.Helper()
	s := p.lookup(t, kid)

	token := jwt.NewWithClaims(jwt.GetSigningMethod(s.alg), claims)
	token.Header["kid"] = kid
	if edit != nil {
		edit(token)
	}

	signed, err := token.SignedString(s.key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

// Claims returns a valid claim set for sub that expires in an hour.
func Claims(sub, email string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"role":  "authenticated",
	}
}
