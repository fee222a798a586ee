package auth

import "fmt"

// Reason classifies why a token was rejected.
// It is logged and counted, never sent to the client.
type Reason string

const (
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonMalformed       Reason = "malformed"
	ReasonUnknownKey      Reason = "unknown_key"
	ReasonKeyUnavailable  Reason = "key_unavailable"
	ReasonInvalidSig      Reason = "invalid_signature"
	ReasonExpired         Reason = "expired"
	ReasonNotYetValid     Reason = "not_yet_valid"
	ReasonMalformedClaims Reason = "malformed_claims"
)

// Error is returned by the verifier for every rejected token.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "token rejected: " + string(e.Reason)
	}
	return fmt.Sprintf("token rejected (%s): %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func reject(reason Reason, err error) *Error {
	return &Error{Reason: reason, Err: err}
}
