package service

import "fmt"

// LoginErrorKind classifies why an OAuth callback failed.  The value is the
// coarse code placed in the frontend redirect.
type LoginErrorKind string

const (
	KindMissingCode      LoginErrorKind = "no_code"
	KindInvalidState     LoginErrorKind = "invalid_state"
	KindExchangeFailed   LoginErrorKind = "exchange_failed"
	KindProfileFailed    LoginErrorKind = "profile_failed"
	KindStoreUnavailable LoginErrorKind = "store_unavailable"
	KindIdentityConflict LoginErrorKind = "identity_conflict"
	KindSigningFailed    LoginErrorKind = "signing_failed"
)

// LoginError is returned by every step of the login flow.
type LoginError struct {
	Kind LoginErrorKind
	Err  error
}

func (e *LoginError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *LoginError) Unwrap() error { return e.Err }

func loginErr(kind LoginErrorKind, err error) *LoginError {
	return &LoginError{Kind: kind, Err: err}
}
