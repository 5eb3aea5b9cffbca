package gitprovider

import (
	"errors"
	"fmt"
)

// Kind classifies provider failures into a small closed set so callers can
// branch without parsing message text. The message remains the primary
// user-facing signal.
type Kind string

// Failure kinds.
const (
	KindUnsupported Kind = "unsupported" // operation not offered by this provider
	KindAuth        Kind = "auth"        // invalid, expired or missing credential
	KindRemote      Kind = "remote"      // non-2xx response from the provider API
	KindTimeout     Kind = "timeout"     // device flow expired before authorization
	KindDenied      Kind = "denied"      // user or server rejected the grant
)

// Error is the failure type returned by every adapter. Status is the HTTP
// status code for remote failures, zero otherwise.
type Error struct {
	Kind     Kind
	Provider Type
	Status   int
	Message  string
}

func (e *Error) Error() string { return e.Message }

// RemoteError builds a remote-failure error in the canonical
// "{Provider} {status}: {body}" form.
func RemoteError(provider Type, status int, body string) *Error {
	return &Error{
		Kind:     KindRemote,
		Provider: provider,
		Status:   status,
		Message:  fmt.Sprintf("%s %d: %s", displayName(provider), status, body),
	}
}

// Errorf builds an *Error with a formatted message.
func Errorf(kind Kind, provider Type, format string, args ...any) *Error {
	return &Error{
		Kind:     kind,
		Provider: provider,
		Message:  fmt.Sprintf(format, args...),
	}
}

// KindOf extracts the failure kind from an error chain. Unclassified errors
// report KindRemote.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindRemote
}

func displayName(t Type) string {
	switch t {
	case TypeGitHub:
		return "GitHub"
	case TypeGitLab:
		return "GitLab"
	case TypeBitbucket:
		return "Bitbucket"
	}
	return string(t)
}
