// Package securestore defines the secure credential store port. Secrets are
// addressed by a (service, account) pair; the OS keychain or an encrypted
// file vault sits behind the interface.
package securestore

import "context"

// Service is the fixed namespace every provider credential is stored under.
const Service = "agent-orchestrator"

// Credential is one stored (account, password) pair within a service.
type Credential struct {
	Account  string
	Password string
}

// Store is the secure credential store port. GetPassword returns an empty
// string and a nil error when no credential exists; absence is not a failure.
// DeletePassword reports whether anything was actually removed.
type Store interface {
	SetPassword(ctx context.Context, service, account, password string) error
	GetPassword(ctx context.Context, service, account string) (string, error)
	DeletePassword(ctx context.Context, service, account string) (bool, error)
	FindCredentials(ctx context.Context, service string) ([]Credential, error)
}
