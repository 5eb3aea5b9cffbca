package securestore

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store used by tests and as a last-resort fallback
// when no on-disk vault can be opened. Contents do not survive a restart.
type Memory struct {
	mu      sync.RWMutex
	secrets map[string]string // "service\x00account" -> password
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{secrets: make(map[string]string)}
}

var _ Store = (*Memory)(nil)

func memKey(service, account string) string { return service + "\x00" + account }

// SetPassword stores password under (service, account), overwriting any
// previous value.
func (m *Memory) SetPassword(_ context.Context, service, account, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[memKey(service, account)] = password
	return nil
}

// GetPassword returns the stored password, or "" when absent.
func (m *Memory) GetPassword(_ context.Context, service, account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.secrets[memKey(service, account)], nil
}

// DeletePassword removes the credential and reports whether one existed.
func (m *Memory) DeletePassword(_ context.Context, service, account string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(service, account)
	_, ok := m.secrets[k]
	delete(m.secrets, k)
	return ok, nil
}

// FindCredentials returns every credential stored under service, sorted by
// account for deterministic output.
func (m *Memory) FindCredentials(_ context.Context, service string) ([]Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := service + "\x00"
	creds := make([]Credential, 0)
	for k, v := range m.secrets {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			creds = append(creds, Credential{Account: k[len(prefix):], Password: v})
		}
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].Account < creds[j].Account })
	return creds, nil
}
