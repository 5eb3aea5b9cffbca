// Package securefile provides an encrypted, file-backed credential store for
// installations without an OS keychain. Credentials live in a single
// AES-256-GCM sealed JSON document; the key is derived from a random keyfile
// created next to it on first use.
package securefile

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/agent-orchestrator/core/internal/port/securestore"
)

const (
	credentialsFile = "credentials.enc"
	defaultKeyFile  = ".credentials.key"
	secretSize      = 32
)

// Store implements securestore.Store on top of an encrypted file.
type Store struct {
	mu   sync.Mutex
	path string
	key  []byte
}

var _ securestore.Store = (*Store)(nil)

// New opens the credential store under dir, creating the directory and the
// keyfile on first use. keyFile names the keyfile inside dir; empty means the
// default name. The keyfile holds salt plus secret; losing it makes the
// credential file unreadable.
func New(dir, keyFile string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	if keyFile == "" {
		keyFile = defaultKeyFile
	}
	key, err := loadOrCreateKey(filepath.Join(dir, keyFile))
	if err != nil {
		return nil, err
	}
	return &Store{path: filepath.Join(dir, credentialsFile), key: key}, nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		raw = make([]byte, saltSize+secretSize)
		if _, err := io.ReadFull(rand.Reader, raw); err != nil {
			return nil, fmt.Errorf("generate keyfile: %w", err)
		}
		if err := os.WriteFile(path, raw, 0o600); err != nil {
			return nil, fmt.Errorf("write keyfile: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read keyfile: %w", err)
	}
	if len(raw) != saltSize+secretSize {
		return nil, fmt.Errorf("keyfile %s is corrupt", path)
	}
	return deriveKey(raw[saltSize:], raw[:saltSize]), nil
}

// document is the decrypted on-disk layout: service -> account -> password.
type document map[string]map[string]string

func (s *Store) SetPassword(_ context.Context, service, account, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if doc[service] == nil {
		doc[service] = make(map[string]string)
	}
	doc[service][account] = password
	return s.save(doc)
}

func (s *Store) GetPassword(_ context.Context, service, account string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", err
	}
	return doc[service][account], nil
}

func (s *Store) DeletePassword(_ context.Context, service, account string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return false, err
	}
	accounts, ok := doc[service]
	if !ok {
		return false, nil
	}
	if _, ok := accounts[account]; !ok {
		return false, nil
	}
	delete(accounts, account)
	if len(accounts) == 0 {
		delete(doc, service)
	}
	return true, s.save(doc)
}

func (s *Store) FindCredentials(_ context.Context, service string) ([]securestore.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	creds := make([]securestore.Credential, 0, len(doc[service]))
	for account, password := range doc[service] {
		creds = append(creds, securestore.Credential{Account: account, Password: password})
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].Account < creds[j].Account })
	return creds, nil
}

func (s *Store) load() (document, error) {
	sealed, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(document), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	plain, err := decrypt(sealed, s.key)
	if err != nil {
		return nil, fmt.Errorf("decrypt credentials: %w", err)
	}
	var doc document
	if err := json.Unmarshal(plain, &doc); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if doc == nil {
		doc = make(document)
	}
	return doc, nil
}

// save writes via a temp file and rename so a crash mid-write never leaves a
// truncated credential file.
func (s *Store) save(doc document) error {
	plain, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	sealed, err := encrypt(plain, s.key)
	if err != nil {
		return fmt.Errorf("encrypt credentials: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}
