package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/agent-orchestrator/core/internal/port/gitprovider"
	"github.com/agent-orchestrator/core/internal/port/securestore"
)

const settingsFile = "git-providers.json"

// providerSettings is the per-provider block in the settings document.
type providerSettings struct {
	ClientID string `json:"clientId,omitempty"`
	BaseURL  string `json:"baseUrl,omitempty"`
}

// registrySettings is the persisted registry configuration, keyed by provider
// type. A missing file means everything at defaults.
type registrySettings map[string]providerSettings

// ProviderInfo is static display metadata for a provider, used by clients to
// render connection UIs without asking each adapter.
type ProviderInfo struct {
	Type               gitprovider.Type `json:"type"`
	Label              string           `json:"label"`
	Color              string           `json:"color"`
	DocsURL            string           `json:"docs_url"`
	OAuthAppURL        string           `json:"oauth_app_url"`
	SupportsDeviceFlow bool             `json:"supports_device_flow"`
}

// Registry owns one provider instance per registered type and the settings
// document that configures them. Changing the GitLab base URL swaps in a
// freshly constructed GitLab provider.
type Registry struct {
	mu         sync.RWMutex
	providers  map[gitprovider.Type]gitprovider.Provider
	settings   registrySettings
	path       string
	store      securestore.Store
	httpClient *http.Client
	log        *slog.Logger
}

// NewRegistry loads settings from dataDir and constructs every registered
// provider.
func NewRegistry(dataDir string, store securestore.Store, httpClient *http.Client, log *slog.Logger) (*Registry, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	r := &Registry{
		providers:  make(map[gitprovider.Type]gitprovider.Provider),
		settings:   make(registrySettings),
		path:       filepath.Join(dataDir, settingsFile),
		store:      store,
		httpClient: httpClient,
		log:        log,
	}
	if err := r.loadSettings(); err != nil {
		return nil, err
	}

	for _, t := range gitprovider.Types() {
		p, err := r.build(t)
		if err != nil {
			return nil, err
		}
		r.providers[t] = p
	}
	return r, nil
}

func (r *Registry) build(t gitprovider.Type) (gitprovider.Provider, error) {
	deps := gitprovider.Deps{Store: r.store, HTTPClient: r.httpClient}
	if t == gitprovider.TypeGitLab {
		deps.BaseURL = r.settings[string(t)].BaseURL
	}
	p, err := gitprovider.New(t, deps)
	if err != nil {
		return nil, fmt.Errorf("build provider %s: %w", t, err)
	}
	return p, nil
}

func (r *Registry) loadSettings() error {
	raw, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read provider settings: %w", err)
	}
	if err := json.Unmarshal(raw, &r.settings); err != nil {
		return fmt.Errorf("parse provider settings: %w", err)
	}
	return nil
}

// saveSettings is called with r.mu held.
func (r *Registry) saveSettings() error {
	raw, err := json.MarshalIndent(r.settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode provider settings: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write provider settings: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace provider settings: %w", err)
	}
	return nil
}

// Provider returns the instance for a type.
func (r *Registry) Provider(t gitprovider.Type) (gitprovider.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[t]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", t)
	}
	return p, nil
}

// Providers returns all provider instances in registration order.
func (r *Registry) Providers() []gitprovider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]gitprovider.Provider, 0, len(r.providers))
	for _, t := range gitprovider.Types() {
		if p, ok := r.providers[t]; ok {
			out = append(out, p)
		}
	}
	return out
}

// ClientID returns the configured OAuth client ID for a provider, empty when
// unset.
func (r *Registry) ClientID(t gitprovider.Type) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings[string(t)].ClientID
}

// SetClientID stores the OAuth app client ID for a provider.
func (r *Registry) SetClientID(t gitprovider.Type, clientID string) error {
	if !t.Valid() {
		return fmt.Errorf("unknown provider %q", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.settings[string(t)]
	s.ClientID = clientID
	r.settings[string(t)] = s
	return r.saveSettings()
}

// BaseURL returns the configured base URL for a provider, empty for
// providers without configurable hosts.
func (r *Registry) BaseURL(t gitprovider.Type) string {
	if t != gitprovider.TypeGitLab {
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings[string(t)].BaseURL
}

// SetBaseURL changes the GitLab instance URL and rebuilds its provider so
// subsequent calls target the new host. Only GitLab supports this.
func (r *Registry) SetBaseURL(t gitprovider.Type, baseURL string) error {
	if t != gitprovider.TypeGitLab {
		return fmt.Errorf("provider %q does not support a custom base URL", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.settings[string(t)]
	s.BaseURL = baseURL
	r.settings[string(t)] = s
	p, err := r.build(t)
	if err != nil {
		return err
	}
	r.providers[t] = p
	r.log.Info("gitlab base url changed", "base_url", baseURL)
	return r.saveSettings()
}

// ConnectedAccounts checks every provider for a stored credential and
// returns the authenticated user per connected provider. Providers that are
// unreachable or not connected are simply absent from the result.
func (r *Registry) ConnectedAccounts(ctx context.Context) (map[gitprovider.Type]*gitprovider.User, error) {
	providers := r.Providers()

	var mu sync.Mutex
	accounts := make(map[gitprovider.Type]*gitprovider.User)

	g, ctx := errgroup.WithContext(ctx)
	for _, p := range providers {
		g.Go(func() error {
			user, err := p.AuthenticatedUser(ctx)
			if err != nil || user == nil {
				if err != nil {
					r.log.Warn("account check failed", "provider", p.Type(), "error", err)
				}
				return nil
			}
			mu.Lock()
			accounts[p.Type()] = user
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Info returns the static metadata for one provider type.
func (r *Registry) Info(t gitprovider.Type) (*ProviderInfo, error) {
	switch t {
	case gitprovider.TypeGitHub:
		return &ProviderInfo{
			Type:               t,
			Label:              "GitHub",
			Color:              "#24292f",
			DocsURL:            "https://docs.github.com/en/apps/oauth-apps",
			OAuthAppURL:        "https://github.com/settings/developers",
			SupportsDeviceFlow: true,
		}, nil
	case gitprovider.TypeGitLab:
		base := r.BaseURL(t)
		if base == "" {
			base = "https://gitlab.com"
		}
		return &ProviderInfo{
			Type:               t,
			Label:              "GitLab",
			Color:              "#fc6d26",
			DocsURL:            "https://docs.gitlab.com/ee/api/oauth2.html",
			OAuthAppURL:        base + "/-/profile/applications",
			SupportsDeviceFlow: true,
		}, nil
	case gitprovider.TypeBitbucket:
		return &ProviderInfo{
			Type:               t,
			Label:              "Bitbucket",
			Color:              "#0052cc",
			DocsURL:            "https://support.atlassian.com/bitbucket-cloud/docs/app-passwords/",
			OAuthAppURL:        "https://bitbucket.org/account/settings/app-passwords/",
			SupportsDeviceFlow: false,
		}, nil
	}
	return nil, fmt.Errorf("unknown provider %q", t)
}

// Infos returns metadata for every registered provider.
func (r *Registry) Infos() []ProviderInfo {
	infos := make([]ProviderInfo, 0, len(gitprovider.Types()))
	for _, t := range gitprovider.Types() {
		if info, err := r.Info(t); err == nil {
			infos = append(infos, *info)
		}
	}
	return infos
}
