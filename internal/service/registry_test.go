package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agent-orchestrator/core/internal/adapter/gitlab"
	"github.com/agent-orchestrator/core/internal/port/gitprovider"
	"github.com/agent-orchestrator/core/internal/port/securestore"

	_ "github.com/agent-orchestrator/core/internal/adapter/bitbucket"
	_ "github.com/agent-orchestrator/core/internal/adapter/github"
)

// fakeTransport routes every request through a function, keeping provider
// calls off the network.
type fakeTransport func(*http.Request) (*http.Response, error)

func (f fakeTransport) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T, client *http.Client) (*Registry, securestore.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store := securestore.NewMemory()
	r, err := NewRegistry(dir, store, client, testLogger())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r, store, dir
}

func TestRegistryBuildsAllProviders(t *testing.T) {
	r, _, _ := newTestRegistry(t, nil)

	providers := r.Providers()
	if len(providers) != 3 {
		t.Fatalf("got %d providers, want 3", len(providers))
	}
	for _, typ := range gitprovider.Types() {
		p, err := r.Provider(typ)
		if err != nil {
			t.Fatalf("Provider(%s): %v", typ, err)
		}
		if p.Type() != typ {
			t.Errorf("Provider(%s).Type() = %s", typ, p.Type())
		}
	}
	if _, err := r.Provider(gitprovider.Type("sourcehut")); err == nil {
		t.Error("expected error for unknown provider type")
	}
}

func TestSetClientIDPersists(t *testing.T) {
	r, store, dir := newTestRegistry(t, nil)

	if err := r.SetClientID(gitprovider.TypeGitHub, "Iv1.abc"); err != nil {
		t.Fatalf("SetClientID: %v", err)
	}
	if got := r.ClientID(gitprovider.TypeGitHub); got != "Iv1.abc" {
		t.Errorf("ClientID = %q", got)
	}

	reopened, err := NewRegistry(dir, store, nil, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.ClientID(gitprovider.TypeGitHub); got != "Iv1.abc" {
		t.Errorf("ClientID after reopen = %q", got)
	}

	if err := r.SetClientID(gitprovider.Type("sourcehut"), "x"); err == nil {
		t.Error("expected error for unknown provider type")
	}
}

func TestSetBaseURLRebuildsGitLab(t *testing.T) {
	r, store, dir := newTestRegistry(t, nil)

	if err := r.SetBaseURL(gitprovider.TypeGitLab, "https://git.example.com"); err != nil {
		t.Fatalf("SetBaseURL: %v", err)
	}

	p, err := r.Provider(gitprovider.TypeGitLab)
	if err != nil {
		t.Fatalf("Provider: %v", err)
	}
	gl, ok := p.(*gitlab.Provider)
	if !ok {
		t.Fatalf("provider is %T, want *gitlab.Provider", p)
	}
	if gl.BaseURL() != "https://git.example.com" {
		t.Errorf("BaseURL = %q", gl.BaseURL())
	}

	reopened, err := NewRegistry(dir, store, nil, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.BaseURL(gitprovider.TypeGitLab); got != "https://git.example.com" {
		t.Errorf("BaseURL after reopen = %q", got)
	}

	if err := r.SetBaseURL(gitprovider.TypeGitHub, "https://x"); err == nil {
		t.Error("expected error: only gitlab supports a custom base URL")
	}
}

func TestRegistryReadsNestedSettingsDocument(t *testing.T) {
	dir := t.TempDir()
	doc := `{"github":{"clientId":"Iv1.abc"},"gitlab":{"clientId":"glid","baseUrl":"https://git.example.com"}}`
	if err := os.WriteFile(filepath.Join(dir, settingsFile), []byte(doc), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	r, err := NewRegistry(dir, securestore.NewMemory(), nil, testLogger())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if got := r.ClientID(gitprovider.TypeGitHub); got != "Iv1.abc" {
		t.Errorf("github client id = %q", got)
	}
	if got := r.ClientID(gitprovider.TypeGitLab); got != "glid" {
		t.Errorf("gitlab client id = %q", got)
	}
	if got := r.BaseURL(gitprovider.TypeGitLab); got != "https://git.example.com" {
		t.Errorf("gitlab base url = %q", got)
	}

	p, err := r.Provider(gitprovider.TypeGitLab)
	if err != nil {
		t.Fatalf("Provider: %v", err)
	}
	if gl := p.(*gitlab.Provider); gl.BaseURL() != "https://git.example.com" {
		t.Errorf("provider built with base url %q", gl.BaseURL())
	}
}

func TestRegistryWritesNestedSettingsDocument(t *testing.T) {
	r, _, dir := newTestRegistry(t, nil)

	if err := r.SetClientID(gitprovider.TypeGitHub, "Iv1.abc"); err != nil {
		t.Fatalf("SetClientID: %v", err)
	}
	if err := r.SetBaseURL(gitprovider.TypeGitLab, "https://git.example.com"); err != nil {
		t.Fatalf("SetBaseURL: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, settingsFile))
	if err != nil {
		t.Fatalf("read settings: %v", err)
	}
	var doc map[string]map[string]string
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("parse settings: %v", err)
	}
	if got := doc["github"]["clientId"]; got != "Iv1.abc" {
		t.Errorf("github.clientId = %q", got)
	}
	if got := doc["gitlab"]["baseUrl"]; got != "https://git.example.com" {
		t.Errorf("gitlab.baseUrl = %q", got)
	}
}

func TestConnectedAccountsSkipsUnconnectedAndFailing(t *testing.T) {
	client := &http.Client{Transport: fakeTransport(func(r *http.Request) (*http.Response, error) {
		if r.Host == "api.github.com" && strings.HasSuffix(r.URL.Path, "/user") {
			return jsonResponse(200, `{"login":"octocat","name":"The Octocat"}`), nil
		}
		return jsonResponse(500, `{"message":"boom"}`), nil
	})}

	r, store, _ := newTestRegistry(t, client)
	ctx := context.Background()

	// Only GitHub has a stored credential; GitLab stays unconnected and
	// Bitbucket's stored credential hits a failing API.
	if err := store.SetPassword(ctx, securestore.Service, "github-oauth-token", "gho_x"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if err := store.SetPassword(ctx, securestore.Service, "bitbucket-credentials", `{"username":"u","appPassword":"p"}`); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}

	accounts, err := r.ConnectedAccounts(ctx)
	if err != nil {
		t.Fatalf("ConnectedAccounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("got %d accounts, want 1: %v", len(accounts), accounts)
	}
	user := accounts[gitprovider.TypeGitHub]
	if user == nil || user.Login != "octocat" {
		t.Errorf("github account = %+v", user)
	}
}

func TestInfoMetadata(t *testing.T) {
	r, _, _ := newTestRegistry(t, nil)

	infos := r.Infos()
	if len(infos) != 3 {
		t.Fatalf("got %d infos, want 3", len(infos))
	}

	gh, err := r.Info(gitprovider.TypeGitHub)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if gh.Color != "#24292f" || !gh.SupportsDeviceFlow {
		t.Errorf("github info = %+v", gh)
	}

	bb, err := r.Info(gitprovider.TypeBitbucket)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if bb.Color != "#0052cc" || bb.SupportsDeviceFlow {
		t.Errorf("bitbucket info = %+v", bb)
	}

	if err := r.SetBaseURL(gitprovider.TypeGitLab, "https://git.example.com"); err != nil {
		t.Fatalf("SetBaseURL: %v", err)
	}
	gl, err := r.Info(gitprovider.TypeGitLab)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if gl.Color != "#fc6d26" {
		t.Errorf("gitlab info = %+v", gl)
	}
	if !strings.HasPrefix(gl.OAuthAppURL, "https://git.example.com") {
		t.Errorf("gitlab oauth app url = %q", gl.OAuthAppURL)
	}
}
