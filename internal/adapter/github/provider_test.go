package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agent-orchestrator/core/internal/port/gitprovider"
	"github.com/agent-orchestrator/core/internal/port/securestore"
)

var _ gitprovider.Provider = (*Provider)(nil)

func newTestProvider(t *testing.T, handler http.Handler) (*Provider, securestore.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := securestore.NewMemory()
	p := NewProvider(gitprovider.Deps{Store: store, HTTPClient: srv.Client()})
	p.apiURL = srv.URL
	p.deviceCodeURL = srv.URL + "/login/device/code"
	p.tokenURL = srv.URL + "/login/oauth/access_token"
	return p, store
}

func seedToken(t *testing.T, p *Provider) {
	t.Helper()
	if err := p.SaveToken(context.Background(), "gho_test"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
}

func TestValidateTokenSavesCredential(t *testing.T) {
	p, store := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer gho_new" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-GitHub-Api-Version"); got != apiVersion {
			t.Errorf("api version header = %q", got)
		}
		_, _ = w.Write([]byte(`{"login":"octocat","name":"The Octocat","avatar_url":"https://gh/avatar.png","email":"octo@example.com"}`))
	}))

	user, err := p.ValidateToken(context.Background(), "gho_new", nil)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if user == nil || user.Login != "octocat" {
		t.Fatalf("user = %+v", user)
	}
	if user.Provider != gitprovider.TypeGitHub {
		t.Errorf("provider = %s", user.Provider)
	}

	saved, err := store.GetPassword(context.Background(), securestore.Service, keyAccount)
	if err != nil {
		t.Fatalf("GetPassword: %v", err)
	}
	if saved != "gho_new" {
		t.Errorf("saved token = %q", saved)
	}
}

func TestValidateTokenRejected(t *testing.T) {
	p, store := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	}))

	user, err := p.ValidateToken(context.Background(), "bad", nil)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if user != nil {
		t.Fatalf("user = %+v, want nil", user)
	}
	if saved, _ := store.GetPassword(context.Background(), securestore.Service, keyAccount); saved != "" {
		t.Error("token was persisted for a rejected credential")
	}
}

func TestValidateTokenEmptyKeepsStoredCredential(t *testing.T) {
	p, store := newTestProvider(t, http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	seedToken(t, p)

	user, err := p.ValidateToken(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if user != nil {
		t.Fatalf("user = %+v, want nil", user)
	}
	if saved, _ := store.GetPassword(context.Background(), securestore.Service, keyAccount); saved != "gho_test" {
		t.Errorf("stored token = %q, want untouched", saved)
	}
}

func TestListRepositories(t *testing.T) {
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/repos" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("sort") != "updated" || q.Get("per_page") != "30" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[
			{"id":101,"name":"tool","full_name":"octocat/tool","private":true,"html_url":"https://gh/octocat/tool","default_branch":"main"}
		]`))
	}))
	seedToken(t, p)

	repos, err := p.ListRepositories(context.Background())
	if err != nil {
		t.Fatalf("ListRepositories: %v", err)
	}
	if len(repos) != 1 {
		t.Fatalf("got %d repos, want 1", len(repos))
	}
	if repos[0].ID != "101" || repos[0].FullName != "octocat/tool" || !repos[0].Private {
		t.Errorf("repo = %+v", repos[0])
	}
}

// gitDataServer fakes the Git Data API endpoints that a branch push touches
// and records the sequence of writes.
type gitDataServer struct {
	t *testing.T

	branchExists bool
	blobCount    int
	treePayload  map[string]any
	commitMsg    string
	refCreated   map[string]any
	refUpdated   map[string]any
}

func (s *gitDataServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	decode := func() map[string]any {
		var payload map[string]any
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			s.t.Errorf("decode %s: %v", r.URL.Path, err)
		}
		return payload
	}

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/git/refs/heads/main"):
		_, _ = w.Write([]byte(`{"object":{"sha":"base-sha"}}`))
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/git/refs/heads/feat/skill"):
		if !s.branchExists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"object":{"sha":"old-sha"}}`))
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/git/blobs"):
		s.blobCount++
		fmt.Fprintf(w, `{"sha":"blob-%d"}`, s.blobCount)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/git/trees"):
		s.treePayload = decode()
		_, _ = w.Write([]byte(`{"sha":"tree-sha"}`))
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/git/commits"):
		payload := decode()
		s.commitMsg, _ = payload["message"].(string)
		_, _ = w.Write([]byte(`{"sha":"commit-sha"}`))
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/git/refs"):
		s.refCreated = decode()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPatch && strings.HasSuffix(r.URL.Path, "/git/refs/heads/feat/skill"):
		s.refUpdated = decode()
		_, _ = w.Write([]byte(`{}`))
	default:
		s.t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestPushFilesToBranchCreatesRef(t *testing.T) {
	srv := &gitDataServer{t: t}
	p, _ := newTestProvider(t, srv)
	seedToken(t, p)

	files := []gitprovider.FileEntry{
		{Path: "skills/review.md", Content: "# Review"},
		{Path: "skills/triage.md", Content: "# Triage"},
	}
	if err := p.PushFilesToBranch(context.Background(), "octocat", "tool", "main", "feat/skill", files, "add skills"); err != nil {
		t.Fatalf("PushFilesToBranch: %v", err)
	}

	if srv.blobCount != 2 {
		t.Errorf("blobCount = %d, want 2", srv.blobCount)
	}
	if srv.treePayload["base_tree"] != "base-sha" {
		t.Errorf("base_tree = %v", srv.treePayload["base_tree"])
	}
	if srv.commitMsg != "add skills" {
		t.Errorf("commit message = %q", srv.commitMsg)
	}
	if srv.refCreated == nil {
		t.Fatal("ref was not created")
	}
	if srv.refCreated["ref"] != "refs/heads/feat/skill" || srv.refCreated["sha"] != "commit-sha" {
		t.Errorf("ref payload = %v", srv.refCreated)
	}
	if srv.refUpdated != nil {
		t.Error("ref was force-updated for a branch that does not exist")
	}
}

func TestPushFilesToBranchForceUpdatesExistingRef(t *testing.T) {
	srv := &gitDataServer{t: t, branchExists: true}
	p, _ := newTestProvider(t, srv)
	seedToken(t, p)

	files := []gitprovider.FileEntry{{Path: "a.txt", Content: "a"}}
	if err := p.PushFilesToBranch(context.Background(), "octocat", "tool", "main", "feat/skill", files, "more"); err != nil {
		t.Fatalf("PushFilesToBranch: %v", err)
	}

	if srv.refUpdated == nil {
		t.Fatal("existing ref was not updated")
	}
	if srv.refUpdated["force"] != true || srv.refUpdated["sha"] != "commit-sha" {
		t.Errorf("ref update payload = %v", srv.refUpdated)
	}
	if srv.refCreated != nil {
		t.Error("a new ref was created for an existing branch")
	}
}

func TestCreatePullRequest(t *testing.T) {
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octocat/tool/pulls" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["head"] != "feat/skill" || payload["base"] != "main" {
			t.Errorf("payload = %v", payload)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"number":12,"html_url":"https://gh/octocat/tool/pull/12","title":"Add skill"}`))
	}))
	seedToken(t, p)

	pr, err := p.CreatePullRequest(context.Background(), gitprovider.PROptions{
		Owner: "octocat", Repo: "tool", Title: "Add skill", Head: "feat/skill", Base: "main",
	})
	if err != nil {
		t.Fatalf("CreatePullRequest: %v", err)
	}
	if pr.Number != 12 || pr.URL != "https://gh/octocat/tool/pull/12" {
		t.Errorf("pr = %+v", pr)
	}
}

func TestListMarketplaceSnippetsFiltersByDescription(t *testing.T) {
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gists/public" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[
			{"id":"g1","description":"random scratchpad","public":true,"owner":{"login":"a"},"files":{}},
			{"id":"g2","description":"[agent-orchestrator] review skill","public":true,"html_url":"https://gh/gist/g2","owner":{"login":"b"},"files":{"skill.md":{"filename":"skill.md"}}},
			{"id":"g3","description":"","public":true,"files":{}}
		]`))
	}))
	seedToken(t, p)

	snippets, err := p.ListMarketplaceSnippets(context.Background())
	if err != nil {
		t.Fatalf("ListMarketplaceSnippets: %v", err)
	}
	if len(snippets) != 1 {
		t.Fatalf("got %d snippets, want 1", len(snippets))
	}
	s := snippets[0]
	if s.ID != "g2" || s.OwnerLogin != "b" {
		t.Errorf("snippet = %+v", s)
	}
	if _, ok := s.Files["skill.md"]; !ok {
		t.Errorf("files = %v", s.Files)
	}
}

func TestPublishAndGetSnippet(t *testing.T) {
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/gists":
			var payload struct {
				Description string                       `json:"description"`
				Public      bool                         `json:"public"`
				Files       map[string]map[string]string `json:"files"`
			}
			_ = json.NewDecoder(r.Body).Decode(&payload)
			if !payload.Public {
				t.Error("gist should be public")
			}
			if payload.Files["skill.md"]["content"] != "# Skill" {
				t.Errorf("files = %v", payload.Files)
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"g9","description":"` + payload.Description + `","public":true,"owner":{"login":"octocat"},"files":{"skill.md":{"filename":"skill.md","content":"# Skill"}}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/gists/g9":
			_, _ = w.Write([]byte(`{"id":"g9","description":"[agent-orchestrator] review","public":true,"owner":{"login":"octocat"},"files":{"skill.md":{"filename":"skill.md","content":"# Skill"}}}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	seedToken(t, p)

	published, err := p.PublishSnippet(context.Background(), "[agent-orchestrator] review",
		[]gitprovider.SnippetFile{{Filename: "skill.md", Content: "# Skill"}}, true)
	if err != nil {
		t.Fatalf("PublishSnippet: %v", err)
	}
	if published.ID != "g9" {
		t.Errorf("published = %+v", published)
	}

	got, err := p.GetSnippet(context.Background(), "g9")
	if err != nil {
		t.Fatalf("GetSnippet: %v", err)
	}
	if got.Files["skill.md"].Content != "# Skill" {
		t.Errorf("snippet files = %v", got.Files)
	}
}

func TestStartDeviceFlowFallbacks(t *testing.T) {
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login/device/code" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"device_code":"dc","user_code":"WXYZ-9876","verification_uri":"https://github.com/login/device","expires_in":899,"interval":7}`))
	}))

	auth, err := p.StartDeviceFlow(context.Background(), gitprovider.AppConfig{ClientID: "cid"})
	if err != nil {
		t.Fatalf("StartDeviceFlow: %v", err)
	}
	if auth.UserCode != "WXYZ-9876" || auth.ExpiresIn != 899 || auth.Interval != 7 {
		t.Errorf("auth = %+v", auth)
	}
}
