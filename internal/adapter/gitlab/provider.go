// Package gitlab implements a gitprovider.Provider for GitLab (gitlab.com or
// self-hosted) using the REST API v4. Branch pushes use the Commits API with
// an actions array, so a multi-file commit is a single request.
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/agent-orchestrator/core/internal/oauth"
	"github.com/agent-orchestrator/core/internal/port/gitprovider"
	"github.com/agent-orchestrator/core/internal/port/securestore"
)

const (
	defaultBaseURL = "https://gitlab.com"

	keyAccount   = "gitlab-oauth-token"
	deviceScopes = "api read_user"
)

// Provider implements gitprovider.Provider for GitLab. The base URL is baked
// in at construction; switching a self-hosted instance means constructing a
// new Provider (the registry owns that swap).
type Provider struct {
	baseURL    string
	store      securestore.Store
	httpClient *http.Client
}

// NewProvider creates a GitLab provider. deps.BaseURL selects a self-hosted
// instance; empty means gitlab.com.
func NewProvider(deps gitprovider.Deps) *Provider {
	base := deps.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Provider{
		baseURL:    strings.TrimSuffix(base, "/"),
		store:      deps.Store,
		httpClient: client,
	}
}

func (p *Provider) Type() gitprovider.Type { return gitprovider.TypeGitLab }

// BaseURL returns the instance this provider talks to.
func (p *Provider) BaseURL() string { return p.baseURL }

func (p *Provider) Capabilities() gitprovider.Capabilities {
	return gitprovider.Capabilities{DeviceFlow: true, Snippets: true, PullRequests: true}
}

// --- Token storage -------------------------------------------------------

func (p *Provider) SaveToken(ctx context.Context, token string) error {
	return p.store.SetPassword(ctx, securestore.Service, keyAccount, token)
}

func (p *Provider) GetToken(ctx context.Context) (string, error) {
	return p.store.GetPassword(ctx, securestore.Service, keyAccount)
}

func (p *Provider) ClearToken(ctx context.Context) error {
	_, err := p.store.DeletePassword(ctx, securestore.Service, keyAccount)
	return err
}

// --- Device Flow ---------------------------------------------------------

func (p *Provider) StartDeviceFlow(ctx context.Context, cfg gitprovider.AppConfig) (*gitprovider.DeviceAuth, error) {
	dc, err := oauth.RequestDeviceCode(ctx, p.httpClient, p.baseURL+"/oauth/authorize_device", cfg.ClientID, deviceScopes)
	if err != nil {
		return nil, fmt.Errorf("gitlab device flow init: %w", err)
	}

	auth := &gitprovider.DeviceAuth{
		DeviceCode:      dc.DeviceCode,
		UserCode:        dc.UserCode,
		VerificationURL: dc.VerificationURI,
		ExpiresIn:       dc.ExpiresIn,
		Interval:        dc.Interval,
	}
	if auth.VerificationURL == "" {
		auth.VerificationURL = p.baseURL + "/-/profile/applications"
	}
	if auth.ExpiresIn == 0 {
		auth.ExpiresIn = 300
	}
	if auth.Interval == 0 {
		auth.Interval = 5
	}
	return auth, nil
}

func (p *Provider) PollDeviceFlow(ctx context.Context, cfg gitprovider.AppConfig, auth *gitprovider.DeviceAuth) (string, error) {
	poller := &oauth.DevicePoller{Client: p.httpClient, TokenURL: p.baseURL + "/oauth/token"}
	token, err := poller.Poll(ctx, cfg.ClientID, auth.DeviceCode, auth.ExpiresIn, auth.Interval)
	if err != nil {
		return "", mapDeviceFlowError(err)
	}
	return token, nil
}

func mapDeviceFlowError(err error) error {
	var denial *oauth.DenialError
	switch {
	case errors.Is(err, oauth.ErrTimeout):
		return gitprovider.Errorf(gitprovider.KindTimeout, gitprovider.TypeGitLab, "OAuth timed out: the user did not complete authorization in time")
	case errors.As(err, &denial):
		return gitprovider.Errorf(gitprovider.KindDenied, gitprovider.TypeGitLab, "OAuth denied: %s", denial.Description)
	}
	return err
}

// --- Auth ----------------------------------------------------------------

func (p *Provider) ValidateToken(ctx context.Context, token string, _ map[string]string) (*gitprovider.User, error) {
	// An empty candidate must not fall through to the stored credential.
	if token == "" {
		return nil, nil
	}
	body, err := p.doRequest(ctx, http.MethodGet, "/user", nil, token)
	if err != nil {
		return nil, nil
	}

	var raw gitlabUser
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("gitlab parse user: %w", err)
	}

	if err := p.SaveToken(ctx, token); err != nil {
		return nil, fmt.Errorf("gitlab save token: %w", err)
	}
	return userToGitUser(&raw), nil
}

func (p *Provider) AuthenticatedUser(ctx context.Context) (*gitprovider.User, error) {
	token, err := p.GetToken(ctx)
	if err != nil || token == "" {
		return nil, nil
	}
	body, err := p.doRequest(ctx, http.MethodGet, "/user", nil, token)
	if err != nil {
		return nil, nil
	}
	var raw gitlabUser
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil
	}
	return userToGitUser(&raw), nil
}

// --- Repositories (GitLab "projects") ------------------------------------

func (p *Provider) ListRepositories(ctx context.Context) ([]gitprovider.Repo, error) {
	body, err := p.doRequest(ctx, http.MethodGet, "/projects?membership=true&order_by=last_activity_at&per_page=30", nil, "")
	if err != nil {
		return nil, fmt.Errorf("gitlab list projects: %w", err)
	}

	var raw []gitlabProject
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("gitlab parse projects: %w", err)
	}

	repos := make([]gitprovider.Repo, 0, len(raw))
	for i := range raw {
		repos = append(repos, projectToGitRepo(&raw[i]))
	}
	return repos, nil
}

// --- Branch push via the Commits API --------------------------------------

// PushFilesToBranch issues one Commits API request with a create action per
// file. start_branch is newBranch when it already exists (commit on top),
// baseBranch otherwise (branch off). Not atomic against a concurrent create
// of the same branch name; accepted for a single-user desktop tool.
func (p *Provider) PushFilesToBranch(ctx context.Context, owner, repo, baseBranch, newBranch string, files []gitprovider.FileEntry, commitMessage string) error {
	projectID := url.PathEscape(owner + "/" + repo)

	startBranch := baseBranch
	if _, err := p.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("/projects/%s/repository/branches/%s", projectID, url.PathEscape(newBranch)), nil, ""); err == nil {
		startBranch = newBranch
	}

	actions := make([]gitlabCommitAction, 0, len(files))
	for _, f := range files {
		actions = append(actions, gitlabCommitAction{Action: "create", FilePath: f.Path, Content: f.Content})
	}

	payload, _ := json.Marshal(map[string]any{
		"branch":         newBranch,
		"start_branch":   startBranch,
		"commit_message": commitMessage,
		"actions":        actions,
	})
	if _, err := p.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/projects/%s/repository/commits", projectID), bytes.NewReader(payload), ""); err != nil {
		return fmt.Errorf("gitlab create commit: %w", err)
	}
	return nil
}

// --- Merge requests -------------------------------------------------------

func (p *Provider) CreatePullRequest(ctx context.Context, opts gitprovider.PROptions) (*gitprovider.PRResult, error) {
	projectID := url.PathEscape(opts.Owner + "/" + opts.Repo)

	payload, _ := json.Marshal(map[string]string{
		"title":         opts.Title,
		"description":   opts.Body,
		"source_branch": opts.Head,
		"target_branch": opts.Base,
	})
	body, err := p.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/projects/%s/merge_requests", projectID), bytes.NewReader(payload), "")
	if err != nil {
		return nil, fmt.Errorf("gitlab create merge request: %w", err)
	}

	var mr struct {
		IID    int    `json:"iid"`
		WebURL string `json:"web_url"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, fmt.Errorf("gitlab parse merge request: %w", err)
	}
	return &gitprovider.PRResult{Number: mr.IID, URL: mr.WebURL, Title: mr.Title}, nil
}

// --- Snippets -------------------------------------------------------------

func (p *Provider) ListMarketplaceSnippets(ctx context.Context) ([]gitprovider.Snippet, error) {
	body, err := p.doRequest(ctx, http.MethodGet, "/snippets/public?per_page=50", nil, "")
	if err != nil {
		return nil, fmt.Errorf("gitlab list snippets: %w", err)
	}

	var raw []gitlabSnippet
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("gitlab parse snippets: %w", err)
	}

	snippets := make([]gitprovider.Snippet, 0, len(raw))
	for i := range raw {
		if !strings.Contains(raw[i].Description, gitprovider.MarketplaceTag) &&
			!strings.Contains(raw[i].Title, gitprovider.MarketplaceTag) {
			continue
		}
		snippets = append(snippets, snippetToSnippet(&raw[i]))
	}
	return snippets, nil
}

func (p *Provider) GetSnippet(ctx context.Context, id string) (*gitprovider.Snippet, error) {
	body, err := p.doRequest(ctx, http.MethodGet, "/snippets/"+url.PathEscape(id), nil, "")
	if err != nil {
		return nil, fmt.Errorf("gitlab get snippet: %w", err)
	}
	var raw gitlabSnippet
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("gitlab parse snippet: %w", err)
	}
	s := snippetToSnippet(&raw)

	// Snippet metadata carries file names only; the body comes from the raw
	// endpoint. Raw serves the primary file, so attach it when there is one.
	if len(s.Files) <= 1 {
		content, err := p.doRequest(ctx, http.MethodGet, "/snippets/"+url.PathEscape(id)+"/raw", nil, "")
		if err == nil {
			name := "snippet.md"
			for n := range s.Files {
				name = n
			}
			s.Files[name] = gitprovider.SnippetFileInfo{Filename: name, Content: string(content)}
		}
	}
	return &s, nil
}

func (p *Provider) PublishSnippet(ctx context.Context, description string, files []gitprovider.SnippetFile, public bool) (*gitprovider.Snippet, error) {
	visibility := "private"
	if public {
		visibility = "public"
	}

	snippetFiles := make([]map[string]string, 0, len(files))
	for _, f := range files {
		snippetFiles = append(snippetFiles, map[string]string{"file_path": f.Filename, "content": f.Content})
	}

	payload, _ := json.Marshal(map[string]any{
		"title":       description,
		"description": description,
		"visibility":  visibility,
		"files":       snippetFiles,
	})
	body, err := p.doRequest(ctx, http.MethodPost, "/snippets", bytes.NewReader(payload), "")
	if err != nil {
		return nil, fmt.Errorf("gitlab publish snippet: %w", err)
	}
	var raw gitlabSnippet
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("gitlab parse snippet: %w", err)
	}
	s := snippetToSnippet(&raw)
	return &s, nil
}

// --- Wire mirrors and normalization --------------------------------------

type gitlabUser struct {
	Username  string `json:"username"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Email     string `json:"email"`
}

type gitlabProject struct {
	ID                int64  `json:"id"`
	Path              string `json:"path"`
	PathWithNamespace string `json:"path_with_namespace"`
	Visibility        string `json:"visibility"`
	Description       string `json:"description"`
	WebURL            string `json:"web_url"`
	DefaultBranch     string `json:"default_branch"`
}

type gitlabCommitAction struct {
	Action   string `json:"action"`
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

type gitlabSnippet struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"`
	WebURL      string `json:"web_url"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	Author      struct {
		Username string `json:"username"`
	} `json:"author"`
	Files []struct {
		FileName string `json:"file_name"`
	} `json:"files"`
}

func userToGitUser(u *gitlabUser) *gitprovider.User {
	return &gitprovider.User{
		Login:     u.Username,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Email:     u.Email,
		Provider:  gitprovider.TypeGitLab,
	}
}

func projectToGitRepo(pr *gitlabProject) gitprovider.Repo {
	defaultBranch := pr.DefaultBranch
	if defaultBranch == "" {
		defaultBranch = "main"
	}
	return gitprovider.Repo{
		ID:            strconv.FormatInt(pr.ID, 10),
		Name:          pr.Path,
		FullName:      pr.PathWithNamespace,
		Private:       pr.Visibility != "public",
		Description:   pr.Description,
		HTMLURL:       pr.WebURL,
		DefaultBranch: defaultBranch,
		Provider:      gitprovider.TypeGitLab,
	}
}

func snippetToSnippet(s *gitlabSnippet) gitprovider.Snippet {
	files := make(map[string]gitprovider.SnippetFileInfo, len(s.Files))
	for _, f := range s.Files {
		files[f.FileName] = gitprovider.SnippetFileInfo{Filename: f.FileName}
	}

	description := s.Description
	if description == "" {
		description = s.Title
	}
	owner := s.Author.Username
	if owner == "" {
		owner = "anonymous"
	}
	return gitprovider.Snippet{
		ID:          strconv.FormatInt(s.ID, 10),
		Description: description,
		HTMLURL:     s.WebURL,
		Public:      s.Visibility == "public",
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		OwnerLogin:  owner,
		Files:       files,
		Provider:    gitprovider.TypeGitLab,
	}
}

// --- HTTP helper ----------------------------------------------------------

func (p *Provider) doRequest(ctx context.Context, method, path string, body io.Reader, overrideToken string) ([]byte, error) {
	token := overrideToken
	if token == "" {
		stored, err := p.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("load token: %w", err)
		}
		token = stored
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+"/api/v4"+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, gitprovider.RemoteError(gitprovider.TypeGitLab, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
