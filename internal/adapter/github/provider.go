// Package github implements a gitprovider.Provider for GitHub using the REST
// API. Branch pushes go through the low-level Git Data API (blobs, trees,
// commits, refs) so multiple files land in a single commit without a local
// clone.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/agent-orchestrator/core/internal/oauth"
	"github.com/agent-orchestrator/core/internal/port/gitprovider"
	"github.com/agent-orchestrator/core/internal/port/securestore"
)

const (
	defaultAPIURL        = "https://api.github.com"
	defaultDeviceCodeURL = "https://github.com/login/device/code"
	defaultTokenURL      = "https://github.com/login/oauth/access_token"
	fallbackVerifyURL    = "https://github.com/login/device"

	keyAccount   = "github-oauth-token"
	deviceScopes = "repo,gist,read:user"

	apiVersion = "2022-11-28"
)

// Provider implements gitprovider.Provider for GitHub.
type Provider struct {
	apiURL        string
	deviceCodeURL string
	tokenURL      string
	store         securestore.Store
	httpClient    *http.Client
}

// NewProvider creates a GitHub provider backed by the given secure store.
func NewProvider(deps gitprovider.Deps) *Provider {
	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Provider{
		apiURL:        defaultAPIURL,
		deviceCodeURL: defaultDeviceCodeURL,
		tokenURL:      defaultTokenURL,
		store:         deps.Store,
		httpClient:    client,
	}
}

func (p *Provider) Type() gitprovider.Type { return gitprovider.TypeGitHub }

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
	dc, err := oauth.RequestDeviceCode(ctx, p.httpClient, p.deviceCodeURL, cfg.ClientID, deviceScopes)
	if err != nil {
		return nil, fmt.Errorf("github device flow init: %w", err)
	}

	auth := &gitprovider.DeviceAuth{
		DeviceCode:      dc.DeviceCode,
		UserCode:        dc.UserCode,
		VerificationURL: dc.VerificationURI,
		ExpiresIn:       dc.ExpiresIn,
		Interval:        dc.Interval,
	}
	if auth.VerificationURL == "" {
		auth.VerificationURL = fallbackVerifyURL
	}
	if auth.ExpiresIn == 0 {
		auth.ExpiresIn = 900
	}
	if auth.Interval == 0 {
		auth.Interval = 5
	}
	return auth, nil
}

func (p *Provider) PollDeviceFlow(ctx context.Context, cfg gitprovider.AppConfig, auth *gitprovider.DeviceAuth) (string, error) {
	poller := &oauth.DevicePoller{Client: p.httpClient, TokenURL: p.tokenURL}
	token, err := poller.Poll(ctx, cfg.ClientID, auth.DeviceCode, auth.ExpiresIn, auth.Interval)
	if err != nil {
		return "", mapDeviceFlowError(gitprovider.TypeGitHub, err)
	}
	return token, nil
}

// mapDeviceFlowError classifies poller failures into provider error kinds.
// Shared with the GitLab adapter via identical logic; kept local so each
// adapter stays self-contained.
func mapDeviceFlowError(t gitprovider.Type, err error) error {
	var denial *oauth.DenialError
	switch {
	case errors.Is(err, oauth.ErrTimeout):
		return gitprovider.Errorf(gitprovider.KindTimeout, t, "OAuth timed out: the user did not complete authorization in time")
	case errors.As(err, &denial):
		return gitprovider.Errorf(gitprovider.KindDenied, t, "OAuth denied: %s", denial.Description)
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
		return nil, nil // invalid credential is a normal outcome, not a failure
	}

	var raw githubUser
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("github parse user: %w", err)
	}

	if err := p.SaveToken(ctx, token); err != nil {
		return nil, fmt.Errorf("github save token: %w", err)
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
	var raw githubUser
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil
	}
	return userToGitUser(&raw), nil
}

// --- Repositories --------------------------------------------------------

func (p *Provider) ListRepositories(ctx context.Context) ([]gitprovider.Repo, error) {
	body, err := p.doRequest(ctx, http.MethodGet, "/user/repos?sort=updated&per_page=30", nil, "")
	if err != nil {
		return nil, fmt.Errorf("github list repos: %w", err)
	}

	var raw []githubRepo
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("github parse repos: %w", err)
	}

	repos := make([]gitprovider.Repo, 0, len(raw))
	for i := range raw {
		repos = append(repos, repoToGitRepo(&raw[i]))
	}
	return repos, nil
}

// --- Branch push via the Git Data API ------------------------------------

// PushFilesToBranch batches all files into one commit: resolve the base ref,
// create one blob per file, one tree on top of the base tree, one commit, and
// finally create or force-update the target ref.
func (p *Provider) PushFilesToBranch(ctx context.Context, owner, repo, baseBranch, newBranch string, files []gitprovider.FileEntry, commitMessage string) error {
	baseSHA, err := p.branchSHA(ctx, owner, repo, baseBranch)
	if err != nil {
		return fmt.Errorf("github resolve base branch %q: %w", baseBranch, err)
	}

	treeItems := make([]githubTreeItem, 0, len(files))
	for _, f := range files {
		blobSHA, err := p.createBlob(ctx, owner, repo, f.Content)
		if err != nil {
			return fmt.Errorf("github create blob for %q: %w", f.Path, err)
		}
		treeItems = append(treeItems, githubTreeItem{Path: f.Path, Mode: "100644", Type: "blob", SHA: blobSHA})
	}

	treeBody, err := p.postJSON(ctx, fmt.Sprintf("/repos/%s/%s/git/trees", owner, repo),
		map[string]any{"base_tree": baseSHA, "tree": treeItems})
	if err != nil {
		return fmt.Errorf("github create tree: %w", err)
	}
	var tree struct {
		SHA string `json:"sha"`
	}
	if err := json.Unmarshal(treeBody, &tree); err != nil {
		return fmt.Errorf("github parse tree: %w", err)
	}

	commitBody, err := p.postJSON(ctx, fmt.Sprintf("/repos/%s/%s/git/commits", owner, repo),
		map[string]any{"message": commitMessage, "tree": tree.SHA, "parents": []string{baseSHA}})
	if err != nil {
		return fmt.Errorf("github create commit: %w", err)
	}
	var commit struct {
		SHA string `json:"sha"`
	}
	if err := json.Unmarshal(commitBody, &commit); err != nil {
		return fmt.Errorf("github parse commit: %w", err)
	}

	// Force-update the ref when the branch already exists; create it otherwise.
	if _, err := p.branchSHA(ctx, owner, repo, newBranch); err == nil {
		payload, _ := json.Marshal(map[string]any{"sha": commit.SHA, "force": true})
		if _, err := p.doRequest(ctx, http.MethodPatch,
			fmt.Sprintf("/repos/%s/%s/git/refs/heads/%s", owner, repo, newBranch),
			bytes.NewReader(payload), ""); err != nil {
			return fmt.Errorf("github update ref: %w", err)
		}
		return nil
	}

	if _, err := p.postJSON(ctx, fmt.Sprintf("/repos/%s/%s/git/refs", owner, repo),
		map[string]any{"ref": "refs/heads/" + newBranch, "sha": commit.SHA}); err != nil {
		return fmt.Errorf("github create ref: %w", err)
	}
	return nil
}

func (p *Provider) branchSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	body, err := p.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("/repos/%s/%s/git/refs/heads/%s", owner, repo, branch), nil, "")
	if err != nil {
		return "", err
	}
	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := json.Unmarshal(body, &ref); err != nil {
		return "", fmt.Errorf("parse ref: %w", err)
	}
	return ref.Object.SHA, nil
}

func (p *Provider) createBlob(ctx context.Context, owner, repo, content string) (string, error) {
	body, err := p.postJSON(ctx, fmt.Sprintf("/repos/%s/%s/git/blobs", owner, repo),
		map[string]string{"content": content, "encoding": "utf-8"})
	if err != nil {
		return "", err
	}
	var blob struct {
		SHA string `json:"sha"`
	}
	if err := json.Unmarshal(body, &blob); err != nil {
		return "", fmt.Errorf("parse blob: %w", err)
	}
	return blob.SHA, nil
}

// --- Pull requests -------------------------------------------------------

func (p *Provider) CreatePullRequest(ctx context.Context, opts gitprovider.PROptions) (*gitprovider.PRResult, error) {
	body, err := p.postJSON(ctx, fmt.Sprintf("/repos/%s/%s/pulls", opts.Owner, opts.Repo),
		map[string]string{"title": opts.Title, "body": opts.Body, "head": opts.Head, "base": opts.Base})
	if err != nil {
		return nil, fmt.Errorf("github create pull request: %w", err)
	}

	var pr struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
		Title   string `json:"title"`
	}
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("github parse pull request: %w", err)
	}
	return &gitprovider.PRResult{Number: pr.Number, URL: pr.HTMLURL, Title: pr.Title}, nil
}

// --- Snippets (Gists) ----------------------------------------------------

func (p *Provider) ListMarketplaceSnippets(ctx context.Context) ([]gitprovider.Snippet, error) {
	body, err := p.doRequest(ctx, http.MethodGet, "/gists/public?per_page=50", nil, "")
	if err != nil {
		return nil, fmt.Errorf("github list gists: %w", err)
	}

	var raw []githubGist
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("github parse gists: %w", err)
	}

	snippets := make([]gitprovider.Snippet, 0, len(raw))
	for i := range raw {
		if !strings.Contains(raw[i].Description, gitprovider.MarketplaceTag) {
			continue
		}
		snippets = append(snippets, gistToSnippet(&raw[i]))
	}
	return snippets, nil
}

func (p *Provider) GetSnippet(ctx context.Context, id string) (*gitprovider.Snippet, error) {
	body, err := p.doRequest(ctx, http.MethodGet, "/gists/"+id, nil, "")
	if err != nil {
		return nil, fmt.Errorf("github get gist: %w", err)
	}
	var raw githubGist
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("github parse gist: %w", err)
	}
	s := gistToSnippet(&raw)
	return &s, nil
}

func (p *Provider) PublishSnippet(ctx context.Context, description string, files []gitprovider.SnippetFile, public bool) (*gitprovider.Snippet, error) {
	gistFiles := make(map[string]map[string]string, len(files))
	for _, f := range files {
		gistFiles[f.Filename] = map[string]string{"content": f.Content}
	}

	body, err := p.postJSON(ctx, "/gists",
		map[string]any{"description": description, "files": gistFiles, "public": public})
	if err != nil {
		return nil, fmt.Errorf("github publish gist: %w", err)
	}
	var raw githubGist
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("github parse gist: %w", err)
	}
	s := gistToSnippet(&raw)
	return &s, nil
}

// --- Wire mirrors and normalization --------------------------------------

type githubUser struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Email     string `json:"email"`
}

type githubRepo struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Private       bool   `json:"private"`
	Description   string `json:"description"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
}

type githubTreeItem struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

type githubGist struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	Public      bool   `json:"public"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
	Files map[string]struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
	} `json:"files"`
}

func userToGitUser(u *githubUser) *gitprovider.User {
	return &gitprovider.User{
		Login:     u.Login,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Email:     u.Email,
		Provider:  gitprovider.TypeGitHub,
	}
}

func repoToGitRepo(r *githubRepo) gitprovider.Repo {
	return gitprovider.Repo{
		ID:            strconv.FormatInt(r.ID, 10),
		Name:          r.Name,
		FullName:      r.FullName,
		Private:       r.Private,
		Description:   r.Description,
		HTMLURL:       r.HTMLURL,
		DefaultBranch: r.DefaultBranch,
		Provider:      gitprovider.TypeGitHub,
	}
}

func gistToSnippet(g *githubGist) gitprovider.Snippet {
	files := make(map[string]gitprovider.SnippetFileInfo, len(g.Files))
	for name, f := range g.Files {
		files[name] = gitprovider.SnippetFileInfo{Filename: f.Filename, Content: f.Content}
	}
	owner := g.Owner.Login
	if owner == "" {
		owner = "anonymous"
	}
	return gitprovider.Snippet{
		ID:          g.ID,
		Description: g.Description,
		HTMLURL:     g.HTMLURL,
		Public:      g.Public,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
		OwnerLogin:  owner,
		Files:       files,
		Provider:    gitprovider.TypeGitHub,
	}
}

// --- HTTP helpers ---------------------------------------------------------

func (p *Provider) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	data, _ := json.Marshal(payload)
	return p.doRequest(ctx, http.MethodPost, path, bytes.NewReader(data), "")
}

// doRequest performs one authenticated API call. overrideToken skips the
// stored credential, used when validating a token before it is persisted.
func (p *Provider) doRequest(ctx context.Context, method, path string, body io.Reader, overrideToken string) ([]byte, error) {
	token := overrideToken
	if token == "" {
		stored, err := p.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("load token: %w", err)
		}
		token = stored
	}

	req, err := http.NewRequestWithContext(ctx, method, p.apiURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
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
		return nil, gitprovider.RemoteError(gitprovider.TypeGitHub, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
