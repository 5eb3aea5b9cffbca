// Package bitbucket implements a gitprovider.Provider for Bitbucket Cloud.
// Bitbucket has no OAuth device flow, so authentication uses an app password
// paired with the account username; both are stored together as one JSON
// credential. Pushes go through the multipart /src endpoint.
package bitbucket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/agent-orchestrator/core/internal/port/gitprovider"
	"github.com/agent-orchestrator/core/internal/port/securestore"
)

const (
	defaultAPIURL = "https://api.bitbucket.org/2.0"

	keyAccount = "bitbucket-credentials"
)

// Provider implements gitprovider.Provider for Bitbucket Cloud.
type Provider struct {
	apiURL     string
	store      securestore.Store
	httpClient *http.Client
}

// NewProvider creates a Bitbucket provider. deps.BaseURL is ignored;
// Bitbucket Cloud has a single API host.
func NewProvider(deps gitprovider.Deps) *Provider {
	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Provider{
		apiURL:     defaultAPIURL,
		store:      deps.Store,
		httpClient: client,
	}
}

func (p *Provider) Type() gitprovider.Type { return gitprovider.TypeBitbucket }

func (p *Provider) Capabilities() gitprovider.Capabilities {
	return gitprovider.Capabilities{DeviceFlow: false, Snippets: true, PullRequests: true}
}

// credentials is the JSON document stored under the bitbucket-credentials
// account: an app password plus the username it belongs to.
type credentials struct {
	Username    string `json:"username"`
	AppPassword string `json:"appPassword"`
}

// --- Token storage -------------------------------------------------------

// SaveToken stores the raw credential document. Callers normally go through
// ValidateToken, which persists on success; SaveToken exists for restoring a
// previously exported credential.
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

func (p *Provider) loadCredentials(ctx context.Context) (*credentials, error) {
	raw, err := p.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var creds credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return &creds, nil
}

// --- Device Flow (unsupported) -------------------------------------------

func (p *Provider) StartDeviceFlow(context.Context, gitprovider.AppConfig) (*gitprovider.DeviceAuth, error) {
	return nil, gitprovider.Errorf(gitprovider.KindUnsupported, gitprovider.TypeBitbucket,
		"Bitbucket does not support the OAuth device flow; connect with an app password instead")
}

func (p *Provider) PollDeviceFlow(context.Context, gitprovider.AppConfig, *gitprovider.DeviceAuth) (string, error) {
	return "", gitprovider.Errorf(gitprovider.KindUnsupported, gitprovider.TypeBitbucket,
		"Bitbucket does not support the OAuth device flow; connect with an app password instead")
}

// --- Auth ----------------------------------------------------------------

// ValidateToken checks an app password. extra must carry "username"; the
// pair is verified against /user and persisted as one credential on success.
func (p *Provider) ValidateToken(ctx context.Context, token string, extra map[string]string) (*gitprovider.User, error) {
	username := extra["username"]
	if username == "" {
		return nil, gitprovider.Errorf(gitprovider.KindAuth, gitprovider.TypeBitbucket,
			"a username is required alongside the app password")
	}

	creds := &credentials{Username: username, AppPassword: token}
	body, err := p.doRequest(ctx, http.MethodGet, "/user", nil, "", creds)
	if err != nil {
		return nil, nil
	}

	var raw bitbucketUser
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("bitbucket parse user: %w", err)
	}

	encoded, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("bitbucket encode credentials: %w", err)
	}
	if err := p.SaveToken(ctx, string(encoded)); err != nil {
		return nil, fmt.Errorf("bitbucket save credentials: %w", err)
	}
	return userToGitUser(&raw), nil
}

func (p *Provider) AuthenticatedUser(ctx context.Context) (*gitprovider.User, error) {
	creds, err := p.loadCredentials(ctx)
	if err != nil || creds == nil {
		return nil, nil
	}
	body, err := p.doRequest(ctx, http.MethodGet, "/user", nil, "", creds)
	if err != nil {
		return nil, nil
	}
	var raw bitbucketUser
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil
	}
	return userToGitUser(&raw), nil
}

// --- Repositories ---------------------------------------------------------

func (p *Provider) ListRepositories(ctx context.Context) ([]gitprovider.Repo, error) {
	creds, err := p.loadCredentials(ctx)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return []gitprovider.Repo{}, nil
	}

	username := creds.Username
	if username == "" {
		user, _ := p.AuthenticatedUser(ctx)
		if user == nil {
			return []gitprovider.Repo{}, nil
		}
		username = user.Login
	}

	body, err := p.doRequest(ctx, http.MethodGet,
		"/repositories/"+username+"?role=member&pagelen=30&sort=-updated_on", nil, "", nil)
	if err != nil {
		return nil, fmt.Errorf("bitbucket list repositories: %w", err)
	}

	var page struct {
		Values []bitbucketRepo `json:"values"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("bitbucket parse repositories: %w", err)
	}

	repos := make([]gitprovider.Repo, 0, len(page.Values))
	for i := range page.Values {
		repos = append(repos, repoToGitRepo(&page.Values[i]))
	}
	return repos, nil
}

// --- Branch push via /src -------------------------------------------------

// PushFilesToBranch resolves the base branch head and posts one multipart
// commit to /src with that hash as parent. Bitbucket creates the new branch
// when the named branch does not exist yet. An unresolvable base branch means
// an empty repository, so the commit is sent without a parent.
func (p *Provider) PushFilesToBranch(ctx context.Context, owner, repo, baseBranch, newBranch string, files []gitprovider.FileEntry, commitMessage string) error {
	var baseHash string
	refBody, err := p.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("/repositories/%s/%s/refs/branches/%s", owner, repo, baseBranch), nil, "", nil)
	if err == nil {
		var ref struct {
			Target struct {
				Hash string `json:"hash"`
			} `json:"target"`
		}
		if err := json.Unmarshal(refBody, &ref); err != nil {
			return fmt.Errorf("bitbucket parse branch: %w", err)
		}
		baseHash = ref.Target.Hash
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("message", commitMessage)
	_ = form.WriteField("branch", newBranch)
	if baseHash != "" {
		_ = form.WriteField("parents", baseHash)
	}
	for _, f := range files {
		_ = form.WriteField(f.Path, f.Content)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("bitbucket build form: %w", err)
	}

	if _, err := p.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/repositories/%s/%s/src", owner, repo), &buf, form.FormDataContentType(), nil); err != nil {
		return fmt.Errorf("bitbucket push files: %w", err)
	}
	return nil
}

// --- Pull requests --------------------------------------------------------

func (p *Provider) CreatePullRequest(ctx context.Context, opts gitprovider.PROptions) (*gitprovider.PRResult, error) {
	payload, _ := json.Marshal(map[string]any{
		"title":       opts.Title,
		"description": opts.Body,
		"source":      map[string]any{"branch": map[string]string{"name": opts.Head}},
		"destination": map[string]any{"branch": map[string]string{"name": opts.Base}},
	})
	body, err := p.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/repositories/%s/%s/pullrequests", opts.Owner, opts.Repo),
		bytes.NewReader(payload), "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("bitbucket create pull request: %w", err)
	}

	var pr struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
		Links struct {
			HTML struct {
				Href string `json:"href"`
			} `json:"html"`
		} `json:"links"`
	}
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("bitbucket parse pull request: %w", err)
	}
	return &gitprovider.PRResult{Number: pr.ID, URL: pr.Links.HTML.Href, Title: pr.Title}, nil
}

// --- Snippets -------------------------------------------------------------

func (p *Provider) ListMarketplaceSnippets(ctx context.Context) ([]gitprovider.Snippet, error) {
	body, err := p.doRequest(ctx, http.MethodGet, "/snippets?role=public&pagelen=50", nil, "", nil)
	if err != nil {
		return nil, fmt.Errorf("bitbucket list snippets: %w", err)
	}

	var page struct {
		Values []bitbucketSnippet `json:"values"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("bitbucket parse snippets: %w", err)
	}

	snippets := make([]gitprovider.Snippet, 0, len(page.Values))
	for i := range page.Values {
		if !strings.Contains(page.Values[i].Title, gitprovider.MarketplaceTag) {
			continue
		}
		snippets = append(snippets, snippetToSnippet(&page.Values[i]))
	}
	return snippets, nil
}

func (p *Provider) GetSnippet(ctx context.Context, id string) (*gitprovider.Snippet, error) {
	body, err := p.doRequest(ctx, http.MethodGet, "/snippets/"+id, nil, "", nil)
	if err != nil {
		return nil, fmt.Errorf("bitbucket get snippet: %w", err)
	}
	var raw bitbucketSnippet
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("bitbucket parse snippet: %w", err)
	}
	s := snippetToSnippet(&raw)
	return &s, nil
}

func (p *Provider) PublishSnippet(ctx context.Context, description string, files []gitprovider.SnippetFile, public bool) (*gitprovider.Snippet, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("title", description)
	_ = form.WriteField("is_private", fmt.Sprintf("%t", !public))
	for _, f := range files {
		part, err := form.CreateFormFile("file", f.Filename)
		if err != nil {
			return nil, fmt.Errorf("bitbucket build form: %w", err)
		}
		if _, err := io.WriteString(part, f.Content); err != nil {
			return nil, fmt.Errorf("bitbucket build form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("bitbucket build form: %w", err)
	}

	body, err := p.doRequest(ctx, http.MethodPost, "/snippets", &buf, form.FormDataContentType(), nil)
	if err != nil {
		return nil, fmt.Errorf("bitbucket publish snippet: %w", err)
	}
	var raw bitbucketSnippet
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("bitbucket parse snippet: %w", err)
	}
	s := snippetToSnippet(&raw)
	return &s, nil
}

// --- Wire mirrors and normalization --------------------------------------

type bitbucketUser struct {
	Username    string `json:"username"`
	Nickname    string `json:"nickname"`
	DisplayName string `json:"display_name"`
	Links       struct {
		Avatar struct {
			Href string `json:"href"`
		} `json:"avatar"`
	} `json:"links"`
}

type bitbucketRepo struct {
	UUID        string `json:"uuid"`
	Slug        string `json:"slug"`
	FullName    string `json:"full_name"`
	IsPrivate   bool   `json:"is_private"`
	Description string `json:"description"`
	Links       struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
	} `json:"links"`
	MainBranch struct {
		Name string `json:"name"`
	} `json:"mainbranch"`
}

type bitbucketSnippet struct {
	ID        json.Number `json:"id"`
	Title     string      `json:"title"`
	IsPrivate bool        `json:"is_private"`
	CreatedOn string      `json:"created_on"`
	UpdatedOn string      `json:"updated_on"`
	Owner     struct {
		Username string `json:"username"`
		Nickname string `json:"nickname"`
	} `json:"owner"`
	Links struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
	} `json:"links"`
	Files map[string]struct{} `json:"files"`
}

func userToGitUser(u *bitbucketUser) *gitprovider.User {
	login := u.Username
	if login == "" {
		login = u.Nickname
	}
	return &gitprovider.User{
		Login:     login,
		Name:      u.DisplayName,
		AvatarURL: u.Links.Avatar.Href,
		Provider:  gitprovider.TypeBitbucket,
	}
}

func repoToGitRepo(r *bitbucketRepo) gitprovider.Repo {
	defaultBranch := r.MainBranch.Name
	if defaultBranch == "" {
		defaultBranch = "main"
	}
	return gitprovider.Repo{
		ID:            r.UUID,
		Name:          r.Slug,
		FullName:      r.FullName,
		Private:       r.IsPrivate,
		Description:   r.Description,
		HTMLURL:       r.Links.HTML.Href,
		DefaultBranch: defaultBranch,
		Provider:      gitprovider.TypeBitbucket,
	}
}

func snippetToSnippet(s *bitbucketSnippet) gitprovider.Snippet {
	files := make(map[string]gitprovider.SnippetFileInfo, len(s.Files))
	for name := range s.Files {
		files[name] = gitprovider.SnippetFileInfo{Filename: name}
	}

	owner := s.Owner.Username
	if owner == "" {
		owner = s.Owner.Nickname
	}
	if owner == "" {
		owner = "anonymous"
	}
	return gitprovider.Snippet{
		ID:          s.ID.String(),
		Description: s.Title,
		HTMLURL:     s.Links.HTML.Href,
		Public:      !s.IsPrivate,
		CreatedAt:   s.CreatedOn,
		UpdatedAt:   s.UpdatedOn,
		OwnerLogin:  owner,
		Files:       files,
		Provider:    gitprovider.TypeBitbucket,
	}
}

// --- HTTP helper ----------------------------------------------------------

func (p *Provider) doRequest(ctx context.Context, method, path string, body io.Reader, contentType string, overrideCreds *credentials) ([]byte, error) {
	creds := overrideCreds
	if creds == nil {
		loaded, err := p.loadCredentials(ctx)
		if err != nil {
			return nil, err
		}
		creds = loaded
	}

	req, err := http.NewRequestWithContext(ctx, method, p.apiURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if creds != nil {
		req.SetBasicAuth(creds.Username, creds.AppPassword)
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
		return nil, gitprovider.RemoteError(gitprovider.TypeBitbucket, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
