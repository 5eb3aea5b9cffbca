// Package gitprovider defines the Git hosting provider port (interface),
// the normalized wire types shared by all adapters, and the factory registry.
package gitprovider

import "context"

// Type identifies a supported Git hosting provider.
type Type string

// Supported provider types.
const (
	TypeGitHub    Type = "github"
	TypeGitLab    Type = "gitlab"
	TypeBitbucket Type = "bitbucket"
)

// Types lists every supported provider type in stable order.
func Types() []Type {
	return []Type{TypeGitHub, TypeGitLab, TypeBitbucket}
}

// Valid reports whether t is one of the supported provider types.
func (t Type) Valid() bool {
	switch t {
	case TypeGitHub, TypeGitLab, TypeBitbucket:
		return true
	}
	return false
}

// MarketplaceTag is the literal marker embedded in a snippet's description or
// title that identifies it as a marketplace item. It is the sole filter
// criterion distinguishing marketplace entries from arbitrary public snippets.
const MarketplaceTag = "[agent-orchestrator]"

// Capabilities declares which operations a provider supports.
type Capabilities struct {
	DeviceFlow   bool `json:"device_flow"`
	Snippets     bool `json:"snippets"`
	PullRequests bool `json:"pull_requests"`
}

// User is the normalized identity returned by a provider's "who am I" endpoint.
type User struct {
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url"`
	Email     string `json:"email,omitempty"`
	Provider  Type   `json:"provider"`
}

// Repo is the normalized repository descriptor. IDs stay provider-native
// (numeric for GitHub/GitLab, UUID string for Bitbucket) as strings.
type Repo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Private       bool   `json:"private"`
	Description   string `json:"description,omitempty"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
	Provider      Type   `json:"provider"`
}

// PROptions describes a pull/merge request to create. Owner is the workspace
// for Bitbucket.
type PROptions struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Head  string `json:"head"` // source branch
	Base  string `json:"base"` // target branch
}

// PRResult is the normalized result of creating a pull/merge request.
// Number carries the provider-native identifier (number for GitHub, iid for
// GitLab, id for Bitbucket).
type PRResult struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	Title  string `json:"title"`
}

// FileEntry is one file to be written in a commit.
type FileEntry struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// SnippetFile is one file of a snippet to publish.
type SnippetFile struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// SnippetFileInfo describes one file of a fetched snippet. Content may be
// empty when the provider's listing does not inline file contents.
type SnippetFileInfo struct {
	Filename string `json:"filename"`
	Content  string `json:"content,omitempty"`
}

// Snippet is the normalized cross-provider "pastebin" entry (GitHub Gist,
// GitLab Snippet, Bitbucket Snippet).
type Snippet struct {
	ID          string                     `json:"id"`
	Description string                     `json:"description"`
	HTMLURL     string                     `json:"html_url"`
	Public      bool                       `json:"public"`
	CreatedAt   string                     `json:"created_at"`
	UpdatedAt   string                     `json:"updated_at"`
	OwnerLogin  string                     `json:"owner_login"`
	Files       map[string]SnippetFileInfo `json:"files"`
	Provider    Type                       `json:"provider"`
}

// AppConfig holds the non-secret OAuth App identifier a user configures per
// provider. The access token itself is secret and lives in the secure store.
type AppConfig struct {
	ClientID string `json:"clientId"`
}

// DeviceAuth is the ephemeral state of one OAuth Device Authorization Grant.
// It is created by StartDeviceFlow, consumed exactly once by PollDeviceFlow,
// and never persisted.
type DeviceAuth struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"` // seconds until the device code expires
	Interval        int    `json:"interval"`   // minimum seconds between polls
}

// Provider is the port interface every Git hosting adapter implements.
//
// Auth-probing methods (ValidateToken, AuthenticatedUser) report the absence
// of a valid session as a nil User with a nil error; a missing login is a
// normal state, not a failure. Other non-2xx responses surface as *Error.
type Provider interface {
	// Type returns the provider's identity tag.
	Type() Type

	// Capabilities returns what this provider supports. Callers must check
	// DeviceFlow before invoking StartDeviceFlow/PollDeviceFlow.
	Capabilities() Capabilities

	// StartDeviceFlow initiates an RFC 8628 Device Authorization Grant.
	// Fails with an unsupported-kind error for providers without Device Flow.
	StartDeviceFlow(ctx context.Context, cfg AppConfig) (*DeviceAuth, error)

	// PollDeviceFlow polls the token endpoint until the user authorizes, the
	// grant is denied, or the device code expires. Returns the access token.
	PollDeviceFlow(ctx context.Context, cfg AppConfig, auth *DeviceAuth) (string, error)

	// ValidateToken verifies a directly supplied credential against the
	// provider's current-user endpoint. On success the credential is persisted
	// to the secure store as a side effect. Returns (nil, nil) when the
	// credential is rejected. Extra carries provider-specific fields
	// (Bitbucket requires extra["username"]).
	ValidateToken(ctx context.Context, token string, extra map[string]string) (*User, error)

	// SaveToken, GetToken and ClearToken pass through to the secure store
	// under the adapter's fixed account key. GetToken returns an empty string
	// when no credential is stored.
	SaveToken(ctx context.Context, token string) error
	GetToken(ctx context.Context) (string, error)
	ClearToken(ctx context.Context) error

	// AuthenticatedUser re-validates the stored credential. Returns (nil, nil)
	// when there is no live session.
	AuthenticatedUser(ctx context.Context) (*User, error)

	// ListRepositories lists repositories the authenticated user is a member
	// of, newest activity first.
	ListRepositories(ctx context.Context) ([]Repo, error)

	// PushFilesToBranch creates (or updates) newBranch so that its tip is a
	// single commit containing every entry of files added/overwritten relative
	// to baseBranch's tip.
	PushFilesToBranch(ctx context.Context, owner, repo, baseBranch, newBranch string, files []FileEntry, commitMessage string) error

	// CreatePullRequest opens a pull/merge request from Head to Base.
	CreatePullRequest(ctx context.Context, opts PROptions) (*PRResult, error)

	// ListMarketplaceSnippets lists public snippets filtered client-side to
	// those tagged with MarketplaceTag.
	ListMarketplaceSnippets(ctx context.Context) ([]Snippet, error)

	// GetSnippet fetches one snippet by its provider-native ID.
	GetSnippet(ctx context.Context, id string) (*Snippet, error)

	// PublishSnippet creates a new snippet from the given files.
	PublishSnippet(ctx context.Context, description string, files []SnippetFile, public bool) (*Snippet, error)
}
