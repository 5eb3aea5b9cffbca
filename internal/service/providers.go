// Package service contains the application use cases built on the provider
// registry, persistence ports, and the event broadcaster.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	otelad "github.com/agent-orchestrator/core/internal/adapter/otel"
	"github.com/agent-orchestrator/core/internal/adapter/ws"
	"github.com/agent-orchestrator/core/internal/domain"
	"github.com/agent-orchestrator/core/internal/port/broadcast"
	"github.com/agent-orchestrator/core/internal/port/gitprovider"
)

// ProviderService exposes account and repository use cases across all
// registered providers.
type ProviderService struct {
	registry *Registry
	hub      broadcast.Broadcaster
	metrics  *otelad.Metrics
	log      *slog.Logger
}

// NewProviderService creates a ProviderService.
func NewProviderService(registry *Registry, hub broadcast.Broadcaster, metrics *otelad.Metrics, log *slog.Logger) *ProviderService {
	return &ProviderService{registry: registry, hub: hub, metrics: metrics, log: log}
}

func (s *ProviderService) record(ctx context.Context, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ProviderCalls.Add(ctx, 1)
	if err != nil {
		s.metrics.ProviderErrors.Add(ctx, 1)
	}
	s.metrics.CallDuration.Record(ctx, time.Since(start).Seconds())
}

// StartDeviceFlow begins OAuth device authorization for a provider. The
// OAuth app client ID must have been configured first.
func (s *ProviderService) StartDeviceFlow(ctx context.Context, t gitprovider.Type) (*gitprovider.DeviceAuth, error) {
	p, err := s.registry.Provider(t)
	if err != nil {
		return nil, err
	}
	if !p.Capabilities().DeviceFlow {
		return nil, gitprovider.Errorf(gitprovider.KindUnsupported, t, "device flow not supported")
	}
	clientID := s.registry.ClientID(t)
	if clientID == "" {
		return nil, fmt.Errorf("%w: no OAuth client ID configured for %s", domain.ErrInvalid, t)
	}

	start := time.Now()
	auth, err := p.StartDeviceFlow(ctx, gitprovider.AppConfig{ClientID: clientID})
	s.record(ctx, start, err)
	if err != nil {
		return nil, err
	}
	s.log.Info("device flow started", "provider", t, "user_code", auth.UserCode)
	return auth, nil
}

// CompleteDeviceFlow polls until the user authorizes (or the code expires),
// persists the token, and returns the connected account.
func (s *ProviderService) CompleteDeviceFlow(ctx context.Context, t gitprovider.Type, auth *gitprovider.DeviceAuth) (*gitprovider.User, error) {
	p, err := s.registry.Provider(t)
	if err != nil {
		return nil, err
	}
	clientID := s.registry.ClientID(t)
	if clientID == "" {
		return nil, fmt.Errorf("%w: no OAuth client ID configured for %s", domain.ErrInvalid, t)
	}

	start := time.Now()
	token, err := p.PollDeviceFlow(ctx, gitprovider.AppConfig{ClientID: clientID}, auth)
	s.record(ctx, start, err)
	if err != nil {
		return nil, err
	}
	if err := p.SaveToken(ctx, token); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}

	user, err := p.AuthenticatedUser(ctx)
	if err != nil {
		return nil, err
	}
	login := ""
	if user != nil {
		login = user.Login
	}
	s.log.Info("provider connected", "provider", t, "login", login)
	s.hub.BroadcastEvent(ctx, ws.EventProviderConnected, ws.ProviderEvent{Provider: string(t), Login: login})
	return user, nil
}

// ConnectWithToken validates a personal access token and persists it.
func (s *ProviderService) ConnectWithToken(ctx context.Context, t gitprovider.Type, token string) (*gitprovider.User, error) {
	return s.connect(ctx, t, token, nil)
}

// ConnectWithAppPassword validates a username plus app password pair and
// persists it. Only meaningful for providers without a device flow.
func (s *ProviderService) ConnectWithAppPassword(ctx context.Context, t gitprovider.Type, username, appPassword string) (*gitprovider.User, error) {
	return s.connect(ctx, t, appPassword, map[string]string{"username": username})
}

func (s *ProviderService) connect(ctx context.Context, t gitprovider.Type, token string, extra map[string]string) (*gitprovider.User, error) {
	p, err := s.registry.Provider(t)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	user, err := p.ValidateToken(ctx, token, extra)
	s.record(ctx, start, err)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, gitprovider.Errorf(gitprovider.KindAuth, t, "credential was rejected")
	}

	s.log.Info("provider connected", "provider", t, "login", user.Login)
	s.hub.BroadcastEvent(ctx, ws.EventProviderConnected, ws.ProviderEvent{Provider: string(t), Login: user.Login})
	return user, nil
}

// Disconnect removes the stored credential for a provider.
func (s *ProviderService) Disconnect(ctx context.Context, t gitprovider.Type) error {
	p, err := s.registry.Provider(t)
	if err != nil {
		return err
	}
	if err := p.ClearToken(ctx); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	s.log.Info("provider disconnected", "provider", t)
	s.hub.BroadcastEvent(ctx, ws.EventProviderDisconnected, ws.ProviderEvent{Provider: string(t)})
	return nil
}

// Accounts returns the authenticated user for every connected provider.
func (s *ProviderService) Accounts(ctx context.Context) (map[gitprovider.Type]*gitprovider.User, error) {
	return s.registry.ConnectedAccounts(ctx)
}

// ListRepositories lists the repositories the connected account can reach.
func (s *ProviderService) ListRepositories(ctx context.Context, t gitprovider.Type) ([]gitprovider.Repo, error) {
	p, err := s.registry.Provider(t)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	repos, err := p.ListRepositories(ctx)
	s.record(ctx, start, err)
	return repos, err
}

// PushFiles pushes files to a branch in a single commit without a local
// clone and broadcasts the result.
func (s *ProviderService) PushFiles(ctx context.Context, t gitprovider.Type, owner, repo, baseBranch, newBranch string, files []gitprovider.FileEntry, commitMessage string) error {
	p, err := s.registry.Provider(t)
	if err != nil {
		return err
	}

	ctx, span := otelad.StartPushSpan(ctx, string(t), owner+"/"+repo, newBranch)
	defer span.End()

	start := time.Now()
	err = p.PushFilesToBranch(ctx, owner, repo, baseBranch, newBranch, files, commitMessage)
	s.record(ctx, start, err)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.PushesCompleted.Add(ctx, 1)
	}

	s.log.Info("branch pushed", "provider", t, "repo", owner+"/"+repo, "branch", newBranch, "files", len(files))
	s.hub.BroadcastEvent(ctx, ws.EventBranchPushed, ws.BranchPushedEvent{
		Provider: string(t), Repo: owner + "/" + repo, Branch: newBranch, Files: len(files),
	})
	return nil
}

// CreatePullRequest opens a pull or merge request.
func (s *ProviderService) CreatePullRequest(ctx context.Context, t gitprovider.Type, opts gitprovider.PROptions) (*gitprovider.PRResult, error) {
	p, err := s.registry.Provider(t)
	if err != nil {
		return nil, err
	}

	ctx, span := otelad.StartPullRequestSpan(ctx, string(t), opts.Owner+"/"+opts.Repo)
	defer span.End()

	start := time.Now()
	pr, err := p.CreatePullRequest(ctx, opts)
	s.record(ctx, start, err)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PullRequests.Add(ctx, 1)
	}
	s.log.Info("pull request created", "provider", t, "repo", opts.Owner+"/"+opts.Repo, "number", pr.Number)
	return pr, nil
}
