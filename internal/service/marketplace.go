package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	otelad "github.com/agent-orchestrator/core/internal/adapter/otel"
	"github.com/agent-orchestrator/core/internal/adapter/ws"
	"github.com/agent-orchestrator/core/internal/domain/skill"
	"github.com/agent-orchestrator/core/internal/port/broadcast"
	"github.com/agent-orchestrator/core/internal/port/cache"
	"github.com/agent-orchestrator/core/internal/port/database"
	"github.com/agent-orchestrator/core/internal/port/gitprovider"
)

// DefaultListingTTL bounds how stale a cached marketplace listing may get.
const DefaultListingTTL = 5 * time.Minute

// MarketplaceService shares skills through provider snippet marketplaces:
// listing tagged snippets, publishing local skills, and importing remote
// ones.
type MarketplaceService struct {
	registry *Registry
	db       database.Store
	cache    cache.Cache
	hub      broadcast.Broadcaster
	metrics  *otelad.Metrics
	log      *slog.Logger
	ttl      time.Duration
}

// NewMarketplaceService creates a MarketplaceService.
func NewMarketplaceService(registry *Registry, db database.Store, c cache.Cache, hub broadcast.Broadcaster, metrics *otelad.Metrics, log *slog.Logger) *MarketplaceService {
	return &MarketplaceService{
		registry: registry,
		db:       db,
		cache:    c,
		hub:      hub,
		metrics:  metrics,
		log:      log,
		ttl:      DefaultListingTTL,
	}
}

// SetListingTTL overrides the listing cache TTL. Non-positive values are
// ignored.
func (s *MarketplaceService) SetListingTTL(d time.Duration) {
	if d > 0 {
		s.ttl = d
	}
}

func listingKey(t gitprovider.Type) string {
	return "marketplace:" + string(t)
}

// ListSnippets returns the tagged marketplace snippets for a provider,
// serving from cache when fresh.
func (s *MarketplaceService) ListSnippets(ctx context.Context, t gitprovider.Type) ([]gitprovider.Snippet, error) {
	key := listingKey(t)
	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var snippets []gitprovider.Snippet
		if err := json.Unmarshal(raw, &snippets); err == nil {
			return snippets, nil
		}
		// Unreadable cache entry is dropped and refetched.
		_ = s.cache.Delete(ctx, key)
	}

	p, err := s.registry.Provider(t)
	if err != nil {
		return nil, err
	}

	ctx, span := otelad.StartMarketplaceSpan(ctx, string(t), "list")
	defer span.End()

	snippets, err := p.ListMarketplaceSnippets(ctx)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(snippets); err == nil {
		_ = s.cache.Set(ctx, key, raw, s.ttl)
	}
	return snippets, nil
}

// GetSnippet fetches one snippet by its provider-native ID. Always goes to
// the provider; only listings are cached.
func (s *MarketplaceService) GetSnippet(ctx context.Context, t gitprovider.Type, id string) (*gitprovider.Snippet, error) {
	p, err := s.registry.Provider(t)
	if err != nil {
		return nil, err
	}
	return p.GetSnippet(ctx, id)
}

// PublishSkill exports a local skill as a tagged snippet on the provider's
// marketplace.
func (s *MarketplaceService) PublishSkill(ctx context.Context, t gitprovider.Type, skillID string, public bool) (*gitprovider.Snippet, error) {
	sk, err := s.db.GetSkill(ctx, skillID)
	if err != nil {
		return nil, err
	}

	doc, err := skill.EncodeMarkdown(sk)
	if err != nil {
		return nil, err
	}

	p, err := s.registry.Provider(t)
	if err != nil {
		return nil, err
	}

	ctx, span := otelad.StartMarketplaceSpan(ctx, string(t), "publish")
	defer span.End()

	description := fmt.Sprintf("%s %s", gitprovider.MarketplaceTag, sk.Name)
	files := []gitprovider.SnippetFile{{Filename: skillFilename(sk.Name), Content: string(doc)}}

	snippet, err := p.PublishSnippet(ctx, description, files, public)
	if err != nil {
		return nil, err
	}

	// Listing is stale now.
	_ = s.cache.Delete(ctx, listingKey(t))

	s.log.Info("skill published", "provider", t, "skill", sk.Name, "snippet", snippet.ID)
	s.hub.BroadcastEvent(ctx, ws.EventMarketplacePublished, ws.MarketplacePublishedEvent{
		Provider: string(t), SnippetID: snippet.ID, Name: sk.Name,
	})
	return snippet, nil
}

// ImportSnippet fetches a marketplace snippet and stores it as a local
// skill. The snippet body must be a markdown skill document.
func (s *MarketplaceService) ImportSnippet(ctx context.Context, t gitprovider.Type, snippetID string) (*skill.Skill, error) {
	p, err := s.registry.Provider(t)
	if err != nil {
		return nil, err
	}

	ctx, span := otelad.StartMarketplaceSpan(ctx, string(t), "import")
	defer span.End()

	snippet, err := p.GetSnippet(ctx, snippetID)
	if err != nil {
		return nil, err
	}

	var content, filename string
	for name, f := range snippet.Files {
		if f.Content != "" {
			content, filename = f.Content, name
			break
		}
	}
	if content == "" {
		return nil, fmt.Errorf("snippet %s has no retrievable content", snippetID)
	}

	req, err := skill.DecodeMarkdown([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("parse skill document: %w", err)
	}
	if req.Name == "" {
		req.Name = strings.TrimSuffix(filename, ".md")
	}
	if req.Description == "" {
		req.Description = strings.TrimSpace(strings.TrimPrefix(snippet.Description, gitprovider.MarketplaceTag))
	}
	req.Source = snippet.HTMLURL

	created, err := s.db.CreateSkill(ctx, *req)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SnippetsImported.Add(ctx, 1)
	}
	s.log.Info("skill imported", "provider", t, "skill", created.Name, "snippet", snippetID)
	return created, nil
}

// skillFilename turns a skill name into a snippet file name.
func skillFilename(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		}
		return -1
	}, slug)
	if slug == "" {
		slug = "skill"
	}
	return slug + ".md"
}
