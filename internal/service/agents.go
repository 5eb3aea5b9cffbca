package service

import (
	"context"

	"github.com/agent-orchestrator/core/internal/domain/agent"
	"github.com/agent-orchestrator/core/internal/port/database"
)

// AgentService manages configured agent profiles.
type AgentService struct {
	db database.Store
}

// NewAgentService creates a new AgentService.
func NewAgentService(db database.Store) *AgentService {
	return &AgentService{db: db}
}

// Create creates a new agent.
func (s *AgentService) Create(ctx context.Context, req agent.CreateRequest) (*agent.Agent, error) {
	return s.db.CreateAgent(ctx, req)
}

// Get retrieves an agent by ID.
func (s *AgentService) Get(ctx context.Context, id string) (*agent.Agent, error) {
	return s.db.GetAgent(ctx, id)
}

// List returns all agents.
func (s *AgentService) List(ctx context.Context) ([]agent.Agent, error) {
	return s.db.ListAgents(ctx)
}

// Update updates an agent.
func (s *AgentService) Update(ctx context.Context, id string, req agent.UpdateRequest) (*agent.Agent, error) {
	return s.db.UpdateAgent(ctx, id, req)
}

// Delete removes an agent.
func (s *AgentService) Delete(ctx context.Context, id string) error {
	return s.db.DeleteAgent(ctx, id)
}
