// Package database defines the port interface for entity persistence.
package database

import (
	"context"

	"github.com/agent-orchestrator/core/internal/domain/agent"
	"github.com/agent-orchestrator/core/internal/domain/skill"
)

// Store is the port interface for agent and skill persistence.
type Store interface {
	// Agents
	ListAgents(ctx context.Context) ([]agent.Agent, error)
	GetAgent(ctx context.Context, id string) (*agent.Agent, error)
	CreateAgent(ctx context.Context, req agent.CreateRequest) (*agent.Agent, error)
	UpdateAgent(ctx context.Context, id string, req agent.UpdateRequest) (*agent.Agent, error)
	DeleteAgent(ctx context.Context, id string) error

	// Skills
	ListSkills(ctx context.Context) ([]skill.Skill, error)
	GetSkill(ctx context.Context, id string) (*skill.Skill, error)
	CreateSkill(ctx context.Context, req skill.CreateRequest) (*skill.Skill, error)
	UpdateSkill(ctx context.Context, id string, req skill.UpdateRequest) (*skill.Skill, error)
	DeleteSkill(ctx context.Context, id string) error
}
