package service

import (
	"context"

	"github.com/agent-orchestrator/core/internal/domain/skill"
	"github.com/agent-orchestrator/core/internal/port/database"
)

// SkillService manages the local skill library.
type SkillService struct {
	db database.Store
}

// NewSkillService creates a new SkillService.
func NewSkillService(db database.Store) *SkillService {
	return &SkillService{db: db}
}

// Create creates a new skill.
func (s *SkillService) Create(ctx context.Context, req skill.CreateRequest) (*skill.Skill, error) {
	return s.db.CreateSkill(ctx, req)
}

// Get retrieves a skill by ID.
func (s *SkillService) Get(ctx context.Context, id string) (*skill.Skill, error) {
	return s.db.GetSkill(ctx, id)
}

// List returns all skills.
func (s *SkillService) List(ctx context.Context) ([]skill.Skill, error) {
	return s.db.ListSkills(ctx)
}

// Update updates a skill.
func (s *SkillService) Update(ctx context.Context, id string, req skill.UpdateRequest) (*skill.Skill, error) {
	return s.db.UpdateSkill(ctx, id, req)
}

// Delete removes a skill.
func (s *SkillService) Delete(ctx context.Context, id string) error {
	return s.db.DeleteSkill(ctx, id)
}
