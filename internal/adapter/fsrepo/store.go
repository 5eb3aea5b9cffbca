// Package fsrepo implements the database.Store port on plain JSON files.
// Each entity collection is one document under the data directory; writes go
// through a temp file and rename.
package fsrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agent-orchestrator/core/internal/domain"
	"github.com/agent-orchestrator/core/internal/domain/agent"
	"github.com/agent-orchestrator/core/internal/domain/skill"
	"github.com/agent-orchestrator/core/internal/port/database"
)

const (
	agentsFile = "agents.json"
	skillsFile = "skills.json"
)

// Store is a file-backed database.Store.
type Store struct {
	mu  sync.Mutex
	dir string
}

var _ database.Store = (*Store)(nil)

// New opens a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// --- Agents ---------------------------------------------------------------

func (s *Store) ListAgents(context.Context) ([]agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var agents []agent.Agent
	if err := s.load(agentsFile, &agents); err != nil {
		return nil, err
	}
	if agents == nil {
		agents = []agent.Agent{}
	}
	return agents, nil
}

func (s *Store) GetAgent(_ context.Context, id string) (*agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var agents []agent.Agent
	if err := s.load(agentsFile, &agents); err != nil {
		return nil, err
	}
	for i := range agents {
		if agents[i].ID == id {
			return &agents[i], nil
		}
	}
	return nil, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
}

func (s *Store) CreateAgent(_ context.Context, req agent.CreateRequest) (*agent.Agent, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalid, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var agents []agent.Agent
	if err := s.load(agentsFile, &agents); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	a := agent.Agent{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Description:  req.Description,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		SkillIDs:     req.SkillIDs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	agents = append(agents, a)
	if err := s.save(agentsFile, agents); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) UpdateAgent(_ context.Context, id string, req agent.UpdateRequest) (*agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var agents []agent.Agent
	if err := s.load(agentsFile, &agents); err != nil {
		return nil, err
	}
	for i := range agents {
		if agents[i].ID != id {
			continue
		}
		a := &agents[i]
		if req.Name != "" {
			a.Name = req.Name
		}
		if req.Description != "" {
			a.Description = req.Description
		}
		if req.Model != "" {
			a.Model = req.Model
		}
		if req.SystemPrompt != "" {
			a.SystemPrompt = req.SystemPrompt
		}
		if req.SkillIDs != nil {
			a.SkillIDs = req.SkillIDs
		}
		a.UpdatedAt = time.Now().UTC()
		if err := s.save(agentsFile, agents); err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
}

func (s *Store) DeleteAgent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var agents []agent.Agent
	if err := s.load(agentsFile, &agents); err != nil {
		return err
	}
	for i := range agents {
		if agents[i].ID == id {
			agents = append(agents[:i], agents[i+1:]...)
			return s.save(agentsFile, agents)
		}
	}
	return fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
}

// --- Skills ---------------------------------------------------------------

func (s *Store) ListSkills(context.Context) ([]skill.Skill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var skills []skill.Skill
	if err := s.load(skillsFile, &skills); err != nil {
		return nil, err
	}
	if skills == nil {
		skills = []skill.Skill{}
	}
	return skills, nil
}

func (s *Store) GetSkill(_ context.Context, id string) (*skill.Skill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var skills []skill.Skill
	if err := s.load(skillsFile, &skills); err != nil {
		return nil, err
	}
	for i := range skills {
		if skills[i].ID == id {
			return &skills[i], nil
		}
	}
	return nil, fmt.Errorf("skill %s: %w", id, domain.ErrNotFound)
}

func (s *Store) CreateSkill(_ context.Context, req skill.CreateRequest) (*skill.Skill, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalid, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var skills []skill.Skill
	if err := s.load(skillsFile, &skills); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sk := skill.Skill{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		Content:     req.Content,
		Source:      req.Source,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	skills = append(skills, sk)
	if err := s.save(skillsFile, skills); err != nil {
		return nil, err
	}
	return &sk, nil
}

func (s *Store) UpdateSkill(_ context.Context, id string, req skill.UpdateRequest) (*skill.Skill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var skills []skill.Skill
	if err := s.load(skillsFile, &skills); err != nil {
		return nil, err
	}
	for i := range skills {
		if skills[i].ID != id {
			continue
		}
		sk := &skills[i]
		if req.Name != "" {
			sk.Name = req.Name
		}
		if req.Description != "" {
			sk.Description = req.Description
		}
		if req.Tags != nil {
			sk.Tags = req.Tags
		}
		if req.Content != "" {
			sk.Content = req.Content
		}
		sk.UpdatedAt = time.Now().UTC()
		if err := s.save(skillsFile, skills); err != nil {
			return nil, err
		}
		return sk, nil
	}
	return nil, fmt.Errorf("skill %s: %w", id, domain.ErrNotFound)
}

func (s *Store) DeleteSkill(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var skills []skill.Skill
	if err := s.load(skillsFile, &skills); err != nil {
		return err
	}
	for i := range skills {
		if skills[i].ID == id {
			skills = append(skills[:i], skills[i+1:]...)
			return s.save(skillsFile, skills)
		}
	}
	return fmt.Errorf("skill %s: %w", id, domain.ErrNotFound)
}

// --- File plumbing --------------------------------------------------------

func (s *Store) load(name string, out any) error {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (s *Store) save(name string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
