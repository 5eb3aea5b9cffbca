// Package agent defines the Agent domain entity.
package agent

import (
	"errors"
	"time"
)

// Agent is a configured assistant profile: a model selection, a system
// prompt, and the skills wired into it.
type Agent struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Model        string    `json:"model"`
	SystemPrompt string    `json:"system_prompt"`
	SkillIDs     []string  `json:"skill_ids,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateRequest is the input for creating a new agent.
type CreateRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Model        string   `json:"model"`
	SystemPrompt string   `json:"system_prompt"`
	SkillIDs     []string `json:"skill_ids,omitempty"`
}

// UpdateRequest is the input for updating an agent.
type UpdateRequest struct {
	Name         string   `json:"name,omitempty"`
	Description  string   `json:"description,omitempty"`
	Model        string   `json:"model,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	SkillIDs     []string `json:"skill_ids,omitempty"`
}

// Validate checks that a CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.Model == "" {
		return errors.New("model is required")
	}
	return nil
}
