// Package skill defines the Skill domain entity: a reusable agent instruction
// document that can be shared through provider snippet marketplaces.
package skill

import (
	"errors"
	"time"
)

// Skill is a markdown instruction document plus metadata. Content is the
// document body; the metadata travels as YAML front matter when exported.
type Skill struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags,omitempty"`
	Content     string    `json:"content"`
	Source      string    `json:"source,omitempty"` // snippet URL when imported
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateRequest is the input for creating a new skill.
type CreateRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Content     string   `json:"content"`
	Source      string   `json:"source,omitempty"`
}

// UpdateRequest is the input for updating a skill.
type UpdateRequest struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Content     string   `json:"content,omitempty"`
}

// Validate checks that a CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.Description == "" {
		return errors.New("description is required")
	}
	if r.Content == "" {
		return errors.New("content is required")
	}
	return nil
}
