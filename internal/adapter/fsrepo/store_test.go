package fsrepo

import (
	"context"
	"errors"
	"testing"

	"github.com/agent-orchestrator/core/internal/domain"
	"github.com/agent-orchestrator/core/internal/domain/agent"
	"github.com/agent-orchestrator/core/internal/domain/skill"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestAgentLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateAgent(ctx, agent.CreateRequest{
		Name: "reviewer", Model: "gpt-4o", SystemPrompt: "You review code.",
	})
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	if created.ID == "" {
		t.Fatal("agent has no ID")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}

	got, err := store.GetAgent(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if got.Name != "reviewer" {
		t.Errorf("name = %q", got.Name)
	}

	updated, err := store.UpdateAgent(ctx, created.ID, agent.UpdateRequest{Model: "claude-sonnet"})
	if err != nil {
		t.Fatalf("UpdateAgent: %v", err)
	}
	if updated.Model != "claude-sonnet" {
		t.Errorf("model = %q", updated.Model)
	}
	if updated.Name != "reviewer" {
		t.Errorf("update clobbered name: %q", updated.Name)
	}

	agents, err := store.ListAgents(ctx)
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("got %d agents, want 1", len(agents))
	}

	if err := store.DeleteAgent(ctx, created.ID); err != nil {
		t.Fatalf("DeleteAgent: %v", err)
	}
	if _, err := store.GetAgent(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err after delete = %v, want ErrNotFound", err)
	}
}

func TestCreateAgentValidation(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateAgent(context.Background(), agent.CreateRequest{Name: "x"})
	if !errors.Is(err, domain.ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestSkillLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateSkill(ctx, skill.CreateRequest{
		Name: "code-review", Description: "reviews PRs", Content: "# Review", Tags: []string{"quality"},
	})
	if err != nil {
		t.Fatalf("CreateSkill: %v", err)
	}

	updated, err := store.UpdateSkill(ctx, created.ID, skill.UpdateRequest{Content: "# Review v2"})
	if err != nil {
		t.Fatalf("UpdateSkill: %v", err)
	}
	if updated.Content != "# Review v2" {
		t.Errorf("content = %q", updated.Content)
	}

	if err := store.DeleteSkill(ctx, created.ID); err != nil {
		t.Fatalf("DeleteSkill: %v", err)
	}
	if err := store.DeleteSkill(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	created, err := store.CreateSkill(ctx, skill.CreateRequest{
		Name: "triage", Description: "triages issues", Content: "# Triage",
	})
	if err != nil {
		t.Fatalf("CreateSkill: %v", err)
	}

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.GetSkill(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetSkill: %v", err)
	}
	if got.Name != "triage" {
		t.Errorf("name = %q", got.Name)
	}
}

func TestListEmptyIsNotNil(t *testing.T) {
	store := newTestStore(t)

	agents, err := store.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if agents == nil {
		t.Error("ListAgents returned nil slice")
	}

	skills, err := store.ListSkills(context.Background())
	if err != nil {
		t.Fatalf("ListSkills: %v", err)
	}
	if skills == nil {
		t.Error("ListSkills returned nil slice")
	}
}
