package main

// Provider blank imports: each import activates a self-registering adapter.
// Add new providers here as they are implemented.

import (
	_ "github.com/agent-orchestrator/core/internal/adapter/bitbucket"
	_ "github.com/agent-orchestrator/core/internal/adapter/github"
	_ "github.com/agent-orchestrator/core/internal/adapter/gitlab"
)
