package github

import "github.com/agent-orchestrator/core/internal/port/gitprovider"

func init() {
	gitprovider.Register(gitprovider.TypeGitHub, func(deps gitprovider.Deps) (gitprovider.Provider, error) {
		return NewProvider(deps), nil
	})
}
