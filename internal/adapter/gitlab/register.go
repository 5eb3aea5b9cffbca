package gitlab

import "github.com/agent-orchestrator/core/internal/port/gitprovider"

func init() {
	gitprovider.Register(gitprovider.TypeGitLab, func(deps gitprovider.Deps) (gitprovider.Provider, error) {
		return NewProvider(deps), nil
	})
}
