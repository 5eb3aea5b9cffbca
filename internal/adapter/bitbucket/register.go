package bitbucket

import "github.com/agent-orchestrator/core/internal/port/gitprovider"

func init() {
	gitprovider.Register(gitprovider.TypeBitbucket, func(deps gitprovider.Deps) (gitprovider.Provider, error) {
		return NewProvider(deps), nil
	})
}
