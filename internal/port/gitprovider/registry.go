package gitprovider

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/agent-orchestrator/core/internal/port/securestore"
)

// Deps carries everything an adapter needs at construction time.
type Deps struct {
	// Store is the secure credential store shared by all adapters.
	Store securestore.Store

	// BaseURL overrides the provider's default API host. Only GitLab honors
	// it (self-hosted instances); the other adapters ignore it.
	BaseURL string

	// HTTPClient is optional; adapters fall back to http.DefaultClient.
	HTTPClient *http.Client
}

// Factory is a constructor function that creates a new Provider instance.
type Factory func(deps Deps) (Provider, error)

var (
	mu        sync.RWMutex
	factories = make(map[Type]Factory)
)

// Register makes a provider factory available by type.
// It is typically called from an init() function in the adapter package.
func Register(t Type, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[t]; exists {
		panic(fmt.Sprintf("gitprovider: duplicate registration for %q", t))
	}
	factories[t] = factory
}

// New creates a new Provider by type using the registered factory.
func New(t Type, deps Deps) (Provider, error) {
	mu.RLock()
	factory, ok := factories[t]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("gitprovider: unknown provider %q", t)
	}
	return factory(deps)
}
