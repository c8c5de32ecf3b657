package authz

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ctyano/athenz-auth-core/internal/core"
)

// Manager holds the live rule engine and supports atomic rule-set swaps,
// so a policy sync never exposes a partially loaded rule set to concurrent
// authorization checks.
type Manager struct {
	currentEngine atomic.Pointer[Engine]
	mu            sync.Mutex
}

func NewManager(initialRules []core.Rule) *Manager {
	m := &Manager{}
	eng := New(initialRules)
	m.currentEngine.Store(eng)
	return m
}

func (m *Manager) GetEngine() *Engine {
	return m.currentEngine.Load()
}

func (m *Manager) Update(newRules []core.Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidate := New(newRules)
	m.currentEngine.Store(candidate)
}

var _ core.Authorizer = (*Manager)(nil)

// Access delegates to the current engine, making the manager itself usable
// as the wired Authorizer.
func (m *Manager) Access(ctx context.Context, action, resource string, principal core.Principal) (bool, error) {
	return m.GetEngine().Access(ctx, action, resource, principal)
}
