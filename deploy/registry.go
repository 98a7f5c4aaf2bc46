// Package deploy runs workloads on the local node and keeps track of what
// is deployed. Workload implementations are registered by name; deployment
// requests carry only the name and an opaque options blob, so the HA layer
// can replay them verbatim on another node during failover.
package deploy

import (
	"context"
	"encoding/json"
	"sync"
)

// Workload is a unit of execution managed by the deployer.
type Workload interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Factory builds a workload instance from its options blob.
type Factory func(options json.RawMessage) (Workload, error)

// Registry maps workload names to factories. A workload must be registered
// explicitly before it can be deployed; there is no dynamic lookup of
// implementations.
type Registry struct {
	mut       sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

func (r *Registry) Register(name string, f Factory) {
	r.mut.Lock()
	defer r.mut.Unlock()

	r.factories[name] = f
}

func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mut.RLock()
	defer r.mut.RUnlock()

	f, ok := r.factories[name]

	return f, ok
}
