package tools

import (
	"context"
	"log"
	"sync"
)

// Provenance records which source populated the registry.
type Provenance string

const (
	// ProvenanceDiscovered means the tool set came from a live capability
	// query against the bridge.
	ProvenanceDiscovered Provenance = "discovered"
	// ProvenanceFallback means the static built-in catalog was committed.
	ProvenanceFallback Provenance = "fallback"
)

// DiscoverFunc performs one capability round trip (open a session, list
// tools, tear the session down) and returns the remote descriptor set.
type DiscoverFunc func(ctx context.Context) ([]Descriptor, error)

// Registry holds the set of invocable tool descriptors. It is populated once
// and read-only afterwards; exactly one provenance is committed for the
// process lifetime.
type Registry struct {
	mu         sync.RWMutex
	populated  bool
	provenance Provenance
	byName     map[string]Descriptor
	ordered    []Descriptor

	discover DiscoverFunc
}

// NewRegistry creates an unpopulated registry. discover may be nil, in which
// case Populate commits the static catalog directly.
func NewRegistry(discover DiscoverFunc) *Registry {
	return &Registry{discover: discover}
}

// Populate fills the registry. The discovered path is attempted first; any
// failure (transport error, malformed response, empty result set) falls
// back to the static catalog. Either way the commit is atomic: the registry
// never holds a mixture of both sources. Populate is idempotent after the
// first success.
func (r *Registry) Populate(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.populated {
		return
	}

	if r.discover != nil {
		descs, err := r.discover(ctx)
		switch {
		case err != nil:
			log.Printf("registry: tool discovery failed, using built-in catalog: %v", err)
		case len(descs) == 0:
			log.Printf("registry: tool discovery returned no tools, using built-in catalog")
		default:
			r.commit(descs, ProvenanceDiscovered)
			return
		}
	}

	r.commit(Catalog(), ProvenanceFallback)
}

// commit installs the descriptor set. Caller holds r.mu.
func (r *Registry) commit(descs []Descriptor, p Provenance) {
	byName := make(map[string]Descriptor, len(descs))
	ordered := make([]Descriptor, 0, len(descs))
	for _, d := range descs {
		if _, dup := byName[d.Name]; dup {
			continue
		}
		byName[d.Name] = d
		ordered = append(ordered, d)
	}
	r.byName = byName
	r.ordered = ordered
	r.provenance = p
	r.populated = true
	log.Printf("registry: committed %d tools (%s)", len(ordered), p)
}

// Describe returns the named descriptor.
func (r *Registry) Describe(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// List returns every registered descriptor in population order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

// Provenance reports which source populated the registry.
func (r *Registry) Provenance() Provenance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.provenance
}
