package tools

import (
	"context"
	"errors"
	"testing"
)

func TestRegistryFallbackOnDiscoveryError(t *testing.T) {
	r := NewRegistry(func(ctx context.Context) ([]Descriptor, error) {
		return nil, errors.New("bridge unreachable")
	})
	r.Populate(context.Background())

	if got := r.Provenance(); got != ProvenanceFallback {
		t.Errorf("Provenance() = %q, want %q", got, ProvenanceFallback)
	}
	if r.Len() != len(Catalog()) {
		t.Errorf("Len() = %d, want %d", r.Len(), len(Catalog()))
	}
}

func TestRegistryFallbackOnEmptyDiscovery(t *testing.T) {
	r := NewRegistry(func(ctx context.Context) ([]Descriptor, error) {
		return nil, nil
	})
	r.Populate(context.Background())

	if got := r.Provenance(); got != ProvenanceFallback {
		t.Errorf("Provenance() = %q, want %q", got, ProvenanceFallback)
	}
}

func TestRegistryDiscoveredCommit(t *testing.T) {
	remote := []Descriptor{
		{Name: "jog", Description: "jog an axis"},
		{Name: "halt", Description: "halt motion"},
	}
	r := NewRegistry(func(ctx context.Context) ([]Descriptor, error) {
		return remote, nil
	})
	r.Populate(context.Background())

	if got := r.Provenance(); got != ProvenanceDiscovered {
		t.Errorf("Provenance() = %q, want %q", got, ProvenanceDiscovered)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
	// No catalog entries may leak into a discovered commit.
	if _, ok := r.Describe("ping"); ok {
		t.Error("Describe(ping) found a builtin tool in a discovered registry")
	}
	if _, ok := r.Describe("jog"); !ok {
		t.Error("Describe(jog) = not found, want found")
	}
}

func TestRegistryPopulateIdempotent(t *testing.T) {
	calls := 0
	r := NewRegistry(func(ctx context.Context) ([]Descriptor, error) {
		calls++
		return []Descriptor{{Name: "jog"}}, nil
	})
	r.Populate(context.Background())
	r.Populate(context.Background())

	if calls != 1 {
		t.Errorf("discover calls = %d, want 1", calls)
	}
}

func TestRegistryDedupByName(t *testing.T) {
	r := NewRegistry(func(ctx context.Context) ([]Descriptor, error) {
		return []Descriptor{
			{Name: "jog", Description: "first"},
			{Name: "jog", Description: "second"},
		}, nil
	})
	r.Populate(context.Background())

	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	d, _ := r.Describe("jog")
	if d.Description != "first" {
		t.Errorf("Description = %q, want %q (first wins)", d.Description, "first")
	}
}

func TestCatalogHasBackendMappings(t *testing.T) {
	for _, d := range Catalog() {
		if _, ok := endpoints[d.Name]; !ok {
			t.Errorf("catalog tool %q has no endpoint mapping", d.Name)
		}
	}
}
