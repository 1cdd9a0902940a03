package fetch

import (
	"fmt"
	"sort"

	"github.com/oseg/krawler/internal/hosting"
)

// Registry maps platforms to their adapters. It is built once at startup
// and read-only afterwards.
type Registry struct {
	adapters map[hosting.Platform]Adapter
}

// NewRegistry builds a registry from the given adapters. A duplicate
// platform is a programming error.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	reg := &Registry{adapters: make(map[hosting.Platform]Adapter, len(adapters))}
	for _, a := range adapters {
		p := a.Platform()
		if _, dup := reg.adapters[p]; dup {
			return nil, fmt.Errorf("duplicate adapter for platform %s", p)
		}
		reg.adapters[p] = a
	}
	return reg, nil
}

// Get returns the adapter for a platform.
func (r *Registry) Get(platform hosting.Platform) (Adapter, bool) {
	a, ok := r.adapters[platform]
	return a, ok
}

// ForURL resolves the adapter responsible for a project or file URL.
func (r *Registry) ForURL(rawURL string) (Adapter, error) {
	platform, err := hosting.PlatformFromURL(rawURL)
	if err != nil {
		return nil, err
	}
	a, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %s", platform)
	}
	return a, nil
}

// Platforms lists the registered platforms in stable order.
func (r *Registry) Platforms() []hosting.Platform {
	out := make([]hosting.Platform, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
