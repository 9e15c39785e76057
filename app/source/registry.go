package source

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/lysyi3m/listing-comb/app/model"
)

type pattern struct {
	host    string
	path    *regexp.Regexp
	idParam string
	weight  int
}

type entry struct {
	source   model.Source
	patterns []pattern
}

// Registry holds the ordered source table. Adding a source means adding an entry;
// detection iterates entries and never switches on source ids.
type Registry struct {
	entries []entry
	mu      sync.RWMutex
}

func NewRegistry(sources []model.Source) (*Registry, error) {
	r := &Registry{}
	for _, src := range sources {
		if err := r.Register(src); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a source, or replaces the entry with the same id in place so its
// position in the detection order is kept.
func (r *Registry) Register(src model.Source) error {
	e, err := compile(src)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		if r.entries[i].source.ID == src.ID {
			r.entries[i] = e
			return nil
		}
	}

	// Keep wildcard entries at the tail so host-specific sources are tried first.
	if !hasWildcard(e) {
		for i := range r.entries {
			if hasWildcard(r.entries[i]) {
				r.entries = slices.Insert(r.entries, i, e)
				return nil
			}
		}
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *Registry) Get(id string) (model.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.source.ID == id {
			return e.source, nil
		}
	}
	return model.Source{}, fmt.Errorf("%w: source '%s'", model.ErrNotFound, id)
}

func (r *Registry) List() []model.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]model.Source, 0, len(r.entries))
	for _, e := range r.entries {
		sources = append(sources, e.source)
	}
	return sources
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) snapshot() []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]entry(nil), r.entries...)
}

func compile(src model.Source) (entry, error) {
	if src.ID == "" {
		return entry{}, fmt.Errorf("%w: source id is required", model.ErrValidation)
	}
	if src.Kind != model.SourceKindProduct && src.Kind != model.SourceKindNews {
		return entry{}, fmt.Errorf("%w: source '%s' has invalid kind '%s'", model.ErrValidation, src.ID, src.Kind)
	}
	if src.RateLimit < 0 {
		return entry{}, fmt.Errorf("%w: source '%s' rate limit must be non-negative", model.ErrValidation, src.ID)
	}
	if len(src.Patterns) == 0 {
		return entry{}, fmt.Errorf("%w: source '%s' needs at least one pattern", model.ErrValidation, src.ID)
	}

	e := entry{source: src}
	for i, p := range src.Patterns {
		host := strings.ToLower(strings.TrimPrefix(p.Host, "www."))
		if host == "" {
			return entry{}, fmt.Errorf("%w: source '%s' pattern %d has no host", model.ErrValidation, src.ID, i)
		}
		if host == WildcardHost && p.Path == "" {
			return entry{}, fmt.Errorf("%w: source '%s' wildcard pattern %d needs a path", model.ErrValidation, src.ID, i)
		}

		compiled := pattern{host: host, idParam: p.IDParam, weight: len(host) + len(p.Path) + len(p.IDParam)}
		if p.Path != "" {
			re, err := regexp.Compile(p.Path)
			if err != nil {
				return entry{}, fmt.Errorf("%w: source '%s' pattern %d: %v", model.ErrValidation, src.ID, i, err)
			}
			compiled.path = re
		}
		e.patterns = append(e.patterns, compiled)
	}
	return e, nil
}

func hasWildcard(e entry) bool {
	for _, p := range e.patterns {
		if p.host == WildcardHost {
			return true
		}
	}
	return false
}
