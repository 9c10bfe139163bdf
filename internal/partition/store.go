package partition

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrStorage is returned when a write violates a partition constraint
// (capacity). Callers fall back to network or surface an explicit error;
// the agent itself never dies on it.
var ErrStorage = errors.New("partition: storage failure")

// Entry is one cached response. Entries are replaced whole; a reader never
// observes a partially written entry.
type Entry struct {
	Status      int
	ContentType string
	Body        []byte
	StoredAt    time.Time
}

// Cacheable reports whether the entry may be written back into a partition.
func (e Entry) Cacheable() bool { return e.Status == 200 }

// Partition is a named, versioned cache scope. The full versioned name
// (e.g. "static-v3") identifies it; bumping the version elsewhere simply
// opens a fresh partition and orphans this one for the activation sweep.
type Partition struct {
	name string
	max  int // 0 = unbounded

	mu      sync.RWMutex
	entries map[string]Entry
}

func (p *Partition) Name() string { return p.name }

func (p *Partition) Get(key string) (Entry, bool) {
	p.mu.RLock()
	e, ok := p.entries[key]
	p.mu.RUnlock()
	return e, ok
}

// Put stores the entry under key, overwriting any prior value. Inserting a
// new key past the partition's capacity fails with ErrStorage; overwrites
// of existing keys always succeed.
func (p *Partition) Put(key string, e Entry) error {
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.entries[key]; !exists && p.max > 0 && len(p.entries) >= p.max {
		return fmt.Errorf("%w: partition %q full (%d entries)", ErrStorage, p.name, p.max)
	}
	p.entries[key] = e
	return nil
}

func (p *Partition) Delete(key string) {
	p.mu.Lock()
	delete(p.entries, key)
	p.mu.Unlock()
}

func (p *Partition) Len() int {
	p.mu.RLock()
	n := len(p.entries)
	p.mu.RUnlock()
	return n
}

func (p *Partition) Keys() []string {
	p.mu.RLock()
	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	p.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Registry owns every partition in the agent. Exactly one *Partition exists
// per name; Open returns the same instance for the same name.
type Registry struct {
	maxEntries int

	mu    sync.RWMutex
	parts map[string]*Partition
}

func NewRegistry(maxEntriesPerPartition int) *Registry {
	return &Registry{
		maxEntries: maxEntriesPerPartition,
		parts:      make(map[string]*Partition),
	}
}

// Open returns the partition named name, creating it if absent.
func (r *Registry) Open(name string) *Partition {
	r.mu.RLock()
	p, ok := r.parts[name]
	r.mu.RUnlock()
	if ok {
		return p
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.parts[name]; ok {
		return p
	}
	p = &Partition{name: name, max: r.maxEntries, entries: make(map[string]Entry)}
	r.parts[name] = p
	return p
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.parts))
	for n := range r.parts {
		names = append(names, n)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Drop destroys the named partition and all of its entries.
func (r *Registry) Drop(name string) {
	r.mu.Lock()
	delete(r.parts, name)
	r.mu.Unlock()
}
