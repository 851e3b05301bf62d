// Package manager owns the mapping from collection name to live store
// handle. Handles are created lazily on first reference and live for the
// process lifetime; concurrent creation attempts are deduplicated against
// the registry so a collection never gets two registry entries.
package manager

import (
	"context"
	"log"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/docdir/docdir/pkg/domain"
	"github.com/docdir/docdir/pkg/engine"
	"github.com/docdir/docdir/pkg/guard"
	"github.com/docdir/docdir/pkg/registry"
)

type Option func(*Manager)

// WithEngineOptions passes options through to every store the manager opens.
func WithEngineOptions(options ...engine.Option) Option {
	return func(m *Manager) {
		m.engineOpts = options
	}
}

// WithAfterLoad sets a hook invoked once per collection when its initial
// load completes; the facade uses it to trigger a metadata refresh.
func WithAfterLoad(fn func(name string, loadErr error)) Option {
	return func(m *Manager) {
		m.afterLoad = fn
	}
}

// WithOnCreated sets a hook invoked after a collection's registry entry
// is first inserted.
func WithOnCreated(fn func(name string)) Option {
	return func(m *Manager) {
		m.onCreated = fn
	}
}

// Manager tracks open collection handles for one data directory.
type Manager struct {
	dir        string
	reg        *registry.Registry
	engineOpts []engine.Option
	afterLoad  func(string, error)
	onCreated  func(string)

	mu      sync.RWMutex
	handles map[string]*engine.Store

	// Guards in-flight registry inserts. Distinct from the metadata
	// refresh guard: the two must not share a namespace.
	creating *guard.Set
}

func New(dir string, reg *registry.Registry, options ...Option) *Manager {
	m := &Manager{
		dir:      dir,
		reg:      reg,
		handles:  make(map[string]*engine.Store),
		creating: guard.NewSet(),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// GetOrCreate returns the handle for name, constructing it (and its
// on-disk file) on first reference. The handle is returned synchronously
// while its load proceeds in the background; onReady, when non-nil, runs
// once the load completes. Registry bookkeeping happens concurrently and
// never blocks the caller.
func (m *Manager) GetOrCreate(name string, onReady func(loadErr error, h *engine.Store)) *engine.Store {
	m.mu.RLock()
	if h, exists := m.handles[name]; exists {
		m.mu.RUnlock()
		m.notifyReady(h, onReady)
		return h
	}
	m.mu.RUnlock()

	m.mu.Lock()
	h, exists := m.handles[name]
	if !exists {
		h = engine.Open(m.FilePath(name), m.engineOpts...)
		m.handles[name] = h
	}
	m.mu.Unlock()

	if !exists {
		go m.ensureRegistered(name)
		if m.afterLoad != nil {
			h.OnReady(func(loadErr error) {
				m.afterLoad(name, loadErr)
			})
		}
	}

	m.notifyReady(h, onReady)
	return h
}

func (m *Manager) notifyReady(h *engine.Store, onReady func(error, *engine.Store)) {
	if onReady == nil {
		return
	}
	h.OnReady(func(loadErr error) {
		onReady(loadErr, h)
	})
}

// Lookup returns the live handle for name, if one has been created.
func (m *Manager) Lookup(name string) (*engine.Store, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, exists := m.handles[name]
	return h, exists
}

// Names returns the in-memory handle names, sorted. This may diverge from
// the registry: a just-created collection's insert can still be in
// flight, and dropped collections keep their handles.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.handles))
	for name := range m.handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FilePath returns the on-disk log file for a collection name. No
// escaping is performed; names must be filesystem-safe.
func (m *Manager) FilePath(name string) string {
	return filepath.Join(m.dir, name+".json")
}

// CloseAll closes every open handle and returns the first error seen.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	handles := make([]*engine.Store, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	var firstErr error
	for _, h := range handles {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ensureRegistered records name's registry entry unless one with its
// creation fields exists or another registration is already in flight.
func (m *Manager) ensureRegistered(name string) {
	ctx := context.Background()

	entry, err := m.reg.Find(ctx, name)
	if err != nil {
		log.Printf("ERROR: Registry lookup for collection '%s' failed: %v", name, err)
		return
	}
	if entry != nil && entry.SchemaVersion != 0 {
		return
	}

	if !m.creating.TryAcquire(name) {
		return
	}
	defer m.creating.Release(name)

	entry, err = m.reg.Find(ctx, name)
	if err != nil || (entry != nil && entry.SchemaVersion != 0) {
		return
	}

	// Upsert rather than insert: the store-level update-with-upsert is a
	// single atomic check-then-act, so a metadata refresh upserting the
	// same name concurrently can never yield a second entry. This also
	// repairs a bare entry such a refresh left behind.
	if _, err := m.reg.Upsert(ctx, name, domain.Document{
		"schemaVersion": domain.SchemaVersion,
		"createdAt":     time.Now().UTC().Format(time.RFC3339Nano),
	}); err != nil {
		log.Printf("ERROR: Registry insert for collection '%s' failed: %v", name, err)
		return
	}

	log.Printf("INFO: Registered collection '%s'", name)
	if m.onCreated != nil {
		m.onCreated(name)
	}
}
