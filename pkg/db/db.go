// Package db is the externally visible face of the document store: a
// directory of independently persisted collections plus an internal
// registry tracking their existence, size, and object counts.
package db

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/docdir/docdir/pkg/domain"
	"github.com/docdir/docdir/pkg/engine"
	"github.com/docdir/docdir/pkg/manager"
	"github.com/docdir/docdir/pkg/registry"
	"github.com/docdir/docdir/pkg/stats"
)

// DBState tracks where the facade is in its lifecycle. StateError and
// StateConnected are terminal for the process lifetime: there is no
// reconnect transition.
type DBState int32

const (
	StateCold DBState = iota
	StateInitializing
	StateReady
	StateError
	StateConnected
)

func (s DBState) String() string {
	switch s {
	case StateCold:
		return "cold"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

type Option func(*DB)

// WithEngineOptions passes store options through to the registry and to
// every collection the database opens.
func WithEngineOptions(options ...engine.Option) Option {
	return func(d *DB) {
		d.engineOpts = options
	}
}

// WithOnEvent subscribes fn to events matching pattern before the
// registry load begins, so construction-time events ("ready", "error")
// cannot be missed.
func WithOnEvent(pattern string, fn func(Event)) Option {
	return func(d *DB) {
		d.emitter.Subscribe(pattern, fn)
	}
}

// DB is a handle to one data directory.
type DB struct {
	dir        string
	engineOpts []engine.Option

	state   atomic.Int32
	reg     *registry.Registry
	manager *manager.Manager
	agg     *stats.Aggregator
	emitter *Emitter
}

// Open creates a database over the given directory and begins loading the
// registry in the background. The returned handle is usable immediately;
// state moves to ready (or error) once the registry load completes, and a
// "ready" or "error" event fires.
func Open(dir string, options ...Option) *DB {
	d := &DB{
		dir:     dir,
		emitter: NewEmitter(),
	}
	for _, option := range options {
		option(d)
	}

	d.setState(StateInitializing)
	d.reg = registry.Open(dir, d.engineOpts...)
	d.manager = manager.New(dir, d.reg,
		manager.WithEngineOptions(d.engineOpts...),
		manager.WithAfterLoad(d.afterCollectionLoad),
		manager.WithOnCreated(func(name string) {
			d.emitter.Emit(Event{Topic: TopicCollectionCreated, Name: name})
		}),
	)
	d.agg = stats.NewAggregator(d.reg, d.manager)

	d.reg.OnReady(func(loadErr error) {
		if loadErr != nil {
			d.setState(StateError)
			d.emitter.Emit(Event{Topic: TopicError, Err: loadErr})
			return
		}
		// Connect may have raced ahead to connected; never regress
		d.state.CompareAndSwap(int32(StateInitializing), int32(StateReady))
		d.emitter.Emit(Event{Topic: TopicReady})
	})

	return d
}

// Dir returns the data directory.
func (d *DB) Dir() string {
	return d.dir
}

// State returns the current facade state.
func (d *DB) State() DBState {
	return DBState(d.state.Load())
}

func (d *DB) setState(s DBState) {
	d.state.Store(int32(s))
}

// Subscribe registers fn for facade events matching pattern ("ready",
// "collection.*", "*", ...) and returns a token for Unsubscribe.
func (d *DB) Subscribe(pattern string, fn func(Event)) string {
	return d.emitter.Subscribe(pattern, fn)
}

// Unsubscribe removes an event subscription.
func (d *DB) Unsubscribe(token string) {
	d.emitter.Unsubscribe(token)
}

// Connect waits for the registry, then opens every previously-known
// collection in parallel. One collection failing to open does not stop
// the others; the first error seen is returned. State becomes connected
// once all opens have been attempted.
func (d *DB) Connect(ctx context.Context) error {
	if err := d.reg.WaitReady(ctx); err != nil {
		if ctx.Err() == nil {
			d.setState(StateError)
		}
		return fmt.Errorf("registry load failed: %w", err)
	}

	entries, err := d.reg.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list registry entries: %w", err)
	}

	g := errgroup.Group{}
	for _, entry := range entries {
		name := entry.CollectionName
		h := d.manager.GetOrCreate(name, nil)
		g.Go(func() error {
			if err := h.WaitReady(ctx); err != nil {
				return fmt.Errorf("failed to open collection %s: %w", name, err)
			}
			return nil
		})
	}
	firstErr := g.Wait()

	d.setState(StateConnected)
	log.Printf("INFO: Connected to %s with %d known collections", d.dir, len(entries))
	return firstErr
}

// ConnectFunc is the callback form of Connect, running it on a fresh
// goroutine and delivering the result to cb.
func (d *DB) ConnectFunc(cb func(err error, d *DB)) {
	go func() {
		cb(d.Connect(context.Background()), d)
	}()
}

// Collection returns the handle for name, creating the collection (and
// its on-disk file) on first reference. The handle is returned before its
// load completes; writes submitted meanwhile are queued by the store.
// Referencing an unknown name is never an error.
func (d *DB) Collection(name string) *engine.Store {
	return d.manager.GetOrCreate(name, nil)
}

// CollectionFunc is like Collection but also invokes cb once the
// collection's load has completed.
func (d *DB) CollectionFunc(name string, cb func(loadErr error, h *engine.Store)) *engine.Store {
	return d.manager.GetOrCreate(name, cb)
}

// ListCollections returns the names of in-memory collection handles, not
// registry contents: the two can diverge while a registry insert is in
// flight, or after a drop.
func (d *DB) ListCollections() []string {
	return d.manager.Names()
}

// DropCollection removes the collection's registry entry only. The live
// handle and the on-disk file remain; the registry simply forgets the
// collection. A "collection.drop" event fires either way.
func (d *DB) DropCollection(ctx context.Context, name string) error {
	removed, err := d.reg.Remove(ctx, name)
	d.emitter.Emit(Event{Topic: TopicCollectionDrop, Name: name, Err: err, Data: removed})
	if err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	log.Printf("INFO: Dropped collection '%s' from registry (%d entries removed)", name, removed)
	return nil
}

// Stats refreshes metadata for every listed collection in parallel, then
// aggregates the registry. Partial refresh failures are logged, not
// fatal: the aggregate reflects whatever metadata is available.
func (d *DB) Stats(ctx context.Context) (*domain.Stats, error) {
	if err := d.agg.RefreshAll(ctx, d.ListCollections()); err != nil {
		log.Printf("WARN: Stats refresh was partial: %v", err)
	}

	entries, err := d.reg.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	result := &domain.Stats{Collections: len(entries)}
	for _, entry := range entries {
		result.FileSize += entry.SizeBytes
		result.Objects += entry.Objects()
	}
	result.FileSizeMb = float64(result.FileSize) / (1 << 20)
	return result, nil
}

// Refresh recomputes metadata for one collection. Exposed for callers
// that want registry freshness without a full stats pass.
func (d *DB) Refresh(ctx context.Context, name string) (*domain.RegistryEntry, error) {
	return d.agg.Refresh(ctx, name)
}

// Close closes every collection handle and the registry store.
func (d *DB) Close() error {
	firstErr := d.manager.CloseAll()
	if err := d.reg.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// afterCollectionLoad runs when a collection's initial load completes and
// seeds its metadata.
func (d *DB) afterCollectionLoad(name string, loadErr error) {
	if loadErr != nil {
		log.Printf("ERROR: Collection '%s' failed to load: %v", name, loadErr)
		return
	}
	if _, err := d.agg.Refresh(context.Background(), name); err != nil {
		log.Printf("WARN: Initial metadata refresh for '%s' failed: %v", name, err)
	}
}
