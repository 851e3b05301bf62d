// Package stats recomputes size and object-count metadata for collections
// and upserts the result into the registry.
package stats

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docdir/docdir/pkg/domain"
	"github.com/docdir/docdir/pkg/engine"
	"github.com/docdir/docdir/pkg/guard"
	"github.com/docdir/docdir/pkg/registry"
)

// HandleSource resolves collection names to live handles and file paths.
// The manager satisfies it.
type HandleSource interface {
	Lookup(name string) (*engine.Store, bool)
	FilePath(name string) string
}

// Aggregator refreshes per-collection metadata. At most one refresh per
// collection name runs at a time; concurrent callers are skipped, since
// stale data beats a redundant I/O storm.
type Aggregator struct {
	reg     *registry.Registry
	handles HandleSource

	// Guards in-flight refreshes. Distinct from the manager's creation
	// guard: the two must not share a namespace.
	updating *guard.Set
}

func NewAggregator(reg *registry.Registry, handles HandleSource) *Aggregator {
	return &Aggregator{
		reg:      reg,
		handles:  handles,
		updating: guard.NewSet(),
	}
}

// Refresh recomputes size and object count for the named collection and
// upserts the result. The file stat and the document count run
// concurrently; whatever succeeds is persisted even when the other side
// fails, and the sub-task error is still returned. A refresh already in
// flight for the name makes Refresh return (nil, nil) without working.
func (a *Aggregator) Refresh(ctx context.Context, name string) (*domain.RegistryEntry, error) {
	if !a.updating.TryAcquire(name) {
		return nil, nil
	}
	defer a.updating.Release(name)

	var sizeBytes int64
	var objectCount *int64

	g := errgroup.Group{}
	g.Go(func() error {
		// Missing or unreadable file counts as size 0, not a failure
		info, err := os.Stat(a.handles.FilePath(name))
		if err == nil {
			sizeBytes = info.Size()
		}
		return nil
	})
	g.Go(func() error {
		h, exists := a.handles.Lookup(name)
		if !exists {
			return fmt.Errorf("no open handle for collection %s", name)
		}
		n, err := h.Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to count collection %s: %w", name, err)
		}
		objectCount = &n
		return nil
	})
	refreshErr := g.Wait()

	set := domain.Document{
		"sizeBytes": sizeBytes,
		"updatedAt": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if objectCount != nil {
		set["objectCount"] = *objectCount
	}

	entry, err := a.reg.Upsert(ctx, name, set)
	if err != nil {
		return nil, err
	}
	if refreshErr != nil {
		log.Printf("WARN: Metadata refresh for '%s' was partial: %v", name, refreshErr)
	}
	return entry, refreshErr
}

// RefreshAll refreshes every named collection in parallel. All refreshes
// run to completion; the first error seen is returned.
func (a *Aggregator) RefreshAll(ctx context.Context, names []string) error {
	g := errgroup.Group{}
	for _, name := range names {
		name := name
		g.Go(func() error {
			_, err := a.Refresh(ctx, name)
			return err
		})
	}
	return g.Wait()
}
