// Package registry wraps one store instance bound to the internal
// registry file. The registry is itself a collection, but it is the one
// hardcoded exception that no registry entry describes: it tracks every
// collection except itself.
package registry

import (
	"context"
	"path/filepath"
	"time"

	"github.com/docdir/docdir/pkg/domain"
	"github.com/docdir/docdir/pkg/engine"
)

// FileName is the registry's log file inside the data directory.
const FileName = "_registry.json"

// Registry records, per tracked collection, its schema version, creation
// time, last metadata refresh, on-disk size, and object count.
type Registry struct {
	store *engine.Store
}

// Open creates the registry on <dir>/_registry.json and begins loading it.
func Open(dir string, options ...engine.Option) *Registry {
	return &Registry{
		store: engine.Open(filepath.Join(dir, FileName), options...),
	}
}

// WaitReady blocks until the registry store has loaded.
func (r *Registry) WaitReady(ctx context.Context) error {
	return r.store.WaitReady(ctx)
}

// OnReady registers fn to run when the registry store load completes.
func (r *Registry) OnReady(fn func(error)) {
	r.store.OnReady(fn)
}

// Close closes the underlying store.
func (r *Registry) Close() error {
	return r.store.Close()
}

// Find returns the entry for the named collection, or nil when absent.
func (r *Registry) Find(ctx context.Context, name string) (*domain.RegistryEntry, error) {
	docs, err := r.store.Find(ctx, domain.Document{"collectionName": name})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	entry := docToEntry(docs[0])
	return &entry, nil
}

// All returns every registry entry, ordered by store iteration.
func (r *Registry) All(ctx context.Context) ([]domain.RegistryEntry, error) {
	docs, err := r.store.Find(ctx, nil)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.RegistryEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, docToEntry(doc))
	}
	return entries, nil
}

// Insert records a new entry. Uniqueness per collection name is enforced
// by the manager's creation protocol, not here.
func (r *Registry) Insert(entry *domain.RegistryEntry) error {
	return r.store.Insert(entryToDoc(entry))
}

// Upsert merges the given fields into the named collection's entry,
// inserting one when absent, and returns the result.
func (r *Registry) Upsert(ctx context.Context, name string, set domain.Document) (*domain.RegistryEntry, error) {
	doc, err := r.store.Update(ctx, domain.Document{"collectionName": name}, set, true)
	if err != nil {
		return nil, err
	}
	entry := docToEntry(doc)
	return &entry, nil
}

// Remove drops the named collection's entry and returns how many records
// were removed.
func (r *Registry) Remove(ctx context.Context, name string) (int, error) {
	return r.store.Remove(ctx, domain.Document{"collectionName": name})
}

func entryToDoc(entry *domain.RegistryEntry) domain.Document {
	doc := domain.Document{
		"schemaVersion":  entry.SchemaVersion,
		"collectionName": entry.CollectionName,
		"createdAt":      entry.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt":      entry.UpdatedAt.Format(time.RFC3339Nano),
		"sizeBytes":      entry.SizeBytes,
	}
	if entry.ObjectCount != nil {
		doc["objectCount"] = *entry.ObjectCount
	}
	return doc
}

func docToEntry(doc domain.Document) domain.RegistryEntry {
	entry := domain.RegistryEntry{
		SchemaVersion:  int(asInt64(doc["schemaVersion"])),
		CollectionName: asString(doc["collectionName"]),
		CreatedAt:      asTime(doc["createdAt"]),
		UpdatedAt:      asTime(doc["updatedAt"]),
		SizeBytes:      asInt64(doc["sizeBytes"]),
	}
	if v, ok := doc["objectCount"]; ok && v != nil {
		count := asInt64(v)
		entry.ObjectCount = &count
	}
	return entry
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// asInt64 accepts the numeric types a value passes through: native ints
// from live writes, float64 after a JSON log replay.
func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asTime(v interface{}) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
