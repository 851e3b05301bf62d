package domain

import "time"

// SchemaVersion is the registry entry format version, fixed at creation time.
const SchemaVersion = 1

// RegistryEntry is the registry's record of one tracked collection.
// ObjectCount is nil until a metadata refresh has computed it.
type RegistryEntry struct {
	SchemaVersion  int
	CollectionName string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	SizeBytes      int64
	ObjectCount    *int64
}

// Objects returns the object count, treating a never-computed count as 0.
func (e *RegistryEntry) Objects() int64 {
	if e.ObjectCount == nil {
		return 0
	}
	return *e.ObjectCount
}
