package api

import (
	"context"

	"github.com/docdir/docdir/pkg/domain"
	"github.com/docdir/docdir/pkg/engine"
)

// Database is the facade surface the handlers need
type Database interface {
	Collection(name string) *engine.Store
	ListCollections() []string
	DropCollection(ctx context.Context, name string) error
	Stats(ctx context.Context) (*domain.Stats, error)
}

// Handler provides HTTP handlers for the database API
type Handler struct {
	db Database
}

// NewHandler creates a new API handler with dependency injection
func NewHandler(db Database) *Handler {
	return &Handler{db: db}
}
