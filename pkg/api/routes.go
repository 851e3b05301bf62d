package api

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API routes with the given router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	// Collection listing and registry-level operations
	router.HandleFunc("/collections", h.HandleListCollections).Methods("GET")
	router.HandleFunc("/collections/{coll}", h.HandleDropCollection).Methods("DELETE")

	// Document operations
	router.HandleFunc("/collections/{coll}/documents", h.HandleInsert).Methods("POST")
	router.HandleFunc("/collections/{coll}/documents", h.HandleFind).Methods("GET")

	// Aggregate stats across all tracked collections
	router.HandleFunc("/stats", h.HandleStats).Methods("GET")

	// Health check
	router.HandleFunc("/health", h.HandleHealth).Methods("GET")
}
