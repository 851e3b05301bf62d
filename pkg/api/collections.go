package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// ListCollectionsResponse wraps the collection name listing
type ListCollectionsResponse struct {
	Collections []string `json:"collections"`
}

// HandleListCollections handles GET requests for the open collection names
func (h *Handler) HandleListCollections(w http.ResponseWriter, r *http.Request) {
	names := h.db.ListCollections()
	if names == nil {
		names = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListCollectionsResponse{Collections: names})
}

// HandleDropCollection handles DELETE requests to forget a collection's
// registry entry. The on-disk file is retained.
func (h *Handler) HandleDropCollection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName := vars["coll"]

	if err := h.db.DropCollection(r.Context(), collName); err != nil {
		log.Printf("ERROR: Drop failed for collection '%s': %v", collName, err)
		WriteStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
