package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/docdir/docdir/pkg/domain"
)

// HandleInsert handles POST requests to add a document to a collection.
// Referencing a new collection name creates it.
func (h *Handler) HandleInsert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName := vars["coll"]

	var doc domain.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.db.Collection(collName).Insert(doc); err != nil {
		log.Printf("ERROR: Insert failed for collection '%s': %v", collName, err)
		WriteStoreError(w, err)
		return
	}

	log.Printf("INFO: Insert successful for collection '%s'", collName)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(doc)
}
