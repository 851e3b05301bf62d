package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/docdir/docdir/pkg/domain"
)

// HandleFind handles GET requests to retrieve documents from a collection.
// Query parameters become equality filters: ?name=Alice matches documents
// whose name field equals "Alice".
func (h *Handler) HandleFind(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName := vars["coll"]

	query := domain.Document{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}

	docs, err := h.db.Collection(collName).Find(r.Context(), query)
	if err != nil {
		log.Printf("ERROR: Find failed for collection '%s': %v", collName, err)
		WriteStoreError(w, err)
		return
	}

	log.Printf("INFO: Found %d documents in collection '%s'", len(docs), collName)
	if docs == nil {
		docs = []domain.Document{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(docs)
}
