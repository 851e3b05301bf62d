package api

import (
	"encoding/json"
	"log"
	"net/http"
)

// HandleStats handles GET requests for aggregate database statistics
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.Stats(r.Context())
	if err != nil {
		log.Printf("ERROR: Stats failed: %v", err)
		WriteStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
