package handlers

import "net/http"

// StatsHandler reports catalogue totals.
type StatsHandler struct {
	Stats StatsStore
}

type statsResponse struct {
	Movies  int `json:"movies"`
	Streams int `json:"streams"`
	Entries int `json:"entries"`
}

// Handle implements GET /stats.
func (h StatsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.Stats.Counts(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, statsResponse{Movies: stats.Movies, Streams: stats.Streams, Entries: stats.Entries})
}
