package main

import (
	"encoding/json"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/capsense.hub/internal/monitoring"
)

// attachCycleStats mounts the scan-cycle timing summary under /debug/.
func attachCycleStats(mux *http.ServeMux, stats *monitoring.CycleStats) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("cycle-stats", "scan cycle timing summary", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats.Summary()); err != nil {
			http.Error(w, "failed to encode stats", http.StatusInternalServerError)
		}
	})
}
