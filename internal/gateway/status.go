package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/aether/internal/chat"
	"github.com/flemzord/aether/internal/provider"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime    int64                  `json:"uptime_seconds"`
	Metrics   MetricsSnapshot        `json:"metrics"`
	Chat      chat.Stats             `json:"chat"`
	Clients   int                    `json:"ws_clients"`
	Providers []provider.EntryStatus `json:"providers"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:    int64(time.Since(g.startedAt) / time.Second),
			Metrics:   g.metrics.Snapshot(),
			Chat:      g.chat.Stats(),
			Clients:   g.hub.Len(),
			Providers: []provider.EntryStatus{},
		}
		if g.chain != nil {
			resp.Providers = g.chain.Status()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
