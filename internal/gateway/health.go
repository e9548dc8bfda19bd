package gateway

import (
	"net/http"

	"github.com/flemzord/aether/internal/provider"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status        string                 `json:"status"` // "ok" or "degraded"
	Conversations int                    `json:"conversations"`
	Providers     []provider.EntryStatus `json:"providers"`
}

// handleHealth returns 200 when a provider can take a request and 503 when
// none can.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:        "ok",
			Conversations: g.chat.Stats().Conversations,
			Providers:     []provider.EntryStatus{},
		}

		code := http.StatusOK
		if g.chain != nil {
			resp.Providers = g.chain.Status()
			if !g.chain.Available() {
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, code, resp)
	}
}
