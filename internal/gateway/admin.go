package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/flemzord/aether/internal/conversation"
	"github.com/flemzord/aether/internal/core"
	"github.com/go-chi/chi/v5"
)

// conversationJSON is the admin view of a conversation.
type conversationJSON struct {
	ID      string              `json:"id"`
	Title   string              `json:"title"`
	Active  bool                `json:"active"`
	Turns   int                 `json:"turns"`
	History []conversation.Turn `json:"history,omitempty"`
}

// handleListConversations lists every conversation, empty ones included,
// without their history.
func (g *Gateway) handleListConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		active := g.chat.Stats().Active
		convs := g.chat.Conversations()
		out := make([]conversationJSON, 0, len(convs))
		for _, c := range convs {
			out = append(out, conversationJSON{
				ID:     c.ID,
				Title:  c.Title,
				Active: c.ID == active,
				Turns:  len(c.History),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleGetConversation returns one conversation with its history.
func (g *Gateway) handleGetConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		for _, c := range g.chat.Conversations() {
			if c.ID != id {
				continue
			}
			writeJSON(w, http.StatusOK, conversationJSON{
				ID:      c.ID,
				Title:   c.Title,
				Active:  c.ID == g.chat.Stats().Active,
				Turns:   len(c.History),
				History: c.History,
			})
			return
		}
		http.Error(w, "conversation not found", http.StatusNotFound)
	}
}

// handleListMemory returns the memory log in key order.
func (g *Gateway) handleListMemory() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, g.chat.Memories())
	}
}

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleListModules lists all compiled modules.
func (g *Gateway) handleListModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
