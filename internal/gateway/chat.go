package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/flemzord/aether/internal/chat"
	"github.com/flemzord/aether/internal/completion"
	"github.com/flemzord/aether/internal/security"
	"github.com/go-chi/chi/v5"
)

// formOverhead bounds the form encoding around the message field.
const formOverhead = 4 << 10

// User-facing error texts.
const (
	msgTimeout     = "The assistant took too long to answer. Please try again."
	msgUnavailable = "The assistant is unavailable right now. Please try again in a moment."
	msgTooLarge    = "That message is too long."
	msgEncoding    = "That message could not be read."
	msgRateLimited = "You are sending messages too quickly. Please wait a moment."
	msgInternal    = "Your message could not be saved."
)

// handleIndex renders the page for the active conversation.
func (g *Gateway) handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		g.renderPage(w, http.StatusOK, "", "")
	}
}

// handleSubmit submits the "message" form field and re-renders the page.
// Failures render an error bubble and keep the draft.
func (g *Gateway) handleSubmit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := security.DefaultMaxMessageSize
		if g.guard != nil && g.guard.MaxMessageBytes > 0 {
			limit = g.guard.MaxMessageBytes
		}
		r.Body = http.MaxBytesReader(w, r.Body, int64(limit)*3+formOverhead)
		if err := r.ParseForm(); err != nil {
			g.metrics.RecordSubmission(resultRejected)
			g.renderPage(w, http.StatusRequestEntityTooLarge, msgTooLarge, "")
			return
		}
		msg := r.PostForm.Get("message")

		if err := g.guard.CheckMessage(msg); err != nil {
			g.metrics.RecordSubmission(resultRejected)
			if errors.Is(err, security.ErrInvalidEncoding) {
				g.renderPage(w, http.StatusBadRequest, msgEncoding, "")
				return
			}
			g.renderPage(w, http.StatusRequestEntityTooLarge, msgTooLarge, "")
			return
		}

		if err := g.guard.Allow(security.BucketMessage); err != nil {
			g.metrics.RecordSubmission(resultLimited)
			g.guard.Log(security.AuditEvent{Type: security.EventRateLimit, Remote: r.RemoteAddr, Detail: security.BucketMessage})
			w.Header().Set("Retry-After", "60")
			g.renderPage(w, http.StatusTooManyRequests, msgRateLimited, msg)
			return
		}

		out, err := g.chat.Submit(r.Context(), msg)
		if err != nil {
			g.metrics.RecordSubmission(resultFailed)
			code, text := submitFailure(err)
			g.logger.Warn("submission failed", "error", err, "status", code)
			g.renderPage(w, code, text, msg)
			return
		}
		if out.Skipped {
			g.metrics.RecordSubmission(resultSkipped)
		} else {
			g.metrics.RecordSubmission(resultOK)
		}
		g.renderPage(w, http.StatusOK, "", "")
	}
}

// submitFailure maps a Submit error to a status code and bubble text.
// Only store failures report the message as unsaved.
func submitFailure(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrPersist):
		return http.StatusInternalServerError, msgInternal
	case errors.Is(err, completion.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, msgTimeout
	default:
		return http.StatusBadGateway, msgUnavailable
	}
}

// handleNew creates a conversation unless the active one is empty.
func (g *Gateway) handleNew() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := g.guard.Allow(security.BucketConversation); err != nil {
			g.guard.Log(security.AuditEvent{Type: security.EventRateLimit, Remote: r.RemoteAddr, Detail: security.BucketConversation})
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		if _, _, err := g.chat.NewConversation(r.Context()); err != nil {
			g.logger.Error("creating conversation", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleSwitch activates {id}. Unknown ids are acknowledged the same way.
func (g *Gateway) handleSwitch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := g.chat.Switch(r.Context(), chi.URLParam(r, "id")); err != nil {
			g.logger.Error("switching conversation", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (g *Gateway) renderPage(w http.ResponseWriter, code int, errMsg, draft string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := g.page.render(w, g.chat.View(), errMsg, draft); err != nil {
		g.logger.Error("rendering page", "error", err)
	}
}
