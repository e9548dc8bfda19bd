package security

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// RedactPlaceholder replaces every redacted secret.
const RedactPlaceholder = "***REDACTED***"

// Redactor scrubs secrets out of strings. It matches both well-known API key
// shapes and the literal credential values loaded at runtime.
// All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: DefaultPatterns(),
	}
}

// AddLiteral registers a literal secret. Empty strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// SyncCredentials replaces the literal set with the store's current values.
func (r *Redactor) SyncCredentials(store *CredentialStore) {
	values := store.Values()
	// Longest first so a secret containing another is replaced whole.
	slices.SortFunc(values, func(a, b string) int { return cmp.Compare(len(b), len(a)) })
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = values
}

// Redact returns s with every known secret replaced by RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	return s
}

// DefaultPatterns returns the key formats of the supported completion
// providers plus bearer headers.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Groq
		regexp.MustCompile(`gsk_[a-zA-Z0-9]{20,}`),
		// Anthropic, matched before the generic sk- prefix
		regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-_]{20,}`),
		// OpenAI and most OpenAI-compatible hosts
		regexp.MustCompile(`sk-[a-zA-Z0-9\-_]{20,}`),
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-_.=]{16,}`),
	}
}
