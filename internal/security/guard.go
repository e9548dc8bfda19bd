package security

// GuardService is the AppContext service key of the *Guard.
const GuardService = "security.guard"

// Guard bundles the request-edge protections the HTTP layer applies.
// Any nil field disables that protection.
type Guard struct {
	Limiter         *RateLimiter
	Audit           *AuditLogger
	MaxMessageBytes int
}

// CheckMessage validates a submitted message body.
func (g *Guard) CheckMessage(msg string) error {
	limit := 0
	if g != nil {
		limit = g.MaxMessageBytes
	}
	return ValidateMessageSize([]byte(msg), limit)
}

// Allow consumes one event from bucket kind. A nil Guard or Limiter allows
// everything.
func (g *Guard) Allow(kind string) error {
	if g == nil || g.Limiter == nil {
		return nil
	}
	return g.Limiter.Allow(kind)
}

// Log records event in the audit log, if any.
func (g *Guard) Log(event AuditEvent) {
	if g == nil {
		return
	}
	g.Audit.Log(event)
}
