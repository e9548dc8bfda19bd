// Package conversation holds the set of named conversations and the active
// pointer. Every mutation is persisted as one whole document before it
// becomes visible.
package conversation

import (
	"errors"
	"slices"
	"strings"
	"unicode/utf8"
)

// Role identifies who authored a turn.
type Role string

// Turn roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Default presentation values.
const (
	DefaultTitle       = "New chat"
	DefaultTitleMaxLen = 30
)

// ErrInvalidRole is returned when appending a turn with an unknown role.
var ErrInvalidRole = errors.New("conversation: invalid role")

// Turn is one role-tagged message. Turns are immutable once appended.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is a copy of a stored conversation.
type Conversation struct {
	ID      string
	Title   string
	History []Turn
}

// Summary is the sidebar view of a conversation.
type Summary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Turns  int    `json:"turns"`
	Active bool   `json:"active"`
}

// deriveTitle trims msg and truncates it to maxLen runes.
func deriveTitle(msg string, maxLen int) string {
	msg = strings.TrimSpace(msg)
	if maxLen <= 0 || utf8.RuneCountInString(msg) <= maxLen {
		return msg
	}
	return string([]rune(msg)[:maxLen])
}

func hasUserTurn(history []Turn) bool {
	return slices.ContainsFunc(history, func(t Turn) bool { return t.Role == RoleUser })
}
