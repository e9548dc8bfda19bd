// Package chat owns the application state: the conversation registry, the
// memory log, and the completion gateway. The HTTP layer talks to a Service
// and never to the parts directly.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/flemzord/aether/internal/completion"
	"github.com/flemzord/aether/internal/conversation"
	"github.com/flemzord/aether/internal/memory"
	"github.com/flemzord/aether/internal/security"
	"github.com/flemzord/aether/internal/store"
)

// ServiceKey is the AppContext service key of the *Service.
const ServiceKey = "chat.service"

// ErrPersist wraps store failures while saving memory or turns.
var ErrPersist = errors.New("chat: saving state failed")

// Completer produces the assistant reply. *completion.Gateway implements it.
type Completer interface {
	Complete(ctx context.Context, system string, history []conversation.Turn, message string) (completion.Reply, error)
}

// Options configure a Service.
type Options struct {
	Completer Completer
	Prompt    *PromptBuilder

	// Notifier receives an Event after every state change. Optional.
	Notifier Notifier

	// Audit records conversation and memory changes. Optional.
	Audit *security.AuditLogger

	Logger *slog.Logger

	DefaultTitle  string
	TitleMaxLen   int
	MemoryTrigger string
}

// Service is the chat application state. Mutations are serialized; reads
// go straight to the registry and memory log.
type Service struct {
	conversations *conversation.Registry
	memories      *memory.Log
	completer     Completer
	prompt        *PromptBuilder
	notifier      Notifier
	audit         *security.AuditLogger
	logger        *slog.Logger

	mu sync.Mutex
}

// Open loads the conversation set and memory log from s.
func Open(ctx context.Context, s store.Store, opts Options) (*Service, error) {
	if opts.Completer == nil {
		return nil, errors.New("chat: completer is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Prompt == nil {
		p, err := NewPromptBuilder(DefaultProfile(), "")
		if err != nil {
			return nil, err
		}
		opts.Prompt = p
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}

	conversations, err := conversation.Load(ctx, s, conversation.Options{
		DefaultTitle: opts.DefaultTitle,
		TitleMaxLen:  opts.TitleMaxLen,
		Logger:       opts.Logger.With("component", "conversations"),
	})
	if err != nil {
		return nil, fmt.Errorf("chat: loading conversations: %w", err)
	}

	memories, err := memory.Load(ctx, s,
		memory.WithTrigger(opts.MemoryTrigger),
		memory.WithLogger(opts.Logger.With("component", "memory")),
	)
	if err != nil {
		return nil, fmt.Errorf("chat: loading memory: %w", err)
	}

	opts.Logger.Info("chat state loaded",
		"conversations", conversations.Len(),
		"memories", memories.Len(),
		"active", conversations.ActiveID(),
	)

	return &Service{
		conversations: conversations,
		memories:      memories,
		completer:     opts.Completer,
		prompt:        opts.Prompt,
		notifier:      opts.Notifier,
		audit:         opts.Audit,
		logger:        opts.Logger,
	}, nil
}

// Outcome describes what Submit did.
type Outcome struct {
	// Skipped is true when the message was blank and nothing happened.
	Skipped bool

	ConversationID string
	Reply          completion.Reply

	// MemoryKey is the key the message was recorded under, if it was.
	MemoryKey string
}

// Submit handles a user message. Blank messages are dropped without calling
// the service. Otherwise the message is recorded in memory when it carries
// the trigger, the reply is requested, and the user and assistant turns are
// appended together. When the completion fails no turn is appended and the
// error is returned.
func (s *Service) Submit(ctx context.Context, message string) (Outcome, error) {
	if strings.TrimSpace(message) == "" {
		return Outcome{Skipped: true}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.conversations.Active()
	out := Outcome{ConversationID: active.ID}

	if s.memories.IsTrigger(message) {
		key, err := s.memories.Record(ctx, message)
		if err != nil {
			return out, fmt.Errorf("%w: recording memory: %w", ErrPersist, err)
		}
		out.MemoryKey = key
		s.audit.Log(security.AuditEvent{
			Type:           security.EventMemoryRecord,
			ConversationID: active.ID,
			Metadata:       map[string]string{"key": key},
		})
		s.notifier.Notify(Event{Type: EventMemoryRecorded, ConversationID: active.ID})
	}

	system := s.prompt.Build(s.memories.Snapshot())
	reply, err := s.completer.Complete(ctx, system, active.History, message)
	if err != nil {
		s.audit.Log(security.AuditEvent{
			Type:           security.EventCompletionFailure,
			ConversationID: active.ID,
			Detail:         err.Error(),
		})
		return out, err
	}
	out.Reply = reply

	// Saved even when the caller has gone away.
	if err := s.conversations.Append(context.WithoutCancel(ctx),
		conversation.Turn{Role: conversation.RoleUser, Content: message},
		conversation.Turn{Role: conversation.RoleAssistant, Content: reply.Content},
	); err != nil {
		return out, fmt.Errorf("%w: saving turns: %w", ErrPersist, err)
	}

	s.audit.Log(security.AuditEvent{
		Type:           security.EventCompletion,
		ConversationID: active.ID,
		Metadata: map[string]string{
			"provider": reply.Provider,
			"latency":  reply.Latency.String(),
		},
	})
	s.notifier.Notify(Event{Type: EventMessage, ConversationID: active.ID})
	return out, nil
}

// NewConversation creates a conversation and makes it active, unless the
// active one is still empty. It returns the active id afterwards.
func (s *Service) NewConversation(ctx context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, created, err := s.conversations.CreateNew(ctx)
	if err != nil {
		return "", false, fmt.Errorf("chat: %w", err)
	}
	if created {
		s.audit.Log(security.AuditEvent{Type: security.EventConversationCreate, ConversationID: id})
		s.notifier.Notify(Event{Type: EventConversationCreated, ConversationID: id})
	}
	return id, created, nil
}

// Switch makes id active. Unknown ids are ignored.
func (s *Service) Switch(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.conversations.ActiveID()
	switched, err := s.conversations.SwitchTo(ctx, id)
	if err != nil {
		return false, fmt.Errorf("chat: %w", err)
	}
	if switched && id != before {
		s.audit.Log(security.AuditEvent{Type: security.EventConversationSwitch, ConversationID: id})
		s.notifier.Notify(Event{Type: EventConversationSwitched, ConversationID: id})
	}
	return switched, nil
}

// View is what the page renders.
type View struct {
	Active        conversation.Conversation
	Conversations []conversation.Summary
	MemoryCount   int
}

// View returns the current state for rendering.
func (s *Service) View() View {
	return View{
		Active:        s.conversations.Active(),
		Conversations: s.conversations.List(),
		MemoryCount:   s.memories.Len(),
	}
}

// Conversations returns every conversation in creation order.
func (s *Service) Conversations() []conversation.Conversation {
	return s.conversations.All()
}

// Memories returns the memory log in key order.
func (s *Service) Memories() []memory.Entry {
	return s.memories.Entries()
}

// Stats summarizes the state for status endpoints.
type Stats struct {
	Conversations int    `json:"conversations"`
	Memories      int    `json:"memories"`
	Active        string `json:"active"`
}

// Stats returns counts of the current state.
func (s *Service) Stats() Stats {
	return Stats{
		Conversations: s.conversations.Len(),
		Memories:      s.memories.Len(),
		Active:        s.conversations.ActiveID(),
	}
}
