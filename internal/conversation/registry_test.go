package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/flemzord/aether/internal/store"
	"github.com/flemzord/aether/internal/store/storetest"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("conv-%d", n)
	}
}

func newTestRegistry(t *testing.T, s store.Store) *Registry {
	t.Helper()
	r, err := Load(t.Context(), s, Options{NewID: sequentialIDs()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return r
}

func TestLoad_EmptyStoreHasDefaultConversation(t *testing.T) {
	t.Parallel()

	s := storetest.NewMemory()
	r := newTestRegistry(t, s)

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	active := r.Active()
	if active.ID != "conv-1" || active.Title != DefaultTitle || len(active.History) != 0 {
		t.Errorf("Active() = %+v", active)
	}
	if got := r.List(); len(got) != 0 {
		t.Errorf("List() = %v, want empty sidebar", got)
	}
	if s.Saves() != 0 {
		t.Errorf("Load saved %d times, want 0", s.Saves())
	}
}

func TestCreateNew_EmptyActiveIsNoop(t *testing.T) {
	t.Parallel()

	s := storetest.NewMemory()
	r := newTestRegistry(t, s)
	before := r.ActiveID()

	id, created, err := r.CreateNew(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if created || id != before || r.ActiveID() != before {
		t.Errorf("CreateNew() = (%q, %v), active %q; want no-op on %q", id, created, r.ActiveID(), before)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	if s.Saves() != 0 {
		t.Errorf("no-op CreateNew saved %d times", s.Saves())
	}
}

func TestCreateNew_AfterTurns(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, storetest.NewMemory())
	first := r.ActiveID()
	if err := r.AppendTurn(t.Context(), RoleUser, "hi"); err != nil {
		t.Fatal(err)
	}

	id, created, err := r.CreateNew(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if !created || id == first || r.ActiveID() != id {
		t.Fatalf("CreateNew() = (%q, %v), active %q", id, created, r.ActiveID())
	}
	active := r.Active()
	if len(active.History) != 0 || active.Title != DefaultTitle {
		t.Errorf("new conversation = %+v", active)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestSwitchTo(t *testing.T) {
	t.Parallel()

	s := storetest.NewMemory()
	r := newTestRegistry(t, s)
	first := r.ActiveID()
	_ = r.AppendTurn(t.Context(), RoleUser, "one")
	second, _, _ := r.CreateNew(t.Context())
	saves := s.Saves()

	switched, err := r.SwitchTo(t.Context(), "missing")
	if err != nil || switched {
		t.Errorf("SwitchTo(missing) = %v, %v", switched, err)
	}
	if r.ActiveID() != second {
		t.Errorf("active = %q, want unchanged %q", r.ActiveID(), second)
	}
	if s.Saves() != saves {
		t.Error("unknown id should not save")
	}

	switched, err = r.SwitchTo(t.Context(), first)
	if err != nil || !switched || r.ActiveID() != first {
		t.Errorf("SwitchTo(first) = %v, %v; active %q", switched, err, r.ActiveID())
	}
}

func TestAppend_TitleSetOnce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		first string
		want  string
	}{
		{name: "short", first: "Hello", want: "Hello"},
		{name: "truncated", first: strings.Repeat("abcdefghij", 4), want: strings.Repeat("abcdefghij", 3)},
		{name: "runes", first: strings.Repeat("é", 40), want: strings.Repeat("é", 30)},
		{name: "trimmed", first: "  padded  ", want: "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newTestRegistry(t, storetest.NewMemory())

			if err := r.Append(t.Context(),
				Turn{Role: RoleUser, Content: tt.first},
				Turn{Role: RoleAssistant, Content: "reply"},
			); err != nil {
				t.Fatal(err)
			}
			if got := r.Active().Title; got != tt.want {
				t.Errorf("title = %q, want %q", got, tt.want)
			}

			_ = r.AppendTurn(t.Context(), RoleUser, "something else entirely")
			if got := r.Active().Title; got != tt.want {
				t.Errorf("title after second turn = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppend_AssistantFirstDoesNotTitle(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, storetest.NewMemory())
	_ = r.AppendTurn(t.Context(), RoleAssistant, "greeting")
	if got := r.Active().Title; got != DefaultTitle {
		t.Errorf("title = %q, want default", got)
	}
	_ = r.AppendTurn(t.Context(), RoleUser, "question")
	if got := r.Active().Title; got != "question" {
		t.Errorf("title = %q, want %q", got, "question")
	}
}

func TestAppend_InvalidRole(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, storetest.NewMemory())
	err := r.AppendTurn(t.Context(), Role("system"), "x")
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("err = %v, want ErrInvalidRole", err)
	}
	if len(r.Active().History) != 0 {
		t.Error("invalid turn was appended")
	}
}

func TestAppend_FailedSaveChangesNothing(t *testing.T) {
	t.Parallel()

	s := storetest.NewMemory()
	r := newTestRegistry(t, s)
	_ = r.AppendTurn(t.Context(), RoleUser, "kept")
	disk := s.Raw(store.KindConversations)

	s.SaveErr = errors.New("disk full")
	if err := r.AppendTurn(t.Context(), RoleAssistant, "lost"); err == nil {
		t.Fatal("expected save error")
	}
	if _, _, err := r.CreateNew(t.Context()); err == nil {
		t.Fatal("expected save error from CreateNew")
	}

	active := r.Active()
	if len(active.History) != 1 || active.History[0].Content != "kept" {
		t.Errorf("history = %v, want only the saved turn", active.History)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	if string(s.Raw(store.KindConversations)) != string(disk) {
		t.Error("stored document changed after failed save")
	}
}

func TestActive_ReturnsCopy(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, storetest.NewMemory())
	_ = r.AppendTurn(t.Context(), RoleUser, "original")

	c := r.Active()
	c.History[0].Content = "mutated"

	if got := r.Active().History[0].Content; got != "original" {
		t.Errorf("registry state mutated through copy: %q", got)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	s := storetest.NewMemory()
	r := newTestRegistry(t, s)
	_ = r.Append(t.Context(), Turn{RoleUser, "Hello"}, Turn{RoleAssistant, "Hi!"})
	_, _, _ = r.CreateNew(t.Context())
	_ = r.Append(t.Context(), Turn{RoleUser, "Second"}, Turn{RoleAssistant, "Yes"})

	reloaded, err := Load(t.Context(), s, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.ActiveID() != r.ActiveID() {
		t.Errorf("active = %q, want %q", reloaded.ActiveID(), r.ActiveID())
	}
	want, got := r.All(), reloaded.All()
	if len(got) != len(want) {
		t.Fatalf("All() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Title != want[i].Title || len(got[i].History) != len(want[i].History) {
			t.Errorf("conversation %d = %+v, want %+v", i, got[i], want[i])
			continue
		}
		for j := range want[i].History {
			if got[i].History[j] != want[i].History[j] {
				t.Errorf("turn %d/%d = %+v, want %+v", i, j, got[i].History[j], want[i].History[j])
			}
		}
	}
}

func TestList_CreationOrderSkipsEmpty(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, storetest.NewMemory())
	for _, msg := range []string{"a", "b", "c"} {
		_ = r.AppendTurn(t.Context(), RoleUser, msg)
		_, _, _ = r.CreateNew(t.Context())
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("List() len = %d, want 3 (trailing empty conversation hidden)", len(list))
	}
	for i, want := range []string{"a", "b", "c"} {
		if list[i].Title != want || list[i].Active {
			t.Errorf("List()[%d] = %+v", i, list[i])
		}
	}
}

func TestLoad_Corrupt(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"not json":        `{"version":`,
		"wrong version":   `{"version":7,"active":"a","conversations":{}}`,
		"bad role":        `{"version":1,"active":"a","conversations":{"a":{"title":"x","history":[{"role":"robot","content":"x"}]}}}`,
		"null record":     `{"version":1,"active":"a","conversations":{"a":null}}`,
		"legacy bad role": `[{"role":"robot","content":"x"}]`,
		"scalar":          `42`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := storetest.NewMemory()
			s.Put(store.KindConversations, body)

			_, err := Load(t.Context(), s, Options{})
			if !errors.Is(err, store.ErrCorrupt) {
				t.Fatalf("err = %v, want ErrCorrupt", err)
			}
			if string(s.Raw(store.KindConversations)) != body {
				t.Error("corrupt document was overwritten")
			}
		})
	}
}

func TestLoad_LegacyHistoryMigrated(t *testing.T) {
	t.Parallel()

	s := storetest.NewMemory()
	s.Put(store.KindConversations, `[
		{"role":"user","content":"What is the capital of France, please tell me?"},
		{"role":"assistant","content":"Paris."}
	]`)

	r := newTestRegistry(t, s)
	active := r.Active()
	if len(active.History) != 2 || active.Title != "What is the capital of France," {
		t.Fatalf("migrated = %+v", active)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	var doc document
	if err := json.Unmarshal(s.Raw(store.KindConversations), &doc); err != nil {
		t.Fatalf("migrated document not saved as a set: %v", err)
	}
	if doc.Version != documentVersion || doc.Active != active.ID {
		t.Errorf("saved document = %+v", doc)
	}
}

func TestLoad_RepairsOrderAndActive(t *testing.T) {
	t.Parallel()

	s := storetest.NewMemory()
	s.Put(store.KindConversations, `{
		"version": 1,
		"active": "gone",
		"order": ["b", "ghost", "b"],
		"conversations": {
			"a": {"title": "A", "history": [{"role":"user","content":"a"}]},
			"b": {"title": "B", "history": [{"role":"user","content":"b"}]}
		}
	}`)

	r := newTestRegistry(t, s)
	list := r.List()
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" {
		t.Fatalf("List() = %+v, want b then a", list)
	}
	if r.ActiveID() != "a" {
		t.Errorf("active = %q, want most recent %q", r.ActiveID(), "a")
	}
}

func TestLoad_EmptySetGetsDefault(t *testing.T) {
	t.Parallel()

	s := storetest.NewMemory()
	s.Put(store.KindConversations, `{"version":1,"active":"","conversations":{}}`)

	r := newTestRegistry(t, s)
	if r.Len() != 1 || r.Active().Title != DefaultTitle {
		t.Errorf("registry = %d conversations, active %+v", r.Len(), r.Active())
	}
}

func TestScenario_HelloNewSwitchBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newTestRegistry(t, storetest.NewMemory())
	first := r.ActiveID()

	if err := r.Append(ctx, Turn{RoleUser, "Hello"}, Turn{RoleAssistant, "Hi there"}); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 1 || len(r.Active().History) != 2 || r.Active().Title != "Hello" {
		t.Fatalf("after submit: len %d, active %+v", r.Len(), r.Active())
	}

	second, created, err := r.CreateNew(ctx)
	if err != nil || !created || second == first {
		t.Fatalf("CreateNew = %q, %v, %v", second, created, err)
	}
	if a := r.Active(); len(a.History) != 0 || a.Title != DefaultTitle {
		t.Fatalf("new active = %+v", a)
	}

	if ok, err := r.SwitchTo(ctx, first); !ok || err != nil {
		t.Fatalf("SwitchTo = %v, %v", ok, err)
	}
	back := r.Active()
	if back.ID != first || len(back.History) != 2 || back.History[0].Content != "Hello" || back.History[1].Content != "Hi there" {
		t.Errorf("switched back to %+v", back)
	}
}
