package memory

import (
	"errors"
	"strconv"
	"testing"

	"github.com/flemzord/aether/internal/store"
	"github.com/flemzord/aether/internal/store/storetest"
)

func newTestLog(t *testing.T, s store.Store, opts ...Option) *Log {
	t.Helper()
	l, err := Load(t.Context(), s, opts...)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return l
}

func TestIsTrigger(t *testing.T) {
	t.Parallel()

	l := newTestLog(t, storetest.NewMemory())
	tests := []struct {
		msg  string
		want bool
	}{
		{"remember my birthday is in May", true},
		{"Remember: tea over coffee", true},
		{"REMEMBER", true},
		{"   remember with leading space", true},
		{"rememberable", true},
		{"please remember this", false},
		{"remembe", false},
		{"", false},
		{"hello", false},
	}

	for _, tt := range tests {
		if got := l.IsTrigger(tt.msg); got != tt.want {
			t.Errorf("IsTrigger(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestWithTrigger(t *testing.T) {
	t.Parallel()

	l := newTestLog(t, storetest.NewMemory(), WithTrigger(" Note "))
	if !l.IsTrigger("note: buy milk") || l.IsTrigger("remember x") {
		t.Error("custom trigger not applied")
	}

	l = newTestLog(t, storetest.NewMemory(), WithTrigger("  "))
	if !l.IsTrigger("remember x") {
		t.Error("blank trigger should keep the default")
	}
}

func TestRecord_SequentialKeys(t *testing.T) {
	t.Parallel()

	s := storetest.NewMemory()
	l := newTestLog(t, s)

	var prev uint64
	for i := range 12 {
		key, err := l.Record(t.Context(), "remember fact "+strconv.Itoa(i))
		if err != nil {
			t.Fatal(err)
		}
		n, err := strconv.ParseUint(key, 10, 64)
		if err != nil || n <= prev {
			t.Fatalf("key %q not strictly increasing after %d", key, prev)
		}
		prev = n
	}
	if l.Len() != 12 {
		t.Errorf("Len() = %d, want 12", l.Len())
	}

	entries := l.Entries()
	if entries[0].Key != "1" || entries[9].Key != "10" || entries[11].Key != "12" {
		t.Errorf("Entries() not in numeric key order: %v", entries)
	}
}

func TestRecord_EmptyRejected(t *testing.T) {
	t.Parallel()

	l := newTestLog(t, storetest.NewMemory())
	if _, err := l.Record(t.Context(), " \n"); !errors.Is(err, ErrEmptyEntry) {
		t.Fatalf("err = %v, want ErrEmptyEntry", err)
	}
	if l.Len() != 0 {
		t.Error("empty entry recorded")
	}
}

func TestRecord_FailedSaveChangesNothing(t *testing.T) {
	t.Parallel()

	s := storetest.NewMemory()
	l := newTestLog(t, s)
	_, _ = l.Record(t.Context(), "remember one")

	s.SaveErr = errors.New("read-only")
	if _, err := l.Record(t.Context(), "remember two"); err == nil {
		t.Fatal("expected save error")
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}

	s.SaveErr = nil
	key, err := l.Record(t.Context(), "remember three")
	if err != nil || key != "2" {
		t.Errorf("Record after recovery = %q, %v; want key 2", key, err)
	}
}

func TestLoad_ContinuesSequence(t *testing.T) {
	t.Parallel()

	s := storetest.NewMemory()
	s.Put(store.KindMemory, `{"1":"a","7":"b","3":"c"}`)

	l := newTestLog(t, s)
	key, err := l.Record(t.Context(), "d")
	if err != nil || key != "8" {
		t.Fatalf("Record = %q, %v; want key 8", key, err)
	}

	snap := l.Snapshot()
	snap["1"] = "mutated"
	if l.Snapshot()["1"] != "a" {
		t.Error("Snapshot shares state with the log")
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	s := storetest.NewMemory()
	l := newTestLog(t, s)
	for _, text := range []string{"remember x", "Remember y", "remember z"} {
		if _, err := l.Record(t.Context(), text); err != nil {
			t.Fatal(err)
		}
	}

	reloaded := newTestLog(t, s)
	want, got := l.Snapshot(), reloaded.Snapshot()
	if len(got) != len(want) {
		t.Fatalf("reloaded %d entries, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("entry %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestLoad_Corrupt(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"array":         `["a"]`,
		"non-string":    `{"1": 5}`,
		"bad key":       `{"one":"a"}`,
		"zero key":      `{"0":"a"}`,
		"padded key":    `{"01":"a"}`,
		"truncated doc": `{"1":"a"`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := storetest.NewMemory()
			s.Put(store.KindMemory, body)
			if _, err := Load(t.Context(), s); !errors.Is(err, store.ErrCorrupt) {
				t.Fatalf("err = %v, want ErrCorrupt", err)
			}
		})
	}
}
