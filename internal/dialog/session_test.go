package dialog

import (
	"fmt"
	"testing"
	"time"
)

func TestHistoryPopNeedsTwoEntries(t *testing.T) {
	var h History

	if _, ok := h.Pop(); ok {
		t.Error("Pop on empty history should fail")
	}

	h.Push(Snapshot{Step: StepName})
	if _, ok := h.Pop(); ok {
		t.Error("Pop with a single entry should fail")
	}

	h.Push(Snapshot{Step: StepDescription})
	prev, ok := h.Pop()
	if !ok {
		t.Fatal("Pop with two entries should succeed")
	}
	if prev.Step != StepName {
		t.Errorf("Pop returned step %q, want %q", prev.Step, StepName)
	}
}

func TestHistoryForwardBackSymmetry(t *testing.T) {
	for _, n := range []int{1, 5, 9} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			var h History
			h.Push(Snapshot{Draft: Draft{Name: "start"}})

			for i := 1; i <= n; i++ {
				h.Push(Snapshot{Draft: Draft{Name: fmt.Sprintf("step-%d", i)}})
			}

			for i := n - 1; i >= 1; i-- {
				prev, ok := h.Pop()
				if !ok {
					t.Fatalf("Pop %d failed", i)
				}
				if want := fmt.Sprintf("step-%d", i); prev.Draft.Name != want {
					t.Errorf("Pop returned %q, want %q", prev.Draft.Name, want)
				}
			}

			prev, ok := h.Pop()
			if !ok || prev.Draft.Name != "start" {
				t.Errorf("final Pop = (%q, %v), want start", prev.Draft.Name, ok)
			}
			if _, ok := h.Pop(); ok {
				t.Error("history should be exhausted")
			}
		})
	}
}

func TestHistoryCap(t *testing.T) {
	var h History
	for i := 0; i < MaxHistory+5; i++ {
		h.Push(Snapshot{Draft: Draft{Name: fmt.Sprintf("step-%d", i)}})
	}

	if h.Len() != MaxHistory {
		t.Fatalf("Len = %d, want %d", h.Len(), MaxHistory)
	}

	// The oldest snapshots are gone; popping all the way down lands on
	// the oldest survivor, not the original first entry.
	var last Snapshot
	for {
		prev, ok := h.Pop()
		if !ok {
			break
		}
		last = prev
	}
	if want := fmt.Sprintf("step-%d", 5); last.Draft.Name != want {
		t.Errorf("deepest reachable snapshot = %q, want %q", last.Draft.Name, want)
	}
}

func TestStoreCreateReplacesSession(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)

	s1 := store.Create(42, now)
	s1.Draft.Name = "first"

	s2 := store.Create(42, now.Add(time.Minute))
	if s2.Draft.Name != "" {
		t.Error("Create should start a fresh session")
	}
	if s2.Step != StepName {
		t.Errorf("fresh session step = %q, want %q", s2.Step, StepName)
	}
	if s2.History.Len() != 1 {
		t.Errorf("fresh session history len = %d, want 1", s2.History.Len())
	}

	got, ok := store.Get(42)
	if !ok || got != s2 {
		t.Error("Get should return the replacement session")
	}

	store.Clear(42)
	if _, ok := store.Get(42); ok {
		t.Error("Clear should remove the session")
	}
}
