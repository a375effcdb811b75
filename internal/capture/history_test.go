package capture

import (
	"fmt"
	"testing"
	"time"
)

func makeTransition(id int) Transition {
	return Transition{
		State: State{Status: StatusActive, ErrorMessage: fmt.Sprintf("entry-%d", id)},
		At:    time.Now().UTC(),
	}
}

func TestHistory_EmptyRead(t *testing.T) {
	h := NewHistory(10)
	got := h.ReadAll()
	if len(got) != 0 {
		t.Errorf("expected empty history, got %d entries", len(got))
	}
}

func TestHistory_PartialFill(t *testing.T) {
	h := NewHistory(10)
	for i := 0; i < 5; i++ {
		h.Record(makeTransition(i))
	}

	got := h.ReadAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(got))
	}

	for i, tr := range got {
		expected := fmt.Sprintf("entry-%d", i)
		if tr.State.ErrorMessage != expected {
			t.Errorf("entry %d: expected %s, got %s", i, expected, tr.State.ErrorMessage)
		}
	}
}

func TestHistory_Overflow(t *testing.T) {
	h := NewHistory(5)
	for i := 0; i < 8; i++ {
		h.Record(makeTransition(i))
	}

	got := h.ReadAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(got))
	}

	// Should have entries 3,4,5,6,7 (oldest dropped).
	for i, tr := range got {
		expected := fmt.Sprintf("entry-%d", i+3)
		if tr.State.ErrorMessage != expected {
			t.Errorf("entry %d: expected %s, got %s", i, expected, tr.State.ErrorMessage)
		}
	}
}

func TestHistory_ExactCapacity(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 3; i++ {
		h.Record(makeTransition(i))
	}

	got := h.ReadAll()
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}

	for i, tr := range got {
		expected := fmt.Sprintf("entry-%d", i)
		if tr.State.ErrorMessage != expected {
			t.Errorf("entry %d: expected %s, got %s", i, expected, tr.State.ErrorMessage)
		}
	}
}
