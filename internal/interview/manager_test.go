package interview

import (
	"context"
	"testing"
)

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(newFakeService())

	id1, c1 := m.Create(context.Background())
	id2, c2 := m.Create(context.Background())
	if id1 == id2 {
		t.Fatalf("expected distinct session IDs, got %q twice", id1)
	}
	if c1 == c2 {
		t.Fatal("expected distinct controllers")
	}
	if m.Count() != 2 {
		t.Errorf("expected 2 sessions, got %d", m.Count())
	}

	got, ok := m.Get(id1)
	if !ok || got != c1 {
		t.Error("expected to retrieve controller by ID")
	}

	m.Delete(id1)
	if _, ok := m.Get(id1); ok {
		t.Error("expected session deleted")
	}
	if m.Count() != 1 {
		t.Errorf("expected 1 session, got %d", m.Count())
	}
}

func TestManagerControllersAreIsolated(t *testing.T) {
	m := NewManager(newFakeService())

	_, c1 := m.Create(context.Background())
	_, c2 := m.Create(context.Background())

	if err := c1.SubmitChiefComplaint(context.Background(), "chest pain"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c1.Snapshot(); !ok {
		t.Error("expected session on first controller")
	}
	if _, ok := c2.Snapshot(); ok {
		t.Error("expected no session on second controller")
	}
}
