package a11y

import (
	"testing"

	"github.com/Lemon9247/agentfox/internal/domtree"
)

func TestRefMapAssignAndResolve(t *testing.T) {
	m := NewRefMap()
	n1 := domtree.NewElement("button", nil)
	n2 := domtree.NewElement("input", nil)

	r1 := m.Assign(n1)
	r2 := m.Assign(n2)
	if r1 != "e0" || r2 != "e1" {
		t.Fatalf("expected sequential e0/e1 refs, got %q %q", r1, r2)
	}
	if got, ok := m.Resolve(r1); !ok || got != n1 {
		t.Fatalf("resolve r1 mismatch")
	}
	if m.Size() != 2 {
		t.Fatalf("expected size 2, got %d", m.Size())
	}
}

func TestRefMapResetRestartsNumberingAndClears(t *testing.T) {
	m := NewRefMap()
	m.Assign(domtree.NewElement("button", nil))
	m.Reset()
	if m.Size() != 0 {
		t.Fatalf("expected empty map after reset")
	}
	r := m.Assign(domtree.NewElement("a", nil))
	if r != "e0" {
		t.Fatalf("expected numbering to restart at e0, got %q", r)
	}
}

func TestRefMapUnknownReferenceFails(t *testing.T) {
	m := NewRefMap()
	if _, ok := m.Resolve("e99"); ok {
		t.Fatal("expected unknown reference to fail resolution")
	}
}
