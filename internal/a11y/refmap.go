package a11y

import (
	"fmt"

	"github.com/Lemon9247/agentfox/internal/domtree"
)

// RefMap is the reference map: process-wide (well, tab-wide) state
// localized behind reset/assign/resolve so nothing outside this package
// touches it directly.
type RefMap struct {
	byRef map[string]*domtree.Node
	next  int
}

// NewRefMap constructs an empty reference map.
func NewRefMap() *RefMap {
	return &RefMap{byRef: map[string]*domtree.Node{}}
}

// Reset clears the map and restarts numbering at e0. Called once per
// snapshot, before the first reference is assigned, so a new snapshot
// invalidates every reference from the prior one.
func (m *RefMap) Reset() {
	m.byRef = map[string]*domtree.Node{}
	m.next = 0
}

// Assign mints the next reference ID for n and records it.
func (m *RefMap) Assign(n *domtree.Node) string {
	ref := fmt.Sprintf("e%d", m.next)
	m.next++
	m.byRef[ref] = n
	return ref
}

// Resolve looks up the node for a reference minted by the most recent
// snapshot. ok is false both for references never assigned and for
// references from a prior snapshot, since this map only ever holds the
// current snapshot; callers cannot tell those two cases apart here.
func (m *RefMap) Resolve(ref string) (*domtree.Node, bool) {
	n, ok := m.byRef[ref]
	return n, ok
}

// Size reports how many references are currently live.
func (m *RefMap) Size() int { return len(m.byRef) }

// Remove evicts ref from the map. Callers use this when a reference
// resolves to a map entry whose backing element is no longer in the
// document — the "stale reference" case, distinct from an unknown
// reference that was never assigned by the current snapshot.
func (m *RefMap) Remove(ref string) {
	delete(m.byRef, ref)
}
