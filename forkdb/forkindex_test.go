package forkdb

import (
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/huangminghuang/leap/util/blockid"
)

// checkPreferenceOrder fails the test unless the preference index is sorted
// by (valid desc, irreversible num desc, block num desc, id asc).
func checkPreferenceOrder(t *testing.T, idx *forkIndex) {
	t.Helper()
	for i := 1; i < len(idx.byPreference); i++ {
		a, b := idx.byPreference[i-1], idx.byPreference[i]
		if preferenceLess(b, a) {
			t.Fatalf("preference index out of order at %d:\n%s", i,
				spew.Sdump(idx.byPreference))
		}
	}
}

// TestForkIndexOrdering inserts nodes in scrambled order and verifies all
// three views stay consistent.
func TestForkIndexOrdering(t *testing.T) {
	root := newLegacyRoot(t, 10, 10)

	a := newLegacyState(t, root.BlockID(), 10, true, 1)  // valid
	b := newLegacyState(t, root.BlockID(), 11, false, 2) // higher irr, invalid
	c := newLegacyState(t, a.BlockID(), 10, false, 1)    // higher num, invalid
	d := newLegacyState(t, root.BlockID(), 10, false, 3) // tie with a except validity

	idx := newForkIndex()
	for _, n := range []BlockRef{c, a, d, b} {
		if !idx.insert(n) {
			t.Fatalf("insert of %s failed", n.BlockID())
		}
	}
	if idx.insert(a) {
		t.Fatal("insert of a duplicate id succeeded")
	}
	if idx.size() != 4 {
		t.Fatalf("index holds %d entries, want 4", idx.size())
	}
	checkPreferenceOrder(t, idx)

	// The single valid entry tops the index; the best unvalidated entry is
	// the invalid one with the highest irreversibility.
	if best := idx.best(); best.BlockID() != a.BlockID() {
		t.Fatalf("best entry is %s, want %s", best.BlockID(), a.BlockID())
	}
	if bu := idx.bestUnvalidated(); bu.BlockID() != b.BlockID() {
		t.Fatalf("best unvalidated entry is %s, want %s", bu.BlockID(), b.BlockID())
	}
	if idx.validBoundary() != 1 {
		t.Fatalf("valid boundary is %d, want 1", idx.validBoundary())
	}

	// Parent view: root has three children, a has one.
	rootChildren := idx.children(root.BlockID())
	if len(rootChildren) != 3 {
		t.Fatalf("root has %d children, want 3", len(rootChildren))
	}
	aChildren := idx.children(a.BlockID())
	if len(aChildren) != 1 || aChildren[0] != c.BlockID() {
		t.Fatalf("children of a are %v, want [%s]", aChildren, c.BlockID())
	}

	// Validating b moves it into the valid range, above a.
	idx.setValid(b, true)
	checkPreferenceOrder(t, idx)
	if best := idx.best(); best.BlockID() != b.BlockID() {
		t.Fatalf("best entry is %s after validating b, want %s", best.BlockID(), b.BlockID())
	}
	if idx.validBoundary() != 2 {
		t.Fatalf("valid boundary is %d, want 2", idx.validBoundary())
	}

	// Erasing removes from every view.
	idx.erase(b.BlockID())
	checkPreferenceOrder(t, idx)
	if idx.get(b.BlockID()) != nil {
		t.Fatal("erased entry still reachable by id")
	}
	if len(idx.children(root.BlockID())) != 2 {
		t.Fatal("erased entry still reachable through its parent")
	}
	if idx.size() != 3 {
		t.Fatalf("index holds %d entries, want 3", idx.size())
	}

	// Erasing an absent id is a no-op.
	idx.erase(b.BlockID())
	if idx.size() != 3 {
		t.Fatal("erase of an absent id mutated the index")
	}

	idx.clear()
	if idx.size() != 0 || idx.best() != nil || idx.bestUnvalidated() != nil {
		t.Fatal("clear left entries behind")
	}
}

// TestForkIndexInvalidateAll flips every entry invalid in place.
func TestForkIndexInvalidateAll(t *testing.T) {
	root := newLegacyRoot(t, 10, 10)
	idx := newForkIndex()

	var prev blockid.Hash = root.BlockID()
	for i := 0; i < 4; i++ {
		n := newLegacyState(t, prev, 10, i%2 == 0, 1)
		idx.insert(n)
		prev = n.BlockID()
	}

	idx.invalidateAll()
	checkPreferenceOrder(t, idx)
	if idx.validBoundary() != 0 {
		t.Fatalf("valid boundary is %d after invalidateAll, want 0", idx.validBoundary())
	}
	for _, n := range idx.byPreference {
		if n.IsValid() {
			t.Fatalf("entry %s is still valid", n.BlockID())
		}
	}
}
