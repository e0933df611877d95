package forkdb

import (
	"os"
	"path/filepath"
	"testing"
)

// TestFacadeOpenEmpty opens a facade over a data directory with no fork
// database file: legacy regime, empty tree.
func TestFacadeOpenEmpty(t *testing.T) {
	dataDir := t.TempDir()

	db := New(dataDir)
	err := db.Open(nil)
	if err != nil {
		t.Fatalf("Open: unexpected error: %+v", err)
	}
	if !db.InLegacyRegime() {
		t.Fatal("fresh facade is not in the legacy regime")
	}
	if db.Root() != nil {
		t.Fatal("fresh facade has a root")
	}
}

// TestFacadeLegacyRoundTrip drives a legacy tree through the facade, closes
// it, and reopens it with a new facade.
func TestFacadeLegacyRoundTrip(t *testing.T) {
	dataDir := t.TempDir()

	db := New(dataDir)
	if err := db.Open(nil); err != nil {
		t.Fatalf("Open: unexpected error: %+v", err)
	}

	root := newLegacyRoot(t, 10, 10)
	db.Reset(root)
	b1 := newLegacyState(t, root.BlockID(), 10, false, 1)
	if err := db.Add(b1, false); err != nil {
		t.Fatalf("Add: unexpected error: %+v", err)
	}
	if err := db.MarkValid(b1); err != nil {
		t.Fatalf("MarkValid: unexpected error: %+v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: unexpected error: %+v", err)
	}

	if _, err := os.Stat(filepath.Join(dataDir, ForkDBFilename)); err != nil {
		t.Fatalf("fork database file missing after close: %v", err)
	}

	reopened := New(dataDir)
	if err := reopened.Open(nil); err != nil {
		t.Fatalf("Open: unexpected error: %+v", err)
	}
	if !reopened.InLegacyRegime() {
		t.Fatal("legacy file reopened outside the legacy regime")
	}
	if reopened.Head().BlockID() != b1.BlockID() {
		t.Fatalf("reopened head is %s, want %s", reopened.Head().BlockID(), b1.BlockID())
	}
	if reopened.Root().BlockID() != root.BlockID() {
		t.Fatalf("reopened root is %s, want %s", reopened.Root().BlockID(), root.BlockID())
	}
}

// TestSwitchFromLegacy transitions the facade and verifies the new tree is
// rooted at the converted legacy chain head while the legacy tree stays
// allocated and readable.
func TestSwitchFromLegacy(t *testing.T) {
	db := New(t.TempDir())
	if err := db.Open(nil); err != nil {
		t.Fatalf("Open: unexpected error: %+v", err)
	}

	// Switching without a chain head is refused.
	if err := db.SwitchFromLegacy(); err == nil {
		t.Fatal("SwitchFromLegacy without a chain head did not fail")
	}

	root := newLegacyRoot(t, 10, 10)
	db.Reset(root)
	transition := newLegacyState(t, root.BlockID(), 10, true, 1)
	if err := db.Add(transition, false); err != nil {
		t.Fatalf("Add: unexpected error: %+v", err)
	}
	db.SetChainHead(transition)

	legacyTree := db.legacyDB

	if err := db.SwitchFromLegacy(); err != nil {
		t.Fatalf("SwitchFromLegacy: unexpected error: %+v", err)
	}
	if db.InLegacyRegime() {
		t.Fatal("facade still in the legacy regime after the switch")
	}

	newRoot := db.Root()
	if newRoot.BlockID() != transition.BlockID() {
		t.Fatalf("instant-finality root is %s, want the converted chain head %s",
			newRoot.BlockID(), transition.BlockID())
	}
	if newRoot.IrreversibleNum() != instantFinalityIrreversibleNum {
		t.Fatalf("converted root reports irreversible num %d, want the sentinel",
			newRoot.IrreversibleNum())
	}
	if db.ChainHead().BlockID() != transition.BlockID() {
		t.Fatal("chain head was not carried over to the instant-finality tree")
	}

	// The retired legacy tree is still alive and serves reads.
	if legacyTree.Head().BlockID() != transition.BlockID() {
		t.Fatal("retired legacy tree lost its state")
	}

	// A second switch is refused.
	if err := db.SwitchFromLegacy(); err == nil {
		t.Fatal("second SwitchFromLegacy did not fail")
	}
}

// TestFacadeFinalityRoundTrip closes an instant-finality tree and verifies a
// fresh facade dispatches on the file's magic number when reopening.
func TestFacadeFinalityRoundTrip(t *testing.T) {
	dataDir := t.TempDir()

	db := New(dataDir)
	if err := db.Open(nil); err != nil {
		t.Fatalf("Open: unexpected error: %+v", err)
	}
	root := newLegacyRoot(t, 10, 10)
	db.Reset(root)
	transition := newLegacyState(t, root.BlockID(), 10, true, 1)
	if err := db.Add(transition, false); err != nil {
		t.Fatalf("Add: unexpected error: %+v", err)
	}
	db.SetChainHead(transition)
	if err := db.SwitchFromLegacy(); err != nil {
		t.Fatalf("SwitchFromLegacy: unexpected error: %+v", err)
	}

	b2 := newFinalityState(t, transition.BlockID(), false, 1)
	if err := db.Add(b2, false); err != nil {
		t.Fatalf("Add: unexpected error: %+v", err)
	}
	if err := db.MarkValid(b2); err != nil {
		t.Fatalf("MarkValid: unexpected error: %+v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: unexpected error: %+v", err)
	}

	reopened := New(dataDir)
	if err := reopened.Open(nil); err != nil {
		t.Fatalf("Open: unexpected error: %+v", err)
	}
	if reopened.InLegacyRegime() {
		t.Fatal("instant-finality file reopened in the legacy regime")
	}
	if reopened.Head().BlockID() != b2.BlockID() {
		t.Fatalf("reopened head is %s, want %s", reopened.Head().BlockID(), b2.BlockID())
	}
	if _, ok := reopened.Head().(*FinalityBlockState); !ok {
		t.Fatalf("reopened head has type %T, want *FinalityBlockState", reopened.Head())
	}
}

// TestFetchBranchFromHead returns the head branch as raw blocks.
func TestFetchBranchFromHead(t *testing.T) {
	db := New(t.TempDir())
	if err := db.Open(nil); err != nil {
		t.Fatalf("Open: unexpected error: %+v", err)
	}

	root := newLegacyRoot(t, 10, 10)
	db.Reset(root)

	var parent = root.BlockID()
	var tipID = parent
	for i := 0; i < 3; i++ {
		bs := newLegacyState(t, parent, 10, false, 1)
		if err := db.Add(bs, false); err != nil {
			t.Fatalf("Add: unexpected error: %+v", err)
		}
		if err := db.MarkValid(bs); err != nil {
			t.Fatalf("MarkValid: unexpected error: %+v", err)
		}
		parent = bs.BlockID()
		tipID = parent
	}

	blocks := db.FetchBranchFromHead()
	if len(blocks) != 3 {
		t.Fatalf("head branch has %d blocks, want 3", len(blocks))
	}
	if blocks[0].BlockID() != tipID {
		t.Fatalf("head branch starts at %s, want the tip %s", blocks[0].BlockID(), tipID)
	}
	for i := 1; i < len(blocks); i++ {
		if blocks[i].BlockID() != blocks[i-1].Header.Previous {
			t.Fatalf("head branch is not parent-linked at %d", i)
		}
	}
}
