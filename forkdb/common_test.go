package forkdb

import (
	"encoding/binary"
	"testing"

	"github.com/huangminghuang/leap/util/blockid"
	"github.com/huangminghuang/leap/wire"
)

// makeID builds a block identifier with num stamped into the first four
// bytes, the way real identifiers carry their height.
func makeID(num uint32, salt byte) blockid.Hash {
	var id blockid.Hash
	binary.BigEndian.PutUint32(id[0:4], num)
	id[blockid.HashSize-1] = salt
	return id
}

// newTestBlock builds a signed block on top of the given parent id. salt
// perturbs the transaction merkle root so sibling blocks get distinct ids.
func newTestBlock(parent blockid.Hash, salt byte, exts ...wire.Extension) *wire.SignedBlock {
	header := wire.BlockHeader{
		Timestamp:        parent.BlockNum()*2 + 1,
		Producer:         0x5c5c5c5c5c5c5c5c,
		Previous:         parent,
		ScheduleVersion:  1,
		HeaderExtensions: exts,
	}
	header.TransactionMRoot[blockid.HashSize-1] = salt

	return &wire.SignedBlock{
		Header:            header,
		ProducerSignature: []byte{0xde, 0xad, 0xbe, 0xef},
		Payload:           []byte{0x01, 0x02, 0x03},
	}
}

// newLegacyState builds a legacy block state extending parent, carrying the
// given irreversibility number and validity.
func newLegacyState(t *testing.T, parent blockid.Hash, irr uint32, validated bool, salt byte,
	exts ...wire.Extension) *LegacyBlockState {

	block := newTestBlock(parent, salt, exts...)
	hs := LegacyBlockHeaderState{
		BlockID:                  block.Header.BlockID(),
		Header:                   block.Header,
		DPoSIrreversibleBlockNum: irr,
	}
	bs, err := NewLegacyBlockState(hs, block, validated)
	if err != nil {
		t.Fatalf("NewLegacyBlockState: unexpected error: %+v", err)
	}
	return bs
}

// newLegacyRoot builds a header-state-only legacy root at the given height.
func newLegacyRoot(t *testing.T, num uint32, irr uint32) *LegacyBlockState {
	header := wire.BlockHeader{
		Timestamp: num * 2,
		Producer:  0x5c5c5c5c5c5c5c5c,
		Previous:  makeID(num-1, 0),
	}
	hs := LegacyBlockHeaderState{
		BlockID:                  header.BlockID(),
		Header:                   header,
		DPoSIrreversibleBlockNum: irr,
	}
	bs, err := NewLegacyBlockState(hs, nil, true)
	if err != nil {
		t.Fatalf("NewLegacyBlockState: unexpected error: %+v", err)
	}
	return bs
}

// newFinalityState builds an instant-finality block state extending parent.
func newFinalityState(t *testing.T, parent blockid.Hash, validated bool, salt byte) *FinalityBlockState {
	block := newTestBlock(parent, salt)
	hs := FinalityBlockHeaderState{
		BlockID: block.Header.BlockID(),
		Header:  block.Header,
	}
	bs, err := NewFinalityBlockState(hs, block, validated)
	if err != nil {
		t.Fatalf("NewFinalityBlockState: unexpected error: %+v", err)
	}
	return bs
}

// addLegacyChain extends the tree with a chain of length blocks on top of
// parent, all carrying the given irreversibility number. Returns the states
// tip-last.
func addLegacyChain(t *testing.T, f *ForkDB, parent blockid.Hash, length int, irr uint32,
	validated bool, salt byte) []*LegacyBlockState {

	chain := make([]*LegacyBlockState, 0, length)
	for i := 0; i < length; i++ {
		bs := newLegacyState(t, parent, irr, validated, salt)
		err := f.Add(bs, false)
		if err != nil {
			t.Fatalf("Add: unexpected error: %+v", err)
		}
		chain = append(chain, bs)
		parent = bs.BlockID()
	}
	return chain
}

// checkHead fails the test if the head of f is not want.
func checkHead(t *testing.T, f *ForkDB, want BlockRef) {
	t.Helper()
	head := f.Head()
	if head.BlockID() != want.BlockID() {
		t.Fatalf("head is %s (block %d), want %s (block %d)",
			head.BlockID(), head.BlockNum(), want.BlockID(), want.BlockNum())
	}
}
