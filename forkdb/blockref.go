package forkdb

import (
	"io"

	"github.com/huangminghuang/leap/util/blockid"
	"github.com/huangminghuang/leap/wire"
)

// BlockRef is an in-memory descriptor of a block tracked by the fork
// database: identity, parent link, height, validity, irreversibility number
// and the raw block. The two concrete variants are LegacyBlockState
// (delegated-proof-of-stake irreversibility) and FinalityBlockState (instant
// finality).
//
// A BlockRef handle returned by the fork database stays usable after the
// containing tree prunes it; pruned nodes are never mutated.
type BlockRef interface {
	// BlockID returns the block's identifier.
	BlockID() blockid.Hash

	// Previous returns the identifier of the parent block.
	Previous() blockid.Hash

	// BlockNum returns the block's height.
	BlockNum() uint32

	// IrreversibleNum returns the irreversibility number used by fork
	// choice. Under instant finality this is always MaxUint32, which makes
	// any instant-finality block preferred over any legacy block.
	IrreversibleNum() uint32

	// IsValid returns whether the block has been successfully executed.
	IsValid() bool

	// Timestamp returns the slot timestamp of the block's header.
	Timestamp() uint32

	// ActivatedProtocolFeatures returns the digests of every protocol
	// feature activated at or before this block.
	ActivatedProtocolFeatures() []blockid.Hash

	// HeaderExts returns the extracted header extensions of the block.
	HeaderExts() wire.HeaderExtensions

	// SignedBlock returns the raw block, or nil for header-state-only nodes
	// such as a restored root.
	SignedBlock() *wire.SignedBlock

	setValid(validated bool)
	rebuildHeaderExts() error
	serializeHeaderState(w io.Writer) error
	serialize(w io.Writer) error
}

// Validator checks that the protocol features newFeatures, declared by a
// block produced at timestamp, can activate on top of the already activated
// currentFeatures. It must not call back into the fork database.
type Validator func(timestamp uint32, currentFeatures, newFeatures []blockid.Hash) error

// firstPreferred returns whether fork choice prefers a over b: the pair
// (irreversible num, block num) is compared lexicographically. Validity does
// not participate; head candidacy restricts to valid nodes separately.
//
// Instant-finality blocks report MaxUint32 as their irreversible num, so they
// compare among themselves by block num and dominate every legacy block.
func firstPreferred(a, b BlockRef) bool {
	if a.IrreversibleNum() != b.IrreversibleNum() {
		return a.IrreversibleNum() > b.IrreversibleNum()
	}
	return a.BlockNum() > b.BlockNum()
}

// preferenceLess is the strict total order of the preference index:
// valid before invalid, then higher irreversible num, then higher block num,
// then smaller id.
func preferenceLess(a, b BlockRef) bool {
	if a.IsValid() != b.IsValid() {
		return a.IsValid()
	}
	if a.IrreversibleNum() != b.IrreversibleNum() {
		return a.IrreversibleNum() > b.IrreversibleNum()
	}
	if a.BlockNum() != b.BlockNum() {
		return a.BlockNum() > b.BlockNum()
	}
	aID, bID := a.BlockID(), b.BlockID()
	return blockid.Less(&aID, &bID)
}
