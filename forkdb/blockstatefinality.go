package forkdb

import (
	"io"
	"math"

	"github.com/huangminghuang/leap/util/blockid"
	"github.com/huangminghuang/leap/wire"
)

// instantFinalityIrreversibleNum is the irreversibility number every
// instant-finality block reports. It is the maximum possible value, so any
// instant-finality block is preferred over any legacy block that happens to
// coexist with it, and instant-finality blocks compare among themselves by
// block num alone.
const instantFinalityIrreversibleNum = math.MaxUint32

// FinalityBlockHeaderState is the header-derived state of a block under the
// instant-finality regime.
type FinalityBlockHeaderState struct {
	// BlockID is the block's identifier.
	BlockID blockid.Hash

	// Header is the block's header.
	Header wire.BlockHeader

	// ActivatedProtocolFeatures holds the digests of every protocol feature
	// activated at or before this block.
	ActivatedProtocolFeatures []blockid.Hash
}

func (hs *FinalityBlockHeaderState) serialize(w io.Writer) error {
	err := writeHash(w, &hs.BlockID)
	if err != nil {
		return err
	}
	err = hs.Header.Serialize(w)
	if err != nil {
		return err
	}
	return writeHashes(w, hs.ActivatedProtocolFeatures)
}

func (hs *FinalityBlockHeaderState) deserialize(r io.Reader) error {
	err := readHash(r, &hs.BlockID)
	if err != nil {
		return err
	}
	err = hs.Header.Deserialize(r)
	if err != nil {
		return err
	}
	hs.ActivatedProtocolFeatures, err = readHashes(r)
	return err
}

// FinalityBlockState is the instant-finality BlockRef variant: finality is
// signaled per block, so its irreversibility number is pinned to the maximum.
type FinalityBlockState struct {
	hs          FinalityBlockHeaderState
	signedBlock *wire.SignedBlock
	headerExts  wire.HeaderExtensions
	validated   bool
}

// NewFinalityBlockState builds an instant-finality block state from its
// header state, the raw block (nil for header-state-only nodes such as a
// root), and its validation status. The block's header extensions are
// validated and extracted eagerly.
func NewFinalityBlockState(hs FinalityBlockHeaderState, block *wire.SignedBlock, validated bool) (*FinalityBlockState, error) {
	bs := &FinalityBlockState{hs: hs, signedBlock: block, validated: validated}
	err := bs.rebuildHeaderExts()
	if err != nil {
		return nil, err
	}
	return bs, nil
}

// FinalityBlockStateFromLegacy converts a legacy block state into its
// instant-finality equivalent. It is used once, when the chain transitions
// out of the legacy regime: the legacy chain head becomes the root of the
// new tree.
func FinalityBlockStateFromLegacy(legacy *LegacyBlockState) *FinalityBlockState {
	return &FinalityBlockState{
		hs: FinalityBlockHeaderState{
			BlockID:                   legacy.hs.BlockID,
			Header:                    legacy.hs.Header,
			ActivatedProtocolFeatures: legacy.hs.ActivatedProtocolFeatures,
		},
		signedBlock: legacy.signedBlock,
		headerExts:  legacy.headerExts,
		validated:   legacy.validated,
	}
}

// HeaderState returns a copy of the block's header state.
func (bs *FinalityBlockState) HeaderState() FinalityBlockHeaderState {
	return bs.hs
}

// BlockID returns the block's identifier.
func (bs *FinalityBlockState) BlockID() blockid.Hash {
	return bs.hs.BlockID
}

// Previous returns the identifier of the parent block.
func (bs *FinalityBlockState) Previous() blockid.Hash {
	return bs.hs.Header.Previous
}

// BlockNum returns the block's height.
func (bs *FinalityBlockState) BlockNum() uint32 {
	return bs.hs.Header.BlockNum()
}

// IrreversibleNum returns instantFinalityIrreversibleNum.
func (bs *FinalityBlockState) IrreversibleNum() uint32 {
	return instantFinalityIrreversibleNum
}

// IsValid returns whether the block has been successfully executed.
func (bs *FinalityBlockState) IsValid() bool {
	return bs.validated
}

// Timestamp returns the slot timestamp of the block's header.
func (bs *FinalityBlockState) Timestamp() uint32 {
	return bs.hs.Header.Timestamp
}

// ActivatedProtocolFeatures returns the digests of every protocol feature
// activated at or before this block.
func (bs *FinalityBlockState) ActivatedProtocolFeatures() []blockid.Hash {
	return bs.hs.ActivatedProtocolFeatures
}

// HeaderExts returns the extracted header extensions of the block.
func (bs *FinalityBlockState) HeaderExts() wire.HeaderExtensions {
	return bs.headerExts
}

// SignedBlock returns the raw block, or nil for header-state-only nodes.
func (bs *FinalityBlockState) SignedBlock() *wire.SignedBlock {
	return bs.signedBlock
}

func (bs *FinalityBlockState) setValid(validated bool) {
	bs.validated = validated
}

func (bs *FinalityBlockState) rebuildHeaderExts() error {
	if bs.signedBlock == nil {
		bs.headerExts = nil
		return nil
	}
	exts, err := bs.signedBlock.ValidateAndExtractHeaderExtensions()
	if err != nil {
		return err
	}
	bs.headerExts = exts
	return nil
}

func (bs *FinalityBlockState) serializeHeaderState(w io.Writer) error {
	return bs.hs.serialize(w)
}

func (bs *FinalityBlockState) serialize(w io.Writer) error {
	err := bs.hs.serialize(w)
	if err != nil {
		return err
	}
	err = writeOptionalBlock(w, bs.signedBlock)
	if err != nil {
		return err
	}
	return writeBool(w, bs.validated)
}

func (bs *FinalityBlockState) deserialize(r io.Reader) error {
	err := bs.hs.deserialize(r)
	if err != nil {
		return err
	}
	bs.signedBlock, err = readOptionalBlock(r)
	if err != nil {
		return err
	}
	bs.validated, err = readBool(r)
	return err
}
