package forkdb

import (
	"io"

	"github.com/huangminghuang/leap/util/blockid"
	"github.com/huangminghuang/leap/wire"
)

// LegacyBlockHeaderState is the header-derived state of a block under the
// legacy delegated-proof-of-stake regime.
type LegacyBlockHeaderState struct {
	// BlockID is the block's identifier.
	BlockID blockid.Hash

	// Header is the block's header.
	Header wire.BlockHeader

	// DPoSIrreversibleBlockNum is the height of the highest block known to
	// be irreversible under the producer confirmation rules as of this
	// block.
	DPoSIrreversibleBlockNum uint32

	// ActivatedProtocolFeatures holds the digests of every protocol feature
	// activated at or before this block.
	ActivatedProtocolFeatures []blockid.Hash
}

func (hs *LegacyBlockHeaderState) serialize(w io.Writer) error {
	err := writeHash(w, &hs.BlockID)
	if err != nil {
		return err
	}
	err = hs.Header.Serialize(w)
	if err != nil {
		return err
	}
	err = wire.WriteVarUint(w, uint64(hs.DPoSIrreversibleBlockNum))
	if err != nil {
		return err
	}
	return writeHashes(w, hs.ActivatedProtocolFeatures)
}

func (hs *LegacyBlockHeaderState) deserialize(r io.Reader) error {
	err := readHash(r, &hs.BlockID)
	if err != nil {
		return err
	}
	err = hs.Header.Deserialize(r)
	if err != nil {
		return err
	}
	irr, err := wire.ReadVarUint(r)
	if err != nil {
		return err
	}
	hs.DPoSIrreversibleBlockNum = uint32(irr)
	hs.ActivatedProtocolFeatures, err = readHashes(r)
	return err
}

// LegacyBlockState is the legacy-regime BlockRef variant: fork choice is
// driven by the delegated-proof-of-stake irreversible block number.
type LegacyBlockState struct {
	hs          LegacyBlockHeaderState
	signedBlock *wire.SignedBlock
	headerExts  wire.HeaderExtensions
	validated   bool
}

// NewLegacyBlockState builds a legacy block state from its header state, the
// raw block (nil for header-state-only nodes such as a root), and its
// validation status. The block's header extensions are validated and
// extracted eagerly.
func NewLegacyBlockState(hs LegacyBlockHeaderState, block *wire.SignedBlock, validated bool) (*LegacyBlockState, error) {
	bs := &LegacyBlockState{hs: hs, signedBlock: block, validated: validated}
	err := bs.rebuildHeaderExts()
	if err != nil {
		return nil, err
	}
	return bs, nil
}

// HeaderState returns a copy of the block's header state.
func (bs *LegacyBlockState) HeaderState() LegacyBlockHeaderState {
	return bs.hs
}

// BlockID returns the block's identifier.
func (bs *LegacyBlockState) BlockID() blockid.Hash {
	return bs.hs.BlockID
}

// Previous returns the identifier of the parent block.
func (bs *LegacyBlockState) Previous() blockid.Hash {
	return bs.hs.Header.Previous
}

// BlockNum returns the block's height.
func (bs *LegacyBlockState) BlockNum() uint32 {
	return bs.hs.Header.BlockNum()
}

// IrreversibleNum returns the delegated-proof-of-stake irreversible block
// number as of this block.
func (bs *LegacyBlockState) IrreversibleNum() uint32 {
	return bs.hs.DPoSIrreversibleBlockNum
}

// IsValid returns whether the block has been successfully executed.
func (bs *LegacyBlockState) IsValid() bool {
	return bs.validated
}

// Timestamp returns the slot timestamp of the block's header.
func (bs *LegacyBlockState) Timestamp() uint32 {
	return bs.hs.Header.Timestamp
}

// ActivatedProtocolFeatures returns the digests of every protocol feature
// activated at or before this block.
func (bs *LegacyBlockState) ActivatedProtocolFeatures() []blockid.Hash {
	return bs.hs.ActivatedProtocolFeatures
}

// HeaderExts returns the extracted header extensions of the block.
func (bs *LegacyBlockState) HeaderExts() wire.HeaderExtensions {
	return bs.headerExts
}

// SignedBlock returns the raw block, or nil for header-state-only nodes.
func (bs *LegacyBlockState) SignedBlock() *wire.SignedBlock {
	return bs.signedBlock
}

func (bs *LegacyBlockState) setValid(validated bool) {
	bs.validated = validated
}

func (bs *LegacyBlockState) rebuildHeaderExts() error {
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

func (bs *LegacyBlockState) serializeHeaderState(w io.Writer) error {
	return bs.hs.serialize(w)
}

func (bs *LegacyBlockState) serialize(w io.Writer) error {
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

func (bs *LegacyBlockState) deserialize(r io.Reader) error {
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
