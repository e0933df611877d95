package forkdb

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/huangminghuang/leap/util/binaryserializer"
	"github.com/huangminghuang/leap/util/blockid"
	"github.com/huangminghuang/leap/wire"
)

// Magic numbers identifying the variant a fork database file was written by.
const (
	// LegacyForkDBMagic marks a file holding legacy block states.
	LegacyForkDBMagic uint32 = 0x30510FDB

	// FinalityForkDBMagic marks a file holding instant-finality block
	// states.
	FinalityForkDBMagic uint32 = 0x4242FDB1
)

// Version bounds of the fork database file format. Files are always written
// at maxSupportedVersion.
//
// History:
// Version 1: initial version of the portable fork database format.
const (
	minSupportedVersion uint32 = 1
	maxSupportedVersion uint32 = 1
)

// maxFeatureDigests caps the number of activated feature digests a stored
// header state may claim.
const maxFeatureDigests = 1 << 16

// blockStateCodec decodes the variant-specific records of a fork database
// file.
type blockStateCodec interface {
	deserializeRoot(r io.Reader) (BlockRef, error)
	deserializeBlockState(r io.Reader) (BlockRef, error)
}

type legacyCodec struct{}

func (legacyCodec) deserializeRoot(r io.Reader) (BlockRef, error) {
	var hs LegacyBlockHeaderState
	err := hs.deserialize(r)
	if err != nil {
		return nil, err
	}
	return &LegacyBlockState{hs: hs}, nil
}

func (legacyCodec) deserializeBlockState(r io.Reader) (BlockRef, error) {
	bs := &LegacyBlockState{}
	err := bs.deserialize(r)
	if err != nil {
		return nil, err
	}
	return bs, nil
}

type finalityCodec struct{}

func (finalityCodec) deserializeRoot(r io.Reader) (BlockRef, error) {
	var hs FinalityBlockHeaderState
	err := hs.deserialize(r)
	if err != nil {
		return nil, err
	}
	return &FinalityBlockState{hs: hs}, nil
}

func (finalityCodec) deserializeBlockState(r io.Reader) (BlockRef, error) {
	bs := &FinalityBlockState{}
	err := bs.deserialize(r)
	if err != nil {
		return nil, err
	}
	return bs, nil
}

// Open restores the tree from the file at path, if it exists, and deletes
// the file afterwards: fork database files are consumed on load. Restored
// blocks that declare protocol feature activations are re-checked against
// validator. A file written by the other variant fails with ErrBadMagic.
func (f *ForkDB) Open(path string, validator Validator) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.open(path, validator)
}

// open implements Open.
//
// This function MUST be called with the fork database mutex held.
func (f *ForkDB) open(path string, validator Validator) error {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WithStack(err)
	}

	r := bytes.NewReader(content)

	magic, err := binaryserializer.Uint32(r)
	if err != nil {
		return errors.Wrapf(ErrCorrupt, "%s: %s", path, err)
	}
	if magic != f.magic {
		return errors.Wrapf(ErrBadMagic, "%s: got %#08x, expected %#08x", path, magic, f.magic)
	}

	version, err := binaryserializer.Uint32(r)
	if err != nil {
		return errors.Wrapf(ErrCorrupt, "%s: %s", path, err)
	}
	if version < minSupportedVersion || version > maxSupportedVersion {
		return errors.Wrapf(ErrUnsupportedVersion, "%s: file version is %d while this code supports versions [%d, %d]",
			path, version, minSupportedVersion, maxSupportedVersion)
	}

	root, err := f.codec.deserializeRoot(r)
	if err != nil {
		return errors.Wrapf(ErrCorrupt, "%s: bad root header state: %s", path, err)
	}
	f.reset(root)

	size, err := binaryserializer.VarUint(r)
	if err != nil {
		return errors.Wrapf(ErrCorrupt, "%s: %s", path, err)
	}
	for i := uint64(0); i < size; i++ {
		n, err := f.codec.deserializeBlockState(r)
		if err != nil {
			return errors.Wrapf(ErrCorrupt, "%s: bad block state %d of %d: %s", path, i, size, err)
		}
		// Header extensions are not stored; they are rebuilt from the raw
		// block so restored nodes go through the same extension validation
		// as live ones.
		err = n.rebuildHeaderExts()
		if err != nil {
			return errors.Wrapf(ErrCorrupt, "%s: block state %d of %d: %s", path, i, size, err)
		}
		err = f.add(n, false, true, validator)
		if err != nil {
			return err
		}
	}

	var headID blockid.Hash
	err = readHash(r, &headID)
	if err != nil {
		return errors.Wrapf(ErrCorrupt, "%s: %s", path, err)
	}

	if f.root.BlockID() == headID {
		f.head = f.root
	} else {
		f.head = f.getBlock(headID)
		if f.head == nil {
			return errors.Wrapf(ErrCorrupt, "%s: could not find head %s while reconstructing fork database",
				path, headID)
		}
	}

	candidate := f.index.best()
	if candidate == nil || !candidate.IsValid() {
		if f.head.BlockID() != f.root.BlockID() {
			return errors.Wrapf(ErrCorrupt, "%s: head not set to root despite no better option available", path)
		}
	} else if firstPreferred(candidate, f.head) {
		return errors.Wrapf(ErrCorrupt, "%s: head not set to best available option", path)
	}

	return errors.WithStack(os.Remove(path))
}

// Close writes the tree out to the file at path and clears the index. It is
// meant to run once, at shutdown: the written file is the only persistent
// form of the tree, and the next Open consumes it.
func (f *ForkDB) Close(path string) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.closeImpl(path)
}

// closeImpl implements Close.
//
// This function MUST be called with the fork database mutex held.
func (f *ForkDB) closeImpl(path string) error {
	if f.root == nil {
		if f.index.size() > 0 {
			log.Errorf("fork database is in a bad state when closing; not writing out %s", path)
		}
		return nil
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer file.Close()
	w := bufio.NewWriter(file)

	err = binaryserializer.PutUint32(w, f.magic)
	if err != nil {
		return err
	}
	err = binaryserializer.PutUint32(w, maxSupportedVersion)
	if err != nil {
		return err
	}
	err = f.root.serializeHeaderState(w)
	if err != nil {
		return err
	}
	err = binaryserializer.PutVarUint(w, uint64(f.index.size()))
	if err != nil {
		return err
	}

	// Entries are written in ascending fork preference so that every parent
	// precedes its children and restoration can re-add them in file order.
	// The validated and unvalidated ranges of the preference index ascend
	// independently; merge them, emitting the validated entry on ties so
	// that validity survives the round trip deterministically.
	boundary := f.index.validBoundary()
	byPreference := f.index.byPreference
	vi := boundary - 1
	ui := len(byPreference) - 1
	for vi >= 0 || ui >= boundary {
		var n BlockRef
		switch {
		case vi >= 0 && ui >= boundary:
			if firstPreferred(byPreference[vi], byPreference[ui]) {
				n = byPreference[ui]
				ui--
			} else {
				n = byPreference[vi]
				vi--
			}
		case ui >= boundary:
			n = byPreference[ui]
			ui--
		default:
			n = byPreference[vi]
			vi--
		}
		err = n.serialize(w)
		if err != nil {
			return err
		}
	}

	if f.head != nil {
		headID := f.head.BlockID()
		err = writeHash(w, &headID)
		if err != nil {
			return err
		}
	} else {
		log.Errorf("head not set in fork database; %s will be corrupted", path)
	}

	f.index.clear()

	err = w.Flush()
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(file.Sync())
}

func writeHash(w io.Writer, hash *blockid.Hash) error {
	_, err := w.Write(hash[:])
	return errors.WithStack(err)
}

func readHash(r io.Reader, hash *blockid.Hash) error {
	_, err := io.ReadFull(r, hash[:])
	return errors.WithStack(err)
}

func writeHashes(w io.Writer, hashes []blockid.Hash) error {
	err := wire.WriteVarUint(w, uint64(len(hashes)))
	if err != nil {
		return err
	}
	for i := range hashes {
		err = writeHash(w, &hashes[i])
		if err != nil {
			return err
		}
	}
	return nil
}

func readHashes(r io.Reader) ([]blockid.Hash, error) {
	count, err := wire.ReadVarUint(r)
	if err != nil {
		return nil, err
	}
	if count > maxFeatureDigests {
		return nil, errors.Errorf("too many digests (%d > %d)", count, maxFeatureDigests)
	}
	if count == 0 {
		return nil, nil
	}
	hashes := make([]blockid.Hash, count)
	for i := range hashes {
		err = readHash(r, &hashes[i])
		if err != nil {
			return nil, err
		}
	}
	return hashes, nil
}

func writeBool(w io.Writer, b bool) error {
	var v uint8
	if b {
		v = 1
	}
	return binaryserializer.PutUint8(w, v)
}

func readBool(r io.Reader) (bool, error) {
	v, err := binaryserializer.Uint8(r)
	if err != nil {
		return false, err
	}
	if v > 1 {
		return false, errors.Errorf("invalid boolean byte %#x", v)
	}
	return v == 1, nil
}

func writeOptionalBlock(w io.Writer, block *wire.SignedBlock) error {
	err := writeBool(w, block != nil)
	if err != nil {
		return err
	}
	if block == nil {
		return nil
	}
	return block.Serialize(w)
}

func readOptionalBlock(r io.Reader) (*wire.SignedBlock, error) {
	present, err := readBool(r)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	block := &wire.SignedBlock{}
	err = block.Deserialize(r)
	if err != nil {
		return nil, err
	}
	return block, nil
}
