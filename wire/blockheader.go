package wire

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/huangminghuang/leap/util/blockid"
)

// BaseBlockHeaderPayload is the number of bytes a block header serializes to,
// not including header extensions.
// Timestamp 4 bytes + Producer 8 bytes + Confirmed 2 bytes +
// Previous hash + TransactionMRoot hash + ActionMRoot hash +
// ScheduleVersion 4 bytes + extension count varuint (at least 1 byte).
const BaseBlockHeaderPayload = 18 + 3*blockid.HashSize + 1

// maxHeaderExtensions caps the number of extensions a single header may
// declare. A header claiming more than this is rejected as corrupt.
const maxHeaderExtensions = 256

// Extension is a forward-compatibility hook carried by block headers: a
// type id paired with an opaque payload whose meaning is defined by the
// protocol feature that introduced it.
type Extension struct {
	// TypeID identifies the kind of extension.
	TypeID uint16

	// Data is the raw extension payload.
	Data []byte
}

// BlockHeader defines information about a block produced under the
// delegated-proof-of-stake schedule.
type BlockHeader struct {
	// Timestamp is the half-second slot since the chain epoch in which the
	// block was produced.
	Timestamp uint32

	// Producer is the encoded account name of the block producer.
	Producer uint64

	// Confirmed is the count of prior blocks this producer confirms.
	Confirmed uint16

	// Previous is the identifier of the parent block.
	Previous blockid.Hash

	// TransactionMRoot is the merkle root of the transactions carried by
	// the block.
	TransactionMRoot blockid.Hash

	// ActionMRoot is the merkle root of the action receipts generated while
	// applying the block.
	ActionMRoot blockid.Hash

	// ScheduleVersion is the version of the producer schedule the block was
	// produced under.
	ScheduleVersion uint32

	// HeaderExtensions carries protocol-defined extensions, ordered by
	// ascending unique type id.
	HeaderExtensions []Extension
}

// BlockNum returns the height of the block carrying this header. Heights are
// assigned sequentially, so this is one past the parent's height, which the
// parent identifier carries in its first four bytes.
func (h *BlockHeader) BlockNum() uint32 {
	return h.Previous.BlockNum() + 1
}

// BlockID computes the identifier of the block carrying this header: the
// sha256 of the serialized header with the block height stamped big-endian
// into the first four bytes.
func (h *BlockHeader) BlockID() blockid.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, BaseBlockHeaderPayload))

	// Serializing to a memory buffer cannot fail.
	_ = h.Serialize(buf)

	id := blockid.Hash(sha256.Sum256(buf.Bytes()))
	binary.BigEndian.PutUint32(id[0:4], h.BlockNum())
	return id
}

// Serialize encodes the block header to w in the stable format used both on
// the wire and for long-term storage.
func (h *BlockHeader) Serialize(w io.Writer) error {
	err := writeElements(w, h.Timestamp, h.Producer, h.Confirmed, &h.Previous,
		&h.TransactionMRoot, &h.ActionMRoot, h.ScheduleVersion)
	if err != nil {
		return err
	}

	err = WriteVarUint(w, uint64(len(h.HeaderExtensions)))
	if err != nil {
		return err
	}
	for i := range h.HeaderExtensions {
		ext := &h.HeaderExtensions[i]
		err = writeElement(w, ext.TypeID)
		if err != nil {
			return err
		}
		err = WriteVarBytes(w, ext.Data)
		if err != nil {
			return err
		}
	}
	return nil
}

// Deserialize decodes a block header from r into the receiver.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	err := readElements(r, &h.Timestamp, &h.Producer, &h.Confirmed, &h.Previous,
		&h.TransactionMRoot, &h.ActionMRoot, &h.ScheduleVersion)
	if err != nil {
		return err
	}

	count, err := ReadVarUint(r)
	if err != nil {
		return err
	}
	if count > maxHeaderExtensions {
		return errors.Errorf("too many header extensions (%d > %d)", count,
			maxHeaderExtensions)
	}

	h.HeaderExtensions = nil
	if count > 0 {
		h.HeaderExtensions = make([]Extension, count)
	}
	for i := uint64(0); i < count; i++ {
		ext := &h.HeaderExtensions[i]
		err = readElement(r, &ext.TypeID)
		if err != nil {
			return err
		}
		ext.Data, err = ReadVarBytes(r, "header extension payload")
		if err != nil {
			return err
		}
	}
	return nil
}
