package wire

import (
	"io"

	"github.com/pkg/errors"

	"github.com/huangminghuang/leap/util/blockid"
)

// SignedBlock is a produced block: a header, the producer's signature over
// it, and the serialized transaction payload. The fork database treats the
// payload as opaque; it is retained so branches can be re-served whole.
type SignedBlock struct {
	// Header is the signed block header.
	Header BlockHeader

	// ProducerSignature is the producer's signature over the header digest.
	ProducerSignature []byte

	// Payload carries the serialized transactions of the block.
	Payload []byte
}

// BlockID returns the identifier of the block.
func (b *SignedBlock) BlockID() blockid.Hash {
	return b.Header.BlockID()
}

// Serialize encodes the block to w.
func (b *SignedBlock) Serialize(w io.Writer) error {
	err := b.Header.Serialize(w)
	if err != nil {
		return err
	}
	err = WriteVarBytes(w, b.ProducerSignature)
	if err != nil {
		return err
	}
	return WriteVarBytes(w, b.Payload)
}

// Deserialize decodes a block from r into the receiver.
func (b *SignedBlock) Deserialize(r io.Reader) error {
	err := b.Header.Deserialize(r)
	if err != nil {
		return err
	}
	b.ProducerSignature, err = ReadVarBytes(r, "producer signature")
	if err != nil {
		return err
	}
	b.Payload, err = ReadVarBytes(r, "block payload")
	return err
}

// ValidateAndExtractHeaderExtensions checks that the header's extensions are
// ordered by strictly ascending type id (which also rules out duplicates) and
// returns them as a map keyed by type id.
func (b *SignedBlock) ValidateAndExtractHeaderExtensions() (HeaderExtensions, error) {
	exts := make(HeaderExtensions, len(b.Header.HeaderExtensions))

	for i := range b.Header.HeaderExtensions {
		ext := &b.Header.HeaderExtensions[i]
		if i > 0 && ext.TypeID <= b.Header.HeaderExtensions[i-1].TypeID {
			return nil, errors.Errorf("block %s header extensions are not in "+
				"ascending unique order: %d follows %d", b.BlockID(),
				ext.TypeID, b.Header.HeaderExtensions[i-1].TypeID)
		}
		exts[ext.TypeID] = ext.Data
	}

	return exts, nil
}
