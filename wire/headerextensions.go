package wire

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/huangminghuang/leap/util/blockid"
)

// ProtocolFeatureActivationID is the extension type id under which a block
// header declares the protocol features it activates.
const ProtocolFeatureActivationID uint16 = 0

// maxActivatedFeatures caps the number of feature digests a single
// activation extension may declare.
const maxActivatedFeatures = 256

// HeaderExtensions maps extension type ids to their raw payloads, as
// extracted from a validated block header.
type HeaderExtensions map[uint16][]byte

// ProtocolFeatureActivation is the decoded payload of a protocol feature
// activation extension.
type ProtocolFeatureActivation struct {
	// ProtocolFeatures holds the digests of the features the block
	// activates.
	ProtocolFeatures []blockid.Hash
}

// Serialize encodes the activation to w as a varuint digest count followed by
// the raw digests.
func (pfa *ProtocolFeatureActivation) Serialize(w io.Writer) error {
	err := WriteVarUint(w, uint64(len(pfa.ProtocolFeatures)))
	if err != nil {
		return err
	}
	for i := range pfa.ProtocolFeatures {
		err = writeElement(w, &pfa.ProtocolFeatures[i])
		if err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the serialized activation payload, suitable for embedding in
// a header Extension.
func (pfa *ProtocolFeatureActivation) Bytes() []byte {
	var buf bytes.Buffer
	_ = pfa.Serialize(&buf)
	return buf.Bytes()
}

// DeserializeProtocolFeatureActivation decodes a protocol feature activation
// extension payload. The payload must declare at least one feature digest,
// must not repeat a digest, and must not carry trailing bytes.
func DeserializeProtocolFeatureActivation(data []byte) (*ProtocolFeatureActivation, error) {
	r := bytes.NewReader(data)

	count, err := ReadVarUint(r)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errors.New("protocol feature activation extension declares no features")
	}
	if count > maxActivatedFeatures {
		return nil, errors.Errorf("too many activated features (%d > %d)", count,
			maxActivatedFeatures)
	}

	pfa := &ProtocolFeatureActivation{
		ProtocolFeatures: make([]blockid.Hash, count),
	}
	seen := make(map[blockid.Hash]struct{}, count)
	for i := uint64(0); i < count; i++ {
		err = readElement(r, &pfa.ProtocolFeatures[i])
		if err != nil {
			return nil, err
		}
		if _, ok := seen[pfa.ProtocolFeatures[i]]; ok {
			return nil, errors.Errorf("duplicate feature digest %s in activation extension",
				pfa.ProtocolFeatures[i])
		}
		seen[pfa.ProtocolFeatures[i]] = struct{}{}
	}

	if r.Len() != 0 {
		return nil, errors.Errorf("%d trailing bytes after activation extension", r.Len())
	}
	return pfa, nil
}
