package wire

import (
	"io"

	"github.com/pkg/errors"

	"github.com/huangminghuang/leap/util/binaryserializer"
	"github.com/huangminghuang/leap/util/blockid"
)

// maxVarBytesLength is the maximum length a variable-length byte string read
// from the wire is allowed to claim before the read is rejected outright.
// This prevents a corrupted length prefix from causing a huge allocation.
const maxVarBytesLength = 1 << 27 // 128 MB

// readElement reads the next sequence of bytes from r using little endian
// depending on the concrete type of element pointed to.
func readElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *uint8:
		rv, err := binaryserializer.Uint8(r)
		if err != nil {
			return err
		}
		*e = rv
		return nil

	case *uint16:
		rv, err := binaryserializer.Uint16(r)
		if err != nil {
			return err
		}
		*e = rv
		return nil

	case *uint32:
		rv, err := binaryserializer.Uint32(r)
		if err != nil {
			return err
		}
		*e = rv
		return nil

	case *uint64:
		rv, err := binaryserializer.Uint64(r)
		if err != nil {
			return err
		}
		*e = rv
		return nil

	case *blockid.Hash:
		if _, err := io.ReadFull(r, e[:]); err != nil {
			return errors.WithStack(err)
		}
		return nil
	}

	return errors.Errorf("unhandled element type %T when reading", element)
}

// readElements reads multiple items from r. It is equivalent to multiple
// calls to readElement.
func readElements(r io.Reader, elements ...interface{}) error {
	for _, element := range elements {
		err := readElement(r, element)
		if err != nil {
			return err
		}
	}
	return nil
}

// writeElement writes the little endian representation of element to w.
func writeElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case uint8:
		return binaryserializer.PutUint8(w, e)

	case uint16:
		return binaryserializer.PutUint16(w, e)

	case uint32:
		return binaryserializer.PutUint32(w, e)

	case uint64:
		return binaryserializer.PutUint64(w, e)

	case *blockid.Hash:
		_, err := w.Write(e[:])
		return errors.WithStack(err)
	}

	return errors.Errorf("unhandled element type %T when writing", element)
}

// writeElements writes multiple items to w. It is equivalent to multiple
// calls to writeElement.
func writeElements(w io.Writer, elements ...interface{}) error {
	for _, element := range elements {
		err := writeElement(w, element)
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadVarUint reads a variable-length unsigned integer encoded with seven
// bits per byte and a continuation bit.
func ReadVarUint(r io.Reader) (uint64, error) {
	return binaryserializer.VarUint(r)
}

// WriteVarUint writes a variable-length unsigned integer encoded with seven
// bits per byte and a continuation bit.
func WriteVarUint(w io.Writer, val uint64) error {
	return binaryserializer.PutVarUint(w, val)
}

// ReadVarBytes reads a variable-length byte string, encoded as a varuint
// length followed by the raw bytes. fieldName is only used for error
// messages.
func ReadVarBytes(r io.Reader, fieldName string) ([]byte, error) {
	count, err := ReadVarUint(r)
	if err != nil {
		return nil, err
	}
	if count > maxVarBytesLength {
		return nil, errors.Errorf("%s is larger than the maximum allowed size "+
			"(%d > %d)", fieldName, count, maxVarBytesLength)
	}
	if count == 0 {
		return nil, nil
	}

	b := make([]byte, count)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errors.WithStack(err)
	}
	return b, nil
}

// WriteVarBytes writes a variable-length byte string as a varuint length
// followed by the raw bytes.
func WriteVarBytes(w io.Writer, b []byte) error {
	err := WriteVarUint(w, uint64(len(b)))
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return errors.WithStack(err)
}
