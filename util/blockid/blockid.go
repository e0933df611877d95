package blockid

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"github.com/pkg/errors"
)

// HashSize is the length in bytes of a block identifier.
const HashSize = 32

// MaxHashStringSize is the maximum length of a Hash hash string.
const MaxHashStringSize = HashSize * 2

// Hash is the 32-byte content hash that identifies a block. The block number
// the identifier belongs to is stamped big-endian into its first four bytes,
// so identifiers of consecutive blocks sort by height first.
type Hash [HashSize]byte

// String returns the Hash as the hexadecimal string of the byte-wise hash.
func (hash Hash) String() string {
	return hex.EncodeToString(hash[:])
}

// CloneBytes returns a copy of the bytes which represent the hash as a byte
// slice.
func (hash *Hash) CloneBytes() []byte {
	newHash := make([]byte, HashSize)
	copy(newHash, hash[:])

	return newHash
}

// SetBytes sets the bytes which represent the hash. An error is returned if
// the number of bytes passed in is not HashSize.
func (hash *Hash) SetBytes(newHash []byte) error {
	if len(newHash) != HashSize {
		return errors.Errorf("invalid hash length of %d, want %d", len(newHash),
			HashSize)
	}
	copy(hash[:], newHash)

	return nil
}

// IsEqual returns true if target is the same as hash.
func (hash *Hash) IsEqual(target *Hash) bool {
	if hash == nil && target == nil {
		return true
	}
	if hash == nil || target == nil {
		return false
	}
	return *hash == *target
}

// BlockNum returns the block number stamped into the first four bytes of the
// identifier.
func (hash *Hash) BlockNum() uint32 {
	return binary.BigEndian.Uint32(hash[0:4])
}

// Less returns true if hash is, byte-wise, smaller than other.
func Less(hash *Hash, other *Hash) bool {
	return bytes.Compare(hash[:], other[:]) < 0
}

// NewHash returns a new Hash from a byte slice. An error is returned if
// the number of bytes passed in is not HashSize.
func NewHash(newHash []byte) (*Hash, error) {
	var sh Hash
	err := sh.SetBytes(newHash)
	if err != nil {
		return nil, err
	}
	return &sh, err
}

// NewHashFromStr creates a Hash from a hash string. The string should be
// the hexadecimal string of a hash.
func NewHashFromStr(hash string) (*Hash, error) {
	ret := new(Hash)
	err := Decode(ret, hash)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Decode decodes the hexadecimal string encoding of a Hash to a destination.
func Decode(dst *Hash, src string) error {
	// Return error if hash string is too long.
	if len(src) > MaxHashStringSize {
		return errors.Errorf("max hash string length is %d bytes", MaxHashStringSize)
	}

	// Hex decoder expects the hash to be a multiple of two.
	srcBytes := []byte(src)
	if len(src)%2 != 0 {
		srcBytes = append([]byte("0"), srcBytes...)
	}

	var h Hash
	_, err := hex.Decode(h[HashSize-hex.DecodedLen(len(srcBytes)):], srcBytes)
	if err != nil {
		return errors.WithStack(err)
	}

	*dst = h
	return nil
}

// Sort sorts a slice of hashes in byte-wise ascending order.
func Sort(hashes []Hash) {
	sort.Slice(hashes, func(i, j int) bool {
		return Less(&hashes[i], &hashes[j])
	})
}
