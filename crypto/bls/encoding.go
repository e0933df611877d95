package bls

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // checksum format is fixed
)

// Display prefixes of the key and signature string forms. The string payload
// is the unpadded base64url encoding of the serialized material followed by
// a 4-byte checksum: the leading bytes of ripemd160(material || prefix-tag).
const (
	PublicKeyPrefix  = "PUB_BLS_"
	PrivateKeyPrefix = "PVT_BLS_"
	SignaturePrefix  = "SIG_BLS_"
)

const checksumSize = 4

func checksum(data []byte, tag string) []byte {
	h := ripemd160.New()
	h.Write(data)
	h.Write([]byte(tag))
	return h.Sum(nil)[:checksumSize]
}

func encodeChecked(data []byte, prefix string) string {
	payload := make([]byte, 0, len(data)+checksumSize)
	payload = append(payload, data...)
	payload = append(payload, checksum(data, prefix)...)
	return prefix + base64.RawURLEncoding.EncodeToString(payload)
}

func decodeChecked(s, prefix string, size int) ([]byte, error) {
	if !strings.HasPrefix(s, prefix) {
		return nil, errors.Errorf("string does not start with %s", prefix)
	}
	payload, err := base64.RawURLEncoding.DecodeString(s[len(prefix):])
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(payload) != size+checksumSize {
		return nil, errors.Errorf("invalid payload length %d, want %d", len(payload), size+checksumSize)
	}
	data, check := payload[:size], payload[size:]
	if subtle.ConstantTimeCompare(check, checksum(data, prefix)) != 1 {
		return nil, errors.New("checksum mismatch")
	}
	return data, nil
}

// String renders the public key as PUB_BLS_…
func (pk *PublicKey) String() string {
	b := pk.Bytes()
	return encodeChecked(b[:], PublicKeyPrefix)
}

// ParsePublicKey parses a PUB_BLS_… string.
func ParsePublicKey(s string) (*PublicKey, error) {
	data, err := decodeChecked(s, PublicKeyPrefix, PublicKeySize)
	if err != nil {
		return nil, err
	}
	return NewPublicKeyFromBytes(data)
}

// String renders the private key as PVT_BLS_…
func (k *PrivateKey) String() string {
	b := k.Bytes()
	return encodeChecked(b[:], PrivateKeyPrefix)
}

// ParsePrivateKey parses a PVT_BLS_… string.
func ParsePrivateKey(s string) (*PrivateKey, error) {
	data, err := decodeChecked(s, PrivateKeyPrefix, PrivateKeySize)
	if err != nil {
		return nil, err
	}
	return NewPrivateKeyFromBytes(data)
}

// String renders the signature as SIG_BLS_…
func (sig *Signature) String() string {
	b := sig.Bytes()
	return encodeChecked(b[:], SignaturePrefix)
}

// ParseSignature parses a SIG_BLS_… string.
func ParseSignature(s string) (*Signature, error) {
	data, err := decodeChecked(s, SignaturePrefix, SignatureSize)
	if err != nil {
		return nil, err
	}
	return NewSignatureFromBytes(data)
}
