// Package bls wraps BLS12-381 aggregate signatures: minimal-public-key
// variant, public keys on G1 (48 byte compressed), signatures on G2 (96 byte
// compressed), messages hashed to G2 with the proof-of-possession
// ciphersuite tag.
package bls

import (
	"crypto/rand"
	"io"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/pkg/errors"
)

// Sizes of the serialized key and signature material.
const (
	// PrivateKeySize is the length of a serialized private key: the scalar
	// as 32 big-endian bytes.
	PrivateKeySize = 32

	// PublicKeySize is the length of a compressed G1 public key.
	PublicKeySize = bls12381.SizeOfG1AffineCompressed

	// SignatureSize is the length of a compressed G2 signature.
	SignatureSize = bls12381.SizeOfG2AffineCompressed
)

// ciphersuiteDST is the domain separation tag for hashing messages to G2.
var ciphersuiteDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")

// PrivateKey is a BLS12-381 secret scalar.
type PrivateKey struct {
	scalar big.Int
}

// GeneratePrivateKey draws a uniformly random non-zero scalar from r.
func GeneratePrivateKey(r io.Reader) (*PrivateKey, error) {
	if r == nil {
		r = rand.Reader
	}
	for {
		k, err := rand.Int(r, fr.Modulus())
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if k.Sign() != 0 {
			return &PrivateKey{scalar: *k}, nil
		}
	}
}

// NewPrivateKeyFromBytes deserializes a private key from its 32 big-endian
// bytes. The scalar must be non-zero and below the field modulus.
func NewPrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return nil, errors.Errorf("invalid private key length %d, want %d", len(b), PrivateKeySize)
	}
	var k big.Int
	k.SetBytes(b)
	if k.Sign() == 0 {
		return nil, errors.New("private key scalar is zero")
	}
	if k.Cmp(fr.Modulus()) >= 0 {
		return nil, errors.New("private key scalar is not below the field modulus")
	}
	return &PrivateKey{scalar: k}, nil
}

// Bytes serializes the private key as 32 big-endian bytes.
func (k *PrivateKey) Bytes() [PrivateKeySize]byte {
	var out [PrivateKeySize]byte
	k.scalar.FillBytes(out[:])
	return out
}

// PublicKey derives the public key k·G1.
func (k *PrivateKey) PublicKey() *PublicKey {
	_, _, g1Gen, _ := bls12381.Generators()
	var pk PublicKey
	pk.point.ScalarMultiplication(&g1Gen, &k.scalar)
	return &pk
}

// Sign hashes msg to G2 and multiplies by the secret scalar.
func (k *PrivateKey) Sign(msg []byte) (*Signature, error) {
	h, err := bls12381.HashToG2(msg, ciphersuiteDST)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var sig Signature
	sig.point.ScalarMultiplication(&h, &k.scalar)
	return &sig, nil
}

// PublicKey is a BLS12-381 public key: a point on G1.
type PublicKey struct {
	point bls12381.G1Affine
}

// NewPublicKeyFromBytes deserializes a compressed G1 public key, rejecting
// points off the curve, outside the subgroup, or at infinity.
func NewPublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if len(b) != PublicKeySize {
		return nil, errors.Errorf("invalid public key length %d, want %d", len(b), PublicKeySize)
	}
	var pk PublicKey
	_, err := pk.point.SetBytes(b)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if pk.point.IsInfinity() {
		return nil, errors.New("public key is the point at infinity")
	}
	return &pk, nil
}

// Bytes serializes the public key as a compressed G1 point.
func (pk *PublicKey) Bytes() [PublicKeySize]byte {
	return pk.point.Bytes()
}

// Equal returns whether two public keys are the same point.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	return pk.point.Equal(&other.point)
}

// Verify checks sig over msg under pk:
// e(pk, H(msg)) * e(-G1, sig) == 1.
func (pk *PublicKey) Verify(msg []byte, sig *Signature) (bool, error) {
	h, err := bls12381.HashToG2(msg, ciphersuiteDST)
	if err != nil {
		return false, errors.WithStack(err)
	}

	_, _, g1Gen, _ := bls12381.Generators()
	var negG1Gen bls12381.G1Affine
	negG1Gen.Neg(&g1Gen)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{pk.point, negG1Gen},
		[]bls12381.G2Affine{h, sig.point},
	)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return ok, nil
}

// AggregatePublicKeys sums the given public keys. An aggregate signature
// over a single message verifies against the aggregate of the signers' keys.
func AggregatePublicKeys(keys ...*PublicKey) (*PublicKey, error) {
	if len(keys) == 0 {
		return nil, errors.New("no public keys to aggregate")
	}
	var acc bls12381.G1Jac
	acc.FromAffine(&keys[0].point)
	for _, key := range keys[1:] {
		var p bls12381.G1Jac
		p.FromAffine(&key.point)
		acc.AddAssign(&p)
	}
	var out PublicKey
	out.point.FromJacobian(&acc)
	return &out, nil
}

// Signature is a BLS12-381 signature: a point on G2.
type Signature struct {
	point bls12381.G2Affine
}

// NewSignatureFromBytes deserializes a compressed G2 signature, rejecting
// points off the curve or outside the subgroup.
func NewSignatureFromBytes(b []byte) (*Signature, error) {
	if len(b) != SignatureSize {
		return nil, errors.Errorf("invalid signature length %d, want %d", len(b), SignatureSize)
	}
	var sig Signature
	_, err := sig.point.SetBytes(b)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &sig, nil
}

// Bytes serializes the signature as a compressed G2 point.
func (sig *Signature) Bytes() [SignatureSize]byte {
	return sig.point.Bytes()
}

// Equal returns whether two signatures are the same point.
func (sig *Signature) Equal(other *Signature) bool {
	return sig.point.Equal(&other.point)
}

// AggregateSignatures sums the given signatures.
func AggregateSignatures(sigs ...*Signature) (*Signature, error) {
	if len(sigs) == 0 {
		return nil, errors.New("no signatures to aggregate")
	}
	var acc bls12381.G2Jac
	acc.FromAffine(&sigs[0].point)
	for _, sig := range sigs[1:] {
		var p bls12381.G2Jac
		p.FromAffine(&sig.point)
		acc.AddAssign(&p)
	}
	var out Signature
	out.point.FromJacobian(&acc)
	return &out, nil
}
