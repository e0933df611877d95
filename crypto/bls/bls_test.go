package bls

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	priv, err := GeneratePrivateKey(rand.Reader)
	require.NoError(t, err)
	pub := priv.PublicKey()

	msg := []byte("finality vote for block 1234")
	sig, err := priv.Sign(msg)
	require.NoError(t, err)

	ok, err := pub.Verify(msg, sig)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = pub.Verify([]byte("a different message"), sig)
	require.NoError(t, err)
	require.False(t, ok)

	otherPriv, err := GeneratePrivateKey(rand.Reader)
	require.NoError(t, err)
	ok, err = otherPriv.PublicKey().Verify(msg, sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAggregate(t *testing.T) {
	msg := []byte("aggregate finality vote")

	const signers = 4
	pubs := make([]*PublicKey, 0, signers)
	sigs := make([]*Signature, 0, signers)
	for i := 0; i < signers; i++ {
		priv, err := GeneratePrivateKey(rand.Reader)
		require.NoError(t, err)
		sig, err := priv.Sign(msg)
		require.NoError(t, err)
		pubs = append(pubs, priv.PublicKey())
		sigs = append(sigs, sig)
	}

	aggSig, err := AggregateSignatures(sigs...)
	require.NoError(t, err)
	aggPub, err := AggregatePublicKeys(pubs...)
	require.NoError(t, err)

	ok, err := aggPub.Verify(msg, aggSig)
	require.NoError(t, err)
	require.True(t, ok)

	// Dropping one signature breaks the aggregate.
	partialSig, err := AggregateSignatures(sigs[:signers-1]...)
	require.NoError(t, err)
	ok, err = aggPub.Verify(msg, partialSig)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = AggregateSignatures()
	require.Error(t, err)
	_, err = AggregatePublicKeys()
	require.Error(t, err)
}

func TestBytesRoundTrip(t *testing.T) {
	priv, err := GeneratePrivateKey(rand.Reader)
	require.NoError(t, err)
	pub := priv.PublicKey()
	sig, err := priv.Sign([]byte("round trip"))
	require.NoError(t, err)

	privBytes := priv.Bytes()
	privBack, err := NewPrivateKeyFromBytes(privBytes[:])
	require.NoError(t, err)
	require.Equal(t, priv.Bytes(), privBack.Bytes())

	pubBytes := pub.Bytes()
	pubBack, err := NewPublicKeyFromBytes(pubBytes[:])
	require.NoError(t, err)
	require.True(t, pub.Equal(pubBack))

	sigBytes := sig.Bytes()
	sigBack, err := NewSignatureFromBytes(sigBytes[:])
	require.NoError(t, err)
	require.True(t, sig.Equal(sigBack))

	_, err = NewPrivateKeyFromBytes(make([]byte, PrivateKeySize))
	require.Error(t, err, "zero scalar must be rejected")
	_, err = NewPublicKeyFromBytes(make([]byte, PublicKeySize-1))
	require.Error(t, err)
	_, err = NewSignatureFromBytes(make([]byte, SignatureSize+1))
	require.Error(t, err)
}

func TestStringRoundTrip(t *testing.T) {
	priv, err := GeneratePrivateKey(rand.Reader)
	require.NoError(t, err)
	pub := priv.PublicKey()
	sig, err := priv.Sign([]byte("string forms"))
	require.NoError(t, err)

	privStr := priv.String()
	require.True(t, strings.HasPrefix(privStr, PrivateKeyPrefix))
	privBack, err := ParsePrivateKey(privStr)
	require.NoError(t, err)
	require.Equal(t, priv.Bytes(), privBack.Bytes())

	pubStr := pub.String()
	require.True(t, strings.HasPrefix(pubStr, PublicKeyPrefix))
	pubBack, err := ParsePublicKey(pubStr)
	require.NoError(t, err)
	require.True(t, pub.Equal(pubBack))

	sigStr := sig.String()
	require.True(t, strings.HasPrefix(sigStr, SignaturePrefix))
	sigBack, err := ParseSignature(sigStr)
	require.NoError(t, err)
	require.True(t, sig.Equal(sigBack))

	// Wrong prefix and corrupted checksum are both rejected.
	_, err = ParsePublicKey(privStr)
	require.Error(t, err)

	// The 52-byte payload ends in a two-character group whose final
	// character carries padding bits the decoder ignores, so flip the
	// second-to-last character, which holds six bits of the checksum.
	corrupted := []byte(pubStr)
	pos := len(corrupted) - 2
	if corrupted[pos] == 'A' {
		corrupted[pos] = 'B'
	} else {
		corrupted[pos] = 'A'
	}
	_, err = ParsePublicKey(string(corrupted))
	require.Error(t, err)
}
