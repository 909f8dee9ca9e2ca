// Package dh implements the Diffie-Hellman key agreement used to
// bootstrap the AES session key and IV for a SECURE connection upgrade.
// It is grounded on
// original_source/src/encryption/dh_key_ex.py's DHAlgorithm/DHServer/
// DHClient, with one deliberate departure: private exponents are drawn
// from crypto/rand rather than Python's math/random, since a key
// agreement's secrecy is only as good as its randomness source.
package dh

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
)

// group is the RFC 3526 2048-bit MODP group, matching the prime
// hard-coded in the original implementation.
var (
	group, _ = new(big.Int).SetString(
		"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E08"+
			"8A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B"+
			"302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9"+
			"A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE6"+
			"49286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8"+
			"FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D"+
			"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C"+
			"180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF695581718"+
			"3995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFF"+
			"FFFFFFFF",
		16,
	)
	generator = big.NewInt(2)
	// subgroupOrder is p/2, the upper bound the original uses for
	// sampling private exponents.
	subgroupOrder = new(big.Int).Rsh(group, 1)
)

// Role distinguishes which side of the exchange an Agreement plays. Both
// sides sample their private exponent from the same range, [2, q-1].
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// Agreement holds one side's private exponent and, once the peer's
// public value has been consumed, the shared secret K.
type Agreement struct {
	role    Role
	private *big.Int
	shared  *big.Int
}

// New creates an Agreement with a freshly sampled private exponent.
func New(role Role) (*Agreement, error) {
	priv, err := randRange(2, subgroupOrder)
	if err != nil {
		return nil, fmt.Errorf("dh: sample private exponent: %w", err)
	}
	return &Agreement{role: role, private: priv}, nil
}

// randRange returns a uniform random value in [lo, max-1].
func randRange(lo int64, max *big.Int) (*big.Int, error) {
	span := new(big.Int).Sub(max, big.NewInt(lo))
	if span.Sign() <= 0 {
		return nil, fmt.Errorf("dh: invalid sampling range")
	}
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return nil, err
	}
	return n.Add(n, big.NewInt(lo)), nil
}

// Public returns this side's public value (g^private mod p) to be sent
// to the peer.
func (a *Agreement) Public() *big.Int {
	return new(big.Int).Exp(generator, a.private, group)
}

// ReadPeer consumes the peer's public value and derives the shared
// secret K = peerPublic^private mod p.
func (a *Agreement) ReadPeer(peerPublic *big.Int) {
	a.shared = new(big.Int).Exp(peerPublic, a.private, group)
}

const (
	maxDerivedLen = 32
	keyLabel      = "KEY"
	ivLabel       = "IVS"
)

// Key derives the session AES key, the first 32 bytes of
// SHA256(K_bytes || "KEY").
func (a *Agreement) Key() ([]byte, error) {
	return a.derive(keyLabel, maxDerivedLen)
}

// IV derives the session AES IV, the first 16 bytes of
// SHA256(K_bytes || "IVS").
func (a *Agreement) IV() ([]byte, error) {
	return a.derive(ivLabel, 16)
}

// derive reproduces DHAlgorithm._make_crypt_str: hash the shared
// secret's big-endian byte representation concatenated with the label,
// then truncate to length.
func (a *Agreement) derive(label string, length int) ([]byte, error) {
	if a.shared == nil {
		return nil, fmt.Errorf("dh: key exchange not yet completed")
	}
	if length > maxDerivedLen {
		return nil, fmt.Errorf("dh: requested length %d exceeds maximum %d", length, maxDerivedLen)
	}
	h := sha256.New()
	h.Write(a.shared.Bytes())
	h.Write([]byte(label))
	sum := h.Sum(nil)
	return sum[:length], nil
}
