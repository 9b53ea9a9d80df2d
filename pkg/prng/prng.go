// Package prng implements the bridge's per-contract PRNG lifecycle (spec
// §4.7): a SHA256 seed chain updated once per transaction from the prior
// seed, the caller, and caller-supplied entropy, driving a ChaCha20 DRBG
// for everything downstream that needs unpredictable bytes (mint keys,
// release-request keys, viewing keys, the light-client commit secret).
//
// The seed derivation reproduces
// original_source/contracts/libs/shared_types/src/prng.rs byte for byte,
// so a Go verifier and the original CosmWasm contract agree on the same
// seed given the same inputs.
package prng

import (
	"crypto/sha256"
	"encoding/binary"

	"golang.org/x/crypto/chacha20"
)

// Seed is the 32-byte PRNG state carried between transactions.
type Seed [32]byte

// InitialSeed derives the first seed a contract instance ever uses, from
// the block height and time it was instantiated at, the instantiating
// sender, and caller-supplied entropy:
//
//	seed = SHA256(height:8BE || time:8BE || sender || entropy)
func InitialSeed(blockHeight, blockTime uint64, sender, entropy []byte) Seed {
	input := make([]byte, 0, 16+len(sender)+len(entropy))
	var heightBuf, timeBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], blockHeight)
	binary.BigEndian.PutUint64(timeBuf[:], blockTime)
	input = append(input, heightBuf[:]...)
	input = append(input, timeBuf[:]...)
	input = append(input, sender...)
	input = append(input, entropy...)
	return sha256.Sum256(input)
}

// NextSeed advances the chain for one transaction:
//
//	seed' = SHA256(seed || sender || entropy)
func NextSeed(seed Seed, sender, entropy []byte) Seed {
	input := make([]byte, 0, 32+len(sender)+len(entropy))
	input = append(input, seed[:]...)
	input = append(input, sender...)
	input = append(input, entropy...)
	return sha256.Sum256(input)
}

// Rng is a deterministic byte stream drawn from a seed, standing in for
// the original contract's StdRng: the seed derivation above is the part of
// this system pinned across implementations, the stream it drives is not
// (spec §4.7 leaves the DRBG itself as "ChaCha20-based"). Each Rng draws a
// fresh ChaCha20 keystream keyed by the seed with a zero nonce, since a
// seed is consumed exactly once per transaction and never reused across
// draws.
type Rng struct {
	cipher *chacha20.Cipher
}

// NewRng constructs a byte stream from seed. The seed doubles as the
// ChaCha20 key; construction cannot fail because a 32-byte Seed is always
// a valid ChaCha20 key and a zero nonce is always valid.
func NewRng(seed Seed) *Rng {
	c, err := chacha20.NewUnauthenticatedCipher(seed[:], make([]byte, chacha20.NonceSize))
	if err != nil {
		panic("prng: chacha20 cipher construction with a 32-byte key cannot fail: " + err.Error())
	}
	return &Rng{cipher: c}
}

// Bytes draws n pseudorandom bytes from the stream.
func (r *Rng) Bytes(n int) []byte {
	zero := make([]byte, n)
	out := make([]byte, n)
	r.cipher.XORKeyStream(out, zero)
	return out
}

// Bytes32 draws exactly 32 bytes, the size used for secp256k1 private keys,
// viewing keys, and the light-client commit secret.
func (r *Rng) Bytes32() [32]byte {
	var out [32]byte
	copy(out[:], r.Bytes(32))
	return out
}
