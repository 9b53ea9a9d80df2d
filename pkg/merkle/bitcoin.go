// Package merkle implements the two independent Merkle-proof verifiers the
// bridge relies on: Bitcoin's double-SHA256 binary Merkle path (this file)
// and Tendermint's RFC6962 simple Merkle tree (tendermint.go).
package merkle

import (
	"crypto/sha256"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
)

// Hash32 is a 32-byte double-SHA256 digest, stored internal-byte-order
// (i.e. the order bytes come out of sha256, not the reversed display order
// block explorers use).
type Hash32 [32]byte

func sha256d(data []byte) Hash32 {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second
}

// VerifyBitcoinMerkleProof reconstructs the Merkle root from a claimed leaf
// and its sibling path, per spec §4.1.
//
// siblings[0] is the claimed leaf (a txid). For i = 0..len(prefix), the
// i-th bit of prefix selects which side of the pair the running hash is on:
// true combines as SHA256d(siblings[i+1] || current), false as
// SHA256d(current || siblings[i+1]).
func VerifyBitcoinMerkleProof(prefix []bool, siblings []Hash32) (Hash32, error) {
	if len(siblings) == 0 {
		return Hash32{}, bridgeerr.ErrNoSibling
	}
	if len(prefix) != len(siblings)-1 {
		return Hash32{}, bridgeerr.ErrInvalidMerkleProof
	}

	current := siblings[0]
	for i, bit := range prefix {
		sibling := siblings[i+1]
		var buf [64]byte
		if bit {
			copy(buf[:32], sibling[:])
			copy(buf[32:], current[:])
		} else {
			copy(buf[:32], current[:])
			copy(buf[32:], sibling[:])
		}
		current = sha256d(buf[:])
	}
	return current, nil
}

// VerifyBitcoinMerkleRoot is VerifyBitcoinMerkleProof plus a comparison
// against the header's claimed root.
func VerifyBitcoinMerkleRoot(prefix []bool, siblings []Hash32, root Hash32) error {
	got, err := VerifyBitcoinMerkleProof(prefix, siblings)
	if err != nil {
		return err
	}
	if got != root {
		return bridgeerr.ErrMerkleRootMismatch
	}
	return nil
}
