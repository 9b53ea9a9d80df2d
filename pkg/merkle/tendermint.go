package merkle

import (
	"bytes"
	"crypto/sha256"

	cometmerkle "github.com/cometbft/cometbft/crypto/merkle"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
)

// TendermintProof is spec §4.1's { total, index, leaf_hash, aunts } shape.
// It is a thin alias over cometbft's own RFC6962 simple-Merkle proof type,
// since cometbft's crypto/merkle.Proof already implements exactly the
// climb-from-leaf-to-root algorithm spec.md describes (the same library
// Tendermint/CometBFT itself uses to prove ResponseDeliverTx inclusion).
type TendermintProof = cometmerkle.Proof

// VerifyTendermintInclusionProof verifies that leaf is included under root
// according to proof, translating cometbft's generic proof-verification
// errors into the bridge's own sentinel taxonomy (spec §4.1, §7).
func VerifyTendermintInclusionProof(proof *TendermintProof, leaf []byte, root []byte) error {
	if proof.Index < 0 || uint64(proof.Index) >= uint64(proof.Total) {
		return bridgeerr.ErrInvalidTotal
	}
	leafHash := leafHash(leaf)
	if !bytes.Equal(leafHash, proof.LeafHash) {
		return bridgeerr.ErrInvalidLeafHash
	}
	if err := proof.Verify(root, leaf); err != nil {
		return bridgeerr.ErrMerkleRootMismatch
	}
	return nil
}

// leafHash mirrors RFC6962's L(x) = SHA256(0x00 || x) so callers can check
// a caller-supplied leaf_hash against the leaf they actually have before
// handing both to cometbft's Verify.
func leafHash(leaf []byte) []byte {
	h := sha256.New()
	h.Write([]byte{0x00})
	h.Write(leaf)
	return h.Sum(nil)
}

// BuildTendermintProof constructs an inclusion proof for leaves[index],
// for use building test fixtures; the light client only verifies such
// proofs (spec §4.4).
func BuildTendermintProof(leaves [][]byte, index int) (root []byte, proof *TendermintProof, err error) {
	if index < 0 || index >= len(leaves) {
		return nil, nil, bridgeerr.ErrInvalidTotal
	}
	rootHash, proofs := cometmerkle.ProofsFromByteSlices(leaves)
	return rootHash, proofs[index], nil
}

// TendermintRoot computes the RFC6962 simple Merkle root over leaves, with
// the empty-set convention SHA256("").
func TendermintRoot(leaves [][]byte) []byte {
	return cometmerkle.HashFromByteSlices(leaves)
}
