package lightblock

import (
	"testing"
	"time"

	cmted25519 "github.com/cometbft/cometbft/crypto/ed25519"
	cmttypes "github.com/cometbft/cometbft/types"
)

func sampleHeader(chainID string, height int64, t time.Time) *cmttypes.Header {
	return &cmttypes.Header{
		ChainID: chainID,
		Height:  height,
		Time:    t,
	}
}

func TestHeaderHash_Deterministic(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	h1 := sampleHeader("test-chain", 10, now)
	h2 := sampleHeader("test-chain", 10, now)

	if string(HeaderHash(h1)) != string(HeaderHash(h2)) {
		t.Fatalf("identical headers produced different hashes")
	}
}

func TestHeaderHash_ChangesWithHeight(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	h1 := sampleHeader("test-chain", 10, now)
	h2 := sampleHeader("test-chain", 11, now)

	if string(HeaderHash(h1)) == string(HeaderHash(h2)) {
		t.Fatalf("different heights should not hash identically")
	}
}

func TestVerify_RejectsMismatchedBlockID(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	header := sampleHeader("test-chain", 10, now)

	lb := &LightBlock{
		SignedHeader: &SignedHeader{
			Header: header,
			Commit: &Commit{
				Height: 10,
				BlockID: cmttypes.BlockID{
					Hash: []byte("not-the-real-header-hash-012345"),
				},
			},
		},
	}

	if err := Verify(lb, "test-chain"); err == nil {
		t.Fatalf("expected an error for a commit whose BlockID does not match the header hash")
	}
}

// TestVerify_RejectsCorruptedNilSignature builds a commit where the
// FlagCommit signers alone already carry more than 2/3 of the voting power,
// but a fourth validator's FlagNil signature is corrupted. A FlagNil
// signature still must batch-verify (it just doesn't count toward the
// quorum), so the corrupted signature must fail the whole block even though
// the voting-power threshold would otherwise be satisfied.
func TestVerify_RejectsCorruptedNilSignature(t *testing.T) {
	chainID := "test-chain"
	now := time.Unix(1700000000, 0).UTC()
	header := sampleHeader(chainID, 10, now)

	privKeys := make([]cmted25519.PrivKey, 4)
	validators := make([]*cmttypes.Validator, 4)
	for i := range privKeys {
		privKeys[i] = cmted25519.GenPrivKey()
		validators[i] = cmttypes.NewValidator(privKeys[i].PubKey(), 1)
	}
	valSet := cmttypes.NewValidatorSet(validators)
	header.ValidatorsHash = valSet.Hash()
	blockID := cmttypes.BlockID{Hash: header.Hash()}

	commit := &Commit{
		Height:  10,
		Round:   0,
		BlockID: blockID,
	}

	for i := 0; i < 3; i++ {
		sig := CommitSig{
			Flag:             FlagCommit,
			ValidatorAddress: validators[i].Address,
			Timestamp:        now,
		}
		signBytes := voteSignBytes(chainID, commit, sig)
		signature, err := privKeys[i].Sign(signBytes)
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		sig.Signature = signature
		commit.Signatures = append(commit.Signatures, sig)
	}

	// Fourth validator casts a Nil vote, but its signature is garbage.
	nilSig := CommitSig{
		Flag:             FlagNil,
		ValidatorAddress: validators[3].Address,
		Timestamp:        now,
		Signature:        []byte("not-a-real-signature-over-this-vote-012"),
	}
	commit.Signatures = append(commit.Signatures, nilSig)

	lb := &LightBlock{
		SignedHeader: &SignedHeader{Header: header, Commit: commit},
		ValidatorSet: valSet,
	}

	if err := Verify(lb, chainID); err == nil {
		t.Fatalf("expected a corrupted Nil signature to fail verification even though Commit signers alone meet quorum")
	}
}
