// Package lightblock verifies signed Tendermint/CometBFT blocks: canonical
// header hashing, validator-set voting power, and batch Ed25519 signature
// verification of a commit (spec §4.3).
package lightblock

import (
	"time"

	cmted25519 "github.com/cometbft/cometbft/crypto/ed25519"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	cmttypes "github.com/cometbft/cometbft/types"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
)

// BlockIDFlag mirrors a commit signature's participation state, renamed
// from cometbft's own BlockIDFlag to keep this package's wire contract
// pinned independent of any future change to cometbft's own enum (spec §3's
// CommitSig is part of the cross-chain contract, not an implementation
// detail we want to silently inherit).
type BlockIDFlag int

const (
	FlagAbsent BlockIDFlag = iota
	FlagCommit
	FlagNil
)

// CommitSig is one validator's participation record in a commit.
type CommitSig struct {
	Flag             BlockIDFlag
	ValidatorAddress []byte
	Timestamp        time.Time
	Signature        []byte
}

// Commit is the set of signatures a light block carries for its header.
type Commit struct {
	Height     int64
	Round      int32
	BlockID    cmttypes.BlockID
	Signatures []CommitSig
}

// SignedHeader pairs a canonical Tendermint header with the commit that
// finalized it.
type SignedHeader struct {
	Header *cmttypes.Header
	Commit *Commit
}

// LightBlock is a signed header plus the validator set that produced its
// commit and the validator set expected to produce the next one, the unit
// the hash chain advances by one link at a time (spec §4.3/§4.4).
type LightBlock struct {
	SignedHeader      *SignedHeader
	ValidatorSet      *cmttypes.ValidatorSet
	NextValidatorSet  *cmttypes.ValidatorSet
}

// HeaderHash returns the header's canonical hash: the RFC6962 simple Merkle
// root over its fourteen fixed fields, exactly as cometbft's own
// types.Header.Hash computes it.
func HeaderHash(h *cmttypes.Header) []byte {
	return h.Hash()
}

// Verify checks that lb is internally consistent and correctly signed:
// the commit's BlockID matches the header hash, the commit's signers carry
// more than 2/3 of the voting power recorded in ValidatorSet, and every
// "commit" and "nil" signature verifies against its validator's public key
// over the canonical vote sign-bytes (spec §4.3).
func Verify(lb *LightBlock, chainID string) error {
	if lb.SignedHeader == nil || lb.SignedHeader.Header == nil || lb.SignedHeader.Commit == nil {
		return bridgeerr.ErrInvalidHeaderHash
	}
	header := lb.SignedHeader.Header
	commit := lb.SignedHeader.Commit

	headerHash := HeaderHash(header)
	if string(commit.BlockID.Hash) != string(headerHash) {
		return bridgeerr.ErrInvalidHeaderHash
	}

	if lb.ValidatorSet == nil {
		return bridgeerr.ErrUnmatchedValidatorsHash
	}
	if string(header.ValidatorsHash) != string(lb.ValidatorSet.Hash()) {
		return bridgeerr.ErrUnmatchedValidatorsHash
	}

	return verifyCommitVotingPower(lb.ValidatorSet, chainID, commit)
}

// verifyCommitVotingPower batch-verifies every CommitSig carrying a vote
// (FlagCommit or FlagNil; FlagAbsent validators cast no vote and are
// skipped), and requires the FlagCommit signers alone to carry more than 2/3
// of the total voting power, the quorum rule spec §4.3 names. A Nil vote
// still commits its signer to a specific, verifiable statement (they saw no
// quorum for this block) — a validator can't be allowed to submit an
// unverified Nil signature, so it is queued for batch verification exactly
// like a Commit signature, just not counted toward the power threshold.
func verifyCommitVotingPower(valSet *cmttypes.ValidatorSet, chainID string, commit *Commit) error {
	batch := cmted25519.NewBatchVerifier()
	var signedPower int64
	totalPower := valSet.TotalVotingPower()

	for _, sig := range commit.Signatures {
		if sig.Flag == FlagAbsent {
			continue
		}
		if sig.Flag != FlagCommit && sig.Flag != FlagNil {
			return bridgeerr.ErrSignatureBatchFailed
		}
		_, val := valSet.GetByAddress(sig.ValidatorAddress)
		if val == nil {
			continue
		}
		signBytes := voteSignBytes(chainID, commit, sig)
		if err := batch.Add(val.PubKey, signBytes, sig.Signature); err != nil {
			return bridgeerr.ErrSignatureBatchFailed
		}
		if sig.Flag == FlagCommit {
			signedPower += val.VotingPower
		}
	}

	ok, valid := batch.Verify()
	if !ok {
		return bridgeerr.ErrSignatureBatchFailed
	}
	for _, v := range valid {
		if !v {
			return bridgeerr.ErrSignatureBatchFailed
		}
	}

	// Quorum: more than 2/3 of total voting power must have signed commit.
	if 3*signedPower <= 2*totalPower {
		return bridgeerr.ErrNotEnoughVotingPower
	}
	return nil
}

// voteSignBytes builds the canonical payload a validator signs for one
// CommitSig: the protobuf CanonicalVote over (height, round, blockID,
// timestamp, chainID), matching cometbft's own vote-signing convention so
// signatures produced by real validators verify here unmodified. A FlagNil
// signature votes for no block, so it signs an empty BlockID rather than
// commit.BlockID.
func voteSignBytes(chainID string, commit *Commit, sig CommitSig) []byte {
	blockID := commit.BlockID
	if sig.Flag == FlagNil {
		blockID = cmttypes.BlockID{}
	}
	vote := cmttypes.Vote{
		Type:      cmtproto.PrecommitType,
		Height:    commit.Height,
		Round:     commit.Round,
		BlockID:   blockID,
		Timestamp: sig.Timestamp,
	}
	return cmttypes.VoteSignBytes(chainID, &vote)
}
