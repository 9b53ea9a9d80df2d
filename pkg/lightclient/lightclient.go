// Package lightclient implements the light-client hash chain (spec §4.4):
// an append-only list of trusted Tendermint header hashes, extended only
// through a commit-secret-authenticated batch derived from an (expensive,
// non-mutating) verification query.
package lightclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	cmttypes "github.com/cometbft/cometbft/types"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/lightblock"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/merkle"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/storage"
)

// Entry is one link in the hash chain: a trusted header hash and the
// height it was recorded at.
type Entry struct {
	Hash   []byte
	Height int64
}

var (
	keyLength      = []byte("header_hash/length")
	prefixEntry    = []byte("header_hash/")
	keyMaxInterval = []byte("max_interval")
	keyCommitSecret = []byte("commit_secret")
)

func entryKey(index uint64) []byte {
	key := make([]byte, len(prefixEntry)+8)
	copy(key, prefixEntry)
	binary.BigEndian.PutUint64(key[len(prefixEntry):], index)
	return key
}

// HashChain is the C4 component's durable state, namespaced under the
// "light_client_db" prefix per spec §6.
type HashChain struct {
	kv storage.KV
}

// NewHashChain opens (or creates, if unpopulated) a hash chain backed by kv.
// The caller is expected to have already wrapped kv with
// storage.Prefixed(kv, "light_client_db/").
func NewHashChain(kv storage.KV) *HashChain {
	return &HashChain{kv: kv}
}

func (hc *HashChain) length() (uint64, error) {
	raw, err := hc.kv.Get(keyLength)
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, nil
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (hc *HashChain) setLength(n uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return hc.kv.Set(keyLength, buf)
}

// EntryAt returns the chain entry at index, or nil if out of range.
func (hc *HashChain) EntryAt(index uint64) (*Entry, error) {
	raw, err := hc.kv.Get(entryKey(index))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return decodeEntry(raw), nil
}

func encodeEntry(e Entry) []byte {
	out := make([]byte, 8+len(e.Hash))
	binary.BigEndian.PutUint64(out[:8], uint64(e.Height))
	copy(out[8:], e.Hash)
	return out
}

func decodeEntry(raw []byte) *Entry {
	height := int64(binary.BigEndian.Uint64(raw[:8]))
	hash := make([]byte, len(raw)-8)
	copy(hash, raw[8:])
	return &Entry{Hash: hash, Height: height}
}

func (hc *HashChain) appendEntry(e Entry) error {
	n, err := hc.length()
	if err != nil {
		return err
	}
	if err := hc.kv.Set(entryKey(n), encodeEntry(e)); err != nil {
		return err
	}
	return hc.setLength(n + 1)
}

// Init seeds the chain with a single anchor entry and the per-chain
// commit-secret and max-interval parameters. Requires the chain be empty.
func (hc *HashChain) Init(header *cmttypes.Header, maxInterval uint64, commitSecret []byte) error {
	n, err := hc.length()
	if err != nil {
		return err
	}
	if n > 0 {
		return bridgeerr.ErrAlreadyInitialized
	}
	if err := hc.appendEntry(Entry{Hash: lightblock.HeaderHash(header), Height: header.Height}); err != nil {
		return err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, maxInterval)
	if err := hc.kv.Set(keyMaxInterval, buf); err != nil {
		return err
	}
	return hc.kv.Set(keyCommitSecret, commitSecret)
}

func (hc *HashChain) maxInterval() (uint64, error) {
	raw, err := hc.kv.Get(keyMaxInterval)
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, bridgeerr.ErrNotInitialized
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (hc *HashChain) commitSecret() ([]byte, error) {
	secret, err := hc.kv.Get(keyCommitSecret)
	if err != nil {
		return nil, err
	}
	if secret == nil {
		return nil, bridgeerr.ErrNotInitialized
	}
	return secret, nil
}

// Hashes is the set of entries a query-side verification proposes to append.
type Hashes struct {
	AnchorHash      []byte
	AnchorHeight    int64
	Following       []Entry
}

// CommittedHashes authenticates a Hashes batch with an HMAC over the
// commit secret, so a later handle-side call can trust it was produced by
// this chain's own verify_subsequent without re-running verification.
type CommittedHashes struct {
	Hashes Hashes
	Commit []byte
}

func canonicalizeHashes(h Hashes) []byte {
	buf := make([]byte, 0, 8+len(h.AnchorHash)+len(h.Following)*40)
	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], uint64(h.AnchorHeight))
	buf = append(buf, heightBuf[:]...)
	buf = append(buf, h.AnchorHash...)
	for _, e := range h.Following {
		var hb [8]byte
		binary.BigEndian.PutUint64(hb[:], uint64(e.Height))
		buf = append(buf, hb[:]...)
		buf = append(buf, e.Hash...)
	}
	return buf
}

func computeCommit(secret []byte, h Hashes) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(canonicalizeHashes(h))
	return mac.Sum(nil)
}

// VerifySubsequent is the query-side path (spec §4.4): it walks a chain of
// subsequent light blocks from a previously-recorded anchor entry, checking
// interval bounds, validator-set continuity, and each block's signed commit,
// without mutating the chain. commitFlags selects which of the verified
// hashes are included in the returned authenticated batch (a caller may
// choose to commit only a prefix of what it verified).
func (hc *HashChain) VerifySubsequent(
	anchorHeader *cmttypes.Header,
	anchorIndex uint64,
	following []*lightblock.LightBlock,
	commitFlags []bool,
	chainID string,
) (*CommittedHashes, error) {
	anchorEntry, err := hc.EntryAt(anchorIndex)
	if err != nil {
		return nil, err
	}
	if anchorEntry == nil {
		return nil, bridgeerr.ErrInvalidAnchor
	}
	anchorHash := lightblock.HeaderHash(anchorHeader)
	if string(anchorHash) != string(anchorEntry.Hash) || anchorHeader.Height != anchorEntry.Height {
		return nil, bridgeerr.ErrInvalidAnchor
	}

	maxInterval, err := hc.maxInterval()
	if err != nil {
		return nil, err
	}

	if len(commitFlags) != len(following) {
		return nil, bridgeerr.ErrInvalidCommit
	}

	current := anchorHeader
	followingEntries := make([]Entry, 0, len(following))
	for i, lb := range following {
		if lb.SignedHeader == nil || lb.SignedHeader.Header == nil {
			return nil, bridgeerr.ErrInvalidHighestHash
		}
		header := lb.SignedHeader.Header
		interval := uint64(header.Height - current.Height)
		if header.Height <= current.Height || interval > maxInterval {
			return nil, bridgeerr.ErrExceedsInterval
		}
		if string(header.ValidatorsHash) != string(current.NextValidatorsHash) {
			return nil, bridgeerr.ErrUnmatchedValidatorsHash
		}
		if err := lightblock.Verify(lb, chainID); err != nil {
			return nil, err
		}
		if commitFlags[i] {
			followingEntries = append(followingEntries, Entry{
				Hash:   lightblock.HeaderHash(header),
				Height: header.Height,
			})
		}
		current = header
	}

	secret, err := hc.commitSecret()
	if err != nil {
		return nil, err
	}
	hashes := Hashes{AnchorHash: anchorHash, AnchorHeight: anchorHeader.Height, Following: followingEntries}
	return &CommittedHashes{Hashes: hashes, Commit: computeCommit(secret, hashes)}, nil
}

// AppendSubsequent is the handle-side path (spec §4.4): it re-derives the
// commit over the batch with the chain's own stored secret, confirms the
// batch's anchor is still the chain's latest entry, then appends.
func (hc *HashChain) AppendSubsequent(committed *CommittedHashes) error {
	secret, err := hc.commitSecret()
	if err != nil {
		return err
	}
	expected := computeCommit(secret, committed.Hashes)
	if !hmac.Equal(expected, committed.Commit) {
		return bridgeerr.ErrInvalidCommit
	}

	n, err := hc.length()
	if err != nil {
		return err
	}
	if n == 0 {
		return bridgeerr.ErrNotInitialized
	}
	last, err := hc.EntryAt(n - 1)
	if err != nil {
		return err
	}
	if last == nil || string(last.Hash) != string(committed.Hashes.AnchorHash) {
		return bridgeerr.ErrInvalidHighestHash
	}

	for _, e := range committed.Hashes.Following {
		if err := hc.appendEntry(e); err != nil {
			return err
		}
	}
	return nil
}

// TxResultProof is the evidence a claim presents: a TxResult delivered in a
// Tendermint block, the RFC6962 proof that it is included in that block's
// last-results root, and the chain of headers connecting that block back to
// the recorded hash at the index VerifyTxResultProof is given (spec §4.4).
type TxResultProof struct {
	TxResultBytes []byte
	Proof         *merkle.TendermintProof
	Headers       []*cmttypes.Header
}

// VerifyTxResultProof checks that proof's TxResult is included under the
// first header's LastResultsHash, that the header chain it carries is
// internally connected by LastBlockID, and that the chain's topmost header
// hash equals the entry stored at hashIndex.
func (hc *HashChain) VerifyTxResultProof(proof *TxResultProof, hashIndex uint64) error {
	if len(proof.Headers) == 0 {
		return bridgeerr.ErrInvalidHighestHash
	}
	if err := merkle.VerifyTendermintInclusionProof(proof.Proof, proof.TxResultBytes, proof.Headers[0].LastResultsHash); err != nil {
		return err
	}
	for i := 1; i < len(proof.Headers); i++ {
		prevHash := lightblock.HeaderHash(proof.Headers[i-1])
		if string(proof.Headers[i].LastBlockID.Hash) != string(prevHash) {
			return bridgeerr.ErrInvalidHighestHash
		}
	}
	topHash := lightblock.HeaderHash(proof.Headers[len(proof.Headers)-1])

	entry, err := hc.EntryAt(hashIndex)
	if err != nil {
		return err
	}
	if entry == nil || string(entry.Hash) != string(topHash) {
		return bridgeerr.ErrInvalidHighestHash
	}
	return nil
}
