// Package spv implements the Bitcoin SPV header chain: proof-of-work
// validation, difficulty retargeting, median-time-past checks, and the
// bounded-reorg "untrusted suffix" rule a light client uses to follow the
// Bitcoin chain without downloading full blocks (spec §3).
package spv

import (
	"encoding/binary"
	"io"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/merkle"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/storage"
)

// Network identifies which Bitcoin network's consensus rules govern
// retargeting (spec §3.2).
type Network int

const (
	Mainnet Network = iota
	Testnet
	Regtest
)

// Consensus constants, named and valued exactly as the original contract's
// header-chain library (original_source/contracts/libs/bitcoin_header_chain).
const (
	// UntrustedLength is how many of the most recent stored headers a
	// reorg may replace; a run that would replace more is rejected
	// regardless of its cumulative work (spec §3.4).
	UntrustedLength = 5

	// MaxFutureBlockTime bounds how far into the future a header's
	// timestamp may lie relative to the verifier's clock.
	MaxFutureBlockTime = 2 * time.Hour

	// DiffchangeTimespan is the intended duration of one mainnet
	// retarget period (2016 blocks at 10 minutes).
	DiffchangeTimespan = 14 * 24 * time.Hour

	// RetargetInterval is the block-height period between mainnet
	// difficulty adjustments.
	RetargetInterval = 2016

	// TestnetRuleTime is the per-block minimum-difficulty exception
	// period used on testnet: any block more than twenty minutes after
	// its predecessor may use the maximum target.
	TestnetRuleTime = 20 * time.Minute
)

// MaxTarget is 0xFFFF << 208, the highest (easiest) target permitted on
// mainnet and testnet.
func MaxTarget() *big.Int {
	t := big.NewInt(0xFFFF)
	return t.Lsh(t, 208)
}

// StoredBlockHeader is a Bitcoin header together with the chain's
// cumulative work up to and including it, the unit the chain DB persists
// per height (spec §3.1).
type StoredBlockHeader struct {
	Header wire.BlockHeader
	Work   *big.Int
}

func headerWork(h *wire.BlockHeader) *big.Int {
	return blockchain.CalcWork(h.Bits)
}

// isValidProofOfWorkHash reports whether the header's double-SHA256 block
// hash, interpreted as a little-endian integer, is at or below its target.
func isValidProofOfWorkHash(h *wire.BlockHeader) bool {
	target := blockchain.CompactToBig(h.Bits)
	if target.Sign() <= 0 || target.Cmp(MaxTarget()) > 0 {
		return false
	}
	hash := h.BlockHash()
	hashNum := blockchain.HashToBig(&hash)
	return hashNum.Cmp(target) <= 0
}

func validateWork(h *wire.BlockHeader) error {
	if !isValidProofOfWorkHash(h) {
		return bridgeerr.ErrBadProofOfWork
	}
	return nil
}

// storageKeys namespaces the chain DB's keys within the shared KV store.
var (
	keyTip     = []byte("spv/tip_height")
	prefixHead = []byte("spv/headers/")
)

func headerKey(height uint32) []byte {
	key := make([]byte, len(prefixHead)+4)
	copy(key, prefixHead)
	binary.BigEndian.PutUint32(key[len(prefixHead):], height)
	return key
}

// ChainDB persists the header chain in a storage.KV, mirroring the original
// contract's StorageChainDB (original_source/contracts/bitcoin_spv/src/state/chaindb.rs)
// plus an in-process cache of recently touched heights to avoid repeated
// deserialization during a single StoreHeaders call.
type ChainDB struct {
	kv      storage.KV
	network Network
	cache   map[uint32]*StoredBlockHeader
	tip     *uint32
}

// NewChainDB opens a header chain database over kv for the given network.
func NewChainDB(kv storage.KV, network Network) *ChainDB {
	return &ChainDB{
		kv:      kv,
		network: network,
		cache:   make(map[uint32]*StoredBlockHeader),
	}
}

// TipHeight returns the current chain tip height, or ErrNotInitialized if
// no header has been stored yet.
func (c *ChainDB) TipHeight() (uint32, error) {
	if c.tip != nil {
		return *c.tip, nil
	}
	raw, err := c.kv.Get(keyTip)
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, bridgeerr.ErrNotInitialized
	}
	height := binary.BigEndian.Uint32(raw)
	c.tip = &height
	return height, nil
}

func (c *ChainDB) setTip(height uint32) error {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, height)
	if err := c.kv.Set(keyTip, buf); err != nil {
		return err
	}
	c.tip = &height
	return nil
}

// GetHeader loads the stored header at height, if any.
func (c *ChainDB) GetHeader(height uint32) (*StoredBlockHeader, error) {
	if sbh, ok := c.cache[height]; ok {
		return sbh, nil
	}
	raw, err := c.kv.Get(headerKey(height))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	sbh, err := decodeStoredHeader(raw)
	if err != nil {
		return nil, err
	}
	c.cache[height] = sbh
	return sbh, nil
}

func (c *ChainDB) putHeader(height uint32, sbh *StoredBlockHeader) error {
	raw, err := encodeStoredHeader(sbh)
	if err != nil {
		return err
	}
	if err := c.kv.Set(headerKey(height), raw); err != nil {
		return err
	}
	c.cache[height] = sbh
	return nil
}

func encodeStoredHeader(sbh *StoredBlockHeader) ([]byte, error) {
	var hdrBuf [80]byte
	w := fixedWriter{buf: hdrBuf[:0]}
	if err := sbh.Header.Serialize(&w); err != nil {
		return nil, bridgeerr.ErrSerialization
	}
	workBytes := sbh.Work.Bytes()
	out := make([]byte, 0, 80+2+len(workBytes))
	out = append(out, w.buf...)
	var workLen [2]byte
	binary.BigEndian.PutUint16(workLen[:], uint16(len(workBytes)))
	out = append(out, workLen[:]...)
	out = append(out, workBytes...)
	return out, nil
}

func decodeStoredHeader(raw []byte) (*StoredBlockHeader, error) {
	if len(raw) < 82 {
		return nil, bridgeerr.ErrSerialization
	}
	var hdr wire.BlockHeader
	if err := hdr.Deserialize(&byteReader{raw[:80]}); err != nil {
		return nil, bridgeerr.ErrSerialization
	}
	workLen := binary.BigEndian.Uint16(raw[80:82])
	if len(raw) != 82+int(workLen) {
		return nil, bridgeerr.ErrSerialization
	}
	work := new(big.Int).SetBytes(raw[82:])
	return &StoredBlockHeader{Header: hdr, Work: work}, nil
}

// InitToGenesis seeds the chain DB with a network's well-known genesis
// block, the same starting point the original contract required (height
// must be a multiple of 2016, and genesis always is: height 0).
func (c *ChainDB) InitToGenesis() error {
	if _, err := c.TipHeight(); err == nil {
		return bridgeerr.ErrAlreadyInitialized
	}
	genesis := c.genesisHeader()
	return c.InitToHeader(0, genesis)
}

func (c *ChainDB) genesisHeader() wire.BlockHeader {
	return c.network.genesisBlockHeader()
}

func (n Network) genesisBlockHeader() wire.BlockHeader {
	return n.Params().GenesisBlock.Header
}

// Params returns the btcsuite chain parameters backing n, shared with
// pkg/gateway so address derivation and header validation always agree on
// which network they're speaking.
func (n Network) Params() *chaincfg.Params {
	switch n {
	case Testnet:
		return &chaincfg.TestNet3Params
	case Regtest:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// InitToHeader seeds the chain DB with a known-good header at a retarget
// boundary, so a client can start following the chain from an arbitrary
// trusted checkpoint instead of syncing from genesis.
func (c *ChainDB) InitToHeader(height uint32, header wire.BlockHeader) error {
	if _, err := c.TipHeight(); err == nil {
		return bridgeerr.ErrAlreadyInitialized
	}
	if height%RetargetInterval != 0 {
		return bridgeerr.ErrInvalidTipHeight
	}
	if err := checkMaxFutureTime(header.Timestamp, time.Now()); err != nil {
		return err
	}
	if err := validateWork(&header); err != nil {
		return err
	}
	work := headerWork(&header)
	if err := c.putHeader(height, &StoredBlockHeader{Header: header, Work: work}); err != nil {
		return err
	}
	return c.setTip(height)
}

func checkMaxFutureTime(headerTime, now time.Time) error {
	if headerTime.After(now.Add(MaxFutureBlockTime)) {
		return bridgeerr.ErrMaxFutureTime
	}
	return nil
}

// medianTimePast computes BIP-113's MTP at height: the median timestamp of
// up to the eleven most recent headers strictly before height.
func (c *ChainDB) medianTimePast(height uint32) (time.Time, error) {
	const window = 11
	times := make([]time.Time, 0, window)
	for i := uint32(0); i < window && i < height; i++ {
		sbh, err := c.GetHeader(height - 1 - i)
		if err != nil {
			return time.Time{}, err
		}
		if sbh == nil {
			break
		}
		times = append(times, sbh.Header.Timestamp)
	}
	if len(times) == 0 {
		return time.Time{}, nil
	}
	sortTimes(times)
	return times[len(times)/2], nil
}

// VerifyMerkleProof confirms that a transaction with the given prefix/sibling
// path is included under the Merkle root recorded in the header at height,
// delegating the path-climbing arithmetic to pkg/merkle (spec §4.1/§4.2).
func (c *ChainDB) VerifyMerkleProof(height uint32, prefix []bool, siblings []merkle.Hash32) error {
	sbh, err := c.HeaderAt(height)
	if err != nil {
		return err
	}
	var root merkle.Hash32
	copy(root[:], sbh.Header.MerkleRoot[:])
	return merkle.VerifyBitcoinMerkleRoot(prefix, siblings, root)
}

// HeaderAt is the exported form of GetHeader, returning ErrNotInitialized
// when the chain has no header at height rather than a bare nil.
func (c *ChainDB) HeaderAt(height uint32) (*StoredBlockHeader, error) {
	sbh, err := c.GetHeader(height)
	if err != nil {
		return nil, err
	}
	if sbh == nil {
		return nil, bridgeerr.ErrNotInitialized
	}
	return sbh, nil
}

// RequiredTarget exposes requiredTarget for callers (and tests) that want
// to check a candidate header's target before attempting StoreHeaders.
func (c *ChainDB) RequiredTarget(height uint32) (*big.Int, error) {
	prev, err := c.HeaderAt(height - 1)
	if err != nil {
		return nil, err
	}
	return c.requiredTarget(height, prev, &prev.Header)
}

func sortTimes(t []time.Time) {
	for i := 1; i < len(t); i++ {
		for j := i; j > 0 && t[j].Before(t[j-1]); j-- {
			t[j], t[j-1] = t[j-1], t[j]
		}
	}
}

// fixedWriter and byteReader adapt wire.BlockHeader's io.Writer/io.Reader
// based (de)serialization to a plain byte slice without pulling in
// bytes.Buffer's growth bookkeeping for a value that is always exactly 80
// bytes.
type fixedWriter struct{ buf []byte }

func (w *fixedWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

type byteReader struct{ buf []byte }

func (r *byteReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
