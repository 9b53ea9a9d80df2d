package gateway

import (
	"log"
	"os"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/lightclient"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/merkle"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/prng"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/spv"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/storage"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/utxoqueue"
)

// MerkleProof is the proof a client submits alongside a Bitcoin
// transaction to show it is confirmed under a recorded header (spec §4.2,
// "VerifyMintTx"/"ReleaseIncorrectAmountBTC").
type MerkleProof struct {
	Height   uint32
	Prefix   []bool
	Siblings []merkle.Hash32
}

// Gateway is the bridge state machine (C6): it owns no storage itself
// beyond what it's handed, delegating to the SPV chain (C2) and light
// client (C4) it was constructed with for confirmation evidence.
type Gateway struct {
	kv        storage.KV
	chain     *spv.ChainDB
	hashChain *lightclient.HashChain
	network   spv.Network
	logger    *log.Logger
}

// New constructs a Gateway over kv, delegating confirmation checks to
// chain and hashChain. kv is expected to already be namespaced to this
// gateway instance (the caller composes storage.Prefixed as needed).
func New(kv storage.KV, chain *spv.ChainDB, hashChain *lightclient.HashChain, network spv.Network) *Gateway {
	return &Gateway{
		kv:        kv,
		chain:     chain,
		hashChain: hashChain,
		network:   network,
		logger:    log.New(os.Stderr, "[gateway] ", log.LstdFlags),
	}
}

// Instantiate seeds a fresh gateway's config and PRNG chain. Called once,
// at deployment.
func (g *Gateway) Instantiate(cfg *Config, blockHeight, blockTime uint64, deployer, entropy []byte) error {
	if err := WriteConfig(g.kv, cfg); err != nil {
		return err
	}
	if err := WriteSuspensionSwitch(g.kv, SuspensionSwitch{}); err != nil {
		return err
	}
	return InitPRNG(g.kv, blockHeight, blockTime, deployer, entropy)
}

func (g *Gateway) checkSuspended(flag bool, op string) error {
	if flag {
		return &bridgeerr.SuspendedOp{Op: op}
	}
	return nil
}

// checkConfirmed requires the header at height to have at least
// confirmations blocks counting itself and every block built on top of
// it, delegating the tip lookup to
// the SPV chain (spec §4.6 step 1, "confirm tip_height − height + 1 ≥
// confirmations").
func (g *Gateway) checkConfirmed(height uint32, confirmations uint64) error {
	tip, err := g.chain.TipHeight()
	if err != nil {
		return err
	}
	var depth uint64
	if uint64(tip) > uint64(height) {
		depth = uint64(tip) - uint64(height)
	}
	if depth+1 < confirmations {
		return bridgeerr.ErrNotConfirmedYet
	}
	return nil
}

// CreateViewingKey draws a fresh viewing key from the PRNG chain, stores
// its hash, and returns the key to hand back to the caller exactly once
// (SNIP-20-style; spec §4.6 "Supplemented: viewing keys").
func (g *Gateway) CreateViewingKey(canonicalSender []byte, entropy string) (ViewingKey, error) {
	rng, err := advancePRNG(g.kv, canonicalSender, []byte(entropy))
	if err != nil {
		return ViewingKey{}, err
	}
	key := NewViewingKey(rng)
	if err := WriteViewingKeyHash(g.kv, canonicalSender, key.Hash()); err != nil {
		return ViewingKey{}, err
	}
	return key, nil
}

// SetViewingKey overwrites a caller-chosen viewing key's stored hash.
func (g *Gateway) SetViewingKey(canonicalSender []byte, key ViewingKey) error {
	return WriteViewingKeyHash(g.kv, canonicalSender, key.Hash())
}

// RequestMintAddress issues a fresh per-user deposit address: a mint key
// is drawn from the PRNG chain and kept pending until the matching deposit
// is verified (spec §4.6). Calling this twice for the same sender
// overwrites the prior pending key (spec §9's documented ambiguity;
// retrying a lost address is allowed).
func (g *Gateway) RequestMintAddress(
	canonicalSender []byte, entropy []byte, now time.Time,
) (address string, event MintStarted, err error) {
	defer func() { observeOutcome("RequestMintAddress", err) }()

	switch_, err := ReadSuspensionSwitch(g.kv)
	if err != nil {
		return "", MintStarted{}, err
	}
	if err := g.checkSuspended(switch_.RequestMintAddress, "RequestMintAddress"); err != nil {
		return "", MintStarted{}, err
	}

	rng, err := advancePRNG(g.kv, canonicalSender, entropy)
	if err != nil {
		return "", MintStarted{}, err
	}
	priv := randomPrivateKey(rng)
	if err := writeMintKey(g.kv, canonicalSender, priv); err != nil {
		return "", MintStarted{}, err
	}

	hash := btcutil.Hash160(priv.PubKey().SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(hash, g.network.Params())
	if err != nil {
		return "", MintStarted{}, err
	}
	event = MintStarted{Time: now, Address: addr.EncodeAddress()}
	return addr.EncodeAddress(), event, nil
}

// extractVout finds the output index paying address, failing if none does
// (extract_vout in handle.rs).
func extractVout(tx *wire.MsgTx, address btcutil.Address) (uint32, uint64, error) {
	script, err := addressScript(address)
	if err != nil {
		return 0, 0, err
	}
	for i, out := range tx.TxOut {
		if bytesEqual(out.PkScript, script) {
			return uint32(i), uint64(out.Value), nil
		}
	}
	return 0, 0, bridgeerr.ErrNoUtxo
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// VerifyMintTx checks a claimed deposit transaction is confirmed under a
// recorded SPV header, pays the sender's pending mint address an accepted
// deposit value, and if so enqueues the resulting UTXO (spec §4.6).
func (g *Gateway) VerifyMintTx(
	canonicalSender []byte, rawTx []byte, proof MerkleProof, acceptedValues []uint64, confirmations uint64, now time.Time,
) (amount uint64, event MintCompleted, err error) {
	defer func() { observeOutcome("VerifyMintTx", err) }()

	switch_, err := ReadSuspensionSwitch(g.kv)
	if err != nil {
		return 0, MintCompleted{}, err
	}
	if err := g.checkSuspended(switch_.VerifyMintTx, "VerifyMintTx"); err != nil {
		return 0, MintCompleted{}, err
	}

	tx, err := decodeTx(rawTx)
	if err != nil {
		return 0, MintCompleted{}, err
	}
	txid := txHash(tx)

	if len(proof.Siblings) == 0 || proof.Siblings[0] != txid {
		return 0, MintCompleted{}, bridgeerr.ErrInvalidMerkleProof
	}
	if err := g.checkConfirmed(proof.Height, confirmations); err != nil {
		return 0, MintCompleted{}, err
	}
	if err := g.chain.VerifyMerkleProof(proof.Height, proof.Prefix, proof.Siblings); err != nil {
		return 0, MintCompleted{}, err
	}

	priv, err := readMintKey(g.kv, canonicalSender)
	if err != nil {
		return 0, MintCompleted{}, err
	}
	if priv == nil {
		return 0, MintCompleted{}, bridgeerr.ErrNoMintKey
	}
	hash := btcutil.Hash160(priv.PubKey().SerializeCompressed())
	mintAddress, err := btcutil.NewAddressWitnessPubKeyHash(hash, g.network.Params())
	if err != nil {
		return 0, MintCompleted{}, err
	}

	vout, value, err := extractVout(tx, mintAddress)
	if err != nil {
		return 0, MintCompleted{}, err
	}
	if !containsValue(acceptedValues, value) {
		return 0, MintCompleted{}, bridgeerr.ErrSentValueIncorrect
	}
	if err := removeMintKey(g.kv, canonicalSender); err != nil {
		return 0, MintCompleted{}, err
	}

	q := utxoqueue.NewQueue(storage.Prefixed(g.kv, queuePrefix(value)))
	var u utxoqueue.UTXO
	u.TxID = txid
	u.Vout = vout
	copy(u.Key[:], priv.Serialize())
	if err := q.EnqueueUTXO(u); err != nil {
		return 0, MintCompleted{}, err
	}
	if depth, derr := q.Len(); derr == nil {
		queueDepth.WithLabelValues(uint64ToString(value)).Set(float64(depth))
	}

	event = MintCompleted{Time: now, Address: mintAddress.EncodeAddress(), Amount: value, TxID: txIDString(txid)}
	return value, event, nil
}

func containsValue(values []uint64, v uint64) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func queuePrefix(value uint64) string {
	return "utxo_queue/" + uint64ToString(value) + "/"
}
