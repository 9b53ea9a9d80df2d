package gateway

import (
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/lightclient"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/storage"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/utxoqueue"
)

// outpointOf turns a queued UTXO's legacy txid/vout back into the wire
// representation signTransaction needs.
func outpointOf(u utxoqueue.UTXO) wire.OutPoint {
	return wire.OutPoint{Hash: chainhash.Hash(u.TxID), Index: u.Vout}
}

// ReleaseIncorrectAmountBTC refunds a deposit sent to a pending mint
// address in a value the gateway does not accept, returning the full
// amount (minus the network fee) to recipientAddress (try_release_incorrect_amount_btc
// in handle.rs).
func (g *Gateway) ReleaseIncorrectAmountBTC(
	canonicalSender []byte, rawTx []byte, proof MerkleProof, acceptedValues []uint64, confirmations uint64,
	recipientAddress btcutil.Address, feePerVB uint64, now time.Time,
) (tx *wire.MsgTx, event ReleaseIncorrectAmountBTCEvent, err error) {
	defer func() { observeOutcome("ReleaseIncorrectAmountBTC", err) }()

	switch_, err := ReadSuspensionSwitch(g.kv)
	if err != nil {
		return nil, ReleaseIncorrectAmountBTCEvent{}, err
	}
	if err := g.checkSuspended(switch_.ReleaseIncorrectAmountBTC, "ReleaseIncorrectAmountBTC"); err != nil {
		return nil, ReleaseIncorrectAmountBTCEvent{}, err
	}

	tx, err = decodeTx(rawTx)
	if err != nil {
		return nil, ReleaseIncorrectAmountBTCEvent{}, err
	}
	txid := txHash(tx)
	if len(proof.Siblings) == 0 || proof.Siblings[0] != txid {
		return nil, ReleaseIncorrectAmountBTCEvent{}, bridgeerr.ErrInvalidMerkleProof
	}
	if err := g.checkConfirmed(proof.Height, confirmations); err != nil {
		return nil, ReleaseIncorrectAmountBTCEvent{}, err
	}
	if err := g.chain.VerifyMerkleProof(proof.Height, proof.Prefix, proof.Siblings); err != nil {
		return nil, ReleaseIncorrectAmountBTCEvent{}, err
	}

	priv, err := readMintKey(g.kv, canonicalSender)
	if err != nil {
		return nil, ReleaseIncorrectAmountBTCEvent{}, err
	}
	if priv == nil {
		return nil, ReleaseIncorrectAmountBTCEvent{}, bridgeerr.ErrNoMintKey
	}
	hash := btcutil.Hash160(priv.PubKey().SerializeCompressed())
	mintAddress, err := btcutil.NewAddressWitnessPubKeyHash(hash, g.network.Params())
	if err != nil {
		return nil, ReleaseIncorrectAmountBTCEvent{}, err
	}

	vout, value, err := extractVout(tx, mintAddress)
	if err != nil {
		return nil, ReleaseIncorrectAmountBTCEvent{}, err
	}
	if containsValue(acceptedValues, value) {
		return nil, ReleaseIncorrectAmountBTCEvent{}, bridgeerr.ErrSentValueCorrect
	}
	if err := removeMintKey(g.kv, canonicalSender); err != nil {
		return nil, ReleaseIncorrectAmountBTCEvent{}, err
	}

	outpoint := wire.OutPoint{Hash: chainhash.Hash(txid), Index: vout}
	signed, err := signTransaction([]wire.OutPoint{outpoint}, []*btcec.PrivateKey{priv}, value, feePerVB, recipientAddress)
	if err != nil {
		return nil, ReleaseIncorrectAmountBTCEvent{}, err
	}

	event = ReleaseIncorrectAmountBTCEvent{
		Time:        now,
		Amount:      value,
		ReleaseFrom: mintAddress.EncodeAddress(),
		ReleaseTo:   recipientAddress.EncodeAddress(),
		TxID:        txIDString(txHash(signed)),
	}
	return signed, event, nil
}

// RequestReleaseBtc withdraws one queued UTXO of the requested value and
// hands back an unpredictable RequestKey that only the matching
// ClaimReleasedBtc call (a chain-sourced tx-result proof) can redeem
// (try_request_release_btc in handle.rs).
func (g *Gateway) RequestReleaseBtc(
	canonicalSender []byte, amount uint64, entropy []byte, now time.Time,
) (event ReleaseStarted, err error) {
	defer func() { observeOutcome("RequestReleaseBtc", err) }()

	switch_, err := ReadSuspensionSwitch(g.kv)
	if err != nil {
		return ReleaseStarted{}, err
	}
	if err := g.checkSuspended(switch_.RequestReleaseBtc, "RequestReleaseBtc"); err != nil {
		return ReleaseStarted{}, err
	}

	cfg, err := ReadConfig(g.kv)
	if err != nil {
		return ReleaseStarted{}, err
	}
	if !cfg.AcceptsValue(amount) {
		return ReleaseStarted{}, bridgeerr.ErrSentValueIncorrect
	}

	q := utxoqueue.NewQueue(storage.Prefixed(g.kv, queuePrefix(amount)))
	u, err := q.DequeueUTXO()
	if err != nil {
		return ReleaseStarted{}, err
	}
	if u == nil {
		return ReleaseStarted{}, bridgeerr.ErrNoUtxo
	}
	if depth, derr := q.Len(); derr == nil {
		queueDepth.WithLabelValues(uint64ToString(amount)).Set(float64(depth))
	}

	rng, err := advancePRNG(g.kv, canonicalSender, entropy)
	if err != nil {
		return ReleaseStarted{}, err
	}
	prngBytes := rng.Bytes(32)

	requestKey, err := utxoqueue.RequestKey(canonicalSender, *u, prngBytes)
	if err != nil {
		return ReleaseStarted{}, err
	}

	registry := utxoqueue.NewRegistry(storage.Prefixed(g.kv, "release_request/"))
	if err := registry.Put(utxoqueue.ReleaseRequest{RequestKey: requestKey, Value: amount, UTXO: *u}); err != nil {
		return ReleaseStarted{}, err
	}

	return ReleaseStarted{Time: now, RequestKey: requestKey, Amount: amount}, nil
}

// ClaimReleasedBtc redeems a request_key recovered from a Tendermint
// tx-result proof: the proof shows the source chain actually emitted that
// answer, its AES-128-SIV ciphertext is decrypted with the caller's
// encryption key, and the recovered request_key is consumed exactly once
// against the registry RequestReleaseBtc populated (try_claim_released_btc
// in handle.rs).
func (g *Gateway) ClaimReleasedBtc(
	proof *lightclient.TxResultProof, headerHashIndex uint64, encryptionKey [32]byte,
	recipientAddress btcutil.Address, feePerVB uint64, now time.Time,
) (tx *wire.MsgTx, event ReleaseCompleted, err error) {
	defer func() { observeOutcome("ClaimReleasedBtc", err) }()

	switch_, err := ReadSuspensionSwitch(g.kv)
	if err != nil {
		return nil, ReleaseCompleted{}, err
	}
	if err := g.checkSuspended(switch_.ClaimReleasedBtc, "ClaimReleasedBtc"); err != nil {
		return nil, ReleaseCompleted{}, err
	}

	if err := g.hashChain.VerifyTxResultProof(proof, headerHashIndex); err != nil {
		return nil, ReleaseCompleted{}, err
	}

	plaintext, err := DecryptAESSIV(encryptionKey, proof.TxResultBytes)
	if err != nil {
		return nil, ReleaseCompleted{}, err
	}
	requestKey, err := parseClaimPayload(plaintext)
	if err != nil {
		return nil, ReleaseCompleted{}, err
	}

	registry := utxoqueue.NewRegistry(storage.Prefixed(g.kv, "release_request/"))
	req, err := registry.Take(requestKey)
	if err != nil {
		return nil, ReleaseCompleted{}, err
	}

	priv := btcec.PrivKeyFromBytes(req.UTXO.Key[:])
	signed, err := signTransaction(
		[]wire.OutPoint{outpointOf(req.UTXO)}, []*btcec.PrivateKey{priv}, req.Value, feePerVB, recipientAddress,
	)
	if err != nil {
		return nil, ReleaseCompleted{}, err
	}

	event = ReleaseCompleted{
		Time:       now,
		RequestKey: requestKey,
		TxID:       txIDString(txHash(signed)),
		FeePerVB:   feePerVB,
	}
	return signed, event, nil
}

// ReleaseBtcByOwner lets the owner sweep up to maxInputLength queued UTXOs
// of a given value out to an arbitrary address, bypassing the
// request/claim handshake (try_release_btc_by_owner in handle.rs). Used to
// recover funds the release flow can't reach, e.g. dust below any claim
// threshold.
func (g *Gateway) ReleaseBtcByOwner(
	canonicalSender []byte, txValue uint64, maxInputLength uint64,
	recipientAddress btcutil.Address, feePerVB uint64,
) (tx *wire.MsgTx, err error) {
	defer func() { observeOutcome("ReleaseBtcByOwner", err) }()

	cfg, err := ReadConfig(g.kv)
	if err != nil {
		return nil, err
	}
	if cfg.Owner != string(canonicalSender) {
		return nil, bridgeerr.ErrNotOwner
	}

	q := utxoqueue.NewQueue(storage.Prefixed(g.kv, queuePrefix(txValue)))
	var outpoints []wire.OutPoint
	var privKeys []*btcec.PrivateKey
	for uint64(len(outpoints)) < maxInputLength {
		u, err := q.DequeueUTXO()
		if err != nil {
			return nil, err
		}
		if u == nil {
			break
		}
		priv := btcec.PrivKeyFromBytes(u.Key[:])
		outpoints = append(outpoints, outpointOf(*u))
		privKeys = append(privKeys, priv)
	}
	if depth, derr := q.Len(); derr == nil {
		queueDepth.WithLabelValues(uint64ToString(txValue)).Set(float64(depth))
	}
	if len(outpoints) == 0 {
		return nil, bridgeerr.ErrNoUtxo
	}

	return signTransaction(outpoints, privKeys, txValue, feePerVB, recipientAddress)
}
