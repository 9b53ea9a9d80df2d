package gateway

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
)

// sequenceReplaceable is nSequence = 0xFFFFFFFD: the input opts in to
// BIP-125 replace-by-fee (handle.rs's txin comment: "2 sequence signals
// the transaction is considered to have opted in to allowing replacement
// of itself").
const sequenceReplaceable = 0xFFFFFFFD

const (
	// https://github.com/bitcoin/bips/blob/master/bip-0141.mediawiki
	// https://github.com/bitcoin/bips/blob/master/bip-0144.mediawiki
	// Weights below reproduce handle.rs's weight() exactly: the maximum
	// possible post-signing weight, assuming every witness signature is
	// 72 bytes (it can be 71 or 72 depending on the signature's s-value).
	inputConstantWeight   = 160 // (txid(32) + vout(4) + sequence(4)) * 4
	p2wpkhScriptSigWeight = 4   // (scriptSig length varint(1) + empty scriptSig) * 4
	p2wpkhWitnessWeight   = 108 // witness count(1) + sig len(1) + sig(72) + pubkey len(1) + pubkey(33)
	txConstantWeight      = 34  // (version(4) + locktime(4)) * 4 + marker(1) + flag(1)
	outputConstantWeight  = 32  // value(8) * 4
	txoutCountWeight      = 4   // output count varint(1) * 4
)

// txIn builds an input spending outpoint, pre-wired to opt in to
// replace-by-fee.
func txIn(outpoint wire.OutPoint) *wire.TxIn {
	in := wire.NewTxIn(&outpoint, nil, nil)
	in.Sequence = sequenceReplaceable
	return in
}

func varIntLen(v uint64) uint64 {
	switch {
	case v < 0xfd:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// weight computes the maximum weight of a transaction with txinCount
// P2WPKH inputs and a single output paying recipientScript, per handle.rs's
// weight().
func weight(recipientScript []byte, txinCount uint64) uint64 {
	scriptLen := uint64(len(recipientScript))
	inputWeight := (inputConstantWeight + p2wpkhScriptSigWeight + p2wpkhWitnessWeight) * txinCount
	outputWeight := outputConstantWeight + (varIntLen(scriptLen)+scriptLen)*4
	txinCountWeight := varIntLen(txinCount) * 4
	return txConstantWeight + txinCountWeight + inputWeight + txoutCountWeight + outputWeight
}

// vsize is ceil(weight/4), per handle.rs's vsize().
func vsize(recipientScript []byte, txinCount uint64) uint64 {
	return (weight(recipientScript, txinCount) + 3) / 4
}

// fee is vsize * fee_per_vb, per handle.rs's fee().
func fee(recipientScript []byte, txinCount uint64, feePerVB uint64) uint64 {
	return vsize(recipientScript, txinCount) * feePerVB
}

// scriptCode is the BIP-143 "script code" for a P2WPKH input: the legacy
// P2PKH script for the spending key's own pubkey hash.
// https://github.com/bitcoin/bips/blob/master/bip-0143.mediawiki#Native_P2WPKH
func scriptCode(pubKey *btcec.PublicKey) ([]byte, error) {
	hash := btcutil.Hash160(pubKey.SerializeCompressed())
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(hash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// signTransaction builds and signs a sweep of len(outpoints) P2WPKH inputs,
// each known to carry exactly valuePerInput, into a single output paying
// recipientAddress the total spendable value minus the BIP-143 fee for
// this many inputs (handle.rs's sign_transaction). version=2, locktime=0,
// SIGHASH_ALL throughout.
func signTransaction(
	outpoints []wire.OutPoint,
	privKeys []*btcec.PrivateKey,
	valuePerInput uint64,
	feePerVB uint64,
	recipientAddress btcutil.Address,
) (*wire.MsgTx, error) {
	if len(outpoints) != len(privKeys) {
		return nil, bridgeerr.ErrSerialization
	}
	recipientScript, err := txscript.PayToAddrScript(recipientAddress)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(2)
	for _, outpoint := range outpoints {
		tx.AddTxIn(txIn(outpoint))
	}

	spendable := valuePerInput * uint64(len(outpoints))
	txFee := fee(recipientScript, uint64(len(outpoints)), feePerVB)
	payout := int64(0)
	if spendable > txFee {
		payout = int64(spendable - txFee)
	}
	tx.AddTxOut(wire.NewTxOut(payout, recipientScript))

	sigHashes := txscript.NewTxSigHashes(tx)
	for i, priv := range privKeys {
		pubKey := priv.PubKey()
		sc, err := scriptCode(pubKey)
		if err != nil {
			return nil, err
		}
		sigHash, err := txscript.CalcWitnessSigHash(sc, sigHashes, txscript.SigHashAll, tx, i, int64(valuePerInput))
		if err != nil {
			return nil, err
		}
		sig := ecdsa.Sign(priv, sigHash)
		sigBytes := append(sig.Serialize(), byte(txscript.SigHashAll))
		tx.TxIn[i].Witness = wire.TxWitness{sigBytes, pubKey.SerializeCompressed()}
	}
	return tx, nil
}
