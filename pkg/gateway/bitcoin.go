package gateway

import (
	"bytes"
	"encoding/hex"
	"strconv"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/merkle"
)

// decodeTx parses a consensus-encoded Bitcoin transaction (SegWit
// marker/flag included when the original had a witness), matching
// handle.rs's deserialize::<Transaction>.
func decodeTx(raw []byte) (*wire.MsgTx, error) {
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, bridgeerr.ErrSerialization
	}
	return &tx, nil
}

// txHash returns a transaction's legacy txid (witness-excluded) as a
// merkle.Hash32, the leaf identity the Bitcoin Merkle tree is built over.
func txHash(tx *wire.MsgTx) merkle.Hash32 {
	h := tx.TxHash()
	var out merkle.Hash32
	copy(out[:], h[:])
	return out
}

func txIDString(h merkle.Hash32) string {
	var ch [32]byte
	// Reverse to big-endian display order, matching Bitcoin's conventional
	// txid string representation.
	for i := range h {
		ch[31-i] = h[i]
	}
	return hex.EncodeToString(ch[:])
}

func addressScript(address btcutil.Address) ([]byte, error) {
	return txscript.PayToAddrScript(address)
}

func uint64ToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}
