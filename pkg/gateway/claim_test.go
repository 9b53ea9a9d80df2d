package gateway

import (
	"testing"
	"time"

	cmttypes "github.com/cometbft/cometbft/types"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/lightclient"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/merkle"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/storage"
)

// buildTxResultProof encrypts plaintext with encryptionKey, embeds it as
// the sole leaf of a Tendermint tx-results tree, and seeds kv's light
// client hash chain with a single header committing to that tree. It
// returns the resulting proof, which is anchored at hash-chain index 0,
// mirroring how a real tx-result proof would be assembled from a verified
// Tendermint block.
func buildTxResultProof(t *testing.T, kv storage.KV, encryptionKey [32]byte, plaintext []byte) *lightclient.TxResultProof {
	t.Helper()
	ciphertext, err := EncryptAESSIV(encryptionKey, plaintext)
	if err != nil {
		t.Fatalf("EncryptAESSIV: %v", err)
	}
	root, proof, err := merkle.BuildTendermintProof([][]byte{ciphertext}, 0)
	if err != nil {
		t.Fatalf("BuildTendermintProof: %v", err)
	}
	header := &cmttypes.Header{
		ChainID:         "claim-test-chain",
		Height:          123,
		Time:            time.Unix(1700000000, 0).UTC(),
		LastResultsHash: root,
	}
	hashChain := lightclient.NewHashChain(storage.Prefixed(kv, "lightclient/"))
	if err := hashChain.Init(header, 1000, []byte("0123456789abcdef0123456789abcdef")); err != nil {
		t.Fatalf("hashChain.Init: %v", err)
	}
	return &lightclient.TxResultProof{
		TxResultBytes: ciphertext,
		Proof:         proof,
		Headers:       []*cmttypes.Header{header},
	}
}

func TestClaimReleasedBtc_RedeemsRegisteredRequest(t *testing.T) {
	g, kv := newTestGateway(t)
	seedUTXO(t, kv, 100_000_000)

	releaseEvent, err := g.RequestReleaseBtc([]byte("alice"), 100_000_000, []byte("e1"), time.Now())
	if err != nil {
		t.Fatalf("RequestReleaseBtc: %v", err)
	}

	var encryptionKey [32]byte
	for i := range encryptionKey {
		encryptionKey[i] = byte(i + 9)
	}
	plaintext := encodeClaimPayload(releaseEvent.RequestKey, 0)
	proof := buildTxResultProof(t, kv, encryptionKey, plaintext)

	tx, completedEvent, err := g.ClaimReleasedBtc(proof, 0, encryptionKey, testRecipient(t), 10, time.Now())
	if err != nil {
		t.Fatalf("ClaimReleasedBtc: %v", err)
	}
	if len(tx.TxIn) != 1 || len(tx.TxOut) != 1 {
		t.Fatalf("tx = %d inputs, %d outputs; want 1, 1", len(tx.TxIn), len(tx.TxOut))
	}
	if completedEvent.RequestKey != releaseEvent.RequestKey {
		t.Fatalf("event.RequestKey mismatch")
	}

	wantFee := fee(tx.TxOut[0].PkScript, 1, 10)
	if uint64(tx.TxOut[0].Value) != 100_000_000-wantFee {
		t.Fatalf("output value = %d, want %d", tx.TxOut[0].Value, 100_000_000-wantFee)
	}
}

func TestClaimReleasedBtc_RejectsReplay(t *testing.T) {
	g, kv := newTestGateway(t)
	seedUTXO(t, kv, 100_000_000)

	releaseEvent, err := g.RequestReleaseBtc([]byte("alice"), 100_000_000, []byte("e1"), time.Now())
	if err != nil {
		t.Fatalf("RequestReleaseBtc: %v", err)
	}

	var encryptionKey [32]byte
	encryptionKey[0] = 0x01
	plaintext := encodeClaimPayload(releaseEvent.RequestKey, 0)
	proof := buildTxResultProof(t, kv, encryptionKey, plaintext)

	if _, _, err := g.ClaimReleasedBtc(proof, 0, encryptionKey, testRecipient(t), 10, time.Now()); err != nil {
		t.Fatalf("first ClaimReleasedBtc: %v", err)
	}
	if _, _, err := g.ClaimReleasedBtc(proof, 0, encryptionKey, testRecipient(t), 10, time.Now()); err != bridgeerr.ErrNoReleaseRequest {
		t.Fatalf("replayed claim err = %v, want ErrNoReleaseRequest", err)
	}
}

func TestClaimReleasedBtc_RejectsWrongEncryptionKey(t *testing.T) {
	g, kv := newTestGateway(t)
	seedUTXO(t, kv, 100_000_000)

	releaseEvent, err := g.RequestReleaseBtc([]byte("alice"), 100_000_000, []byte("e1"), time.Now())
	if err != nil {
		t.Fatalf("RequestReleaseBtc: %v", err)
	}

	var encryptionKey, wrongKey [32]byte
	encryptionKey[0] = 0x01
	wrongKey[0] = 0x02
	plaintext := encodeClaimPayload(releaseEvent.RequestKey, 0)
	proof := buildTxResultProof(t, kv, encryptionKey, plaintext)

	if _, _, err := g.ClaimReleasedBtc(proof, 0, wrongKey, testRecipient(t), 10, time.Now()); err != bridgeerr.ErrDecryption {
		t.Fatalf("err = %v, want ErrDecryption", err)
	}
}
