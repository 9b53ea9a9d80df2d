package gateway

import (
	"testing"
	"time"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
)

func TestReleaseIncorrectAmountBTC_RejectsProofNotMatchingTxid(t *testing.T) {
	g, _ := newTestGateway(t)
	tx := newTestTx(123)
	raw := serializeTx(t, tx)
	proof := MerkleProof{Height: 0, Prefix: nil, Siblings: nil}

	_, _, err := g.ReleaseIncorrectAmountBTC(
		[]byte("alice"), raw, proof, []uint64{100_000_000}, 6, testRecipient(t), 10, time.Now(),
	)
	if err != bridgeerr.ErrInvalidMerkleProof {
		t.Fatalf("err = %v, want ErrInvalidMerkleProof", err)
	}
}

func TestReleaseIncorrectAmountBTC_RejectsWhenSuspended(t *testing.T) {
	g, kv := newTestGateway(t)
	if err := WriteSuspensionSwitch(kv, SuspensionSwitch{ReleaseIncorrectAmountBTC: true}); err != nil {
		t.Fatalf("WriteSuspensionSwitch: %v", err)
	}
	tx := newTestTx(123)
	raw := serializeTx(t, tx)
	proof := MerkleProof{Height: 0, Prefix: nil, Siblings: nil}

	_, _, err := g.ReleaseIncorrectAmountBTC(
		[]byte("alice"), raw, proof, []uint64{100_000_000}, 6, testRecipient(t), 10, time.Now(),
	)
	if _, ok := err.(*bridgeerr.SuspendedOp); !ok {
		t.Fatalf("expected SuspendedOp, got %v", err)
	}
}
