package utxoqueue

import (
	"encoding/binary"
	"testing"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/storage"
)

func u32bytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func TestQueue_NewIsEmpty(t *testing.T) {
	q := NewQueue(storage.NewMemoryKV())
	n, err := q.Len()
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty queue, got len %d", n)
	}
	v, err := q.Dequeue()
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if v != nil {
		t.Fatalf("expected nil from an empty queue, got %v", v)
	}
}

func TestQueue_EnqueueDequeue(t *testing.T) {
	kv := storage.NewMemoryKV()
	q := NewQueue(kv)

	if err := q.Enqueue(u32bytes(1000)); err != nil {
		t.Fatalf("enqueue 1000: %v", err)
	}
	if err := q.Enqueue(u32bytes(2000)); err != nil {
		t.Fatalf("enqueue 2000: %v", err)
	}

	got, err := q.Dequeue()
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if binary.BigEndian.Uint32(got) != 1000 {
		t.Fatalf("expected 1000 first, got %d", binary.BigEndian.Uint32(got))
	}

	got, err = q.Dequeue()
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if binary.BigEndian.Uint32(got) != 2000 {
		t.Fatalf("expected 2000 second, got %d", binary.BigEndian.Uint32(got))
	}

	got, err = q.Dequeue()
	if err != nil {
		t.Fatalf("dequeue on empty: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil once drained, got %v", got)
	}

	if err := q.Enqueue(u32bytes(3000)); err != nil {
		t.Fatalf("enqueue after drain: %v", err)
	}
	got, err = q.Dequeue()
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if binary.BigEndian.Uint32(got) != 3000 {
		t.Fatalf("expected 3000, got %d", binary.BigEndian.Uint32(got))
	}
}

// Mirrors queue_store.rs's test_enqueue_dequeue_circulate: front and rear
// both start at u64::MAX, so a single enqueue wraps rear to 0 and a single
// dequeue wraps front to 0.
func TestQueue_WrapsAroundAtUint64Max(t *testing.T) {
	kv := storage.NewMemoryKV()
	if err := kv.Set(keyFront, mustBE64(^uint64(0))); err != nil {
		t.Fatal(err)
	}
	if err := kv.Set(keyRear, mustBE64(^uint64(0))); err != nil {
		t.Fatal(err)
	}
	q := NewQueue(kv)

	if err := q.Enqueue(u32bytes(3000)); err != nil {
		t.Fatalf("enqueue at wraparound boundary: %v", err)
	}
	rear, err := q.readCounter(keyRear)
	if err != nil {
		t.Fatal(err)
	}
	if rear != 0 {
		t.Fatalf("expected rear to wrap to 0, got %d", rear)
	}

	got, err := q.Dequeue()
	if err != nil {
		t.Fatalf("dequeue at wraparound boundary: %v", err)
	}
	if binary.BigEndian.Uint32(got) != 3000 {
		t.Fatalf("expected 3000, got %d", binary.BigEndian.Uint32(got))
	}
	front, err := q.readCounter(keyFront)
	if err != nil {
		t.Fatal(err)
	}
	if front != 0 {
		t.Fatalf("expected front to wrap to 0, got %d", front)
	}
}

// Mirrors queue_store.rs's test_queue_limit: rear.wrapping_add(1) == front
// must reject the enqueue, whether or not the counters themselves wrapped.
func TestQueue_RejectsEnqueueWhenFull(t *testing.T) {
	cases := []struct {
		name  string
		front uint64
		rear  uint64
	}{
		{"adjacent, no wraparound", 1, 0},
		{"rear at max wraps to front 0", 0, ^uint64(0)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			kv := storage.NewMemoryKV()
			if err := kv.Set(keyFront, mustBE64(c.front)); err != nil {
				t.Fatal(err)
			}
			if err := kv.Set(keyRear, mustBE64(c.rear)); err != nil {
				t.Fatal(err)
			}
			q := NewQueue(kv)
			if err := q.Enqueue(u32bytes(3000)); err != bridgeerr.ErrQueueFull {
				t.Fatalf("expected ErrQueueFull, got %v", err)
			}
		})
	}
}

func mustBE64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func TestUTXO_MarshalUnmarshalRoundTrip(t *testing.T) {
	var u UTXO
	for i := range u.TxID {
		u.TxID[i] = byte(i)
	}
	u.Vout = 7
	for i := range u.Key {
		u.Key[i] = byte(255 - i)
	}

	raw, err := u.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(raw) != utxoEncodedLen {
		t.Fatalf("expected %d bytes, got %d", utxoEncodedLen, len(raw))
	}

	var got UTXO
	if err := got.UnmarshalBinary(raw); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if got != u {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, u)
	}
}

func TestUTXO_UnmarshalRejectsWrongLength(t *testing.T) {
	var u UTXO
	if err := u.UnmarshalBinary([]byte{1, 2, 3}); err != bridgeerr.ErrSerialization {
		t.Fatalf("expected ErrSerialization, got %v", err)
	}
}

func TestEnqueueDequeueUTXO_RoundTrip(t *testing.T) {
	kv := storage.NewMemoryKV()
	q := NewQueue(kv)

	var u UTXO
	u.TxID[0] = 0xAB
	u.Vout = 3
	u.Key[31] = 0xCD

	if err := q.EnqueueUTXO(u); err != nil {
		t.Fatalf("EnqueueUTXO: %v", err)
	}
	got, err := q.DequeueUTXO()
	if err != nil {
		t.Fatalf("DequeueUTXO: %v", err)
	}
	if got == nil || *got != u {
		t.Fatalf("expected %+v, got %+v", u, got)
	}

	empty, err := q.DequeueUTXO()
	if err != nil {
		t.Fatalf("DequeueUTXO on empty: %v", err)
	}
	if empty != nil {
		t.Fatalf("expected nil once drained, got %+v", empty)
	}
}

func TestRequestKey_DeterministicAndSensitiveToInputs(t *testing.T) {
	var u UTXO
	u.Vout = 1
	requester := []byte("secret1requesteraddress")
	prng := []byte{1, 2, 3, 4}

	k1, err := RequestKey(requester, u, prng)
	if err != nil {
		t.Fatalf("RequestKey: %v", err)
	}
	k2, err := RequestKey(requester, u, prng)
	if err != nil {
		t.Fatalf("RequestKey: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("RequestKey is not deterministic for identical inputs")
	}

	otherPrng := []byte{5, 6, 7, 8}
	k3, err := RequestKey(requester, u, otherPrng)
	if err != nil {
		t.Fatalf("RequestKey: %v", err)
	}
	if k1 == k3 {
		t.Fatalf("RequestKey should depend on the prng draw")
	}

	otherRequester := []byte("secret1someoneelse")
	k4, err := RequestKey(otherRequester, u, prng)
	if err != nil {
		t.Fatalf("RequestKey: %v", err)
	}
	if k1 == k4 {
		t.Fatalf("RequestKey should depend on the requester")
	}
}

func TestRegistry_PutTakeConsumesOnce(t *testing.T) {
	reg := NewRegistry(storage.NewMemoryKV())
	var u UTXO
	u.Vout = 9
	req := ReleaseRequest{RequestKey: [32]byte{1, 2, 3}, Value: 100000000, UTXO: u}

	if err := reg.Put(req); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := reg.Take(req.RequestKey)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if got.Value != req.Value || got.UTXO != req.UTXO {
		t.Fatalf("Take returned mismatched request: %+v", got)
	}

	if _, err := reg.Take(req.RequestKey); err != bridgeerr.ErrNoReleaseRequest {
		t.Fatalf("expected ErrNoReleaseRequest on second Take, got %v", err)
	}
}

func TestRegistry_TakeUnknownKey(t *testing.T) {
	reg := NewRegistry(storage.NewMemoryKV())
	if _, err := reg.Take([32]byte{9, 9, 9}); err != bridgeerr.ErrNoReleaseRequest {
		t.Fatalf("expected ErrNoReleaseRequest, got %v", err)
	}
}
