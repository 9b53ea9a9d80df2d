// Package utxoqueue implements the per-value circular UTXO queue and the
// release-request registry of spec §4.5, grounded directly on
// original_source/contracts/gateway/src/state/queue_store.rs's front/rear
// wraparound counters.
package utxoqueue

import (
	"encoding/binary"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/storage"
)

var (
	keyFront = []byte("front")
	keyRear  = []byte("rear")
)

// Queue is a circular FIFO of UTXOs accepted at one deposit value, keyed by
// a wrapping uint64 sequence number. Capacity is 2^64-1: enqueue fails when
// rear+1 wraps around to front, dequeue reports an empty queue rather than
// an error.
type Queue struct {
	kv storage.KV
}

// NewQueue opens a circular queue backed by kv. The caller is expected to
// have already namespaced kv per accepted deposit value (e.g.
// storage.Prefixed(kv, "utxo_queue/100000000/")), so distinct values never
// share a front/rear pair.
func NewQueue(kv storage.KV) *Queue {
	return &Queue{kv: kv}
}

func (q *Queue) readCounter(key []byte) (uint64, error) {
	raw, err := q.kv.Get(key)
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, nil
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (q *Queue) writeCounter(key []byte, n uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return q.kv.Set(key, buf)
}

func slotKey(index uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, index)
	return buf
}

// Enqueue appends value at rear and advances it, failing with
// bridgeerr.ErrQueueFull once rear+1 wraps around to front.
func (q *Queue) Enqueue(value []byte) error {
	front, err := q.readCounter(keyFront)
	if err != nil {
		return err
	}
	rear, err := q.readCounter(keyRear)
	if err != nil {
		return err
	}
	if rear+1 == front {
		return bridgeerr.ErrQueueFull
	}
	if err := q.kv.Set(slotKey(rear), value); err != nil {
		return err
	}
	return q.writeCounter(keyRear, rear+1)
}

// Dequeue pops the value at front and advances it, returning (nil, nil)
// when the queue is empty.
func (q *Queue) Dequeue() ([]byte, error) {
	front, err := q.readCounter(keyFront)
	if err != nil {
		return nil, err
	}
	rear, err := q.readCounter(keyRear)
	if err != nil {
		return nil, err
	}
	if front == rear {
		return nil, nil
	}
	value, err := q.kv.Get(slotKey(front))
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, bridgeerr.ErrNoUtxo
	}
	if err := q.kv.Delete(slotKey(front)); err != nil {
		return nil, err
	}
	if err := q.writeCounter(keyFront, front+1); err != nil {
		return nil, err
	}
	return value, nil
}

// Len reports how many entries are currently queued, following rear-front
// under wraparound arithmetic.
func (q *Queue) Len() (uint64, error) {
	front, err := q.readCounter(keyFront)
	if err != nil {
		return 0, err
	}
	rear, err := q.readCounter(keyRear)
	if err != nil {
		return 0, err
	}
	return rear - front, nil
}
