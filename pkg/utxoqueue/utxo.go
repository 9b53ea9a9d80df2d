package utxoqueue

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/storage"
)

// UTXO is a reserved Bitcoin output the gateway controls: the outpoint it
// was received on, and the secp256k1 private key that can spend it (spec
// §3, "UTXO (C5)").
type UTXO struct {
	TxID [32]byte
	Vout uint32
	Key  [32]byte
}

// utxoEncodedLen is the fixed wire size of UTXO.MarshalBinary: 32-byte
// txid, 4-byte big-endian vout, 32-byte key.
const utxoEncodedLen = 32 + 4 + 32

// MarshalBinary encodes a UTXO to a fixed-length deterministic layout. This
// stands in for the original contract's bincode serialization: Go has no
// bincode equivalent in the pack or the wider ecosystem, so deposits are
// queued with a hand-rolled binary.BigEndian layout instead.
func (u UTXO) MarshalBinary() ([]byte, error) {
	out := make([]byte, utxoEncodedLen)
	copy(out[:32], u.TxID[:])
	binary.BigEndian.PutUint32(out[32:36], u.Vout)
	copy(out[36:68], u.Key[:])
	return out, nil
}

// UnmarshalBinary decodes a UTXO encoded by MarshalBinary.
func (u *UTXO) UnmarshalBinary(raw []byte) error {
	if len(raw) != utxoEncodedLen {
		return bridgeerr.ErrSerialization
	}
	copy(u.TxID[:], raw[:32])
	u.Vout = binary.BigEndian.Uint32(raw[32:36])
	copy(u.Key[:], raw[36:68])
	return nil
}

// EnqueueUTXO appends a UTXO to the circular queue, encoding it with
// MarshalBinary first.
func (q *Queue) EnqueueUTXO(u UTXO) error {
	raw, err := u.MarshalBinary()
	if err != nil {
		return err
	}
	return q.Enqueue(raw)
}

// DequeueUTXO pops a UTXO from the circular queue, decoding it with
// UnmarshalBinary. Returns (nil, nil) when the queue is empty.
func (q *Queue) DequeueUTXO() (*UTXO, error) {
	raw, err := q.Dequeue()
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var u UTXO
	if err := u.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return &u, nil
}

// ReleaseRequest is the sole public handle a release claimant holds on a
// reserved UTXO: its value bucket and the UTXO itself, addressable only by
// the unpredictable RequestKey (spec §3, "Release request (C5)").
type ReleaseRequest struct {
	RequestKey [32]byte
	Value      uint64
	UTXO       UTXO
}

// RequestKey derives the unpredictable public handle for a release request:
//
//	SHA256(canonicalRequester || utxo.MarshalBinary() || prngBytes)
//
// prngBytes must come from the caller's per-transaction PRNG draw (spec
// §4.7) so the key reveals neither the UTXO nor the draw that produced it.
func RequestKey(canonicalRequester []byte, u UTXO, prngBytes []byte) ([32]byte, error) {
	encoded, err := u.MarshalBinary()
	if err != nil {
		return [32]byte{}, err
	}
	input := make([]byte, 0, len(canonicalRequester)+len(encoded)+len(prngBytes))
	input = append(input, canonicalRequester...)
	input = append(input, encoded...)
	input = append(input, prngBytes...)
	return sha256.Sum256(input), nil
}

// Registry stores ReleaseRequests by RequestKey, backed by a namespaced KV
// (e.g. storage.Prefixed(kv, "release_request/")).
type Registry struct {
	kv storage.KV
}

// NewRegistry opens a release-request registry backed by kv.
func NewRegistry(kv storage.KV) *Registry {
	return &Registry{kv: kv}
}

func encodeReleaseRequest(r ReleaseRequest) ([]byte, error) {
	utxoBytes, err := r.UTXO.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(utxoBytes))
	binary.BigEndian.PutUint64(out[:8], r.Value)
	copy(out[8:], utxoBytes)
	return out, nil
}

func decodeReleaseRequest(key [32]byte, raw []byte) (*ReleaseRequest, error) {
	if len(raw) != 8+utxoEncodedLen {
		return nil, bridgeerr.ErrSerialization
	}
	var u UTXO
	if err := u.UnmarshalBinary(raw[8:]); err != nil {
		return nil, err
	}
	return &ReleaseRequest{
		RequestKey: key,
		Value:      binary.BigEndian.Uint64(raw[:8]),
		UTXO:       u,
	}, nil
}

// Put records a new release request, keyed by its RequestKey. Overwrites
// any existing entry at the same key (RequestKeys are derived from a fresh
// PRNG draw each time, so collisions are not expected in practice).
func (r *Registry) Put(req ReleaseRequest) error {
	raw, err := encodeReleaseRequest(req)
	if err != nil {
		return err
	}
	return r.kv.Set(req.RequestKey[:], raw)
}

// Take looks up and removes the release request at key, consuming it
// exactly once (spec §3, "Ownership & lifecycle"). Returns
// bridgeerr.ErrNoReleaseRequest if key is unknown.
func (r *Registry) Take(key [32]byte) (*ReleaseRequest, error) {
	raw, err := r.kv.Get(key[:])
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, bridgeerr.ErrNoReleaseRequest
	}
	req, err := decodeReleaseRequest(key, raw)
	if err != nil {
		return nil, err
	}
	if err := r.kv.Delete(key[:]); err != nil {
		return nil, err
	}
	return req, nil
}
