// Package storage defines the key-value abstraction the bridge's stateful
// components are built on, and a handful of concrete backends. The
// interface follows the teacher's ledger.KV convention: a missing key is
// reported as (nil, nil), not a sentinel error.
package storage

// KV is the minimal persistent key-value contract every stateful component
// in this module is written against. A missing key returns (nil, nil).
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
}

// Prefixed returns a KV that transparently namespaces every key under
// prefix, so independent components can safely share one backing store
// (spec components each own a distinct key space: "spv/", "light_client_db/",
// "utxo_queue/", and so on).
func Prefixed(kv KV, prefix string) KV {
	return &prefixedKV{kv: kv, prefix: []byte(prefix)}
}

type prefixedKV struct {
	kv     KV
	prefix []byte
}

func (p *prefixedKV) fullKey(key []byte) []byte {
	full := make([]byte, 0, len(p.prefix)+len(key))
	full = append(full, p.prefix...)
	full = append(full, key...)
	return full
}

func (p *prefixedKV) Get(key []byte) ([]byte, error) {
	return p.kv.Get(p.fullKey(key))
}

func (p *prefixedKV) Set(key, value []byte) error {
	return p.kv.Set(p.fullKey(key), value)
}

func (p *prefixedKV) Delete(key []byte) error {
	return p.kv.Delete(p.fullKey(key))
}
