package gateway

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/prng"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/storage"
)

// ViewingKey is an opaque per-user credential gating the viewing-key-gated
// MintAddress query (spec §6), in the style of SNIP-20's viewing keys: it
// is PRNG-derived, stored only as its hash, and compared in constant time.
type ViewingKey [32]byte

// NewViewingKey draws a fresh key from rng.
func NewViewingKey(rng *prng.Rng) ViewingKey {
	return ViewingKey(rng.Bytes32())
}

// Hash returns the value actually persisted, so a leaked storage snapshot
// never discloses the key itself.
func (k ViewingKey) Hash() [32]byte {
	return sha256.Sum256(k[:])
}

// String renders the key for delivery to the user (it is handed back to
// them exactly once, at creation).
func (k ViewingKey) String() string {
	return hex.EncodeToString(k[:])
}

func viewingKeyHashKey(canonicalUser []byte) []byte {
	key := make([]byte, 0, len(canonicalUser)+len("viewing_key/"))
	key = append(key, []byte("viewing_key/")...)
	key = append(key, canonicalUser...)
	return key
}

// WriteViewingKeyHash stores the hash of a user's current viewing key.
func WriteViewingKeyHash(kv storage.KV, canonicalUser []byte, hash [32]byte) error {
	return kv.Set(viewingKeyHashKey(canonicalUser), hash[:])
}

// CheckViewingKey reports whether key is the user's current viewing key,
// comparing hashes in constant time. Returns bridgeerr.ErrNotInitialized if
// the user has never set one.
func CheckViewingKey(kv storage.KV, canonicalUser []byte, key ViewingKey) (bool, error) {
	stored, err := kv.Get(viewingKeyHashKey(canonicalUser))
	if err != nil {
		return false, err
	}
	if stored == nil {
		return false, bridgeerr.ErrNotInitialized
	}
	hash := key.Hash()
	return subtle.ConstantTimeCompare(stored, hash[:]) == 1, nil
}
