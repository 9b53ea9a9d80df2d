package gateway

import (
	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/storage"
)

func mintKeyKey(canonicalUser []byte) []byte {
	key := make([]byte, 0, len(canonicalUser)+len("mint_key/"))
	key = append(key, []byte("mint_key/")...)
	key = append(key, canonicalUser...)
	return key
}

// writeMintKey stores the secp256k1 private key issued to a user's pending
// deposit address, keyed by the user's canonical address.
func writeMintKey(kv storage.KV, canonicalUser []byte, key *btcec.PrivateKey) error {
	return kv.Set(mintKeyKey(canonicalUser), key.Serialize())
}

// readMintKey loads and decodes the key a user was issued, or (nil, nil)
// if they have none pending.
func readMintKey(kv storage.KV, canonicalUser []byte) (*btcec.PrivateKey, error) {
	raw, err := kv.Get(mintKeyKey(canonicalUser))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return btcec.PrivKeyFromBytes(raw), nil
}

// removeMintKey deletes a user's pending mint key once it has been
// consumed by a verified deposit (or a release-incorrect-amount).
func removeMintKey(kv storage.KV, canonicalUser []byte) error {
	return kv.Delete(mintKeyKey(canonicalUser))
}
