package gateway

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/prng"
)

// randomPrivateKey draws secp256k1 private keys from rng until one falls
// in the valid scalar range [1, N-1], mirroring secp256k1::SecretKey::random's
// rejection sampling (handle.rs's `SecretKey::random(&mut rng)`).
func randomPrivateKey(rng *prng.Rng) *btcec.PrivateKey {
	order := btcec.S256().N
	for {
		draw := rng.Bytes32()
		if isValidScalar(draw[:], order) {
			return btcec.PrivKeyFromBytes(draw[:])
		}
	}
}

func isValidScalar(b []byte, order *big.Int) bool {
	v := new(big.Int).SetBytes(b)
	return v.Sign() != 0 && v.Cmp(order) < 0
}
