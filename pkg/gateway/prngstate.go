package gateway

import (
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/prng"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/storage"
)

var keyPRNGSeed = []byte("prng_seed")

// InitPRNG seeds the gateway's PRNG chain at instantiation time (spec
// §4.7): every later operation advances this same chain, so draws from
// different transactions never repeat.
func InitPRNG(kv storage.KV, blockHeight, blockTime uint64, sender, entropy []byte) error {
	seed := prng.InitialSeed(blockHeight, blockTime, sender, entropy)
	return kv.Set(keyPRNGSeed, seed[:])
}

// advancePRNG folds sender and entropy into the chain's current seed and
// returns a stream drawn from the new seed, following
// original_source/contracts/libs/shared_types/src/prng.rs's update_prng:
// every user-facing operation that needs unpredictable bytes consumes
// exactly one step of the chain.
func advancePRNG(kv storage.KV, sender, entropy []byte) (*prng.Rng, error) {
	raw, err := kv.Get(keyPRNGSeed)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, bridgeerr.ErrNotInitialized
	}
	var seed prng.Seed
	copy(seed[:], raw)
	next := prng.NextSeed(seed, sender, entropy)
	if err := kv.Set(keyPRNGSeed, next[:]); err != nil {
		return nil, err
	}
	return prng.NewRng(next), nil
}
