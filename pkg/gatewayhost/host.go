// Package gatewayhost is the thin host-runtime façade around pkg/gateway:
// over a storage backend the caller has already opened, it wires the SPV
// chain and light client the gateway depends on, and exposes HTTP handlers
// for the gateway's user-facing operations. Loading configuration and
// opening storage are left to the caller (see cmd/gatewaydemo).
package gatewayhost

import (
	"log"
	"os"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/gateway"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/lightclient"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/spv"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/storage"
)

// Host owns the storage backend and the three verification-core
// components (SPV chain, light client, gateway) that operate over it.
type Host struct {
	KV        storage.KV
	Chain     *spv.ChainDB
	HashChain *lightclient.HashChain
	Gateway   *gateway.Gateway
	logger    *log.Logger
}

// Open wires a Host over kv for the given Bitcoin network, namespacing
// each component's storage: a "chain/" prefix for the SPV header chain
// and a "light_client_db/"
// prefix for the light client's hash chain, leaving the rest of kv to the
// gateway itself.
func Open(kv storage.KV, network spv.Network) *Host {
	chain := spv.NewChainDB(storage.Prefixed(kv, "chain/"), network)
	hashChain := lightclient.NewHashChain(storage.Prefixed(kv, "light_client_db/"))
	logger := log.New(os.Stderr, "[gatewayhost] ", log.LstdFlags)
	return &Host{
		KV:        kv,
		Chain:     chain,
		HashChain: hashChain,
		Gateway:   gateway.New(kv, chain, hashChain, network),
		logger:    logger,
	}
}

// PadResponse right-pads raw with zero bytes up to the next multiple of
// blockSize (spec §9 "Wire formats"), so responses whose lengths fall in
// the same block come out the same size. raw is returned unchanged when
// its length is already a multiple or blockSize is not positive.
func PadResponse(raw []byte, blockSize int) []byte {
	if blockSize <= 0 || len(raw)%blockSize == 0 {
		return raw
	}
	out := make([]byte, (len(raw)/blockSize+1)*blockSize)
	copy(out, raw)
	return out
}
