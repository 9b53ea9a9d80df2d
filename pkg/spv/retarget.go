package spv

import (
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/wire"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
)

// requiredTarget computes the proof-of-work target the header at height must
// satisfy, following the per-network rules in the original header-chain
// library (original_source/contracts/libs/bitcoin_header_chain/src/header_chain.rs).
func (c *ChainDB) requiredTarget(height uint32, prev *StoredBlockHeader, header *wire.BlockHeader) (*big.Int, error) {
	// Retarget-boundary recomputation takes precedence over any
	// network-specific exception, testnet's 20-minute rule included
	// (header_chain.rs:247's condition is checked before its testnet
	// branches).
	if height%RetargetInterval == 0 && c.network != Regtest {
		return c.requiredTargetBoundary(height, prev)
	}
	if c.network == Testnet {
		return c.requiredTargetTestnet(height, prev, header)
	}
	return blockchain.CompactToBig(prev.Header.Bits), nil
}

func (c *ChainDB) requiredTargetBoundary(height uint32, prev *StoredBlockHeader) (*big.Int, error) {
	firstHeight := height - RetargetInterval
	first, err := c.GetHeader(firstHeight)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, bridgeerr.ErrUnconnectedHeader
	}

	actualTimespan := prev.Header.Timestamp.Unix() - first.Header.Timestamp.Unix()
	minSpan := int64(DiffchangeTimespan.Seconds()) / 4
	maxSpan := int64(DiffchangeTimespan.Seconds()) * 4
	if actualTimespan < minSpan {
		actualTimespan = minSpan
	}
	if actualTimespan > maxSpan {
		actualTimespan = maxSpan
	}

	prevTarget := blockchain.CompactToBig(prev.Header.Bits)
	newTarget := new(big.Int).Mul(prevTarget, big.NewInt(actualTimespan))
	newTarget.Div(newTarget, big.NewInt(int64(DiffchangeTimespan.Seconds())))
	if newTarget.Cmp(MaxTarget()) > 0 {
		newTarget = MaxTarget()
	}
	return satoshiThePrecision(newTarget), nil
}

func (c *ChainDB) requiredTargetTestnet(height uint32, prev *StoredBlockHeader, header *wire.BlockHeader) (*big.Int, error) {
	if header.Timestamp.Unix() > prev.Header.Timestamp.Unix()+int64(TestnetRuleTime.Seconds()) {
		return MaxTarget(), nil
	}
	// Scan backward through the retarget window for the last block that
	// did not use the maximum-target exception.
	cursor := prev
	cursorHeight := height - 1
	maxTarget := MaxTarget()
	for cursorHeight%RetargetInterval != 0 && blockchain.CompactToBig(cursor.Header.Bits).Cmp(maxTarget) == 0 {
		h, err := c.GetHeader(cursorHeight - 1)
		if err != nil {
			return nil, err
		}
		if h == nil {
			break
		}
		cursor = h
		cursorHeight--
	}
	return blockchain.CompactToBig(cursor.Header.Bits), nil
}

// satoshiThePrecision reproduces Bitcoin Core's target rounding quirk,
// matching the original header-chain library's implementation bit for bit:
// the target is expressed in the compact "bits" representation and then
// expanded back, which silently loses precision in a specific way that
// every implementation must reproduce to agree on valid headers.
func satoshiThePrecision(n *big.Int) *big.Int {
	bitLen := n.BitLen()
	bytesLen := (bitLen + 7) / 8
	if bytesLen < 3 {
		return new(big.Int).Set(n)
	}
	shift := uint((bytesLen - 3) * 8)
	ret := new(big.Int).Rsh(n, shift)
	// Bit 23 set means the compact encoding would read as negative;
	// Bitcoin Core masks the low byte off in that case before re-expanding.
	if ret.Bit(23) == 1 {
		ret.Rsh(ret, 8)
		ret.Lsh(ret, 8)
	}
	return ret.Lsh(ret, shift)
}
