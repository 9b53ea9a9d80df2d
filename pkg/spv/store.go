package spv

import (
	"math/big"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/wire"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
)

func addBig(a, b *big.Int) *big.Int {
	return new(big.Int).Add(a, b)
}

// StoreHeaders extends or reorganizes the chain with a contiguous run of
// headers whose last header becomes the new tip at tipHeight. It
// implements the original header-chain library's store_headers algorithm
// (original_source/contracts/libs/bitcoin_header_chain/src/header_chain.rs),
// including the untrusted-suffix reorg bound (spec §3.4): headers may only
// replace the most recent UntrustedLength blocks, and only if they carry at
// least as much cumulative work as what they replace.
func (c *ChainDB) StoreHeaders(tipHeight uint32, headers []wire.BlockHeader, now time.Time) error {
	if len(headers) == 0 {
		return bridgeerr.ErrNoHeaders
	}
	currentTip, err := c.TipHeight()
	if err != nil {
		return err
	}
	if tipHeight < currentTip {
		return bridgeerr.ErrInvalidTipHeight
	}
	if uint64(tipHeight)-uint64(currentTip) > uint64(len(headers)) {
		return bridgeerr.ErrInvalidTipHeight
	}

	replaceLength := int64(len(headers)) - (int64(tipHeight) - int64(currentTip))
	if replaceLength > UntrustedLength {
		return bridgeerr.ErrReplaceTrustedHeaderNotAllowed
	}
	if replaceLength < 0 {
		replaceLength = 0
	}

	startHeight := currentTip - uint32(replaceLength) + 1

	// Establish the work already accumulated up to startHeight-1, reusing
	// stored work for any header byte-identical to what is already on
	// disk (an extension, not a reorg, over that portion).
	prevStored, err := c.GetHeader(startHeight - 1)
	if err != nil {
		return err
	}
	if prevStored == nil {
		return bridgeerr.ErrUnconnectedHeader
	}

	currentTipStored, err := c.GetHeader(currentTip)
	if err != nil {
		return err
	}
	if currentTipStored == nil {
		return bridgeerr.ErrUnconnectedHeader
	}

	running := prevStored
	height := startHeight

	stored := make([]*StoredBlockHeader, 0, len(headers))
	for _, header := range headers {
		header := header
		existing, err := c.GetHeader(height)
		if err != nil {
			return err
		}
		if existing != nil && existing.Header.BlockHash() == header.BlockHash() {
			running = existing
			stored = append(stored, existing)
			height++
			continue
		}

		if header.PrevBlock != running.Header.BlockHash() {
			return bridgeerr.ErrUnconnectedHeader
		}

		required, err := c.requiredTarget(height, running, &header)
		if err != nil {
			return err
		}
		if blockchain.CompactToBig(header.Bits).Cmp(required) != 0 {
			return bridgeerr.ErrInvalidTarget
		}
		if err := validateWork(&header); err != nil {
			return err
		}

		mtp, err := c.medianTimePastAt(running, height)
		if err != nil {
			return err
		}
		if !mtp.IsZero() && header.Timestamp.Before(mtp) {
			return bridgeerr.ErrMedianPastTime
		}
		if err := checkMaxFutureTime(header.Timestamp, now); err != nil {
			return err
		}

		work := headerWork(&header)
		newSbh := &StoredBlockHeader{Header: header, Work: addBig(running.Work, work)}
		stored = append(stored, newSbh)
		running = newSbh
		height++
	}

	if running.Work.Cmp(currentTipStored.Work) < 0 {
		return bridgeerr.ErrNotEnoughWork
	}

	writeHeight := startHeight
	for _, sbh := range stored {
		if err := c.putHeader(writeHeight, sbh); err != nil {
			return err
		}
		writeHeight++
	}
	return c.setTip(tipHeight)
}

// medianTimePastAt computes MTP using an in-flight running header for the
// block immediately preceding height, falling back to the persisted chain
// for everything older, so a batch of new headers sees correct MTP before
// any of them are durably written.
func (c *ChainDB) medianTimePastAt(prev *StoredBlockHeader, height uint32) (time.Time, error) {
	const window = 11
	times := make([]time.Time, 0, window)
	times = append(times, prev.Header.Timestamp)
	for i := uint32(1); i < window && i < height; i++ {
		sbh, err := c.GetHeader(height - 1 - i)
		if err != nil {
			return time.Time{}, err
		}
		if sbh == nil {
			break
		}
		times = append(times, sbh.Header.Timestamp)
	}
	sortTimes(times)
	return times[len(times)/2], nil
}
