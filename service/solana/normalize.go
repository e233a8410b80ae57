package solana

import (
	"github.com/gagliardetto/solana-go/rpc"
)

// DropReason explains why a transaction could not be normalized into a
// Record. Exposed so callers can log and count drops by cause.
type DropReason string

const (
	DropMissingMeta      DropReason = "missing_meta"
	DropMissingBlockTime DropReason = "missing_block_time"
	DropBalanceMismatch  DropReason = "balance_mismatch"
)

// Normalize converts a signature descriptor plus its full transaction
// result into a canonical Record.
//
// The balance delta is the sum over the equal-length pre/post lamport
// balance arrays of (pre[i] - post[i]). Success is the absence of an
// error object in the transaction meta.
//
// Transactions that cannot be represented (no meta, no block time, or
// absent/mismatched balance arrays) yield a nil Record and a DropReason;
// the caller drops them, logs a warning, and keeps going. Normalization
// never fails the sync.
func Normalize(sig *rpc.TransactionSignature, result *rpc.GetTransactionResult) (*Record, DropReason) {
	if result == nil || result.Meta == nil {
		return nil, DropMissingMeta
	}
	meta := result.Meta

	blockTime := sig.BlockTime
	if result.BlockTime != nil {
		blockTime = result.BlockTime
	}
	if blockTime == nil {
		return nil, DropMissingBlockTime
	}

	pre := meta.PreBalances
	post := meta.PostBalances
	if len(pre) == 0 || len(pre) != len(post) {
		return nil, DropBalanceMismatch
	}

	var delta int64
	for i := range pre {
		delta += int64(pre[i]) - int64(post[i])
	}

	slot := result.Slot
	if slot == 0 {
		slot = sig.Slot
	}

	return &Record{
		Timestamp:    blockTime.Time().UTC(),
		Signature:    sig.Signature.String(),
		Slot:         slot,
		Success:      meta.Err == nil,
		Fee:          meta.Fee,
		BalanceDelta: delta,
	}, ""
}
