package solana

import (
	"time"
)

// DateLayout is the calendar-date format used for dataset partitioning
// and checkpoint bookkeeping.
const DateLayout = "2006-01-02"

// Record is the canonical, fixed-shape view of one on-chain transaction
// for the tracked token address. This is our domain model, independent
// of the RPC response format.
//
// Signature is the natural key: the dataset never contains two records
// with the same signature after a merge.
type Record struct {
	Timestamp    time.Time
	Signature    string
	Slot         uint64
	Success      bool
	Fee          uint64
	BalanceDelta int64
}

// Date returns the UTC calendar date the record belongs to, which is the
// partitioning key for the dataset store.
func (r Record) Date() string {
	return r.Timestamp.UTC().Format(DateLayout)
}
