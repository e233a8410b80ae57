package stats

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/solsync/solsync/service/solana"
)

// lamportsPerSOL is the conversion factor between the native smallest
// unit and SOL.
var lamportsPerSOL = decimal.NewFromInt(1_000_000_000)

// WindowStats aggregates activity within a time window.
type WindowStats struct {
	Transactions int
	VolumeSOL    decimal.Decimal
	FeesSOL      decimal.Decimal
}

// Summary is the headline view over the merged dataset that the report
// command prints.
type Summary struct {
	TotalTransactions      int
	SuccessfulTransactions int
	FailedTransactions     int
	SuccessRate            float64 // percent

	TotalFeesLamports uint64
	TotalFeesSOL      decimal.Decimal

	// GrossVolumeSOL is the sum of absolute balance deltas, i.e. total
	// value moved through the tracked address regardless of direction.
	GrossVolumeLamports uint64
	GrossVolumeSOL      decimal.Decimal

	Last24h WindowStats

	ActiveDays int
	Newest     time.Time
	Oldest     time.Time
}

// Compute aggregates the merged dataset into a Summary. The records may
// be in any order; now anchors the 24h window.
func Compute(records []solana.Record, now time.Time) Summary {
	s := Summary{
		TotalFeesSOL:   decimal.Zero,
		GrossVolumeSOL: decimal.Zero,
		Last24h: WindowStats{
			VolumeSOL: decimal.Zero,
			FeesSOL:   decimal.Zero,
		},
	}
	if len(records) == 0 {
		return s
	}

	windowStart := now.Add(-24 * time.Hour)
	days := make(map[string]struct{})

	var totalFees, totalVolume uint64
	var windowFees, windowVolume uint64

	for _, rec := range records {
		s.TotalTransactions++
		if rec.Success {
			s.SuccessfulTransactions++
		} else {
			s.FailedTransactions++
		}

		volume := absDelta(rec.BalanceDelta)
		totalFees += rec.Fee
		totalVolume += volume
		days[rec.Date()] = struct{}{}

		if rec.Timestamp.After(windowStart) {
			s.Last24h.Transactions++
			windowFees += rec.Fee
			windowVolume += volume
		}

		if s.Newest.IsZero() || rec.Timestamp.After(s.Newest) {
			s.Newest = rec.Timestamp
		}
		if s.Oldest.IsZero() || rec.Timestamp.Before(s.Oldest) {
			s.Oldest = rec.Timestamp
		}
	}

	s.SuccessRate = 100 * float64(s.SuccessfulTransactions) / float64(s.TotalTransactions)
	s.TotalFeesLamports = totalFees
	s.GrossVolumeLamports = totalVolume
	s.TotalFeesSOL = lamportsToSOL(totalFees)
	s.GrossVolumeSOL = lamportsToSOL(totalVolume)
	s.Last24h.FeesSOL = lamportsToSOL(windowFees)
	s.Last24h.VolumeSOL = lamportsToSOL(windowVolume)
	s.ActiveDays = len(days)

	return s
}

func absDelta(delta int64) uint64 {
	if delta < 0 {
		return uint64(-delta)
	}
	return uint64(delta)
}

func lamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Div(lamportsPerSOL)
}
