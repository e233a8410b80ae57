package nats

import (
	"time"

	"github.com/solsync/solsync/service/solana"
)

// RecordEvent is a newly synchronized transaction record published to
// NATS. Events go to the subject "txns.{token_address}" in JetStream.
type RecordEvent struct {
	Signature    string    `json:"signature"`
	Slot         uint64    `json:"slot"`
	TokenAddress string    `json:"token_address"`
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	Fee          uint64    `json:"fee"`
	BalanceDelta int64     `json:"balance_delta"`
	PublishedAt  time.Time `json:"published_at"`
}

// FromRecord converts a dataset record to a RecordEvent for publishing.
func FromRecord(tokenAddress string, rec solana.Record) *RecordEvent {
	return &RecordEvent{
		Signature:    rec.Signature,
		Slot:         rec.Slot,
		TokenAddress: tokenAddress,
		Timestamp:    rec.Timestamp,
		Success:      rec.Success,
		Fee:          rec.Fee,
		BalanceDelta: rec.BalanceDelta,
		PublishedAt:  time.Now().UTC(),
	}
}
