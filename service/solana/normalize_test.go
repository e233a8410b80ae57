package solana

import (
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockTime(t time.Time) *solanago.UnixTimeSeconds {
	ts := solanago.UnixTimeSeconds(t.Unix())
	return &ts
}

func TestNormalize_BalanceDelta(t *testing.T) {
	when := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	sig := &rpc.TransactionSignature{Signature: testSignature(1), Slot: 4200}
	result := &rpc.GetTransactionResult{
		Slot:      4200,
		BlockTime: blockTime(when),
		Meta: &rpc.TransactionMeta{
			Fee:          5000,
			PreBalances:  []uint64{1_000_000, 500_000, 10},
			PostBalances: []uint64{900_000, 595_000, 10},
		},
	}

	rec, reason := Normalize(sig, result)

	require.NotNil(t, rec)
	assert.Empty(t, string(reason))
	assert.Equal(t, testSignature(1).String(), rec.Signature)
	assert.Equal(t, uint64(4200), rec.Slot)
	assert.Equal(t, when, rec.Timestamp)
	assert.Equal(t, uint64(5000), rec.Fee)
	assert.True(t, rec.Success)
	// (1000000-900000) + (500000-595000) + 0 = 5000
	assert.Equal(t, int64(5000), rec.BalanceDelta)
}

func TestNormalize_NegativeDelta(t *testing.T) {
	sig := &rpc.TransactionSignature{Signature: testSignature(2), Slot: 1}
	result := &rpc.GetTransactionResult{
		Slot:      1,
		BlockTime: blockTime(time.Now()),
		Meta: &rpc.TransactionMeta{
			PreBalances:  []uint64{100},
			PostBalances: []uint64{250},
		},
	}

	rec, _ := Normalize(sig, result)

	require.NotNil(t, rec)
	assert.Equal(t, int64(-150), rec.BalanceDelta)
}

func TestNormalize_FailedTransaction(t *testing.T) {
	sig := &rpc.TransactionSignature{Signature: testSignature(3), Slot: 7}
	result := &rpc.GetTransactionResult{
		Slot:      7,
		BlockTime: blockTime(time.Now()),
		Meta: &rpc.TransactionMeta{
			Err:          map[string]any{"InstructionError": []any{0, "Custom"}},
			Fee:          5000,
			PreBalances:  []uint64{100},
			PostBalances: []uint64{95},
		},
	}

	rec, reason := Normalize(sig, result)

	require.NotNil(t, rec)
	assert.Empty(t, string(reason))
	// Failed transactions are kept; the fee was still paid.
	assert.False(t, rec.Success)
	assert.Equal(t, uint64(5000), rec.Fee)
}

func TestNormalize_Drops(t *testing.T) {
	when := blockTime(time.Now())
	sig := &rpc.TransactionSignature{Signature: testSignature(4), Slot: 9, BlockTime: when}

	tests := []struct {
		name   string
		result *rpc.GetTransactionResult
		want   DropReason
	}{
		{
			name:   "nil result",
			result: nil,
			want:   DropMissingMeta,
		},
		{
			name:   "nil meta",
			result: &rpc.GetTransactionResult{Slot: 9, BlockTime: when},
			want:   DropMissingMeta,
		},
		{
			name: "empty balances",
			result: &rpc.GetTransactionResult{
				Slot:      9,
				BlockTime: when,
				Meta:      &rpc.TransactionMeta{},
			},
			want: DropBalanceMismatch,
		},
		{
			name: "mismatched balances",
			result: &rpc.GetTransactionResult{
				Slot:      9,
				BlockTime: when,
				Meta: &rpc.TransactionMeta{
					PreBalances:  []uint64{1, 2, 3},
					PostBalances: []uint64{1, 2},
				},
			},
			want: DropBalanceMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, reason := Normalize(sig, tt.result)
			assert.Nil(t, rec)
			assert.Equal(t, tt.want, reason)
		})
	}
}

func TestNormalize_MissingBlockTime(t *testing.T) {
	sig := &rpc.TransactionSignature{Signature: testSignature(5), Slot: 9}
	result := &rpc.GetTransactionResult{
		Slot: 9,
		Meta: &rpc.TransactionMeta{
			PreBalances:  []uint64{1},
			PostBalances: []uint64{1},
		},
	}

	rec, reason := Normalize(sig, result)

	assert.Nil(t, rec)
	assert.Equal(t, DropMissingBlockTime, reason)
}

func TestNormalize_BlockTimeFallsBackToSignature(t *testing.T) {
	when := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	sig := &rpc.TransactionSignature{Signature: testSignature(6), Slot: 11, BlockTime: blockTime(when)}
	result := &rpc.GetTransactionResult{
		Slot: 11,
		Meta: &rpc.TransactionMeta{
			PreBalances:  []uint64{1},
			PostBalances: []uint64{1},
		},
	}

	rec, reason := Normalize(sig, result)

	require.NotNil(t, rec)
	assert.Empty(t, string(reason))
	assert.Equal(t, when, rec.Timestamp)
}
