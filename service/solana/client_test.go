package solana

import (
	"context"
	"errors"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failThenSucceed returns n mock endpoints that always fail followed by
// one that succeeds, plus per-endpoint call counters.
func failThenSucceed(n int, result []*rpc.TransactionSignature) ([]RPCClient, []string, []*int) {
	clients := make([]RPCClient, 0, n+1)
	urls := make([]string, 0, n+1)
	counters := make([]*int, 0, n+1)

	for i := 0; i < n; i++ {
		count := new(int)
		counters = append(counters, count)
		clients = append(clients, &mockRPCClient{
			getSignatures: func(ctx context.Context, address solanago.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
				*count++
				return nil, errors.New("connection refused")
			},
		})
		urls = append(urls, "http://dead")
	}

	count := new(int)
	counters = append(counters, count)
	clients = append(clients, &mockRPCClient{
		getSignatures: func(ctx context.Context, address solanago.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
			*count++
			return result, nil
		},
	})
	urls = append(urls, "http://alive")

	return clients, urls, counters
}

func TestFailoverClient_AdvancesPastFailingEndpoints(t *testing.T) {
	ctx := context.Background()

	want := []*rpc.TransactionSignature{{Signature: testSignature(1), Slot: 100}}
	clients, urls, counters := failThenSucceed(2, want)
	rotator := NewEndpointRotatorWithClients(clients, urls)

	var sleeps []time.Duration
	client := NewFailoverClient(rotator, FailoverOptions{MaxRetries: 3, BaseDelay: 2 * time.Second}, nil, testLogger())
	client.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	got, err := client.GetSignaturesForAddress(ctx, testWallet(), nil)

	require.NoError(t, err)
	assert.Equal(t, want, got)

	// A single logical call: each dead endpoint probed once, then the
	// live one answered. Failover must not consume retry rounds.
	assert.Equal(t, 1, *counters[0])
	assert.Equal(t, 1, *counters[1])
	assert.Equal(t, 1, *counters[2])
	assert.Empty(t, sleeps)

	// The index is sticky on the endpoint that worked.
	assert.Equal(t, 2, rotator.Index())
}

func TestFailoverClient_StickyIndexAcrossCalls(t *testing.T) {
	ctx := context.Background()

	clients, urls, counters := failThenSucceed(1, nil)
	rotator := NewEndpointRotatorWithClients(clients, urls)
	client := NewFailoverClient(rotator, FailoverOptions{}, nil, testLogger())
	client.sleep = func(time.Duration) {}

	_, err := client.GetSignaturesForAddress(ctx, testWallet(), nil)
	require.NoError(t, err)
	_, err = client.GetSignaturesForAddress(ctx, testWallet(), nil)
	require.NoError(t, err)

	// The dead endpoint was probed only by the first call.
	assert.Equal(t, 1, *counters[0])
	assert.Equal(t, 2, *counters[1])
}

func TestFailoverClient_ExhaustedRetries(t *testing.T) {
	ctx := context.Background()

	calls := 0
	dead := &mockRPCClient{
		getSignatures: func(ctx context.Context, address solanago.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
			calls++
			return nil, errors.New("connection refused")
		},
	}
	rotator := NewEndpointRotatorWithClients([]RPCClient{dead, dead}, []string{"http://a", "http://b"})

	var sleeps []time.Duration
	client := NewFailoverClient(rotator, FailoverOptions{MaxRetries: 3, BaseDelay: 2 * time.Second}, nil, testLogger())
	client.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	got, err := client.GetSignaturesForAddress(ctx, testWallet(), nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Nil(t, got)

	// Initial pass plus 3 retry rounds over 2 endpoints.
	assert.Equal(t, 8, calls)

	// Backoff is bounded and statically known: 2s + 4s + 8s = 14s.
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, sleeps)
}

func TestFailoverClient_ContextCancelStopsFailover(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	dead := &mockRPCClient{
		getSignatures: func(ctx context.Context, address solanago.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
			calls++
			cancel()
			return nil, context.Canceled
		},
	}
	rotator := NewEndpointRotatorWithClients([]RPCClient{dead, dead}, []string{"http://a", "http://b"})
	client := NewFailoverClient(rotator, FailoverOptions{}, nil, testLogger())
	client.sleep = func(time.Duration) {}

	_, err := client.GetSignaturesForAddress(ctx, testWallet(), nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, 1, calls)
}

func TestEndpointRotator_ConcurrentAdvanceDoesNotSkip(t *testing.T) {
	rotator := NewEndpointRotatorWithClients(
		[]RPCClient{&mockRPCClient{}, &mockRPCClient{}, &mockRPCClient{}},
		[]string{"a", "b", "c"},
	)

	_, _, idx := rotator.Current()
	require.Equal(t, 0, idx)

	// Two callers that both observed index 0 race to advance; only one
	// advance may take effect.
	rotator.Advance(0)
	rotator.Advance(0)

	assert.Equal(t, 1, rotator.Index())
}
