package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/solsync/solsync/service/metrics"
)

// ErrUnavailable is returned once every endpoint has failed in every
// retry round. Callers must treat it as "no data obtained this round",
// not as a fatal process error.
var ErrUnavailable = errors.New("all rpc endpoints unavailable")

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 2 * time.Second
	defaultTimeout    = 30 * time.Second
)

// FailoverOptions configures the retry budget of a FailoverClient.
// Zero values fall back to the defaults (3 rounds, 2s base delay,
// 30s per-request timeout).
type FailoverOptions struct {
	// MaxRetries is the number of full retry rounds after the initial
	// pass over all endpoints has failed.
	MaxRetries int

	// BaseDelay is the backoff unit: round n sleeps BaseDelay * 2^(n-1)
	// before cycling through the endpoints again.
	BaseDelay time.Duration

	// Timeout bounds every individual RPC call so a stuck request cannot
	// block the whole sync.
	Timeout time.Duration
}

// FailoverClient implements RPCClient across an ordered list of candidate
// endpoints. A failing call (transport error or an error payload in the
// response) advances the rotator and retries the same call against the
// next endpoint without consuming a retry attempt. Once every endpoint
// has failed, the client sleeps with exponential backoff and cycles
// through all endpoints again, up to MaxRetries rounds. Exhausting the
// budget yields ErrUnavailable.
//
// The retry budget is an explicit bounded loop (endpoint index x retry
// round), so the worst-case wall time is statically known:
// sum over rounds of BaseDelay * 2^round, plus per-call timeouts.
type FailoverClient struct {
	rotator    *EndpointRotator
	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics

	// sleep is swapped out in tests so backoff assertions run instantly.
	sleep func(time.Duration)
}

// NewFailoverClient creates a failover client over the given rotator.
// If m is nil, no metrics will be recorded.
func NewFailoverClient(rotator *EndpointRotator, opts FailoverOptions, m *metrics.Metrics, logger *slog.Logger) *FailoverClient {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &FailoverClient{
		rotator:    rotator,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		timeout:    opts.Timeout,
		logger:     logger,
		metrics:    m,
		sleep:      time.Sleep,
	}
}

// GetSignaturesForAddress lists transaction signatures for an address,
// failing over across endpoints as needed.
func (c *FailoverClient) GetSignaturesForAddress(
	ctx context.Context,
	address solana.PublicKey,
	opts *rpc.GetSignaturesForAddressOpts,
) ([]*rpc.TransactionSignature, error) {
	var out []*rpc.TransactionSignature
	err := c.do(ctx, "GetSignaturesForAddress", func(callCtx context.Context, client RPCClient) error {
		res, err := client.GetSignaturesForAddress(callCtx, address, opts)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetTransaction fetches full transaction details for a signature,
// failing over across endpoints as needed.
func (c *FailoverClient) GetTransaction(
	ctx context.Context,
	signature solana.Signature,
	opts *rpc.GetTransactionOpts,
) (*rpc.GetTransactionResult, error) {
	var out *rpc.GetTransactionResult
	err := c.do(ctx, "GetTransaction", func(callCtx context.Context, client RPCClient) error {
		res, err := client.GetTransaction(callCtx, signature, opts)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// do runs one logical call through the failover and retry machinery.
func (c *FailoverClient) do(ctx context.Context, method string, call func(context.Context, RPCClient) error) error {
	var lastErr error

	for round := 0; round <= c.maxRetries; round++ {
		if round > 0 {
			delay := c.baseDelay * (1 << (round - 1))
			c.logger.WarnContext(ctx, "all endpoints failed, backing off before retry round",
				"method", method,
				"round", round,
				"max_retries", c.maxRetries,
				"delay", delay,
			)
			if c.metrics != nil {
				c.metrics.RecordRetryRound(method)
			}
			c.sleep(delay)
		}

		// One pass over every endpoint; endpoint advances do not count
		// against the retry budget.
		for i := 0; i < c.rotator.Len(); i++ {
			client, url, idx := c.rotator.Current()

			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			start := time.Now()
			err := call(callCtx, client)
			cancel()
			duration := time.Since(start).Seconds()

			status := "success"
			if err != nil {
				status = "error"
			}
			if c.metrics != nil {
				c.metrics.RecordRPCCall(method, status, url, duration)
			}

			if err == nil {
				return nil
			}
			lastErr = err

			// A canceled parent context is not an endpoint problem;
			// stop failing over and surface it.
			if ctx.Err() != nil {
				return ctx.Err()
			}

			c.logger.WarnContext(ctx, "rpc call failed, advancing endpoint",
				"method", method,
				"endpoint", url,
				"error", err,
			)
			if c.metrics != nil {
				c.metrics.RecordFailover(url)
			}
			c.rotator.Advance(idx)
		}
	}

	return fmt.Errorf("%w: %s failed after %d retry rounds: %v",
		ErrUnavailable, method, c.maxRetries, lastErr)
}
