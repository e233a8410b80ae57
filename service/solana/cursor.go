package solana

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/solsync/solsync/service/metrics"
)

const (
	// MaxPageLimit is the cap the RPC service enforces on one
	// getSignaturesForAddress page.
	MaxPageLimit = 1000

	defaultPageLimit     = 50
	defaultDetailWorkers = 4
	defaultPageDelay     = 300 * time.Millisecond
)

// StopFunc is the per-item stop predicate for a cursor walk. It is
// evaluated newest-to-oldest within each slot-sorted page; the first
// matching item (and everything older) is excluded and the walk ends.
type StopFunc func(Record) bool

// CursorOptions configures a pagination cursor.
type CursorOptions struct {
	Address solana.PublicKey

	// PageLimit is the signature page size, capped at MaxPageLimit.
	PageLimit int

	// DetailWorkers bounds the number of concurrent GetTransaction
	// calls in flight for one page.
	DetailWorkers int

	// PageDelay is the fixed sleep between signature page fetches, to
	// respect the remote service's request budget.
	PageDelay time.Duration

	// Stop ends the walk when it matches an item. A nil Stop walks
	// until the remote history is exhausted.
	Stop StopFunc
}

// Cursor walks the reverse-chronological signature history of one
// address in bounded pages, fetching transaction details for each page
// and normalizing them into Records.
//
// The produced sequence is lazy, finite, and not restartable: each call
// to Next issues the next page request using the oldest signature seen
// so far as the "before" bound. The walk terminates when the RPC service
// returns a literally empty page or the stop predicate matches an item.
// A page that is merely shorter than the requested limit does not by
// itself end the walk.
type Cursor struct {
	client  RPCClient
	opts    CursorOptions
	logger  *slog.Logger
	metrics *metrics.Metrics

	before  solana.Signature
	started bool
	done    bool

	sleep func(time.Duration)
}

// NewCursor creates a cursor for one backward walk over the address's
// transaction history. If m is nil, no metrics will be recorded.
func NewCursor(client RPCClient, opts CursorOptions, m *metrics.Metrics, logger *slog.Logger) *Cursor {
	if opts.PageLimit <= 0 {
		opts.PageLimit = defaultPageLimit
	}
	if opts.PageLimit > MaxPageLimit {
		opts.PageLimit = MaxPageLimit
	}
	if opts.DetailWorkers <= 0 {
		opts.DetailWorkers = defaultDetailWorkers
	}
	if opts.PageDelay < 0 {
		opts.PageDelay = defaultPageDelay
	}
	return &Cursor{
		client:  client,
		opts:    opts,
		logger:  logger,
		metrics: m,
		sleep:   time.Sleep,
	}
}

// Done reports whether the walk has terminated. Once true, Next returns
// no further records.
func (c *Cursor) Done() bool {
	return c.done
}

// Next fetches, details, and normalizes the next page of records, sorted
// by slot descending. It returns an empty batch with a nil error when a
// page produced no representable records but the walk should continue.
//
// An ErrUnavailable from the RPC layer terminates the walk and is
// returned together with whatever part of the page was already gathered,
// so the caller can persist the partial batch.
func (c *Cursor) Next(ctx context.Context) ([]Record, error) {
	if c.done {
		return nil, nil
	}

	if c.started && c.opts.PageDelay > 0 {
		c.sleep(c.opts.PageDelay)
	}

	limit := c.opts.PageLimit
	sigOpts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentFinalized,
	}
	if c.started {
		sigOpts.Before = c.before
	}

	c.logger.DebugContext(ctx, "fetching signature page",
		"address", c.opts.Address.String(),
		"limit", limit,
		"before", sigOpts.Before,
	)

	sigs, err := c.client.GetSignaturesForAddress(ctx, c.opts.Address, sigOpts)
	if err != nil {
		c.done = true
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordSignaturesPerPage(float64(len(sigs)))
	}

	if len(sigs) == 0 {
		c.done = true
		return nil, nil
	}

	c.before = sigs[len(sigs)-1].Signature
	c.started = true

	records, fetchErr := c.fetchDetails(ctx, sigs)

	// Detail fetches complete out of order; re-sort by slot before any
	// stop-condition check so a boundary item cannot be missed to a
	// completion-order race.
	sort.Slice(records, func(i, j int) bool {
		if records[i].Slot != records[j].Slot {
			return records[i].Slot > records[j].Slot
		}
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	// Stop predicate first, newest to oldest: everything from the first
	// matching item onward is already known or out of range.
	if c.opts.Stop != nil {
		for i, rec := range records {
			if c.opts.Stop(rec) {
				records = records[:i]
				c.done = true
				break
			}
		}
	}

	if c.metrics != nil {
		c.metrics.RecordRecordsFetched(float64(len(records)))
	}

	if fetchErr != nil {
		c.done = true
		return records, fetchErr
	}
	return records, nil
}

// fetchDetails runs the per-page GetTransaction calls on a bounded
// worker pool. Each worker writes to its own slot in the results slice,
// so the only shared state is the first-error capture.
func (c *Cursor) fetchDetails(ctx context.Context, sigs []*rpc.TransactionSignature) ([]Record, error) {
	maxVersion := uint64(0)
	txOpts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: &maxVersion,
	}

	results := make([]*Record, len(sigs))
	sem := make(chan struct{}, c.opts.DetailWorkers)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, sig := range sigs {
		wg.Add(1)
		go func(i int, sig *rpc.TransactionSignature) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			mu.Lock()
			stop := firstErr != nil
			mu.Unlock()
			if stop {
				return
			}

			result, err := c.client.GetTransaction(ctx, sig.Signature, txOpts)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}

			rec, reason := Normalize(sig, result)
			if rec == nil {
				c.logger.WarnContext(ctx, "dropping unrepresentable transaction",
					"signature", sig.Signature.String(),
					"reason", string(reason),
				)
				if c.metrics != nil {
					c.metrics.RecordRecordDropped(string(reason))
				}
				return
			}
			results[i] = rec
		}(i, sig)
	}
	wg.Wait()

	records := make([]Record, 0, len(sigs))
	for _, rec := range results {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, firstErr
}
