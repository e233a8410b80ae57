package sync

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/solsync/solsync/service/metrics"
	"github.com/solsync/solsync/service/nats"
	"github.com/solsync/solsync/service/solana"
	"github.com/solsync/solsync/service/store"
)

// State is the orchestrator's position in the sync state machine.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateBackfilling   State = "backfilling"
	StateIncremental   State = "incremental"
	StateIdle          State = "idle"
	StateFailed        State = "failed"
)

const defaultLookbackDays = 30

// Options configures a sync round.
type Options struct {
	// Address is the tracked token address.
	Address solanago.PublicKey

	// LookbackDays bounds a full backfill: items older than this window
	// are excluded and stop the walk. Defaults to 30.
	LookbackDays int

	// PageLimit, DetailWorkers and PageDelay are passed through to the
	// pagination cursor.
	PageLimit     int
	DetailWorkers int
	PageDelay     time.Duration
}

// Orchestrator drives one synchronization round. It consults the
// checkpoint store to choose between a full backfill and an incremental
// catch-up, walks the pagination cursor until its stop condition fires,
// partitions and persists the accumulated records, and advances the
// checkpoint as the final action of a successful round.
//
// The orchestrator is the sole owner of the checkpoint and the dataset
// partitions; downstream consumers see exactly one surface, the merged
// dataset returned by Run and Dataset.
type Orchestrator struct {
	client      solana.RPCClient
	opts        Options
	checkpoints *store.CheckpointStore
	dataset     *store.DatasetStore
	publisher   nats.Publisher // optional, nil disables publishing
	metrics     *metrics.Metrics
	logger      *slog.Logger

	// now is swapped out in tests to pin the calendar.
	now func() time.Time

	mu    sync.Mutex
	state State
}

// New creates an orchestrator. publisher may be nil to disable NATS
// publishing; m may be nil to disable metrics.
func New(
	client solana.RPCClient,
	opts Options,
	checkpoints *store.CheckpointStore,
	dataset *store.DatasetStore,
	publisher nats.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Orchestrator {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = defaultLookbackDays
	}
	return &Orchestrator{
		client:      client,
		opts:        opts,
		checkpoints: checkpoints,
		dataset:     dataset,
		publisher:   publisher,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
		state:       StateUninitialized,
	}
}

// State returns the orchestrator's current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Dataset returns the current merged dataset. This is the single call
// downstream consumers (reporting, statistics) are allowed: they must
// not reach into partition files directly.
func (o *Orchestrator) Dataset() ([]solana.Record, error) {
	return o.dataset.LoadMerged()
}

// Run executes one synchronization round and returns the merged dataset.
//
// Failures while driving the cursor degrade rather than propagate: the
// round transitions to Failed, whatever partial batch was gathered is
// persisted (dedupe absorbs the overlap on the next run), the checkpoint
// is left untouched, and the best available merged view is returned.
// A non-nil error is returned only when the local dataset itself cannot
// be read, which is fatal to the invoking process.
func (o *Orchestrator) Run(ctx context.Context) ([]solana.Record, error) {
	start := o.now()
	o.setState(StateUninitialized)

	cp := o.checkpoints.Load()
	today := o.now().UTC().Format(solana.DateLayout)

	// Already synced today: nothing to do.
	if !cp.IsZero() && cp.DateString() == today {
		merged, err := o.dataset.MergeAll()
		if err != nil {
			return o.failed("failed to materialize merged dataset", err, start)
		}
		o.logger.Info("dataset already synchronized today",
			"date", today,
			"records", len(merged),
		)
		o.setState(StateIdle)
		o.observeRound("noop", start)
		return merged, nil
	}

	state, stop := o.strategy(cp)
	o.setState(state)
	o.logger.Info("starting sync round",
		"mode", string(state),
		"address", o.opts.Address.String(),
		"checkpoint_date", cp.DateString(),
	)

	cursor := solana.NewCursor(o.client, solana.CursorOptions{
		Address:       o.opts.Address,
		PageLimit:     o.opts.PageLimit,
		DetailWorkers: o.opts.DetailWorkers,
		PageDelay:     o.opts.PageDelay,
		Stop:          stop,
	}, o.metrics, o.logger)

	fetched, fetchErr := o.drain(ctx, cursor)
	unavailable := errors.Is(fetchErr, solana.ErrUnavailable)

	if fetchErr != nil && !unavailable {
		return o.failed("sync round aborted while driving cursor", fetchErr, start)
	}

	if len(fetched) > 0 {
		if err := o.persist(fetched); err != nil {
			return o.failed("failed to persist fetched records", err, start)
		}
	}

	merged, err := o.dataset.MergeAll()
	if err != nil {
		return o.failed("failed to materialize merged dataset", err, start)
	}

	if unavailable {
		// The walk ended before reaching its boundary, so advancing the
		// checkpoint would skip the gap between the oldest fetched item
		// and the previous boundary. Keep the old checkpoint; the next
		// run re-fetches the overlap and dedupe absorbs it.
		o.logger.Warn("sync round ended early, checkpoint not advanced",
			"fetched", len(fetched),
			"error", fetchErr,
		)
		o.setState(StateFailed)
		o.observeRound("partial", start)
		return merged, nil
	}

	newCp := store.NewCheckpoint(today, o.newestSignature(fetched, cp))
	if err := o.checkpoints.Save(newCp); err != nil {
		// Logged by the store; the next run re-fetches overlap.
		if o.metrics != nil {
			o.metrics.RecordCheckpointSave("error")
		}
	} else if o.metrics != nil {
		o.metrics.RecordCheckpointSave("success")
	}

	o.publish(ctx, fetched)

	o.logger.Info("sync round complete",
		"mode", string(state),
		"fetched", len(fetched),
		"dataset_size", len(merged),
		"checkpoint_date", today,
	)
	o.setState(StateIdle)
	o.observeRound("success", start)
	return merged, nil
}

// strategy picks backfill or incremental mode and the matching per-item
// stop condition. The cutoff is evaluated on normalized timestamps, not
// slot numbers, since slot-to-time is only an approximation.
func (o *Orchestrator) strategy(cp store.Checkpoint) (State, solana.StopFunc) {
	if cp.IsZero() {
		cutoff := o.now().UTC().AddDate(0, 0, -o.opts.LookbackDays)
		return StateBackfilling, func(r solana.Record) bool {
			return r.Timestamp.Before(cutoff)
		}
	}

	lastDate := cp.DateString()
	lastSig := cp.Signature()
	return StateIncremental, func(r solana.Record) bool {
		if lastSig != "" && r.Signature == lastSig {
			return true
		}
		// Items on or before the checkpoint date are already covered.
		return r.Date() <= lastDate
	}
}

// drain walks the cursor to completion, accumulating records. On error
// it returns whatever was gathered together with the error.
func (o *Orchestrator) drain(ctx context.Context, cursor *solana.Cursor) ([]solana.Record, error) {
	var fetched []solana.Record
	for !cursor.Done() {
		batch, err := cursor.Next(ctx)
		fetched = append(fetched, batch...)
		if err != nil {
			return fetched, err
		}
	}
	return fetched, nil
}

// persist groups the fetched records by calendar date and rewrites each
// affected partition. Partitions are overwritten whole, so the existing
// partition is loaded and pre-merged with the incoming records first.
func (o *Orchestrator) persist(fetched []solana.Record) error {
	byDate := make(map[string][]solana.Record)
	for _, rec := range fetched {
		byDate[rec.Date()] = append(byDate[rec.Date()], rec)
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		existing, err := o.dataset.LoadPartition(date)
		if err != nil {
			// Overwriting a partition we could not read would drop data.
			return err
		}
		combined := store.Merge(append(existing, byDate[date]...))
		if err := o.dataset.WriteBatch(date, combined); err != nil {
			return err
		}
		if o.metrics != nil {
			o.metrics.RecordPartitionWritten()
			o.metrics.RecordRecordsWritten(float64(len(byDate[date])))
		}
	}
	return nil
}

// newestSignature returns the signature of the highest-slot record in
// the round, falling back to the previous checkpoint's signature when
// nothing new was fetched.
func (o *Orchestrator) newestSignature(fetched []solana.Record, cp store.Checkpoint) string {
	if len(fetched) == 0 {
		return cp.Signature()
	}
	newest := fetched[0]
	for _, rec := range fetched[1:] {
		if rec.Slot > newest.Slot {
			newest = rec
		}
	}
	return newest.Signature
}

// publish sends this round's records downstream, best-effort.
func (o *Orchestrator) publish(ctx context.Context, fetched []solana.Record) {
	if o.publisher == nil || len(fetched) == 0 {
		return
	}

	address := o.opts.Address.String()
	events := make([]*nats.RecordEvent, 0, len(fetched))
	for _, rec := range fetched {
		events = append(events, nats.FromRecord(address, rec))
	}

	if err := o.publisher.PublishRecordBatch(ctx, events); err != nil {
		o.logger.Error("failed to publish record batch", "error", err)
		if o.metrics != nil {
			o.metrics.RecordNATSPublish("error")
		}
		return
	}
	if o.metrics != nil {
		o.metrics.RecordNATSPublish("success")
	}
}

// failed logs the round failure and returns the previous merged view.
// Only an unreadable local dataset surfaces as an error.
func (o *Orchestrator) failed(msg string, cause error, start time.Time) ([]solana.Record, error) {
	o.logger.Error(msg, "error", cause)
	o.setState(StateFailed)
	o.observeRound("failed", start)

	previous, err := o.dataset.LoadMerged()
	if err != nil {
		return nil, err
	}
	return previous, nil
}

func (o *Orchestrator) observeRound(outcome string, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordSyncRound(outcome, o.now().Sub(start).Seconds())
	}
}
