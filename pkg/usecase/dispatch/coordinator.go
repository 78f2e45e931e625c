package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/murmur/pkg/cache"
	"github.com/m-mizutani/murmur/pkg/guardrail"
	"github.com/m-mizutani/murmur/pkg/model"
	"github.com/m-mizutani/murmur/pkg/telemetry"
	"github.com/m-mizutani/murmur/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

var (
	ErrBatchTooLarge     = goerr.New("batch exceeds the maximum record count")
	ErrDuplicateFeedback = goerr.New("duplicate feedback_id in batch")
)

// Coordinator drives a batch of feedback records through the dedup pipeline:
// sanitize, derive cache key, single-flight claim, resolve, dispatch, store.
// Batch validation is all-or-nothing; per-record processing is isolated so
// one degraded record never sinks its siblings.
type Coordinator struct {
	store      cache.Store
	guard      *guardrail.Guardrail
	resolver   *Resolver
	dispatcher *Dispatcher
	sink       telemetry.Sink
	config     Config
	clock      func() time.Time
}

type CoordinatorOption func(*Coordinator)

// WithClock replaces the time source. Tests only.
func WithClock(clock func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

func NewCoordinator(store cache.Store, guard *guardrail.Guardrail, resolver *Resolver, dispatcher *Dispatcher, sink telemetry.Sink, config Config, options ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:      store,
		guard:      guard,
		resolver:   resolver,
		dispatcher: dispatcher,
		sink:       sink,
		config:     config.withDefaults(),
		clock:      time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// ProcessBatch validates and processes one batch. The returned outcomes are
// in input order, exactly one per record. A validation failure rejects the
// whole batch before any record is processed.
func (c *Coordinator) ProcessBatch(ctx context.Context, records []model.FeedbackRecord) ([]*model.RecordOutcome, error) {
	if err := c.validateBatch(records); err != nil {
		return nil, err
	}
	// A deadline that is already gone is a whole-batch failure, not fifty
	// per-record timeout outcomes.
	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "batch deadline exceeded before processing started")
	}

	outcomes := make([]*model.RecordOutcome, len(records))

	// The claim holder identifies this invocation, so overlapping batches
	// are distinguishable in the claim records.
	holder := uuid.NewString()

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.config.WorkerLimit)
	for i, record := range records {
		eg.Go(func() error {
			outcomes[i] = c.processRecord(ctx, record, holder)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return outcomes, nil
}

func (c *Coordinator) validateBatch(records []model.FeedbackRecord) error {
	if len(records) > c.config.MaxBatchSize {
		return goerr.Wrap(ErrBatchTooLarge, "batch rejected",
			goerr.V("count", len(records)),
			goerr.V("max", c.config.MaxBatchSize),
		)
	}

	seen := make(map[model.FeedbackID]bool, len(records))
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
		if seen[record.ID] {
			return goerr.Wrap(ErrDuplicateFeedback, "batch rejected", goerr.V("feedback_id", record.ID))
		}
		seen[record.ID] = true
	}
	return nil
}

// processRecord runs the per-record state machine. It always returns an
// outcome: failures degrade the record, they never lose it.
func (c *Coordinator) processRecord(ctx context.Context, record model.FeedbackRecord, holder string) *model.RecordOutcome {
	logger := logging.From(ctx).With("feedback_id", record.ID)
	ctx = logging.With(ctx, logger)

	text := record.Text
	if verdict, err := c.guard.Sanitize(ctx, record.Text); err != nil {
		logger.Warn("guardrail evaluation failed, using original text", "error", err)
	} else {
		if verdict.Redacted {
			logger.Info("feedback text redacted by guardrail")
		}
		text = verdict.Text
	}

	key := model.DeriveCacheKey(text, record.Instructions)

	// First look: a live entry serves the record without touching the
	// claim machinery.
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		logger.Warn("cache lookup failed, computing without cache", "error", err)
		c.observeLookup(ctx, key, record.ID, false)
		return c.computeUncached(ctx, record, text)
	}
	if entry != nil {
		c.observeLookup(ctx, key, record.ID, true)
		return c.outcomeFromEntry(record.ID, entry, true)
	}
	c.observeLookup(ctx, key, record.ID, false)

	claim, err := c.store.TryClaim(ctx, key, holder, c.config.ClaimLease)
	if err != nil {
		logger.Warn("cache claim failed, computing without cache", "error", err)
		return c.computeUncached(ctx, record, text)
	}

	switch claim.Status {
	case cache.ClaimEntryExists:
		// Another worker finished between Get and TryClaim.
		return c.outcomeFromEntry(record.ID, claim.Entry, true)

	case cache.ClaimGranted:
		return c.computeAndStore(ctx, record, text, key)

	default: // cache.ClaimHeld
		if entry := c.awaitPeer(ctx, key); entry != nil {
			return c.outcomeFromEntry(record.ID, entry, true)
		}
		// The peer did not publish within the wait budget. Compute
		// independently without claiming or storing so the eventual
		// publisher stays authoritative.
		logger.Info("claim wait elapsed, computing independently")
		return c.computeUncached(ctx, record, text)
	}
}

// computeAndStore is the claim-holder path: resolve, dispatch, then publish
// or release. A result with at least one successful tool is worth caching;
// an all-failed result releases the claim so a later request can retry.
func (c *Coordinator) computeAndStore(ctx context.Context, record model.FeedbackRecord, text string, key model.CacheKey) *model.RecordOutcome {
	plan := c.resolver.Resolve(ctx, record)
	results := c.dispatcher.Dispatch(ctx, record.ID, text, plan)
	outcome := c.newOutcome(record.ID, plan, results, false)

	if !anySucceeded(results) {
		logging.From(ctx).Warn("all tools failed, releasing cache claim")
		if err := c.store.Release(ctx, key); err != nil {
			logging.From(ctx).Warn("failed to release cache claim", "error", err)
		}
		return outcome
	}

	now := c.clock()
	entry := &model.CacheEntry{
		Key:         key,
		FeedbackID:  record.ID,
		Plan:        plan,
		ToolResults: results,
		Result:      outcome.Results,
		CreatedAt:   now,
		ExpiresAt:   now.Add(c.config.CacheTTL),
	}
	if err := c.store.Put(ctx, entry); err != nil {
		logging.From(ctx).Warn("failed to store cache entry", "error", err)
		if err := c.store.Release(ctx, key); err != nil {
			logging.From(ctx).Warn("failed to release cache claim", "error", err)
		}
	}

	return outcome
}

// computeUncached resolves and dispatches without any cache interaction
func (c *Coordinator) computeUncached(ctx context.Context, record model.FeedbackRecord, text string) *model.RecordOutcome {
	plan := c.resolver.Resolve(ctx, record)
	results := c.dispatcher.Dispatch(ctx, record.ID, text, plan)
	return c.newOutcome(record.ID, plan, results, false)
}

// awaitPeer polls for the claim holder's published entry until the wait
// budget or the context runs out
func (c *Coordinator) awaitPeer(ctx context.Context, key model.CacheKey) *model.CacheEntry {
	deadline := c.clock().Add(c.config.ClaimWait)
	ticker := time.NewTicker(c.config.ClaimPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		entry, err := c.store.Get(ctx, key)
		if err != nil {
			logging.From(ctx).Warn("cache poll failed", "error", err)
			return nil
		}
		if entry != nil {
			return entry
		}
		if !c.clock().Before(deadline) {
			return nil
		}
	}
}

func (c *Coordinator) outcomeFromEntry(id model.FeedbackID, entry *model.CacheEntry, hit bool) *model.RecordOutcome {
	return &model.RecordOutcome{
		FeedbackID:  id,
		CacheHit:    hit,
		Plan:        entry.Plan,
		ToolResults: entry.ToolResults,
		Results:     entry.Result,
		ProcessedAt: c.clock(),
	}
}

func (c *Coordinator) newOutcome(id model.FeedbackID, plan model.ToolPlan, results []model.ToolResult, hit bool) *model.RecordOutcome {
	return &model.RecordOutcome{
		FeedbackID:  id,
		CacheHit:    hit,
		Plan:        plan,
		ToolResults: results,
		Results:     model.AssembleResult(results),
		ProcessedAt: c.clock(),
	}
}

func (c *Coordinator) observeLookup(ctx context.Context, key model.CacheKey, id model.FeedbackID, hit bool) {
	c.sink.CacheLookup(ctx, telemetry.CacheEvent{
		Key:        key,
		FeedbackID: id,
		Hit:        hit,
		At:         c.clock(),
	})
}

func anySucceeded(results []model.ToolResult) bool {
	for _, r := range results {
		if r.Status == model.ToolStatusOK {
			return true
		}
	}
	return false
}
