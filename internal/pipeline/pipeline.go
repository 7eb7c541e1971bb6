package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/geocoder-service/internal/domain"
	"github.com/couchcryptid/geocoder-service/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw requests from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer resolves a raw request into a reply.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.GeocodeReply, error)
}

// BatchLoader writes replies to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, replies []domain.GeocodeReply) error
}

// Pipeline runs the consume-geocode-publish loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	ready       atomic.Bool
	batchSize   int

	// quotaBackoff grows while the API keeps answering OVER_QUERY_LIMIT.
	quotaBackoff time.Duration
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once a batch has been published.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any messages yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one extract-transform-load cycle. Returns false if the
// pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	start := p.clock.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = initialBackoff

	loaded, throttled, ok := p.transformAndLoad(ctx, rawBatch, backoff)
	if !ok {
		return false
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(p.clock.Since(start).Seconds())
		p.ready.Store(true)
	}
	if throttled {
		return p.throttle(ctx)
	}
	p.quotaBackoff = 0
	return true
}

// transformAndLoad resolves each request, publishes the replies, and commits
// offsets. Unparseable requests are committed and skipped. Returns the number
// of published replies, whether any reply hit the query limit, and false if
// the pipeline should stop.
func (p *Pipeline) transformAndLoad(ctx context.Context, rawBatch []domain.RawEvent, backoff *time.Duration) (int, bool, bool) {
	replies := make([]domain.GeocodeReply, 0, len(rawBatch))
	resolved := make([]domain.RawEvent, 0, len(rawBatch))
	throttled := false

	for _, raw := range rawBatch {
		reply, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("transform failed, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		if reply.Status == domain.StatusOverQueryLimit {
			throttled = true
		}
		replies = append(replies, reply)
		resolved = append(resolved, raw)
	}

	if len(replies) == 0 {
		return 0, false, true
	}

	if err := p.loader.LoadBatch(ctx, replies); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(replies))
		return 0, false, p.backoffOrStop(ctx, backoff)
	}

	p.metrics.MessagesProduced.Add(float64(len(replies)))

	for _, raw := range resolved {
		p.commitOffset(ctx, raw)
	}

	return len(replies), throttled, true
}

// backoffOrStop sleeps with the current backoff and advances it. Returns
// false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !retry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}

// throttle pauses consumption after the API reported OVER_QUERY_LIMIT.
// Returns false if the pipeline should stop.
func (p *Pipeline) throttle(ctx context.Context) bool {
	if p.quotaBackoff == 0 {
		p.quotaBackoff = initialBackoff
	} else {
		p.quotaBackoff = retry.NextBackoff(p.quotaBackoff, maxBackoff)
	}
	p.logger.Warn("query limit reached, pausing consumption", "pause", p.quotaBackoff)
	return retry.SleepWithContext(ctx, p.quotaBackoff)
}

func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
