package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/pkg/logger"
)

const maxVisitFieldLength = 512

type clickRepository interface {
	// SaveClicks applies the per-link counter deltas and appends the events in
	// one transaction. Events of tombstoned links are discarded and counted.
	SaveClicks(ctx context.Context, events []entity.ClickEvent) (discarded int64, err error)
}

// RecorderConfig tunes the click recorder.
type RecorderConfig struct {
	NodeID          int64
	QueueSize       int
	Workers         int
	BatchSize       int
	FlushInterval   time.Duration
	AttemptTimeout  time.Duration
	RetryInitial    time.Duration
	RetryMax        time.Duration
	RetryMaxElapsed time.Duration
	ShutdownTimeout time.Duration
}

var DefaultRecorderConfig = RecorderConfig{
	QueueSize:       10000,
	Workers:         2,
	BatchSize:       256,
	FlushInterval:   time.Second,
	AttemptTimeout:  5 * time.Second,
	RetryInitial:    100 * time.Millisecond,
	RetryMax:        5 * time.Second,
	RetryMaxElapsed: time.Minute,
	ShutdownTimeout: 10 * time.Second,
}

func (c *RecorderConfig) setDefaults() {
	d := DefaultRecorderConfig

	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = d.AttemptTimeout
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = d.RetryInitial
	}
	if c.RetryMax <= 0 {
		c.RetryMax = d.RetryMax
	}
	if c.RetryMaxElapsed <= 0 {
		c.RetryMaxElapsed = d.RetryMaxElapsed
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
}

// ClickRecorder accepts click events without blocking and persists them in
// batches from background workers. When the queue is full the newest event is
// dropped: redirects stay fast at the cost of exact accounting.
type ClickRecorder struct {
	repo   clickRepository
	logger logger.Logger
	cfg    RecorderConfig
	queue  chan entity.ClickEvent
	ids    *snowflake.Node
	now    func() time.Time

	recorded             atomic.Int64
	dropped              atomic.Int64
	droppedPostTombstone atomic.Int64
	failed               atomic.Int64
}

func NewClickRecorder(repo clickRepository, log logger.Logger, cfg RecorderConfig) (*ClickRecorder, error) {
	const op = "usecase.NewClickRecorder"

	cfg.setDefaults()

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create id generator: %w", op, err)
	}

	return &ClickRecorder{
		repo:   repo,
		logger: log.With(logger.String("component", "click_recorder")),
		cfg:    cfg,
		queue:  make(chan entity.ClickEvent, cfg.QueueSize),
		ids:    node,
		now:    time.Now,
	}, nil
}

// Record enqueues a click for linkID. It never blocks and reports whether the
// event was accepted.
func (r *ClickRecorder) Record(linkID uuid.UUID, visit entity.Visit) bool {
	ev := entity.ClickEvent{
		ID:        r.ids.Generate().Int64(),
		LinkID:    linkID,
		Timestamp: r.now().UTC().Truncate(time.Microsecond),
		Referrer:  sanitize(visit.Referrer, maxVisitFieldLength),
		UserAgent: sanitize(visit.UserAgent, maxVisitFieldLength),
		Country:   sanitize(visit.Country, 2),
	}

	select {
	case r.queue <- ev:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

// Stats returns a snapshot of the recorder counters.
func (r *ClickRecorder) Stats() entity.RecorderStats {
	return entity.RecorderStats{
		Queued:               len(r.queue),
		Recorded:             r.recorded.Load(),
		Dropped:              r.dropped.Load(),
		DroppedPostTombstone: r.droppedPostTombstone.Load(),
		Failed:               r.failed.Load(),
	}
}

// Run starts the workers and blocks until ctx is done and the queue has been
// drained.
func (r *ClickRecorder) Run(ctx context.Context) error {
	r.logger.Info("click recorder started",
		logger.Int("workers", r.cfg.Workers),
		logger.Int("queue_size", r.cfg.QueueSize),
		logger.Int("batch_size", r.cfg.BatchSize))

	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(ctx)
		}()
	}

	wg.Wait()

	st := r.Stats()
	r.logger.Info("click recorder stopped",
		logger.Int64("recorded", st.Recorded),
		logger.Int64("dropped", st.Dropped),
		logger.Int64("dropped_post_tombstone", st.DroppedPostTombstone),
		logger.Int64("failed", st.Failed))

	return nil
}

func (r *ClickRecorder) work(ctx context.Context) {
	batch := make([]entity.ClickEvent, 0, r.cfg.BatchSize)

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	// Retries outlive the caller; they are bounded by RetryMaxElapsed.
	flushCtx := context.WithoutCancel(ctx)

	for {
		select {
		case ev := <-r.queue:
			batch = append(batch, ev)
			if len(batch) >= r.cfg.BatchSize {
				r.flush(flushCtx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(flushCtx, batch)
				batch = batch[:0]
			}
		case <-ctx.Done():
			r.drain(batch)
			return
		}
	}
}

// drain flushes what is left in the queue within the shutdown timeout.
func (r *ClickRecorder) drain(batch []entity.ClickEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
	defer cancel()

	for {
		select {
		case ev := <-r.queue:
			batch = append(batch, ev)
			if len(batch) >= r.cfg.BatchSize {
				r.flush(ctx, batch)
				batch = batch[:0]
			}
		default:
			if len(batch) > 0 {
				r.flush(ctx, batch)
			}
			return
		}
	}
}

// flush persists batch. A batch rejected by the store is split in halves so
// that one bad event fails alone instead of taking its neighbours with it.
func (r *ClickRecorder) flush(ctx context.Context, batch []entity.ClickEvent) {
	discarded, err := r.save(ctx, batch)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidData) && len(batch) > 1 {
			mid := len(batch) / 2
			r.flush(ctx, batch[:mid])
			r.flush(ctx, batch[mid:])
			return
		}

		r.failed.Add(int64(len(batch)))
		r.logger.Error("giving up on click batch",
			logger.Int("batch", len(batch)),
			logger.Error(err))
		return
	}

	r.recorded.Add(int64(len(batch)) - discarded)
	if discarded > 0 {
		r.droppedPostTombstone.Add(discarded)
		r.logger.Debug("discarded clicks of tombstoned links", logger.Int64("count", discarded))
	}
}

// save retries transient failures with exponential backoff. Rejected data is
// not retried.
func (r *ClickRecorder) save(ctx context.Context, batch []entity.ClickEvent) (int64, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.RetryInitial
	b.MaxInterval = r.cfg.RetryMax
	b.MaxElapsedTime = r.cfg.RetryMaxElapsed

	var discarded int64

	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.AttemptTimeout)
		defer cancel()

		var err error
		discarded, err = r.repo.SaveClicks(attemptCtx, batch)
		if errors.Is(err, entity.ErrInvalidData) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		r.logger.Warn("failed to save clicks, retrying",
			logger.Int("batch", len(batch)),
			logger.Duration("next_retry_in", next),
			logger.Error(err))
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return 0, err
	}

	return discarded, nil
}

// sanitize makes s valid UTF-8 without NUL bytes, both of which text columns
// reject, and cuts it to at most n bytes on a rune boundary.
func sanitize(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\x00", "")

	if len(s) <= n {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
