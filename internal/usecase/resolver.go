package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/pkg/logger"
	"golang.org/x/sync/singleflight"
)

const DefaultResolveTimeout = 50 * time.Millisecond

type linkReader interface {
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.Link, error)
}

type linkCache interface {
	// Get returns nil without error on a cache miss.
	Get(ctx context.Context, shortCode string) (*entity.RedirectTarget, error)
	Set(ctx context.Context, shortCode string, target *entity.RedirectTarget) error
	Delete(ctx context.Context, shortCode string) error
}

type clickSink interface {
	Record(linkID uuid.UUID, visit entity.Visit) bool
}

// Resolver serves the redirect hot path. Concurrent misses for the same code
// share one store lookup.
type Resolver struct {
	links   linkReader
	cache   linkCache
	clicks  clickSink
	logger  logger.Logger
	timeout time.Duration
	group   singleflight.Group
}

func NewResolver(links linkReader, cache linkCache, clicks clickSink, log logger.Logger, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}

	return &Resolver{
		links:   links,
		cache:   cache,
		clicks:  clicks,
		logger:  log,
		timeout: timeout,
	}
}

// Resolve returns the destination of shortCode and hands a click to the
// recorder without waiting for it. Unknown and tombstoned codes both yield
// ErrLinkNotFound.
func (r *Resolver) Resolve(ctx context.Context, shortCode string, visit entity.Visit) (*entity.RedirectTarget, error) {
	const op = "usecase.Resolver.Resolve"

	if !ValidShortCode(shortCode) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	target, err := r.lookup(ctx, shortCode)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrResolveTimeout)
		}

		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	if !r.clicks.Record(target.LinkID, visit) {
		r.logger.Debug("click dropped, recorder queue full",
			logger.String("short_code", shortCode))
	}

	return target, nil
}

func (r *Resolver) lookup(ctx context.Context, shortCode string) (*entity.RedirectTarget, error) {
	target, err := r.cacheGet(ctx, shortCode)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("cache read failed, falling back to store",
			logger.String("short_code", shortCode),
			logger.Error(err))
	case target != nil:
		return target, nil
	}

	ch := r.group.DoChan(shortCode, func() (any, error) {
		// The shared lookup must not die with the first caller.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		link, err := r.links.RetrieveByShortCode(fctx, shortCode)
		if err != nil {
			return nil, err
		}

		target := &entity.RedirectTarget{
			LinkID:      link.ID,
			OriginalURL: link.OriginalURL,
		}

		setCtx, cancelSet := context.WithTimeout(fctx, r.cacheTimeout())
		defer cancelSet()

		if err := r.cache.Set(setCtx, shortCode, target); err != nil {
			r.logger.Warn("failed to cache link",
				logger.String("short_code", shortCode),
				logger.Error(err))
		}

		return target, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*entity.RedirectTarget), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// cacheTimeout is the share of the resolve budget a cache call may use. A
// hanging cache must leave time for the store.
func (r *Resolver) cacheTimeout() time.Duration {
	return r.timeout / 4
}

func (r *Resolver) cacheGet(ctx context.Context, shortCode string) (*entity.RedirectTarget, error) {
	cctx, cancel := context.WithTimeout(ctx, r.cacheTimeout())
	defer cancel()

	return r.cache.Get(cctx, shortCode)
}
