// Package usecase holds the business logic of the service: link management,
// short code generation, resolution and click recording. Storage, caching and
// favicon lookup are reached through the narrow interfaces declared here.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/pkg/logger"
)

const (
	DefaultPageSize       = 20
	MaxPageSize           = 100
	defaultFaviconTimeout = 3 * time.Second
	maxOriginalURLLength  = 2048
	MaxSearchLength       = 256
)

type linkRepository interface {
	Save(ctx context.Context, link *entity.Link) (*entity.Link, error)
	RetrieveByID(ctx context.Context, ownerID string, id uuid.UUID) (*entity.Link, error)
	ListByOwner(ctx context.Context, ownerID, search string, after *entity.Cursor, limit int) ([]entity.Link, error)
	SoftDelete(ctx context.Context, ownerID string, id uuid.UUID) (*entity.Link, error)
	UpdateFavicon(ctx context.Context, id uuid.UUID, favicon string) error
}

type codeGenerator interface {
	Generate() (string, error)
	ValidateCustom(code string) error
}

type cacheInvalidator interface {
	Delete(ctx context.Context, shortCode string) error
}

type faviconFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// LinkOption configures a LinkUseCase.
type LinkOption func(*LinkUseCase)

// WithMaxAttempts bounds how many generated codes are tried before giving up.
func WithMaxAttempts(n int) LinkOption {
	return func(uc *LinkUseCase) {
		if n > 0 {
			uc.maxAttempts = n
		}
	}
}

// WithFaviconFetcher enables background favicon lookups with the given timeout.
func WithFaviconFetcher(f faviconFetcher, timeout time.Duration) LinkOption {
	return func(uc *LinkUseCase) {
		uc.favicons = f
		if timeout > 0 {
			uc.faviconTimeout = timeout
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) LinkOption {
	return func(uc *LinkUseCase) {
		uc.now = now
	}
}

// LinkUseCase implements owner-scoped link management.
type LinkUseCase struct {
	linkRepo       linkRepository
	codes          codeGenerator
	cache          cacheInvalidator
	favicons       faviconFetcher
	logger         logger.Logger
	maxAttempts    int
	faviconTimeout time.Duration
	now            func() time.Time
	bg             sync.WaitGroup
}

func NewLinkUseCase(
	linkRepo linkRepository,
	codes codeGenerator,
	cache cacheInvalidator,
	log logger.Logger,
	opts ...LinkOption,
) *LinkUseCase {
	uc := &LinkUseCase{
		linkRepo:       linkRepo,
		codes:          codes,
		cache:          cache,
		logger:         log,
		maxAttempts:    DefaultMaxAttempts,
		faviconTimeout: defaultFaviconTimeout,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// CreateLink shortens originalURL on behalf of ownerID. With a custom code the
// insert is attempted once and a collision is reported as ErrShortCodeExists;
// generated codes are retried up to the configured number of attempts.
func (uc *LinkUseCase) CreateLink(ctx context.Context, ownerID, originalURL, customCode string) (*entity.Link, error) {
	const op = "usecase.LinkUseCase.CreateLink"

	if err := entity.ValidateOwner(ownerID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	normalized, err := ValidateURL(originalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	link := &entity.Link{
		OriginalURL: normalized,
		OwnerID:     ownerID,
	}

	var saved *entity.Link

	if customCode != "" {
		if err := uc.codes.ValidateCustom(customCode); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		saved, err = uc.save(ctx, link, customCode)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to save link: %w", op, err)
		}
	} else {
		saved, err = uc.saveGenerated(ctx, link)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	uc.lookupFavicon(saved)

	return saved, nil
}

func (uc *LinkUseCase) saveGenerated(ctx context.Context, link *entity.Link) (*entity.Link, error) {
	for i := 0; i < uc.maxAttempts; i++ {
		code, err := uc.codes.Generate()
		if err != nil {
			return nil, err
		}

		saved, err := uc.save(ctx, link, code)
		if err != nil {
			if errors.Is(err, entity.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("failed to save link: %w", err)
		}

		return saved, nil
	}

	uc.logger.Error("short code space exhausted",
		logger.String("owner_id", link.OwnerID),
		logger.Int("attempts", uc.maxAttempts))

	return nil, entity.ErrMaxRetriesExceeded
}

func (uc *LinkUseCase) save(ctx context.Context, link *entity.Link, code string) (*entity.Link, error) {
	candidate := *link
	candidate.ID = uuid.New()
	candidate.ShortCode = code
	candidate.CreatedAt = uc.now().UTC().Truncate(time.Microsecond)

	return uc.linkRepo.Save(ctx, &candidate)
}

// lookupFavicon resolves the favicon in the background. Failures are only logged.
func (uc *LinkUseCase) lookupFavicon(link *entity.Link) {
	if uc.favicons == nil {
		return
	}

	id, pageURL := link.ID, link.OriginalURL

	uc.bg.Add(1)
	go func() {
		defer uc.bg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), uc.faviconTimeout)
		defer cancel()

		favicon, err := uc.favicons.Fetch(ctx, pageURL)
		if err != nil {
			uc.logger.Debug("favicon lookup failed",
				logger.Stringer("link_id", id),
				logger.Error(err))
			return
		}
		if favicon == "" {
			return
		}

		if err := uc.linkRepo.UpdateFavicon(ctx, id, favicon); err != nil {
			uc.logger.Warn("failed to store favicon",
				logger.Stringer("link_id", id),
				logger.Error(err))
		}
	}()
}

// Wait blocks until background favicon lookups have finished.
func (uc *LinkUseCase) Wait() {
	uc.bg.Wait()
}

// GetLink returns a link owned by ownerID.
func (uc *LinkUseCase) GetLink(ctx context.Context, ownerID string, id uuid.UUID) (*entity.Link, error) {
	const op = "usecase.LinkUseCase.GetLink"

	link, err := uc.linkRepo.RetrieveByID(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	return link, nil
}

// ListLinks returns one page of the owner's active links, newest first. A
// non-empty search narrows the page to links whose short code or original
// URL contains it, ignoring case.
func (uc *LinkUseCase) ListLinks(ctx context.Context, ownerID, search string, after *entity.Cursor, limit int) (*entity.LinkPage, error) {
	const op = "usecase.LinkUseCase.ListLinks"

	if err := entity.ValidateOwner(ownerID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	search = strings.TrimSpace(search)
	if !utf8.ValidString(search) || utf8.RuneCountInString(search) > MaxSearchLength {
		return nil, fmt.Errorf("%s: search must be valid text of at most %d characters: %w", op, MaxSearchLength, entity.ErrInvalidInput)
	}

	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	links, err := uc.linkRepo.ListByOwner(ctx, ownerID, search, after, limit+1)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list links: %w", op, err)
	}

	page := &entity.LinkPage{Links: links}
	if len(links) > limit {
		page.Links = links[:limit]
		page.Next = entity.CursorFor(page.Links[limit-1])
	}

	return page, nil
}

// AllLinks lazily walks every active link of the owner, page by page. The
// sequence can be ranged over again to restart from the newest link.
func (uc *LinkUseCase) AllLinks(ctx context.Context, ownerID string, pageSize int) iter.Seq2[entity.Link, error] {
	return func(yield func(entity.Link, error) bool) {
		var after *entity.Cursor

		for {
			page, err := uc.ListLinks(ctx, ownerID, "", after, pageSize)
			if err != nil {
				yield(entity.Link{}, err)
				return
			}

			for _, link := range page.Links {
				if !yield(link, nil) {
					return
				}
			}

			if page.Next == nil {
				return
			}
			after = page.Next
		}
	}
}

// DeleteLink tombstones a link owned by ownerID. Links of other owners are
// reported as not found.
func (uc *LinkUseCase) DeleteLink(ctx context.Context, ownerID string, id uuid.UUID) error {
	const op = "usecase.LinkUseCase.DeleteLink"

	link, err := uc.linkRepo.SoftDelete(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, entity.ErrForbidden) {
			uc.logger.Warn("delete of foreign link rejected",
				logger.String("owner_id", ownerID),
				logger.Stringer("link_id", id))

			return fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return fmt.Errorf("%s: failed to delete link: %w", op, err)
	}

	if err := uc.cache.Delete(ctx, link.ShortCode); err != nil {
		uc.logger.Warn("failed to invalidate cached link",
			logger.String("short_code", link.ShortCode),
			logger.Error(err))
	}

	return nil
}

// ValidateURL checks that raw is an absolute http or https URL with a host and
// returns it trimmed.
func ValidateURL(raw string) (string, error) {
	const op = "usecase.ValidateURL"

	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxOriginalURLLength {
		return "", fmt.Errorf("%s: bad url length: %w", op, entity.ErrInvalidInput)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, entity.ErrInvalidInput, err)
	}

	if !u.IsAbs() || u.Host == "" || u.Hostname() == "" {
		return "", fmt.Errorf("%s: url is not absolute: %w", op, entity.ErrInvalidInput)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("%s: unsupported scheme %q: %w", op, u.Scheme, entity.ErrInvalidInput)
	}

	return raw, nil
}
