// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/brevy/brevy/internal/cache"
	"github.com/brevy/brevy/internal/metrics"
	"github.com/brevy/brevy/internal/model"
	"github.com/brevy/brevy/internal/repository"
	"github.com/brevy/brevy/internal/shortcode"
)

// Service errors.
var (
	ErrInvalidDestination  = errors.New("invalid destination URL")
	ErrURLTooLong          = errors.New("destination URL too long")
	ErrInvalidSlug         = errors.New("invalid slug format")
	ErrSlugTaken           = errors.New("slug already taken")
	ErrGenerationExhausted = errors.New("short code generation exhausted")
	ErrExpiresInPast       = errors.New("expires_at must be in the future")
	ErrInvalidRedirectType = errors.New("invalid redirect type")
	ErrLinkNotFound        = errors.New("link not found")
	ErrLinkExpired         = errors.New("link is expired")
	ErrLinkDisabled        = errors.New("link is disabled")

	// ErrStoreUnavailable marks store connectivity failures. It is a
	// distinct condition from ErrLinkNotFound: "cannot ask the store" must
	// never be conflated with "the store says no such link".
	ErrStoreUnavailable = errors.New("link store unavailable")
)

const maxDestinationLength = 2048

// LinkRepository is the durable store behind the service.
type LinkRepository interface {
	CreateLink(ctx context.Context, link *model.Link) error
	GetLinkByID(ctx context.Context, id string) (*model.Link, error)
	GetLinkByShortCode(ctx context.Context, shortCode string) (*model.Link, error)
	ShortCodeExists(ctx context.Context, shortCode string) (bool, error)
	ListLinks(ctx context.Context, filter repository.LinkFilter, cursor string, limit int) ([]*model.Link, string, error)
	UpdateLink(ctx context.Context, link *model.Link) error
	DeleteLink(ctx context.Context, id string) error
}

// LinkCache is the lookup cache in front of the repository.
type LinkCache interface {
	GetLink(ctx context.Context, shortCode string) (*model.CachedLink, error)
	SetLink(ctx context.Context, shortCode string, link *model.Link) error
	DeleteLink(ctx context.Context, shortCode string) error
	IsNegativelyCached(ctx context.Context, shortCode string) (bool, error)
	SetNegativeCache(ctx context.Context, shortCode string) error
	IncrementClicks(ctx context.Context, shortCode string) error
}

// LinkService handles link business logic.
type LinkService struct {
	repo              LinkRepository
	cache             LinkCache
	gen               *shortcode.Generator
	logger            *slog.Logger
	metrics           metrics.Recorder
	baseURL           string
	storeRetryTimeout time.Duration
}

// NewLinkService creates a new LinkService.
func NewLinkService(
	repo LinkRepository,
	linkCache LinkCache,
	gen *shortcode.Generator,
	logger *slog.Logger,
	recorder metrics.Recorder,
	baseURL string,
	storeRetryTimeout time.Duration,
) *LinkService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if storeRetryTimeout <= 0 {
		storeRetryTimeout = 500 * time.Millisecond
	}
	return &LinkService{
		repo:              repo,
		cache:             linkCache,
		gen:               gen,
		logger:            logger.With("component", "service.link"),
		metrics:           recorder,
		baseURL:           strings.TrimSuffix(baseURL, "/"),
		storeRetryTimeout: storeRetryTimeout,
	}
}

// CreateLinkInput defines input for creating a link.
type CreateLinkInput struct {
	Destination  string
	CustomSlug   string
	RedirectType int
	ExpiresAt    *time.Time
}

// CreateLink creates a new short link.
//
// For custom slugs the availability check is a courtesy; for generated codes
// the candidate sequence is consumed until an insert wins. Either way the
// database unique constraint settles concurrent races: of two inserts
// proposing the same code, exactly one succeeds.
func (s *LinkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	if err := validateDestination(input.Destination); err != nil {
		return nil, err
	}

	redirectType := model.RedirectTemporary // default 302
	if input.RedirectType != 0 {
		redirectType = model.RedirectType(input.RedirectType)
		if !redirectType.IsValid() {
			return nil, ErrInvalidRedirectType
		}
	}

	if input.ExpiresAt != nil && input.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpiresInPast
	}

	now := time.Now().UTC()
	link := &model.Link{
		ID:           ulid.Make().String(),
		Destination:  input.Destination,
		RedirectType: redirectType,
		IsCustomCode: input.CustomSlug != "",
		Enabled:      true,
		ExpiresAt:    input.ExpiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var err error
	if input.CustomSlug != "" {
		err = s.insertWithSlug(ctx, link, input.CustomSlug)
	} else {
		err = s.insertWithGeneratedCode(ctx, link)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.IncLinkCreated()

	return link, nil
}

// insertWithSlug validates a user-chosen slug and attempts the insert.
func (s *LinkService) insertWithSlug(ctx context.Context, link *model.Link, slug string) error {
	if err := shortcode.ValidateSlug(slug); err != nil {
		return ErrInvalidSlug
	}

	taken, err := s.repo.ShortCodeExists(ctx, slug)
	if err != nil {
		return fmt.Errorf("check slug availability: %w", err)
	}
	if taken {
		return ErrSlugTaken
	}

	link.ShortCode = slug
	if err := s.repo.CreateLink(ctx, link); err != nil {
		if errors.Is(err, repository.ErrCodeExists) {
			// Lost the race to a concurrent creation of the same slug.
			return ErrSlugTaken
		}
		return fmt.Errorf("create link: %w", err)
	}

	return nil
}

// insertWithGeneratedCode consumes random candidates until an insert wins.
func (s *LinkService) insertWithGeneratedCode(ctx context.Context, link *model.Link) error {
	seq := s.gen.Candidates()

	for {
		code, err := seq.Next()
		if err != nil {
			if errors.Is(err, shortcode.ErrGenerationExhausted) {
				// Near-impossible with base62 at these lengths; signals
				// pool pressure rather than a routine failure.
				return ErrGenerationExhausted
			}
			return fmt.Errorf("draw code candidate: %w", err)
		}

		exists, err := s.repo.ShortCodeExists(ctx, code)
		if err != nil {
			return fmt.Errorf("check code availability: %w", err)
		}
		if exists {
			continue
		}

		link.ShortCode = code
		err = s.repo.CreateLink(ctx, link)
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrCodeExists) {
			// Concurrent insert claimed this code between the check and
			// the insert; move to the next candidate.
			continue
		}
		return fmt.Errorf("create link: %w", err)
	}
}

// GetLink retrieves a link by ID.
func (s *LinkService) GetLink(ctx context.Context, id string) (*model.Link, error) {
	link, err := s.repo.GetLinkByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}

	return link, nil
}

// ListLinksInput defines input for listing links.
type ListLinksInput struct {
	Cursor        string
	Limit         int
	Status        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// ListLinksOutput defines output for listing links.
type ListLinksOutput struct {
	Links      []*model.Link
	NextCursor string
	HasMore    bool
}

// ListLinks retrieves a paginated list of links.
func (s *LinkService) ListLinks(ctx context.Context, input ListLinksInput) (*ListLinksOutput, error) {
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = 20
	}

	filter := repository.LinkFilter{
		CreatedAfter:  input.CreatedAfter,
		CreatedBefore: input.CreatedBefore,
	}

	links, nextCursor, err := s.repo.ListLinks(ctx, filter, input.Cursor, input.Limit)
	if err != nil {
		return nil, err
	}

	// Status is computed per link, so filter at the application level.
	if input.Status != "" {
		filtered := make([]*model.Link, 0, len(links))
		targetStatus := model.LinkStatus(input.Status)
		for _, link := range links {
			if link.Status() == targetStatus {
				filtered = append(filtered, link)
			}
		}
		links = filtered
	}

	return &ListLinksOutput{
		Links:      links,
		NextCursor: nextCursor,
		HasMore:    nextCursor != "",
	}, nil
}

// UpdateLinkInput defines input for updating a link.
type UpdateLinkInput struct {
	ID           string
	Destination  *string
	RedirectType *int
	ExpiresAt    *time.Time
	Enabled      *bool
	ClearExpiry  bool // if true, set expires_at to nil
}

// UpdateLink updates a link's mutable fields. The cache entry is dropped
// only after the store write commits; invalidating first would let a
// concurrent reader repopulate the cache with pre-mutation data.
func (s *LinkService) UpdateLink(ctx context.Context, input UpdateLinkInput) (*model.Link, error) {
	link, err := s.repo.GetLinkByID(ctx, input.ID)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}

	if input.Destination != nil {
		if err := validateDestination(*input.Destination); err != nil {
			return nil, err
		}
		link.Destination = *input.Destination
	}

	if input.RedirectType != nil {
		redirectType := model.RedirectType(*input.RedirectType)
		if !redirectType.IsValid() {
			return nil, ErrInvalidRedirectType
		}
		link.RedirectType = redirectType
	}

	if input.ClearExpiry {
		link.ExpiresAt = nil
	} else if input.ExpiresAt != nil {
		if input.ExpiresAt.Before(time.Now()) {
			return nil, ErrExpiresInPast
		}
		link.ExpiresAt = input.ExpiresAt
	}

	if input.Enabled != nil {
		link.Enabled = *input.Enabled
	}

	link.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateLink(ctx, link); err != nil {
		return nil, err
	}

	s.metrics.IncLinkUpdated()

	s.invalidate(ctx, link.ShortCode)

	return link, nil
}

// DeleteLink soft-deletes a link and invalidates its cache entry.
func (s *LinkService) DeleteLink(ctx context.Context, id string) error {
	// Fetch first to know the short code for cache invalidation.
	link, err := s.repo.GetLinkByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return ErrLinkNotFound
		}
		return err
	}

	if err := s.repo.DeleteLink(ctx, id); err != nil {
		return err
	}

	s.metrics.IncLinkDeleted()

	s.invalidate(ctx, link.ShortCode)

	return nil
}

// Resolve maps a short code to its link for redirecting.
// This is the hot path: cache first, store on miss, backfill, then state
// evaluation. The bool result reports whether the cache served the lookup.
func (s *LinkService) Resolve(ctx context.Context, shortCode string) (*model.Link, bool, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveRedirectDuration(time.Since(start))
	}()

	// Step 1: try cache.
	cached, err := s.cache.GetLink(ctx, shortCode)
	if err == nil {
		s.metrics.IncCacheHit()
		link, err := s.evaluate(ctx, cached.ToLink(shortCode), shortCode)
		return link, true, err
	}

	if errors.Is(err, cache.ErrCacheMiss) {
		s.metrics.IncCacheMiss()

		// Step 2: a confirmed miss may be negatively cached.
		if isNegative, _ := s.cache.IsNegativelyCached(ctx, shortCode); isNegative {
			return nil, false, ErrLinkNotFound
		}
	} else {
		// Cache connectivity error: fail open, the store is authoritative.
		s.logger.Warn("cache lookup failed, falling through to store",
			"short_code", shortCode,
			"error", err,
		)
	}

	// Step 3: store lookup.
	link, err := s.lookupStore(ctx, shortCode)
	if err != nil {
		if errors.Is(err, ErrLinkNotFound) {
			if cacheErr := s.cache.SetNegativeCache(ctx, shortCode); cacheErr != nil {
				s.logger.Warn("failed to set negative cache",
					"short_code", shortCode,
					"error", cacheErr,
				)
			}
		}
		return nil, false, err
	}

	// Step 4: backfill the cache.
	if err := s.cache.SetLink(ctx, shortCode, link); err != nil {
		s.logger.Warn("failed to backfill cache",
			"short_code", shortCode,
			"error", err,
		)
	}

	// Step 5: evaluate state.
	link, err = s.evaluate(ctx, link, shortCode)
	return link, false, err
}

// RecordClick bumps the Redis click counter without blocking the caller.
// A background flusher moves the counts to the database.
func (s *LinkService) RecordClick(shortCode string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := s.cache.IncrementClicks(ctx, shortCode); err != nil {
			s.logger.Warn("failed to increment click counter",
				"short_code", shortCode,
				"error", err,
			)
		}
	}()
}

// BaseURL returns the configured base URL.
func (s *LinkService) BaseURL() string {
	return s.baseURL
}

// lookupStore queries the repository, retrying once on connectivity
// failure with a short timeout before classifying it as unavailable.
func (s *LinkService) lookupStore(ctx context.Context, shortCode string) (*model.Link, error) {
	link, err := s.repo.GetLinkByShortCode(ctx, shortCode)
	if err == nil {
		return link, nil
	}
	if errors.Is(err, repository.ErrLinkNotFound) {
		return nil, ErrLinkNotFound
	}
	if ctx.Err() != nil {
		// Client gave up; not a store health signal.
		return nil, ctx.Err()
	}

	s.logger.Warn("store lookup failed, retrying",
		"short_code", shortCode,
		"error", err,
	)

	retryCtx, cancel := context.WithTimeout(ctx, s.storeRetryTimeout)
	defer cancel()

	link, err = s.repo.GetLinkByShortCode(retryCtx, shortCode)
	if err == nil {
		return link, nil
	}
	if errors.Is(err, repository.ErrLinkNotFound) {
		return nil, ErrLinkNotFound
	}

	return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// evaluate applies link-state policy: deleted or disabled links resolve as
// not found, expired links as gone.
func (s *LinkService) evaluate(ctx context.Context, link *model.Link, shortCode string) (*model.Link, error) {
	if link.DeletedAt != nil {
		return nil, ErrLinkNotFound
	}

	if !link.Enabled {
		return nil, ErrLinkDisabled
	}

	if link.IsExpired() {
		// Drop the stale entry so later lookups re-read the store.
		s.invalidate(ctx, shortCode)
		return nil, ErrLinkExpired
	}

	return link, nil
}

// invalidate drops a cache entry, logging rather than failing on error:
// the TTL still bounds staleness if the invalidate is lost.
func (s *LinkService) invalidate(ctx context.Context, shortCode string) {
	if err := s.cache.DeleteLink(ctx, shortCode); err != nil {
		s.logger.Warn("failed to invalidate cache entry",
			"short_code", shortCode,
			"error", err,
		)
	}
}

// validateDestination validates a destination URL.
func validateDestination(dest string) error {
	if dest == "" {
		return ErrInvalidDestination
	}

	if len(dest) > maxDestinationLength {
		return ErrURLTooLong
	}

	parsed, err := url.Parse(dest)
	if err != nil {
		return ErrInvalidDestination
	}

	// Only allow http and https schemes
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidDestination
	}

	// Must have a host
	if parsed.Host == "" {
		return ErrInvalidDestination
	}

	return nil
}
