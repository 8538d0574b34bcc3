package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brevy/brevy/internal/model"
)

// Cache key prefixes.
const (
	linkKeyPrefix     = "link:"
	negCacheKeySuffix = ":neg"
	clicksKeyPrefix   = "clicks:"
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// GetLink retrieves a link entry from cache by short code.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetLink(ctx context.Context, shortCode string) (*model.CachedLink, error) {
	key := linkKeyPrefix + shortCode

	result, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	if len(result) == 0 {
		return nil, ErrCacheMiss
	}

	cached := &model.CachedLink{
		LinkID:       result["link_id"],
		Destination:  result["destination"],
		RedirectType: result["redirect_type"],
		ExpiresAt:    result["expires_at"],
		Enabled:      result["enabled"],
		DeletedAt:    result["deleted_at"],
		UpdatedAt:    result["updated_at"],
	}

	return cached, nil
}

// SetLink stores a link entry. A write clears any negative entry for the
// same code, so a link created right after a failed lookup becomes visible
// as soon as the resolver backfills it.
func (c *Cache) SetLink(ctx context.Context, shortCode string, link *model.Link) error {
	key := linkKeyPrefix + shortCode

	ttl := entryTTL(link.ExpiresAt, c.opts.LinkTTL, time.Now())
	if ttl <= 0 {
		// Already expired; drop any stale entry instead of caching.
		if err := c.client.Del(ctx, key, key+negCacheKeySuffix).Err(); err != nil {
			return fmt.Errorf("failed to drop stale link entry: %w", err)
		}
		return nil
	}

	cached := link.ToCachedLink()
	fields := map[string]any{
		"link_id":       cached.LinkID,
		"destination":   cached.Destination,
		"redirect_type": cached.RedirectType,
		"enabled":       cached.Enabled,
		"updated_at":    cached.UpdatedAt,
	}

	// Only set optional fields if they have values
	if cached.ExpiresAt != "" {
		fields["expires_at"] = cached.ExpiresAt
	}
	if cached.DeletedAt != "" {
		fields["deleted_at"] = cached.DeletedAt
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache link: %w", err)
	}

	// A lost clear would keep a just-created link negatively cached for up
	// to the negative TTL, so this failure is surfaced, not swallowed.
	if err := c.client.Del(ctx, key+negCacheKeySuffix).Err(); err != nil {
		return fmt.Errorf("failed to clear negative cache entry: %w", err)
	}

	return nil
}

// DeleteLink removes a link entry and its negative marker.
// Mutating components call this after their store write commits.
func (c *Cache) DeleteLink(ctx context.Context, shortCode string) error {
	key := linkKeyPrefix + shortCode

	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete link from cache: %w", err)
	}

	return nil
}

// IsNegativelyCached checks if a short code is marked not-found.
// Always false when the negative cache is disabled.
func (c *Cache) IsNegativelyCached(ctx context.Context, shortCode string) (bool, error) {
	if !c.opts.NegativeEnabled {
		return false, nil
	}

	key := linkKeyPrefix + shortCode + negCacheKeySuffix

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetNegativeCache marks a short code as not found for a bounded window.
// No-op when the negative cache is disabled.
func (c *Cache) SetNegativeCache(ctx context.Context, shortCode string) error {
	if !c.opts.NegativeEnabled {
		return nil
	}

	key := linkKeyPrefix + shortCode + negCacheKeySuffix

	if err := c.client.SetEx(ctx, key, "", c.opts.NegativeTTL).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}

	return nil
}

// IncrementClicks increments the click counter for a code.
// Fire-and-forget on the redirect path.
func (c *Cache) IncrementClicks(ctx context.Context, shortCode string) error {
	key := clicksKeyPrefix + shortCode

	if err := c.client.Incr(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}

	return nil
}

// AddClicks adds a count back to a click counter.
// Used by the flusher to restore counts after a failed database write.
func (c *Cache) AddClicks(ctx context.Context, shortCode string, count int64) error {
	key := clicksKeyPrefix + shortCode

	if err := c.client.IncrBy(ctx, key, count).Err(); err != nil {
		return fmt.Errorf("failed to add clicks: %w", err)
	}

	return nil
}

// GetAndResetClicks gets the current click count and resets it.
// Used by the background flusher to move counts to PostgreSQL.
func (c *Cache) GetAndResetClicks(ctx context.Context, shortCode string) (int64, error) {
	key := clicksKeyPrefix + shortCode

	result, err := c.client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get and reset clicks: %w", err)
	}

	count, err := strconv.ParseInt(result, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse click count: %w", err)
	}

	return count, nil
}

// ScanClickKeys scans for all click counter keys.
// Used by the background flusher to find links with pending click updates.
func (c *Cache) ScanClickKeys(ctx context.Context) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		var scanKeys []string
		var err error

		scanKeys, cursor, err = c.client.Scan(ctx, cursor, clicksKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan click keys: %w", err)
		}

		keys = append(keys, scanKeys...)

		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

// ShortCodeFromClickKey extracts the short code from a click counter key.
func ShortCodeFromClickKey(key string) string {
	if len(key) > len(clicksKeyPrefix) {
		return key[len(clicksKeyPrefix):]
	}
	return ""
}

// entryTTL computes the TTL for a cached entry: the configured default,
// shortened so the entry never outlives the link's own expiry.
func entryTTL(expiresAt *time.Time, defaultTTL time.Duration, now time.Time) time.Duration {
	if expiresAt == nil {
		return defaultTTL
	}
	expiresIn := expiresAt.Sub(now)
	if expiresIn < defaultTTL {
		return expiresIn
	}
	return defaultTTL
}
