package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultCacheTTL is used when no TTL is configured.
	DefaultCacheTTL = 24 * time.Hour
	// DefaultCacheNamespace prefixes every cache key.
	DefaultCacheNamespace = "lingolens:translate"
)

// CachingTranslator decorates a Translator with Redis caching.
//
// Cache failures never fail a translation. With a nil client every call goes
// straight to the wrapped translator.
type CachingTranslator struct {
	inner     Translator
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// NewCachingTranslator wraps inner. A ttl of 0 selects DefaultCacheTTL and an empty
// namespace selects DefaultCacheNamespace.
func NewCachingTranslator(rdb *redis.Client, ttl time.Duration, inner Translator, namespace string) *CachingTranslator {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if namespace == "" {
		namespace = DefaultCacheNamespace
	}
	return &CachingTranslator{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// Translate returns the cached translation or asks the wrapped translator and
// stores its answer.
func (c *CachingTranslator) Translate(ctx context.Context, source, target, text string) (*TranslationResponse, error) {
	if c.rdb == nil {
		return c.inner.Translate(ctx, source, target, text)
	}

	key := c.cacheKey(source, target, text)

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out TranslationResponse
		if err := json.Unmarshal(b, &out); err == nil {
			return &out, nil
		}
		_ = c.rdb.Del(ctx, key).Err()
	}

	out, err := c.inner.Translate(ctx, source, target, text)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	return out, nil
}

func (c *CachingTranslator) cacheKey(source, target, text string) string {
	return fmt.Sprintf("%s:%s:%s:%s", c.namespace, safe(source), safe(target), safe(text))
}

// safe escapes the key separator and whitespace so distinct texts never share a key.
func safe(s string) string {
	return url.QueryEscape(s)
}
