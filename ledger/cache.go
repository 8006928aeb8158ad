package ledger

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const cacheOpTimeout = 500 * time.Millisecond

// CachedReader keeps recent ledger reads in Redis for a short ttl and
// collapses concurrent reads of the same wallet into one node call.
// Errors are never cached, and Redis failures fall through to the node.
type CachedReader struct {
	inner  Reader
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
	group  singleflight.Group
}

// NewCachedReader wraps inner. A nil client or non-positive ttl disables
// the Redis layer; concurrent reads are still collapsed.
func NewCachedReader(inner Reader, client *redis.Client, ttl time.Duration, log *zap.Logger) *CachedReader {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedReader{inner: inner, client: client, ttl: ttl, log: log}
}

func balanceKey(address string) string {
	return "daka:ledger:balance:" + address
}

func signaturesKey(address string, limit int) string {
	return "daka:ledger:signatures:" + address + ":" + strconv.Itoa(limit)
}

// GetBalance implements Reader.
func (c *CachedReader) GetBalance(ctx context.Context, address string) (uint64, error) {
	key := balanceKey(address)
	if raw, ok := c.lookup(ctx, key); ok {
		if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
			return n, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		balance, err := c.inner.GetBalance(ctx, address)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, strconv.FormatUint(balance, 10))
		return balance, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

// GetSignatures implements Reader.
func (c *CachedReader) GetSignatures(ctx context.Context, address string, limit int) ([]Signature, error) {
	key := signaturesKey(address, limit)
	if raw, ok := c.lookup(ctx, key); ok {
		var sigs []Signature
		if err := json.Unmarshal([]byte(raw), &sigs); err == nil {
			return sigs, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		sigs, err := c.inner.GetSignatures(ctx, address, limit)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(sigs); err == nil {
			c.store(ctx, key, string(raw))
		}
		return sigs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Signature), nil
}

func (c *CachedReader) enabled() bool {
	return c.client != nil && c.ttl > 0
}

func (c *CachedReader) lookup(ctx context.Context, key string) (string, bool) {
	if !c.enabled() {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug("ledger cache read failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return raw, true
}

func (c *CachedReader) store(ctx context.Context, key, value string) {
	if !c.enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheOpTimeout)
	defer cancel()
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.log.Debug("ledger cache write failed", zap.String("key", key), zap.Error(err))
	}
}
