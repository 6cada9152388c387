// Package cache keeps download sets in redis so repeated exports of the same
// filter do not refetch the full result from the lending API.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/simp-lee/lendpanel/internal/remote"
	"github.com/simp-lee/lendpanel/internal/table"
)

const keyPrefix = "lendpanel:download:"

// Recorder receives cache lookup outcomes.
type Recorder interface {
	CacheLookup(result string)
}

// DownloadCache is a table.Fetcher that serves download requests from redis
// and passes everything else through.
type DownloadCache struct {
	next     table.Fetcher
	client   *redis.Client
	ttl      time.Duration
	logger   *slog.Logger
	recorder Recorder
}

// NewDownloadCache wraps next. A nil client disables caching.
func NewDownloadCache(next table.Fetcher, client *redis.Client, ttl time.Duration, logger *slog.Logger, recorder Recorder) *DownloadCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &DownloadCache{
		next:     next,
		client:   client,
		ttl:      ttl,
		logger:   logger,
		recorder: recorder,
	}
}

// Get implements table.Fetcher.
func (c *DownloadCache) Get(ctx context.Context, token string, req remote.Request) ([]byte, error) {
	if c.client == nil || !strings.HasPrefix(req.Kind, "download") || strings.TrimSpace(token) == "" {
		return c.next.Get(ctx, token, req)
	}

	key := Key(token, req)
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		c.record("hit")
		return data, nil
	case errors.Is(err, redis.Nil):
		c.record("miss")
	default:
		c.record("error")
		c.logger.WarnContext(ctx, "download cache read failed", slog.String("error", err.Error()))
	}

	body, err := c.next.Get(ctx, token, req)
	if err != nil {
		return nil, err
	}
	// The caller reports the decode error; only well-formed sets are kept.
	if _, err := remote.DecodeRows(body); err != nil {
		c.logger.WarnContext(ctx, "download set not cached", slog.String("error", err.Error()))
		return body, nil
	}
	if err := c.client.Set(ctx, key, body, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "download cache write failed", slog.String("error", err.Error()))
	}
	return body, nil
}

// Key derives the cache key for a request. The token is hashed so the
// cached set stays scoped to the session that fetched it.
func Key(token string, req remote.Request) string {
	sum := sha256.Sum256([]byte(token))
	return keyPrefix + hex.EncodeToString(sum[:8]) + ":" + req.Endpoint + "?" + req.Params.Encode()
}

func (c *DownloadCache) record(result string) {
	if c.recorder != nil {
		c.recorder.CacheLookup(result)
	}
}
