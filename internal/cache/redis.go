// Package cache keeps externally produced reports in Redis so a repeated
// document does not trigger another language model call.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/raaihank/gdpr-sentinel/internal/compliance"
	"go.uber.org/zap"
)

// ReportCache handles Redis-based caching of analysis reports
type ReportCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// NewReportCache connects to Redis and verifies the connection
func NewReportCache(config *Config, logger *zap.Logger) (*ReportCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.MaxConnections > 0 {
		opts.PoolSize = config.MaxConnections
	}
	opts.MinIdleConns = config.MinIdleConns
	if config.KeyPrefix == "" {
		config.KeyPrefix = "gdpr"
	}

	cache := &ReportCache{
		client: redis.NewClient(opts),
		config: config,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.client.Ping(ctx).Err(); err != nil {
		cache.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Report cache initialized successfully",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", opts.PoolSize),
		zap.Duration("default_ttl", config.DefaultTTL))

	return cache, nil
}

// GetReport returns the cached report for key. Redis errors are reported as
// misses so a cache outage never blocks analysis.
func (rc *ReportCache) GetReport(ctx context.Context, key string) (*compliance.Report, bool, error) {
	cacheKey := rc.reportKey(key)

	data, err := rc.client.Get(ctx, cacheKey).Bytes()
	if err == redis.Nil {
		rc.misses.Add(1)
		rc.logger.Debug("Cache miss", zap.String("key", cacheKey))
		return nil, false, nil
	} else if err != nil {
		rc.misses.Add(1)
		rc.logger.Error("Cache lookup failed", zap.Error(err))
		return nil, false, nil
	}

	var cached cachedReport
	if err := json.Unmarshal(data, &cached); err != nil || cached.Report == nil {
		rc.logger.Error("Failed to unmarshal cached report", zap.Error(err))
		rc.client.Del(ctx, cacheKey)
		rc.misses.Add(1)
		return nil, false, nil
	}

	rc.hits.Add(1)
	rc.logger.Debug("Cache hit", zap.String("key", cacheKey), zap.Time("cached_at", cached.CachedAt))
	return cached.Report, true, nil
}

// SetReport stores a report under key with the configured TTL
func (rc *ReportCache) SetReport(ctx context.Context, key string, report *compliance.Report) error {
	cacheKey := rc.reportKey(key)

	data, err := json.Marshal(cachedReport{
		Report:   report,
		CachedAt: time.Now().UTC(),
		TTL:      int64(rc.config.DefaultTTL.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal report for caching: %w", err)
	}

	if err := rc.client.Set(ctx, cacheKey, data, rc.config.DefaultTTL).Err(); err != nil {
		rc.logger.Error("Failed to cache report", zap.Error(err))
		return fmt.Errorf("failed to cache report: %w", err)
	}

	rc.logger.Debug("Report cached successfully",
		zap.String("key", cacheKey),
		zap.Float64("overall_score", report.OverallScore))
	return nil
}

// GetStats returns cache performance statistics
func (rc *ReportCache) GetStats(ctx context.Context) (*Stats, error) {
	info, err := rc.client.Info(ctx, "memory").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	stats := &Stats{Hits: rc.hits.Load(), Misses: rc.misses.Load()}
	stats.HitRate = hitRate(stats.Hits, stats.Misses)
	stats.MemoryUsage = parseUsedMemory(info)

	if keys, err := rc.client.DBSize(ctx).Result(); err == nil {
		stats.TotalKeys = keys
	}
	return stats, nil
}

// Clear removes all cached reports under the key prefix
func (rc *ReportCache) Clear(ctx context.Context) error {
	iter := rc.client.Scan(ctx, 0, rc.config.KeyPrefix+":report:*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := rc.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	rc.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (rc *ReportCache) Close() error {
	if rc.client != nil {
		return rc.client.Close()
	}
	return nil
}

func (rc *ReportCache) reportKey(key string) string {
	return fmt.Sprintf("%s:report:%s", rc.config.KeyPrefix, key)
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

func parseUsedMemory(info string) int64 {
	for _, line := range strings.Split(info, "\r\n") {
		if memStr, ok := strings.CutPrefix(line, "used_memory:"); ok {
			if mem, err := strconv.ParseInt(memStr, 10, 64); err == nil {
				return mem
			}
		}
	}
	return 0
}

// maskRedisURL hides the password in a Redis URL for logging
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userPart := url[:at]
	colon := strings.LastIndex(userPart, ":")
	if colon <= strings.Index(userPart, "://")+2 {
		return url
	}
	return userPart[:colon+1] + "***" + url[at:]
}
