package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// PoolMetrics exports go-redis pool statistics.
type PoolMetrics struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	timeouts prometheus.Counter
	total    prometheus.Gauge
	idle     prometheus.Gauge
}

func NewPoolMetrics() *PoolMetrics {
	return &PoolMetrics{
		hits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentd_redis_pool_hits_total",
			Help: "Number of times a connection was found in the pool",
		}),
		misses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentd_redis_pool_misses_total",
			Help: "Number of times a connection was not found in the pool",
		}),
		timeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentd_redis_pool_timeouts_total",
			Help: "Number of times a connection was not obtained due to timeout",
		}),
		total: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "consentd_redis_pool_total_conns",
			Help: "Number of total connections in the pool",
		}),
		idle: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "consentd_redis_pool_idle_conns",
			Help: "Number of idle connections in the pool",
		}),
	}
}

// Client wraps the go-redis client with health checking. Challenges and
// upstream sessions share it.
type Client struct {
	*redis.Client
	metrics   *PoolMetrics
	lastStats *redis.PoolStats
}

// New connects to url. It returns nil, nil when url is empty so callers can
// fall back to in-memory stores.
func New(ctx context.Context, url string, m *PoolMetrics) (*Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client, metrics: m}, nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RecordPoolStats pushes pool statistics into the metrics. Counters advance
// by the delta since the previous call.
func (c *Client) RecordPoolStats() {
	if c.metrics == nil {
		return
	}
	stats := c.PoolStats()
	c.metrics.total.Set(float64(stats.TotalConns))
	c.metrics.idle.Set(float64(stats.IdleConns))

	var prev redis.PoolStats
	if c.lastStats != nil {
		prev = *c.lastStats
	}
	if stats.Hits > prev.Hits {
		c.metrics.hits.Add(float64(stats.Hits - prev.Hits))
	}
	if stats.Misses > prev.Misses {
		c.metrics.misses.Add(float64(stats.Misses - prev.Misses))
	}
	if stats.Timeouts > prev.Timeouts {
		c.metrics.timeouts.Add(float64(stats.Timeouts - prev.Timeouts))
	}
	c.lastStats = stats
}

// RunPoolStats records pool statistics every interval until ctx is done.
func (c *Client) RunPoolStats(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.RecordPoolStats()
		}
	}
}
