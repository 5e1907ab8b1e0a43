package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

// redisCollector exports health of the Redis backing the rate limiter. The
// service stays up when Redis is down (limiter fails open), so the gauge is
// the only way operators notice.
type redisCollector struct {
	rdb    *redis.Client
	logger *slog.Logger

	upDesc      *prometheus.Desc
	rlKeysDesc  *prometheus.Desc
	pingSecDesc *prometheus.Desc
}

func newRedisCollector(rdb *redis.Client, logger *slog.Logger) *redisCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisCollector{
		rdb:    rdb,
		logger: logger,
		upDesc: prometheus.NewDesc(
			"docharvest_redis_up",
			"Whether the Redis backing the rate limiter is reachable (1) or not (0).",
			nil, nil,
		),
		rlKeysDesc: prometheus.NewDesc(
			"docharvest_ratelimit_buckets",
			"Number of live rate-limit bucket keys in Redis.",
			nil, nil,
		),
		pingSecDesc: prometheus.NewDesc(
			"docharvest_redis_ping_seconds",
			"Round-trip time of a Redis PING issued during scrape.",
			nil, nil,
		),
	}
}

func (c *redisCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.upDesc
	ch <- c.rlKeysDesc
	ch <- c.pingSecDesc
}

func (c *redisCollector) Collect(ch chan<- prometheus.Metric) {
	if c.rdb == nil {
		return
	}

	// Keep Redis reads bounded so scrapes do not hang.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.logger.Warn("prometheus redis collector failed", "err", err)
		emitGauge(ch, c.upDesc, 0)
		return
	}
	emitGauge(ch, c.upDesc, 1)
	emitGauge(ch, c.pingSecDesc, time.Since(start).Seconds())

	var count float64
	iter := c.rdb.Scan(ctx, 0, "docharvest:rl:*", 500).Iterator()
	for iter.Next(ctx) {
		count++
		if count >= 10000 {
			break
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("prometheus redis key scan failed", "err", err)
		return
	}
	emitGauge(ch, c.rlKeysDesc, count)
}

func emitGauge(ch chan<- prometheus.Metric, desc *prometheus.Desc, v float64) {
	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, v)
	if err != nil {
		return
	}
	ch <- m
}

var registerRedisCollectorOnce sync.Once

func RegisterRedisCollector(rdb *redis.Client, logger *slog.Logger) {
	registerRedisCollectorOnce.Do(func() {
		prometheus.MustRegister(newRedisCollector(rdb, logger))
	})
}
