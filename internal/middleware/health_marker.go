package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Redis keys for the rolling traffic counters surfaced by /health/json.
const (
	KeyReqTotal     = "health:global:req_total"
	KeyReqErrors    = "health:global:req_errors"
	KeyResTimeTotal = "health:global:res_time_total_ms"
	KeyResCount     = "health:global:res_count"
	KeyStartTime    = "health:global:start_time"
	KeyLastRequest  = "health:global:last_request"
)

// HealthMarker records request counts, error counts and cumulative latency in
// Redis. Counter failures never fail the request.
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if rdb == nil {
			return err
		}

		ctx := context.Background()
		pipe := rdb.Pipeline()
		pipe.Incr(ctx, KeyReqTotal)
		pipe.IncrBy(ctx, KeyResTimeTotal, time.Since(start).Milliseconds())
		pipe.Incr(ctx, KeyResCount)
		pipe.Set(ctx, KeyLastRequest, time.Now().UTC().Format(time.RFC3339), 0)
		if err != nil || c.Response().StatusCode() >= fiber.StatusInternalServerError {
			pipe.Incr(ctx, KeyReqErrors)
		}
		_, _ = pipe.Exec(ctx)
		return err
	}
}

// MarkStartTime stamps process start once so uptime survives restarts of the
// counter keys.
func MarkStartTime(rdb *redis.Client) {
	if rdb == nil {
		return
	}
	_ = rdb.SetNX(context.Background(), KeyStartTime, time.Now().UTC().Format(time.RFC3339), 0).Err()
}
