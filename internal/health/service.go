package health

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"zinara-backend/internal/middleware"
	"zinara-backend/internal/models"
)

// Service aggregates process, database and traffic health.
type Service struct {
	DB  *gorm.DB
	Rdb *redis.Client
}

type RuntimeInfo struct {
	GoVersion  string `json:"go_version"`
	Goroutines int    `json:"goroutines"`
	AllocMB    uint64 `json:"alloc_mb"`
	SysMB      uint64 `json:"sys_mb"`
	NumGC      uint32 `json:"num_gc"`
}

type TrafficInfo struct {
	ReqTotal     int64   `json:"req_total"`
	ReqErrors    int64   `json:"req_errors"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
	StartTime    string  `json:"start_time,omitempty"`
	LastRequest  string  `json:"last_request,omitempty"`
}

type DependencyInfo struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// QueueInfo mirrors the HQ work queues so operators can spot backlog from the
// health endpoint alone.
type QueueInfo struct {
	OpenRequests   int64 `json:"open_requests"`
	SentTransfers  int64 `json:"sent_transfers"`
	PendingReturns int64 `json:"pending_returns"`
}

type CollectResult struct {
	Status       string           `json:"status"`
	Time         string           `json:"time"`
	Runtime      RuntimeInfo      `json:"runtime"`
	Traffic      *TrafficInfo     `json:"traffic,omitempty"`
	Queues       *QueueInfo       `json:"queues,omitempty"`
	Dependencies []DependencyInfo `json:"dependencies"`
}

// Collect probes the database and redis and snapshots runtime stats. Status is
// "degraded" when any dependency check fails.
func (s *Service) Collect(ctx context.Context) *CollectResult {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	out := &CollectResult{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
		Runtime: RuntimeInfo{
			GoVersion:  runtime.Version(),
			Goroutines: runtime.NumGoroutine(),
			AllocMB:    mem.Alloc / 1024 / 1024,
			SysMB:      mem.Sys / 1024 / 1024,
			NumGC:      mem.NumGC,
		},
	}

	out.Dependencies = append(out.Dependencies, s.checkDatabase(ctx))
	if s.Rdb != nil {
		out.Dependencies = append(out.Dependencies, s.checkRedis(ctx))
		out.Traffic = s.collectTraffic(ctx)
	}
	for _, d := range out.Dependencies {
		if d.Status != "ok" {
			out.Status = "degraded"
		}
	}
	if q, err := s.collectQueues(ctx); err == nil {
		out.Queues = q
	}
	return out
}

func (s *Service) checkDatabase(ctx context.Context) DependencyInfo {
	dep := DependencyInfo{Name: "database", Status: "ok"}
	start := time.Now()
	sqlDB, err := s.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	dep.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		dep.Status = "error"
		dep.Error = err.Error()
	}
	return dep
}

func (s *Service) checkRedis(ctx context.Context) DependencyInfo {
	dep := DependencyInfo{Name: "redis", Status: "ok"}
	start := time.Now()
	err := s.Rdb.Ping(ctx).Err()
	dep.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		dep.Status = "error"
		dep.Error = err.Error()
	}
	return dep
}

func (s *Service) collectTraffic(ctx context.Context) *TrafficInfo {
	vals, err := s.Rdb.MGet(ctx,
		middleware.KeyReqTotal,
		middleware.KeyReqErrors,
		middleware.KeyResTimeTotal,
		middleware.KeyResCount,
		middleware.KeyStartTime,
		middleware.KeyLastRequest,
	).Result()
	if err != nil || len(vals) < 6 {
		return nil
	}

	t := &TrafficInfo{
		ReqTotal:  asInt64(vals[0]),
		ReqErrors: asInt64(vals[1]),
	}
	if count := asInt64(vals[3]); count > 0 {
		t.AvgLatencyMS = float64(asInt64(vals[2])) / float64(count)
	}
	if s, ok := vals[4].(string); ok {
		t.StartTime = s
	}
	if s, ok := vals[5].(string); ok {
		t.LastRequest = s
	}
	return t
}

func (s *Service) collectQueues(ctx context.Context) (*QueueInfo, error) {
	db := s.DB.WithContext(ctx)
	var q QueueInfo
	if err := db.Model(&models.StockRequest{}).Where("status = ?", models.RequestOpen).Count(&q.OpenRequests).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Transfer{}).Where("status = ?", models.ManifestSent).Count(&q.SentTransfers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Return{}).Where("status = ?", models.ManifestSent).Count(&q.PendingReturns).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func asInt64(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
