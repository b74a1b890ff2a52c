package service

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/yeisme/fileparser/pkg/cache"
	ctxPkg "github.com/yeisme/fileparser/pkg/context"
	"github.com/yeisme/fileparser/pkg/internal/model"
	"github.com/yeisme/fileparser/pkg/internal/types"
)

const (
	statsNamespace = "stats"
	statsAll       = "all"
)

// StatsService 汇总文件统计，结果按调用者缓存.
type StatsService struct {
	db    *gorm.DB
	cache *cache.Cache
	ttl   time.Duration
	log   zerolog.Logger

	// gen 每次失效递增，计算期间发生过失效的结果不保留在缓存中
	gen atomic.Uint64
}

// NewStatsService 创建 StatsService，c 为 nil 时不缓存.
func NewStatsService(db *gorm.DB, c *cache.Cache, ttl time.Duration, log zerolog.Logger) *StatsService {
	if c == nil {
		c = cache.NewCache(nil)
	}

	return &StatsService{db: db, cache: c, ttl: ttl, log: log}
}

func statsKey(ownerID uint) string {
	return cache.Key(statsNamespace, strconv.FormatUint(uint64(ownerID), 10))
}

// Stats 返回调用者的统计，管理员看到全部文件.
func (s *StatsService) Stats(ctx context.Context, id ctxPkg.Identity) (types.StatsResponse, error) {
	key := statsKey(id.UserID)
	if id.IsAdmin {
		key = cache.Key(statsNamespace, statsAll)
	}

	if cached, err := cache.Get[types.StatsResponse](ctx, s.cache, key); err == nil {
		return cached, nil
	}

	gen := s.gen.Load()

	resp, err := s.compute(ctx, id)
	if err != nil {
		return types.StatsResponse{}, err
	}

	if err := cache.Set(ctx, s.cache, key, resp, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache stats")
	}

	// 写入后再检查，失效的递增总在其删除之前
	if s.gen.Load() != gen {
		_ = s.cache.Delete(ctx, key)
	}

	return resp, nil
}

// InvalidateStats 失效属主与全局统计.
func (s *StatsService) InvalidateStats(ctx context.Context, ownerID uint) {
	s.gen.Add(1)

	if err := s.cache.Delete(ctx, statsKey(ownerID), cache.Key(statsNamespace, statsAll)); err != nil {
		s.log.Warn().Err(err).Uint("owner_id", ownerID).Msg("failed to invalidate stats cache")
	}
}

type groupRow struct {
	Key string `gorm:"column:k"`
	Cnt int64  `gorm:"column:cnt"`
}

func (s *StatsService) compute(ctx context.Context, id ctxPkg.Identity) (types.StatsResponse, error) {
	scoped := func() *gorm.DB {
		return ownerScope(s.db.WithContext(ctx).Model(&model.FileRecord{}), id)
	}

	var agg struct {
		Total     int64   `gorm:"column:total"`
		Size      int64   `gorm:"column:size"`
		Timed     int64   `gorm:"column:timed"`
		TimeTotal float64 `gorm:"column:time_total"`
	}

	// SQLite/MySQL/Postgres 通用，COALESCE 避免空表返回 NULL
	selectExpr := "COUNT(*) AS total, " +
		"COALESCE(SUM(file_size),0) AS size, " +
		"COALESCE(SUM(CASE WHEN processing_time > 0 THEN 1 ELSE 0 END),0) AS timed, " +
		"COALESCE(SUM(CASE WHEN processing_time > 0 THEN processing_time ELSE 0 END),0) AS time_total"

	if err := scoped().Select(selectExpr).Scan(&agg).Error; err != nil {
		return types.StatsResponse{}, err
	}

	statusCounts, err := groupCount(scoped(), "status")
	if err != nil {
		return types.StatsResponse{}, err
	}

	fileTypes, err := groupCount(scoped(), "file_type")
	if err != nil {
		return types.StatsResponse{}, err
	}

	for _, st := range model.Statuses {
		if _, ok := statusCounts[string(st)]; !ok {
			statusCounts[string(st)] = 0
		}
	}

	resp := types.StatsResponse{
		TotalFiles:          agg.Total,
		TotalSize:           agg.Size,
		StatusCounts:        statusCounts,
		FileTypes:           fileTypes,
		TotalProcessingTime: agg.TimeTotal,
	}

	if agg.Timed > 0 {
		resp.AverageProcessingTime = agg.TimeTotal / float64(agg.Timed)
	}

	return resp, nil
}

func groupCount(q *gorm.DB, column string) (map[string]int64, error) {
	var rows []groupRow
	if err := q.Select(column + " AS k, COUNT(*) AS cnt").Group(column).Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Cnt
	}

	return out, nil
}
