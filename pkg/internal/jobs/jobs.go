// Package jobs 负责注册与实现业务定时任务（基于 scheduler）.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/yeisme/fileparser/pkg/configs"
	"github.com/yeisme/fileparser/pkg/internal/model"
	"github.com/yeisme/fileparser/pkg/internal/notify"
	"github.com/yeisme/fileparser/pkg/internal/processor"
	"github.com/yeisme/fileparser/pkg/queue"
	"github.com/yeisme/fileparser/pkg/scheduler"
)

// ActiveSet 正在运行的模拟器，巡检不能触碰它们的记录与临时文件.
type ActiveSet interface {
	Owns(fileID string) bool
	ActivePaths() map[string]struct{}
}

// Deps 任务依赖，Notifier/Events/Stats 可为 nil.
type Deps struct {
	DB         *gorm.DB
	Active     ActiveSet
	Notifier   notify.Notifier
	Events     *queue.Emitter
	Stats      processor.StatsInvalidator
	Upload     configs.UploadConfig
	Processing configs.ProcessingConfig
	Logger     zerolog.Logger
}

// RegisterCronJobs 配置业务定时任务：
//   - files.stale_sweep 把长时间未推进的处理中记录标记为失败，启动时先执行一次
//   - scratch.cleanup 清理临时目录中过期且无人引用的文件
func RegisterCronJobs(ctx context.Context, sched *scheduler.Scheduler, deps Deps) error {
	if sched == nil {
		return errors.New("scheduler is nil")
	}

	if deps.DB == nil {
		return errors.New("db is nil")
	}

	if err := sched.AddCron(ctx, JobStaleSweep, deps.Processing.StaleSweepCron, func(ctx context.Context) error {
		_, err := StaleSweep(ctx, deps)
		return err
	}, true); err != nil {
		return err
	}

	return sched.AddCron(ctx, JobScratchClean, deps.Processing.ScratchSweepCron, func(ctx context.Context) error {
		_, err := ScratchCleanup(ctx, deps, time.Now())
		return err
	}, false)
}

var openStatuses = []model.FileStatus{model.StatusUploading, model.StatusProcessing}

// StaleSweep 把超过 stale_after 未更新、且不属于任何运行中模拟器的记录标记为失败.
// 返回被标记的记录数.
func StaleSweep(ctx context.Context, deps Deps) (int, error) {
	l := deps.Logger.With().Str("job", JobStaleSweep).Logger()
	cutoff := time.Now().UTC().Add(-deps.Processing.StaleAfter)

	var recs []model.FileRecord
	if err := deps.DB.WithContext(ctx).
		Select("id", "owner_id", "original_filename", "file_type", "file_size", "progress", "processing_time").
		Where("status IN ? AND updated_at < ?", openStatuses, cutoff).
		Find(&recs).Error; err != nil {
		return 0, fmt.Errorf("list stale records: %w", err)
	}

	swept := 0

	for i := range recs {
		rec := &recs[i]
		if deps.Active != nil && deps.Active.Owns(rec.ID) {
			continue
		}

		res := deps.DB.WithContext(ctx).Model(&model.FileRecord{}).
			Where("id = ? AND status IN ? AND updated_at < ?", rec.ID, openStatuses, cutoff).
			Updates(map[string]any{
				"status":        model.StatusFailed,
				"error_message": processor.MsgInterrupted,
			})
		if res.Error != nil {
			l.Error().Err(res.Error).Str("file_id", rec.ID).Msg("mark stale record failed")
			continue
		}

		if res.RowsAffected == 0 {
			continue
		}

		swept++

		announce(ctx, deps, l, rec)
	}

	if swept > 0 {
		l.Info().Int("swept", swept).Time("cutoff", cutoff).Msg("stale records marked failed")
	}

	return swept, nil
}

func announce(ctx context.Context, deps Deps, l zerolog.Logger, rec *model.FileRecord) {
	if deps.Stats != nil {
		deps.Stats.InvalidateStats(ctx, rec.OwnerID)
	}

	if deps.Notifier != nil {
		if err := deps.Notifier.Notify(ctx, queue.FileEventPayload{
			Type:           queue.EventStatusUpdate,
			FileID:         rec.ID,
			OwnerID:        rec.OwnerID,
			Status:         string(model.StatusFailed),
			Progress:       rec.Progress,
			ProcessingTime: rec.ProcessingTime,
			ErrorMessage:   processor.MsgInterrupted,
		}); err != nil {
			l.Warn().Err(err).Str("file_id", rec.ID).Msg("notify stale record failed")
		}
	}

	if err := deps.Events.FileFailed(ctx, queue.FileFailedPayload{
		File: queue.FileRef{
			FileID:           rec.ID,
			OwnerID:          rec.OwnerID,
			OriginalFilename: rec.OriginalFilename,
			FileType:         rec.FileType,
			FileSize:         rec.FileSize,
		},
		Progress: rec.Progress,
		Error:    processor.MsgInterrupted,
	}); err != nil {
		l.Warn().Err(err).Str("file_id", rec.ID).Msg("publish file failed event")
	}
}

// ScratchCleanup 删除临时目录中早于 scratch_ttl、且没有模拟器引用的文件.
func ScratchCleanup(ctx context.Context, deps Deps, now time.Time) (int, error) {
	l := deps.Logger.With().Str("job", JobScratchClean).Logger()
	dir := deps.Upload.ScratchDir()

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("read scratch dir: %w", err)
	}

	var active map[string]struct{}
	if deps.Active != nil {
		active = deps.Active.ActivePaths()
	}

	cutoff := now.Add(-deps.Upload.ScratchTTL())
	removed := 0

	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}

		if !e.Type().IsRegular() {
			continue
		}

		path := filepath.Join(dir, e.Name())
		if _, busy := active[path]; busy {
			continue
		}

		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			l.Warn().Err(err).Str("path", path).Msg("remove scratch file failed")
			continue
		}

		removed++
	}

	if removed > 0 {
		l.Info().Int("removed", removed).Str("dir", dir).Msg("scratch files removed")
	}

	return removed, nil
}
