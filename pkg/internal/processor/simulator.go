// Package processor 模拟分阶段的文件处理进度，并在最后一个检查点真正解析文件.
package processor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yeisme/fileparser/pkg/configs"
	ctxPkg "github.com/yeisme/fileparser/pkg/context"
	"github.com/yeisme/fileparser/pkg/internal/model"
	"github.com/yeisme/fileparser/pkg/internal/notify"
	"github.com/yeisme/fileparser/pkg/metrics"
	"github.com/yeisme/fileparser/pkg/parser"
	"github.com/yeisme/fileparser/pkg/queue"
	"github.com/yeisme/fileparser/pkg/tracing"
)

// 推送给客户端的消息.
const (
	MsgStarted     = "File processing started"
	MsgSucceeded   = "File processed successfully"
	MsgInterrupted = "processing interrupted"
)

// ErrClosed 模拟器已关闭.
var ErrClosed = errors.New("simulator closed")

// interruptWriteTimeout 关闭时写入中断状态的时限.
const interruptWriteTimeout = 5 * time.Second

// Archiver 将原始文件归档到对象存储.
type Archiver interface {
	PutArtifact(ctx context.Context, localPath, filename, contentType string) (string, error)
	RemoveArtifact(ctx context.Context, key string) error
}

// StatsInvalidator 状态变化后失效统计缓存.
type StatsInvalidator interface {
	InvalidateStats(ctx context.Context, ownerID uint)
}

// Job 一个待处理的文件.
type Job struct {
	FileID           string
	OwnerID          uint
	FileType         string
	OriginalFilename string
	FileSize         int64
	// Path 临时区文件，处理结束后删除
	Path string
}

func (j Job) ref() queue.FileRef {
	return queue.FileRef{
		FileID:           j.FileID,
		OwnerID:          j.OwnerID,
		OriginalFilename: j.OriginalFilename,
		FileType:         j.FileType,
		FileSize:         j.FileSize,
	}
}

// Deps 模拟器依赖，Archiver/Stats/Events 可为 nil.
type Deps struct {
	DB       *gorm.DB
	Notifier notify.Notifier
	Events   *queue.Emitter
	Archiver Archiver
	Stats    StatsInvalidator
	Logger   zerolog.Logger
}

// Simulator 每个文件一个 goroutine，解析阶段由信号量限流.
type Simulator struct {
	deps   Deps
	cfg    configs.ProcessingConfig
	limits parser.Limits
	sem    *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	active map[string]string // file id -> scratch path
}

// New 创建模拟器.
func New(deps Deps, cfg configs.ProcessingConfig) *Simulator {
	ctx, cancel := context.WithCancel(context.Background())

	return &Simulator{
		deps:   deps,
		cfg:    cfg,
		limits: parser.Limits{MaxRows: cfg.MaxRows, MaxTextBytes: cfg.MaxTextBytes},
		sem:    semaphore.NewWeighted(int64(max(cfg.MaxConcurrent, 1))),
		ctx:    ctx,
		cancel: cancel,
		active: make(map[string]string),
	}
}

// Schedule 异步处理 job，立即返回.
func (s *Simulator) Schedule(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.active[job.FileID] = job.Path
	s.wg.Add(1)
	metrics.ActiveSimulations.Inc()

	go s.run(job)

	return nil
}

// Owns 文件是否正由本进程处理.
func (s *Simulator) Owns(fileID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.active[fileID]

	return ok
}

// ActiveIDs 正在处理的文件 ID，已排序.
func (s *Simulator) ActiveIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// ActivePaths 正在使用的临时文件.
func (s *Simulator) ActivePaths() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make(map[string]struct{}, len(s.active))
	for _, p := range s.active {
		paths[filepath.Clean(p)] = struct{}{}
	}

	return paths
}

// Close 取消所有运行中的任务并等待其结束，被中断的记录置为 failed.
func (s *Simulator) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for simulations: %w", ctx.Err())
	}
}

// run 单个文件的完整生命周期.
func (s *Simulator) run(job Job) {
	ctx, span := tracing.StartSpan(s.ctx, "processor.simulate", trace.WithAttributes(
		attribute.String("file.id", job.FileID),
		attribute.String("file.type", job.FileType),
	))

	log := ctxPkg.WithTraceContext(ctx, s.deps.Logger.With().
		Str("file_id", job.FileID).
		Str("file_type", job.FileType).
		Logger())

	defer func() {
		span.End()

		if err := os.Remove(job.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", job.Path).Msg("remove scratch file")
		}

		s.mu.Lock()
		delete(s.active, job.FileID)
		s.mu.Unlock()

		metrics.ActiveSimulations.Dec()
		s.wg.Done()
	}()

	start := time.Now()
	progress := 0

	ok, err := s.update(ctx, job, map[string]any{
		"status":   model.StatusProcessing,
		"progress": 0,
	})
	if !s.proceed(ctx, job, log, ok, err, progress, start) {
		return
	}

	s.emit(ctx, log, job, queue.EventStatusUpdate, model.StatusProcessing, 0, 0, MsgStarted, "")

	for _, cp := range s.cfg.Intermediate() {
		if !sleep(ctx, s.cfg.StepInterval) {
			s.interrupt(ctx, job, log, progress, start)

			return
		}

		elapsed := seconds(time.Since(start))

		ok, err = s.update(ctx, job, map[string]any{
			"progress":        cp,
			"processing_time": elapsed,
		})
		if !s.proceed(ctx, job, log, ok, err, progress, start) {
			return
		}

		progress = cp
		s.emit(ctx, log, job, queue.EventProgressUpdate, model.StatusProcessing, cp, elapsed, "", "")
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.interrupt(ctx, job, log, progress, start)

		return
	}

	pctx, pspan := tracing.StartSpan(ctx, "processor.parse")
	res, perr := parser.ParseFile(pctx, job.FileType, job.Path, s.limits)
	if perr != nil {
		pspan.RecordError(perr)
		pspan.SetStatus(codes.Error, perr.Error())
	}
	pspan.End()
	s.sem.Release(1)

	if ctx.Err() != nil {
		s.interrupt(ctx, job, log, progress, start)

		return
	}

	if perr != nil {
		span.SetStatus(codes.Error, perr.Error())
		s.fail(ctx, job, log, progress, start, "parsing failed: "+perr.Error())

		return
	}

	if err := s.succeed(ctx, job, log, res, start); err != nil {
		span.SetStatus(codes.Error, err.Error())

		if ctx.Err() != nil {
			s.interrupt(ctx, job, log, progress, start)

			return
		}

		s.fail(ctx, job, log, progress, start, "parsing failed: "+err.Error())
	}
}

// proceed 处理一次状态写入的结果，返回是否继续.
func (s *Simulator) proceed(ctx context.Context, job Job, log zerolog.Logger, ok bool, err error, progress int, start time.Time) bool {
	switch {
	case err != nil && ctx.Err() != nil:
		s.interrupt(ctx, job, log, progress, start)

		return false
	case err != nil:
		log.Error().Err(err).Msg("persist progress")
		s.fail(ctx, job, log, progress, start, "processing failed: "+err.Error())

		return false
	case !ok:
		// 记录已被删除或已被巡检置为终态
		log.Debug().Msg("record gone, stop simulation")

		return false
	default:
		return true
	}
}

func (s *Simulator) succeed(ctx context.Context, job Job, log zerolog.Logger, res *parser.Result, start time.Time) error {
	content, err := sonic.Marshal(res.Content)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}

	meta, err := sonic.Marshal(res.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	objectKey := s.archive(ctx, job, log)
	elapsed := seconds(time.Since(start))
	now := time.Now().UTC()

	ok, err := s.update(ctx, job, map[string]any{
		"status":          model.StatusReady,
		"progress":        100,
		"content":         datatypes.JSON(content),
		"file_metadata":   datatypes.JSON(meta),
		"processing_time": elapsed,
		"processed_at":    now,
		"error_message":   "",
		"object_key":      objectKey,
	})
	if err != nil {
		s.discard(ctx, log, objectKey)

		return fmt.Errorf("persist result: %w", err)
	}

	if !ok {
		// 解析期间记录被删除，删除方看不到归档键
		s.discard(ctx, log, objectKey)

		return nil
	}

	metrics.FilesProcessed.WithLabelValues(job.FileType, string(model.StatusReady)).Inc()
	metrics.ProcessingDuration.WithLabelValues(job.FileType).Observe(elapsed)

	s.emit(ctx, log, job, queue.EventStatusUpdate, model.StatusReady, 100, elapsed, MsgSucceeded, "")

	if err := s.deps.Events.FileProcessed(ctx, queue.FileProcessedPayload{
		File: job.ref(), ProcessingTime: elapsed, ObjectKey: objectKey,
	}); err != nil {
		log.Warn().Err(err).Msg("publish processed event")
	}

	log.Info().Float64("processing_time", elapsed).Msg("file processed")

	return nil
}

// archive 归档失败只记录日志.
func (s *Simulator) archive(ctx context.Context, job Job, log zerolog.Logger) string {
	if s.deps.Archiver == nil {
		return ""
	}

	ctype := mime.TypeByExtension(filepath.Ext(job.OriginalFilename))
	if ctype == "" {
		ctype = "application/octet-stream"
	}

	key, err := s.deps.Archiver.PutArtifact(ctx, job.Path, job.OriginalFilename, ctype)
	if err != nil {
		log.Warn().Err(err).Msg("archive original file")

		return ""
	}

	return key
}

// discard 删除未落库的归档对象.
func (s *Simulator) discard(ctx context.Context, log zerolog.Logger, key string) {
	if key == "" || s.deps.Archiver == nil {
		return
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), interruptWriteTimeout)
	defer cancel()

	if err := s.deps.Archiver.RemoveArtifact(rctx, key); err != nil {
		log.Warn().Err(err).Str("object_key", key).Msg("remove orphaned artifact")
	}
}

func (s *Simulator) fail(ctx context.Context, job Job, log zerolog.Logger, progress int, start time.Time, reason string) {
	elapsed := seconds(time.Since(start))

	ok, err := s.update(ctx, job, map[string]any{
		"status":          model.StatusFailed,
		"error_message":   reason,
		"processing_time": elapsed,
	})
	if err != nil {
		log.Error().Err(err).Msg("persist failure")

		return
	}

	if !ok {
		return
	}

	metrics.FilesProcessed.WithLabelValues(job.FileType, string(model.StatusFailed)).Inc()

	s.emit(ctx, log, job, queue.EventStatusUpdate, model.StatusFailed, progress, elapsed, "", reason)

	if err := s.deps.Events.FileFailed(ctx, queue.FileFailedPayload{
		File: job.ref(), Progress: progress, Error: reason,
	}); err != nil {
		log.Warn().Err(err).Msg("publish failed event")
	}

	log.Warn().Str("reason", reason).Int("progress", progress).Msg("file processing failed")
}

// interrupt 在已取消的 ctx 之外写入中断状态.
func (s *Simulator) interrupt(ctx context.Context, job Job, log zerolog.Logger, progress int, start time.Time) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), interruptWriteTimeout)
	defer cancel()

	s.fail(wctx, job, log, progress, start, MsgInterrupted)
}

// update 只更新未进入终态的记录，返回是否命中.
func (s *Simulator) update(ctx context.Context, job Job, values map[string]any) (bool, error) {
	res := s.deps.DB.WithContext(ctx).
		Model(&model.FileRecord{}).
		Where("id = ? AND status IN ?", job.FileID, []model.FileStatus{model.StatusUploading, model.StatusProcessing}).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}

	if res.RowsAffected > 0 && s.deps.Stats != nil {
		s.deps.Stats.InvalidateStats(ctx, job.OwnerID)
	}

	return res.RowsAffected > 0, nil
}

func (s *Simulator) emit(ctx context.Context, log zerolog.Logger, job Job, typ string, status model.FileStatus, progress int, elapsed float64, msg, errMsg string) {
	if s.deps.Notifier == nil {
		return
	}

	err := s.deps.Notifier.Notify(ctx, queue.FileEventPayload{
		Type:           typ,
		FileID:         job.FileID,
		OwnerID:        job.OwnerID,
		Status:         string(status),
		Progress:       progress,
		ProcessingTime: elapsed,
		Message:        msg,
		ErrorMessage:   errMsg,
	})
	if err != nil {
		log.Warn().Err(err).Str("type", typ).Msg("notify")
	}
}

// sleep 可被取消的停顿，返回 false 表示 ctx 已结束.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
