// Package scheduler 提供定时任务调度功能，使用 gocron/v2 库.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// JobStatus 表示任务的状态类型.
type JobStatus string

const (
	StatusScheduled JobStatus = "scheduled" // 任务已调度
	StatusRunning   JobStatus = "running"   // 任务正在运行
	StatusError     JobStatus = "error"     // 上次执行出错
)

// ErrJobNotFound 任务不存在.
var ErrJobNotFound = errors.New("job not found")

// Task 一次任务执行，返回的错误记录在 JobInfo 中.
type Task func(ctx context.Context) error

// JobInfo 表示定时任务的信息，用于可视化和监控.
type JobInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CronExpr    string    `json:"cron_expr"`
	NextRun     time.Time `json:"next_run"`
	LastRun     time.Time `json:"last_run"`
	LastSuccess time.Time `json:"last_success"`
	Runs        int       `json:"runs"`
	Status      JobStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Scheduler 是定时任务调度器的实现.
type Scheduler struct {
	scheduler gocron.Scheduler
	jobs      map[string]gocron.Job // 以任务名称为键
	jobInfos  map[string]*JobInfo   // 以任务名称为键
	mu        sync.RWMutex
	logger    zerolog.Logger
}

// NewScheduler 创建一个新的 Scheduler 实例.
func NewScheduler(logger zerolog.Logger, opts ...gocron.SchedulerOption) (*Scheduler, error) {
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		scheduler: s,
		jobs:      make(map[string]gocron.Job),
		jobInfos:  make(map[string]*JobInfo),
		logger:    logger,
	}, nil
}

// AddCron 添加一个基于 cron 表达式的定时任务，同名任务只能注册一次.
// runAtStart 为 true 时调度器启动后立即执行一次.
func (s *Scheduler) AddCron(ctx context.Context, name, cronExpr string, task Task, runAtStart bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job with name %s already exists", name)
	}

	opts := []gocron.JobOption{
		gocron.WithName(name),
		// 上一次未结束时跳过本次
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if runAtStart {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	j, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(s.wrap(name, task), ctx),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("add job %s: %w", name, err)
	}

	now := time.Now()
	nextRun, _ := j.NextRun()

	s.jobs[name] = j
	s.jobInfos[name] = &JobInfo{
		ID:        j.ID().String(),
		Name:      name,
		CronExpr:  cronExpr,
		NextRun:   nextRun,
		Status:    StatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.logger.Info().Str("job", name).Str("cron", cronExpr).Msg("Added cron job")

	return nil
}

// wrap 记录执行状态并把 panic 转为错误.
func (s *Scheduler) wrap(name string, task Task) func(ctx context.Context) {
	return func(ctx context.Context) {
		start := time.Now()
		s.update(name, func(info *JobInfo) {
			info.Status = StatusRunning
			info.LastRun = start
		})

		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic in job: %v", r)
				}
			}()

			return task(ctx)
		}()

		s.update(name, func(info *JobInfo) {
			info.Runs++
			if err != nil {
				info.Status = StatusError
				info.Error = err.Error()

				return
			}

			info.Status = StatusScheduled
			info.Error = ""
			info.LastSuccess = time.Now()
		})

		if err != nil {
			s.logger.Error().Err(err).Str("job", name).Msg("Job failed")
			return
		}

		s.logger.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("Job finished")
	}
}

func (s *Scheduler) update(name string, fn func(*JobInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.jobInfos[name]
	if !ok {
		return
	}

	fn(info)

	if j, ok := s.jobs[name]; ok {
		if next, err := j.NextRun(); err == nil {
			info.NextRun = next
		}
	}

	info.UpdatedAt = time.Now()
}

// RunNow 立即执行一次，不影响原有调度.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	return j.RunNow()
}

// GetJobInfoByName 通过名称获取任务信息.
func (s *Scheduler) GetJobInfoByName(name string) (JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, exists := s.jobInfos[name]
	if !exists {
		return JobInfo{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	return *info, nil
}

// GetJobInfos 返回所有定时任务的信息，按名称排序.
func (s *Scheduler) GetJobInfos() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]JobInfo, 0, len(s.jobInfos))
	for _, info := range s.jobInfos {
		jobs = append(jobs, *info)
	}

	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Name < jobs[k].Name })

	return jobs
}

// Start 启动调度器.
func (s *Scheduler) Start() {
	s.logger.Info().Int("jobs", len(s.GetJobInfos())).Msg("Starting scheduler")
	s.scheduler.Start()
}

// Stop 停止调度器并等待正在执行的任务.
func (s *Scheduler) Stop() error {
	s.logger.Info().Msg("Stopping scheduler")

	return s.scheduler.Shutdown()
}
