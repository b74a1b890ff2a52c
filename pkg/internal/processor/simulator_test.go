package processor_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeisme/fileparser/pkg/configs"
	"github.com/yeisme/fileparser/pkg/internal/model"
	"github.com/yeisme/fileparser/pkg/internal/processor"
	"github.com/yeisme/fileparser/pkg/internal/storage/db/dbtest"
	"github.com/yeisme/fileparser/pkg/queue"
)

type recorder struct {
	mu     sync.Mutex
	events []queue.FileEventPayload
	hook   func(queue.FileEventPayload)
}

func (r *recorder) Notify(_ context.Context, ev queue.FileEventPayload) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	hook := r.hook
	r.mu.Unlock()

	if hook != nil {
		hook(ev)
	}

	return nil
}

func (r *recorder) snapshot() []queue.FileEventPayload {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]queue.FileEventPayload(nil), r.events...)
}

type invalidations struct {
	mu    sync.Mutex
	count int
}

func (i *invalidations) InvalidateStats(context.Context, uint) {
	i.mu.Lock()
	i.count++
	i.mu.Unlock()
}

func processingConfig(step time.Duration) configs.ProcessingConfig {
	return configs.ProcessingConfig{
		StepInterval:  step,
		Checkpoints:   []int{20, 40, 60, 80, 100},
		MaxConcurrent: 2,
		MaxRows:       100,
		MaxTextBytes:  1 << 16,
	}
}

func seed(t *testing.T, db *gorm.DB, name, body string) processor.Job {
	t.Helper()

	id := uuid.NewString()
	path := filepath.Join(t.TempDir(), id+"_"+name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	rec := model.FileRecord{
		ID:               id,
		OwnerID:          1,
		Filename:         filepath.Base(path),
		OriginalFilename: name,
		FileType:         "csv",
		FileSize:         int64(len(body)),
		Status:           model.StatusUploading,
	}
	require.NoError(t, db.Create(&rec).Error)

	return processor.Job{
		FileID:           id,
		OwnerID:          1,
		FileType:         "csv",
		OriginalFilename: name,
		FileSize:         rec.FileSize,
		Path:             path,
	}
}

func waitTerminal(t *testing.T, db *gorm.DB, id string) model.FileRecord {
	t.Helper()

	var rec model.FileRecord

	require.Eventually(t, func() bool {
		if err := db.First(&rec, "id = ?", id).Error; err != nil {
			return false
		}

		return rec.Status.Terminal()
	}, 5*time.Second, 5*time.Millisecond)

	return rec
}

func newSimulator(t *testing.T, db *gorm.DB, rec *recorder, stats processor.StatsInvalidator, step time.Duration) *processor.Simulator {
	t.Helper()

	sim := processor.New(processor.Deps{
		DB:       db,
		Notifier: rec,
		Stats:    stats,
		Logger:   zerolog.Nop(),
	}, processingConfig(step))
	t.Cleanup(func() { _ = sim.Close(context.Background()) })

	return sim
}

func TestSimulatorSalesCSV(t *testing.T) {
	db := dbtest.New(t).DB
	rec := &recorder{}
	inv := &invalidations{}
	sim := newSimulator(t, db, rec, inv, time.Millisecond)

	job := seed(t, db, "sales.csv", "product,amount\nA,10\nB,20\nC,30\n")
	require.NoError(t, sim.Schedule(job))

	got := waitTerminal(t, db, job.FileID)
	assert.Equal(t, model.StatusReady, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.NotNil(t, got.ProcessedAt)
	assert.Empty(t, got.ErrorMessage)

	var meta map[string]any
	require.NoError(t, sonic.Unmarshal(got.Metadata, &meta))
	assert.EqualValues(t, 3, meta["row_count"])
	assert.EqualValues(t, 2, meta["column_count"])

	require.Eventually(t, func() bool { return !sim.Owns(job.FileID) }, time.Second, time.Millisecond)
	_, err := os.Stat(job.Path)
	assert.True(t, os.IsNotExist(err), "scratch file removed")

	events := rec.snapshot()
	require.Len(t, events, 6)
	assert.Equal(t, queue.EventStatusUpdate, events[0].Type)
	assert.Equal(t, processor.MsgStarted, events[0].Message)

	last := -1
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Progress, last)
		last = ev.Progress
	}

	final := events[len(events)-1]
	assert.Equal(t, queue.EventStatusUpdate, final.Type)
	assert.Equal(t, string(model.StatusReady), final.Status)
	assert.Equal(t, 100, final.Progress)

	inv.mu.Lock()
	assert.GreaterOrEqual(t, inv.count, 6)
	inv.mu.Unlock()
}

func TestSimulatorMalformedCSV(t *testing.T) {
	db := dbtest.New(t).DB
	rec := &recorder{}
	sim := newSimulator(t, db, rec, nil, time.Millisecond)

	job := seed(t, db, "bad.csv", "a,b\n1,2,3\n")
	require.NoError(t, sim.Schedule(job))

	got := waitTerminal(t, db, job.FileID)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, 80, got.Progress)
	assert.Contains(t, got.ErrorMessage, "parsing failed:")
	assert.Nil(t, got.ProcessedAt)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 6 }, time.Second, time.Millisecond)
	final := rec.snapshot()[5]
	assert.Equal(t, string(model.StatusFailed), final.Status)
	assert.NotEmpty(t, final.ErrorMessage)
}

func TestSimulatorStopsWhenDeleted(t *testing.T) {
	db := dbtest.New(t).DB
	rec := &recorder{}
	sim := newSimulator(t, db, rec, nil, time.Millisecond)

	job := seed(t, db, "sales.csv", "a\n1\n")
	rec.hook = func(ev queue.FileEventPayload) {
		if ev.Progress == 40 {
			_ = db.Delete(&model.FileRecord{}, "id = ?", ev.FileID).Error
		}
	}

	require.NoError(t, sim.Schedule(job))
	require.Eventually(t, func() bool { return !sim.Owns(job.FileID) }, 5*time.Second, time.Millisecond)

	var count int64
	require.NoError(t, db.Model(&model.FileRecord{}).Where("id = ?", job.FileID).Count(&count).Error)
	assert.Zero(t, count)

	for _, ev := range rec.snapshot() {
		assert.LessOrEqual(t, ev.Progress, 40)
	}

	_, err := os.Stat(job.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestSimulatorCloseInterrupts(t *testing.T) {
	db := dbtest.New(t).DB
	rec := &recorder{}
	sim := processor.New(processor.Deps{DB: db, Notifier: rec, Logger: zerolog.Nop()}, processingConfig(time.Hour))

	job := seed(t, db, "sales.csv", "a\n1\n")
	require.NoError(t, sim.Schedule(job))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sim.Close(ctx))

	var got model.FileRecord
	require.NoError(t, db.First(&got, "id = ?", job.FileID).Error)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, processor.MsgInterrupted, got.ErrorMessage)
	assert.Equal(t, 0, got.Progress)

	assert.ErrorIs(t, sim.Schedule(job), processor.ErrClosed)
}

func TestSimulatorSkipsTerminalRecord(t *testing.T) {
	db := dbtest.New(t).DB
	rec := &recorder{}
	sim := newSimulator(t, db, rec, nil, time.Millisecond)

	job := seed(t, db, "sales.csv", "a\n1\n")
	require.NoError(t, db.Model(&model.FileRecord{}).Where("id = ?", job.FileID).
		Updates(map[string]any{"status": model.StatusFailed, "error_message": "processing interrupted"}).Error)

	require.NoError(t, sim.Schedule(job))
	require.Eventually(t, func() bool { return !sim.Owns(job.FileID) }, time.Second, time.Millisecond)

	assert.Empty(t, rec.snapshot())
}

type archive struct {
	mu      sync.Mutex
	put     []string
	removed []string
	onPut   func(ctx context.Context)
}

func (a *archive) PutArtifact(ctx context.Context, _, filename, _ string) (string, error) {
	if a.onPut != nil {
		a.onPut(ctx)
	}

	key := "artifacts/" + filename

	a.mu.Lock()
	a.put = append(a.put, key)
	a.mu.Unlock()

	return key, nil
}

func (a *archive) RemoveArtifact(_ context.Context, key string) error {
	a.mu.Lock()
	a.removed = append(a.removed, key)
	a.mu.Unlock()

	return nil
}

func (a *archive) keys() (put, removed []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]string(nil), a.put...), append([]string(nil), a.removed...)
}

func TestSimulatorNonFiniteCellsReady(t *testing.T) {
	db := dbtest.New(t).DB
	sim := newSimulator(t, db, &recorder{}, nil, time.Millisecond)

	job := seed(t, db, "sensor.csv", "id,reading\n1,NaN\n2,Inf\n3,1.5\n")
	require.NoError(t, sim.Schedule(job))

	got := waitTerminal(t, db, job.FileID)
	require.Equal(t, model.StatusReady, got.Status, got.ErrorMessage)
	assert.Equal(t, 100, got.Progress)

	var content struct {
		Rows []map[string]any `json:"rows"`
	}
	require.NoError(t, sonic.Unmarshal(got.Content, &content))
	require.Len(t, content.Rows, 3)
	assert.Nil(t, content.Rows[0]["reading"])
	assert.InDelta(t, 1.5, content.Rows[2]["reading"], 1e-9)
}

func TestSimulatorRemovesArtifactWhenDeletedDuringParse(t *testing.T) {
	db := dbtest.New(t).DB
	rec := &recorder{}
	arc := &archive{}

	sim := processor.New(processor.Deps{DB: db, Notifier: rec, Archiver: arc, Logger: zerolog.Nop()},
		processingConfig(time.Millisecond))
	t.Cleanup(func() { _ = sim.Close(context.Background()) })

	job := seed(t, db, "sales.csv", "a\n1\n")
	rec.hook = func(ev queue.FileEventPayload) {
		if ev.Progress == 80 {
			_ = db.Delete(&model.FileRecord{}, "id = ?", ev.FileID).Error
		}
	}

	require.NoError(t, sim.Schedule(job))
	require.Eventually(t, func() bool { return !sim.Owns(job.FileID) }, 5*time.Second, time.Millisecond)

	put, removed := arc.keys()
	require.Len(t, put, 1)
	assert.Equal(t, put, removed)

	for _, ev := range rec.snapshot() {
		assert.NotEqual(t, string(model.StatusReady), ev.Status)
	}
}

func TestSimulatorShutdownDuringFinalWriteInterrupts(t *testing.T) {
	db := dbtest.New(t).DB
	arc := &archive{}

	var sim *processor.Simulator

	closed := make(chan error, 1)
	arc.onPut = func(ctx context.Context) {
		go func() { closed <- sim.Close(context.Background()) }()
		<-ctx.Done()
	}

	sim = processor.New(processor.Deps{DB: db, Notifier: &recorder{}, Archiver: arc, Logger: zerolog.Nop()},
		processingConfig(time.Millisecond))

	job := seed(t, db, "sales.csv", "a\n1\n")
	require.NoError(t, sim.Schedule(job))

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("close did not return")
	}

	var got model.FileRecord
	require.NoError(t, db.First(&got, "id = ?", job.FileID).Error)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, processor.MsgInterrupted, got.ErrorMessage)
	assert.Equal(t, 80, got.Progress)
	assert.Empty(t, got.ObjectKey)

	put, removed := arc.keys()
	assert.Equal(t, put, removed)
}
