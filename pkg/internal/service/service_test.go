package service_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yeisme/fileparser/pkg/auth"
	"github.com/yeisme/fileparser/pkg/cache"
	"github.com/yeisme/fileparser/pkg/configs"
	ctxPkg "github.com/yeisme/fileparser/pkg/context"
	"github.com/yeisme/fileparser/pkg/internal/model"
	"github.com/yeisme/fileparser/pkg/internal/processor"
	"github.com/yeisme/fileparser/pkg/internal/service"
	"github.com/yeisme/fileparser/pkg/internal/storage/db/dbtest"
	"github.com/yeisme/fileparser/pkg/internal/storage/kv"
	"github.com/yeisme/fileparser/pkg/internal/types"
)

var (
	alice = ctxPkg.Identity{UserID: 1, Username: "alice"}
	bob   = ctxPkg.Identity{UserID: 2, Username: "bob"}
	admin = ctxPkg.Identity{UserID: 3, Username: "root", IsAdmin: true}
)

type jobs struct {
	mu  sync.Mutex
	got []processor.Job
}

func (j *jobs) Schedule(job processor.Job) error {
	j.mu.Lock()
	j.got = append(j.got, job)
	j.mu.Unlock()

	return nil
}

type fixture struct {
	db    *gorm.DB
	files *service.FileService
	stats *service.StatsService
	jobs  *jobs
	dir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := dbtest.New(t).DB

	store, err := kv.NewMemoryKV(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	stats := service.NewStatsService(db, cache.NewCache(store), time.Minute, zerolog.Nop())

	dir := t.TempDir()
	upload := configs.UploadConfig{
		MaxSizeMB:         1,
		TempDir:           dir,
		AllowedExtensions: configs.DefaultAllowedExtensions,
	}

	j := &jobs{}
	files := service.NewFileService(service.FileDeps{
		DB:        db,
		Processor: j,
		Stats:     stats,
		Upload:    upload,
		Logger:    zerolog.Nop(),
	})

	return &fixture{db: db, files: files, stats: stats, jobs: j, dir: dir}
}

func (f *fixture) seed(t *testing.T, owner uint, name string, status model.FileStatus, at time.Time) *model.FileRecord {
	t.Helper()

	id := uuid.NewString()
	rec := &model.FileRecord{
		ID:               id,
		OwnerID:          owner,
		Filename:         id + "_" + name,
		OriginalFilename: name,
		FileType:         "csv",
		FileSize:         10,
		Status:           status,
		CreatedAt:        at.UTC(),
	}

	if status == model.StatusReady {
		rec.Progress = 100
		rec.ProcessingTime = 2
		rec.Content = datatypes.JSON(`{"rows":[]}`)
		rec.Metadata = datatypes.JSON(`{"row_count":0}`)
	}

	require.NoError(t, f.db.Create(rec).Error)

	return rec
}

func TestAcceptCreatesRecordAndSchedules(t *testing.T) {
	f := newFixture(t)

	rec, err := f.files.Accept(context.Background(), alice, "reports/sales.csv", strings.NewReader("name,amount\na,1\n"))
	require.NoError(t, err)

	assert.Equal(t, "sales.csv", rec.OriginalFilename)
	assert.Equal(t, rec.ID+"_sales.csv", rec.Filename)
	assert.Equal(t, model.StatusUploading, rec.Status)
	assert.Equal(t, int64(16), rec.FileSize)

	require.Len(t, f.jobs.got, 1)
	assert.Equal(t, filepath.Join(f.dir, rec.Filename), f.jobs.got[0].Path)
	assert.FileExists(t, f.jobs.got[0].Path)
}

func TestAcceptRejectsWithoutRecord(t *testing.T) {
	cases := map[string]struct {
		name string
		body string
	}{
		"extension": {name: "virus.exe", body: "MZ"},
		"empty":     {name: "empty.csv", body: ""},
		"no name":   {name: "", body: "x"},
		"too large": {name: "big.txt", body: strings.Repeat("a", 1<<20+1)},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.files.Accept(context.Background(), alice, tc.name, strings.NewReader(tc.body))
			require.ErrorIs(t, err, service.ErrValidation)

			var n int64
			require.NoError(t, f.db.Model(&model.FileRecord{}).Count(&n).Error)
			assert.Zero(t, n)
			assert.Empty(t, f.jobs.got)

			entries, err := os.ReadDir(f.dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestOwnershipIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.seed(t, alice.UserID, "a.csv", model.StatusReady, time.Now())

	_, err := f.files.Get(ctx, bob, rec.ID)
	require.ErrorIs(t, err, service.ErrNotFound)

	_, err = f.files.Progress(ctx, bob, rec.ID)
	require.ErrorIs(t, err, service.ErrNotFound)

	require.ErrorIs(t, f.files.Delete(ctx, bob, rec.ID), service.ErrNotFound)

	got, err := f.files.Get(ctx, admin, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	list, err := f.files.List(ctx, bob, types.ListFilesRequest{})
	require.NoError(t, err)
	assert.Zero(t, list.Total)
	assert.Empty(t, list.Files)
}

func TestContentNotReady(t *testing.T) {
	f := newFixture(t)
	rec := f.seed(t, alice.UserID, "a.csv", model.StatusProcessing, time.Now())

	got, etag, err := f.files.Content(context.Background(), alice, rec.ID)
	require.ErrorIs(t, err, service.ErrNotReady)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusProcessing, got.Status)
	assert.Empty(t, etag)
}

func TestContentFailedCarriesReason(t *testing.T) {
	f := newFixture(t)
	rec := f.seed(t, alice.UserID, "a.csv", model.StatusFailed, time.Now())
	require.NoError(t, f.db.Model(rec).Update("error_message", "parsing failed: bad row").Error)

	got, _, err := f.files.Content(context.Background(), alice, rec.ID)
	require.ErrorIs(t, err, service.ErrNotReady)
	assert.Contains(t, err.Error(), "File processing failed: parsing failed: bad row")
	assert.NotContains(t, err.Error(), "still being processed")
	assert.Equal(t, "parsing failed: bad row", got.ErrorMessage)
}

func TestContentReadyHasStableETag(t *testing.T) {
	f := newFixture(t)
	rec := f.seed(t, alice.UserID, "a.csv", model.StatusReady, time.Now())

	got, etag, err := f.files.Content(context.Background(), alice, rec.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":[]}`, string(got.Content))
	assert.Equal(t, service.ETag(got), etag)
	assert.True(t, strings.HasPrefix(etag, `"`))
}

func TestDeleteTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.seed(t, alice.UserID, "a.csv", model.StatusReady, time.Now())

	require.NoError(t, f.files.Delete(ctx, alice, rec.ID))
	require.ErrorIs(t, f.files.Delete(ctx, alice, rec.ID), service.ErrNotFound)
}

func TestListOrderAndPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	var ids []string
	for i := range 3 {
		ids = append(ids, f.seed(t, alice.UserID, "f.csv", model.StatusReady, base.Add(time.Duration(i)*time.Minute)).ID)
	}

	res, err := f.files.List(ctx, alice, types.ListFilesRequest{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.Equal(t, 2, res.Limit)
	require.Len(t, res.Files, 2)
	assert.Equal(t, ids[2], res.Files[0].ID)
	assert.Equal(t, ids[1], res.Files[1].ID)

	res, err = f.files.List(ctx, alice, types.ListFilesRequest{Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, types.DefaultLimit, res.Limit)
	require.Len(t, res.Files, 1)
	assert.Equal(t, ids[0], res.Files[0].ID)

	_, err = f.files.List(ctx, alice, types.ListFilesRequest{Status: "bogus"})
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestSearchEscapesWildcards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	f.seed(t, alice.UserID, "Sales_2024.csv", model.StatusReady, now)
	f.seed(t, alice.UserID, "salesX2024.csv", model.StatusReady, now)
	f.seed(t, alice.UserID, "100%.csv", model.StatusReady, now)

	res, err := f.files.Search(ctx, alice, types.SearchFilesRequest{Q: "sales_"})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "Sales_2024.csv", res.Files[0].OriginalFilename)

	res, err = f.files.Search(ctx, alice, types.SearchFilesRequest{Query: "%"})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "100%.csv", res.Files[0].OriginalFilename)

	_, err = f.files.Search(ctx, alice, types.SearchFilesRequest{Q: "  "})
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestStatsReflectDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, alice.UserID, "a.csv", model.StatusReady, time.Now())
	drop := f.seed(t, alice.UserID, "b.csv", model.StatusFailed, time.Now())
	f.seed(t, bob.UserID, "c.csv", model.StatusReady, time.Now())

	st, err := f.stats.Stats(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.TotalFiles)
	assert.Equal(t, int64(20), st.TotalSize)
	assert.Equal(t, int64(1), st.StatusCounts["failed"])
	assert.Equal(t, int64(0), st.StatusCounts["uploading"])
	assert.InDelta(t, 2.0, st.AverageProcessingTime, 1e-9)

	all, err := f.stats.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.TotalFiles)

	require.NoError(t, f.files.Delete(ctx, alice, drop.ID))

	st, err = f.stats.Stats(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalFiles)
	assert.Equal(t, int64(0), st.StatusCounts["failed"])

	all, err = f.stats.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.TotalFiles)
}

func TestStatsDropsResultComputedAcrossInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, alice.UserID, "a.csv", model.StatusReady, time.Now())
	drop := f.seed(t, alice.UserID, "b.csv", model.StatusReady, time.Now())

	// 汇总查询之后、分组查询之前删除一条记录，模拟并发删除
	queries := 0
	require.NoError(t, f.db.Callback().Row().Before("gorm:row").Register("test:concurrent_delete", func(*gorm.DB) {
		queries++
		if queries != 2 {
			return
		}

		require.NoError(t, f.db.Exec("DELETE FROM file_records WHERE id = ?", drop.ID).Error)
		f.stats.InvalidateStats(ctx, alice.UserID)
	}))

	st, err := f.stats.Stats(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.TotalFiles)

	st, err = f.stats.Stats(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalFiles)
}

func newAuth(t *testing.T) (*service.AuthService, *gorm.DB) {
	t.Helper()

	db := dbtest.New(t).DB
	cfg := configs.AuthConfig{
		SecretKey:          "test-secret",
		Algorithm:          "HS256",
		Issuer:             configs.AppName,
		AccessTokenMinutes: 30,
		RefreshTokenDays:   7,
		BcryptCost:         4,
	}

	tokens, err := auth.NewTokenManager(cfg)
	require.NoError(t, err)

	return service.NewAuthService(db, tokens, cfg, zerolog.Nop()), db
}

func strPtr(s string) *string { return &s }

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuth(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, types.RegisterRequest{Username: "alice", Email: strPtr("a@example.com"), Password: "password123"})
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "password123", user.HashedPassword)

	pair, err := svc.Authenticate(ctx, "alice", "password123")
	require.NoError(t, err)

	id, err := svc.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)
	assert.False(t, id.IsAdmin)

	_, err = svc.Verify(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrUnauthorized)

	_, err = svc.Refresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, service.ErrUnauthorized)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, next.AccessToken)
}

func TestRegisterConflictsAndValidation(t *testing.T) {
	svc, _ := newAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, types.RegisterRequest{Username: "alice", Email: strPtr("a@example.com"), Password: "password123"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, types.RegisterRequest{Username: "alice", Password: "password123"})
	require.ErrorIs(t, err, service.ErrConflict)

	_, err = svc.Register(ctx, types.RegisterRequest{Username: "alice2", Email: strPtr("a@example.com"), Password: "password123"})
	require.ErrorIs(t, err, service.ErrConflict)

	// 多个用户可以不填邮箱
	_, err = svc.Register(ctx, types.RegisterRequest{Username: "bob", Email: strPtr(""), Password: "password123"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, types.RegisterRequest{Username: "carol", Password: "password123"})
	require.NoError(t, err)

	for name, req := range map[string]types.RegisterRequest{
		"short username": {Username: "ab", Password: "password123"},
		"short password": {Username: "dave", Password: "short"},
		"bad email":      {Username: "erin", Email: strPtr("nope"), Password: "password123"},
	} {
		_, err := svc.Register(ctx, req)
		assert.ErrorIs(t, err, service.ErrValidation, name)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	svc, db := newAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, types.RegisterRequest{Username: "alice", Password: "password123"})
	require.NoError(t, err)

	_, errUnknown := svc.Authenticate(ctx, "nobody", "password123")
	_, errWrong := svc.Authenticate(ctx, "alice", "wrong-password")

	require.ErrorIs(t, errUnknown, service.ErrUnauthorized)
	require.ErrorIs(t, errWrong, service.ErrUnauthorized)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())

	require.NoError(t, db.Model(&model.User{}).Where("username = ?", "alice").Update("is_active", false).Error)

	_, err = svc.Authenticate(ctx, "alice", "password123")
	require.ErrorIs(t, err, service.ErrForbidden)
}

func TestPromoteAndListUsers(t *testing.T) {
	svc, _ := newAuth(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob"} {
		_, err := svc.Register(ctx, types.RegisterRequest{Username: name, Password: "password123"})
		require.NoError(t, err)
	}

	user, err := svc.Promote(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)

	_, err = svc.Promote(ctx, "nobody")
	require.ErrorIs(t, err, service.ErrNotFound)

	users, total, err := svc.ListUsers(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)
}
