package app_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/fileparser/pkg/app"
	"github.com/yeisme/fileparser/pkg/configs"
	"github.com/yeisme/fileparser/pkg/internal/jobs"
	"github.com/yeisme/fileparser/pkg/internal/notify"
	"github.com/yeisme/fileparser/pkg/internal/types"
)

const sampleCSV = "name,age\nalice,30\nbob,41\n"

type server struct {
	t   *testing.T
	app *app.App
	url string
}

func newServer(t *testing.T, step time.Duration) *server {
	t.Helper()

	cfg := configs.Default()
	cfg.DB.DSN = ":memory:"
	cfg.Upload.TempDir = t.TempDir()
	cfg.Processing.StepInterval = step
	cfg.Auth.SecretKey = "test-secret-key-with-enough-bytes"
	cfg.Auth.BcryptCost = 4

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	srv := httptest.NewServer(a.Engine)
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		assert.NoError(t, a.Close(ctx))
	})

	return &server{t: t, app: a, url: srv.URL}
}

func (s *server) do(method, path, token string, body io.Reader, contentType string) *http.Response {
	s.t.Helper()

	req, err := http.NewRequest(method, s.url+path, body)
	require.NoError(s.t, err)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	s.t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func (s *server) json(method, path, token string, in any) *http.Response {
	s.t.Helper()

	var body io.Reader
	if in != nil {
		b, err := sonic.Marshal(in)
		require.NoError(s.t, err)

		body = bytes.NewReader(b)
	}

	return s.do(method, path, token, body, "application/json")
}

func (s *server) upload(token, filename, content string) *http.Response {
	s.t.Helper()

	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(s.t, err)

	_, err = part.Write([]byte(content))
	require.NoError(s.t, err)
	require.NoError(s.t, w.Close())

	return s.do(http.MethodPost, "/files", token, &buf, w.FormDataContentType())
}

// login 注册并登录，返回访问令牌.
func (s *server) login(username string) string {
	s.t.Helper()

	resp := s.json(http.MethodPost, "/auth/register", "", types.RegisterRequest{Username: username, Password: "password123"})
	require.Equal(s.t, http.StatusCreated, resp.StatusCode)

	return s.token(username)
}

func (s *server) token(username string) string {
	s.t.Helper()

	resp := s.json(http.MethodPost, "/auth/login", "", types.LoginRequest{Username: username, Password: "password123"})
	require.Equal(s.t, http.StatusOK, resp.StatusCode)

	var tok types.TokenResponse
	decode(s.t, resp, &tok)

	return tok.AccessToken
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, sonic.Unmarshal(b, out), string(b))
}

func TestRoot(t *testing.T) {
	s := newServer(t, time.Millisecond)

	resp := s.do(http.MethodGet, "/", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var root types.RootResponse
	decode(t, resp, &root)
	assert.True(t, root.Success)
	assert.Equal(t, configs.AppVersion, root.Data.Version)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t, time.Millisecond)

	resp := s.json(http.MethodPost, "/auth/register", "", types.RegisterRequest{Username: "alice", Password: "password123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var user types.UserResponse
	decode(t, resp, &user)
	assert.Equal(t, "alice", user.Username)
	assert.False(t, user.IsAdmin)

	resp = s.json(http.MethodPost, "/auth/register", "", types.RegisterRequest{Username: "alice", Password: "password123"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.json(http.MethodPost, "/auth/register", "", types.RegisterRequest{Username: "al", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.json(http.MethodPost, "/auth/login", "", types.LoginRequest{Username: "alice", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// 表单登录
	form := strings.NewReader("username=alice&password=password123")
	resp = s.do(http.MethodPost, "/auth/login", "", form, "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tok types.TokenResponse
	decode(t, resp, &tok)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.Positive(t, tok.ExpiresIn)

	resp = s.do(http.MethodGet, "/users/me", tok.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &user)
	assert.Equal(t, "alice", user.Username)

	resp = s.do(http.MethodGet, "/users/me", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))

	resp = s.do(http.MethodGet, "/users/me", "not-a-token", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// 刷新令牌不能当访问令牌用，反之亦然
	resp = s.do(http.MethodGet, "/users/me", tok.RefreshToken, nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.json(http.MethodPost, "/auth/refresh", "", types.RefreshRequest{RefreshToken: tok.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.json(http.MethodPost, "/auth/refresh", "", types.RefreshRequest{RefreshToken: tok.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var refreshed types.TokenResponse
	decode(t, resp, &refreshed)
	assert.NotEmpty(t, refreshed.AccessToken)

	resp = s.do(http.MethodGet, "/users", tok.AccessToken, nil, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// 查询参数里的令牌只在 WebSocket 路由上生效
	resp = s.do(http.MethodGet, "/users/me?token="+tok.AccessToken, "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUploadLifecycle(t *testing.T) {
	s := newServer(t, 20*time.Millisecond)
	alice := s.login("alice")
	bob := s.login("bob")

	resp := s.upload(alice, "people.csv", sampleCSV)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var up types.UploadResponse
	decode(t, resp, &up)
	assert.Equal(t, "people.csv", up.Filename)
	assert.Equal(t, "csv", up.FileType)
	assert.Equal(t, "uploading", up.Status)
	assert.Zero(t, up.Progress)
	require.NotEmpty(t, up.FileID)

	wsURL := "ws" + strings.TrimPrefix(s.url, "http") + "/ws/" + up.FileID + "?token=" + alice
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	defer conn.Close()

	last := -1

	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

		var ev notify.Event
		require.NoError(t, conn.ReadJSON(&ev))
		require.NotNil(t, ev.Data)
		assert.Equal(t, up.FileID, ev.FileID)
		assert.GreaterOrEqual(t, ev.Data.Progress, last, "progress must not go backwards")
		last = ev.Data.Progress

		if ev.Data.Status == "ready" {
			break
		}

		require.NotEqual(t, "failed", ev.Data.Status, ev.Data.ErrorMessage)
	}

	assert.Equal(t, 100, last)

	resp = s.do(http.MethodGet, "/files/"+up.FileID, alice, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	var content struct {
		Status  string `json:"status"`
		Content struct {
			Rows []map[string]any `json:"rows"`
		} `json:"content"`
		Metadata struct {
			RowCount int      `json:"row_count"`
			Columns  []string `json:"columns"`
		} `json:"file_metadata"`
	}
	decode(t, resp, &content)
	assert.Equal(t, "ready", content.Status)
	assert.Len(t, content.Content.Rows, 2)
	assert.Equal(t, 2, content.Metadata.RowCount)
	assert.Equal(t, []string{"name", "age"}, content.Metadata.Columns)

	req, err := http.NewRequest(http.MethodGet, s.url+"/files/"+up.FileID, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+alice)
	req.Header.Set("If-None-Match", etag)

	cached, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = cached.Body.Close()
	assert.Equal(t, http.StatusNotModified, cached.StatusCode)

	resp = s.do(http.MethodGet, "/files/"+up.FileID+"/progress", alice, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var progress types.ProgressResponse
	decode(t, resp, &progress)
	assert.Equal(t, 100, progress.Progress)
	assert.Equal(t, "ready", progress.Status)

	resp = s.do(http.MethodGet, "/files?status=ready", alice, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list types.FileListResponse
	decode(t, resp, &list)
	assert.EqualValues(t, 1, list.Total)

	resp = s.do(http.MethodGet, "/files/search?q=PEOPLE", alice, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &list)
	assert.EqualValues(t, 1, list.Total)

	resp = s.do(http.MethodGet, "/files/stats", alice, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats types.StatsResponse
	decode(t, resp, &stats)
	assert.EqualValues(t, 1, stats.TotalFiles)
	assert.EqualValues(t, 1, stats.StatusCounts["ready"])
	assert.EqualValues(t, 1, stats.FileTypes["csv"])

	// 其他用户看不到这份文件
	resp = s.do(http.MethodGet, "/files/"+up.FileID, bob, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(http.MethodDelete, "/files/"+up.FileID, bob, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(http.MethodGet, "/files", bob, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &list)
	assert.Zero(t, list.Total)

	resp = s.do(http.MethodDelete, "/files/"+up.FileID, alice, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var deleted types.DeleteResponse
	decode(t, resp, &deleted)
	assert.True(t, deleted.Success)

	resp = s.do(http.MethodGet, "/files/"+up.FileID, alice, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(http.MethodGet, "/files/stats", alice, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &stats)
	assert.Zero(t, stats.TotalFiles)
}

func TestUploadRejected(t *testing.T) {
	s := newServer(t, time.Millisecond)
	alice := s.login("alice")

	resp := s.upload(alice, "setup.exe", "MZ")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.upload(alice, "empty.csv", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(http.MethodPost, "/files", alice, strings.NewReader("plain"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.upload("", "people.csv", sampleCSV)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(http.MethodGet, "/files?status=bogus", alice, nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(http.MethodGet, "/files/search", alice, nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestContentNotReady(t *testing.T) {
	s := newServer(t, time.Hour)
	alice := s.login("alice")

	resp := s.upload(alice, "notes.txt", "hello world")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var up types.UploadResponse
	decode(t, resp, &up)

	resp = s.do(http.MethodGet, "/files/"+up.FileID, alice, nil, "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var nr types.NotReadyResponse
	decode(t, resp, &nr)
	assert.NotEmpty(t, nr.Error)
	assert.Equal(t, up.FileID, nr.FileID)
	assert.Less(t, nr.Progress, 100)

	resp = s.do(http.MethodGet, "/ws/"+up.FileID, "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	s := newServer(t, time.Millisecond)

	for path, want := range map[string]int{
		"/health/db": http.StatusOK,
		"/health/kv": http.StatusOK,
		"/health/mq": http.StatusOK,
		"/health/s3": http.StatusServiceUnavailable,
	} {
		resp := s.do(http.MethodGet, path, "", nil, "")
		assert.Equal(t, want, resp.StatusCode, path)
	}
}

func TestAdminScheduler(t *testing.T) {
	s := newServer(t, time.Millisecond)
	user := s.login("alice")
	s.login("root")

	_, err := s.app.Auth().Promote(context.Background(), "root")
	require.NoError(t, err)

	root := s.token("root")

	resp := s.do(http.MethodGet, "/admin/scheduler/jobs", user, nil, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(http.MethodGet, "/admin/scheduler/jobs", root, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listed struct {
		Jobs []struct {
			Name string `json:"name"`
		} `json:"jobs"`
	}
	decode(t, resp, &listed)

	names := make([]string, 0, len(listed.Jobs))
	for _, j := range listed.Jobs {
		names = append(names, j.Name)
	}

	assert.ElementsMatch(t, []string{jobs.JobStaleSweep, jobs.JobScratchClean}, names)

	resp = s.do(http.MethodPost, "/admin/scheduler/jobs/"+jobs.JobScratchClean+"/run", root, nil, "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = s.do(http.MethodPost, "/admin/scheduler/jobs/nope/run", root, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(http.MethodGet, "/users", root, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var users types.UserListResponse
	decode(t, resp, &users)
	assert.EqualValues(t, 2, users.Total)
}
