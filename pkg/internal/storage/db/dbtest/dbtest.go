// Package dbtest 为测试提供迁移好的内存 SQLite.
package dbtest

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"

	"github.com/yeisme/fileparser/pkg/configs"
	"github.com/yeisme/fileparser/pkg/internal/model"
	"github.com/yeisme/fileparser/pkg/internal/storage/db"
)

// New 打开一个独立的内存库，测试结束时关闭.
func New(t testing.TB) *db.Client {
	t.Helper()

	cfg := &configs.DBConfig{Type: configs.SQLite, Database: t.Name(), MaxIdleConns: 1}

	client, err := db.Open(context.Background(), sqlite.Open(":memory:"), cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := client.Migrate(context.Background(), model.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { _ = client.Close() })

	return client
}
