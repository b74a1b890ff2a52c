// Package storage 聚合数据库、对象存储、消息队列与键值存储.
//
// Example:
//
//	mgr, err := storage.Init(ctx, cfg, storage.Options{})
//	if err != nil {
//		// 处理错误
//	}
//
//	dbClient := mgr.GetDBClient()
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeisme/fileparser/pkg/configs"
	"github.com/yeisme/fileparser/pkg/internal/model"
	dbc "github.com/yeisme/fileparser/pkg/internal/storage/db"
	kvc "github.com/yeisme/fileparser/pkg/internal/storage/kv"
	mqc "github.com/yeisme/fileparser/pkg/internal/storage/mq"
	s3c "github.com/yeisme/fileparser/pkg/internal/storage/s3"
	nlog "github.com/yeisme/fileparser/pkg/log"
)

// Manager 聚合所有存储资源，S3 未启用时为 nil.
type Manager struct {
	DB *dbc.Client
	S3 *s3c.Client
	MQ *mqc.Client
	KV *kvc.Client
}

// Options 可选参数.
type Options struct {
	// Registerer 非空时为消息队列装饰指标.
	Registerer prometheus.Registerer
}

// Init 按配置初始化全部存储，任一失败时关闭已打开的资源.
func Init(ctx context.Context, cfg *configs.AppConfig, opts Options) (*Manager, error) {
	m := &Manager{}

	var err error

	if m.DB, err = dbc.New(ctx, &cfg.DB); err != nil {
		return nil, err
	}

	if cfg.DB.AutoMigrate {
		if err = m.DB.Migrate(ctx, model.Models()...); err != nil {
			_ = m.Close()

			return nil, err
		}
	}

	if m.MQ, err = mqc.Open(ctx, &cfg.MQ, mqc.Options{Registerer: opts.Registerer}); err != nil {
		_ = m.Close()

		return nil, err
	}

	if m.KV, err = kvc.New(ctx, &cfg.KV); err != nil {
		_ = m.Close()

		return nil, fmt.Errorf("init kv (%s): %w", cfg.KV.Type, err)
	}

	if cfg.S3.Enabled {
		if m.S3, err = s3c.New(ctx, &cfg.S3); err != nil {
			_ = m.Close()

			return nil, err
		}
	}

	nlog.Logger().Info().
		Str("db", cfg.DB.GetDBType()).
		Str("mq", string(cfg.MQ.Type)).
		Str("kv", string(cfg.KV.Type)).
		Bool("s3", m.S3 != nil).
		Msg("storage manager initialized")

	return m, nil
}

// GetS3Client 获取 S3 客户端.
func (m *Manager) GetS3Client() *s3c.Client {
	return m.S3
}

// GetDBClient 获取 DB 客户端.
func (m *Manager) GetDBClient() *dbc.Client {
	return m.DB
}

// GetMQClient 获取 MQ 客户端.
func (m *Manager) GetMQClient() *mqc.Client {
	return m.MQ
}

// GetKVClient 获取 KV 客户端.
func (m *Manager) GetKVClient() *kvc.Client {
	return m.KV
}

// Close 关闭全部已打开的资源.
func (m *Manager) Close() error {
	var errs []error

	if m.MQ != nil {
		errs = append(errs, m.MQ.Close())
	}

	if m.KV != nil {
		errs = append(errs, m.KV.Close())
	}

	if m.DB != nil {
		errs = append(errs, m.DB.Close())
	}

	return errors.Join(errs...)
}
