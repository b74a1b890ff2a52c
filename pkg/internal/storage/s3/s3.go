// Package s3 处理对象存储操作，用于归档解析完成的原始文件.
package s3

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/url"
	"path"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/oklog/ulid"

	"github.com/yeisme/fileparser/pkg/configs"
	nlog "github.com/yeisme/fileparser/pkg/log"
)

// Client 包装 MinIO 客户端.
type Client struct {
	*minio.Client
	bucket string
	prefix string
}

// New 初始化 MinIO 客户端，若 bucket 不存在则创建.
func New(ctx context.Context, cfg *configs.S3Config) (*Client, error) {
	endpoint := cfg.Endpoint
	secure := cfg.UseSSL
	// 允许传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo(configs.AppName, configs.AppVersion)

	exists, err := cli.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.BucketName, err)
	}

	if !exists {
		if err := cli.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.BucketName, err)
		}

		nlog.Logger().Info().Str("bucket", cfg.BucketName).Msg("bucket created")
	}

	nlog.Logger().Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.BucketName).Msg("s3 connected")

	return &Client{Client: cli, bucket: cfg.BucketName, prefix: cfg.Prefix}, nil
}

// ObjectKey 生成按时间排序的对象键：{prefix}{ulid}/{filename}.
func (c *Client) ObjectKey(filename string) string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)

	return c.prefix + id.String() + "/" + path.Base(filename)
}

// PutArtifact 上传本地文件，返回对象键.
func (c *Client) PutArtifact(ctx context.Context, localPath, filename, contentType string) (string, error) {
	key := c.ObjectKey(filename)

	if _, err := c.FPutObject(ctx, c.bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return key, nil
}

// RemoveArtifact 删除对象，对象不存在视为成功.
func (c *Client) RemoveArtifact(ctx context.Context, key string) error {
	err := c.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})

	var resp minio.ErrorResponse
	if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
		return nil
	}

	return err
}

// HealthCheck 检查桶是否可访问.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.BucketExists(ctx, c.bucket)

	return err
}

// Bucket 返回归档桶名称.
func (c *Client) Bucket() string {
	return c.bucket
}
