package configs

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultUploadMaxSizeMB  = 10 // 单个文件最大尺寸（MB）
	DefaultScratchTTLMinute = 60 // 临时文件最长保留时间（分钟）
)

// DefaultAllowedExtensions 默认允许上传的扩展名.
var DefaultAllowedExtensions = []string{"csv", "txt", "xlsx", "xls", "pdf", "json"}

// UploadConfig 上传校验与临时目录配置.
type UploadConfig struct {
	MaxSizeMB         int      `mapstructure:"max_size_mb"         rule:"min=1,max=1024"`
	TempDir           string   `mapstructure:"temp_dir"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"  rule:"min=1,dive,required"`
	ScratchTTLMinutes int      `mapstructure:"scratch_ttl_minutes" rule:"min=1"`
	Archive           bool     `mapstructure:"archive"` // 解析成功后把原始文件归档到对象存储
}

// MaxBytes 最大字节数.
func (c *UploadConfig) MaxBytes() int64 {
	return int64(c.MaxSizeMB) * 1024 * 1024
}

// ScratchTTL 临时文件最长保留时间.
func (c *UploadConfig) ScratchTTL() time.Duration {
	return time.Duration(c.ScratchTTLMinutes) * time.Minute
}

// ScratchDir 返回临时目录，未配置时位于系统临时目录下.
func (c *UploadConfig) ScratchDir() string {
	if c.TempDir != "" {
		return c.TempDir
	}

	return filepath.Join(os.TempDir(), AppName+"-uploads")
}

// Allows 判断扩展名（不区分大小写，可带点）是否允许上传.
func (c *UploadConfig) Allows(ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return false
	}

	for _, e := range c.AllowedExtensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}

	return false
}

func (c *UploadConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("upload.max_size_mb", DefaultUploadMaxSizeMB)
	v.SetDefault("upload.temp_dir", "")
	v.SetDefault("upload.allowed_extensions", DefaultAllowedExtensions)
	v.SetDefault("upload.scratch_ttl_minutes", DefaultScratchTTLMinute)
	v.SetDefault("upload.archive", false)
}
