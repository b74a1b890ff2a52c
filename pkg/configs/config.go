// Package configs 管理应用程序配置，包括服务、数据库、存储、消息队列与文件处理的配置信息.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv）并启用热重载.
//
// Example:
//
//	err := configs.InitConfig("./")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	config := configs.GetConfig()
//	fmt.Println(config.Server.Port)
//
// Example accessing upload config:
//
//	config := configs.GetConfig()
//	fmt.Println("max upload:", config.Upload.MaxBytes())
package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/yeisme/fileparser/pkg/rule"
)

const (
	AppName    = "fileparser" // 服务名称
	AppVersion = "2.0.0"      // 服务版本
	EnvPrefix  = "FILEPARSER" // 环境变量前缀
)

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		Server         ServerConfig         `mapstructure:"server"`          // ServerConfig 服务器配置，端口、调试模式等
		DB             DBConfig             `mapstructure:"db"`              // DBConfig 数据库配置
		S3             S3Config             `mapstructure:"s3"`              // S3Config 对象存储配置
		MQ             MQConfig             `mapstructure:"mq"`              // MQConfig 消息队列配置
		KV             KVConfig             `mapstructure:"kv"`              // KVConfig 键值存储配置
		Log            LogConfig            `mapstructure:"log"`             // LogConfig 日志相关配置
		Auth           AuthConfig           `mapstructure:"auth"`            // AuthConfig 令牌与密码配置
		Upload         UploadConfig         `mapstructure:"upload"`          // UploadConfig 上传校验与临时目录
		Processing     ProcessingConfig     `mapstructure:"processing"`      // ProcessingConfig 进度模拟与解析
		Notify         NotifyConfig         `mapstructure:"notify"`          // NotifyConfig 实时推送
		Cache          CacheConfig          `mapstructure:"cache"`           // CacheConfig 统计缓存
		Events         EventsConfig         `mapstructure:"events"`          // EventsConfig 生命周期事件开关
		Metrics        MetricsConfig        `mapstructure:"metrics"`         // MetricsConfig 指标
		Tracing        TracingConfig        `mapstructure:"tracing"`         // TracingConfig 链路追踪
		RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`      // RateLimitConfig 限流
		CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"` // CircuitBreakerConfig 熔断
	}
)

// defaulter 每个配置段都实现 setDefaults.
type defaulter interface {
	setDefaults(v *viper.Viper)
}

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper *viper.Viper
	mu       sync.RWMutex
)

// InitConfig 加载应用程序配置，支持多种格式(yaml、json、toml、dotenv)并启用热重载.
// path 可以是配置文件，也可以是目录；目录下找不到配置文件时仅使用默认值与环境变量.
func InitConfig(path string) error {
	v := viper.New()
	setAllDefaults(v)

	hasFile := false

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		v.SetConfigFile(path)

		hasFile = true
	} else if path != "" {
		for _, ext := range []string{"yaml", "yml", "json", "toml", "env", "dotenv"} {
			for _, dir := range []string{path, filepath.Join(path, "configs")} {
				cfg := filepath.Join(dir, "config."+ext)
				if _, err := os.Stat(cfg); err == nil {
					v.SetConfigFile(cfg)

					hasFile = true

					break
				}
			}

			if hasFile {
				break
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if hasFile {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return err
	}

	mu.Lock()
	appViper = v
	globalConfig = *cfg
	mu.Unlock()

	if hasFile {
		reloadConfigs(v, cfg.Server.ReloadConfig)
	}

	return nil
}

// Default 返回仅包含默认值的配置，测试和命令行工具使用.
func Default() *AppConfig {
	v := viper.New()
	setAllDefaults(v)

	cfg, err := decode(v)
	if err != nil {
		panic(fmt.Sprintf("invalid default config: %v", err))
	}

	return cfg
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 按 rule 标签校验配置，并检查跨字段约束.
func (c *AppConfig) Validate() error {
	if err := rule.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := c.Processing.validateCheckpoints(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	sections := []defaulter{
		&ServerConfig{},
		&DBConfig{},
		&S3Config{},
		&MQConfig{},
		&KVConfig{},
		&LogConfig{},
		&AuthConfig{},
		&UploadConfig{},
		&ProcessingConfig{},
		&NotifyConfig{},
		&CacheConfig{},
		&EventsConfig{},
		&MetricsConfig{},
		&TracingConfig{},
		&RateLimitConfig{},
		&CircuitBreakerConfig{},
	}
	for _, s := range sections {
		s.setDefaults(v)
	}
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config %s changed but was rejected: %v\n", e.Name, err)

			return
		}

		mu.Lock()
		globalConfig = *cfg
		mu.Unlock()

		fmt.Fprintf(os.Stderr, "config %s reloaded\n", e.Name)
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	mu.RLock()
	defer mu.RUnlock()

	cfg := globalConfig

	return &cfg
}

// GetViper 返回全局 Viper 实例，未初始化时为 nil.
func GetViper() *viper.Viper {
	mu.RLock()
	defer mu.RUnlock()

	return appViper
}
