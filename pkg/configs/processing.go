package configs

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultStepInterval  = time.Second      // 相邻检查点之间的停顿
	DefaultMaxConcurrent = 16               // 同时解析的文件数上限
	DefaultMaxRows       = 1000             // 表格类内容最多保存的行数
	DefaultMaxTextBytes  = 1 << 20          // 文本类内容最多保存的字节数
	DefaultStaleAfter    = 10 * time.Minute // 超过该时间未更新的处理中记录视为中断
	DefaultStaleSweep    = "*/5 * * * *"    // 中断记录巡检
	DefaultScratchSweep  = "0 * * * *"      // 临时目录清理
)

// DefaultCheckpoints 默认检查点，最后一个必须为 100.
var DefaultCheckpoints = []int{20, 40, 60, 80, 100}

// ProcessingConfig 进度模拟与解析配置.
type ProcessingConfig struct {
	StepInterval     time.Duration `mapstructure:"step_interval"`
	Checkpoints      []int         `mapstructure:"checkpoints"        rule:"min=1,dive,min=1,max=100"`
	MaxConcurrent    int           `mapstructure:"max_concurrent"     rule:"min=1"`
	MaxRows          int           `mapstructure:"max_rows"           rule:"min=1"`
	MaxTextBytes     int           `mapstructure:"max_text_bytes"     rule:"min=1"`
	StaleAfter       time.Duration `mapstructure:"stale_after"`
	StaleSweepCron   string        `mapstructure:"stale_sweep_cron"   rule:"required"`
	ScratchSweepCron string        `mapstructure:"scratch_sweep_cron" rule:"required"`
}

var errCheckpoints = errors.New("processing.checkpoints must be strictly increasing and end at 100")

func (c *ProcessingConfig) validateCheckpoints() error {
	prev := 0
	for _, cp := range c.Checkpoints {
		if cp <= prev {
			return errCheckpoints
		}

		prev = cp
	}

	if prev != 100 {
		return errCheckpoints
	}

	if c.StepInterval < 0 {
		return fmt.Errorf("processing.step_interval must not be negative, got %s", c.StepInterval)
	}

	return nil
}

// Intermediate 返回最终检查点之前的检查点.
func (c *ProcessingConfig) Intermediate() []int {
	if len(c.Checkpoints) == 0 {
		return nil
	}

	return c.Checkpoints[:len(c.Checkpoints)-1]
}

func (c *ProcessingConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("processing.step_interval", DefaultStepInterval)
	v.SetDefault("processing.checkpoints", DefaultCheckpoints)
	v.SetDefault("processing.max_concurrent", DefaultMaxConcurrent)
	v.SetDefault("processing.max_rows", DefaultMaxRows)
	v.SetDefault("processing.max_text_bytes", DefaultMaxTextBytes)
	v.SetDefault("processing.stale_after", DefaultStaleAfter)
	v.SetDefault("processing.stale_sweep_cron", DefaultStaleSweep)
	v.SetDefault("processing.scratch_sweep_cron", DefaultScratchSweep)
}
