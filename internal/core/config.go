package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/IEAHarvest/internal/models"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Harvest models.HarvestConfig `mapstructure:"harvest"`
	Logging LoggingConfig        `mapstructure:"logging"`
	Output  OutputConfig         `mapstructure:"output"`
	Ingest  IngestConfig         `mapstructure:"ingest"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir      string `mapstructure:"base_dir"`      // 数据文件根目录
	ProgressFile string `mapstructure:"progress_file"` // 进度台账(相对base_dir)
	ReportFile   string `mapstructure:"report_file"`   // 文本报告(相对base_dir)
	JSONReport   bool   `mapstructure:"json_report"`   // 同时输出JSON报告
}

// IngestConfig 入库配置
type IngestConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".ieaharvest"))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
		// 配置文件不存在,使用默认值
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	h := models.DefaultHarvestConfig()

	// 采集配置默认值
	v.SetDefault("harvest.base_url", h.BaseURL)
	v.SetDefault("harvest.headless", h.Headless)
	v.SetDefault("harvest.stealth", h.Stealth)
	v.SetDefault("harvest.window_width", h.WindowWidth)
	v.SetDefault("harvest.window_height", h.WindowHeight)
	v.SetDefault("harvest.navigate_timeout", h.NavigateTimeout)
	v.SetDefault("harvest.settle_timeout", h.SettleTimeout)
	v.SetDefault("harvest.settle_poll", h.SettlePoll)
	v.SetDefault("harvest.restart_every", h.RestartEvery)
	v.SetDefault("harvest.launch_retries", h.LaunchRetries)
	v.SetDefault("harvest.launch_backoff", h.LaunchBackoff)
	v.SetDefault("harvest.retry_failed", h.RetryFailed)
	v.SetDefault("harvest.memory_floor_mb", h.MemoryFloorMB)

	// 滚动方案和阈值是实测调优值
	v.SetDefault("harvest.scroll.initial_pause", h.Scroll.InitialPause)
	v.SetDefault("harvest.scroll.offsets", h.Scroll.Offsets)
	v.SetDefault("harvest.scroll.step_pause", h.Scroll.StepPause)
	v.SetDefault("harvest.scroll.bottom_pause", h.Scroll.BottomPause)
	v.SetDefault("harvest.scroll.top_pause", h.Scroll.TopPause)
	v.SetDefault("harvest.thresholds.snapshot_min_size", h.Thresholds.SnapshotMinSize)
	v.SetDefault("harvest.thresholds.total_production_min_size", h.Thresholds.TotalProductionMinSize)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.base_dir", "data/iea_scraped")
	v.SetDefault("output.progress_file", models.DefaultLedgerFile)
	v.SetDefault("output.report_file", "scraping_log.txt")
	v.SetDefault("output.json_report", true)

	// 入库配置默认值
	v.SetDefault("ingest.db_path", "data/iea_electricity.db")
}

// ProgressPath 进度台账完整路径
func (c *Config) ProgressPath() string {
	return resolveIn(c.Output.BaseDir, c.Output.ProgressFile)
}

// ReportPath 文本报告完整路径
func (c *Config) ReportPath() string {
	return resolveIn(c.Output.BaseDir, c.Output.ReportFile)
}

// resolveIn 相对路径放在base目录下
func resolveIn(base, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(base, name)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Output.BaseDir == "" {
		return fmt.Errorf("output.base_dir不能为空")
	}
	if c.Output.ProgressFile == "" || c.Output.ReportFile == "" {
		return fmt.Errorf("output.progress_file和output.report_file不能为空")
	}
	return c.Harvest.Validate()
}

// MergeCLIFlags 合并命令行参数到配置
// 命令行参数优先于配置文件; 零值表示未指定
func (c *Config) MergeCLIFlags(outputDir string, restartEvery int, headless, stealth, retryFailed *bool) {
	if outputDir != "" {
		c.Output.BaseDir = outputDir
	}
	if restartEvery > 0 {
		c.Harvest.RestartEvery = restartEvery
	}
	if headless != nil {
		c.Harvest.Headless = *headless
	}
	if stealth != nil {
		c.Harvest.Stealth = *stealth
	}
	if retryFailed != nil {
		c.Harvest.RetryFailed = *retryFailed
	}
}
