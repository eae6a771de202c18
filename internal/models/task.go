package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// OutcomeStatus 单个采集对象的结果状态
type OutcomeStatus string

const (
	StatusSucceeded OutcomeStatus = "succeeded" // 至少落盘一个文件
	StatusFailed    OutcomeStatus = "failed"    // 失败(原因见FaultKind)
)

// DefaultBaseURL IEA国家电力页面模板
const DefaultBaseURL = "https://www.iea.org/countries/%s/electricity"

// ScrollPlan 滚动触发方案
// 页面图表仅在滚动进入视口后才渲染下载链接,以下数值为实测调优结果,不要随意修改
type ScrollPlan struct {
	InitialPause time.Duration `mapstructure:"initial_pause" json:"initial_pause"` // 就绪后首次等待
	Offsets      []int         `mapstructure:"offsets" json:"offsets"`             // 逐级滚动位置(px)
	StepPause    time.Duration `mapstructure:"step_pause" json:"step_pause"`       // 每级滚动后等待
	BottomPause  time.Duration `mapstructure:"bottom_pause" json:"bottom_pause"`   // 滚动到底部后等待
	TopPause     time.Duration `mapstructure:"top_pause" json:"top_pause"`         // 回到顶部后等待
}

// DefaultScrollPlan 默认滚动方案
func DefaultScrollPlan() ScrollPlan {
	return ScrollPlan{
		InitialPause: 3 * time.Second,
		Offsets:      []int{0, 500, 1000, 1500, 2000, 2500, 3000, 4000, 5000},
		StepPause:    1300 * time.Millisecond,
		BottomPause:  3 * time.Second,
		TopPause:     2 * time.Second,
	}
}

// Thresholds 分类器的内容长度阈值(字符数)
type Thresholds struct {
	SnapshotMinSize        int `mapstructure:"snapshot_min_size" json:"snapshot_min_size"`                 // 标题含年份时低于此长度视为单年快照
	TotalProductionMinSize int `mapstructure:"total_production_min_size" json:"total_production_min_size"` // 总产量文件最小长度
}

// DefaultThresholds 默认阈值
func DefaultThresholds() Thresholds {
	return Thresholds{
		SnapshotMinSize:        1000,
		TotalProductionMinSize: 500,
	}
}

// HarvestConfig 采集配置
type HarvestConfig struct {
	BaseURL         string        `mapstructure:"base_url" json:"base_url"`                 // 页面URL模板(含一个%s)
	Headless        bool          `mapstructure:"headless" json:"headless"`                 // 无头模式 (默认:true)
	Stealth         bool          `mapstructure:"stealth" json:"stealth"`                   // 使用stealth页面
	WindowWidth     int           `mapstructure:"window_width" json:"window_width"`         // 窗口宽度
	WindowHeight    int           `mapstructure:"window_height" json:"window_height"`       // 窗口高度
	NavigateTimeout time.Duration `mapstructure:"navigate_timeout" json:"navigate_timeout"` // 单次浏览器操作超时
	SettleTimeout   time.Duration `mapstructure:"settle_timeout" json:"settle_timeout"`     // 等待页面就绪上限(超时不算失败)
	SettlePoll      time.Duration `mapstructure:"settle_poll" json:"settle_poll"`           // 就绪轮询间隔
	RestartEvery    int           `mapstructure:"restart_every" json:"restart_every"`       // 每处理N个对象重启会话
	LaunchRetries   int           `mapstructure:"launch_retries" json:"launch_retries"`     // 会话启动重试次数
	LaunchBackoff   time.Duration `mapstructure:"launch_backoff" json:"launch_backoff"`     // 启动重试间隔
	RetryFailed     bool          `mapstructure:"retry_failed" json:"retry_failed"`         // 从头扫描,重试台账之外的对象
	MemoryFloorMB   int           `mapstructure:"memory_floor_mb" json:"memory_floor_mb"`   // 可用内存低于此值时提前重启会话(0关闭)
	Scroll          ScrollPlan    `mapstructure:"scroll" json:"scroll"`
	Thresholds      Thresholds    `mapstructure:"thresholds" json:"thresholds"`
}

// DefaultHarvestConfig 默认采集配置
func DefaultHarvestConfig() HarvestConfig {
	return HarvestConfig{
		BaseURL:         DefaultBaseURL,
		Headless:        true,
		WindowWidth:     1920,
		WindowHeight:    1080,
		NavigateTimeout: 60 * time.Second,
		SettleTimeout:   10 * time.Second,
		SettlePoll:      500 * time.Millisecond,
		RestartEvery:    5,
		LaunchRetries:   3,
		LaunchBackoff:   2 * time.Second,
		MemoryFloorMB:   300,
		Scroll:          DefaultScrollPlan(),
		Thresholds:      DefaultThresholds(),
	}
}

// Validate 验证配置
func (c *HarvestConfig) Validate() error {
	if err := ValidateBaseURL(c.BaseURL); err != nil {
		return fmt.Errorf("base_url无效: %w", err)
	}
	if c.RestartEvery < 1 || c.RestartEvery > 1000 {
		return fmt.Errorf("会话重启间隔必须在1-1000之间")
	}
	if c.LaunchRetries < 0 || c.LaunchRetries > 10 {
		return fmt.Errorf("启动重试次数必须在0-10之间")
	}
	if c.SettleTimeout < 0 || c.SettlePoll < 0 || c.NavigateTimeout < 0 {
		return fmt.Errorf("超时时间不能为负数")
	}
	if c.SettleTimeout > 0 && c.SettlePoll <= 0 {
		return fmt.Errorf("设置了就绪超时时轮询间隔必须大于0")
	}
	for _, off := range c.Scroll.Offsets {
		if off < 0 {
			return fmt.Errorf("滚动位置不能为负数: %d", off)
		}
	}
	if c.Thresholds.SnapshotMinSize < 0 || c.Thresholds.TotalProductionMinSize < 0 {
		return fmt.Errorf("长度阈值不能为负数")
	}
	return nil
}

// SubjectURL 采集对象的页面地址
func (c *HarvestConfig) SubjectURL(s Subject) string {
	return fmt.Sprintf(c.BaseURL, s)
}

// SubjectOutcome 单个采集对象的处理结果
type SubjectOutcome struct {
	Subject    Subject        `json:"subject"`
	Status     OutcomeStatus  `json:"status"`
	Fault      FaultKind      `json:"fault,omitempty"`
	Message    string         `json:"message,omitempty"`
	Artifacts  []ArtifactInfo `json:"artifacts"`
	Candidates int            `json:"candidates"` // 页面上找到的下载链接数
	Attempts   int            `json:"attempts"`
	Duration   float64        `json:"duration"` // 秒
}

// Succeeded 是否成功
func (o *SubjectOutcome) Succeeded() bool {
	return o != nil && o.Status == StatusSucceeded
}

// FailedOutcome 构造失败结果
func FailedOutcome(s Subject, kind FaultKind, msg string) *SubjectOutcome {
	return &SubjectOutcome{
		Subject:   s,
		Status:    StatusFailed,
		Fault:     kind,
		Message:   msg,
		Artifacts: []ArtifactInfo{},
	}
}

// ToJSON 序列化为JSON
func (o *SubjectOutcome) ToJSON() ([]byte, error) {
	return json.MarshalIndent(o, "", "  ")
}
