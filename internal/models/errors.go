package models

import (
	"errors"
	"fmt"
)

// FaultKind 故障类型
// 调用方按类型分支处理,而不是按具体错误类型捕获
type FaultKind string

const (
	FaultNone               FaultKind = ""
	FaultSessionInvalidated FaultKind = "session_invalidated"  // 渲染会话不可用,需要替换会话
	FaultNoArtifacts        FaultKind = "no_artifacts_found"   // 页面上没有可用的数据文件
	FaultTransientPage      FaultKind = "transient_page_fault" // 导航/提取过程中的其他错误
	FaultPersistence        FaultKind = "persistence_fault"    // 写入文件失败
)

// ErrSessionInvalidated 会话失效哨兵错误,可与任何会话失效类型的HarvestError匹配
var ErrSessionInvalidated = errors.New("渲染会话已失效")

// HarvestError 采集错误
type HarvestError struct {
	// Kind 故障类型
	Kind FaultKind

	// Subject 出错的采集对象 (可为空)
	Subject Subject

	// Cause 底层错误
	Cause error
}

// NewHarvestError 创建采集错误
func NewHarvestError(kind FaultKind, subject Subject, cause error) *HarvestError {
	return &HarvestError{Kind: kind, Subject: subject, Cause: cause}
}

// SessionInvalidated 包装会话失效错误
func SessionInvalidated(cause error) *HarvestError {
	return &HarvestError{Kind: FaultSessionInvalidated, Cause: cause}
}

// Error 实现error接口
func (e *HarvestError) Error() string {
	msg := string(e.Kind)
	if e.Subject != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Subject)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap 支持errors.Unwrap
func (e *HarvestError) Unwrap() error {
	return e.Cause
}

// Is 会话失效类型的错误与ErrSessionInvalidated匹配
func (e *HarvestError) Is(target error) bool {
	return target == ErrSessionInvalidated && e.Kind == FaultSessionInvalidated
}

// KindOf 提取错误链中的故障类型
// nil返回FaultNone,非HarvestError视为FaultTransientPage
func KindOf(err error) FaultKind {
	if err == nil {
		return FaultNone
	}
	var he *HarvestError
	if errors.As(err, &he) {
		return he.Kind
	}
	if errors.Is(err, ErrSessionInvalidated) {
		return FaultSessionInvalidated
	}
	return FaultTransientPage
}

// IsSessionInvalidated 是否为会话失效
func IsSessionInvalidated(err error) bool {
	return KindOf(err) == FaultSessionInvalidated
}

// ConfigError 配置文件错误
// 表示配置文件解析失败
type ConfigError struct {
	// FilePath 配置文件路径
	FilePath string

	// Cause 底层错误 (如viper.ConfigParseError)
	Cause error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
