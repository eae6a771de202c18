package main

import (
	"fmt"
	"strings"
)

// validLogLevels 支持的日志级别
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateFlags 验证命令行标志
func ValidateFlags(subjectsFile, subjectList string, restartEvery int, logLevel string) error {
	// 对象来源只能指定一个
	if subjectsFile != "" && strings.TrimSpace(subjectList) != "" {
		return fmt.Errorf("--subjects 和 --subjects-file 不能同时使用")
	}

	// 0 表示使用配置文件
	if restartEvery < 0 || restartEvery > 1000 {
		return fmt.Errorf("会话重启间隔必须在1-1000之间,当前值: %d", restartEvery)
	}

	if logLevel != "" && !validLogLevels[strings.ToLower(logLevel)] {
		return fmt.Errorf("无效的日志级别: %s (有效值: trace, debug, info, warn, error)", logLevel)
	}

	return nil
}
