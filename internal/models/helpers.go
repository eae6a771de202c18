package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// sampleSubject 展开地址模板时使用的示例slug
const sampleSubject Subject = "canada"

// ValidateBaseURL 验证国家页面地址模板
// 模板必须只含一个%s,展开后是http(s)地址,且对象slug位于路径中
func ValidateBaseURL(template string) error {
	if strings.Count(template, "%s") != 1 {
		return fmt.Errorf("地址模板必须且只能包含一个%%s占位符: %s", template)
	}

	parsed, err := url.Parse(fmt.Sprintf(template, sampleSubject))
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	if !strings.Contains(parsed.Path, string(sampleSubject)) {
		return fmt.Errorf("%%s占位符必须位于URL路径中: %s", template)
	}
	return nil
}

// newRunID 生成运行ID
func newRunID() string {
	return uuid.New().String()
}
