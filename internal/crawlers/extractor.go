package crawlers

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/RecoveryAshes/IEAHarvest/internal/models"
	"github.com/rs/zerolog/log"
)

// CSVLinkSelector 页面中内嵌CSV下载链接的选择器
const CSVLinkSelector = `a[download][href^="` + models.CSVMediaPrefix + `"]`

// Extractor 数据文件提取器
// 职责: 查找页面中的CSV下载链接,解码data URI为候选文件
type Extractor struct {
	selector string
}

// NewExtractor 创建提取器实例
func NewExtractor() *Extractor {
	return &Extractor{selector: CSVLinkSelector}
}

// Extract 从会话当前页面提取候选文件
// 没有匹配元素时返回空列表; 单个链接异常只跳过该链接; 会话失效错误原样返回
func (e *Extractor) Extract(session Session) ([]models.Candidate, error) {
	elements, err := session.QueryElements(e.selector)
	if err != nil {
		return nil, fmt.Errorf("查询下载链接失败: %w", err)
	}

	candidates := make([]models.Candidate, 0, len(elements))
	for i, el := range elements {
		name, err := session.GetAttribute(el, "download")
		if err != nil {
			if models.IsSessionInvalidated(err) {
				return nil, err
			}
			log.Debug().Err(err).Int("index", i).Msg("读取download属性失败,跳过")
			continue
		}
		href, err := session.GetAttribute(el, "href")
		if err != nil {
			if models.IsSessionInvalidated(err) {
				return nil, err
			}
			log.Debug().Err(err).Int("index", i).Msg("读取href属性失败,跳过")
			continue
		}
		if name == nil || *name == "" || href == nil || *href == "" {
			continue
		}

		content, err := DecodeDataURI(*href)
		if err != nil {
			log.Debug().Err(err).Str("name", *name).Msg("data URI解码失败,跳过")
			continue
		}

		candidates = append(candidates, models.Candidate{
			RawName:    *name,
			RawContent: content,
		})
	}

	return candidates, nil
}

// DecodeDataURI 解码 data:<media>[;params],<payload>
// 普通负载按百分号编码解码('+'和非法的%序列保持原样); 带;base64参数时按base64解码
func DecodeDataURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", fmt.Errorf("不是data URI")
	}

	header, payload, found := strings.Cut(uri[len("data:"):], ",")
	if !found {
		return "", fmt.Errorf("data URI缺少数据分隔符")
	}

	isBase64 := false
	for _, param := range strings.Split(header, ";")[1:] {
		if strings.EqualFold(strings.TrimSpace(param), "base64") {
			isBase64 = true
		}
	}

	decoded := percentDecode(payload)
	if !isBase64 {
		return decoded, nil
	}

	raw, err := base64.StdEncoding.DecodeString(decoded)
	if err != nil {
		return "", fmt.Errorf("base64解码失败: %w", err)
	}
	return string(raw), nil
}

// percentDecode 解码合法的%XX序列,其余字符原样保留
func percentDecode(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi, okHi := unhex(s[i+1])
			lo, okLo := unhex(s[i+2])
			if okHi && okLo {
				b.WriteByte(hi<<4 | lo)
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
