package models

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxArtifactSize 单个数据文件最大大小 50MB
	MaxArtifactSize = 50 * 1024 * 1024

	// CSVMediaPrefix 页面内嵌CSV的data URI前缀
	CSVMediaPrefix = "data:text/csv"
)

// Slot 数据分类槽位
type Slot string

const (
	SlotGeneration       Slot = "generation"        // 按能源来源的发电量
	SlotEmissions        Slot = "emissions"         // 发电排放(按来源)
	SlotImportsExports   Slot = "imports_exports"   // 跨境电力进出口
	SlotFinalConsumption Slot = "final_consumption" // 按部门的最终消费
	SlotTotalProduction  Slot = "total_production"  // 总产量
)

// allSlots 写入顺序
var allSlots = []Slot{
	SlotGeneration,
	SlotEmissions,
	SlotImportsExports,
	SlotFinalConsumption,
	SlotTotalProduction,
}

// AllSlots 返回全部槽位(固定顺序)
func AllSlots() []Slot {
	out := make([]Slot, len(allSlots))
	copy(out, allSlots)
	return out
}

// ParseSlot 解析槽位名称
func ParseSlot(s string) (Slot, error) {
	for _, slot := range allSlots {
		if string(slot) == s {
			return slot, nil
		}
	}
	return "", fmt.Errorf("未知的数据槽位: %s", s)
}

// SlotFromFileName 根据标准文件名反查槽位
func SlotFromFileName(name string) (Slot, bool) {
	for _, slot := range allSlots {
		if slot.FileName() == name {
			return slot, true
		}
	}
	return "", false
}

// FileName 槽位对应的标准文件名
func (s Slot) FileName() string {
	return string(s) + ".csv"
}

// IsValid 是否为已知槽位
func (s Slot) IsValid() bool {
	_, err := ParseSlot(string(s))
	return err == nil
}

// Candidate 从页面提取的原始数据文件(未分类)
type Candidate struct {
	RawName    string // download属性中的原始文件名
	RawContent string // 解码后的CSV文本
}

// Size 内容长度(字符数,非字节数)
func (c Candidate) Size() int {
	return utf8.RuneCountInString(c.RawContent)
}

// ClassifiedRecord 去重后某槽位胜出的数据文件
type ClassifiedRecord struct {
	Slot       Slot   `json:"slot"`
	Content    string `json:"-"`
	OriginName string `json:"origin_name"`
}

// ArtifactInfo 已落盘数据文件信息
type ArtifactInfo struct {
	Slot       Slot   `json:"slot"`
	FileName   string `json:"file_name"`
	FilePath   string `json:"file_path"`
	OriginName string `json:"origin_name"` // 页面上的原始文件名
	Size       int    `json:"size"`        // 字节
	Lines      int    `json:"lines"`
}

// NewArtifactInfo 根据记录和落盘路径生成文件信息
func NewArtifactInfo(rec ClassifiedRecord, path string) ArtifactInfo {
	return ArtifactInfo{
		Slot:       rec.Slot,
		FileName:   rec.Slot.FileName(),
		FilePath:   path,
		OriginName: rec.OriginName,
		Size:       len(rec.Content),
		Lines:      strings.Count(rec.Content, "\n"),
	}
}

// ValidateSize 验证文件大小
func (a *ArtifactInfo) ValidateSize() error {
	if a.Size <= 0 {
		return fmt.Errorf("文件大小必须大于0")
	}
	if a.Size > MaxArtifactSize {
		return fmt.Errorf("文件大小超过限制: %d > %d", a.Size, MaxArtifactSize)
	}
	return nil
}
