package crawlers

import (
	"strings"

	"github.com/RecoveryAshes/IEAHarvest/internal/models"
)

// snapshotYears 标题中出现这些年份的文件通常是单年快照
var snapshotYears = []string{"2000", "2020", "2021", "2022", "2023", "2024"}

// Rule 分类规则
// Discard为true时命中即丢弃,否则命中即归入Slot
type Rule struct {
	Name    string
	Slot    models.Slot
	Discard bool
	Match   func(c RuleInput) bool
}

// RuleInput 规则匹配的输入,名称和内容均已转为小写
type RuleInput struct {
	Name         string // 小写文件名
	Content      string // 小写内容
	OriginalName string // 原始文件名(年份匹配用)
	Size         int    // 内容字符数
}

// newRuleInput 构造规则输入
func newRuleInput(c models.Candidate) RuleInput {
	return RuleInput{
		Name:         strings.ToLower(c.RawName),
		Content:      strings.ToLower(c.RawContent),
		OriginalName: c.RawName,
		Size:         c.Size(),
	}
}

// containsAll 是否同时包含全部子串
func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

// containsAny 是否包含任一子串
func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// DefaultRules 默认规则列表(按优先级排列)
func DefaultRules(th models.Thresholds) []Rule {
	return []Rule{
		{
			Name:    "regional-comparison",
			Discard: true,
			Match: func(c RuleInput) bool {
				return containsAny(c.Name, "north america", "regional")
			},
		},
		{
			// 人均数据无论内容多大都丢弃,优先于后面的年份快照规则
			Name:    "per-capita",
			Discard: true,
			Match: func(c RuleInput) bool {
				return strings.Contains(c.Name, "per capita")
			},
		},
		{
			// 内容足够大说明是完整时间序列,不按标题年份丢弃
			Name:    "single-year-snapshot",
			Discard: true,
			Match: func(c RuleInput) bool {
				return containsAny(c.OriginalName, snapshotYears...) && c.Size < th.SnapshotMinSize
			},
		},
		{
			Name: "generation-by-source",
			Slot: models.SlotGeneration,
			Match: func(c RuleInput) bool {
				return containsAll(c.Name, "generation", "source")
			},
		},
		{
			Name: "emissions-by-source",
			Slot: models.SlotEmissions,
			Match: func(c RuleInput) bool {
				return containsAll(c.Name, "emission", "power generation")
			},
		},
		{
			Name: "consumption-by-sector",
			Slot: models.SlotFinalConsumption,
			Match: func(c RuleInput) bool {
				return containsAll(c.Name, "final consumption", "sector")
			},
		},
		{
			Name: "cross-border-flow",
			Slot: models.SlotImportsExports,
			Match: func(c RuleInput) bool {
				if containsAll(c.Content, "electricity,", "import", "export") {
					return true
				}
				return strings.HasSuffix(strings.TrimSpace(c.Name), ".csv") &&
					containsAny(c.Content, "import", "export")
			},
		},
		{
			Name: "total-production",
			Slot: models.SlotTotalProduction,
			Match: func(c RuleInput) bool {
				return containsAll(c.Name, "total", "production") && c.Size > th.TotalProductionMinSize
			},
		},
	}
}

// Classifier 候选文件分类器
// 按顺序匹配规则,第一个命中的规则决定结果; 全部未命中则丢弃
type Classifier struct {
	rules []Rule
}

// NewClassifier 使用给定规则创建分类器
func NewClassifier(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// NewDefaultClassifier 使用默认规则创建分类器
func NewDefaultClassifier(th models.Thresholds) *Classifier {
	return NewClassifier(DefaultRules(th))
}

// Classify 返回槽位; 丢弃时ok为false
func (c *Classifier) Classify(name, content string) (models.Slot, bool) {
	slot, ok, _ := c.ClassifyCandidate(models.Candidate{RawName: name, RawContent: content})
	return slot, ok
}

// ClassifyCandidate 分类并返回命中的规则名(未命中任何规则时为空)
func (c *Classifier) ClassifyCandidate(cand models.Candidate) (slot models.Slot, ok bool, rule string) {
	in := newRuleInput(cand)
	for _, r := range c.rules {
		if !r.Match(in) {
			continue
		}
		if r.Discard {
			return "", false, r.Name
		}
		return r.Slot, true, r.Name
	}
	return "", false, ""
}
