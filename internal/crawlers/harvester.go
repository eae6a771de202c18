package crawlers

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/IEAHarvest/internal/models"
	"github.com/RecoveryAshes/IEAHarvest/internal/utils"
)

// readyScript 页面就绪判断
const readyScript = `return (window.performance.timing.loadEventEnd > 0) && (document.readyState === 'complete');`

// HarvestState 单个对象的处理阶段
type HarvestState int

const (
	StateNavigating HarvestState = iota
	StateSettling
	StateScrolling
	StateExtracting
	StateClassifying
	StatePersisting
	StateSucceeded
	StateFailed
)

// String 阶段名称
func (s HarvestState) String() string {
	switch s {
	case StateNavigating:
		return "navigating"
	case StateSettling:
		return "settling"
	case StateScrolling:
		return "scrolling"
	case StateExtracting:
		return "extracting"
	case StateClassifying:
		return "classifying"
	case StatePersisting:
		return "persisting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SubjectHarvester 单个对象的采集器
// 职责: 导航 → 等待就绪 → 逐级滚动 → 提取 → 分类 → 去重 → 落盘
type SubjectHarvester struct {
	config     models.HarvestConfig
	outputDir  string
	extractor  *Extractor
	classifier *Classifier

	// sleep 可替换的等待函数(测试用)
	sleep func(time.Duration)
	now   func() time.Time
}

// NewSubjectHarvester 创建采集器实例
func NewSubjectHarvester(config models.HarvestConfig, outputDir string) *SubjectHarvester {
	return &SubjectHarvester{
		config:     config,
		outputDir:  outputDir,
		extractor:  NewExtractor(),
		classifier: NewDefaultClassifier(config.Thresholds),
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// OutputDir 输出根目录
func (h *SubjectHarvester) OutputDir() string {
	return h.outputDir
}

// SubjectDir 对象的输出目录
func (h *SubjectHarvester) SubjectDir(s models.Subject) string {
	return filepath.Join(h.outputDir, s)
}

// Harvest 处理一个对象
// 会话失效时返回错误(不在内部重试); 其他故障转换为失败结果,error为nil
func (h *SubjectHarvester) Harvest(session Session, subject models.Subject) (outcome *models.SubjectOutcome, err error) {
	start := h.now()
	state := StateNavigating

	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("捕获panic: 对象=%s, 阶段=%s, 错误=%v", subject, state, r)
			outcome = models.FailedOutcome(subject, models.FaultTransientPage, fmt.Sprintf("panic in %s: %v", state, r))
			err = nil
		}
		if outcome != nil {
			outcome.Attempts = 1
			outcome.Duration = h.now().Sub(start).Seconds()
		}
	}()

	fail := func(kind models.FaultKind, cause error) (*models.SubjectOutcome, error) {
		if models.IsSessionInvalidated(cause) {
			utils.Warnf("⚠️  会话失效 [%s] (阶段: %s): %v", subject, state, cause)
			return nil, models.NewHarvestError(models.FaultSessionInvalidated, subject, cause)
		}
		utils.Errorf("❌ 处理失败 [%s] (阶段: %s): %v", subject, state, cause)
		return models.FailedOutcome(subject, kind, cause.Error()), nil
	}

	// Navigating
	url := h.config.SubjectURL(subject)
	utils.Infof("🌐 导航到: %s", url)
	if err := session.Navigate(url); err != nil {
		return fail(models.FaultTransientPage, err)
	}

	// Settling
	state = StateSettling
	if err := h.settle(session); err != nil {
		return fail(models.FaultTransientPage, err)
	}
	h.sleep(h.config.Scroll.InitialPause)

	// Scrolling
	state = StateScrolling
	if err := h.scroll(session); err != nil {
		return fail(models.FaultTransientPage, err)
	}

	// Extracting
	state = StateExtracting
	candidates, err := h.extractor.Extract(session)
	if err != nil {
		return fail(models.FaultTransientPage, err)
	}
	if len(candidates) == 0 {
		utils.Warnf("⚠️  未找到CSV下载链接: %s", subject)
		state = StateFailed
		out := models.FailedOutcome(subject, models.FaultNoArtifacts, "no valid data files found")
		return out, nil
	}
	utils.Infof("找到 %d 个CSV链接,开始分类", len(candidates))

	// Classifying
	state = StateClassifying
	records := h.classify(subject, candidates)
	if len(records) == 0 {
		utils.Warnf("⚠️  没有有效的数据文件: %s", subject)
		state = StateFailed
		out := models.FailedOutcome(subject, models.FaultNoArtifacts, "no valid data files found")
		out.Candidates = len(candidates)
		return out, nil
	}

	// Persisting
	state = StatePersisting
	artifacts, err := h.persist(subject, records)
	if err != nil {
		utils.Errorf("❌ 保存失败 [%s]: %v", subject, err)
		state = StateFailed
		out := models.FailedOutcome(subject, models.FaultPersistence, err.Error())
		out.Candidates = len(candidates)
		return out, nil
	}

	state = StateSucceeded
	return &models.SubjectOutcome{
		Subject:    subject,
		Status:     models.StatusSucceeded,
		Artifacts:  artifacts,
		Candidates: len(candidates),
	}, nil
}

// settle 轮询页面就绪信号,超时不算失败
func (h *SubjectHarvester) settle(session Session) error {
	if h.config.SettleTimeout <= 0 {
		return nil
	}

	deadline := h.now().Add(h.config.SettleTimeout)
	for {
		result, err := session.ExecuteScript(readyScript)
		if err != nil {
			if models.IsSessionInvalidated(err) {
				return err
			}
			utils.Debugf("就绪检测失败: %v", err)
		} else if ready, ok := result.(bool); ok && ready {
			return nil
		}

		if !h.now().Before(deadline) {
			utils.Debugf("等待页面就绪超时(%v),继续处理", h.config.SettleTimeout)
			return nil
		}
		h.sleep(h.config.SettlePoll)
	}
}

// scroll 逐级滚动触发图表渲染
func (h *SubjectHarvester) scroll(session Session) error {
	plan := h.config.Scroll

	for _, offset := range plan.Offsets {
		if _, err := session.ExecuteScript(fmt.Sprintf("window.scrollTo(0, %d);", offset)); err != nil {
			return fmt.Errorf("滚动到%d失败: %w", offset, err)
		}
		h.sleep(plan.StepPause)
	}

	if _, err := session.ExecuteScript("window.scrollTo(0, document.body.scrollHeight);"); err != nil {
		return fmt.Errorf("滚动到底部失败: %w", err)
	}
	h.sleep(plan.BottomPause)

	if _, err := session.ExecuteScript("window.scrollTo(0, 0);"); err != nil {
		return fmt.Errorf("滚动到顶部失败: %w", err)
	}
	h.sleep(plan.TopPause)

	return nil
}

// classify 分类并去重
// classify 分类去重,并丢弃大小不合法的文件
func (h *SubjectHarvester) classify(subject models.Subject, candidates []models.Candidate) []models.ClassifiedRecord {
	classified := make([]Classified, 0, len(candidates))
	for _, c := range candidates {
		slot, ok, rule := h.classifier.ClassifyCandidate(c)
		if !ok {
			utils.Debugf("丢弃 [%s] %q (规则: %s)", subject, c.RawName, rule)
			continue
		}
		classified = append(classified, Classified{Slot: slot, Candidate: c})
	}

	records := ToRecords(Dedupe(classified))
	valid := records[:0]
	for _, rec := range records {
		info := models.NewArtifactInfo(rec, "")
		if err := info.ValidateSize(); err != nil {
			utils.Warnf("⚠️  丢弃 [%s] %s (%q): %v", subject, rec.Slot, rec.OriginName, err)
			continue
		}
		valid = append(valid, rec)
	}
	return valid
}

// persist 写入 <输出目录>/<对象>/<槽位文件名>
// 只有在至少一条记录存活时才创建目录
func (h *SubjectHarvester) persist(subject models.Subject, records []models.ClassifiedRecord) ([]models.ArtifactInfo, error) {
	dir := h.SubjectDir(subject)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	artifacts := make([]models.ArtifactInfo, 0, len(records))
	for _, rec := range records {
		path := filepath.Join(dir, rec.Slot.FileName())
		if err := os.WriteFile(path, []byte(rec.Content), 0644); err != nil {
			return nil, fmt.Errorf("写入文件失败 [%s]: %w", path, err)
		}

		info := models.NewArtifactInfo(rec, path)
		utils.Infof("    ✓ %s (%d bytes, %d lines) ← %s", info.FileName, info.Size, info.Lines, info.OriginName)
		artifacts = append(artifacts, info)
	}

	return artifacts, nil
}
