package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/IEAHarvest/internal/crawlers"
	"github.com/RecoveryAshes/IEAHarvest/internal/models"
	"github.com/RecoveryAshes/IEAHarvest/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// ErrLaunchFailed 会话启动重试耗尽
var ErrLaunchFailed = errors.New("浏览器会话启动失败")

// BatchHarvester 批量采集器
// 顺序处理对象列表,独占唯一的渲染会话、进度台账和运行报告
type BatchHarvester struct {
	config    models.HarvestConfig
	subjects  []models.Subject
	harvester *crawlers.SubjectHarvester
	factory   crawlers.SessionFactory
	ledger    *models.ProgressLedger
	reporter  *utils.Reporter
	monitor   *crawlers.ResourceMonitor

	showProgress bool
	sleep        func(time.Duration)

	// 当前会话及其已处理的对象数
	session     crawlers.Session
	sessionUses int
}

// NewBatchHarvester 创建批量采集器
func NewBatchHarvester(
	config models.HarvestConfig,
	subjects []models.Subject,
	outputDir string,
	ledger *models.ProgressLedger,
	reporter *utils.Reporter,
	factory crawlers.SessionFactory,
) *BatchHarvester {
	return &BatchHarvester{
		config:    config,
		subjects:  subjects,
		harvester: crawlers.NewSubjectHarvester(config, outputDir),
		factory:   factory,
		ledger:    ledger,
		reporter:  reporter,
		sleep:     time.Sleep,
	}
}

// SetResourceMonitor 设置资源监控器(内存不足时提前重启会话)
func (b *BatchHarvester) SetResourceMonitor(m *crawlers.ResourceMonitor) {
	b.monitor = m
}

// SetShowProgress 是否显示进度条
func (b *BatchHarvester) SetShowProgress(show bool) {
	b.showProgress = show
}

// Run 执行批量采集
// 无论如何退出都会关闭当前会话并写入报告; 只在两个对象之间检查ctx
func (b *BatchHarvester) Run(ctx context.Context) (report *models.RunReport, err error) {
	if err := models.ValidateSubjects(b.subjects); err != nil {
		return nil, fmt.Errorf("对象列表无效: %w", err)
	}
	if err := b.ledger.Load(); err != nil {
		return nil, err
	}

	total := len(b.subjects)
	start := b.resumeIndex()
	report = models.NewRunReport(total, start)

	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("批量采集panic: %v", r)
			err = fmt.Errorf("批量采集panic: %v", r)
		}
		if err != nil && !report.Aborted {
			report.Aborted = true
			report.AbortReason = err.Error()
		}

		b.closeSession()
		report.Finish()
		b.printSummary(report)

		if b.reporter != nil {
			if werr := b.reporter.WriteRunReport(report); werr != nil {
				utils.Error(werr, "写入运行报告失败")
				if err == nil {
					err = werr
				}
			}
		}
	}()

	if start > 0 {
		utils.Infof("🔁 从第 %d/%d 个对象继续 (台账已有 %d 条)", start+1, total, b.ledger.Len())
	}
	utils.Infof("🚀 开始批量采集: %d个对象", total-start)

	var bar *progressbar.ProgressBar
	if b.showProgress {
		bar = utils.NewProgressBar(total-start, "采集进度")
	}

	for i := start; i < total; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			utils.Warnf("⚠️  收到中断信号,停止于第 %d/%d 个对象之前", i+1, total)
			report.Aborted = true
			report.AbortReason = "interrupted"
			return report, ctxErr
		}

		subject := b.subjects[i]
		if b.ledger.Contains(subject) {
			utils.Debugf("跳过已完成对象: %s", subject)
			b.advance(bar)
			continue
		}

		utils.Infof("\n==================== [%d/%d] %s ====================", i+1, total, subject)

		if err := b.ensureSession(report); err != nil {
			return report, err
		}

		outcome, err := b.processSubject(subject, report)
		report.Record(outcome)

		if outcome.Succeeded() {
			if lerr := b.ledger.Append(subject); lerr != nil {
				return report, fmt.Errorf("写入进度台账失败: %w", lerr)
			}
			utils.Infof("✅ %s: %d 个数据文件", subject, len(outcome.Artifacts))
		} else {
			utils.Errorf("❌ %s: %s (%s)", subject, outcome.Fault, outcome.Message)
		}
		b.advance(bar)

		if err != nil {
			return report, err
		}
	}

	return report, nil
}

// resumeIndex 确定起始下标
// 台账完全属于本次列表时按台账长度续采; 否则从头开始,只跳过台账中已有的对象
func (b *BatchHarvester) resumeIndex() int {
	if b.config.RetryFailed {
		return 0
	}
	if !b.ledger.CoveredBy(b.subjects) {
		utils.Warnf("⚠️  进度台账(%d条)包含本次列表之外的对象,从头开始并跳过已完成对象", b.ledger.Len())
		return 0
	}
	return b.ledger.ResumeIndex(len(b.subjects))
}

// processSubject 处理单个对象
// 会话失效时替换会话并重试一次; 第二次失败(任何原因)记为失败
// 返回的error非nil表示批量必须中止(替换会话时启动失败)
func (b *BatchHarvester) processSubject(subject models.Subject, report *models.RunReport) (*models.SubjectOutcome, error) {
	outcome, err := b.harvester.Harvest(b.session, subject)
	b.sessionUses++
	if err == nil {
		return outcome, nil
	}

	utils.Warnf("🔄 会话失效,替换会话后重试: %s", subject)
	b.discardSession(report, "会话失效")

	if lerr := b.ensureSession(report); lerr != nil {
		failed := models.FailedOutcome(subject, models.FaultSessionInvalidated, err.Error())
		failed.Attempts = 1
		return failed, lerr
	}

	outcome, err = b.harvester.Harvest(b.session, subject)
	b.sessionUses++
	if err != nil {
		utils.Errorf("重试仍然失败 [%s]: %v", subject, err)
		// 下一个对象使用新会话
		b.discardSession(report, "重试时会话再次失效")
		outcome = models.FailedOutcome(subject, models.FaultSessionInvalidated, err.Error())
	}
	outcome.Attempts = 2
	return outcome, nil
}

// ensureSession 确保有可用会话
// 已处理restart_every个对象或内存不足时先关闭旧会话
func (b *BatchHarvester) ensureSession(report *models.RunReport) error {
	if b.session != nil {
		if b.sessionUses >= b.config.RestartEvery {
			b.discardSession(report, fmt.Sprintf("已处理%d个对象", b.sessionUses))
		} else if recycle, reason := b.monitor.ShouldRecycle(); recycle {
			b.logMemoryStatus()
			b.discardSession(report, reason)
		}
	}
	if b.session != nil {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt <= b.config.LaunchRetries; attempt++ {
		session, err := b.factory()
		if err == nil {
			b.session = session
			b.sessionUses = 0
			utils.Debugf("会话已启动")
			return nil
		}

		lastErr = err
		utils.Errorf("会话启动失败(重试%d/%d): %v", attempt, b.config.LaunchRetries, err)
		if attempt < b.config.LaunchRetries {
			b.sleep(b.config.LaunchBackoff)
		}
	}

	return fmt.Errorf("%w,已达最大重试次数: %v", ErrLaunchFailed, lastErr)
}

// discardSession 关闭当前会话并计入重启次数
func (b *BatchHarvester) discardSession(report *models.RunReport, reason string) {
	if b.session == nil {
		return
	}
	utils.Infof("♻️  重启浏览器会话: %s", reason)
	b.closeSession()
	report.SessionRestarts++
}

// closeSession 关闭当前会话
func (b *BatchHarvester) closeSession() {
	if b.session == nil {
		return
	}
	if err := b.session.Close(); err != nil {
		utils.Warnf("关闭会话失败: %v", err)
	}
	b.session = nil
	b.sessionUses = 0
}

// logMemoryStatus 输出最近一次内存采样(未启用监控时不输出)
func (b *BatchHarvester) logMemoryStatus() {
	if !b.monitor.Enabled() {
		return
	}
	status := b.monitor.GetMemoryStatus()
	utils.Infof("💾 内存: 可用 %dMB / 总计 %dMB, 下限 %dMB, CPU %.1f%%, 压力: %s",
		status.AvailableMemory/(1024*1024), status.TotalMemory/(1024*1024),
		status.FloorMemory/(1024*1024), status.CPUUsage, status.MemoryPressure)
}

// advance 推进进度条
func (b *BatchHarvester) advance(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Add(1)
	}
}

// printSummary 打印批量采集摘要
func (b *BatchHarvester) printSummary(report *models.RunReport) {
	utils.Info("\n==================================================")
	utils.Info("📊 批量采集摘要")
	utils.Info("==================================================")
	utils.Infof("对象总数: %d (起始: %d)", report.TotalSubjects, report.ResumedFrom+1)
	utils.Infof("本次处理: %d", report.Attempted)
	utils.Infof("✅ 成功: %d", len(report.Successful))
	utils.Infof("❌ 失败: %d", len(report.Failed))
	utils.Infof("♻️  会话重启: %d", report.SessionRestarts)
	utils.Infof("⏱️  总耗时: %.1f分钟", report.Duration/60)
	if report.Aborted {
		utils.Warnf("⚠️  批量中止: %s", report.AbortReason)
	}
	b.logMemoryStatus()
	utils.Info("==================================================")

	if len(report.Failed) > 0 {
		utils.Warn("\n失败的对象:")
		for _, f := range report.Failed {
			utils.Warnf("  - %s [%s]: %s", f.Subject, f.Kind, f.Message)
		}
	}
}
