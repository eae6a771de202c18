package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/IEAHarvest/internal/crawlers"
	"github.com/RecoveryAshes/IEAHarvest/internal/models"
	"github.com/RecoveryAshes/IEAHarvest/internal/utils"
	"github.com/rs/zerolog"
)

// fakeSite 模拟目标站点和浏览器进程
type fakeSite struct {
	crashes        map[string]int  // 对象剩余的会话崩溃次数
	empty          map[string]bool // 页面上没有下载链接的对象
	launchFailures int             // 前N次启动失败

	launches  int
	navigated []string
	sessions  []*fakeSession
}

func newFakeSite() *fakeSite {
	return &fakeSite{crashes: map[string]int{}, empty: map[string]bool{}}
}

func (s *fakeSite) factory() (crawlers.Session, error) {
	s.launches++
	if s.launchFailures > 0 {
		s.launchFailures--
		return nil, errors.New("chromium executable not found")
	}
	fs := &fakeSession{site: s}
	s.sessions = append(s.sessions, fs)
	return fs, nil
}

func (s *fakeSite) navigationsOf(subject string) int {
	n := 0
	for _, v := range s.navigated {
		if v == subject {
			n++
		}
	}
	return n
}

// fakeSession 单个会话,页面内容由当前导航的对象决定
type fakeSession struct {
	site    *fakeSite
	subject string
	closed  bool
}

func (f *fakeSession) Navigate(u string) error {
	if f.closed {
		return models.SessionInvalidated(errors.New("session closed"))
	}
	f.subject = path.Base(strings.TrimSuffix(u, "/electricity"))
	f.site.navigated = append(f.site.navigated, f.subject)
	if f.site.crashes[f.subject] > 0 {
		f.site.crashes[f.subject]--
		return models.SessionInvalidated(errors.New("websocket: close 1006"))
	}
	return nil
}

func (f *fakeSession) ExecuteScript(string) (interface{}, error) {
	return true, nil
}

func (f *fakeSession) QueryElements(string) ([]crawlers.ElementHandle, error) {
	if f.site.empty[f.subject] {
		return nil, nil
	}
	return []crawlers.ElementHandle{0}, nil
}

func (f *fakeSession) GetAttribute(_ crawlers.ElementHandle, name string) (*string, error) {
	var v string
	switch name {
	case "download":
		v = "Electricity generation by source"
	case "href":
		v = "data:text/csv;charset=utf-8,Year%2CCoal%0A2020%2C" + f.subject
	default:
		return nil, nil
	}
	return &v, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

// subjectsN 生成 s1..sN
func subjectsN(n int) []models.Subject {
	out := make([]models.Subject, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, fmt.Sprintf("s%d", i))
	}
	return out
}

// fastConfig 无等待的采集配置
func fastConfig() models.HarvestConfig {
	cfg := models.DefaultHarvestConfig()
	cfg.SettleTimeout = 0
	cfg.Scroll = models.ScrollPlan{Offsets: []int{0}}
	cfg.LaunchBackoff = 0
	return cfg
}

type batchFixture struct {
	dir     string
	ledger  *models.ProgressLedger
	site    *fakeSite
	batch   *BatchHarvester
	backoff []time.Duration
}

func newBatchFixture(t *testing.T, cfg models.HarvestConfig, subjects []models.Subject) *batchFixture {
	t.Helper()

	dir := t.TempDir()
	f := &batchFixture{
		dir:    dir,
		ledger: models.NewProgressLedger(filepath.Join(dir, models.DefaultLedgerFile)),
		site:   newFakeSite(),
	}
	reporter := utils.NewReporter(filepath.Join(dir, "scraping_log.txt"), true)
	f.batch = NewBatchHarvester(cfg, subjects, dir, f.ledger, reporter, f.site.factory)
	f.batch.sleep = func(d time.Duration) { f.backoff = append(f.backoff, d) }
	return f
}

func TestBatch_AllSucceed(t *testing.T) {
	f := newBatchFixture(t, fastConfig(), subjectsN(4))

	report, err := f.batch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Successful) != 4 || len(report.Failed) != 0 || !report.Reconciles() {
		t.Errorf("报告不符合预期: %+v", report)
	}
	if strings.Join(f.ledger.Entries(), ",") != "s1,s2,s3,s4" {
		t.Errorf("台账 = %v", f.ledger.Entries())
	}

	content, err := os.ReadFile(filepath.Join(f.dir, "s3", "generation.csv"))
	if err != nil {
		t.Fatalf("读取输出文件失败: %v", err)
	}
	if string(content) != "Year,Coal\n2020,s3" {
		t.Errorf("输出内容 = %q", content)
	}

	if _, err := os.Stat(filepath.Join(f.dir, "scraping_log.txt")); err != nil {
		t.Errorf("文本报告未生成: %v", err)
	}
	for i, s := range f.site.sessions {
		if !s.closed {
			t.Errorf("会话%d未关闭", i)
		}
	}
}

func TestBatch_SessionFaultRetriedOnce(t *testing.T) {
	f := newBatchFixture(t, fastConfig(), subjectsN(20))
	f.site.crashes["s7"] = 1

	report, err := f.batch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if n := f.site.navigationsOf("s7"); n != 2 {
		t.Errorf("s7导航次数 = %d, want 2", n)
	}
	if len(report.Successful) != 20 || report.Attempted != 20 {
		t.Errorf("Successful=%d Attempted=%d, want 20/20", len(report.Successful), report.Attempted)
	}

	entries := f.ledger.Entries()
	if len(entries) != 20 || entries[6] != "s7" || entries[7] != "s8" {
		t.Errorf("台账顺序错误: %v", entries)
	}
	if report.SessionRestarts < 1 {
		t.Error("会话失效后应计入重启")
	}
}

func TestBatch_SecondFailureMarksFailed(t *testing.T) {
	f := newBatchFixture(t, fastConfig(), subjectsN(3))
	f.site.crashes["s2"] = 2

	report, err := f.batch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(report.Failed) != 1 || report.Failed[0].Subject != "s2" || report.Failed[0].Kind != models.FaultSessionInvalidated {
		t.Fatalf("Failed = %+v", report.Failed)
	}
	if strings.Join(f.ledger.Entries(), ",") != "s1,s3" {
		t.Errorf("台账 = %v", f.ledger.Entries())
	}
	// s1用会话1, s2两次尝试分别用会话1和2, s3用新会话3
	if len(f.site.sessions) != 3 || report.SessionRestarts != 2 {
		t.Errorf("sessions=%d restarts=%d, want 3/2", len(f.site.sessions), report.SessionRestarts)
	}
	if !report.Reconciles() {
		t.Error("报告不平衡")
	}
}

func TestBatch_ResumeFromLedger(t *testing.T) {
	f := newBatchFixture(t, fastConfig(), subjectsN(10))
	for _, s := range []string{"s1", "s2", "s3"} {
		if err := f.ledger.Append(s); err != nil {
			t.Fatal(err)
		}
	}

	report, err := f.batch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.ResumedFrom != 3 || report.Attempted != 7 {
		t.Errorf("ResumedFrom=%d Attempted=%d, want 3/7", report.ResumedFrom, report.Attempted)
	}
	if f.site.navigated[0] != "s4" {
		t.Errorf("应从s4开始, got %s", f.site.navigated[0])
	}
	for _, s := range []string{"s1", "s2", "s3"} {
		if f.site.navigationsOf(s) != 0 {
			t.Errorf("%s不应再次处理", s)
		}
	}
	if f.ledger.Len() != 10 {
		t.Errorf("台账长度 = %d, want 10", f.ledger.Len())
	}
}

func TestBatch_CustomListWithForeignLedger(t *testing.T) {
	tests := []struct {
		name      string
		ledger    []string
		subjects  []models.Subject
		navigated string
		attempted int
	}{
		{
			name:      "台账来自完整列表",
			ledger:    []string{"albania", "algeria", "andorra"},
			subjects:  []models.Subject{"canada", "france"},
			navigated: "canada,france",
			attempted: 2,
		},
		{
			name:      "部分对象已完成",
			ledger:    []string{"albania", "algeria", "canada"},
			subjects:  []models.Subject{"canada", "france", "japan"},
			navigated: "france,japan",
			attempted: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBatchFixture(t, fastConfig(), tt.subjects)
			for _, s := range tt.ledger {
				if err := f.ledger.Append(s); err != nil {
					t.Fatal(err)
				}
			}

			report, err := f.batch.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if strings.Join(f.site.navigated, ",") != tt.navigated {
				t.Errorf("处理顺序 = %v, want %s", f.site.navigated, tt.navigated)
			}
			if report.ResumedFrom != 0 || report.Attempted != tt.attempted {
				t.Errorf("ResumedFrom=%d Attempted=%d", report.ResumedFrom, report.Attempted)
			}
			if !report.Reconciles() {
				t.Error("报告统计不一致")
			}
		})
	}
}

func TestBatch_FailedSubjectsNotInLedger(t *testing.T) {
	f := newBatchFixture(t, fastConfig(), subjectsN(5))
	f.site.empty["s2"] = true

	report, err := f.batch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if fmt.Sprint(report.FailedSubjects()) != "[s2]" || report.Failed[0].Kind != models.FaultNoArtifacts {
		t.Errorf("Failed = %+v", report.Failed)
	}
	if f.ledger.Contains("s2") {
		t.Error("失败对象不应写入台账")
	}
	if _, err := os.Stat(filepath.Join(f.dir, "s2")); !os.IsNotExist(err) {
		t.Error("失败对象不应创建目录")
	}
}

func TestBatch_RetryFailedMode(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryFailed = true
	f := newBatchFixture(t, cfg, subjectsN(5))
	for _, s := range []string{"s1", "s3"} {
		if err := f.ledger.Append(s); err != nil {
			t.Fatal(err)
		}
	}

	report, err := f.batch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.Join(f.site.navigated, ",") != "s2,s4,s5" {
		t.Errorf("处理顺序 = %v", f.site.navigated)
	}
	if report.ResumedFrom != 0 || report.Attempted != 3 {
		t.Errorf("ResumedFrom=%d Attempted=%d", report.ResumedFrom, report.Attempted)
	}
}

func TestBatch_PeriodicRestart(t *testing.T) {
	cfg := fastConfig()
	cfg.RestartEvery = 2
	f := newBatchFixture(t, cfg, subjectsN(5))

	report, err := f.batch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(f.site.sessions) != 3 || report.SessionRestarts != 2 {
		t.Errorf("sessions=%d restarts=%d, want 3/2", len(f.site.sessions), report.SessionRestarts)
	}
	for i, s := range f.site.sessions {
		if !s.closed {
			t.Errorf("会话%d未关闭", i)
		}
	}
}

func TestBatch_MemoryPressureRestart(t *testing.T) {
	var buf bytes.Buffer
	saved := utils.Logger
	utils.Logger = zerolog.New(&buf)
	t.Cleanup(func() { utils.Logger = saved })

	f := newBatchFixture(t, fastConfig(), subjectsN(3))
	f.batch.SetResourceMonitor(crawlers.NewResourceMonitorWithSampler(300, func() (crawlers.MemorySample, error) {
		return crawlers.MemorySample{Total: 4096 << 20, Available: 100 << 20}, nil
	}))

	report, err := f.batch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(f.site.sessions) != 3 || report.SessionRestarts != 2 {
		t.Errorf("sessions=%d restarts=%d, want 3/2", len(f.site.sessions), report.SessionRestarts)
	}

	// 每次因内存重启以及最终摘要都输出内存状态
	if n := strings.Count(buf.String(), "压力: critical"); n != 3 {
		t.Errorf("内存状态日志次数 = %d, want 3\n%s", n, buf.String())
	}
}

func TestBatch_LaunchFailureAborts(t *testing.T) {
	f := newBatchFixture(t, fastConfig(), subjectsN(3))
	f.site.launchFailures = 100

	report, err := f.batch.Run(context.Background())
	if !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("期望ErrLaunchFailed, got %v", err)
	}
	if f.site.launches != 4 || len(f.backoff) != 3 {
		t.Errorf("launches=%d backoff=%d, want 4/3", f.site.launches, len(f.backoff))
	}
	if !report.Aborted || report.Attempted != 0 {
		t.Errorf("报告应标记中止且无尝试: %+v", report)
	}

	text, err := os.ReadFile(filepath.Join(f.dir, "scraping_log.txt"))
	if err != nil {
		t.Fatalf("中止时也应写入报告: %v", err)
	}
	if !strings.Contains(string(text), "Aborted") {
		t.Errorf("报告缺少中止信息:\n%s", text)
	}
}

func TestBatch_LaunchRecoversWithinRetries(t *testing.T) {
	f := newBatchFixture(t, fastConfig(), subjectsN(2))
	f.site.launchFailures = 2

	report, err := f.batch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Successful) != 2 {
		t.Errorf("Successful = %v", report.Successful)
	}
	if len(f.backoff) != 2 || f.backoff[0] != 0 {
		t.Errorf("backoff = %v", f.backoff)
	}
}

func TestBatch_ContextCanceled(t *testing.T) {
	f := newBatchFixture(t, fastConfig(), subjectsN(3))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.batch.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望context.Canceled, got %v", err)
	}
	if report.Attempted != 0 || !report.Aborted || f.site.launches != 0 {
		t.Errorf("取消后不应处理任何对象: %+v launches=%d", report, f.site.launches)
	}
}

func TestBatch_InvalidSubjects(t *testing.T) {
	f := newBatchFixture(t, fastConfig(), []models.Subject{"s1", "s1"})
	if _, err := f.batch.Run(context.Background()); err == nil {
		t.Error("重复对象应返回错误")
	}
}
