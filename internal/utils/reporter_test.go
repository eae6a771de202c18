package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/IEAHarvest/internal/models"
)

func sampleReport() *models.RunReport {
	report := models.NewRunReport(5, 2)
	report.Record(&models.SubjectOutcome{
		Subject:   "angola",
		Status:    models.StatusSucceeded,
		Artifacts: []models.ArtifactInfo{{Slot: models.SlotGeneration}, {Slot: models.SlotEmissions}, {Slot: models.SlotImportsExports}},
	})
	report.Record(models.FailedOutcome("argentina", models.FaultNoArtifacts, "no valid data files found"))
	report.SessionRestarts = 1
	report.Finish()
	return report
}

func TestFormatRunReport(t *testing.T) {
	text := FormatRunReport(sampleReport())

	wantLines := []string{
		"Resumed from: 3/5",
		"Attempted: 2",
		"Successful: 1/5",
		"Failed: 1/5",
		"Session restarts: 1",
		"  ✓ angola (3 files)",
		"  ✗ argentina [no_artifacts_found] no valid data files found",
	}
	for _, line := range wantLines {
		if !strings.Contains(text, line) {
			t.Errorf("报告缺少 %q:\n%s", line, text)
		}
	}
	if strings.Contains(text, "Aborted") {
		t.Error("未中止的运行不应输出Aborted")
	}
}

func TestReporter_WriteRunReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data", "iea_scraped")
	reporter := NewReporter(filepath.Join(dir, "scraping_log.txt"), true)

	report := sampleReport()
	report.Aborted = true
	report.AbortReason = "会话启动失败"

	if err := reporter.WriteRunReport(report); err != nil {
		t.Fatalf("WriteRunReport() error = %v", err)
	}

	text, err := os.ReadFile(reporter.TextPath())
	if err != nil {
		t.Fatalf("读取文本报告失败: %v", err)
	}
	if !strings.Contains(string(text), "Aborted: 会话启动失败") {
		t.Errorf("文本报告缺少中止原因:\n%s", text)
	}

	data, err := os.ReadFile(reporter.JSONPath())
	if err != nil {
		t.Fatalf("读取JSON报告失败: %v", err)
	}
	var decoded models.RunReport
	if err := decoded.FromJSON(data); err != nil {
		t.Fatalf("解析JSON报告失败: %v", err)
	}
	if decoded.RunID != report.RunID || !decoded.Reconciles() {
		t.Errorf("JSON报告不一致: %+v", decoded)
	}
}

func TestReporter_TextOnly(t *testing.T) {
	reporter := NewReporter(filepath.Join(t.TempDir(), "log.txt"), false)
	if reporter.JSONPath() != "" {
		t.Errorf("JSONPath() = %s, want empty", reporter.JSONPath())
	}
	if err := reporter.WriteRunReport(sampleReport()); err != nil {
		t.Fatalf("WriteRunReport() error = %v", err)
	}
}
