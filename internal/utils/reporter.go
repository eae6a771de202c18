package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/IEAHarvest/internal/models"
	"github.com/schollz/progressbar/v3"
)

// Reporter 报告生成器
type Reporter struct {
	textPath string
	jsonPath string // 为空时不输出JSON
}

// NewReporter 创建报告生成器
// JSON报告与文本报告同目录,文件名为run_report.json
func NewReporter(textPath string, withJSON bool) *Reporter {
	r := &Reporter{textPath: textPath}
	if withJSON {
		r.jsonPath = filepath.Join(filepath.Dir(textPath), "run_report.json")
	}
	return r
}

// TextPath 文本报告路径
func (r *Reporter) TextPath() string {
	return r.textPath
}

// JSONPath JSON报告路径
func (r *Reporter) JSONPath() string {
	return r.jsonPath
}

// WriteRunReport 写入运行报告
func (r *Reporter) WriteRunReport(report *models.RunReport) error {
	if err := os.MkdirAll(filepath.Dir(r.textPath), 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}

	if err := os.WriteFile(r.textPath, []byte(FormatRunReport(report)), 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}
	Debugf("保存报告: %s", r.textPath)

	if r.jsonPath != "" {
		if err := saveJSONReport(r.jsonPath, report); err != nil {
			return err
		}
	}

	Infof("✅ 报告已生成: %s", r.textPath)
	return nil
}

// FormatRunReport 生成文本摘要
func FormatRunReport(report *models.RunReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Scraping completed at %s\n", report.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Run ID: %s\n", report.RunID)
	fmt.Fprintf(&b, "Duration: %.1f minutes\n", report.Duration/60)
	if report.ResumedFrom > 0 {
		fmt.Fprintf(&b, "Resumed from: %d/%d\n", report.ResumedFrom+1, report.TotalSubjects)
	}
	if report.Aborted {
		fmt.Fprintf(&b, "Aborted: %s\n", report.AbortReason)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Attempted: %d\n", report.Attempted)
	fmt.Fprintf(&b, "Successful: %d/%d\n", len(report.Successful), report.TotalSubjects)
	fmt.Fprintf(&b, "Failed: %d/%d\n", len(report.Failed), report.TotalSubjects)
	fmt.Fprintf(&b, "Session restarts: %d\n\n", report.SessionRestarts)

	b.WriteString("Successful countries:\n")
	for _, s := range report.Successful {
		fmt.Fprintf(&b, "  ✓ %s (%d files)\n", s, report.ArtifactCounts[s])
	}

	b.WriteString("\nFailed countries:\n")
	for _, f := range report.Failed {
		fmt.Fprintf(&b, "  ✗ %s [%s] %s\n", f.Subject, f.Kind, f.Message)
	}

	return b.String()
}

// saveJSONReport 保存JSON报告
func saveJSONReport(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
