package main

import (
	"fmt"

	"github.com/RecoveryAshes/IEAHarvest/internal/crawlers"
	"github.com/RecoveryAshes/IEAHarvest/internal/ingest"
	"github.com/RecoveryAshes/IEAHarvest/internal/models"
	"github.com/spf13/cobra"
)

// 子命令参数
var (
	htmlFile     string
	extractSlug  string
	extractJSON  bool
	dbPath       string
	ingestSource string
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "列出采集对象及台账状态",
	RunE: func(cmd *cobra.Command, args []string) error {
		subjects, err := resolveSubjects()
		if err != nil {
			return err
		}
		ledger, err := models.LoadProgressLedger(appConfig.ProgressPath())
		if err != nil {
			return fmt.Errorf("读取进度台账失败: %w", err)
		}

		done := 0
		for i, s := range subjects {
			mark := "  "
			if ledger.Contains(s) {
				mark = "✓ "
				done++
			}
			fmt.Printf("%s%3d  %s\n", mark, i+1, s)
		}
		fmt.Printf("\n已完成 %d/%d (台账: %s)\n", done, len(subjects), ledger.Path())
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "离线解析已保存的国家页面",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := models.ValidateSubject(extractSlug); err != nil {
			return err
		}

		session, err := crawlers.LoadSnapshotSession(htmlFile)
		if err != nil {
			return err
		}
		defer session.Close()

		// 离线页面无需等待和滚动
		config := appConfig.Harvest
		config.SettleTimeout = 0
		config.Scroll = models.ScrollPlan{}

		harvester := crawlers.NewSubjectHarvester(config, appConfig.Output.BaseDir)
		outcome, err := harvester.Harvest(session, extractSlug)
		if err != nil {
			return err
		}
		if extractJSON {
			data, err := outcome.ToJSON()
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			if !outcome.Succeeded() {
				return fmt.Errorf("%s: %s", extractSlug, outcome.Fault)
			}
			return nil
		}
		if !outcome.Succeeded() {
			return fmt.Errorf("%s: %s (%s)", extractSlug, outcome.Message, outcome.Fault)
		}

		fmt.Printf("✅ %s: %d 个数据文件 (候选链接 %d 个)\n", extractSlug, len(outcome.Artifacts), outcome.Candidates)
		for _, a := range outcome.Artifacts {
			fmt.Printf("  %-22s %8d bytes %5d lines  <- %s\n", a.FileName, a.Size, a.Lines, a.OriginName)
		}
		fmt.Printf("输出目录: %s\n", harvester.SubjectDir(extractSlug))
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "将采集结果导入SQLite数据库",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := dbPath
		if path == "" {
			path = appConfig.Ingest.DBPath
		}
		source := ingestSource
		if source == "" {
			source = appConfig.Output.BaseDir
		}

		store, err := ingest.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.IngestDir(cmd.Context(), source)
		if err != nil {
			return fmt.Errorf("导入失败: %w", err)
		}
		totals, err := store.Totals(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("\n==================================================")
		fmt.Println("📊 导入统计")
		fmt.Println("==================================================")
		fmt.Printf("处理文件: %d (跳过 %d)\n", stats.Files, stats.Skipped)
		fmt.Printf("导入对象: %d\n", stats.Subjects)
		fmt.Printf("写入记录: %d\n", stats.Records)
		fmt.Println("\n数据库总量:")
		for _, slot := range models.AllSlots() {
			fmt.Printf("  %-18s %d\n", slot, totals.PerSlot[slot])
		}
		fmt.Printf("  %-18s %d (%d 个对象)\n", "total", totals.Records, totals.Subjects)
		fmt.Println("==================================================")
		return nil
	},
}

func init() {
	subjectsCmd.Flags().StringVarP(&subjectsFile, "subjects-file", "f", "", "包含对象列表的文件路径")
	subjectsCmd.Flags().StringVar(&subjectList, "subjects", "", "逗号分隔的对象列表")

	extractCmd.Flags().StringVar(&htmlFile, "html", "", "已保存的页面HTML文件")
	extractCmd.Flags().StringVar(&extractSlug, "subject", "", "采集对象slug")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "以JSON输出处理结果")
	_ = extractCmd.MarkFlagRequired("html")
	_ = extractCmd.MarkFlagRequired("subject")

	ingestCmd.Flags().StringVar(&dbPath, "db", "", "数据库路径 (默认取配置文件 ingest.db_path)")
	ingestCmd.Flags().StringVar(&ingestSource, "dir", "", "采集输出目录 (默认取配置文件 output.base_dir)")
}
