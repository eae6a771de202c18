package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/IEAHarvest/internal/core"
	"github.com/RecoveryAshes/IEAHarvest/internal/crawlers"
	"github.com/RecoveryAshes/IEAHarvest/internal/models"
	"github.com/RecoveryAshes/IEAHarvest/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string
	outputDir  string

	// 采集参数
	restartEvery int
	headless     bool
	stealth      bool
	subjectsFile string
	subjectList  string
	retryFailed  bool
	showProgress bool
)

// appConfig 由PersistentPreRunE加载,供各子命令使用
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "ieaharvest",
	Short: "IEA国家电力数据CSV批量采集工具",
	Long: `IEAHarvest - IEA国家电力数据批量采集工具

逐个打开IEA国家页面,提取图表提供的CSV下载链接,支持:
  • 按内容分类为发电/排放/进出口/最终消费/总产量五类数据
  • 同类数据保留内容最长的一份
  • 进度台账断点续采
  • 浏览器会话定期重启与失效自动恢复
  • 导入SQLite数据库

示例:
  # 采集全部国家
  ieaharvest

  # 只采集指定国家
  ieaharvest --subjects canada,france

  # 离线解析已保存的页面
  ieaharvest extract --html canada.html --subject canada

  # 导入数据库
  ieaharvest ingest --db data/iea_electricity.db

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 初始化日志系统
		logConfig := utils.LogConfig{
			Level:      config.Logging.Level,
			LogDir:     config.Logging.LogDir,
			MaxSize:    config.Logging.Rotation.MaxSize,
			MaxBackups: config.Logging.Rotation.MaxBackups,
			MaxAge:     config.Logging.Rotation.MaxAge,
			Compress:   config.Logging.Rotation.Compress,
		}

		// 命令行参数覆盖配置文件
		if logLevel != "" {
			logConfig.Level = logLevel
		}
		if verbose {
			logConfig.Level = "debug"
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}

		config.MergeCLIFlags(outputDir, restartEvery,
			changedBool(cmd, "headless", headless),
			changedBool(cmd, "stealth", stealth),
			changedBool(cmd, "retry-failed", retryFailed))
		if err := config.Validate(); err != nil {
			return fmt.Errorf("配置无效: %w", err)
		}

		appConfig = config
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateFlags(subjectsFile, subjectList, restartEvery, logLevel); err != nil {
			return err
		}

		subjects, err := resolveSubjects()
		if err != nil {
			return err
		}

		// Ctrl+C 在当前对象处理完后停止
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ledger := models.NewProgressLedger(appConfig.ProgressPath())
		reporter := utils.NewReporter(appConfig.ReportPath(), appConfig.Output.JSONReport)
		factory := crawlers.NewRodSessionFactory(crawlers.RodSessionConfigFrom(appConfig.Harvest))

		batch := core.NewBatchHarvester(appConfig.Harvest, subjects, appConfig.Output.BaseDir, ledger, reporter, factory)
		batch.SetResourceMonitor(crawlers.NewResourceMonitor(appConfig.Harvest.MemoryFloorMB))
		batch.SetShowProgress(showProgress)

		report, err := batch.Run(ctx)
		if errors.Is(err, context.Canceled) {
			utils.Warnf("⏸️  采集已中断,进度已保存到 %s", ledger.Path())
			return nil
		}
		if err != nil {
			return fmt.Errorf("批量采集失败: %w", err)
		}

		utils.Infof("📝 运行报告: %s", reporter.TextPath())
		utils.Infof("✨ 批量采集完成! 成功 %d/%d", len(report.Successful), report.TotalSubjects)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	// 不需要加载配置
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("IEAHarvest %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

// changedBool 仅在命令行显式指定时返回参数值
func changedBool(cmd *cobra.Command, name string, value bool) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}

// resolveSubjects 确定采集对象列表: --subjects > --subjects-file > 内置列表
func resolveSubjects() ([]models.Subject, error) {
	switch {
	case subjectList != "":
		return utils.ParseSubjectList(subjectList)
	case subjectsFile != "":
		subjects, err := utils.ReadSubjectsFromFile(subjectsFile)
		if err != nil {
			return nil, fmt.Errorf("读取对象文件失败: %w", err)
		}
		return subjects, nil
	default:
		return models.DefaultSubjects(), nil
	}
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "输出目录 (默认取配置文件 output.base_dir)")

	// 采集参数
	rootCmd.Flags().IntVar(&restartEvery, "restart-every", 0, "每处理N个对象重启浏览器会话 (默认取配置文件)")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().BoolVar(&stealth, "stealth", false, "启用stealth反检测")
	rootCmd.Flags().StringVarP(&subjectsFile, "subjects-file", "f", "", "包含对象列表的文件路径")
	rootCmd.Flags().StringVar(&subjectList, "subjects", "", "逗号分隔的对象列表")
	rootCmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "从头开始,只处理台账中没有的对象")
	rootCmd.Flags().BoolVar(&showProgress, "progress", false, "显示进度条")

	// 添加子命令
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(subjectsCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(ingestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
