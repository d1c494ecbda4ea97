package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	LogFile string // 日志文件路径(空则不落盘)
	Verbose bool   // 详细模式
}

var (
	globalFlags GlobalFlags
	logger      *zap.Logger
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "lumina",
	Short: "Lumina 钱包连接器命令行工具",
	Long: `Lumina Wallet CLI - 钱包连接器配套工具

提供智能钱包地址派生、凭证标识哈希等离线能力:
- 从WebAuthn公钥派生V2/V3智能钱包地址
- 计算credentialId的链上查找键哈希`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = buildLogger()
		if err != nil {
			return fmt.Errorf("初始化日志: %w", err)
		}
		return nil
	},
}

// buildLogger 构建CLI日志器(可选lumberjack滚动落盘)
func buildLogger() (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if globalFlags.Verbose {
		level = zapcore.DebugLevel
	}

	if globalFlags.LogFile == "" {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		return cfg.Build()
	}

	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   globalFlags.LogFile,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // 天
	})

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		sink,
		level,
	)
	return zap.New(core), nil
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogFile, "log-file", "", "日志文件路径")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "详细模式")
}

func main() {
	Execute()
}
