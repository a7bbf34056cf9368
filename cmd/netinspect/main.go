package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netinspect/internal/logger"
	"netinspect/pkg/api"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "netinspect",
	Short: "In-app network inspector",
	Long: `netinspect records HTTP traffic made through an instrumented client,
persists it locally and derives performance analytics from it.

Examples:
  netinspect serve                      # HTTP API + live stream
  netinspect serve --cdp <targetID>     # also record a browser tab
  netinspect fetch https://example.com  # one recorded request
  netinspect transactions list --limit 20
  netinspect dashboard --filter last24Hours`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "netinspect.yaml", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "覆盖配置中的日志级别")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openService 读取配置并初始化服务，调用方负责 Close
func openService(ctx context.Context) (api.Service, *api.Config, logger.Logger, error) {
	cfg, err := api.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	level := cfg.LogLevel()
	if logLevel != "" {
		level = logLevel
	}
	l := logger.New(logger.Options{Level: level, Writer: cfg.Log.Writer, File: cfg.Log.File})

	svc := api.NewService(cfg, l)
	if err := svc.Initialize(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("initialize: %w", err)
	}
	return svc, cfg, l, nil
}

func closeService(svc api.Service, l logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Close(ctx); err != nil {
		l.Err(err, "关闭服务失败")
	}
}
