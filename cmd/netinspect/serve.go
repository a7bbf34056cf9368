package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"netinspect/internal/httpapi"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	serveAddr   string
	serveTarget string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inspector HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "监听地址，默认读取配置")
	serveCmd.Flags().StringVar(&serveTarget, "cdp", "", "同时记录该 DevTools 目标的网络请求")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	svc, cfg, l, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeService(svc, l)

	if err := svc.Activate(ctx); err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.HTTP.Addr
	}
	deps := httpapi.Deps{Svc: svc, Logger: l}
	if m := svc.Metrics(); m != nil {
		deps.Registry = m.Registry()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Info("HTTP 服务已启动", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if serveTarget != "" {
		mon, err := svc.NewMonitor(serveTarget)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := mon.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("cdp monitor: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	l.Info("HTTP 服务已停止")
	return err
}
