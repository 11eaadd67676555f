package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"compliance-engine/internal/config"
	"compliance-engine/internal/logger"
	"compliance-engine/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "compliance-engine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	siteID := os.Getenv("SITE_ID")
	if siteID == "" {
		log.Fatal("SITE_ID environment variable is required")
	}

	// 初始化引擎服务
	engine, err := service.NewEngineService(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize engine service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 优雅退出
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := engine.Start(ctx, siteID); err != nil && err != context.Canceled {
		log.Error("Engine service exited with error", zap.Error(err))
	}

	engine.Stop()
}
