// Command quickplan-build 解析构建配置并把结果交给外部 CSS 构建工具。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"quickplan/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.L().Error("quickplan-build failed", "error", err)
		stop()
		os.Exit(exitCode(err))
	}
}
