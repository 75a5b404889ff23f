package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gowvp/livepreview/internal/conf"
)

// Run 启动 http 服务，ctx 结束后优雅关闭并释放全部预览会话
func Run(ctx context.Context, bc *conf.Bootstrap) error {
	handler, cleanup, err := wireApp(bc)
	if err != nil {
		return fmt.Errorf("初始化失败: %w", err)
	}
	defer cleanup()

	// 事件流是长连接，不设置写超时
	svr := http.Server{
		Addr:              fmt.Sprintf(":%d", bc.Server.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       bc.Server.HTTP.Timeout.Duration(),
		IdleTimeout:       2 * time.Minute,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("http 服务启动", "port", bc.Server.HTTP.Port, "config", bc.ConfigPath)
		errc <- svr.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	slog.Info("http 服务关闭")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return svr.Shutdown(shutdownCtx)
}
