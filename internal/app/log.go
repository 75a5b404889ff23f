package app

import (
	"io"
	"log/slog"
	"strings"

	"github.com/gowvp/livepreview/internal/conf"
)

// NewLogger 按配置创建日志，format 为 json 时输出 JSON，其余输出文本
func NewLogger(w io.Writer, cfg conf.Log) *slog.Logger {
	opts := slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, &opts))
	}
	return slog.New(slog.NewTextHandler(w, &opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
