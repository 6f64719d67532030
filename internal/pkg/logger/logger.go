package logger

import (
	"log/slog"
	"os"
	"strings"
)

// NewDefault 创建一个输出到标准输出的 slog Logger。
//
// 参数:
//
//	level: 日志级别字符串 (debug / info / warn / error)，无法识别时回退为 info
func NewDefault(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
