package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	globalLogger *slog.Logger
	mu           sync.RWMutex
)

// Options はロガーの設定
type Options struct {
	// Level は "debug" / "info" / "warn" / "error"
	Level string
	// Format は "text" または "json"（空ならtext）
	Format string
	// Output は出力先（nilなら標準エラー出力。標準出力は --inspect の結果に使う）
	Output io.Writer
}

// ParseLevel ログレベル名をslog.Levelに変換する
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s", level)
}

// Init 設定に応じてslogを初期化
func Init(opts Options) error {
	slogLevel, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: slogLevel}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		handler = slog.NewTextHandler(out, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	default:
		return fmt.Errorf("invalid log format: %s", opts.Format)
	}

	mu.Lock()
	globalLogger = slog.New(handler)
	mu.Unlock()
	slog.SetDefault(globalLogger)

	return nil
}

// InitLogger ログレベルに応じてslogを初期化（text形式、標準エラー出力）
func InitLogger(level string) error {
	return Init(Options{Level: level})
}

// GetLogger グローバルロガーを取得
func GetLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger == nil {
		// デフォルトロガーを返す
		return slog.Default()
	}
	return globalLogger
}
