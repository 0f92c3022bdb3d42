// Package logs configures the default slog logger for telepult binaries.
//
// Import it for side effects only:
//
//	import _ "github.com/telepult-io/telepult/internal/logs"
package logs

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

func init() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("TELEPULT_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})
	slog.SetDefault(slog.New(handler))
}
