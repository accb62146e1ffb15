package utils

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// LoggerOpts configures SetupLogger.
type LoggerOpts struct {
	Console *os.File   // tinted human output, usually stderr
	Level   slog.Level // level for the console handler
	File    io.Writer  // optional diagnostics sink, always at debug level
}

// SetupLogger installs the default slog logger: a tint handler on the console
// and, when File is set, a text handler behind a LogInterceptor.
func SetupLogger(opts LoggerOpts) *slog.Logger {
	handlers := []slog.Handler{
		tint.NewHandler(opts.Console, &tint.Options{
			Level:      opts.Level,
			TimeFormat: "15:04:05.000",
			NoColor:    !isatty.IsTerminal(opts.Console.Fd()),
		}),
	}

	if opts.File != nil {
		handlers = append(handlers, slog.NewTextHandler(NewLogInterceptor(opts.File), &slog.HandlerOptions{
			Level: slog.LevelDebug,
			// the interceptor stamps the time
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey && len(groups) == 0 {
					return slog.Attr{}
				}
				return a
			},
		}))
	}

	logger := slog.New(NewMultiLogHandler(handlers...))
	slog.SetDefault(logger)
	return logger
}

// OpenLogFile opens path for appending, creating its parent directory.
func OpenLogFile(path string) (*os.File, error) {
	if err := EnsureParent(path); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
