package logger

import (
	"io"
	"os"

	"motium/internal/app/server/config"
	"motium/internal/utils/logger/handlers/slogpretty"

	"golang.org/x/exp/slog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New создает логгер для окружения env с выводом в stdout
func New(env string) *slog.Logger {
	return NewWithWriter(env, os.Stdout)
}

func NewWithWriter(env string, out io.Writer) *slog.Logger {
	switch env {
	case config.EnvLocal:
		return prettySlog(out)
	case config.EnvDev:
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}

// NewFile пишет JSON-логи в файл с ротацией. Используется клиентом,
// чтобы не смешивать логи с выводом команд.
func NewFile(path string, debug bool) (*slog.Logger, io.Closer) {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    5,
		MaxBackups: 3,
		MaxAge:     28,
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), w
}

func setupPrettySlog() *slog.Logger {
	return prettySlog(os.Stdout)
}

func prettySlog(out io.Writer) *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug},
	}
	return slog.New(opts.NewPrettyHandler(out))
}
