// Package sl содержит вспомогательные функции для работы с логгером slog.
package sl

import (
	"log/slog"
	"os"
)

// New создаёт логгер для окружения env: текстовый с уровнем Debug для local,
// JSON с уровнем Info для остальных.
func New(env string) *slog.Logger {
	if env == "local" || env == "" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Err возвращает slog.Attr с ключом "error" и текстом ошибки.
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// Discard логгер, который ничего не пишет. Используется в тестах и утилитах.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
