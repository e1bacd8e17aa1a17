package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L — глобальный логгер. До Initialize() — no-op, чтобы ранние вызовы
// (например, из валидатора в тестах) не падали с nil.
var L *zap.SugaredLogger

func init() {
	L = zap.NewNop().Sugar()
}

// Initialize настраивает логгер: json=true — структурный вывод для машин,
// иначе человекочитаемая консоль.
func Initialize(json bool) error {
	var (
		zl  *zap.Logger
		err error
	)
	if json {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		zl, err = cfg.Build()
	} else {
		enc := zap.NewDevelopmentEncoderConfig()
		enc.EncodeLevel = zapcore.CapitalLevelEncoder
		zl = zap.New(zapcore.NewCore(
			zapcore.NewConsoleEncoder(enc),
			zapcore.AddSync(os.Stdout),
			zap.InfoLevel,
		))
	}
	if err != nil {
		return err
	}
	L = zl.Sugar()
	return nil
}

// Sync сбрасывает буферы (вызывать при завершении).
func Sync() {
	_ = L.Sync()
}
