package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init builds the process logger. LOG_DEV=1 switches to the human
// console encoder; LOG_LEVEL overrides the default level.
func Init() (*zap.Logger, error) {
	dev := os.Getenv("LOG_DEV") == "1"
	level := levelFromString(os.Getenv("LOG_LEVEL"), dev)

	if dev {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		return cfg.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func levelFromString(l string, dev bool) zapcore.Level {
	switch l {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	if dev {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}
