package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *zap.Logger

func InitProd() *zap.Logger {
	return initLogger(zap.NewProductionConfig(), nil)
}

func InitDev() *zap.Logger {
	return initLogger(zap.NewDevelopmentConfig(), nil)
}

// InitProdFile logs to stderr and to a size-rotated file.
func InitProdFile(path string) *zap.Logger {
	return initLogger(zap.NewProductionConfig(), &lumberjack.Logger{
		Filename:   path,
		MaxSize:    64, // megabytes
		MaxBackups: 4,
	})
}

func initLogger(config zap.Config, file *lumberjack.Logger) *zap.Logger {
	var err error
	logger, err = config.Build(zap.AddStacktrace(zap.WarnLevel))
	if err != nil {
		fmt.Printf("Failed to init zap logger: %v", err)
		os.Exit(1)
	}
	if file != nil {
		encoder := zapcore.NewJSONEncoder(config.EncoderConfig)
		core := zapcore.NewCore(encoder, zapcore.AddSync(file), config.Level)
		logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, core)
		}))
	}
	zap.ReplaceGlobals(logger)
	return logger
}

func Sync() {
	logger.Sync()
}
