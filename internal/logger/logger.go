package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const timeLayout = "2006/01/02 15:04:05"

// New builds the process logger: colored console output in development, JSON
// otherwise.
func New(development bool) (*zap.Logger, error) {
	var config zap.Config
	if development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)

	return config.Build()
}

// Status picks the level for a finished HTTP request.
func Status(code int) zapcore.Level {
	switch {
	case code >= 500:
		return zap.ErrorLevel
	case code >= 400:
		return zap.WarnLevel
	default:
		return zap.InfoLevel
	}
}
