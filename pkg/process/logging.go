// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package process

import (
	"flag"
	"os"
	"runtime"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mon = monkit.Package()

	// Error is a process error class.
	Error = errs.Class("process error")
)

// LogConfig configures the process logger.
type LogConfig struct {
	Level       zapcore.Level
	Development bool
	Caller      bool
	Stack       bool
	Encoding    string
	Output      string
}

var logConfig = LogConfig{
	Level:    zapcore.InfoLevel,
	Encoding: "console",
	Output:   "stderr",
}

func init() {
	flag.Var(&logConfig.Level, "log.level", "the minimum log level to log")
	flag.BoolVar(&logConfig.Development, "log.development", false, "if true, set logging to development mode")
	flag.BoolVar(&logConfig.Caller, "log.caller", false, "if true, log function filename and line number")
	flag.BoolVar(&logConfig.Stack, "log.stack", false, "if true, log stack traces")
	flag.StringVar(&logConfig.Encoding, "log.encoding", logConfig.Encoding, "log encoding, either console or json")
	flag.StringVar(&logConfig.Output, "log.output", logConfig.Output, "stdout, stderr or a filename")
}

// NewLogger creates a logger configured by the log.* flags.
func NewLogger() (*zap.Logger, error) {
	return logConfig.Build()
}

// Build creates a logger from config.
func (config LogConfig) Build() (*zap.Logger, error) {
	var zc zap.Config
	if config.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.Sampling = nil
	}
	zc.Level = zap.NewAtomicLevelAt(config.Level)
	zc.Encoding = config.Encoding
	zc.DisableCaller = !config.Caller
	zc.DisableStacktrace = !config.Stack
	zc.OutputPaths = []string{config.Output}
	zc.ErrorOutputPaths = []string{config.Output}

	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if config.Encoding == "console" && runtime.GOOS != "windows" {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if os.Getenv("COVERAGEDB_LOG_NOTIME") != "" {
		// keeps output stable in tests
		zc.EncoderConfig.TimeKey = ""
	}

	logger, err := zc.Build()
	return logger, Error.Wrap(err)
}
