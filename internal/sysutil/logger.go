package sysutil

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log *zap.Logger
var LogSugar *zap.SugaredLogger

// InitLogger 初始化全局日志
// notifyPath 非空时把日志同时推送到本地 unixgram 套接字 (GUI 日志查看器)，
// 没有监听方时静默丢弃
func InitLogger(level string, notifyPath string) {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder        // 格式化时间输出
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder // 彩色级别
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(config.EncoderConfig),
		zapcore.AddSync(os.Stdout),
		parseLevel(level),
	)

	if notifyPath != "" {
		// GUI 侧不需要颜色码
		plain := zap.NewDevelopmentConfig()
		plain.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		plain.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		notifyCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(plain.EncoderConfig),
			zapcore.AddSync(newNotifySink(notifyPath)),
			parseLevel(level),
		)
		core = zapcore.NewTee(core, notifyCore)
	}

	Log = zap.New(core, zap.AddCaller())
	LogSugar = Log.Sugar()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
