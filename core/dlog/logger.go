// Package dlog는 프로세스 전체에서 사용하는 zap 로거를 생성하고 보관합니다.
package dlog

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// 기본 로거 인스턴스
	logger *zap.Logger
	// 로거 교체를 위한 뮤텍스
	loggerMu sync.RWMutex
)

func init() {
	logger = New(os.Stdout, false, zapcore.InfoLevel)
}

// ParseLevel은 로그 레벨 문자열을 해석합니다.
// 빈 문자열은 info 레벨입니다.
func ParseLevel(logLevel string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "dpanic":
		return zapcore.DPanicLevel, nil
	case "panic":
		return zapcore.PanicLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, errors.Errorf("unknown log level: %q", logLevel)
	}
}

// New는 w에 JSON으로 기록하는 로거를 생성합니다.
// showCaller: 호출 위치와 함수 이름 표시 여부
func New(w io.Writer, showCaller bool, level zapcore.Level) *zap.Logger {
	// 인코더 설정
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if showCaller {
		encoderConfig.FunctionKey = "func"
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)

	l := zap.New(core)
	if showCaller {
		l = l.WithOptions(zap.AddCaller())
	}
	return l
}

// SetLogger는 표준 출력에 기록하는 프로세스 로거를 설정합니다.
// logLevel: 로그 레벨 (debug, info, warn, error, dpanic, panic, fatal)
func SetLogger(showCaller bool, logLevel string) error {
	level, err := ParseLevel(logLevel)
	if err != nil {
		return err
	}

	Replace(New(os.Stdout, showCaller, level))
	return nil
}

// Replace는 프로세스 로거를 l로 교체합니다.
func Replace(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

// GetLogger는 현재 로거 인스턴스를 반환합니다.
func GetLogger() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Named는 component 이름이 붙은 하위 로거를 반환합니다.
func Named(component string) *zap.Logger {
	return GetLogger().Named(component)
}

// Sync는 버퍼에 남은 로그를 내보냅니다.
func Sync() error {
	return GetLogger().Sync()
}
