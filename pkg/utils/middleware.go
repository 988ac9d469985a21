package utils

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware는 에러를 처리하는 미들웨어입니다.
// 핸들러가 SetError로 남긴 에러를 로깅하고 JSON 에러 응답으로 바꿉니다.
func ErrorHandlerMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = WithErrorSlot(r)

		// 패닉 복구
		defer func() {
			if err := recover(); err != nil {
				logger.Error("HTTP handler panic",
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("ip", r.RemoteAddr),
					zap.String("userAgent", r.UserAgent()),
				)

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)

		if errCtx := GetErrorContext(r.Context()); errCtx != nil {
			logger.Warn("Request error",
				zap.Error(errCtx.Error),
				zap.Int("code", errCtx.Code),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", errCtx.RequestID),
			)

			WriteError(w, r)
		}
	})
}

// RequestIDMiddleware는 요청 ID를 생성하는 미들웨어입니다.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = GenerateRequestID()
			r.Header.Set("X-Request-ID", requestID)
		}

		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware는 요청마다 메서드, 경로, 소요 시간을 기록합니다.
func LoggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		logger.Debug("Request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", r.Header.Get("X-Request-ID")),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// GenerateRequestID는 고유한 요청 ID를 생성합니다.
func GenerateRequestID() string {
	return uuid.NewString()
}
