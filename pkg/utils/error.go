package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/pkg/errors"

	"livedom/dom/common"
)

// 컨텍스트 키 타입 정의
type contextKey string

// 에러 컨텍스트 키
const (
	ErrorContextKey contextKey = "error"
)

// ErrorContext는 에러 정보를 저장하는 구조체
type ErrorContext struct {
	Error     error
	Message   string
	Stack     string
	Code      int
	RequestID string
	Path      string
	Method    string
}

// errorSlot은 미들웨어가 요청마다 하나씩 만들어 두는 저장소입니다.
// 핸들러는 요청을 교체하지 않고도 이 저장소에 에러를 남길 수 있습니다.
type errorSlot struct {
	errCtx *ErrorContext
}

// WithErrorSlot은 요청 컨텍스트에 빈 에러 저장소를 설치합니다.
func WithErrorSlot(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), ErrorContextKey, &errorSlot{})
	return r.WithContext(ctx)
}

// SetError는 요청에 에러 정보를 기록합니다. 상태 코드는 StatusCode로 결정됩니다.
// 에러 저장소가 없는 요청이면 false를 반환합니다.
func SetError(r *http.Request, err error) bool {
	return SetErrorWithCode(r, err, StatusCode(err))
}

// SetErrorWithCode는 요청에 에러 정보와 상태 코드를 기록합니다.
func SetErrorWithCode(r *http.Request, err error, code int) bool {
	slot, ok := r.Context().Value(ErrorContextKey).(*errorSlot)
	if !ok || err == nil {
		return false
	}

	slot.errCtx = &ErrorContext{
		Error:     err,
		Message:   err.Error(),
		Stack:     string(debug.Stack()),
		Code:      code,
		RequestID: r.Header.Get("X-Request-ID"),
		Path:      r.URL.Path,
		Method:    r.Method,
	}
	return true
}

// GetErrorContext는 컨텍스트에서 에러 정보를 가져옵니다.
func GetErrorContext(ctx context.Context) *ErrorContext {
	if ctx == nil {
		return nil
	}

	if slot, ok := ctx.Value(ErrorContextKey).(*errorSlot); ok {
		return slot.errCtx
	}

	return nil
}

// StatusCode는 에러 종류에 맞는 HTTP 상태 코드를 반환합니다.
func StatusCode(err error) int {
	switch errors.Cause(err).(type) {
	case common.ErrViewNotFound, common.ErrUnknownView, common.ErrNodeNotFound:
		return http.StatusNotFound
	case common.ErrUnknownZone, common.ErrInvalidEncoding:
		return http.StatusBadRequest
	case common.ErrSchedulerStopped, common.ErrInputQueueFull:
		return http.StatusServiceUnavailable
	case common.ErrStopped:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	Path      string `json:"path"`
	Method    string `json:"method"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError는 에러 응답을 클라이언트에 전송합니다.
func WriteError(w http.ResponseWriter, r *http.Request) {
	errCtx := GetErrorContext(r.Context())
	if errCtx == nil {
		// 에러 컨텍스트가 없으면 기본 에러 응답
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errCtx.Code)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:     errCtx.Message,
		Code:      errCtx.Code,
		Path:      errCtx.Path,
		Method:    errCtx.Method,
		RequestID: errCtx.RequestID,
	})
}
