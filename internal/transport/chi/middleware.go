package chi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	logpkg "github.com/v0idness/archipanion-ve/internal/logger"
)

// HeaderRequestID carries the request id back to the caller.
const HeaderRequestID = "X-Request-ID"

// Recover turns a handler panic into a 500 carrying the standard error body.
// http.ErrAbortHandler is re-raised so net/http still aborts the connection.
func Recover(logger *zap.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(rvr)
				}
				logger.Error("Handler panicked",
					zap.Any("panic", rvr),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
					zap.Stack("stacktrace"),
				)
				writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLog puts a request-scoped logger into the context, echoes the
// request id and writes one line per request once it completes.
func RequestLog(logger *zap.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := chiMiddleware.GetReqID(r.Context())
			if id != "" {
				w.Header().Set(HeaderRequestID, id)
			}
			reqLog := logger.With(zap.String("request_id", id))

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logpkg.ContextWithLogger(r.Context(), reqLog)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if ce := reqLog.Check(requestLevel(r.URL.Path, status), "HTTP request"); ce != nil {
				ce.Write(
					zap.String("method", r.Method),
					zap.String("route", routePattern(r)),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Duration("latency", time.Since(start)),
					zap.String("remote", r.RemoteAddr),
					zap.Int64("request_bytes", r.ContentLength),
					zap.Int("response_bytes", ww.BytesWritten()),
				)
			}
		})
	}
}

func requestLevel(path string, status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	case publicPaths[path]:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
