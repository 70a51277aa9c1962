package health

import (
	"context"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/handlers"
	"github.com/ridge/alluvium/tlog"
	"github.com/ridge/parallel"
	"go.uber.org/zap"
	"time"
)

// wrap installs middleware on a handler. The first middleware listed is the
// first one to see the request.
func wrap(handler http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// requestLog logs before and after handling of each request
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ctx := tlog.With(r.Context(),
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
		)
		logger := tlog.Get(ctx)
		logger.Debug("Request handling started")
		var status int
		next.ServeHTTP(statusRecorder{ResponseWriter: w, status: &status}, r.WithContext(ctx))
		logger.Debug("Request handling ended", zap.Int("statusCode", status),
			zap.Duration("elapsed", time.Since(started)))
	})
}

// statusRecorder captures the response status code into *status
type statusRecorder struct {
	http.ResponseWriter
	status *int
}

func (sr statusRecorder) Write(b []byte) (int, error) {
	if *sr.status == 0 {
		*sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

func (sr statusRecorder) WriteHeader(code int) {
	*sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

type panicKeyType int

const panicKey panicKeyType = iota

// recoverPanics catches panics from handlers, responds 500 and reports the
// panic to the server so it shuts down instead of limping on
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = parallel.ErrPanic{Value: p, Stack: debug.Stack()}
				}
			}()
			next.ServeHTTP(w, r)
			return nil
		}()
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			select {
			case r.Context().Value(panicKey).(chan error) <- err:
			default:
			}
		}
	})
}

func withPanicChan(ctx context.Context, panicChan chan error) context.Context {
	return context.WithValue(ctx, panicKey, panicChan)
}

// cors allows dashboards served from other origins to read the endpoints
var cors = handlers.CORS(
	handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
	handlers.AllowedHeaders([]string{
		"Authorization",
		"Cache-Control",
		"Content-Type",
		"If-Modified-Since",
		"User-Agent",
		"X-Requested-With",
	}),
	handlers.ExposedHeaders([]string{"Content-Length"}),
	handlers.AllowedOrigins([]string{"*"}),
)
