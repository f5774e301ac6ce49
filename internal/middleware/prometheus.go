package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/region23/testdrive/pkg/metrics"
)

// PrometheusMiddleware считает HTTP запросы и их длительность.
// Путь берется из шаблона маршрута, чтобы id не раздували кардинальность.
func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := NewStatusRecorder(w)
		next.ServeHTTP(wrapped, r)

		endpoint := routeTemplate(r)
		status := strconv.Itoa(wrapped.Status())

		metrics.RecordHTTPRequest(r.Method, endpoint, status)
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// StatusRecorder запоминает код ответа
type StatusRecorder struct {
	http.ResponseWriter
	status int
}

// NewStatusRecorder оборачивает ResponseWriter; код по умолчанию 200
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader захватывает статус-код ответа
func (rw *StatusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Status возвращает записанный код
func (rw *StatusRecorder) Status() int {
	return rw.status
}
