package metrics

import (
	"net/http"
	"time"
)

// HTTPMetricsMiddleware records request count and latency under handlerName,
// which should be a fixed route identifier such as "/api/v1/decode".
func HTTPMetricsMiddleware(m *Metrics, handlerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			if m != nil {
				m.RecordHTTPRequest(handlerName, r.Method, rec.statusCode, time.Since(start).Seconds())
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Since returns a func that reports the seconds elapsed since start to record.
//
//	defer metrics.Since(time.Now(), func(d float64) { m.RecordSomething(d) })()
func Since(start time.Time, record func(float64)) func() {
	return func() {
		record(time.Since(start).Seconds())
	}
}
