package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/expwatch/pkg/metrics"
)

// MetricsMiddleware counts and times every request to endpoint. Failed
// requests are also counted under the error code writeError reported.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, float64(time.Since(start).Milliseconds()))
		if rec.status >= http.StatusBadRequest {
			metrics.RecordErrorByComponent("http", rec.errorCode())
		}
	}
}

// statusRecorder remembers the status and API error code of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	code   string
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// errorCode is the code set by writeError, or "status_<n>" for errors
// written some other way, such as 405 from a method check.
func (r *statusRecorder) errorCode() string {
	if r.code != "" {
		return r.code
	}
	return "status_" + strconv.Itoa(r.status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// noteErrorCode tags w with code when it is being recorded.
func noteErrorCode(w http.ResponseWriter, code string) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.code = code
	}
}
