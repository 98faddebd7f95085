package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	service "github.com/okian/expwatch/internal/app"
	"github.com/okian/expwatch/internal/domain/leveltable"
	"github.com/okian/expwatch/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

// httpErrors reads expwatch_tracker_errors_by_component_total{component="http",error_type=code}.
func httpErrors(code string) float64 {
	families, err := metrics.GetRegistry().Gather()
	if err != nil {
		return -1
	}
	for _, mf := range families {
		if mf.GetName() != "expwatch_tracker_errors_by_component_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["component"] == "http" && labels["error_type"] == code {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given instrumented handlers", t, func() {
		failing := func(err error) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) { writeError(w, err) }
		}

		cases := []struct {
			name    string
			handler http.HandlerFunc
			status  int
			code    string
		}{
			{"no data", failing(service.ErrNoData), http.StatusNotFound, "no_data"},
			{"unknown level", failing(leveltable.ErrUnknownLevel), http.StatusUnprocessableEntity, "unknown_level"},
			{"plain status", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusMethodNotAllowed)
			}, http.StatusMethodNotAllowed, "status_405"},
		}

		for _, tc := range cases {
			Convey("When a request ends with "+tc.name, func() {
				before := httpErrors(tc.code)
				rr := httptest.NewRecorder()
				MetricsMiddleware(tc.handler, "test")(rr, httptest.NewRequest(http.MethodGet, "/test", nil))

				Convey("Then the error is counted under its code", func() {
					So(rr.Code, ShouldEqual, tc.status)
					So(httpErrors(tc.code), ShouldEqual, before+1)
				})
			})
		}

		Convey("When a request succeeds", func() {
			rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
			MetricsMiddleware(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("ok"))
			}, "test")(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

			Convey("Then no error code is recorded", func() {
				So(rec.status, ShouldEqual, http.StatusOK)
				So(rec.code, ShouldBeEmpty)
			})
		})
	})
}
