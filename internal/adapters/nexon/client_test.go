package nexon_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/expwatch/internal/adapters/nexon"
	"github.com/okian/expwatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newUpstream(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/maplestory/v1/id", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("x-nxopen-api-key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"name":"OPENAPI00005","message":"invalid key"}}`))
			return
		}
		switch r.URL.Query().Get("character_name") {
		case "alpha":
			_, _ = w.Write([]byte(`{"ocid":"ocid-alpha"}`))
		case "blank":
			_, _ = w.Write([]byte(`{"ocid":""}`))
		case "slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"ocid":"ocid-slow"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"name":"OPENAPI00004","message":"character not found"}}`))
		}
	})
	mux.HandleFunc("/maplestory/v1/character/basic", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Query().Get("ocid") {
		case "ocid-alpha":
			_, _ = w.Write([]byte(`{"character_name":"alpha","character_world_name":"challenger","character_level":275,"character_exp":123456789,"character_exp_rate":"12.345"}`))
		case "ocid-garbled":
			_, _ = w.Write([]byte(`{"character_level":`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientResolve(t *testing.T) {
	Convey("Given a client against a fake upstream", t, func() {
		var calls atomic.Int32
		srv := newUpstream(t, &calls)
		c := nexon.New(nexon.WithBaseURL(srv.URL), nexon.WithAPIKey("secret"), nexon.WithTimeout(100*time.Millisecond))
		ctx := context.Background()

		Convey("When the name exists", func() {
			id, err := c.Resolve(ctx, "alpha")

			Convey("Then the identifier is returned", func() {
				So(err, ShouldBeNil)
				So(id, ShouldEqual, model.Identifier("ocid-alpha"))
			})
		})

		Convey("When upstream rejects the name", func() {
			_, err := c.Resolve(ctx, "nobody")

			Convey("Then the error is a resolve error carrying the upstream code", func() {
				So(errors.Is(err, nexon.ErrResolve), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "OPENAPI00004")
			})
		})

		Convey("When upstream answers with an empty identifier", func() {
			_, err := c.Resolve(ctx, "blank")
			So(errors.Is(err, nexon.ErrResolve), ShouldBeTrue)
		})

		Convey("When the call outlives the timeout", func() {
			_, err := c.Resolve(ctx, "slow")

			Convey("Then it fails once and is not retried", func() {
				So(errors.Is(err, nexon.ErrResolve), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the API key is wrong", func() {
			bad := nexon.New(nexon.WithBaseURL(srv.URL), nexon.WithAPIKey("nope"))
			_, err := bad.Resolve(ctx, "alpha")
			So(errors.Is(err, nexon.ErrResolve), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "status 401")
		})
	})
}

func TestClientFetch(t *testing.T) {
	Convey("Given a client against a fake upstream", t, func() {
		var calls atomic.Int32
		srv := newUpstream(t, &calls)
		c := nexon.New(nexon.WithBaseURL(srv.URL), nexon.WithAPIKey("secret"))
		ctx := context.Background()

		Convey("When the identifier exists", func() {
			stats, err := c.Fetch(ctx, "ocid-alpha")

			Convey("Then world, level and in-level exp are read", func() {
				So(err, ShouldBeNil)
				So(stats, ShouldResemble, model.Stats{World: "challenger", Level: 275, Exp: 123456789})
			})
		})

		Convey("When the identifier is missing", func() {
			_, err := c.Fetch(ctx, "")

			Convey("Then no call is made", func() {
				So(errors.Is(err, nexon.ErrFetch), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 0)
			})
		})

		Convey("When upstream fails or sends garbage", func() {
			_, err := c.Fetch(ctx, "ocid-unknown")
			So(errors.Is(err, nexon.ErrFetch), ShouldBeTrue)

			_, err = c.Fetch(ctx, "ocid-garbled")
			So(errors.Is(err, nexon.ErrFetch), ShouldBeTrue)
		})
	})
}

func TestClientRateLimit(t *testing.T) {
	Convey("Given a client limited to one call per second without burst headroom", t, func() {
		var calls atomic.Int32
		srv := newUpstream(t, &calls)
		c := nexon.New(nexon.WithBaseURL(srv.URL), nexon.WithAPIKey("secret"), nexon.WithRateLimit(1, 1))

		Convey("When a second call cannot get a token before its deadline", func() {
			_, err := c.Resolve(context.Background(), "alpha")
			So(err, ShouldBeNil)

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_, err = c.Resolve(ctx, "alpha")

			Convey("Then it fails without reaching upstream", func() {
				So(errors.Is(err, nexon.ErrResolve), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "rate limit")
				So(calls.Load(), ShouldEqual, 1)
			})
		})
	})
}
