package nexon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/expwatch/internal/adapters/nexon"
	"github.com/okian/expwatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type countingResolver struct {
	calls map[string]int
	fail  map[string]bool
}

func (r *countingResolver) Resolve(_ context.Context, name string) (model.Identifier, error) {
	r.calls[name]++
	if r.fail[name] {
		return "", nexon.ErrResolve
	}
	return model.Identifier("id-" + name), nil
}

func TestCachingResolver(t *testing.T) {
	Convey("Given a caching resolver", t, func() {
		inner := &countingResolver{calls: map[string]int{}, fail: map[string]bool{"bad": true}}
		r := nexon.NewCachingResolver(inner, 8, time.Hour)
		ctx := context.Background()

		Convey("When a name is resolved twice", func() {
			first, err1 := r.Resolve(ctx, "alpha")
			second, err2 := r.Resolve(ctx, "alpha")

			Convey("Then upstream is asked once", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(first, ShouldEqual, second)
				So(inner.calls["alpha"], ShouldEqual, 1)
				So(r.Len(), ShouldEqual, 1)
			})

			Convey("Then Forget makes the next call go upstream", func() {
				r.Forget("alpha")
				_, _ = r.Resolve(ctx, "alpha")
				So(inner.calls["alpha"], ShouldEqual, 2)
			})
		})

		Convey("When resolution fails", func() {
			_, err1 := r.Resolve(ctx, "bad")
			_, err2 := r.Resolve(ctx, "bad")

			Convey("Then the failure is not cached", func() {
				So(errors.Is(err1, nexon.ErrResolve), ShouldBeTrue)
				So(errors.Is(err2, nexon.ErrResolve), ShouldBeTrue)
				So(inner.calls["bad"], ShouldEqual, 2)
				So(r.Len(), ShouldEqual, 0)
			})
		})

		Convey("When entries expire", func() {
			short := nexon.NewCachingResolver(inner, 8, 20*time.Millisecond)
			_, _ = short.Resolve(ctx, "beta")
			time.Sleep(60 * time.Millisecond)
			_, _ = short.Resolve(ctx, "beta")

			So(inner.calls["beta"], ShouldEqual, 2)
		})
	})
}
