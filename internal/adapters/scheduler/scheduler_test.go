package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/expwatch/internal/adapters/scheduler"
	. "github.com/smartystreets/goconvey/convey"
)

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestScheduler(t *testing.T) {
	Convey("Given an invalid schedule", t, func() {
		_, err := scheduler.New("every now and then", func(context.Context) error { return nil })
		So(err, ShouldNotBeNil)
	})

	Convey("Given a scheduler with run-on-start", t, func() {
		var runs atomic.Int32
		s, err := scheduler.New("*/30 * * * *", func(context.Context) error {
			runs.Add(1)
			return nil
		}, scheduler.WithRunOnStart(true))
		So(err, ShouldBeNil)

		s.Start(context.Background())
		defer func() { _ = s.Stop(context.Background()) }()

		Convey("Then one run happens immediately", func() {
			So(waitFor(func() bool { return runs.Load() == 1 }), ShouldBeTrue)
		})

		Convey("Then the next tick is on a half hour in UTC", func() {
			next := s.Next()
			So(next.Location(), ShouldEqual, time.UTC)
			So(next.Minute()%30, ShouldEqual, 0)
			So(next.After(time.Now()), ShouldBeTrue)
		})
	})

	Convey("Given a run that is still in progress", t, func() {
		var runs atomic.Int32
		release := make(chan struct{})
		s, err := scheduler.New("@hourly", func(context.Context) error {
			runs.Add(1)
			<-release
			return errors.New("upstream outage")
		})
		So(err, ShouldBeNil)
		s.Start(context.Background())

		s.Trigger()
		So(waitFor(func() bool { return runs.Load() == 1 }), ShouldBeTrue)

		Convey("When another run is triggered", func() {
			s.Trigger()
			time.Sleep(50 * time.Millisecond)
			close(release)

			Convey("Then it is skipped", func() {
				So(s.Stop(context.Background()), ShouldBeNil)
				So(runs.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a run that outlives the stop deadline", t, func() {
		started := make(chan struct{})
		s, err := scheduler.New("@hourly", func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
		So(err, ShouldBeNil)
		s.Start(context.Background())
		s.Trigger()
		<-started

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		Convey("Then Stop gives up and cancels the run", func() {
			So(errors.Is(s.Stop(ctx), context.DeadlineExceeded), ShouldBeTrue)
		})
	})
}
