package model

import (
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func TestWindowContains(t *testing.T) {
	convey.Convey("Given a one-hour window", t, func() {
		from := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		w := Window{From: from, To: from.Add(time.Hour)}

		convey.So(w.Contains(from), convey.ShouldBeTrue)
		convey.So(w.Contains(from.Add(time.Hour)), convey.ShouldBeTrue)
		convey.So(w.Contains(from.Add(30*time.Minute)), convey.ShouldBeTrue)
		convey.So(w.Contains(from.Add(-time.Nanosecond)), convey.ShouldBeFalse)
		convey.So(w.Contains(from.Add(time.Hour+time.Nanosecond)), convey.ShouldBeFalse)
	})
}
