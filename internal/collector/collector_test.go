package collector_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/expwatch/internal/collector"
	"github.com/okian/expwatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var errBoom = errors.New("boom")

// fakeUpstream implements both Resolver and Fetcher.
type fakeUpstream struct {
	mu           sync.Mutex
	resolveCalls map[string]int
	fetchCalls   map[model.Identifier]int
	forgotten    []string

	failResolve map[string]bool
	failFetch   map[string]bool
	delay       time.Duration

	inFlight, peak atomic.Int32
	resolveHook    func(name string)
	fetchHook      func(id model.Identifier)
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		resolveCalls: map[string]int{},
		fetchCalls:   map[model.Identifier]int{},
		failResolve:  map[string]bool{},
		failFetch:    map[string]bool{},
	}
}

func (f *fakeUpstream) enter() func() {
	n := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeUpstream) Resolve(ctx context.Context, name string) (model.Identifier, error) {
	defer f.enter()()
	f.mu.Lock()
	f.resolveCalls[name]++
	f.mu.Unlock()
	if f.resolveHook != nil {
		f.resolveHook(name)
	}
	time.Sleep(f.delay)
	if f.failResolve[name] {
		return "", errBoom
	}
	return model.Identifier("id-" + name), nil
}

func (f *fakeUpstream) Fetch(ctx context.Context, id model.Identifier) (model.Stats, error) {
	defer f.enter()()
	f.mu.Lock()
	f.fetchCalls[id]++
	f.mu.Unlock()
	if f.fetchHook != nil {
		f.fetchHook(id)
	}
	time.Sleep(f.delay)
	if f.failFetch[string(id)] {
		return model.Stats{}, errBoom
	}
	return model.Stats{World: "challenger", Level: 280, Exp: int64(len(id))}, nil
}

func (f *fakeUpstream) Forget(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, name)
}

var fixedNow = time.Date(2025, 3, 1, 21, 30, 0, 123456789, time.FixedZone("KST", 9*3600))

func TestCollectorRun(t *testing.T) {
	Convey("Given a collector over a partially failing upstream", t, func() {
		up := newFakeUpstream()
		up.failResolve["bravo"] = true
		up.failFetch["id-delta"] = true
		c := collector.New(up, up, collector.WithConcurrency(3), collector.WithClock(func() time.Time { return fixedNow }))

		Convey("When running over five names", func() {
			batch, err := c.Run(context.Background(), []string{"alpha", "bravo", "charlie", "delta", "echo"})

			Convey("Then the survivors are collected in roster order", func() {
				So(err, ShouldBeNil)
				So(batch.Attempted, ShouldEqual, 5)
				So(batch.Snapshots, ShouldHaveLength, 3)
				So(batch.Snapshots[0].Name, ShouldEqual, "alpha")
				So(batch.Snapshots[1].Name, ShouldEqual, "charlie")
				So(batch.Snapshots[2].Name, ShouldEqual, "echo")
				So(batch.Snapshots[0].Level, ShouldEqual, 280)
			})

			Convey("Then every snapshot shares one UTC timestamp", func() {
				want := fixedNow.UTC().Truncate(time.Second)
				for _, s := range batch.Snapshots {
					So(s.Timestamp.Equal(want), ShouldBeTrue)
					So(s.Timestamp.Location(), ShouldEqual, time.UTC)
				}
				So(batch.Timestamp.Equal(want), ShouldBeTrue)
			})

			Convey("Then failures name their stage and cause", func() {
				So(batch.Failures, ShouldHaveLength, 2)
				So(batch.Failures[0].Name, ShouldEqual, "bravo")
				So(batch.Failures[0].Stage, ShouldEqual, collector.StageResolve)
				So(batch.Failures[1].Name, ShouldEqual, "delta")
				So(batch.Failures[1].Stage, ShouldEqual, collector.StageFetch)
				So(errors.Is(batch.Failures[1], errBoom), ShouldBeTrue)
			})

			Convey("Then nothing is retried and unresolved names are never fetched", func() {
				for _, n := range []string{"alpha", "bravo", "charlie", "delta", "echo"} {
					So(up.resolveCalls[n], ShouldEqual, 1)
				}
				So(up.fetchCalls, ShouldHaveLength, 4)
				_, fetched := up.fetchCalls["id-bravo"]
				So(fetched, ShouldBeFalse)
			})

			Convey("Then a failed fetch evicts the cached identifier", func() {
				So(up.forgotten, ShouldResemble, []string{"delta"})
			})

			Convey("Then failures render as JSON with their message", func() {
				raw, err := json.Marshal(batch.Failures[0])
				So(err, ShouldBeNil)
				So(string(raw), ShouldEqual, `{"nickname":"bravo","stage":"resolve","error":"boom"}`)
			})
		})
	})
}

func TestCollectorConcurrency(t *testing.T) {
	Convey("Given a slow upstream and a cap of 2", t, func() {
		up := newFakeUpstream()
		up.delay = 5 * time.Millisecond
		c := collector.New(up, up, collector.WithConcurrency(2))

		roster := make([]string, 12)
		for i := range roster {
			roster[i] = string(rune('a' + i))
		}

		Convey("When a run completes", func() {
			batch, err := c.Run(context.Background(), roster)

			Convey("Then no stage exceeds the cap", func() {
				So(err, ShouldBeNil)
				So(batch.Snapshots, ShouldHaveLength, 12)
				// two stages may overlap, each bounded by 2
				So(up.peak.Load(), ShouldBeLessThanOrEqualTo, 4)
				So(up.inFlight.Load(), ShouldEqual, 0)
			})
		})
	})
}

func TestCollectorPipelining(t *testing.T) {
	Convey("Given one resolve that waits for another name's fetch", t, func() {
		up := newFakeUpstream()
		fetchedFast := make(chan struct{})
		var once sync.Once
		up.fetchHook = func(id model.Identifier) {
			if id == "id-fast" {
				once.Do(func() { close(fetchedFast) })
			}
		}
		up.resolveHook = func(name string) {
			if name == "slow" {
				select {
				case <-fetchedFast:
				case <-time.After(2 * time.Second):
				}
			}
		}
		c := collector.New(up, up, collector.WithConcurrency(2))

		Convey("When running both", func() {
			start := time.Now()
			batch, err := c.Run(context.Background(), []string{"slow", "fast"})

			Convey("Then the fetch starts before the other resolve settles", func() {
				So(err, ShouldBeNil)
				So(batch.Snapshots, ShouldHaveLength, 2)
				So(time.Since(start), ShouldBeLessThan, time.Second)
			})
		})
	})
}

func TestCollectorEdgeCases(t *testing.T) {
	Convey("Given a collector", t, func() {
		up := newFakeUpstream()
		c := collector.New(up, up)

		Convey("When the roster is empty or blank", func() {
			batch, err := c.Run(context.Background(), []string{" ", ""})

			Convey("Then the batch is empty and no call is made", func() {
				So(err, ShouldBeNil)
				So(batch.Attempted, ShouldEqual, 0)
				So(batch.Snapshots, ShouldBeEmpty)
				So(up.resolveCalls, ShouldBeEmpty)
			})
		})

		Convey("When every name fails to resolve", func() {
			up.failResolve["x"] = true
			up.failResolve["y"] = true
			batch, err := c.Run(context.Background(), []string{"x", "y"})

			Convey("Then the run reports an upstream outage with an empty batch", func() {
				So(errors.Is(err, collector.ErrUpstreamOutage), ShouldBeTrue)
				So(batch.Snapshots, ShouldBeEmpty)
				So(batch.Failures, ShouldHaveLength, 2)
			})
		})

		Convey("When every resolved name fails to fetch", func() {
			up.failFetch["id-x"] = true
			batch, err := c.Run(context.Background(), []string{"x"})

			Convey("Then it is a failed run, not an outage", func() {
				So(err, ShouldBeNil)
				So(batch.Snapshots, ShouldBeEmpty)
				So(batch.Failures, ShouldHaveLength, 1)
			})
		})

		Convey("When the roster repeats names", func() {
			batch, err := c.Run(context.Background(), []string{"a", " a", "b", "a "})

			Convey("Then each name is sampled once", func() {
				So(err, ShouldBeNil)
				So(batch.Attempted, ShouldEqual, 2)
				So(up.resolveCalls["a"], ShouldEqual, 1)
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			batch, err := c.Run(ctx, []string{"a", "b"})

			Convey("Then every name is reported and nothing panics", func() {
				So(errors.Is(err, collector.ErrUpstreamOutage), ShouldBeTrue)
				So(batch.Failures, ShouldHaveLength, 2)
				So(errors.Is(batch.Failures[0], context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestNormalizeRoster(t *testing.T) {
	Convey("Given a messy roster", t, func() {
		So(collector.NormalizeRoster([]string{" b", "a", "", "b ", "c"}), ShouldResemble, []string{"b", "a", "c"})
		So(collector.NormalizeRoster(nil), ShouldBeEmpty)
	})
}
