package cache_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pitchside/internal/adapters/cache"
	"github.com/okian/pitchside/internal/domain/analytics"
	"github.com/okian/pitchside/internal/domain/model"
)

func progress(playerID string) analytics.Progress {
	latest := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	return analytics.Progress{
		PlayerID:         playerID,
		TotalAssessments: 3,
		AverageScore:     6.5,
		CategoryAverages: analytics.CategoryAverages{
			model.CategoryTechnical: 7.25,
		},
		Trend:                analytics.TrendImproving,
		LatestAssessmentDate: &latest,
	}
}

func TestEncoding(t *testing.T) {
	Convey("Given a progress value", t, func() {
		Convey("it survives encoding with a null-safe latest date", func() {
			data, err := cache.Encode(progress("p1"))
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, `"trend":"Improving"`)

			p, err := cache.Decode(data)
			So(err, ShouldBeNil)
			So(p.CategoryAverages[model.CategoryTechnical], ShouldEqual, 7.25)
			So(p.LatestAssessmentDate.Equal(*progress("p1").LatestAssessmentDate), ShouldBeTrue)
		})

		Convey("an empty history decodes with no date and an empty map", func() {
			data, err := cache.Encode(analytics.Progress{PlayerID: "p2", Trend: analytics.TrendStable})
			So(err, ShouldBeNil)
			p, err := cache.Decode(data)
			So(err, ShouldBeNil)
			So(p.LatestAssessmentDate, ShouldBeNil)
			So(p.CategoryAverages, ShouldNotBeNil)
		})

		Convey("garbage is a serialization error", func() {
			_, err := cache.Decode([]byte("{not json"))
			So(errors.Is(err, cache.ErrCacheSerialization), ShouldBeTrue)
		})
	})
}

func TestMemory(t *testing.T) {
	ctx := context.Background()

	Convey("Given a memory cache with a controllable clock", t, func() {
		now := time.Date(2024, time.April, 1, 12, 0, 0, 0, time.UTC)
		c := cache.NewMemory(cache.WithMemoryTTL(time.Minute), cache.WithClock(func() time.Time { return now }))

		Convey("unknown players miss", func() {
			_, err := c.Get(ctx, "p1")
			So(errors.Is(err, cache.ErrCacheMiss), ShouldBeTrue)
		})

		Convey("stored entries hit until invalidated", func() {
			So(c.Set(ctx, progress("p1")), ShouldBeNil)
			p, err := c.Get(ctx, "p1")
			So(err, ShouldBeNil)
			So(p.TotalAssessments, ShouldEqual, 3)

			So(c.Invalidate(ctx, "p1"), ShouldBeNil)
			_, err = c.Get(ctx, "p1")
			So(errors.Is(err, cache.ErrCacheMiss), ShouldBeTrue)
		})

		Convey("entries expire after the TTL", func() {
			So(c.Set(ctx, progress("p1")), ShouldBeNil)
			now = now.Add(time.Minute)
			_, err := c.Get(ctx, "p1")
			So(errors.Is(err, cache.ErrCacheMiss), ShouldBeTrue)
			So(c.Len(), ShouldEqual, 0)
		})
	})

	Convey("The no-op cache always misses", t, func() {
		var c cache.Nop
		So(c.Set(ctx, progress("p1")), ShouldBeNil)
		_, err := c.Get(ctx, "p1")
		So(errors.Is(err, cache.ErrCacheMiss), ShouldBeTrue)
		So(c.Invalidate(ctx, "p1"), ShouldBeNil)
	})
}

// TestRedis runs against a live server when PITCHSIDE_TEST_REDIS_ADDR is set.
func TestRedis(t *testing.T) {
	addr := os.Getenv("PITCHSIDE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PITCHSIDE_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	Convey("Given a Redis cache", t, func() {
		cfg := cache.DefaultRedisConfig()
		cfg.Addr = addr
		cfg.TTL = time.Minute
		c, err := cache.NewRedis(ctx, cfg)
		So(err, ShouldBeNil)
		Reset(func() { _ = c.Close() })

		player := "redis-test-" + time.Now().Format("150405.000000")
		So(c.Ping(ctx), ShouldBeNil)

		_, err = c.Get(ctx, player)
		So(errors.Is(err, cache.ErrCacheMiss), ShouldBeTrue)

		So(c.Set(ctx, progress(player)), ShouldBeNil)
		p, err := c.Get(ctx, player)
		So(err, ShouldBeNil)
		So(p.Trend, ShouldEqual, analytics.TrendImproving)

		So(c.Invalidate(ctx, player), ShouldBeNil)
		_, err = c.Get(ctx, player)
		So(errors.Is(err, cache.ErrCacheMiss), ShouldBeTrue)
	})

	Convey("An unreachable server fails at construction", t, func() {
		cfg := cache.DefaultRedisConfig()
		cfg.Addr = "127.0.0.1:1"
		cfg.DialTimeout = 200 * time.Millisecond
		_, err := cache.NewRedis(ctx, cfg)
		So(errors.Is(err, cache.ErrCacheConnection), ShouldBeTrue)
	})
}
