package dupcheck

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/okian/pitchside/pkg/logger"
)

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeConflict
	outcomeFailed
)

// submitAttempts fires cfg.Attempts creates for the same player and month
// through a worker pool.
func submitAttempts(ctx context.Context, cfg *Config, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting concurrent creates",
		logger.Int("attempts", cfg.Attempts),
		logger.Int("workers", cfg.Workers))

	client := newHTTPClient(cfg.Timeout, cfg.Actor)
	url := cfg.BaseURL + "/assessments"

	var created, conflicts, failed, submitted int64

	// All workers wait on start so the creates race each other.
	start := make(chan struct{})
	jobs := make(chan int, cfg.Attempts)
	for i := 0; i < cfg.Attempts; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for n := range jobs {
				if ctx.Err() != nil {
					return
				}
				res := submitOne(ctx, client, url, cfg, n)
				atomic.AddInt64(&submitted, 1)
				switch res {
				case outcomeCreated:
					atomic.AddInt64(&created, 1)
				case outcomeConflict:
					atomic.AddInt64(&conflicts, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
			}
		}()
	}
	close(start)
	wg.Wait()

	stats.Submitted = int(atomic.LoadInt64(&submitted))
	stats.Created = int(atomic.LoadInt64(&created))
	stats.Conflicts = int(atomic.LoadInt64(&conflicts))
	stats.Failed = int(atomic.LoadInt64(&failed))
}

// submitOne posts one create and classifies the response.
func submitOne(ctx context.Context, client *httpClient, url string, cfg *Config, n int) outcome {
	req := createRequest{
		PlayerID:       cfg.PlayerID,
		AssessmentDate: cfg.Date,
		Comments:       "concurrent attempt",
		Scores:         []rating{},
	}
	resp, err := client.post(ctx, url, req)
	if err != nil {
		if cfg.Verbose {
			logger.Get().Warn(ctx, "create failed", logger.Int("attempt", n), logger.Error(err))
		}
		return outcomeFailed
	}
	body, _ := readBody(resp)

	switch resp.StatusCode {
	case http.StatusCreated:
		return outcomeCreated
	case http.StatusConflict:
		return outcomeConflict
	}
	if cfg.Verbose {
		logger.Get().Warn(ctx, "unexpected create status",
			logger.Int("attempt", n),
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(body)))
	}
	return outcomeFailed
}
