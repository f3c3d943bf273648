package dupcheck

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/pitchside/pkg/logger"
)

// validate fills defaults and rejects unusable settings.
func (c *Config) validate() error {
	if c.Workers <= 0 {
		c.Workers = c.Attempts
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: url is required", ErrInvalidConfig)
	case c.Actor == "":
		return fmt.Errorf("%w: actor is required", ErrInvalidConfig)
	case c.PlayerID == "":
		return fmt.Errorf("%w: player is required", ErrInvalidConfig)
	case c.Attempts < 2:
		return fmt.Errorf("%w: attempts must be at least 2", ErrInvalidConfig)
	}
	if _, err := time.Parse(time.DateOnly, c.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidConfig)
	}
	return nil
}

// Run executes the complete check and returns its statistics. The error is
// non-nil when the service accepted more than one assessment for the month.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting duplicate-month check",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("player", cfg.PlayerID),
		logger.String("date", cfg.Date),
		logger.Int("attempts", cfg.Attempts),
		logger.Int("workers", cfg.Workers))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, cfg); err != nil {
		return stats, err
	}

	// Step 2: Race the creates
	submitAttempts(ctx, cfg, stats)

	// Step 3: Count what was stored
	n, err := countInMonth(ctx, cfg)
	if err != nil {
		return stats, err
	}
	stats.InMonth = n

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if err := verify(stats); err != nil {
		return stats, err
	}
	log.Info(ctx, "check passed")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, cfg *Config) error {
	client := newHTTPClient(cfg.Timeout, "")
	resp, err := client.get(ctx, cfg.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	_, _ = readBody(resp)

	// Any 200 is healthy; the body is Prometheus metrics.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.Get().Info(ctx, "final statistics",
		logger.Int("submitted", stats.Submitted),
		logger.Int("created", stats.Created),
		logger.Int("conflicts", stats.Conflicts),
		logger.Int("failed", stats.Failed),
		logger.Int("inMonth", stats.InMonth),
		logger.Duration("duration", stats.Duration))
}
