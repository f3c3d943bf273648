package dupcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// countInMonth lists the player's assessments and counts those dated in the
// same calendar month as cfg.Date.
func countInMonth(ctx context.Context, cfg *Config) (int, error) {
	target, err := time.Parse(time.DateOnly, cfg.Date)
	if err != nil {
		return 0, fmt.Errorf("%w: date: %v", ErrInvalidConfig, err)
	}

	client := newHTTPClient(cfg.Timeout, cfg.Actor)
	resp, err := client.get(ctx, cfg.BaseURL+"/players/"+url.PathEscape(cfg.PlayerID)+"/assessments")
	if err != nil {
		return 0, fmt.Errorf("list assessments: %w", err)
	}
	body, err := readBody(resp)
	if err != nil {
		return 0, fmt.Errorf("read assessments: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("list assessments: status %d: %s", resp.StatusCode, body)
	}

	var list []assessment
	if err := json.Unmarshal(body, &list); err != nil {
		return 0, fmt.Errorf("decode assessments: %w", err)
	}

	n := 0
	for _, a := range list {
		d, err := time.Parse(time.DateOnly, a.AssessmentDate)
		if err != nil {
			continue
		}
		if d.Year() == target.Year() && d.Month() == target.Month() {
			n++
		}
	}
	return n, nil
}

// verify checks the one-per-month rule against the run's outcome. A month
// that was already taken before the run yields zero creates and is fine.
func verify(stats *Stats) error {
	switch {
	case stats.Created > 1:
		return fmt.Errorf("%w: %d creates accepted", ErrViolation, stats.Created)
	case stats.InMonth != 1:
		return fmt.Errorf("%w: %d assessments stored for the month", ErrViolation, stats.InMonth)
	case stats.Failed > 0:
		return fmt.Errorf("%w: %d of %d", ErrRequestFailed, stats.Failed, stats.Submitted)
	}
	return nil
}
