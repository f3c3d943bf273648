// Package dedupe enforces the one-assessment-per-player-per-month rule.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/pitchside/internal/domain/model"
)

// Month is a calendar bucket.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf derives the bucket of date.
func MonthOf(date time.Time) Month {
	return Month{Year: date.Year(), Month: date.Month()}
}

// String renders the bucket as "March 2024".
func (m Month) String() string {
	return fmt.Sprintf("%s %d", m.Month, m.Year)
}

// Lookup finds an existing assessment for a player in a month.
type Lookup interface {
	FindInMonth(ctx context.Context, playerID string, year int, month time.Month, excludeID string) (string, bool, error)
}

// Guard checks the month rule and gates concurrent creates for one month.
type Guard struct {
	claims *Claims
}

// NewGuard creates a guard with an in-process claims gate.
func NewGuard(opts ...Option) *Guard {
	g := &Guard{claims: NewClaims()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check fails with a Conflict naming the month if playerID already has an
// assessment dated in date's month, ignoring excludeID.
func (g *Guard) Check(ctx context.Context, lookup Lookup, playerID string, date time.Time, excludeID string) error {
	const op = "dedupe.Check"
	m := MonthOf(date)
	existing, found, err := lookup.FindInMonth(ctx, playerID, m.Year, m.Month, excludeID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if found {
		return Duplicate(op, playerID, m, existing)
	}
	return nil
}

// Acquire claims (player, month) for the duration of one write. A second
// caller for the same key waits until release is called, then re-checks the
// month itself; it only fails when ctx ends first. With claims disabled
// Acquire always succeeds.
func (g *Guard) Acquire(ctx context.Context, playerID string, date time.Time) (release func(), err error) {
	if g.claims == nil {
		return func() {}, nil
	}
	key := claimKey(playerID, MonthOf(date))
	for g.claims.SeenAndRecord(ctx, key) {
		if err := g.claims.Wait(ctx, key); err != nil {
			return nil, fmt.Errorf("dedupe.Acquire: %w", err)
		}
	}
	return func() { g.claims.Unrecord(ctx, key) }, nil
}

// InFlight reports the number of held claims.
func (g *Guard) InFlight() int64 {
	if g.claims == nil {
		return 0
	}
	return g.claims.Size()
}

// Duplicate builds the Conflict returned for a taken month.
func Duplicate(op, playerID string, m Month, existingID string) error {
	if existingID == "" {
		return model.Conflict(op, "an assessment for player %s already exists for %s", playerID, m)
	}
	return model.Conflict(op, "an assessment for player %s already exists for %s (%s)", playerID, m, existingID)
}

func claimKey(playerID string, m Month) string {
	return fmt.Sprintf("%s|%04d-%02d", playerID, m.Year, int(m.Month))
}
