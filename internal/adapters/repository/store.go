// Package repository defines the assessment store contract and an in-memory
// implementation. SQL-backed stores live in the postgres and sqlite
// subpackages.
package repository

import (
	"context"
	"time"

	"github.com/okian/pitchside/internal/domain/model"
)

// Filter narrows List results. Zero values mean "no restriction", except
// PlayerIDs: a non-nil empty slice matches nothing.
type Filter struct {
	PlayerIDs  []string
	AssessorID string
	Period     model.Period
	From       time.Time // inclusive
	To         time.Time // inclusive
}

// Reader exposes the queries shared by stores and transactions.
type Reader interface {
	// Get returns the assessment with its score set, or ErrNotFound.
	Get(ctx context.Context, id string) (model.Assessment, error)

	// List returns matching assessments with scores, newest date first.
	List(ctx context.Context, f Filter) ([]model.Assessment, error)

	// FindInMonth reports the id of the player's assessment dated in the
	// given calendar month, ignoring excludeID.
	FindInMonth(ctx context.Context, playerID string, year int, month time.Month, excludeID string) (string, bool, error)

	// LatestScoresBefore returns, per skill, the score from the player's most
	// recent assessment dated strictly before `before`, ignoring excludeID.
	// Skills without history are absent from the map.
	LatestScoresBefore(ctx context.Context, playerID string, skillIDs []string, before time.Time, excludeID string) (map[string]int, error)
}

// Writer mutates assessments. Writers are only reachable inside WithTx.
type Writer interface {
	// GetForUpdate reads the assessment and holds it against concurrent
	// writers until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (model.Assessment, error)

	// Insert persists a new assessment and its scores. A second assessment
	// for the same player and month yields ErrDuplicateMonth.
	Insert(ctx context.Context, a model.Assessment) error

	// Update rewrites the scalar fields of an existing assessment.
	Update(ctx context.Context, a model.Assessment) error

	// ReplaceScores deletes the current score set and stores scores instead.
	ReplaceScores(ctx context.Context, assessmentID string, scores []model.SkillScore) error

	// Delete removes the assessment and its score set.
	Delete(ctx context.Context, id string) error
}

// Tx is the view handed to WithTx callbacks.
type Tx interface {
	Reader
	Writer
}

// Store provides read access and atomic write units.
type Store interface {
	Reader

	// WithTx runs fn in one atomic unit. The unit commits when fn returns nil
	// and rolls back otherwise; callers never observe partial score sets.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Close releases the store's resources.
	Close() error
}
