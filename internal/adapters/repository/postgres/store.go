package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/okian/pitchside/internal/adapters/repository"
	"github.com/okian/pitchside/internal/domain/model"
	"github.com/okian/pitchside/pkg/metrics"
)

const driverName = "postgres"

const assessmentColumns = `id, player_id, assessor_id, assessed_on, period, comments,
	coach_notes, finalized, created_at, updated_at`

const scoreColumns = `id, assessment_id, skill_id, score, notes, previous_score, improvement`

// Store implements repository.Store over a pgx pool.
type Store struct {
	conn *Connection
}

// Open connects, applies pending migrations and returns a ready store.
func Open(ctx context.Context, databaseURL string, maxConns int32) (*Store, error) {
	conn, err := Connect(ctx, databaseURL, maxConns)
	if err != nil {
		return nil, err
	}
	if err := NewMigrator(conn).Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return &Store{conn: conn}, nil
}

// NewStore wraps an already migrated connection.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

func (s *Store) reader() (queries, error) {
	q, err := s.conn.querier()
	if err != nil {
		return queries{}, err
	}
	return queries{q: q}, nil
}

// Get returns one assessment with its scores.
func (s *Store) Get(ctx context.Context, id string) (model.Assessment, error) {
	defer observe("get", time.Now())
	r, err := s.reader()
	if err != nil {
		return model.Assessment{}, err
	}
	return r.get(ctx, id, false)
}

// List returns assessments matching f, newest first.
func (s *Store) List(ctx context.Context, f repository.Filter) ([]model.Assessment, error) {
	defer observe("list", time.Now())
	r, err := s.reader()
	if err != nil {
		return nil, err
	}
	return r.list(ctx, f)
}

// FindInMonth queries the unique month columns.
func (s *Store) FindInMonth(ctx context.Context, playerID string, year int, month time.Month, excludeID string) (string, bool, error) {
	r, err := s.reader()
	if err != nil {
		return "", false, err
	}
	return r.findInMonth(ctx, playerID, year, month, excludeID)
}

// LatestScoresBefore returns the per-skill score of the newest earlier assessment.
func (s *Store) LatestScoresBefore(ctx context.Context, playerID string, skillIDs []string, before time.Time, excludeID string) (map[string]int, error) {
	r, err := s.reader()
	if err != nil {
		return nil, err
	}
	return r.latestScoresBefore(ctx, playerID, skillIDs, before, excludeID)
}

// WithTx runs fn inside a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	defer observe("tx", time.Now())
	err := s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{queries{q: tx}})
	})
	switch {
	case IsUniqueViolation(err):
		return repository.ErrDuplicateMonth
	case isDriverError(err):
		metrics.RecordStoreError(driverName, "tx")
	}
	return err
}

// Ping reports database liveness.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.conn.Close()
	return nil
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(driverName, op, float64(time.Since(start).Microseconds())/1000)
}

// txStore adds the write half on top of a transaction-bound querier.
type txStore struct {
	queries
}

func (t *txStore) Get(ctx context.Context, id string) (model.Assessment, error) {
	return t.get(ctx, id, false)
}

func (t *txStore) List(ctx context.Context, f repository.Filter) ([]model.Assessment, error) {
	return t.list(ctx, f)
}

func (t *txStore) FindInMonth(ctx context.Context, playerID string, year int, month time.Month, excludeID string) (string, bool, error) {
	return t.findInMonth(ctx, playerID, year, month, excludeID)
}

func (t *txStore) LatestScoresBefore(ctx context.Context, playerID string, skillIDs []string, before time.Time, excludeID string) (map[string]int, error) {
	return t.latestScoresBefore(ctx, playerID, skillIDs, before, excludeID)
}

// GetForUpdate locks the assessment row until the transaction ends.
func (t *txStore) GetForUpdate(ctx context.Context, id string) (model.Assessment, error) {
	return t.get(ctx, id, true)
}

func (t *txStore) Insert(ctx context.Context, a model.Assessment) error {
	query := `
		INSERT INTO assessments (
			id, player_id, assessor_id, assessed_on, period_year, period_month, period,
			comments, coach_notes, finalized, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := t.q.Exec(ctx, query,
		a.ID,
		a.PlayerID,
		a.AssessorID,
		a.Date,
		a.Year(),
		int(a.Month()),
		string(a.Period),
		a.Comments,
		a.CoachNotes,
		a.Finalized,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return repository.ErrDuplicateMonth
		}
		return fmt.Errorf("failed to insert assessment: %w", err)
	}
	return t.insertScores(ctx, a.Scores)
}

func (t *txStore) Update(ctx context.Context, a model.Assessment) error {
	query := `
		UPDATE assessments SET
			assessed_on = $1,
			period_year = $2,
			period_month = $3,
			period = $4,
			comments = $5,
			coach_notes = $6,
			finalized = $7,
			updated_at = $8
		WHERE id = $9
	`
	result, err := t.q.Exec(ctx, query,
		a.Date,
		a.Year(),
		int(a.Month()),
		string(a.Period),
		a.Comments,
		a.CoachNotes,
		a.Finalized,
		a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return repository.ErrDuplicateMonth
		}
		return fmt.Errorf("failed to update assessment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *txStore) ReplaceScores(ctx context.Context, assessmentID string, scores []model.SkillScore) error {
	var exists bool
	if err := t.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM assessments WHERE id = $1)`, assessmentID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check assessment: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	if _, err := t.q.Exec(ctx, `DELETE FROM skill_scores WHERE assessment_id = $1`, assessmentID); err != nil {
		return fmt.Errorf("failed to clear scores: %w", err)
	}
	return t.insertScores(ctx, scores)
}

func (t *txStore) Delete(ctx context.Context, id string) error {
	result, err := t.q.Exec(ctx, `DELETE FROM assessments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *txStore) insertScores(ctx context.Context, scores []model.SkillScore) error {
	if len(scores) == 0 {
		return nil
	}
	query := `INSERT INTO skill_scores (` + scoreColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	batch := &pgx.Batch{}
	for _, sc := range scores {
		batch.Queue(query, sc.ID, sc.AssessmentID, sc.SkillID, sc.Score, sc.Notes, sc.PreviousScore, sc.Improvement)
	}
	br := t.q.SendBatch(ctx, batch)
	defer br.Close()

	for range scores {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert skill score: %w", err)
		}
	}
	return nil
}

// queries holds the read statements shared by the pool and transactions.
type queries struct {
	q Querier
}

func (r queries) get(ctx context.Context, id string, forUpdate bool) (model.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	a, err := scanAssessment(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return model.Assessment{}, repository.ErrNotFound
		}
		return model.Assessment{}, fmt.Errorf("failed to get assessment: %w", err)
	}

	scores, err := r.scoresFor(ctx, []string{a.ID})
	if err != nil {
		return model.Assessment{}, err
	}
	a.Scores = scores[a.ID]
	return a, nil
}

func (r queries) list(ctx context.Context, f repository.Filter) ([]model.Assessment, error) {
	if f.PlayerIDs != nil && len(f.PlayerIDs) == 0 {
		return []model.Assessment{}, nil
	}

	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.PlayerIDs != nil {
		add("player_id = ANY($%d)", f.PlayerIDs)
	}
	if f.AssessorID != "" {
		add("assessor_id = $%d", f.AssessorID)
	}
	if f.Period != "" {
		add("period = $%d", string(f.Period))
	}
	if !f.From.IsZero() {
		add("assessed_on >= $%d", model.DateOnly(f.From))
	}
	if !f.To.IsZero() {
		add("assessed_on <= $%d", model.DateOnly(f.To))
	}

	query := `SELECT ` + assessmentColumns + ` FROM assessments`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY assessed_on DESC, created_at DESC, id ASC`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	out := make([]model.Assessment, 0)
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	scores, err := r.scoresFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Scores = scores[out[i].ID]
	}
	return out, nil
}

func (r queries) findInMonth(ctx context.Context, playerID string, year int, month time.Month, excludeID string) (string, bool, error) {
	query := `
		SELECT id FROM assessments
		WHERE player_id = $1 AND period_year = $2 AND period_month = $3 AND id <> $4
		LIMIT 1
	`
	var id string
	err := r.q.QueryRow(ctx, query, playerID, year, int(month), excludeID).Scan(&id)
	if err != nil {
		if IsNoRows(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to look up month: %w", err)
	}
	return id, true, nil
}

func (r queries) latestScoresBefore(ctx context.Context, playerID string, skillIDs []string, before time.Time, excludeID string) (map[string]int, error) {
	out := make(map[string]int)
	if len(skillIDs) == 0 {
		return out, nil
	}
	query := `
		SELECT DISTINCT ON (s.skill_id) s.skill_id, s.score
		FROM skill_scores s
		JOIN assessments a ON a.id = s.assessment_id
		WHERE a.player_id = $1
		  AND a.assessed_on < $2
		  AND a.id <> $3
		  AND s.skill_id = ANY($4)
		ORDER BY s.skill_id, a.assessed_on DESC, a.created_at DESC, a.id ASC
	`
	rows, err := r.q.Query(ctx, query, playerID, model.DateOnly(before), excludeID, skillIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query score history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var skillID string
		var score int
		if err := rows.Scan(&skillID, &score); err != nil {
			return nil, fmt.Errorf("failed to scan score history: %w", err)
		}
		out[skillID] = score
	}
	return out, rows.Err()
}

func (r queries) scoresFor(ctx context.Context, assessmentIDs []string) (map[string][]model.SkillScore, error) {
	query := `SELECT ` + scoreColumns + ` FROM skill_scores WHERE assessment_id = ANY($1) ORDER BY assessment_id, skill_id`
	rows, err := r.q.Query(ctx, query, assessmentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load scores: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]model.SkillScore, len(assessmentIDs))
	for rows.Next() {
		var sc model.SkillScore
		if err := rows.Scan(&sc.ID, &sc.AssessmentID, &sc.SkillID, &sc.Score, &sc.Notes, &sc.PreviousScore, &sc.Improvement); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		out[sc.AssessmentID] = append(out[sc.AssessmentID], sc)
	}
	return out, rows.Err()
}

func scanAssessment(row pgx.Row) (model.Assessment, error) {
	var (
		a      model.Assessment
		period string
	)
	err := row.Scan(
		&a.ID,
		&a.PlayerID,
		&a.AssessorID,
		&a.Date,
		&period,
		&a.Comments,
		&a.CoachNotes,
		&a.Finalized,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return model.Assessment{}, err
	}
	a.Period = model.Period(period)
	a.Date = model.DateOnly(a.Date)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Tx    = (*txStore)(nil)
)
