// Package sqlite provides a SQLite-backed assessment store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/okian/pitchside/internal/adapters/repository"
	"github.com/okian/pitchside/internal/adapters/repository/sqlite/migrations"
	"github.com/okian/pitchside/internal/domain/model"
	"github.com/okian/pitchside/pkg/metrics"
)

const driverName = "sqlite"

const assessmentColumns = `id, player_id, assessor_id, assessed_on, period, comments,
	coach_notes, finalized, created_at, updated_at`

const scoreColumns = `id, assessment_id, skill_id, score, notes, previous_score, improvement`

// Store persists assessments in SQLite. Write transactions are serialized
// in-process; WAL mode keeps readers unblocked.
type Store struct {
	sqlDB   *sql.DB
	writeMu sync.Mutex
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping reports database liveness.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Get returns one assessment with its scores.
func (s *Store) Get(ctx context.Context, id string) (model.Assessment, error) {
	defer observe("get", time.Now())
	return queries{q: s.sqlDB}.get(ctx, id)
}

// List returns assessments matching f, newest first.
func (s *Store) List(ctx context.Context, f repository.Filter) ([]model.Assessment, error) {
	defer observe("list", time.Now())
	return queries{q: s.sqlDB}.list(ctx, f)
}

// FindInMonth queries the unique month columns.
func (s *Store) FindInMonth(ctx context.Context, playerID string, year int, month time.Month, excludeID string) (string, bool, error) {
	return queries{q: s.sqlDB}.findInMonth(ctx, playerID, year, month, excludeID)
}

// LatestScoresBefore returns the per-skill score of the newest earlier assessment.
func (s *Store) LatestScoresBefore(ctx context.Context, playerID string, skillIDs []string, before time.Time, excludeID string) (map[string]int, error) {
	return queries{q: s.sqlDB}.latestScoresBefore(ctx, playerID, skillIDs, before, excludeID)
}

// WithTx runs fn inside a serialized transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	defer observe("tx", time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		metrics.RecordStoreError(driverName, "begin")
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &txStore{queries{q: tx}}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateMonth
		}
		metrics.RecordStoreError(driverName, "commit")
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(driverName, op, float64(time.Since(start).Microseconds())/1000)
}

// querier is implemented by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txStore struct {
	queries
}

func (t *txStore) Get(ctx context.Context, id string) (model.Assessment, error) {
	return t.get(ctx, id)
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

// GetForUpdate relies on WithTx serialization; SQLite has no row locks.
func (t *txStore) GetForUpdate(ctx context.Context, id string) (model.Assessment, error) {
	return t.get(ctx, id)
}

func (t *txStore) Insert(ctx context.Context, a model.Assessment) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO assessments (
		   id, player_id, assessor_id, assessed_on, period_year, period_month, period,
		   comments, coach_notes, finalized, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.PlayerID,
		a.AssessorID,
		toMillis(model.DateOnly(a.Date)),
		a.Year(),
		int(a.Month()),
		string(a.Period),
		a.Comments,
		a.CoachNotes,
		boolToInt(a.Finalized),
		toMillis(a.CreatedAt),
		toMillis(a.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateMonth
		}
		return fmt.Errorf("insert assessment: %w", err)
	}
	return t.insertScores(ctx, a.Scores)
}

func (t *txStore) Update(ctx context.Context, a model.Assessment) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE assessments SET
		   assessed_on = ?,
		   period_year = ?,
		   period_month = ?,
		   period = ?,
		   comments = ?,
		   coach_notes = ?,
		   finalized = ?,
		   updated_at = ?
		 WHERE id = ?`,
		toMillis(model.DateOnly(a.Date)),
		a.Year(),
		int(a.Month()),
		string(a.Period),
		a.Comments,
		a.CoachNotes,
		boolToInt(a.Finalized),
		toMillis(a.UpdatedAt),
		a.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateMonth
		}
		return fmt.Errorf("update assessment: %w", err)
	}
	return requireRow(res)
}

func (t *txStore) ReplaceScores(ctx context.Context, assessmentID string, scores []model.SkillScore) error {
	var found int
	err := t.q.QueryRowContext(ctx, `SELECT 1 FROM assessments WHERE id = ?`, assessmentID).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("check assessment: %w", err)
	}
	if _, err := t.q.ExecContext(ctx, `DELETE FROM skill_scores WHERE assessment_id = ?`, assessmentID); err != nil {
		return fmt.Errorf("clear scores: %w", err)
	}
	return t.insertScores(ctx, scores)
}

func (t *txStore) Delete(ctx context.Context, id string) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM skill_scores WHERE assessment_id = ?`, id); err != nil {
		return fmt.Errorf("delete scores: %w", err)
	}
	res, err := t.q.ExecContext(ctx, `DELETE FROM assessments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete assessment: %w", err)
	}
	return requireRow(res)
}

func (t *txStore) insertScores(ctx context.Context, scores []model.SkillScore) error {
	for _, sc := range scores {
		_, err := t.q.ExecContext(ctx,
			`INSERT INTO skill_scores (`+scoreColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sc.ID,
			sc.AssessmentID,
			sc.SkillID,
			sc.Score,
			sc.Notes,
			nullInt(sc.PreviousScore),
			nullInt(sc.Improvement),
		)
		if err != nil {
			return fmt.Errorf("insert skill score: %w", err)
		}
	}
	return nil
}

type queries struct {
	q querier
}

func (r queries) get(ctx context.Context, id string) (model.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return model.Assessment{}, err
	}
	row := r.q.QueryRowContext(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE id = ?`, id)
	a, err := scanAssessment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Assessment{}, repository.ErrNotFound
		}
		return model.Assessment{}, fmt.Errorf("get assessment: %w", err)
	}
	scores, err := r.scoresFor(ctx, []string{a.ID})
	if err != nil {
		return model.Assessment{}, err
	}
	a.Scores = scores[a.ID]
	return a, nil
}

func (r queries) list(ctx context.Context, f repository.Filter) ([]model.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.PlayerIDs != nil && len(f.PlayerIDs) == 0 {
		return []model.Assessment{}, nil
	}

	var (
		conds []string
		args  []any
	)
	if f.PlayerIDs != nil {
		conds = append(conds, "player_id IN ("+placeholders(len(f.PlayerIDs))+")")
		for _, id := range f.PlayerIDs {
			args = append(args, id)
		}
	}
	if f.AssessorID != "" {
		conds = append(conds, "assessor_id = ?")
		args = append(args, f.AssessorID)
	}
	if f.Period != "" {
		conds = append(conds, "period = ?")
		args = append(args, string(f.Period))
	}
	if !f.From.IsZero() {
		conds = append(conds, "assessed_on >= ?")
		args = append(args, toMillis(model.DateOnly(f.From)))
	}
	if !f.To.IsZero() {
		conds = append(conds, "assessed_on <= ?")
		args = append(args, toMillis(model.DateOnly(f.To)))
	}

	query := `SELECT ` + assessmentColumns + ` FROM assessments`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY assessed_on DESC, created_at DESC, id ASC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	out := make([]model.Assessment, 0)
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()
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
	var id string
	err := r.q.QueryRowContext(ctx,
		`SELECT id FROM assessments
		 WHERE player_id = ? AND period_year = ? AND period_month = ? AND id <> ?
		 LIMIT 1`,
		playerID, year, int(month), excludeID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("look up month: %w", err)
	}
	return id, true, nil
}

func (r queries) latestScoresBefore(ctx context.Context, playerID string, skillIDs []string, before time.Time, excludeID string) (map[string]int, error) {
	out := make(map[string]int)
	if len(skillIDs) == 0 {
		return out, nil
	}
	args := []any{playerID, toMillis(model.DateOnly(before)), excludeID}
	for _, id := range skillIDs {
		args = append(args, id)
	}
	query := `
		SELECT skill_id, score FROM (
		  SELECT s.skill_id, s.score,
		         ROW_NUMBER() OVER (
		           PARTITION BY s.skill_id
		           ORDER BY a.assessed_on DESC, a.created_at DESC, a.id ASC
		         ) AS rn
		  FROM skill_scores s
		  JOIN assessments a ON a.id = s.assessment_id
		  WHERE a.player_id = ? AND a.assessed_on < ? AND a.id <> ?
		    AND s.skill_id IN (` + placeholders(len(skillIDs)) + `)
		) WHERE rn = 1`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query score history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var skillID string
		var score int
		if err := rows.Scan(&skillID, &score); err != nil {
			return nil, fmt.Errorf("scan score history: %w", err)
		}
		out[skillID] = score
	}
	return out, rows.Err()
}

func (r queries) scoresFor(ctx context.Context, assessmentIDs []string) (map[string][]model.SkillScore, error) {
	args := make([]any, len(assessmentIDs))
	for i, id := range assessmentIDs {
		args[i] = id
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+scoreColumns+` FROM skill_scores
		 WHERE assessment_id IN (`+placeholders(len(assessmentIDs))+`)
		 ORDER BY assessment_id, skill_id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]model.SkillScore, len(assessmentIDs))
	for rows.Next() {
		var (
			sc          model.SkillScore
			previous    sql.NullInt64
			improvement sql.NullInt64
		)
		if err := rows.Scan(&sc.ID, &sc.AssessmentID, &sc.SkillID, &sc.Score, &sc.Notes, &previous, &improvement); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		if previous.Valid {
			sc.PreviousScore = model.IntPtr(int(previous.Int64))
		}
		if improvement.Valid {
			sc.Improvement = model.IntPtr(int(improvement.Int64))
		}
		out[sc.AssessmentID] = append(out[sc.AssessmentID], sc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (model.Assessment, error) {
	var (
		a                                model.Assessment
		period                           string
		assessedOn, createdAt, updatedAt int64
		finalized                        int
	)
	err := row.Scan(
		&a.ID,
		&a.PlayerID,
		&a.AssessorID,
		&assessedOn,
		&period,
		&a.Comments,
		&a.CoachNotes,
		&finalized,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return model.Assessment{}, err
	}
	a.Date = fromMillis(assessedOn)
	a.Period = model.Period(period)
	a.Finalized = finalized != 0
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Tx    = (*txStore)(nil)
)
