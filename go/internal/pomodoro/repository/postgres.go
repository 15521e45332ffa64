package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

// Schema creates the timer table. Personal timers use their group's
// settings, so their settings columns are never written after insert.
const Schema = `
CREATE TABLE IF NOT EXISTS pomodoro_timers (
    id                          BIGSERIAL PRIMARY KEY,
    group_id                    BIGINT      NOT NULL,
    user_id                     BIGINT      NOT NULL DEFAULT 0,
    phase                       TEXT        NOT NULL DEFAULT 'work',
    run_state                   TEXT        NOT NULL DEFAULT 'idle',
    phase_anchor                TIMESTAMPTZ NULL,
    phase_duration              INTEGER     NOT NULL,
    paused_at                   TIMESTAMPTZ NULL,
    remaining_at_pause          INTEGER     NULL,
    session_counter             INTEGER     NOT NULL DEFAULT 0,
    work_duration               INTEGER     NOT NULL,
    break_duration              INTEGER     NOT NULL,
    long_break_duration         INTEGER     NOT NULL,
    sessions_before_long_break  INTEGER     NOT NULL,
    sync_policy                 TEXT        NOT NULL DEFAULT 'flexible',
    allow_member_pause          BOOLEAN     NOT NULL DEFAULT FALSE,
    created_at                  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at                  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (group_id, user_id)
);
CREATE INDEX IF NOT EXISTS pomodoro_timers_running_idx
    ON pomodoro_timers (group_id) WHERE user_id = 0 AND run_state = 'running';
`

const timerColumns = `
    id, group_id, user_id, phase, run_state, phase_anchor, phase_duration,
    paused_at, remaining_at_pause, session_counter,
    work_duration, break_duration, long_break_duration, sessions_before_long_break,
    sync_policy, allow_member_pause, created_at, updated_at`

const (
	selectTimerSQL = `SELECT ` + timerColumns + ` FROM pomodoro_timers WHERE group_id = $1 AND user_id = $2`

	insertTimerSQL = `
        INSERT INTO pomodoro_timers (
            group_id, user_id, phase, run_state, phase_duration, session_counter,
            work_duration, break_duration, long_break_duration, sessions_before_long_break,
            sync_policy, allow_member_pause
        )
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (group_id, user_id) DO NOTHING`

	updateStateSQL = `
        UPDATE pomodoro_timers SET
            phase              = $3,
            run_state          = $4,
            phase_anchor       = $5,
            phase_duration     = $6,
            paused_at          = $7,
            remaining_at_pause = $8,
            session_counter    = $9,
            updated_at         = NOW()
        WHERE group_id = $1 AND user_id = $2
        RETURNING updated_at`

	updateGroupSettingsSQL = `
        UPDATE pomodoro_timers SET
            work_duration              = $3,
            break_duration             = $4,
            long_break_duration        = $5,
            sessions_before_long_break = $6,
            sync_policy                = $7,
            allow_member_pause         = $8
        WHERE group_id = $1 AND user_id = $2`

	runningGroupTimersSQL = `SELECT ` + timerColumns + ` FROM pomodoro_timers
        WHERE user_id = 0 AND run_state = 'running' AND group_id = ANY($1)`
)

// PostgresStore keeps records in Postgres. Update runs in a transaction
// holding a row lock on the record.
type PostgresStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps a pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, timeout: 5 * time.Second}
}

// Migrate creates the timer table if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate pomodoro_timers: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key models.TimerKey) (*models.Timer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	t, err := scanTimer(s.pool.QueryRow(ctx, selectTimerSQL, key.GroupID, key.UserID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTimerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select timer: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) GetOrCreate(ctx context.Context, key models.TimerKey, init InitFunc) (*models.Timer, error) {
	t, err := s.Get(ctx, key)
	if err == nil || !errors.Is(err, ErrTimerNotFound) {
		return t, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := insertTimer(ctx, s.pool, key, init()); err != nil {
		return nil, err
	}
	t, err = scanTimer(s.pool.QueryRow(ctx, selectTimerSQL, key.GroupID, key.UserID))
	if err != nil {
		return nil, fmt.Errorf("select timer: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) Update(ctx context.Context, key models.TimerKey, init InitFunc, fn MutateFunc) (*models.Timer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var result *models.Timer
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := insertTimer(ctx, tx, key, init()); err != nil {
			return err
		}

		t, err := scanTimer(tx.QueryRow(ctx, selectTimerSQL+" FOR UPDATE", key.GroupID, key.UserID))
		if err != nil {
			return fmt.Errorf("lock timer: %w", err)
		}

		if err := fn(t); err != nil {
			return err
		}

		err = tx.QueryRow(ctx, updateStateSQL,
			key.GroupID, key.UserID,
			string(t.Phase), string(t.RunState), t.PhaseAnchor, t.PhaseDurationSeconds,
			t.PausedAt, t.RemainingAtPause, t.SessionCounter,
		).Scan(&t.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update timer state: %w", err)
		}

		if !key.IsPersonal() {
			_, err = tx.Exec(ctx, updateGroupSettingsSQL,
				key.GroupID, key.UserID,
				t.Settings.WorkDuration, t.Settings.BreakDuration,
				t.Settings.LongBreakDuration, t.Settings.SessionsBeforeLongBreak,
				string(t.SyncPolicy), t.AllowMemberPause,
			)
			if err != nil {
				return fmt.Errorf("update timer settings: %w", err)
			}
		}

		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) RunningGroupTimers(ctx context.Context, groupIDs []int64) ([]*models.Timer, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, runningGroupTimersSQL, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("query running timers: %w", err)
	}
	defer rows.Close()

	var running []*models.Timer
	for rows.Next() {
		t, err := scanTimer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan running timer: %w", err)
		}
		running = append(running, t)
	}
	return running, rows.Err()
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertTimer(ctx context.Context, db execer, key models.TimerKey, t *models.Timer) error {
	_, err := db.Exec(ctx, insertTimerSQL,
		key.GroupID, key.UserID,
		string(t.Phase), string(t.RunState), t.PhaseDurationSeconds, t.SessionCounter,
		t.Settings.WorkDuration, t.Settings.BreakDuration,
		t.Settings.LongBreakDuration, t.Settings.SessionsBeforeLongBreak,
		string(t.SyncPolicy), t.AllowMemberPause,
	)
	if err != nil {
		return fmt.Errorf("insert timer: %w", err)
	}
	return nil
}

func scanTimer(row pgx.Row) (*models.Timer, error) {
	var (
		t                models.Timer
		phase, runState  string
		policy           string
		remainingAtPause *int32
	)
	err := row.Scan(
		&t.ID, &t.Key.GroupID, &t.Key.UserID, &phase, &runState, &t.PhaseAnchor, &t.PhaseDurationSeconds,
		&t.PausedAt, &remainingAtPause, &t.SessionCounter,
		&t.Settings.WorkDuration, &t.Settings.BreakDuration,
		&t.Settings.LongBreakDuration, &t.Settings.SessionsBeforeLongBreak,
		&policy, &t.AllowMemberPause, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Phase = models.Phase(phase)
	t.RunState = models.RunState(runState)
	t.SyncPolicy = models.SyncPolicy(policy)
	if remainingAtPause != nil {
		v := int(*remainingAtPause)
		t.RemainingAtPause = &v
	}
	return &t, nil
}
