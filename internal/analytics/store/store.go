// Package store persists analytics snapshots to PostgreSQL on a cron
// schedule.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/postgres"
)

// Schema creates the snapshot table.
const Schema = `CREATE TABLE IF NOT EXISTS prediction_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    data        JSONB NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// StatsSource yields the stats to snapshot. *analytics.Aggregator satisfies it.
type StatsSource interface {
	Stats() analytics.Stats
}

// Store persists prediction statistics snapshots.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates a Store.
func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.EnsureSchema(ctx, Schema)
}

// SaveSnapshot persists stats.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}

	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO prediction_snapshots (data, captured_at) VALUES ($1, $2)`,
		data, stats.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("saving prediction snapshot: %w", err)
	}

	s.logger.Info("prediction snapshot saved",
		"total_predictions", stats.TotalPredictions,
		"split", stats.Split,
	)
	return nil
}

// LatestSnapshot loads the most recent snapshot. It returns nil, nil when
// none exists yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.Stats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM prediction_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	var stats analytics.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// ListSnapshots returns the last limit snapshots, newest first. Corrupt rows
// are skipped.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.Stats, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data FROM prediction_snapshots ORDER BY captured_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []analytics.Stats
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var stats analytics.Stats
		if err := json.Unmarshal(data, &stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, stats)
	}
	return snapshots, rows.Err()
}

// Saver is the part of Store the scheduler needs.
type Saver interface {
	SaveSnapshot(ctx context.Context, stats analytics.Stats) error
}

// Schedule snapshots src into saver on the cron spec (standard five-field
// syntax or descriptors such as "@every 5m"). When ctx is cancelled the
// scheduler stops and one final snapshot is written. The returned channel
// closes once that final snapshot has been attempted.
func Schedule(ctx context.Context, saver Saver, src StatsSource, spec string) (<-chan struct{}, error) {
	logger := slog.Default().With("component", "analytics-scheduler")
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		saveCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := saver.SaveSnapshot(saveCtx, src.Stats()); err != nil {
			logger.Error("periodic snapshot failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot schedule %q: %w", spec, err)
	}
	c.Start()
	logger.Info("snapshot schedule started", "schedule", spec)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		<-c.Stop().Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := saver.SaveSnapshot(shutdownCtx, src.Stats()); err != nil {
			logger.Error("final snapshot failed", "error", err)
		}
	}()
	return done, nil
}
