package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/amontes/poserig/internal/metrics"
)

// MetricsRepository persists per-frame metrics records so the dashboard can
// chart history beyond what the in-memory ring retains.
type MetricsRepository struct {
	db    *DB
	runID string
}

// NewMetricsRepository returns a repository tagging every row with runID.
func NewMetricsRepository(db *DB, runID string) *MetricsRepository {
	return &MetricsRepository{db: db, runID: runID}
}

// Write stores one record. Implements metrics.Sink.
func (r *MetricsRepository) Write(rec metrics.Record) error {
	angles, err := json.Marshal(rec.Angles)
	if err != nil {
		return fmt.Errorf("failed to marshal angles: %w", err)
	}

	var poseConf sql.NullFloat64
	if rec.PoseConf != nil {
		poseConf = sql.NullFloat64{Float64: *rec.PoseConf, Valid: true}
	}

	query := `
		INSERT INTO metrics_history (
			id, run_id, ts, persons, fps, mean_kp_conf,
			visible_ratio, visible_count, pose_conf, angles
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.conn.Exec(query,
		uuid.New().String(),
		r.runID,
		rec.Timestamp,
		rec.Persons,
		rec.FPS,
		rec.MeanKPConf,
		rec.VisibleRatio,
		rec.VisibleCount,
		poseConf,
		string(angles),
	)
	if err != nil {
		return fmt.Errorf("failed to insert metrics record: %w", err)
	}
	return nil
}

// LatestN returns the newest n records in chronological order.
func (r *MetricsRepository) LatestN(n int) ([]metrics.Record, error) {
	if n <= 0 {
		n = 120
	}

	query := `
		SELECT ts, persons, fps, mean_kp_conf, visible_ratio,
		       visible_count, pose_conf, angles
		FROM metrics_history
		ORDER BY ts DESC
		LIMIT ?`

	rows, err := r.db.conn.Query(query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics history: %w", err)
	}
	defer rows.Close()

	var recs []metrics.Record
	for rows.Next() {
		var rec metrics.Record
		var poseConf sql.NullFloat64
		var angles string

		if err := rows.Scan(
			&rec.Timestamp, &rec.Persons, &rec.FPS, &rec.MeanKPConf,
			&rec.VisibleRatio, &rec.VisibleCount, &poseConf, &angles,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metrics record: %w", err)
		}

		if poseConf.Valid {
			v := poseConf.Float64
			rec.PoseConf = &v
		}
		if err := json.Unmarshal([]byte(angles), &rec.Angles); err != nil {
			return nil, fmt.Errorf("failed to decode angles: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read metrics history: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

// Prune deletes rows older than the given timestamp and reports how many
// were removed.
func (r *MetricsRepository) Prune(beforeTS float64) (int64, error) {
	res, err := r.db.conn.Exec(`DELETE FROM metrics_history WHERE ts < ?`, beforeTS)
	if err != nil {
		return 0, fmt.Errorf("failed to prune metrics history: %w", err)
	}
	return res.RowsAffected()
}
