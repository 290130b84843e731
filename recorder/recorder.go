// Package recorder keeps a SQLite registry of simulation runs: who ran
// what scenario with which seed and config, and how it ended. The
// registry is append-only across runs so results stay comparable after
// parameter changes.
package recorder

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ambleworks/crowd/telemetry"
)

// Registry wraps a SQLite connection for the run log.
type Registry struct {
	conn *sqlx.DB
}

// Open opens or creates the registry database at the given path.
func Open(path string) (*Registry, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	r := &Registry{conn: conn}
	if err := r.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate registry: %w", err)
	}
	return r, nil
}

// Close closes the database connection.
func (r *Registry) Close() error {
	return r.conn.Close()
}

func (r *Registry) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		scenario TEXT NOT NULL,
		agents INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		ticks INTEGER NOT NULL DEFAULT 0,
		sim_time REAL NOT NULL DEFAULT 0,
		config_yaml TEXT NOT NULL,
		stats_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := r.conn.Exec(schema)
	return err
}

// RunMeta describes a run at start time.
type RunMeta struct {
	Seed       int64
	Scenario   string
	Agents     int
	ConfigYAML string
}

// Run is one row of the registry.
type Run struct {
	ID         string  `db:"id"`
	Seed       int64   `db:"seed"`
	Scenario   string  `db:"scenario"`
	Agents     int     `db:"agents"`
	StartedAt  string  `db:"started_at"`
	FinishedAt *string `db:"finished_at"`
	Ticks      int64   `db:"ticks"`
	SimTime    float64 `db:"sim_time"`
	ConfigYAML string  `db:"config_yaml"`
	StatsJSON  *string `db:"stats_json"`
}

// FinalStats decodes the closing stats window recorded by EndRun, or
// nil when the run never finished.
func (run *Run) FinalStats() (*telemetry.WindowStats, error) {
	if run.StatsJSON == nil {
		return nil, nil
	}
	var ws telemetry.WindowStats
	if err := json.Unmarshal([]byte(*run.StatsJSON), &ws); err != nil {
		return nil, fmt.Errorf("decode run stats: %w", err)
	}
	return &ws, nil
}

// BeginRun registers a new run and returns its id.
func (r *Registry) BeginRun(meta RunMeta) (string, error) {
	id := uuid.NewString()
	_, err := r.conn.Exec(
		`INSERT INTO runs (id, seed, scenario, agents, started_at, config_yaml)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, meta.Seed, meta.Scenario, meta.Agents,
		time.Now().UTC().Format(time.RFC3339), meta.ConfigYAML,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	slog.Info("run registered", "run", id, "seed", meta.Seed, "scenario", meta.Scenario)
	return id, nil
}

// EndRun marks a run finished and stores its closing stats window.
func (r *Registry) EndRun(id string, ticks int64, simTime float64, final *telemetry.WindowStats) error {
	var statsJSON *string
	if final != nil {
		b, err := json.Marshal(final)
		if err != nil {
			return fmt.Errorf("marshal run stats: %w", err)
		}
		s := string(b)
		statsJSON = &s
	}
	res, err := r.conn.Exec(
		`UPDATE runs SET finished_at = ?, ticks = ?, sim_time = ?, stats_json = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), ticks, simTime, statsJSON, id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("finish run: unknown id %q", id)
	}
	return nil
}

// Run fetches one run by id.
func (r *Registry) Run(id string) (Run, error) {
	var run Run
	if err := r.conn.Get(&run, "SELECT * FROM runs WHERE id = ?", id); err != nil {
		return run, fmt.Errorf("fetch run %q: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recently started runs, newest first.
func (r *Registry) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	err := r.conn.Select(&runs,
		"SELECT * FROM runs ORDER BY started_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
