// Package store persists completed simulation runs in a SQLite database.
// Runs are saved as a metadata row plus long-format value rows, so past
// results can be listed and re-exported without rerunning the engine.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/sdewalk/sdewalk/internal/sim"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at  TEXT NOT NULL,
	equations   TEXT NOT NULL, -- JSON array of declarations
	processes   TEXT NOT NULL, -- JSON array, declaration order
	times       TEXT NOT NULL, -- JSON array of time points
	method      TEXT NOT NULL,
	scheme      TEXT NOT NULL,
	seed        INTEGER NOT NULL,
	scenarios   INTEGER NOT NULL,
	draws       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_values (
	run_id    INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	scenario  INTEGER NOT NULL,
	step      INTEGER NOT NULL,
	process   INTEGER NOT NULL, -- index into the run's process list
	value     REAL NOT NULL,
	PRIMARY KEY (run_id, scenario, step, process)
);
`

// Store is a SQLite-backed run archive.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with a single writer

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// RunMeta describes one archived run.
type RunMeta struct {
	ID        int64
	CreatedAt time.Time
	Equations []string
	Processes []string
	Method    string
	Scheme    string
	Seed      uint64
	Scenarios int
	Times     []float64
	Draws     uint64
}

// SaveRun archives a completed result together with the configuration that
// produced it, returning the new run id.
func (s *Store) SaveRun(ctx context.Context, cfg sim.Config, res *sim.Result) (int64, error) {
	equations, err := json.Marshal(cfg.Equations)
	if err != nil {
		return 0, fmt.Errorf("marshal equations: %w", err)
	}
	processes, err := json.Marshal(res.Processes)
	if err != nil {
		return 0, fmt.Errorf("marshal processes: %w", err)
	}
	times, err := json.Marshal(res.Times)
	if err != nil {
		return 0, fmt.Errorf("marshal times: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs (created_at, equations, processes, times, method, scheme, seed, scenarios, draws)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), string(equations), string(processes), string(times),
		cfg.Method.String(), cfg.Scheme.String(), int64(cfg.Seed), res.Scenarios, int64(res.Draws))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_values (run_id, scenario, step, process, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare value insert: %w", err)
	}
	defer stmt.Close()

	step := 0
	for _, row := range res.Rows {
		for pi, v := range row.Values {
			if _, err := stmt.ExecContext(ctx, id, row.Scenario, step, pi, v); err != nil {
				return 0, fmt.Errorf("insert value: %w", err)
			}
		}
		step++
		if step == len(res.Times) {
			step = 0
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return id, nil
}

// ListRuns returns the archived runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, equations, processes, times, method, scheme, seed, scenarios, draws
		FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var metas []RunMeta
	for rows.Next() {
		meta, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// GetRun returns one archived run's metadata.
func (s *Store) GetRun(ctx context.Context, id int64) (RunMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, equations, processes, times, method, scheme, seed, scenarios, draws
		FROM runs WHERE id = ?`, id)
	if err != nil {
		return RunMeta{}, fmt.Errorf("query run %d: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return RunMeta{}, err
		}
		return RunMeta{}, fmt.Errorf("run %d not found", id)
	}
	return scanRun(rows)
}

func scanRun(rows *sql.Rows) (RunMeta, error) {
	var (
		meta                        RunMeta
		created                     string
		equations, processes, times string
		seed, draws                 int64
	)
	if err := rows.Scan(&meta.ID, &created, &equations, &processes, &times,
		&meta.Method, &meta.Scheme, &seed, &meta.Scenarios, &draws); err != nil {
		return RunMeta{}, fmt.Errorf("scan run: %w", err)
	}
	meta.Seed = uint64(seed)
	meta.Draws = uint64(draws)

	var err error
	if meta.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return RunMeta{}, fmt.Errorf("parse created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(equations), &meta.Equations); err != nil {
		return RunMeta{}, fmt.Errorf("unmarshal equations: %w", err)
	}
	if err := json.Unmarshal([]byte(processes), &meta.Processes); err != nil {
		return RunMeta{}, fmt.Errorf("unmarshal processes: %w", err)
	}
	if err := json.Unmarshal([]byte(times), &meta.Times); err != nil {
		return RunMeta{}, fmt.Errorf("unmarshal times: %w", err)
	}
	return meta, nil
}

// LoadResult reconstructs the full row set of an archived run in canonical
// order.
func (s *Store) LoadResult(ctx context.Context, id int64) (*sim.Result, error) {
	meta, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario, step, process, value FROM run_values
		WHERE run_id = ? ORDER BY scenario, step, process`, id)
	if err != nil {
		return nil, fmt.Errorf("query values for run %d: %w", id, err)
	}
	defer rows.Close()

	res := &sim.Result{
		Processes: meta.Processes,
		Times:     meta.Times,
		Scenarios: meta.Scenarios,
		Draws:     meta.Draws,
		Rows:      make([]sim.Row, 0, meta.Scenarios*len(meta.Times)),
	}
	var current *sim.Row
	for rows.Next() {
		var (
			scenario, step, process int
			value                   float64
		)
		if err := rows.Scan(&scenario, &step, &process, &value); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		if step >= len(meta.Times) || process >= len(meta.Processes) {
			return nil, fmt.Errorf("run %d: value row out of range (step %d, process %d)", id, step, process)
		}
		if current == nil || current.Scenario != scenario || current.Time != meta.Times[step] {
			res.Rows = append(res.Rows, sim.Row{
				Scenario: scenario,
				Time:     meta.Times[step],
				Values:   make([]float64, len(meta.Processes)),
			})
			current = &res.Rows[len(res.Rows)-1]
		}
		current.Values[process] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read values for run %d: %w", id, err)
	}
	return res, nil
}

// DeleteRun removes an archived run and its values.
func (s *Store) DeleteRun(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("run %d not found", id)
	}
	return nil
}
