// Package indexdb maintains a queryable sqlite index of decision events.
// Writes go through a single async writer goroutine; the journal remains
// the source of truth, so a backed-up indexer drops rather than stalls
// the simulation.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"gearcraft.ai/internal/protocol"
	"gearcraft.ai/internal/sim/catalogs"
	"gearcraft.ai/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqDecision reqKind = iota + 1
	reqFlush
)

type req struct {
	kind     reqKind
	decision protocol.DecisionEvent
	done     chan struct{}
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// High buffer: many agents can decide in the same tick without
		// stalling the sim loop.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS decisions (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			capability TEXT,
			gear_id TEXT,
			victim_id TEXT,
			task_id TEXT,
			gain_pct REAL,
			score REAL,
			tier INTEGER,
			code TEXT,
			evicted INTEGER,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_agent_tick ON decisions(agent_id, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_gear_tick ON decisions(gear_id, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_type ON decisions(type);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Record implements the engine's event sink. Never blocks the caller: if
// the writer falls behind, the event is dropped here and recovered from
// the journal later.
func (s *SQLiteIndex) Record(ev protocol.DecisionEvent) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqDecision, decision: ev}:
	default:
	}
}

// Flush blocks until everything queued so far is committed. Test and
// shutdown helper.
func (s *SQLiteIndex) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqFlush, done: done}
	<-done
}

// RecordRun stores the tuning and catalog digests the engine ran with, so
// an index can always be matched back to its configuration.
func (s *SQLiteIndex) RecordRun(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if cats != nil {
		if b, _ := json.Marshal(cats.Capabilities.Defs); len(b) > 0 {
			rows = append(rows, kv{name: "capabilities", digest: cats.Capabilities.DefsDigest, json: b})
		}
		if b, _ := json.Marshal(cats.Gear.Defs); len(b) > 0 {
			rows = append(rows, kv{name: "gear", digest: cats.Gear.DefsDigest, json: b})
		}
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('protocol_version',?)`, protocol.Version); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertDecision, _ := s.db.Prepare(`INSERT OR REPLACE INTO decisions(tick,seq,type,agent_id,capability,gear_id,victim_id,task_id,gain_pct,score,tier,code,evicted,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertDecision != nil {
			_ = insertDecision.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastTick uint64
		seq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		ev := r.decision
		if ev.Tick != lastTick {
			lastTick = ev.Tick
			seq = 0
		}
		raw, _ := json.Marshal(ev)
		if insertDecision != nil {
			if _, err := tx.Stmt(insertDecision).Exec(
				int64(ev.Tick),
				seq,
				ev.Type,
				ev.AgentID,
				ev.Capability,
				ev.GearID,
				ev.VictimID,
				ev.TaskID,
				ev.GainPct,
				ev.Score,
				ev.Tier,
				ev.Code,
				ev.Evicted,
				string(raw),
			); err != nil {
				rollback()
				continue
			}
			seq++
			opCount++
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

// DecisionsForAgent returns the agent's most recent decisions, newest first.
func (s *SQLiteIndex) DecisionsForAgent(agentID string, limit int) ([]protocol.DecisionEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT raw_json FROM decisions WHERE agent_id = ? ORDER BY tick DESC, seq DESC LIMIT ?`,
		agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// DecisionsForGear returns everything that happened to one item, oldest
// first; the shape of an item's contention history.
func (s *SQLiteIndex) DecisionsForGear(gearID string, limit int) ([]protocol.DecisionEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT raw_json FROM decisions WHERE gear_id = ? ORDER BY tick ASC, seq ASC LIMIT ?`,
		gearID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// CountByType summarizes the index, e.g. for an end-of-run report.
func (s *SQLiteIndex) CountByType() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT type, COUNT(*) FROM decisions GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		out[typ] = n
	}
	return out, rows.Err()
}

func scanEvents(rows *sql.Rows) ([]protocol.DecisionEvent, error) {
	var out []protocol.DecisionEvent
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var ev protocol.DecisionEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
