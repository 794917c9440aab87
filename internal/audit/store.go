// Package audit persists per-session telemetry and control decisions to
// SQLite. Every cycle is recorded exactly as the pipeline saw it, so a
// session can later be replayed and its outputs verified bit for bit.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/vitals"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	started_at    TEXT NOT NULL,
	ended_at      TEXT,
	profile_json  TEXT NOT NULL,
	proxy_source  TEXT NOT NULL,
	period_ms     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS telemetry_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	cycle         INTEGER NOT NULL,
	recorded_at   TEXT NOT NULL,
	sample_json   TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS control_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	cycle         INTEGER NOT NULL,
	recorded_at   TEXT NOT NULL,
	state_json    TEXT NOT NULL,
	output_json   TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);
`

// #endregion schema

// #region records
// SessionRecord describes one recorded controller run.
type SessionRecord struct {
	SessionID   string
	StartedAt   time.Time
	EndedAt     time.Time
	Profile     vitals.PatientProfile
	ProxySource string // "rule-based" or "neural"
	PeriodMs    int
}

// CycleRecord pairs the telemetry sample of one cycle with the state and
// decision computed from it.
type CycleRecord struct {
	Cycle  int
	Sample vitals.Telemetry
	State  vitals.PatientState
	Output vitals.ControlOutput
}

// #endregion records

// #region store-struct
// Store manages session audit data in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for maintenance tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region begin-session
// BeginSession registers a new session and returns its generated ID.
func (s *Store) BeginSession(profile vitals.PatientProfile, proxySource string, period time.Duration) (string, error) {
	id := uuid.New().String()
	profJSON, err := json.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (session_id, started_at, profile_json, proxy_source, period_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339Nano), string(profJSON),
		proxySource, period.Milliseconds(),
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// EndSession stamps the session's end time.
func (s *Store) EndSession(sessionID string) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ? WHERE session_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), sessionID,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// #endregion begin-session

// #region record-cycle
// RecordCycle persists one control cycle atomically.
func (s *Store) RecordCycle(sessionID string, rec CycleRecord) error {
	sampleJSON, err := json.Marshal(rec.Sample)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}
	stateJSON, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	outputJSON, err := json.Marshal(rec.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO telemetry_log (session_id, cycle, recorded_at, sample_json)
		 VALUES (?, ?, ?, ?)`,
		sessionID, rec.Cycle, now, string(sampleJSON),
	)
	if err != nil {
		return fmt.Errorf("insert telemetry: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO control_log (session_id, cycle, recorded_at, state_json, output_json)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, rec.Cycle, now, string(stateJSON), string(outputJSON),
	)
	if err != nil {
		return fmt.Errorf("insert control: %w", err)
	}

	return tx.Commit()
}

// #endregion record-cycle

// #region get-session
// GetSession retrieves a session's metadata.
func (s *Store) GetSession(sessionID string) (SessionRecord, error) {
	var rec SessionRecord
	var startedStr string
	var endedStr sql.NullString
	var profJSON string

	err := s.db.QueryRow(
		`SELECT session_id, started_at, ended_at, profile_json, proxy_source, period_ms
		 FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&rec.SessionID, &startedStr, &endedStr, &profJSON, &rec.ProxySource, &rec.PeriodMs)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
	if endedStr.Valid {
		rec.EndedAt, _ = time.Parse(time.RFC3339Nano, endedStr.String)
	}
	if err := json.Unmarshal([]byte(profJSON), &rec.Profile); err != nil {
		return SessionRecord{}, fmt.Errorf("unmarshal profile: %w", err)
	}
	return rec, nil
}

// ListSessions returns the most recent sessions.
func (s *Store) ListSessions(limit int) ([]SessionRecord, error) {
	rows, err := s.db.Query(
		`SELECT session_id, started_at, ended_at, profile_json, proxy_source, period_ms
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var startedStr string
		var endedStr sql.NullString
		var profJSON string
		if err := rows.Scan(&rec.SessionID, &startedStr, &endedStr, &profJSON, &rec.ProxySource, &rec.PeriodMs); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
		if endedStr.Valid {
			rec.EndedAt, _ = time.Parse(time.RFC3339Nano, endedStr.String)
		}
		if err := json.Unmarshal([]byte(profJSON), &rec.Profile); err != nil {
			return nil, fmt.Errorf("unmarshal profile: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion get-session

// #region get-cycles
// GetCycles returns every recorded cycle of a session in cycle order.
func (s *Store) GetCycles(sessionID string) ([]CycleRecord, error) {
	rows, err := s.db.Query(
		`SELECT t.cycle, t.sample_json, c.state_json, c.output_json
		 FROM telemetry_log t
		 JOIN control_log c ON c.session_id = t.session_id AND c.cycle = t.cycle
		 WHERE t.session_id = ?
		 ORDER BY t.cycle ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var records []CycleRecord
	for rows.Next() {
		var rec CycleRecord
		var sampleJSON, stateJSON, outputJSON string
		if err := rows.Scan(&rec.Cycle, &sampleJSON, &stateJSON, &outputJSON); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		if err := json.Unmarshal([]byte(sampleJSON), &rec.Sample); err != nil {
			return nil, fmt.Errorf("unmarshal sample: %w", err)
		}
		if err := json.Unmarshal([]byte(stateJSON), &rec.State); err != nil {
			return nil, fmt.Errorf("unmarshal state: %w", err)
		}
		if err := json.Unmarshal([]byte(outputJSON), &rec.Output); err != nil {
			return nil, fmt.Errorf("unmarshal output: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion get-cycles
