package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/latticework/govkernel/internal/canon"
	"github.com/latticework/govkernel/pkg/clock"
	"github.com/latticework/govkernel/pkg/ids"
	"github.com/latticework/govkernel/pkg/kernelerr"
)

// schema mirrors the persisted layout of spec §6: a single events table
// keyed by event_id, unique on command_id, unique on (stream_id,
// version). Grounded on the teacher's pkg/store/ledger/postgres_ledger.go
// schema, generalized from a single obligations queue to a per-stream
// versioned log.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	event_id TEXT PRIMARY KEY,
	stream_id TEXT NOT NULL,
	stream_type TEXT NOT NULL,
	version INTEGER NOT NULL,
	command_id TEXT NOT NULL UNIQUE,
	event_type TEXT NOT NULL,
	occurred_at TIMESTAMP NOT NULL,
	actor_id TEXT NOT NULL,
	payload TEXT NOT NULL,
	UNIQUE(stream_id, version)
);
CREATE INDEX IF NOT EXISTS idx_events_stream_version ON events(stream_id, version);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
CREATE INDEX IF NOT EXISTS idx_events_occurred_at ON events(occurred_at);
`

// SQLLog is a database/sql-backed Log, working against any driver that
// supports the schema above (Postgres via lib/pq, or SQLite via
// modernc.org/sqlite for adapter tests without a live server). Grounded
// on pkg/store/ledger/postgres_ledger.go and sql_ledger.go.
type SQLLog struct {
	db    *sql.DB
	clock clock.Provider
}

// NewSQLLog wraps db. Callers own the *sql.DB lifecycle.
func NewSQLLog(db *sql.DB, c clock.Provider) *SQLLog {
	return &SQLLog{db: db, clock: c}
}

// OpenPostgres opens a durable SQLLog against a Postgres DSN via lib/pq,
// initializing the schema before returning. Grounded on the teacher's
// cmd/helm/main.go sql.Open("postgres", dbURL) wiring. Callers own the
// returned *sql.DB's lifecycle (call Close when done).
func OpenPostgres(ctx context.Context, dsn string, c clock.Provider) (*SQLLog, *sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, kernelerr.Wrap(kernelerr.CodeLogUnavailable, "open postgres", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, kernelerr.Wrap(kernelerr.CodeLogUnavailable, "ping postgres", err)
	}
	l := NewSQLLog(db, c)
	if err := l.Init(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return l, db, nil
}

// OpenSQLite opens a durable SQLLog against a pure-Go SQLite file (or
// ":memory:") via modernc.org/sqlite, initializing the schema before
// returning. Grounded on the teacher's cmd/helm/lite_mode.go
// sql.Open("sqlite", dbPath) wiring, used there as the no-cgo fallback
// to a real Postgres server.
func OpenSQLite(ctx context.Context, path string, c clock.Provider) (*SQLLog, *sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, kernelerr.Wrap(kernelerr.CodeLogUnavailable, "open sqlite", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, kernelerr.Wrap(kernelerr.CodeLogUnavailable, "ping sqlite", err)
	}
	l := NewSQLLog(db, c)
	if err := l.Init(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return l, db, nil
}

// Init creates the schema if it does not already exist.
func (l *SQLLog) Init(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, schema)
	if err != nil {
		return kernelerr.Wrap(kernelerr.CodeLogUnavailable, "init schema", err)
	}
	return nil
}

func (l *SQLLog) StreamVersion(ctx context.Context, streamID string) (uint64, error) {
	var version sql.NullInt64
	err := l.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM events WHERE stream_id = $1`, streamID).Scan(&version)
	if err != nil {
		return 0, kernelerr.Wrap(kernelerr.CodeLogUnavailable, "read stream version", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return uint64(version.Int64), nil
}

func (l *SQLLog) Append(ctx context.Context, streamID string, streamType StreamType, expectedVersion uint64, events []NewEvent) ([]Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.CodeLogUnavailable, "begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM events WHERE stream_id = $1`, streamID).Scan(&current); err != nil {
		return nil, kernelerr.Wrap(kernelerr.CodeLogUnavailable, "read stream version", err)
	}
	currentVersion := uint64(0)
	if current.Valid {
		currentVersion = uint64(current.Int64)
	}
	if currentVersion != expectedVersion {
		return nil, kernelerr.New(kernelerr.CodeVersionConflict,
			fmt.Sprintf("stream %s: expected version %d, have %d", streamID, expectedVersion, currentVersion))
	}

	allApplied := true
	for _, ne := range events {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM events WHERE command_id = $1`, ne.CommandID).Scan(&count); err != nil {
			return nil, kernelerr.Wrap(kernelerr.CodeLogUnavailable, "check command idempotency", err)
		}
		if count == 0 {
			allApplied = false
			break
		}
	}
	if allApplied {
		return nil, nil
	}

	appended := make([]Event, 0, len(events))
	version := currentVersion
	for _, ne := range events {
		version++
		now := l.clock.Now()
		eventID, err := ids.NewEventID(now)
		if err != nil {
			return nil, kernelerr.Wrap(kernelerr.CodeLogUnavailable, "mint event id", err)
		}

		payloadJSON, err := canon.Marshal(ne.Payload)
		if err != nil {
			return nil, kernelerr.Wrap(kernelerr.CodeLogUnavailable, "canonicalize payload", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (event_id, stream_id, stream_type, version, command_id, event_type, occurred_at, actor_id, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, eventID.String(), streamID, string(streamType), version, ne.CommandID, string(ne.EventType), now, ne.ActorID, string(payloadJSON))
		if err != nil {
			if isUniqueViolation(err) {
				return nil, l.classifyUniqueViolation(ctx, ne.CommandID, streamID)
			}
			return nil, kernelerr.Wrap(kernelerr.CodeLogUnavailable, "insert event", err)
		}

		appended = append(appended, Event{
			EventID:    eventID,
			StreamID:   streamID,
			StreamType: streamType,
			Version:    version,
			CommandID:  ne.CommandID,
			EventType:  ne.EventType,
			OccurredAt: now,
			ActorID:    ne.ActorID,
			Payload:    ne.Payload,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, kernelerr.Wrap(kernelerr.CodeLogUnavailable, "commit append", err)
	}
	return appended, nil
}

func (l *SQLLog) LoadStream(ctx context.Context, streamID string) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT event_id, stream_id, stream_type, version, command_id, event_type, occurred_at, actor_id, payload
		FROM events WHERE stream_id = $1 ORDER BY version ASC
	`, streamID)
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.CodeLogUnavailable, "load stream", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

func (l *SQLLog) LoadAll(ctx context.Context) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT event_id, stream_id, stream_type, version, command_id, event_type, occurred_at, actor_id, payload
		FROM events ORDER BY event_id ASC
	`)
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.CodeLogUnavailable, "load all", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var (
			eventIDStr, streamID, streamType, commandID, eventType, actorID, payloadJSON string
			version                                                                      int64
			occurredAt                                                                   interface{}
		)
		if err := rows.Scan(&eventIDStr, &streamID, &streamType, &version, &commandID, &eventType, &occurredAt, &actorID, &payloadJSON); err != nil {
			return nil, kernelerr.Wrap(kernelerr.CodeCorruptStream, "scan event row", err)
		}

		var payload interface{}
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, kernelerr.Wrap(kernelerr.CodeCorruptStream, "decode payload", err)
		}

		occurred, err := coerceTime(occurredAt)
		if err != nil {
			return nil, kernelerr.Wrap(kernelerr.CodeCorruptStream, "decode occurred_at", err)
		}

		eventID, err := ids.ParseEventID(eventIDStr)
		if err != nil {
			return nil, kernelerr.Wrap(kernelerr.CodeCorruptStream, "decode event id", err)
		}

		out = append(out, Event{
			EventID:    eventID,
			StreamID:   streamID,
			StreamType: StreamType(streamType),
			Version:    uint64(version),
			CommandID:  commandID,
			EventType:  EventType(eventType),
			OccurredAt: occurred,
			ActorID:    actorID,
			Payload:    payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, kernelerr.Wrap(kernelerr.CodeCorruptStream, "iterate event rows", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	// Driver-agnostic best effort: both lib/pq and modernc.org/sqlite
	// surface unique constraint violations with recognizable substrings
	// rather than a shared sentinel error type.
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unique") || strings.Contains(msg, "UNIQUE") || strings.Contains(msg, "duplicate key")
}

// classifyUniqueViolation disambiguates which of the table's two unique
// constraints a failed INSERT tripped. The command_id constraint means
// this exact command was already appended (coerce to
// CodeCommandAlreadyApplied); the (stream_id, version) constraint means
// a concurrent writer claimed this version slot first with a different
// command, which is a genuine race the caller must retry as
// CodeVersionConflict, not a false "already applied". Queried against
// l.db rather than the (now aborted) tx.
func (l *SQLLog) classifyUniqueViolation(ctx context.Context, commandID, streamID string) error {
	var count int
	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE command_id = $1`, commandID).Scan(&count); err != nil {
		return kernelerr.Wrap(kernelerr.CodeLogUnavailable, "classify unique violation", err)
	}
	if count > 0 {
		return kernelerr.New(kernelerr.CodeCommandAlreadyApplied, commandID)
	}
	return kernelerr.New(kernelerr.CodeVersionConflict,
		fmt.Sprintf("stream %s: concurrent writer claimed this version slot", streamID))
}

// coerceTime normalizes the driver-specific representation of occurred_at
// (time.Time from lib/pq, or a RFC3339 string/[]byte from modernc.org/sqlite)
// into a time.Time.
func coerceTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, err
		}
		return parsed.UTC(), nil
	case []byte:
		parsed, err := time.Parse(time.RFC3339Nano, string(t))
		if err != nil {
			return time.Time{}, err
		}
		return parsed.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("eventlog: unsupported occurred_at type %T", v)
	}
}
