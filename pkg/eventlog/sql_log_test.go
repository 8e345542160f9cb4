package eventlog

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticework/govkernel/pkg/clock"
	"github.com/latticework/govkernel/pkg/ids"
	"github.com/latticework/govkernel/pkg/kernelerr"
)

func TestSQLLog_AppendHappyPath(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	log := NewSQLLog(db, c)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT MAX\(version\) FROM events WHERE stream_id = \$1`).
		WithArgs("workspace-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM events WHERE command_id = \$1`).
		WithArgs("cmd-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO events`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	appended, err := log.Append(context.Background(), "workspace-1", StreamWorkspace, 0, []NewEvent{
		{CommandID: "cmd-1", EventType: "WorkspaceCreated", ActorID: "actor-1", Payload: map[string]interface{}{"name": "alpha"}},
	})
	require.NoError(t, err)
	require.Len(t, appended, 1)
	assert.Equal(t, uint64(1), appended[0].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLog_AppendVersionConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	log := NewSQLLog(db, c)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT MAX\(version\) FROM events WHERE stream_id = \$1`).
		WithArgs("workspace-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(3))
	mock.ExpectRollback()

	_, err = log.Append(context.Background(), "workspace-1", StreamWorkspace, 0, []NewEvent{
		{CommandID: "cmd-1", EventType: "WorkspaceCreated", ActorID: "actor-1", Payload: nil},
	})
	require.Error(t, err)
	assert.True(t, kernelerr.Is(err, kernelerr.CodeVersionConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A losing writer's INSERT trips the (stream_id, version) unique
// constraint, not the command_id one -- classifyUniqueViolation must
// requery by command_id, find no match, and report VersionConflict so
// the façade retries, rather than misreporting the untouched command as
// already applied.
func TestSQLLog_AppendRaceOnVersionSlotIsVersionConflictNotAlreadyApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	log := NewSQLLog(db, c)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT MAX\(version\) FROM events WHERE stream_id = \$1`).
		WithArgs("workspace-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM events WHERE command_id = \$1`).
		WithArgs("cmd-loser").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO events`).
		WillReturnError(fmt.Errorf(`pq: duplicate key value violates unique constraint "events_stream_id_version_key"`))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM events WHERE command_id = \$1`).
		WithArgs("cmd-loser").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	_, err = log.Append(context.Background(), "workspace-1", StreamWorkspace, 0, []NewEvent{
		{CommandID: "cmd-loser", EventType: "WorkspaceCreated", ActorID: "actor-1", Payload: nil},
	})
	require.Error(t, err)
	assert.True(t, kernelerr.Is(err, kernelerr.CodeVersionConflict))
	assert.False(t, kernelerr.Is(err, kernelerr.CodeCommandAlreadyApplied))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A retried writer's INSERT trips the command_id unique constraint
// because this exact command already committed in an earlier attempt.
// classifyUniqueViolation must requery by command_id, find the match,
// and report CommandAlreadyApplied so the façade coerces it to success.
func TestSQLLog_AppendRealCommandIDCollisionIsAlreadyApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	log := NewSQLLog(db, c)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT MAX\(version\) FROM events WHERE stream_id = \$1`).
		WithArgs("workspace-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM events WHERE command_id = \$1`).
		WithArgs("cmd-retried").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO events`).
		WillReturnError(fmt.Errorf(`pq: duplicate key value violates unique constraint "events_command_id_key"`))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM events WHERE command_id = \$1`).
		WithArgs("cmd-retried").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err = log.Append(context.Background(), "workspace-1", StreamWorkspace, 1, []NewEvent{
		{CommandID: "cmd-retried", EventType: "WorkspaceCreated", ActorID: "actor-1", Payload: nil},
	})
	require.Error(t, err)
	assert.True(t, kernelerr.Is(err, kernelerr.CodeCommandAlreadyApplied))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLog_LoadStream(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	log := NewSQLLog(db, c)

	eventID, err := ids.NewEventID(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{
		"event_id", "stream_id", "stream_type", "version", "command_id",
		"event_type", "occurred_at", "actor_id", "payload",
	}).AddRow(eventID.String(), "workspace-1", "workspace", int64(1), "cmd-1",
		"WorkspaceCreated", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "actor-1", `{"name":"alpha"}`)

	mock.ExpectQuery(`SELECT event_id, stream_id, stream_type, version, command_id, event_type, occurred_at, actor_id, payload\s+FROM events WHERE stream_id = \$1 ORDER BY version ASC`).
		WithArgs("workspace-1").
		WillReturnRows(rows)

	events, err := log.LoadStream(context.Background(), "workspace-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "cmd-1", events[0].CommandID)
	assert.Equal(t, eventID, events[0].EventID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
