//go:build integration

package eventlog

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticework/govkernel/pkg/clock"
)

// These tests exercise SQLLog against a real driver-registered *sql.DB
// (modernc.org/sqlite, plus a real Postgres server when
// GOVKERNEL_TEST_POSTGRES_DSN is set)
// rather than a mock, so the durability story sql.go documents is
// actually driven end to end. Gated behind the integration build tag,
// matching the teacher's use of build tags (e.g. "conformance") to keep
// environment-dependent suites out of the default `go test ./...` run.

func TestSQLLog_SQLite_AppendAndReplay(t *testing.T) {
	c := clock.NewVirtual(clock.Real{}.Now())
	log, db, err := OpenSQLite(context.Background(), ":memory:", c)
	require.NoError(t, err)
	defer db.Close()

	appended, err := log.Append(context.Background(), "stream-1", StreamWorkspace, 0, []NewEvent{
		{CommandID: "cmd-1", EventType: "test.created", ActorID: "actor-1", Payload: map[string]interface{}{"k": "v"}},
	})
	require.NoError(t, err)
	require.Len(t, appended, 1)
	assert.Equal(t, uint64(1), appended[0].Version)

	replayed, err := log.LoadStream(context.Background(), "stream-1")
	require.NoError(t, err)
	require.Len(t, replayed, 1)
	assert.Equal(t, "cmd-1", replayed[0].CommandID)

	// Re-appending the same command id is a no-op, not a duplicate row.
	again, err := log.Append(context.Background(), "stream-1", StreamWorkspace, 1, []NewEvent{
		{CommandID: "cmd-1", EventType: "test.created", ActorID: "actor-1", Payload: map[string]interface{}{"k": "v"}},
	})
	require.NoError(t, err)
	assert.Empty(t, again)
}

// TestSQLLog_Postgres_AppendAndReplay requires a live Postgres reachable
// at GOVKERNEL_TEST_POSTGRES_DSN; skipped otherwise since CI here never
// runs the Go toolchain against a provisioned database.
func TestSQLLog_Postgres_AppendAndReplay(t *testing.T) {
	dsn := testPostgresDSN(t)
	if dsn == "" {
		t.Skip("GOVKERNEL_TEST_POSTGRES_DSN not set")
	}
	c := clock.NewVirtual(clock.Real{}.Now())
	log, db, err := OpenPostgres(context.Background(), dsn, c)
	require.NoError(t, err)
	defer db.Close()

	appended, err := log.Append(context.Background(), "stream-pg-1", StreamWorkspace, 0, []NewEvent{
		{CommandID: "cmd-pg-1", EventType: "test.created", ActorID: "actor-1", Payload: map[string]interface{}{"k": "v"}},
	})
	require.NoError(t, err)
	require.Len(t, appended, 1)
}

func testPostgresDSN(t *testing.T) string {
	t.Helper()
	return os.Getenv("GOVKERNEL_TEST_POSTGRES_DSN")
}
