package eventlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticework/govkernel/pkg/clock"
	"github.com/latticework/govkernel/pkg/kernelerr"
)

func TestMemoryLog_AppendAndLoadStream(t *testing.T) {
	ctx := context.Background()
	c := clock.NewVirtual(mustParseTime(t, "2026-01-01T00:00:00Z"))
	log := NewMemoryLog(c)

	appended, err := log.Append(ctx, "workspace-1", StreamWorkspace, 0, []NewEvent{
		{CommandID: "cmd-1", EventType: "WorkspaceCreated", ActorID: "actor-1", Payload: map[string]interface{}{"name": "alpha"}},
	})
	require.NoError(t, err)
	require.Len(t, appended, 1)
	assert.Equal(t, uint64(1), appended[0].Version)

	stream, err := log.LoadStream(ctx, "workspace-1")
	require.NoError(t, err)
	require.Len(t, stream, 1)
	assert.Equal(t, "cmd-1", stream[0].CommandID)
}

func TestMemoryLog_VersionConflict(t *testing.T) {
	ctx := context.Background()
	c := clock.NewVirtual(mustParseTime(t, "2026-01-01T00:00:00Z"))
	log := NewMemoryLog(c)

	_, err := log.Append(ctx, "workspace-1", StreamWorkspace, 0, []NewEvent{
		{CommandID: "cmd-1", EventType: "WorkspaceCreated", ActorID: "actor-1", Payload: nil},
	})
	require.NoError(t, err)

	_, err = log.Append(ctx, "workspace-1", StreamWorkspace, 0, []NewEvent{
		{CommandID: "cmd-2", EventType: "WorkspaceRenamed", ActorID: "actor-1", Payload: nil},
	})
	require.Error(t, err)
	assert.True(t, kernelerr.Is(err, kernelerr.CodeVersionConflict))
}

func TestMemoryLog_IdempotentRetrySameCommandID(t *testing.T) {
	ctx := context.Background()
	c := clock.NewVirtual(mustParseTime(t, "2026-01-01T00:00:00Z"))
	log := NewMemoryLog(c)

	first, err := log.Append(ctx, "workspace-1", StreamWorkspace, 0, []NewEvent{
		{CommandID: "cmd-1", EventType: "WorkspaceCreated", ActorID: "actor-1", Payload: nil},
	})
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Retrying the exact same batch at the same expected version is a
	// silent success: nothing new is appended, and the stream stays at
	// version 1.
	second, err := log.Append(ctx, "workspace-1", StreamWorkspace, 0, []NewEvent{
		{CommandID: "cmd-1", EventType: "WorkspaceCreated", ActorID: "actor-1", Payload: nil},
	})
	require.NoError(t, err)
	assert.Empty(t, second)

	version, err := log.StreamVersion(ctx, "workspace-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)
}

func TestMemoryLog_LoadAllOrdersByEventID(t *testing.T) {
	ctx := context.Background()
	c := clock.NewVirtual(mustParseTime(t, "2026-01-01T00:00:00Z"))
	log := NewMemoryLog(c)

	_, err := log.Append(ctx, "workspace-1", StreamWorkspace, 0, []NewEvent{
		{CommandID: "cmd-1", EventType: "WorkspaceCreated", ActorID: "actor-1", Payload: nil},
	})
	require.NoError(t, err)

	c.Advance(time.Millisecond)
	_, err = log.Append(ctx, "workspace-2", StreamWorkspace, 0, []NewEvent{
		{CommandID: "cmd-2", EventType: "WorkspaceCreated", ActorID: "actor-1", Payload: nil},
	})
	require.NoError(t, err)

	all, err := log.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "cmd-1", all[0].CommandID)
	assert.Equal(t, "cmd-2", all[1].CommandID)
	assert.True(t, all[0].EventID.Less(all[1].EventID))
}

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return parsed
}
