package eventlog

import (
	"context"
	"fmt"
	"sync"

	"github.com/latticework/govkernel/pkg/clock"
	"github.com/latticework/govkernel/pkg/ids"
	"github.com/latticework/govkernel/pkg/kernelerr"
)

// Log is the abstract event log contract (C1, spec §4.1/§6). Append is
// atomic per batch: either every event in the batch persists at
// expectedVersion+1..expectedVersion+n, or none does.
type Log interface {
	// Append writes events under stream_id if the stream's current max
	// version equals expectedVersion. It returns the events that were
	// actually appended (empty if every command_id in the batch was
	// already applied — that is success, not VersionConflict).
	Append(ctx context.Context, streamID string, streamType StreamType, expectedVersion uint64, events []NewEvent) ([]Event, error)
	// LoadStream returns a stream's events in version order.
	LoadStream(ctx context.Context, streamID string) ([]Event, error)
	// LoadAll returns every event in an order stable for replay.
	LoadAll(ctx context.Context) ([]Event, error)
	// StreamVersion returns a stream's current max version, or 0 if the
	// stream does not exist yet.
	StreamVersion(ctx context.Context, streamID string) (uint64, error)
}

// NewEvent is the caller-supplied shape of an event prior to being
// assigned an event id and version by the log.
type NewEvent struct {
	CommandID string
	EventType EventType
	ActorID   string
	Payload   interface{}
}

// commandIndex tracks which command ids have already been applied, and
// to which stream/version they resolved, so replays and retries can
// detect CommandAlreadyApplied without a full scan.
type commandIndex map[string]struct {
	streamID string
	version  uint64
}

// MemoryLog is an in-process, mutex-guarded event log. Grounded on the
// teacher's pkg/ledger.Ledger: a slice per stream guarded by a single
// lock, with a monotonic per-stream version instead of a single global
// hash chain.
type MemoryLog struct {
	mu       sync.Mutex
	clock    clock.Provider
	streams  map[string][]Event
	commands commandIndex
	order    []Event // global insertion order, used by LoadAll
}

// NewMemoryLog creates an empty in-memory event log.
func NewMemoryLog(c clock.Provider) *MemoryLog {
	return &MemoryLog{
		clock:    c,
		streams:  make(map[string][]Event),
		commands: make(commandIndex),
	}
}

func (l *MemoryLog) Append(ctx context.Context, streamID string, streamType StreamType, expectedVersion uint64, events []NewEvent) ([]Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.streams[streamID]
	currentVersion := uint64(len(current))

	// Idempotency: if every command id in the batch was already applied,
	// this is a silent success with nothing new appended.
	allApplied := true
	for _, ne := range events {
		if _, ok := l.commands[ne.CommandID]; !ok {
			allApplied = false
			break
		}
	}
	if allApplied {
		return nil, nil
	}

	if currentVersion != expectedVersion {
		return nil, kernelerr.New(kernelerr.CodeVersionConflict,
			fmt.Sprintf("stream %s: expected version %d, have %d", streamID, expectedVersion, currentVersion))
	}

	appended := make([]Event, 0, len(events))
	version := currentVersion
	for _, ne := range events {
		if prior, ok := l.commands[ne.CommandID]; ok {
			return nil, kernelerr.New(kernelerr.CodeInvalidCommand,
				fmt.Sprintf("command %s already applied to stream %s at version %d, cannot mix with new events in stream %s", ne.CommandID, prior.streamID, prior.version, streamID))
		}

		version++
		eventID, err := ids.NewEventID(l.clock.Now())
		if err != nil {
			return nil, kernelerr.Wrap(kernelerr.CodeLogUnavailable, "mint event id", err)
		}

		ev := Event{
			EventID:    eventID,
			StreamID:   streamID,
			StreamType: streamType,
			Version:    version,
			CommandID:  ne.CommandID,
			EventType:  ne.EventType,
			OccurredAt: l.clock.Now(),
			ActorID:    ne.ActorID,
			Payload:    ne.Payload,
		}
		appended = append(appended, ev)
	}

	l.streams[streamID] = append(current, appended...)
	l.order = append(l.order, appended...)
	for _, ev := range appended {
		l.commands[ev.CommandID] = struct {
			streamID string
			version  uint64
		}{streamID: ev.StreamID, version: ev.Version}
	}

	return appended, nil
}

func (l *MemoryLog) LoadStream(ctx context.Context, streamID string) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	events := l.streams[streamID]
	out := make([]Event, len(events))
	copy(out, events)
	return out, nil
}

func (l *MemoryLog) LoadAll(ctx context.Context) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.order))
	copy(out, l.order)
	return out, nil
}

func (l *MemoryLog) StreamVersion(ctx context.Context, streamID string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.streams[streamID])), nil
}
