// Package eventlog implements the append-only, per-stream-versioned event
// store (C1). Event ids and timestamps come from packages ids and clock.
//
// Contract: append is atomic per batch, load_stream returns a stream's
// events in version order, and load_all returns every event in an
// ordering stable enough for deterministic replay. Idempotency is
// enforced on command_id, not on caller retry behavior.
package eventlog

import (
	"time"

	"github.com/latticework/govkernel/pkg/ids"
)

// StreamType names the aggregate kind a stream belongs to.
type StreamType string

const (
	StreamWorkspace  StreamType = "workspace"
	StreamLaw        StreamType = "law"
	StreamDelegation StreamType = "delegation"
	StreamBudget     StreamType = "budget"
	StreamTender     StreamType = "tender"
	StreamSupplier   StreamType = "supplier"
	StreamSystem     StreamType = "system"
)

// EventType discriminates the payload carried by an Event. Projections
// dispatch on this value; an unrecognized EventType during replay is a
// fatal error, not a no-op, since that indicates schema drift.
type EventType string

// Event is a single immutable, versioned fact recorded against a stream.
type Event struct {
	EventID    ids.EventID
	StreamID   string
	StreamType StreamType
	Version    uint64
	CommandID  string
	EventType  EventType
	OccurredAt time.Time
	ActorID    string
	Payload    interface{}
}
