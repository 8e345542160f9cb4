package governance

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticework/govkernel/pkg/kernelerr"
	"github.com/latticework/govkernel/pkg/policy"
)

// buildConcentratedGraph seeds a graph where "R1" already holds
// r1InDegree inbound edges and four other actors each hold exactly one,
// so the in-degree distribution's shape is controlled precisely enough
// to place its Gini coefficient on either side of the halt threshold.
func buildConcentratedGraph(now time.Time, r1InDegree int) *DelegationGraph {
	g := NewDelegationGraph()
	for i := 0; i < r1InDegree; i++ {
		g.addEdge(Delegation{
			DelegationID: fmt.Sprintf("d-r1-%d", i),
			FromActor:    fmt.Sprintf("from-r1-%d", i),
			ToActor:      "R1",
			ExpiresAt:    now.Add(30 * 24 * time.Hour),
		})
	}
	for _, r := range []string{"R2", "R3", "R4", "R5"} {
		g.addEdge(Delegation{
			DelegationID: "d-" + r,
			FromActor:    "from-" + r,
			ToActor:      r,
			ExpiresAt:    now.Add(30 * 24 * time.Hour),
		})
	}
	return g
}

// Spec §4.6 rule 3: a new delegation edge must be rejected if it would
// push the system-wide delegation Gini coefficient above gini_halt, even
// when the in-degree-halt gate (which only engages once HaltActive() is
// already true) would not itself have blocked it.
func TestDelegateDecisionRight_RejectsEdgeThatPushesGiniOverHalt(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pol := policy.Default()
	ws := Workspace{WorkspaceID: "ws-1"}

	// R1 already has 36 inbound edges; adding one more (37) pushes the
	// 5-recipient distribution's Gini to ~0.7024, just over the default
	// 0.70 halt threshold. HaltActive() is false throughout, so only the
	// projected-Gini guard can be responsible for the rejection.
	graph := buildConcentratedGraph(now, 36)
	require.False(t, graph.HaltActive())

	_, err := DelegateDecisionRight(ws, graph, "cmd-new", "actor-0", "new-from", "R1", 30, VisibilityPrivate, now, pol)
	require.Error(t, err)
	assert.True(t, kernelerr.Is(err, kernelerr.CodeConcentrationHalted))
}

func TestDelegateDecisionRight_AllowsEdgeBelowGiniHalt(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pol := policy.Default()
	ws := Workspace{WorkspaceID: "ws-1"}

	// R1 has 4 inbound edges; adding one more (5) keeps the projected
	// Gini around 0.36, well under the halt threshold.
	graph := buildConcentratedGraph(now, 4)

	events, err := DelegateDecisionRight(ws, graph, "cmd-new", "actor-0", "new-from", "R1", 30, VisibilityPrivate, now, pol)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, EventDecisionRightDelegated, events[0].EventType)
}
