package governance

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticework/govkernel/pkg/clock"
	"github.com/latticework/govkernel/pkg/eventlog"
	"github.com/latticework/govkernel/pkg/kernelerr"
	"github.com/latticework/govkernel/pkg/money"
	"github.com/latticework/govkernel/pkg/policy"
)

func newTestFacade(t *testing.T, now time.Time) (*Facade, *clock.Virtual) {
	t.Helper()
	c := clock.NewVirtual(now)
	log := eventlog.NewMemoryLog(c)
	f, err := NewFacade(context.Background(), log, c, policy.Default())
	require.NoError(t, err)
	return f, c
}

// alreadyAppliedOnceLog wraps a real Log and forces its next Append call
// to fail with CodeCommandAlreadyApplied, standing in for the race sql.go
// resolves at INSERT time: this exact command_id was durably appended by
// an earlier attempt, so the log itself, not the façade's pre-check,
// reports the idempotent replay.
type alreadyAppliedOnceLog struct {
	eventlog.Log
	armed bool
}

func (l *alreadyAppliedOnceLog) Append(ctx context.Context, streamID string, streamType eventlog.StreamType, expectedVersion uint64, events []eventlog.NewEvent) ([]eventlog.Event, error) {
	if l.armed {
		l.armed = false
		return nil, kernelerr.New(kernelerr.CodeCommandAlreadyApplied, events[0].CommandID)
	}
	return l.Log.Append(ctx, streamID, streamType, expectedVersion, events)
}

// Scenario 1 (spec §8): A->B, B->C, then C->A must be rejected as a
// cycle, and the graph must still contain exactly two edges.
func TestFacade_Acyclicity(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err := f.CreateWorkspace(ctx, "ws-1", "cmd-ws", "actor-0", "alpha", "", nil)
	require.NoError(t, err)

	_, err = f.DelegateDecisionRight(ctx, "deleg-ab", "ws-1", "cmd-ab", "actor-0", "A", "B", 30, VisibilityPrivate)
	require.NoError(t, err)
	_, err = f.DelegateDecisionRight(ctx, "deleg-bc", "ws-1", "cmd-bc", "actor-0", "B", "C", 30, VisibilityPrivate)
	require.NoError(t, err)

	_, err = f.DelegateDecisionRight(ctx, "deleg-ca", "ws-1", "cmd-ca", "actor-0", "C", "A", 30, VisibilityPrivate)
	require.Error(t, err)
	assert.True(t, kernelerr.Is(err, kernelerr.CodeDelegationCycleDetected))

	assert.Equal(t, 1, f.Projections().Delegations.InDegree("B"))
	assert.Equal(t, 1, f.Projections().Delegations.InDegree("C"))
	assert.Equal(t, 0, f.Projections().Delegations.InDegree("A"))
}

// Scenario 2 (spec §8): a 30-day delegation, advanced 31 days, ticks to
// DelegationExpired and the edge leaves the active graph.
func TestFacade_ExpiryUnderVirtualClock(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f, c := newTestFacade(t, t0)

	_, err := f.CreateWorkspace(ctx, "ws-1", "cmd-ws", "actor-0", "alpha", "", nil)
	require.NoError(t, err)
	_, err = f.DelegateDecisionRight(ctx, "deleg-1", "ws-1", "cmd-1", "actor-0", "A", "B", 30, VisibilityPrivate)
	require.NoError(t, err)

	c.Set(t0.AddDate(0, 0, 31))
	appended, err := f.RunTick(ctx)
	require.NoError(t, err)

	found := false
	for _, ev := range appended {
		if ev.EventType == EventDelegationExpired {
			found = true
		}
	}
	assert.True(t, found)
	assert.Equal(t, 0, f.Projections().Delegations.InDegree("B"))
}

// Scenario 3 (spec §8): checkpoint flow through activation, overrun,
// and a `continue` review outcome.
func TestFacade_LawCheckpointFlow(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f, c := newTestFacade(t, t0)

	_, err := f.CreateLaw(ctx, "law-1", "cmd-law", "actor-0", "ws-1", "Title", "scope", ReversibilityReversible, []int{30, 90, 180, 365}, nil)
	require.NoError(t, err)
	_, err = f.ActivateLaw(ctx, "law-1", "cmd-activate", "actor-0")
	require.NoError(t, err)

	c.Set(t0.AddDate(0, 0, 31))
	appended, err := f.RunTick(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, appended)
	assert.Equal(t, EventLawReviewTriggered, appended[0].EventType)

	l, ok := f.Projections().Laws.Get("law-1")
	require.True(t, ok)
	assert.Equal(t, LawStatusReview, l.Status)

	_, err = f.CompleteReview(ctx, "law-1", "cmd-review", "actor-0", ReviewOutcomeContinue)
	require.NoError(t, err)

	l, ok = f.Projections().Laws.Get("law-1")
	require.True(t, ok)
	assert.Equal(t, LawStatusActive, l.Status)
	require.NotNil(t, l.NextCheckpointAt)
	assert.Equal(t, t0.AddDate(0, 0, 31+90), *l.NextCheckpointAt)
}

// Scenario 4 (spec §8): budget adjustment zero-sum and flex-ceiling
// boundaries.
func TestFacade_BudgetAdjustmentZeroSum(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	items := map[string]BudgetItem{
		"X": {ItemID: "X", Name: "X", Allocated: money.New(50000000, MoneyScale), Spent: money.Zero(MoneyScale), FlexClass: FlexClassCritical},
		"Y": {ItemID: "Y", Name: "Y", Allocated: money.New(20000000, MoneyScale), Spent: money.Zero(MoneyScale), FlexClass: FlexClassImportant},
	}
	total := money.New(70000000, MoneyScale)
	_, err := f.CreateBudget(ctx, "budget-1", "cmd-budget", "actor-0", "law-1", 2026, items, total)
	require.NoError(t, err)
	_, err = f.ActivateBudget(ctx, "budget-1", "cmd-activate-budget", "actor-0")
	require.NoError(t, err)

	// 5% / 12.5% -- within both ceilings, accepted.
	_, err = f.AdjustAllocation(ctx, "budget-1", "cmd-adj-1", "actor-0", []Adjustment{
		{ItemID: "X", Change: money.New(-2500000, MoneyScale)},
		{ItemID: "Y", Change: money.New(2500000, MoneyScale)},
	})
	require.NoError(t, err)

	// 30000 of X's 475000 (~6.3%) > 5% critical ceiling, rejected.
	_, err = f.AdjustAllocation(ctx, "budget-1", "cmd-adj-2", "actor-0", []Adjustment{
		{ItemID: "X", Change: money.New(-3000000, MoneyScale)},
		{ItemID: "Y", Change: money.New(3000000, MoneyScale)},
	})
	require.Error(t, err)
	assert.True(t, kernelerr.Is(err, kernelerr.CodeFlexStepSizeViolation))

	// Off-by-one-minor-unit, breaks zero-sum, rejected.
	_, err = f.AdjustAllocation(ctx, "budget-1", "cmd-adj-3", "actor-0", []Adjustment{
		{ItemID: "X", Change: money.New(-2500000, MoneyScale)},
		{ItemID: "Y", Change: money.New(2500001, MoneyScale)},
	})
	require.Error(t, err)
	assert.True(t, kernelerr.Is(err, kernelerr.CodeBudgetBalanceViolation))
}

// Scenario 5 (spec §8): the same command_id applied twice yields exactly
// one ExpenditureApproved event.
func TestFacade_IdempotentApproveExpenditure(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	items := map[string]BudgetItem{
		"X": {ItemID: "X", Name: "X", Allocated: money.New(50000000, MoneyScale), Spent: money.Zero(MoneyScale), FlexClass: FlexClassCritical},
	}
	_, err := f.CreateBudget(ctx, "budget-1", "cmd-budget", "actor-0", "law-1", 2026, items, money.New(50000000, MoneyScale))
	require.NoError(t, err)
	_, err = f.ActivateBudget(ctx, "budget-1", "cmd-activate", "actor-0")
	require.NoError(t, err)

	first, err := f.ApproveExpenditure(ctx, "budget-1", "cmd-spend", "actor-0", "X", money.New(5000000, MoneyScale))
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := f.ApproveExpenditure(ctx, "budget-1", "cmd-spend", "actor-0", "X", money.New(5000000, MoneyScale))
	require.NoError(t, err)
	assert.Empty(t, second)

	b, ok := f.Projections().Budgets.Get("budget-1")
	require.True(t, ok)
	assert.Equal(t, int64(5000000), b.Items["X"].Spent.Minor)
}

// Scenario 6 (spec §8): 2,100 delegations into one actor trips the
// concentration halt.
func TestFacade_ConcentrationHalt(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err := f.CreateWorkspace(ctx, "ws-1", "cmd-ws", "actor-0", "alpha", "", nil)
	require.NoError(t, err)

	for i := 0; i < 2100; i++ {
		from := "actor-" + strconv.Itoa(i+1)
		_, err := f.DelegateDecisionRight(ctx, "deleg-"+strconv.Itoa(i), "ws-1", "cmd-"+strconv.Itoa(i), "actor-0", from, "target", 30, VisibilityPrivate)
		require.NoError(t, err)
	}

	appended, err := f.RunTick(ctx)
	require.NoError(t, err)

	var sawHalt, sawEscalated bool
	for _, ev := range appended {
		if ev.EventType == EventDelegationConcentrationHalt {
			sawHalt = true
		}
		if ev.EventType == EventTransparencyEscalated {
			sawEscalated = true
		}
	}
	assert.True(t, sawHalt)
	assert.True(t, sawEscalated)

	_, err = f.DelegateDecisionRight(ctx, "deleg-final", "ws-1", "cmd-final", "actor-0", "actor-final", "target", 30, VisibilityPrivate)
	require.Error(t, err)
	assert.True(t, kernelerr.Is(err, kernelerr.CodeConcentrationHalted))
}

// Spec §7: a CommandAlreadyApplied error surfaced by Log.Append itself
// (not just the log's own pre-check short-circuit) must be coerced to
// success by execute(), not propagated as a hard failure.
func TestFacade_ExecuteCoercesCommandAlreadyAppliedToSuccess(t *testing.T) {
	ctx := context.Background()
	c := clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	log := &alreadyAppliedOnceLog{Log: eventlog.NewMemoryLog(c)}
	f, err := NewFacade(ctx, log, c, policy.Default())
	require.NoError(t, err)

	log.armed = true
	events, err := f.CreateWorkspace(ctx, "ws-1", "cmd-ws", "actor-0", "alpha", "", nil)
	require.NoError(t, err)
	assert.Empty(t, events)
}

// Same coercion, exercised through RunTick's per-batch append loop: one
// batch racing to CommandAlreadyApplied must not abort the remaining
// batches in the same tick.
func TestFacade_RunTickCoercesCommandAlreadyAppliedToSuccess(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewVirtual(t0)
	log := &alreadyAppliedOnceLog{Log: eventlog.NewMemoryLog(c)}
	f, err := NewFacade(ctx, log, c, policy.Default())
	require.NoError(t, err)

	_, err = f.CreateWorkspace(ctx, "ws-1", "cmd-ws", "actor-0", "alpha", "", nil)
	require.NoError(t, err)
	_, err = f.DelegateDecisionRight(ctx, "deleg-1", "ws-1", "cmd-1", "actor-0", "A", "B", 30, VisibilityPrivate)
	require.NoError(t, err)

	c.Set(t0.AddDate(0, 0, 31))
	log.armed = true
	appended, err := f.RunTick(ctx)
	require.NoError(t, err)
	assert.Empty(t, appended)
}

