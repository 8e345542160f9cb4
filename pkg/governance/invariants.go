package governance

import (
	"sort"
	"time"

	"github.com/latticework/govkernel/pkg/kernelerr"
	"github.com/latticework/govkernel/pkg/money"
	"github.com/latticework/govkernel/pkg/policy"
)

// CheckTTL enforces the delegation TTL bound.
func CheckTTL(ttlDays int, pol policy.Policy) error {
	if ttlDays < 1 || ttlDays > pol.MaxDelegationTTLDays {
		return kernelerr.New(kernelerr.CodeTTLExceedsMaximum,
			"ttl_days must be within [1, max_delegation_ttl_days]")
	}
	return nil
}

// edgeSet is the minimal shape CheckAcyclicity needs from a delegation
// graph projection: the active from->[]to adjacency.
type edgeSet interface {
	ActiveEdgesFrom(actorID string) []string
}

// CheckAcyclicity fails if adding edge u->v would create a path v⇝u in
// the existing active-edge subgraph, via DFS from v.
func CheckAcyclicity(edges edgeSet, u, v string) error {
	if u == v {
		return kernelerr.New(kernelerr.CodeDelegationCycleDetected, "self-delegation is a trivial cycle")
	}
	visited := map[string]bool{v: true}
	stack := []string{v}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if cur == u {
			return kernelerr.New(kernelerr.CodeDelegationCycleDetected,
				"proposed edge would close a cycle in the delegation graph")
		}
		for _, next := range edges.ActiveEdgesFrom(cur) {
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return nil
}

// CheckCheckpoints enforces strictly positive, strictly increasing,
// non-empty checkpoint schedules, and (per the resolved open question in
// spec §9) requires the first checkpoint at or before
// IrreversibleMaxFirstCheckpointDays when reversibility is IRREVERSIBLE.
func CheckCheckpoints(checkpoints []int, reversibility Reversibility, pol policy.Policy) error {
	if len(checkpoints) == 0 {
		return kernelerr.New(kernelerr.CodeCheckpointScheduleInvalid, "checkpoints must be non-empty")
	}
	prev := 0
	for _, c := range checkpoints {
		if c <= 0 {
			return kernelerr.New(kernelerr.CodeCheckpointScheduleInvalid, "checkpoints must be strictly positive")
		}
		if c <= prev {
			return kernelerr.New(kernelerr.CodeCheckpointScheduleInvalid, "checkpoints must be strictly increasing")
		}
		prev = c
	}
	if reversibility == ReversibilityIrreversible && checkpoints[0] > pol.IrreversibleMaxFirstCheckpointDays {
		return kernelerr.New(kernelerr.CodeCheckpointScheduleInvalid,
			"irreversible laws must schedule their first checkpoint within the policy limit")
	}
	return nil
}

// lawTransitions is the exhaustive table of legal LawStatus transitions.
var lawTransitions = map[LawStatus]map[LawStatus]bool{
	LawStatusDraft:    {LawStatusActive: true},
	LawStatusActive:   {LawStatusReview: true},
	LawStatusReview:   {LawStatusActive: true, LawStatusSunset: true},
	LawStatusSunset:   {LawStatusArchived: true},
	LawStatusArchived: {},
}

// CheckLawTransition enforces the law lifecycle state machine exactly.
func CheckLawTransition(from, to LawStatus) error {
	allowed, ok := lawTransitions[from]
	if !ok || !allowed[to] {
		return kernelerr.New(kernelerr.CodeIllegalStatusTransition,
			"illegal law status transition "+string(from)+" -> "+string(to))
	}
	return nil
}

// CheckFlexStepSize enforces |change| / allocated <= class ceiling. A
// zero-allocation item can never be adjusted (division by zero is not
// permitted per spec §4.3).
func CheckFlexStepSize(item BudgetItem, change money.Amount, pol policy.Policy) error {
	if item.Allocated.IsZero() {
		return kernelerr.New(kernelerr.CodeFlexStepSizeViolation,
			"cannot adjust an item with zero allocation")
	}
	ceiling, err := pol.FlexCeiling(string(item.FlexClass))
	if err != nil {
		return kernelerr.Wrap(kernelerr.CodeFlexStepSizeViolation, "resolve flex ceiling", err)
	}
	exceeds, err := money.RatioExceeds(change, item.Allocated, ceiling)
	if err != nil {
		return kernelerr.Wrap(kernelerr.CodeFlexStepSizeViolation, "compute flex ratio", err)
	}
	if exceeds {
		return kernelerr.New(kernelerr.CodeFlexStepSizeViolation,
			"adjustment exceeds the flex ceiling for "+string(item.FlexClass))
	}
	return nil
}

// CheckZeroSum enforces that a batch of adjustments sums to exactly zero.
func CheckZeroSum(adjustments []Adjustment, scale int) error {
	total := money.Zero(scale)
	for _, adj := range adjustments {
		var err error
		total, err = total.Add(adj.Change)
		if err != nil {
			return kernelerr.Wrap(kernelerr.CodeBudgetBalanceViolation, "sum adjustments", err)
		}
	}
	if !total.IsZero() {
		return kernelerr.New(kernelerr.CodeBudgetBalanceViolation, "adjustments must sum to zero")
	}
	return nil
}

// CheckAllocationFloor enforces allocated+change >= spent for a single
// adjusted item.
func CheckAllocationFloor(item BudgetItem, change money.Amount) error {
	newAllocated, err := item.Allocated.Add(change)
	if err != nil {
		return kernelerr.Wrap(kernelerr.CodeAllocationBelowSpending, "apply change", err)
	}
	if newAllocated.Cmp(item.Spent) < 0 {
		return kernelerr.New(kernelerr.CodeAllocationBelowSpending,
			"allocation cannot fall below already-spent amount")
	}
	return nil
}

// CheckBudgetTotalPreserved enforces that the sum of allocated amounts
// across all items still equals budget_total after an adjustment batch.
func CheckBudgetTotalPreserved(items map[string]BudgetItem, budgetTotal money.Amount) error {
	amounts := make([]money.Amount, 0, len(items))
	for _, item := range items {
		amounts = append(amounts, item.Allocated)
	}
	sum, err := money.Sum(amounts)
	if err != nil {
		return kernelerr.Wrap(kernelerr.CodeBudgetBalanceViolation, "sum allocations", err)
	}
	if sum.Cmp(budgetTotal) != 0 {
		return kernelerr.New(kernelerr.CodeBudgetBalanceViolation, "sum of allocations must equal budget_total")
	}
	return nil
}

// sortedActorInDegree returns per-actor in-degree counts in ascending
// value order, the shape Gini needs.
func sortedActorInDegree(inDegree map[string]int) []float64 {
	values := make([]float64, 0, len(inDegree))
	for _, v := range inDegree {
		values = append(values, float64(v))
	}
	sort.Float64s(values)
	return values
}

// Gini computes the Gini coefficient of a non-negative distribution,
// G = (2*sum(i*x_i)) / (n*sum(x_i)) - (n+1)/n, on values sorted
// ascending. Returns 0 for an empty distribution or a zero-sum
// distribution, matching spec §4.6/§8.
func Gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum, weighted float64
	for i, x := range sorted {
		sum += x
		weighted += float64(i+1) * x
	}
	if sum == 0 {
		return 0
	}
	g := (2*weighted)/(float64(n)*sum) - float64(n+1)/float64(n)
	if g < 0 {
		g = 0
	}
	if g > 1 {
		g = 1
	}
	return g
}

// GiniOfInDegree is a convenience wrapper computing Gini directly over a
// per-actor in-degree map.
func GiniOfInDegree(inDegree map[string]int) float64 {
	return Gini(sortedActorInDegree(inDegree))
}

// ExpiresWithinTTL is a defensive re-check that expires_at - created_at
// never exceeds the policy TTL bound (the universal invariant in spec
// §8). No handler, tick rule or test in this module calls it.
func ExpiresWithinTTL(d Delegation, pol policy.Policy) bool {
	maxDuration := time.Duration(pol.MaxDelegationTTLDays) * 24 * time.Hour
	return !d.ExpiresAt.After(d.CreatedAt.Add(maxDuration))
}
