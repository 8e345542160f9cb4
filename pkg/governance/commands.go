package governance

import (
	"time"

	"github.com/latticework/govkernel/pkg/eventlog"
	"github.com/latticework/govkernel/pkg/kernelerr"
	"github.com/latticework/govkernel/pkg/money"
	"github.com/latticework/govkernel/pkg/policy"
)

// Handlers are deterministic pure functions of (command, command_id,
// actor_id, projections, time, policy) -> events, per spec §4.4. None
// of them touch the log directly; the façade owns append.

// CreateWorkspace guards on a non-empty name.
func CreateWorkspace(streamID, commandID, actorID, name, parentWorkspaceID string, scope map[string]string) ([]eventlog.NewEvent, error) {
	if name == "" {
		return nil, kernelerr.New(kernelerr.CodeInvalidCommand, "workspace name must be non-empty")
	}
	scopeAny := make(map[string]interface{}, len(scope))
	for k, v := range scope {
		scopeAny[k] = v
	}
	return []eventlog.NewEvent{{
		CommandID: commandID,
		EventType: EventWorkspaceCreated,
		ActorID:   actorID,
		Payload: map[string]interface{}{
			"name":                name,
			"parent_workspace_id": parentWorkspaceID,
			"scope":               scopeAny,
		},
	}}, nil
}

// ArchiveWorkspace guards on not-already-archived.
func ArchiveWorkspace(ws Workspace, commandID, actorID string) ([]eventlog.NewEvent, error) {
	if ws.Archived() {
		return nil, kernelerr.New(kernelerr.CodeIllegalStatusTransition, "workspace already archived")
	}
	return []eventlog.NewEvent{{
		CommandID: commandID,
		EventType: EventWorkspaceArchived,
		ActorID:   actorID,
		Payload:   map[string]interface{}{},
	}}, nil
}

// DelegateDecisionRight guards TTL bound, acyclicity, workspace
// existence/activeness, from != to, and the concentration-halt gate
// named in spec §4.6.
func DelegateDecisionRight(ws Workspace, graph *DelegationGraph, commandID, actorID, fromActor, toActor string, ttlDays int, visibility Visibility, now time.Time, pol policy.Policy) ([]eventlog.NewEvent, error) {
	if ws.Archived() {
		return nil, kernelerr.New(kernelerr.CodeInvalidCommand, "cannot delegate within an archived workspace")
	}
	if fromActor == toActor {
		return nil, kernelerr.New(kernelerr.CodeDelegationCycleDetected, "from_actor and to_actor must differ")
	}
	if err := CheckTTL(ttlDays, pol); err != nil {
		return nil, err
	}
	if err := CheckAcyclicity(graph, fromActor, toActor); err != nil {
		return nil, err
	}
	if graph.HaltActive() && graph.InDegree(toActor) >= pol.DelegationInDegreeHalt {
		return nil, kernelerr.New(kernelerr.CodeConcentrationHalted,
			"target actor is at or above the in-degree halt threshold while concentration halt is active")
	}
	projectedInDegree := graph.InDegreeSnapshot(now)
	projectedInDegree[toActor]++
	if GiniOfInDegree(projectedInDegree) > pol.DelegationGiniHalt {
		return nil, kernelerr.New(kernelerr.CodeConcentrationHalted,
			"delegation would push system-wide delegation Gini above the halt threshold")
	}
	if visibility == "" {
		visibility = VisibilityPrivate
	}
	expiresAt := now.Add(time.Duration(ttlDays) * 24 * time.Hour)
	return []eventlog.NewEvent{{
		CommandID: commandID,
		EventType: EventDecisionRightDelegated,
		ActorID:   actorID,
		Payload: map[string]interface{}{
			"workspace_id": ws.WorkspaceID,
			"from_actor":   fromActor,
			"to_actor":     toActor,
			"ttl_days":     ttlDays,
			"expires_at":   timeStr(expiresAt),
			"visibility":   string(visibility),
		},
	}}, nil
}

// RevokeDelegation guards existence and activeness.
func RevokeDelegation(d Delegation, commandID, actorID string, now time.Time) ([]eventlog.NewEvent, error) {
	if !d.Active(now) {
		return nil, kernelerr.New(kernelerr.CodeIllegalStatusTransition, "delegation is not active")
	}
	return []eventlog.NewEvent{{
		CommandID: commandID,
		EventType: EventDelegationRevoked,
		ActorID:   actorID,
		Payload:   map[string]interface{}{},
	}}, nil
}

// CreateLaw guards checkpoint monotonicity and reversibility validity.
func CreateLaw(commandID, actorID, workspaceID, title, scope string, reversibility Reversibility, checkpoints []int, params map[string]string, pol policy.Policy) ([]eventlog.NewEvent, error) {
	switch reversibility {
	case ReversibilityReversible, ReversibilitySemiReversible, ReversibilityIrreversible:
	default:
		return nil, kernelerr.New(kernelerr.CodeInvalidCommand, "unknown reversibility class")
	}
	if err := CheckCheckpoints(checkpoints, reversibility, pol); err != nil {
		return nil, err
	}
	checkpointsAny := make([]interface{}, len(checkpoints))
	for i, c := range checkpoints {
		checkpointsAny[i] = c
	}
	paramsAny := make(map[string]interface{}, len(params))
	for k, v := range params {
		paramsAny[k] = v
	}
	return []eventlog.NewEvent{{
		CommandID: commandID,
		EventType: EventLawCreated,
		ActorID:   actorID,
		Payload: map[string]interface{}{
			"workspace_id":  workspaceID,
			"title":         title,
			"scope":         scope,
			"reversibility": string(reversibility),
			"checkpoints":   checkpointsAny,
			"params":        paramsAny,
		},
	}}, nil
}

// ActivateLaw guards status=DRAFT.
func ActivateLaw(l Law, commandID, actorID string, now time.Time) ([]eventlog.NewEvent, error) {
	if err := CheckLawTransition(l.Status, LawStatusActive); err != nil {
		return nil, err
	}
	next := now.AddDate(0, 0, l.Checkpoints[0])
	return []eventlog.NewEvent{{
		CommandID: commandID,
		EventType: EventLawActivated,
		ActorID:   actorID,
		Payload: map[string]interface{}{
			"next_checkpoint_at": timeStr(next),
		},
	}}, nil
}

// CompleteReview guards status=REVIEW and dispatches on outcome.
func CompleteReview(l Law, commandID, actorID string, outcome ReviewOutcome, now time.Time) ([]eventlog.NewEvent, error) {
	if l.Status != LawStatusReview {
		return nil, kernelerr.New(kernelerr.CodeIllegalStatusTransition, "law is not in REVIEW")
	}
	payload := map[string]interface{}{"outcome": string(outcome)}
	switch outcome {
	case ReviewOutcomeContinue:
		nextIndex := l.CheckpointIndex + 1
		if nextIndex < len(l.Checkpoints) {
			payload["next_checkpoint_at"] = timeStr(now.AddDate(0, 0, l.Checkpoints[nextIndex]))
		}
	case ReviewOutcomeAdjust:
		payload["next_checkpoint_at"] = timeStr(now.AddDate(0, 0, l.Checkpoints[0]))
	case ReviewOutcomeSunset:
	default:
		return nil, kernelerr.New(kernelerr.CodeInvalidCommand, "unknown review outcome")
	}
	return []eventlog.NewEvent{{
		CommandID: commandID,
		EventType: EventLawReviewCompleted,
		ActorID:   actorID,
		Payload:   payload,
	}}, nil
}

// CreateBudget guards non-empty items, non-negative allocations, and
// budget_total = sum(allocated).
func CreateBudget(commandID, actorID, lawID string, fiscalYear int, items map[string]BudgetItem, budgetTotal money.Amount) ([]eventlog.NewEvent, error) {
	if len(items) == 0 {
		return nil, kernelerr.New(kernelerr.CodeInvalidCommand, "budget must have at least one item")
	}
	amounts := make([]money.Amount, 0, len(items))
	for _, item := range items {
		if item.Allocated.IsNegative() {
			return nil, kernelerr.New(kernelerr.CodeInvalidCommand, "allocated_amount must be non-negative")
		}
		amounts = append(amounts, item.Allocated)
	}
	sum, err := money.Sum(amounts)
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.CodeBudgetBalanceViolation, "sum item allocations", err)
	}
	if sum.Cmp(budgetTotal) != 0 {
		return nil, kernelerr.New(kernelerr.CodeBudgetBalanceViolation, "budget_total must equal sum of item allocations")
	}

	itemsAny := make(map[string]interface{}, len(items))
	for id, item := range items {
		itemsAny[id] = map[string]interface{}{
			"name":             item.Name,
			"allocated_amount": item.Allocated.String(),
			"spent_amount":     item.Spent.String(),
			"flex_class":       string(item.FlexClass),
			"category":         item.Category,
		}
	}
	return []eventlog.NewEvent{{
		CommandID: commandID,
		EventType: EventBudgetCreated,
		ActorID:   actorID,
		Payload: map[string]interface{}{
			"law_id":       lawID,
			"fiscal_year":  fiscalYear,
			"items":        itemsAny,
			"budget_total": budgetTotal.String(),
		},
	}}, nil
}

// ActivateBudget guards status=DRAFT.
func ActivateBudget(b Budget, commandID, actorID string) ([]eventlog.NewEvent, error) {
	if b.Status != BudgetStatusDraft {
		return nil, kernelerr.New(kernelerr.CodeIllegalStatusTransition, "budget is not in DRAFT")
	}
	return []eventlog.NewEvent{{
		CommandID: commandID,
		EventType: EventBudgetActivated,
		ActorID:   actorID,
		Payload:   map[string]interface{}{},
	}}, nil
}

// AdjustAllocation guards flex step-size per item, zero-sum across the
// batch, allocation floor per item, budget_total preservation, and
// status=ACTIVE.
func AdjustAllocation(b Budget, commandID, actorID string, adjustments []Adjustment, pol policy.Policy) ([]eventlog.NewEvent, error) {
	if b.Status != BudgetStatusActive {
		return nil, kernelerr.New(kernelerr.CodeIllegalStatusTransition, "budget is not ACTIVE")
	}
	if err := CheckZeroSum(adjustments, MoneyScale); err != nil {
		return nil, err
	}

	proposed := make(map[string]BudgetItem, len(b.Items))
	for id, item := range b.Items {
		proposed[id] = item
	}
	for _, adj := range adjustments {
		item, ok := proposed[adj.ItemID]
		if !ok {
			return nil, kernelerr.New(kernelerr.CodeUnknownAggregate, "unknown budget item: "+adj.ItemID)
		}
		if err := CheckFlexStepSize(item, adj.Change, pol); err != nil {
			return nil, err
		}
		if err := CheckAllocationFloor(item, adj.Change); err != nil {
			return nil, err
		}
		newAllocated, err := item.Allocated.Add(adj.Change)
		if err != nil {
			return nil, kernelerr.Wrap(kernelerr.CodeBudgetBalanceViolation, "apply adjustment", err)
		}
		item.Allocated = newAllocated
		proposed[adj.ItemID] = item
	}
	if err := CheckBudgetTotalPreserved(proposed, b.BudgetTotal); err != nil {
		return nil, err
	}

	adjustmentsAny := make([]interface{}, len(adjustments))
	for i, adj := range adjustments {
		adjustmentsAny[i] = map[string]interface{}{
			"item_id": adj.ItemID,
			"change":  adj.Change.String(),
		}
	}
	return []eventlog.NewEvent{{
		CommandID: commandID,
		EventType: EventAllocationAdjusted,
		ActorID:   actorID,
		Payload: map[string]interface{}{
			"adjustments": adjustmentsAny,
		},
	}}, nil
}

// ApproveExpenditure guards item existence, amount <= allocated-spent,
// and status=ACTIVE. A failed gate produces ExpenditureRejected rather
// than an error, matching spec §4.4's handler mapping.
func ApproveExpenditure(b Budget, commandID, actorID, itemID string, amount money.Amount) ([]eventlog.NewEvent, error) {
	reject := func(gate string) []eventlog.NewEvent {
		return []eventlog.NewEvent{{
			CommandID: commandID,
			EventType: EventExpenditureRejected,
			ActorID:   actorID,
			Payload: map[string]interface{}{
				"item_id": itemID,
				"amount":  amount.String(),
				"gate":    gate,
			},
		}}
	}

	item, ok := b.Items[itemID]
	if !ok {
		return reject("item_not_found"), nil
	}
	if b.Status != BudgetStatusActive {
		return reject("budget_not_active"), nil
	}
	remaining, err := item.Allocated.Sub(item.Spent)
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.CodeAllocationBelowSpending, "compute remaining", err)
	}
	if amount.Cmp(remaining) > 0 {
		return reject("exceeds_remaining_allocation"), nil
	}

	return []eventlog.NewEvent{{
		CommandID: commandID,
		EventType: EventExpenditureApproved,
		ActorID:   actorID,
		Payload: map[string]interface{}{
			"item_id": itemID,
			"amount":  amount.String(),
		},
	}}, nil
}

// CloseBudget guards status=ACTIVE.
func CloseBudget(b Budget, commandID, actorID string) ([]eventlog.NewEvent, error) {
	if b.Status != BudgetStatusActive {
		return nil, kernelerr.New(kernelerr.CodeIllegalStatusTransition, "budget is not ACTIVE")
	}
	return []eventlog.NewEvent{{
		CommandID: commandID,
		EventType: EventBudgetClosed,
		ActorID:   actorID,
		Payload:   map[string]interface{}{},
	}}, nil
}
