package governance

import (
	"context"

	"github.com/latticework/govkernel/pkg/eventlog"
	"github.com/latticework/govkernel/pkg/kernelerr"
	"github.com/latticework/govkernel/pkg/money"
)

// The methods below are the façade's public command surface (spec §6):
// each carries a caller-generated stream id, a command_id for
// idempotency, and an actor_id for attribution, and returns the
// resulting events (empty if the command_id was already applied).

func (f *Facade) CreateWorkspace(ctx context.Context, workspaceID, commandID, actorID, name, parentWorkspaceID string, scope map[string]string) ([]eventlog.Event, error) {
	return f.execute(ctx, func(p *Projections) (string, eventlog.StreamType, []eventlog.NewEvent, error) {
		events, err := CreateWorkspace(workspaceID, commandID, actorID, name, parentWorkspaceID, scope)
		return workspaceID, eventlog.StreamWorkspace, events, err
	})
}

func (f *Facade) ArchiveWorkspace(ctx context.Context, workspaceID, commandID, actorID string) ([]eventlog.Event, error) {
	return f.execute(ctx, func(p *Projections) (string, eventlog.StreamType, []eventlog.NewEvent, error) {
		ws, ok := p.Workspaces.Get(workspaceID)
		if !ok {
			return workspaceID, eventlog.StreamWorkspace, nil, kernelerr.New(kernelerr.CodeUnknownAggregate, "workspace not found: "+workspaceID)
		}
		events, err := ArchiveWorkspace(ws, commandID, actorID)
		return workspaceID, eventlog.StreamWorkspace, events, err
	})
}

func (f *Facade) DelegateDecisionRight(ctx context.Context, delegationID, workspaceID, commandID, actorID, fromActor, toActor string, ttlDays int, visibility Visibility) ([]eventlog.Event, error) {
	return f.execute(ctx, func(p *Projections) (string, eventlog.StreamType, []eventlog.NewEvent, error) {
		ws, ok := p.Workspaces.Get(workspaceID)
		if !ok {
			return delegationID, eventlog.StreamDelegation, nil, kernelerr.New(kernelerr.CodeUnknownAggregate, "workspace not found: "+workspaceID)
		}
		events, err := DelegateDecisionRight(ws, p.Delegations, commandID, actorID, fromActor, toActor, ttlDays, visibility, f.clock.Now(), f.policy)
		return delegationID, eventlog.StreamDelegation, events, err
	})
}

func (f *Facade) RevokeDelegation(ctx context.Context, delegationID, commandID, actorID string) ([]eventlog.Event, error) {
	return f.execute(ctx, func(p *Projections) (string, eventlog.StreamType, []eventlog.NewEvent, error) {
		d, ok := p.Delegations.Get(delegationID)
		if !ok {
			return delegationID, eventlog.StreamDelegation, nil, kernelerr.New(kernelerr.CodeUnknownAggregate, "delegation not found: "+delegationID)
		}
		events, err := RevokeDelegation(d, commandID, actorID, f.clock.Now())
		return delegationID, eventlog.StreamDelegation, events, err
	})
}

func (f *Facade) CreateLaw(ctx context.Context, lawID, commandID, actorID, workspaceID, title, scope string, reversibility Reversibility, checkpoints []int, params map[string]string) ([]eventlog.Event, error) {
	return f.execute(ctx, func(p *Projections) (string, eventlog.StreamType, []eventlog.NewEvent, error) {
		events, err := CreateLaw(commandID, actorID, workspaceID, title, scope, reversibility, checkpoints, params, f.policy)
		return lawID, eventlog.StreamLaw, events, err
	})
}

func (f *Facade) ActivateLaw(ctx context.Context, lawID, commandID, actorID string) ([]eventlog.Event, error) {
	return f.execute(ctx, func(p *Projections) (string, eventlog.StreamType, []eventlog.NewEvent, error) {
		l, ok := p.Laws.Get(lawID)
		if !ok {
			return lawID, eventlog.StreamLaw, nil, kernelerr.New(kernelerr.CodeUnknownAggregate, "law not found: "+lawID)
		}
		events, err := ActivateLaw(l, commandID, actorID, f.clock.Now())
		return lawID, eventlog.StreamLaw, events, err
	})
}

func (f *Facade) CompleteReview(ctx context.Context, lawID, commandID, actorID string, outcome ReviewOutcome) ([]eventlog.Event, error) {
	return f.execute(ctx, func(p *Projections) (string, eventlog.StreamType, []eventlog.NewEvent, error) {
		l, ok := p.Laws.Get(lawID)
		if !ok {
			return lawID, eventlog.StreamLaw, nil, kernelerr.New(kernelerr.CodeUnknownAggregate, "law not found: "+lawID)
		}
		events, err := CompleteReview(l, commandID, actorID, outcome, f.clock.Now())
		return lawID, eventlog.StreamLaw, events, err
	})
}

func (f *Facade) CreateBudget(ctx context.Context, budgetID, commandID, actorID, lawID string, fiscalYear int, items map[string]BudgetItem, budgetTotal money.Amount) ([]eventlog.Event, error) {
	return f.execute(ctx, func(p *Projections) (string, eventlog.StreamType, []eventlog.NewEvent, error) {
		events, err := CreateBudget(commandID, actorID, lawID, fiscalYear, items, budgetTotal)
		return budgetID, eventlog.StreamBudget, events, err
	})
}

func (f *Facade) ActivateBudget(ctx context.Context, budgetID, commandID, actorID string) ([]eventlog.Event, error) {
	return f.execute(ctx, func(p *Projections) (string, eventlog.StreamType, []eventlog.NewEvent, error) {
		b, ok := p.Budgets.Get(budgetID)
		if !ok {
			return budgetID, eventlog.StreamBudget, nil, kernelerr.New(kernelerr.CodeUnknownAggregate, "budget not found: "+budgetID)
		}
		events, err := ActivateBudget(b, commandID, actorID)
		return budgetID, eventlog.StreamBudget, events, err
	})
}

func (f *Facade) AdjustAllocation(ctx context.Context, budgetID, commandID, actorID string, adjustments []Adjustment) ([]eventlog.Event, error) {
	return f.execute(ctx, func(p *Projections) (string, eventlog.StreamType, []eventlog.NewEvent, error) {
		b, ok := p.Budgets.Get(budgetID)
		if !ok {
			return budgetID, eventlog.StreamBudget, nil, kernelerr.New(kernelerr.CodeUnknownAggregate, "budget not found: "+budgetID)
		}
		events, err := AdjustAllocation(b, commandID, actorID, adjustments, f.policy)
		return budgetID, eventlog.StreamBudget, events, err
	})
}

func (f *Facade) ApproveExpenditure(ctx context.Context, budgetID, commandID, actorID, itemID string, amount money.Amount) ([]eventlog.Event, error) {
	return f.execute(ctx, func(p *Projections) (string, eventlog.StreamType, []eventlog.NewEvent, error) {
		b, ok := p.Budgets.Get(budgetID)
		if !ok {
			return budgetID, eventlog.StreamBudget, nil, kernelerr.New(kernelerr.CodeUnknownAggregate, "budget not found: "+budgetID)
		}
		events, err := ApproveExpenditure(b, commandID, actorID, itemID, amount)
		return budgetID, eventlog.StreamBudget, events, err
	})
}

func (f *Facade) CloseBudget(ctx context.Context, budgetID, commandID, actorID string) ([]eventlog.Event, error) {
	return f.execute(ctx, func(p *Projections) (string, eventlog.StreamType, []eventlog.NewEvent, error) {
		b, ok := p.Budgets.Get(budgetID)
		if !ok {
			return budgetID, eventlog.StreamBudget, nil, kernelerr.New(kernelerr.CodeUnknownAggregate, "budget not found: "+budgetID)
		}
		events, err := CloseBudget(b, commandID, actorID)
		return budgetID, eventlog.StreamBudget, events, err
	})
}
