package governance

import (
	"github.com/latticework/govkernel/pkg/eventlog"
	"github.com/latticework/govkernel/pkg/kernelerr"
	"github.com/latticework/govkernel/pkg/money"
	"github.com/latticework/govkernel/pkg/procurement"
)

// MoneyScale is the fixed decimal scale (minor units per major unit,
// i.e. cents) every Amount in this kernel is constructed at. A single
// canonical scale lets money.Amount.Cmp/Add reject cross-scale mistakes
// as programmer errors instead of silently rescaling.
const MoneyScale = 2

func (p *Projections) applyWorkspaceCreated(ev eventlog.Event, m map[string]interface{}) error {
	pl := asPayload(m)
	scope := pl.stringMap("scope")
	p.Workspaces.put(Workspace{
		WorkspaceID:       ev.StreamID,
		Name:              pl.str("name"),
		ParentWorkspaceID: pl.str("parent_workspace_id"),
		Scope:             scope,
		CreatedAt:         ev.OccurredAt,
	})
	return nil
}

func (p *Projections) applyWorkspaceArchived(ev eventlog.Event, m map[string]interface{}) error {
	w, ok := p.Workspaces.Get(ev.StreamID)
	if !ok {
		return kernelerr.New(kernelerr.CodeUnknownAggregate, "workspace not found: "+ev.StreamID)
	}
	at := ev.OccurredAt
	w.ArchivedAt = &at
	p.Workspaces.put(w)
	return nil
}

func (p *Projections) applyDecisionRightDelegated(ev eventlog.Event, m map[string]interface{}) error {
	pl := asPayload(m)
	d := Delegation{
		DelegationID: ev.StreamID,
		WorkspaceID:  pl.str("workspace_id"),
		FromActor:    pl.str("from_actor"),
		ToActor:      pl.str("to_actor"),
		TTLDays:      pl.intVal("ttl_days"),
		CreatedAt:    ev.OccurredAt,
		ExpiresAt:    pl.timeVal("expires_at"),
		Visibility:   Visibility(pl.str("visibility")),
	}
	p.Delegations.addEdge(d)
	return nil
}

func (p *Projections) applyDelegationRevoked(ev eventlog.Event, m map[string]interface{}) error {
	d, ok := p.Delegations.Get(ev.StreamID)
	if !ok {
		return kernelerr.New(kernelerr.CodeUnknownAggregate, "delegation not found: "+ev.StreamID)
	}
	at := ev.OccurredAt
	d.RevokedAt = &at
	p.Delegations.byID[d.DelegationID] = d
	p.Delegations.removeEdge(d)
	return nil
}

func (p *Projections) applyDelegationExpired(ev eventlog.Event, m map[string]interface{}) error {
	d, ok := p.Delegations.Get(ev.StreamID)
	if !ok {
		return kernelerr.New(kernelerr.CodeUnknownAggregate, "delegation not found: "+ev.StreamID)
	}
	at := ev.OccurredAt
	d.ExpiredAt = &at
	p.Delegations.byID[d.DelegationID] = d
	p.Delegations.removeEdge(d)
	return nil
}

func (p *Projections) applyLawCreated(ev eventlog.Event, m map[string]interface{}) error {
	pl := asPayload(m)
	var checkpoints []int
	if raw, ok := m["checkpoints"].([]interface{}); ok {
		for _, v := range raw {
			switch n := v.(type) {
			case float64:
				checkpoints = append(checkpoints, int(n))
			case int:
				checkpoints = append(checkpoints, n)
			}
		}
	}
	p.Laws.put(Law{
		LawID:         ev.StreamID,
		WorkspaceID:   pl.str("workspace_id"),
		Title:         pl.str("title"),
		Scope:         pl.str("scope"),
		Reversibility: Reversibility(pl.str("reversibility")),
		Checkpoints:   checkpoints,
		Params:        pl.stringMap("params"),
		Status:        LawStatusDraft,
		Version:       ev.Version,
	})
	return nil
}

func (p *Projections) applyLawActivated(ev eventlog.Event, m map[string]interface{}) error {
	l, ok := p.Laws.Get(ev.StreamID)
	if !ok {
		return kernelerr.New(kernelerr.CodeUnknownAggregate, "law not found: "+ev.StreamID)
	}
	pl := asPayload(m)
	l.Status = LawStatusActive
	at := ev.OccurredAt
	l.ActivatedAt = &at
	next := pl.timeVal("next_checkpoint_at")
	l.NextCheckpointAt = &next
	l.Version = ev.Version
	p.Laws.put(l)
	return nil
}

func (p *Projections) applyLawReviewTriggered(ev eventlog.Event, m map[string]interface{}) error {
	l, ok := p.Laws.Get(ev.StreamID)
	if !ok {
		return kernelerr.New(kernelerr.CodeUnknownAggregate, "law not found: "+ev.StreamID)
	}
	l.Status = LawStatusReview
	l.Version = ev.Version
	p.Laws.put(l)
	return nil
}

func (p *Projections) applyLawReviewCompleted(ev eventlog.Event, m map[string]interface{}) error {
	l, ok := p.Laws.Get(ev.StreamID)
	if !ok {
		return kernelerr.New(kernelerr.CodeUnknownAggregate, "law not found: "+ev.StreamID)
	}
	pl := asPayload(m)
	outcome := ReviewOutcome(pl.str("outcome"))
	switch outcome {
	case ReviewOutcomeContinue:
		l.Status = LawStatusActive
		l.CheckpointIndex++
		if l.CheckpointIndex < len(l.Checkpoints) {
			next := pl.timeVal("next_checkpoint_at")
			l.NextCheckpointAt = &next
		} else {
			l.NextCheckpointAt = nil
		}
	case ReviewOutcomeAdjust:
		l.Status = LawStatusActive
		l.CheckpointIndex = 0
		next := pl.timeVal("next_checkpoint_at")
		l.NextCheckpointAt = &next
	case ReviewOutcomeSunset:
		l.Status = LawStatusSunset
		l.NextCheckpointAt = nil
	}
	l.Version = ev.Version
	p.Laws.put(l)
	return nil
}

func decodeItems(raw map[string]interface{}) map[string]BudgetItem {
	items := make(map[string]BudgetItem, len(raw))
	for id, v := range raw {
		obj, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		pl := asPayload(obj)
		allocated, _ := money.Parse(pl.str("allocated_amount"), MoneyScale)
		spent, _ := money.Parse(pl.str("spent_amount"), MoneyScale)
		items[id] = BudgetItem{
			ItemID:    id,
			Name:      pl.str("name"),
			Allocated: allocated,
			Spent:     spent,
			FlexClass: FlexClass(pl.str("flex_class")),
			Category:  pl.str("category"),
		}
	}
	return items
}

func (p *Projections) applyBudgetCreated(ev eventlog.Event, m map[string]interface{}) error {
	pl := asPayload(m)
	itemsRaw, _ := m["items"].(map[string]interface{})
	total, _ := money.Parse(pl.str("budget_total"), MoneyScale)
	p.Budgets.put(Budget{
		BudgetID:    ev.StreamID,
		LawID:       pl.str("law_id"),
		FiscalYear:  pl.intVal("fiscal_year"),
		Items:       decodeItems(itemsRaw),
		BudgetTotal: total,
		Status:      BudgetStatusDraft,
		CreatedAt:   ev.OccurredAt,
		Version:     ev.Version,
	})
	return nil
}

func (p *Projections) applyBudgetActivated(ev eventlog.Event, m map[string]interface{}) error {
	b, ok := p.Budgets.Get(ev.StreamID)
	if !ok {
		return kernelerr.New(kernelerr.CodeUnknownAggregate, "budget not found: "+ev.StreamID)
	}
	b.Status = BudgetStatusActive
	at := ev.OccurredAt
	b.ActivatedAt = &at
	b.Version = ev.Version
	p.Budgets.put(b)
	return nil
}

func (p *Projections) applyAllocationAdjusted(ev eventlog.Event, m map[string]interface{}) error {
	b, ok := p.Budgets.Get(ev.StreamID)
	if !ok {
		return kernelerr.New(kernelerr.CodeUnknownAggregate, "budget not found: "+ev.StreamID)
	}
	raw, _ := m["adjustments"].([]interface{})
	for _, v := range raw {
		obj, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		pl := asPayload(obj)
		itemID := pl.str("item_id")
		change, _ := money.Parse(pl.str("change"), MoneyScale)
		item := b.Items[itemID]
		newAllocated, err := item.Allocated.Add(change)
		if err != nil {
			return kernelerr.Wrap(kernelerr.CodeBudgetBalanceViolation, "apply recorded adjustment", err)
		}
		item.Allocated = newAllocated
		b.Items[itemID] = item
	}
	b.Version = ev.Version
	p.Budgets.put(b)
	return nil
}

func (p *Projections) applyExpenditureApproved(ev eventlog.Event, m map[string]interface{}) error {
	b, ok := p.Budgets.Get(ev.StreamID)
	if !ok {
		return kernelerr.New(kernelerr.CodeUnknownAggregate, "budget not found: "+ev.StreamID)
	}
	pl := asPayload(m)
	itemID := pl.str("item_id")
	amount, _ := money.Parse(pl.str("amount"), MoneyScale)
	item := b.Items[itemID]
	newSpent, err := item.Spent.Add(amount)
	if err != nil {
		return kernelerr.Wrap(kernelerr.CodeAllocationBelowSpending, "apply approved spend", err)
	}
	item.Spent = newSpent
	b.Items[itemID] = item
	b.Version = ev.Version
	p.Budgets.put(b)

	p.Expenditures.append(ExpenditureRecord{
		BudgetID: ev.StreamID,
		ItemID:   itemID,
		Amount:   amount,
		Approved: true,
		ActorID:  ev.ActorID,
		Occurred: ev.OccurredAt,
		EventID:  ev.EventID.String(),
	})
	return nil
}

func (p *Projections) applyExpenditureRejected(ev eventlog.Event, m map[string]interface{}) error {
	pl := asPayload(m)
	amount, _ := money.Parse(pl.str("amount"), MoneyScale)
	p.Expenditures.append(ExpenditureRecord{
		BudgetID: ev.StreamID,
		ItemID:   pl.str("item_id"),
		Amount:   amount,
		Approved: false,
		Gate:     pl.str("gate"),
		ActorID:  ev.ActorID,
		Occurred: ev.OccurredAt,
		EventID:  ev.EventID.String(),
	})
	return nil
}

func (p *Projections) applyBudgetClosed(ev eventlog.Event, m map[string]interface{}) error {
	b, ok := p.Budgets.Get(ev.StreamID)
	if !ok {
		return kernelerr.New(kernelerr.CodeUnknownAggregate, "budget not found: "+ev.StreamID)
	}
	b.Status = BudgetStatusClosed
	at := ev.OccurredAt
	b.ClosedAt = &at
	b.Version = ev.Version
	p.Budgets.put(b)
	return nil
}

// applyReflex records tick-emitted reflex events into the delegation
// halt flag; the numeric payloads themselves are audit-only and are not
// otherwise materialized into projection state, matching spec §4.5's
// "FreedomHealth is computed on demand" rule.
func (p *Projections) applyReflex(ev eventlog.Event, m map[string]interface{}) error {
	switch ev.EventType {
	case EventDelegationConcentrationHalt:
		p.Delegations.haltActive = true
	}
	return nil
}

func (p *Projections) applyProcurementEvent(ev eventlog.Event, m map[string]interface{}) error {
	pl := asPayload(m)
	switch ev.EventType {
	case EventTenderCreated:
		requiredCaps := toBoolSet(pl.stringSlice("required_capabilities"))
		p.Tenders.Put(procurement.Tender{
			TenderID:             ev.StreamID,
			LawID:                pl.str("law_id"),
			Title:                pl.str("title"),
			EstimatedValue:       mustAmount(pl.str("estimated_value")),
			RequiredCapabilities: requiredCaps,
			SelectionMechanism:   procurement.SelectionMechanism(pl.str("selection_mechanism")),
			Status:               procurement.TenderStatusDraft,
			Version:              ev.Version,
		})
	case EventTenderOpened:
		t, ok := p.Tenders.Get(ev.StreamID)
		if !ok {
			return kernelerr.New(kernelerr.CodeUnknownAggregate, "tender not found: "+ev.StreamID)
		}
		t.Status = procurement.TenderStatusOpen
		t.Version = ev.Version
		p.Tenders.Put(t)
	case EventSupplierRegistered:
		p.Suppliers.Put(procurement.Supplier{
			SupplierID:        ev.StreamID,
			Name:              pl.str("name"),
			Type:              pl.str("type"),
			MaxContractValue:  mustAmount(pl.str("max_contract_value")),
			Certifications:    toBoolSet(pl.stringSlice("certifications")),
			YearsInBusiness:   pl.intVal("years_in_business"),
			ReputationScore:   floatOf(m["reputation_score"]),
			TotalValueAwarded: money.Zero(MoneyScale),
		})
	case EventTenderAwarded:
		t, ok := p.Tenders.Get(ev.StreamID)
		if !ok {
			return kernelerr.New(kernelerr.CodeUnknownAggregate, "tender not found: "+ev.StreamID)
		}
		at := ev.OccurredAt
		t.Status = procurement.TenderStatusAwarded
		t.AwardedSupplierID = pl.str("supplier_id")
		t.AwardedAt = &at
		t.Seed = pl.str("seed")
		t.FeasibleSet = pl.stringSlice("feasible_set")
		t.Version = ev.Version
		p.Tenders.Put(t)
	case EventSupplierAwardRecorded:
		s, ok := p.Suppliers.Get(pl.str("supplier_id"))
		if !ok {
			return kernelerr.New(kernelerr.CodeUnknownAggregate, "supplier not found: "+pl.str("supplier_id"))
		}
		value := mustAmount(pl.str("value"))
		newTotal, err := s.TotalValueAwarded.Add(value)
		if err != nil {
			return kernelerr.Wrap(kernelerr.CodeBudgetBalanceViolation, "record award", err)
		}
		s.TotalValueAwarded = newTotal
		p.Suppliers.Put(s)
		p.Contracts.Put(procurement.Contract{
			ContractID: ev.EventID.String(),
			TenderID:   pl.str("tender_id"),
			SupplierID: s.SupplierID,
			Value:      value,
			AwardedAt:  ev.OccurredAt,
		})
	case EventTenderClosed:
		t, ok := p.Tenders.Get(ev.StreamID)
		if !ok {
			return kernelerr.New(kernelerr.CodeUnknownAggregate, "tender not found: "+ev.StreamID)
		}
		t.Status = procurement.TenderStatusClosed
		t.Version = ev.Version
		p.Tenders.Put(t)
	}
	return nil
}

func toBoolSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

func mustAmount(s string) money.Amount {
	a, err := money.Parse(s, MoneyScale)
	if err != nil {
		return money.Zero(MoneyScale)
	}
	return a
}

func floatOf(v interface{}) float64 {
	switch f := v.(type) {
	case float64:
		return f
	case int:
		return float64(f)
	default:
		return 0
	}
}
