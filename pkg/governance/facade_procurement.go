package governance

import (
	"context"

	"github.com/latticework/govkernel/pkg/eventlog"
	"github.com/latticework/govkernel/pkg/kernelerr"
	"github.com/latticework/govkernel/pkg/money"
	"github.com/latticework/govkernel/pkg/procurement"
)

// CreateTender registers a new DRAFT tender against a law.
func (f *Facade) CreateTender(ctx context.Context, tenderID, commandID, actorID, lawID, title string, estimatedValue money.Amount, requiredCapabilities []string, mechanism procurement.SelectionMechanism) ([]eventlog.Event, error) {
	return f.execute(ctx, func(p *Projections) (string, eventlog.StreamType, []eventlog.NewEvent, error) {
		capsAny := make([]interface{}, len(requiredCapabilities))
		for i, c := range requiredCapabilities {
			capsAny[i] = c
		}
		events := []eventlog.NewEvent{{
			CommandID: commandID,
			EventType: EventTenderCreated,
			ActorID:   actorID,
			Payload: map[string]interface{}{
				"law_id":                lawID,
				"title":                 title,
				"estimated_value":       estimatedValue.String(),
				"required_capabilities": capsAny,
				"selection_mechanism":   string(mechanism),
			},
		}}
		return tenderID, eventlog.StreamTender, events, nil
	})
}

// OpenTender guards status=DRAFT and transitions to OPEN.
func (f *Facade) OpenTender(ctx context.Context, tenderID, commandID, actorID string) ([]eventlog.Event, error) {
	return f.execute(ctx, func(p *Projections) (string, eventlog.StreamType, []eventlog.NewEvent, error) {
		t, ok := p.Tenders.Get(tenderID)
		if !ok {
			return tenderID, eventlog.StreamTender, nil, kernelerr.New(kernelerr.CodeUnknownAggregate, "tender not found: "+tenderID)
		}
		if t.Status != procurement.TenderStatusDraft {
			return tenderID, eventlog.StreamTender, nil, kernelerr.New(kernelerr.CodeIllegalStatusTransition, "tender is not in DRAFT")
		}
		return tenderID, eventlog.StreamTender, []eventlog.NewEvent{{
			CommandID: commandID,
			EventType: EventTenderOpened,
			ActorID:   actorID,
			Payload:   map[string]interface{}{},
		}}, nil
	})
}

// RegisterSupplier onboards a new supplier under its own stream.
func (f *Facade) RegisterSupplier(ctx context.Context, supplierID, commandID, actorID, name, supplierType string, maxContractValue money.Amount, certifications []string, yearsInBusiness int, reputationScore float64) ([]eventlog.Event, error) {
	return f.execute(ctx, func(p *Projections) (string, eventlog.StreamType, []eventlog.NewEvent, error) {
		certsAny := make([]interface{}, len(certifications))
		for i, c := range certifications {
			certsAny[i] = c
		}
		events := []eventlog.NewEvent{{
			CommandID: commandID,
			EventType: EventSupplierRegistered,
			ActorID:   actorID,
			Payload: map[string]interface{}{
				"name":                name,
				"type":                supplierType,
				"max_contract_value":  maxContractValue.String(),
				"certifications":      certsAny,
				"years_in_business":   yearsInBusiness,
				"reputation_score":    reputationScore,
			},
		}}
		return supplierID, eventlog.StreamSupplier, events, nil
	})
}

// AwardTender guards status=OPEN, builds the feasible set, runs the
// tender's configured selection mechanism, and records the award on
// both the tender's own stream and the winning supplier's stream. The
// two appends are sequenced under the façade's single write lock rather
// than committed as one atomic multi-stream transaction — spec §4.1
// scopes atomicity to a single Log.Append call, so a crash between the
// two appends leaves the tender stream awarded without the matching
// supplier award record. No tick rule audits tenders or suppliers, so
// nothing detects that partial state.
func (f *Facade) AwardTender(ctx context.Context, tenderID, commandID, actorID, seed string) ([]eventlog.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.proj.Tenders.Get(tenderID)
	if !ok {
		return nil, kernelerr.New(kernelerr.CodeUnknownAggregate, "tender not found: "+tenderID)
	}
	if t.Status != procurement.TenderStatusOpen {
		return nil, kernelerr.New(kernelerr.CodeIllegalStatusTransition, "tender is not OPEN")
	}

	feasible := procurement.Feasible(t, f.proj.Suppliers.All())
	winnerID, err := procurement.Select(t.SelectionMechanism, feasible, seed)
	if err != nil {
		return nil, err
	}

	feasibleIDs := make([]interface{}, len(feasible))
	for i, s := range feasible {
		feasibleIDs[i] = s.SupplierID
	}

	tenderVersion, err := f.log.StreamVersion(ctx, tenderID)
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.CodeLogUnavailable, "read tender stream version", err)
	}
	tenderAppended, err := f.log.Append(ctx, tenderID, eventlog.StreamTender, tenderVersion, []eventlog.NewEvent{{
		CommandID: commandID,
		EventType: EventTenderAwarded,
		ActorID:   actorID,
		Payload: map[string]interface{}{
			"supplier_id":  winnerID,
			"seed":         seed,
			"feasible_set": feasibleIDs,
		},
	}})
	if err != nil {
		return nil, err
	}
	for _, ev := range tenderAppended {
		if err := f.proj.Apply(ev); err != nil {
			return tenderAppended, err
		}
	}

	supplierVersion, err := f.log.StreamVersion(ctx, winnerID)
	if err != nil {
		return tenderAppended, kernelerr.Wrap(kernelerr.CodeLogUnavailable, "read supplier stream version", err)
	}
	supplierAppended, err := f.log.Append(ctx, winnerID, eventlog.StreamSupplier, supplierVersion, []eventlog.NewEvent{{
		CommandID: commandID + ":award",
		EventType: EventSupplierAwardRecorded,
		ActorID:   actorID,
		Payload: map[string]interface{}{
			"tender_id":   tenderID,
			"supplier_id": winnerID,
			"value":       t.EstimatedValue.String(),
		},
	}})
	if err != nil {
		return tenderAppended, err
	}
	for _, ev := range supplierAppended {
		if err := f.proj.Apply(ev); err != nil {
			return append(tenderAppended, supplierAppended...), err
		}
	}

	return append(tenderAppended, supplierAppended...), nil
}

// CloseTender guards status=AWARDED and transitions to CLOSED.
func (f *Facade) CloseTender(ctx context.Context, tenderID, commandID, actorID string) ([]eventlog.Event, error) {
	return f.execute(ctx, func(p *Projections) (string, eventlog.StreamType, []eventlog.NewEvent, error) {
		t, ok := p.Tenders.Get(tenderID)
		if !ok {
			return tenderID, eventlog.StreamTender, nil, kernelerr.New(kernelerr.CodeUnknownAggregate, "tender not found: "+tenderID)
		}
		if t.Status != procurement.TenderStatusAwarded {
			return tenderID, eventlog.StreamTender, nil, kernelerr.New(kernelerr.CodeIllegalStatusTransition, "tender is not AWARDED")
		}
		return tenderID, eventlog.StreamTender, []eventlog.NewEvent{{
			CommandID: commandID,
			EventType: EventTenderClosed,
			ActorID:   actorID,
			Payload:   map[string]interface{}{},
		}}, nil
	})
}
