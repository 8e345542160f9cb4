package governance

import (
	"strconv"
	"time"

	"github.com/latticework/govkernel/pkg/eventlog"
	"github.com/latticework/govkernel/pkg/policy"
)

// Synthetic stream ids the tick engine appends system-wide reflex
// events under, per spec §4.6. Per-aggregate reflex events (expiry,
// checkpoint overrun) append to the aggregate's own stream instead,
// since they mutate that aggregate's lifecycle state.
const (
	streamDelegationGini = "system:delegation_gini"
	streamBudgetAudit    = "system:budget_audit"
	streamSupplierGini   = "system:supplier_gini"
)

// TickBatch is one stream's worth of reflex events, ready for the
// façade to append at that stream's current version.
type TickBatch struct {
	StreamID   string
	StreamType eventlog.StreamType
	Events     []eventlog.NewEvent
}

// Tick evaluates the fixed ordered rule set against the current
// projection snapshot and returns the reflex event batches to append,
// grouped by stream since each Log.Append call is scoped to one stream.
// Tick never mutates p itself; the façade applies the returned batches
// through the same append -> project path as any command, so tick's
// effects are replay-identical to a live run.
//
// Rules that mutate the active set (expiry) run before rules that read
// it (concentration), per spec §9's reflex-ordering note. Every emitted
// event's CommandID is deterministic in (stream, rule, target, now), so
// running Tick twice at the same now with no interleaving commands
// yields command ids the log has already applied and nothing new is
// appended — satisfying the idempotence property in spec §8.
func Tick(now time.Time, p *Projections, pol policy.Policy) []TickBatch {
	var batches []TickBatch

	batches = append(batches, tickDelegationExpiry(now, p)...)
	batches = append(batches, tickLawCheckpointOverrun(now, p)...)
	if b := tickDelegationConcentration(now, p, pol); b != nil {
		batches = append(batches, *b)
	}
	batches = append(batches, tickBudgetBalanceAudit(now, p)...)
	batches = append(batches, tickOverspendAudit(now, p)...)
	if b := tickSupplierConcentration(now, p, pol); b != nil {
		batches = append(batches, *b)
	}

	return batches
}

func tickCommandID(streamID, ruleTag string, now time.Time) string {
	return "tick:" + streamID + ":" + ruleTag + ":" + strconv.FormatInt(now.UnixNano(), 10)
}

// tickDelegationExpiry emits DelegationExpired, one batch per expired
// delegation's own stream. Rule 1.
func tickDelegationExpiry(now time.Time, p *Projections) []TickBatch {
	var batches []TickBatch
	for _, d := range delegationsSortedByID(p.Delegations) {
		if d.RevokedAt == nil && d.ExpiredAt == nil && d.ExpiresAt.Before(now) {
			batches = append(batches, TickBatch{
				StreamID:   d.DelegationID,
				StreamType: eventlog.StreamDelegation,
				Events: []eventlog.NewEvent{{
					CommandID: tickCommandID(d.DelegationID, "expired", now),
					EventType: EventDelegationExpired,
					Payload:   map[string]interface{}{"delegation_id": d.DelegationID},
				}},
			})
		}
	}
	return batches
}

func delegationsSortedByID(g *DelegationGraph) []Delegation {
	out := make([]Delegation, 0, len(g.byID))
	for _, d := range g.byID {
		out = append(out, d)
	}
	sortDelegationsByID(out)
	return out
}

func sortDelegationsByID(d []Delegation) {
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && d[j].DelegationID < d[j-1].DelegationID; j-- {
			d[j], d[j-1] = d[j-1], d[j]
		}
	}
}

// tickLawCheckpointOverrun emits LawReviewTriggered, one batch per
// overdue law's own stream. Rule 2.
func tickLawCheckpointOverrun(now time.Time, p *Projections) []TickBatch {
	var batches []TickBatch
	for _, l := range p.Laws.ListOverdue(now) {
		batches = append(batches, TickBatch{
			StreamID:   l.LawID,
			StreamType: eventlog.StreamLaw,
			Events: []eventlog.NewEvent{{
				CommandID: tickCommandID(l.LawID, "review_triggered", now),
				EventType: EventLawReviewTriggered,
				Payload:   map[string]interface{}{"law_id": l.LawID},
			}},
		})
	}
	return batches
}

// tickDelegationConcentration computes the Gini coefficient and max
// in-degree over active delegation edges and emits warning/halt events
// under the synthetic system:delegation_gini stream. Rule 3.
func tickDelegationConcentration(now time.Time, p *Projections, pol policy.Policy) *TickBatch {
	inDegree := p.Delegations.InDegreeSnapshot(now)
	gini := GiniOfInDegree(inDegree)
	maxIn := p.Delegations.MaxInDegree(now)

	halted := gini >= pol.DelegationGiniHalt || maxIn >= pol.DelegationInDegreeHalt
	warned := gini >= pol.DelegationGiniWarn || maxIn >= pol.DelegationInDegreeWarn

	var events []eventlog.NewEvent
	if halted {
		events = append(events,
			eventlog.NewEvent{
				CommandID: tickCommandID(streamDelegationGini, "halt", now),
				EventType: EventDelegationConcentrationHalt,
				Payload:   map[string]interface{}{"gini": gini, "max_in_degree": maxIn},
			},
			eventlog.NewEvent{
				CommandID: tickCommandID(streamDelegationGini, "escalated", now),
				EventType: EventTransparencyEscalated,
				Payload:   map[string]interface{}{"reason": "delegation_concentration_halt"},
			},
		)
	} else if warned {
		events = append(events, eventlog.NewEvent{
			CommandID: tickCommandID(streamDelegationGini, "warn", now),
			EventType: EventDelegationConcentrationWarning,
			Payload:   map[string]interface{}{"gini": gini, "max_in_degree": maxIn},
		})
	}
	if len(events) == 0 {
		return nil
	}
	return &TickBatch{StreamID: streamDelegationGini, StreamType: eventlog.StreamSystem, Events: events}
}

// tickBudgetBalanceAudit re-verifies the write-time-guarded zero-sum
// invariant under the synthetic system:budget_audit stream; a violation
// here indicates corruption or a handler bug. Rule 4.
func tickBudgetBalanceAudit(now time.Time, p *Projections) []TickBatch {
	var events []eventlog.NewEvent
	for _, b := range p.Budgets.ListByStatus(BudgetStatusActive) {
		if err := CheckBudgetTotalPreserved(b.Items, b.BudgetTotal); err != nil {
			events = append(events, eventlog.NewEvent{
				CommandID: tickCommandID(streamBudgetAudit, "balance:"+b.BudgetID, now),
				EventType: EventBudgetBalanceViolationDetected,
				Payload:   map[string]interface{}{"budget_id": b.BudgetID},
			})
		}
	}
	if len(events) == 0 {
		return nil
	}
	return []TickBatch{{StreamID: streamBudgetAudit, StreamType: eventlog.StreamSystem, Events: events}}
}

// tickOverspendAudit emits BudgetOverspendDetected for any item whose
// spent exceeds its allocation, under the synthetic system:budget_audit
// stream. Rule 5.
func tickOverspendAudit(now time.Time, p *Projections) []TickBatch {
	var events []eventlog.NewEvent
	for _, b := range p.Budgets.ListByStatus(BudgetStatusActive) {
		for _, item := range b.Items {
			if item.Spent.Cmp(item.Allocated) > 0 {
				events = append(events, eventlog.NewEvent{
					CommandID: tickCommandID(streamBudgetAudit, "overspend:"+b.BudgetID+":"+item.ItemID, now),
					EventType: EventBudgetOverspendDetected,
					Payload:   map[string]interface{}{"budget_id": b.BudgetID, "item_id": item.ItemID},
				})
			}
		}
	}
	if len(events) == 0 {
		return nil
	}
	return []TickBatch{{StreamID: streamBudgetAudit, StreamType: eventlog.StreamSystem, Events: events}}
}

// tickSupplierConcentration computes Gini over total_value_awarded
// across suppliers under the synthetic system:supplier_gini stream.
// Rule 6.
func tickSupplierConcentration(now time.Time, p *Projections, pol policy.Policy) *TickBatch {
	gini := p.Suppliers.Gini()
	var event *eventlog.NewEvent
	if gini >= pol.SupplierGiniHalt {
		event = &eventlog.NewEvent{
			CommandID: tickCommandID(streamSupplierGini, "halt", now),
			EventType: EventSupplierConcentrationHalt,
			Payload:   map[string]interface{}{"gini": gini},
		}
	} else if gini >= pol.SupplierGiniWarn {
		event = &eventlog.NewEvent{
			CommandID: tickCommandID(streamSupplierGini, "warn", now),
			EventType: EventSupplierConcentrationWarning,
			Payload:   map[string]interface{}{"gini": gini},
		}
	}
	if event == nil {
		return nil
	}
	return &TickBatch{StreamID: streamSupplierGini, StreamType: eventlog.StreamSystem, Events: []eventlog.NewEvent{*event}}
}
