package governance

import (
	"sort"
	"time"

	"github.com/latticework/govkernel/pkg/eventlog"
	"github.com/latticework/govkernel/pkg/kernelerr"
	"github.com/latticework/govkernel/pkg/money"
	"github.com/latticework/govkernel/pkg/policy"
	"github.com/latticework/govkernel/pkg/procurement"
)

// RiskLevel is FreedomHealth's synthesized concentration/overdue signal.
// Numeric values (0/1/2) match the external-metrics gauge encoding named
// in spec §6.
type RiskLevel int

const (
	RiskOK   RiskLevel = 0
	RiskWarn RiskLevel = 1
	RiskHalt RiskLevel = 2
)

// WorkspaceRegistry indexes workspaces by id.
type WorkspaceRegistry struct {
	byID map[string]Workspace
}

func NewWorkspaceRegistry() *WorkspaceRegistry {
	return &WorkspaceRegistry{byID: make(map[string]Workspace)}
}

func (r *WorkspaceRegistry) Get(id string) (Workspace, bool) {
	w, ok := r.byID[id]
	return w, ok
}

func (r *WorkspaceRegistry) put(w Workspace) { r.byID[w.WorkspaceID] = w }

// DelegationGraph maintains active delegation edges, per-actor in-degree,
// and the halt state consulted by the DelegateDecisionRight handler.
// Grounded on spec §4.5's DelegationGraph contract.
type DelegationGraph struct {
	byID       map[string]Delegation
	fromEdges  map[string][]string // active edges only, from -> []to
	inDegree   map[string]int      // active edges only
	haltActive bool
}

func NewDelegationGraph() *DelegationGraph {
	return &DelegationGraph{
		byID:      make(map[string]Delegation),
		fromEdges: make(map[string][]string),
		inDegree:  make(map[string]int),
	}
}

// ActiveEdgesFrom satisfies the edgeSet interface CheckAcyclicity needs.
func (g *DelegationGraph) ActiveEdgesFrom(actorID string) []string {
	return g.fromEdges[actorID]
}

func (g *DelegationGraph) InDegree(actorID string) int { return g.inDegree[actorID] }

func (g *DelegationGraph) HaltActive() bool { return g.haltActive }

func (g *DelegationGraph) Get(id string) (Delegation, bool) {
	d, ok := g.byID[id]
	return d, ok
}

// WouldCreateCycle reflects every event applied so far, per spec §4.5.
func (g *DelegationGraph) WouldCreateCycle(u, v string) bool {
	return CheckAcyclicity(g, u, v) != nil
}

func (g *DelegationGraph) addEdge(d Delegation) {
	g.byID[d.DelegationID] = d
	g.fromEdges[d.FromActor] = append(g.fromEdges[d.FromActor], d.ToActor)
	g.inDegree[d.ToActor]++
}

func (g *DelegationGraph) removeEdge(d Delegation) {
	edges := g.fromEdges[d.FromActor]
	for i, to := range edges {
		if to == d.ToActor {
			g.fromEdges[d.FromActor] = append(edges[:i], edges[i+1:]...)
			break
		}
	}
	if g.inDegree[d.ToActor] > 0 {
		g.inDegree[d.ToActor]--
	}
}

// InDegreeSnapshot recomputes the active in-degree map live against now,
// rather than trusting the incrementally-maintained g.inDegree counter,
// so a delegation whose ExpiresAt has already passed never counts even
// if its DelegationExpired event has not been applied yet (e.g. within
// the same tick, before the expiry rule's batch is appended). Grounded
// on original_source's compute_in_degrees(edges, now), which likewise
// recomputes live rather than reading a cached counter.
func (g *DelegationGraph) InDegreeSnapshot(now time.Time) map[string]int {
	out := make(map[string]int)
	for _, d := range g.byID {
		if d.Active(now) {
			out[d.ToActor]++
		}
	}
	return out
}

func (g *DelegationGraph) MaxInDegree(now time.Time) int {
	max := 0
	for _, v := range g.InDegreeSnapshot(now) {
		if v > max {
			max = v
		}
	}
	return max
}

// LawRegistry indexes laws by id and by overdue checkpoint.
type LawRegistry struct {
	byID map[string]Law
}

func NewLawRegistry() *LawRegistry { return &LawRegistry{byID: make(map[string]Law)} }

func (r *LawRegistry) Get(id string) (Law, bool) {
	l, ok := r.byID[id]
	return l, ok
}

func (r *LawRegistry) put(l Law) { r.byID[l.LawID] = l }

// ListOverdue returns ACTIVE laws whose next checkpoint has passed, in a
// stable id-sorted order for deterministic tick iteration.
func (r *LawRegistry) ListOverdue(now time.Time) []Law {
	var out []Law
	for _, l := range r.byID {
		if l.Status == LawStatusActive && l.NextCheckpointAt != nil && l.NextCheckpointAt.Before(now) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LawID < out[j].LawID })
	return out
}

func (r *LawRegistry) ListByStatus(status LawStatus) []Law {
	var out []Law
	for _, l := range r.byID {
		if l.Status == status {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LawID < out[j].LawID })
	return out
}

// BudgetRegistry indexes budgets by id and by law_id.
type BudgetRegistry struct {
	byID map[string]Budget
}

func NewBudgetRegistry() *BudgetRegistry { return &BudgetRegistry{byID: make(map[string]Budget)} }

func (r *BudgetRegistry) Get(id string) (Budget, bool) {
	b, ok := r.byID[id]
	return b, ok
}

func (r *BudgetRegistry) put(b Budget) { r.byID[b.BudgetID] = b }

func (r *BudgetRegistry) ListByLaw(lawID string) []Budget {
	var out []Budget
	for _, b := range r.byID {
		if b.LawID == lawID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BudgetID < out[j].BudgetID })
	return out
}

func (r *BudgetRegistry) ListByStatus(status BudgetStatus) []Budget {
	var out []Budget
	for _, b := range r.byID {
		if b.Status == status {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BudgetID < out[j].BudgetID })
	return out
}

// ExpenditureRecord is one audit line in the ExpenditureLog.
type ExpenditureRecord struct {
	BudgetID  string
	ItemID    string
	Amount    money.Amount
	Approved  bool
	Gate      string // populated only when Approved is false
	ActorID   string
	Occurred  time.Time
	EventID   string
}

// ExpenditureLog appends every approve/reject with audit context.
type ExpenditureLog struct {
	records []ExpenditureRecord
}

func NewExpenditureLog() *ExpenditureLog { return &ExpenditureLog{} }

func (l *ExpenditureLog) append(r ExpenditureRecord) { l.records = append(l.records, r) }

func (l *ExpenditureLog) ForBudget(budgetID string) []ExpenditureRecord {
	var out []ExpenditureRecord
	for _, r := range l.records {
		if r.BudgetID == budgetID {
			out = append(out, r)
		}
	}
	return out
}

// Projections bundles every read model the façade maintains, and applies
// events to them in the fixed dispatch table of Apply.
type Projections struct {
	Workspaces  *WorkspaceRegistry
	Delegations *DelegationGraph
	Laws        *LawRegistry
	Budgets     *BudgetRegistry
	Expenditures *ExpenditureLog
	Tenders     *procurement.TenderRegistry
	Suppliers   *procurement.SupplierRegistry
	Contracts   *procurement.ContractRegistry
}

// NewProjections constructs an empty projection bundle.
func NewProjections() *Projections {
	return &Projections{
		Workspaces:   NewWorkspaceRegistry(),
		Delegations:  NewDelegationGraph(),
		Laws:         NewLawRegistry(),
		Budgets:      NewBudgetRegistry(),
		Expenditures: NewExpenditureLog(),
		Tenders:      procurement.NewTenderRegistry(),
		Suppliers:    procurement.NewSupplierRegistry(),
		Contracts:    procurement.NewContractRegistry(),
	}
}

// Apply folds a single event into the projection bundle. An unrecognized
// EventType is a fatal error during replay, not a no-op, so schema drift
// is caught rather than silently ignored (spec §9).
func (p *Projections) Apply(ev eventlog.Event) error {
	payload, _ := ev.Payload.(map[string]interface{})

	switch ev.EventType {
	case EventWorkspaceCreated:
		return p.applyWorkspaceCreated(ev, payload)
	case EventWorkspaceArchived:
		return p.applyWorkspaceArchived(ev, payload)
	case EventDecisionRightDelegated:
		return p.applyDecisionRightDelegated(ev, payload)
	case EventDelegationRevoked:
		return p.applyDelegationRevoked(ev, payload)
	case EventDelegationExpired:
		return p.applyDelegationExpired(ev, payload)
	case EventLawCreated:
		return p.applyLawCreated(ev, payload)
	case EventLawActivated:
		return p.applyLawActivated(ev, payload)
	case EventLawReviewTriggered:
		return p.applyLawReviewTriggered(ev, payload)
	case EventLawReviewCompleted:
		return p.applyLawReviewCompleted(ev, payload)
	case EventBudgetCreated:
		return p.applyBudgetCreated(ev, payload)
	case EventBudgetActivated:
		return p.applyBudgetActivated(ev, payload)
	case EventAllocationAdjusted:
		return p.applyAllocationAdjusted(ev, payload)
	case EventExpenditureApproved:
		return p.applyExpenditureApproved(ev, payload)
	case EventExpenditureRejected:
		return p.applyExpenditureRejected(ev, payload)
	case EventBudgetClosed:
		return p.applyBudgetClosed(ev, payload)
	case EventDelegationConcentrationWarning, EventDelegationConcentrationHalt,
		EventTransparencyEscalated, EventBudgetBalanceViolationDetected,
		EventBudgetOverspendDetected, EventSupplierConcentrationWarning,
		EventSupplierConcentrationHalt:
		return p.applyReflex(ev, payload)
	case EventTenderCreated, EventTenderOpened, EventSupplierRegistered,
		EventSupplierAwardRecorded, EventTenderAwarded, EventTenderClosed:
		return p.applyProcurementEvent(ev, payload)
	default:
		return kernelerr.New(kernelerr.CodeUnknownAggregate, "unrecognized event type during replay: "+string(ev.EventType))
	}
}

// FreedomHealth is computed on demand (never stored). RiskLevel is
// derived from the concentration metrics only (delegation Gini, max
// in-degree, supplier Gini); OverdueLawCount is reported alongside and
// does not change RiskLevel.
type FreedomHealth struct {
	DelegationGini   float64
	MaxInDegree      int
	SupplierGini     float64
	OverdueLawCount  int
	RiskLevel        RiskLevel
}

// ComputeFreedomHealth folds the current projection state into a single
// risk snapshot, matching the thresholds tick uses for reflex events.
func ComputeFreedomHealth(p *Projections, now time.Time, pol policy.Policy) FreedomHealth {
	delegationGini := GiniOfInDegree(p.Delegations.InDegreeSnapshot(now))
	maxInDegree := p.Delegations.MaxInDegree(now)
	supplierGini := p.Suppliers.Gini()
	overdue := len(p.Laws.ListOverdue(now))

	risk := RiskOK
	if delegationGini >= pol.DelegationGiniWarn || maxInDegree >= pol.DelegationInDegreeWarn ||
		supplierGini >= pol.SupplierGiniWarn {
		risk = RiskWarn
	}
	if delegationGini >= pol.DelegationGiniHalt || maxInDegree >= pol.DelegationInDegreeHalt ||
		supplierGini >= pol.SupplierGiniHalt {
		risk = RiskHalt
	}

	return FreedomHealth{
		DelegationGini:  delegationGini,
		MaxInDegree:     maxInDegree,
		SupplierGini:    supplierGini,
		OverdueLawCount: overdue,
		RiskLevel:       risk,
	}
}
