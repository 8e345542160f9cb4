// Package procurement implements the feasibility filter and the three
// deterministic supplier-selection mechanisms (C8), plus the Tender,
// Supplier, and Contract projections named in spec §3/§4.5. Grounded on
// the teacher's pkg/governance selection-adjacent aggregates, generalized
// to a capability-gate feasibility pipeline instead of scored bidding.
package procurement

import (
	"sort"
	"time"

	"github.com/latticework/govkernel/pkg/money"
)

// SelectionMechanism names the deterministic selection algorithm a
// tender uses.
type SelectionMechanism string

const (
	MechanismRotation SelectionMechanism = "ROTATION"
	MechanismRandom   SelectionMechanism = "RANDOM"
	MechanismHybrid   SelectionMechanism = "HYBRID"
)

// TenderStatus is the tender lifecycle state.
type TenderStatus string

const (
	TenderStatusDraft      TenderStatus = "DRAFT"
	TenderStatusOpen       TenderStatus = "OPEN"
	TenderStatusEvaluating TenderStatus = "EVALUATING"
	TenderStatusAwarded    TenderStatus = "AWARDED"
	TenderStatusClosed     TenderStatus = "CLOSED"
)

// Tender is a procurement request awarded to exactly one Supplier.
type Tender struct {
	TenderID             string
	LawID                string
	Title                string
	EstimatedValue       money.Amount
	RequiredCapabilities map[string]bool
	MinYearsExperience   *int
	MinReputation        *float64
	SelectionMechanism   SelectionMechanism
	Status               TenderStatus
	AwardedSupplierID    string
	AwardedAt            *time.Time
	Seed                 string
	FeasibleSet          []string
	Version              uint64
}

// Supplier is a procurement counterparty.
type Supplier struct {
	SupplierID        string
	Name              string
	Type              string
	MaxContractValue  money.Amount
	Certifications    map[string]bool
	YearsInBusiness   int
	ReputationScore   float64
	TotalValueAwarded money.Amount
}

// Contract records a completed award, the join between a Tender and its
// winning Supplier.
type Contract struct {
	ContractID string
	TenderID   string
	SupplierID string
	Value      money.Amount
	AwardedAt  time.Time
}

// TenderRegistry indexes tenders by id.
type TenderRegistry struct {
	byID map[string]Tender
}

func NewTenderRegistry() *TenderRegistry { return &TenderRegistry{byID: make(map[string]Tender)} }

func (r *TenderRegistry) Get(id string) (Tender, bool) {
	t, ok := r.byID[id]
	return t, ok
}

func (r *TenderRegistry) Put(t Tender) { r.byID[t.TenderID] = t }

func (r *TenderRegistry) ListByStatus(status TenderStatus) []Tender {
	var out []Tender
	for _, t := range r.byID {
		if t.Status == status {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenderID < out[j].TenderID })
	return out
}

// SupplierRegistry indexes suppliers by id.
type SupplierRegistry struct {
	byID map[string]Supplier
}

func NewSupplierRegistry() *SupplierRegistry {
	return &SupplierRegistry{byID: make(map[string]Supplier)}
}

func (r *SupplierRegistry) Get(id string) (Supplier, bool) {
	s, ok := r.byID[id]
	return s, ok
}

func (r *SupplierRegistry) Put(s Supplier) { r.byID[s.SupplierID] = s }

func (r *SupplierRegistry) All() []Supplier {
	out := make([]Supplier, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SupplierID < out[j].SupplierID })
	return out
}

// Gini computes the concentration of total_value_awarded across all
// registered suppliers, per spec §4.6 rule 6.
func (r *SupplierRegistry) Gini() float64 {
	values := make([]float64, 0, len(r.byID))
	for _, s := range r.byID {
		f, _ := s.TotalValueAwarded.Float64()
		values = append(values, f)
	}
	return giniOf(values)
}

// ContractRegistry indexes awarded contracts by id.
type ContractRegistry struct {
	byID map[string]Contract
}

func NewContractRegistry() *ContractRegistry {
	return &ContractRegistry{byID: make(map[string]Contract)}
}

func (r *ContractRegistry) Put(c Contract) { r.byID[c.ContractID] = c }

func (r *ContractRegistry) Get(id string) (Contract, bool) {
	c, ok := r.byID[id]
	return c, ok
}

func (r *ContractRegistry) ListByTender(tenderID string) []Contract {
	var out []Contract
	for _, c := range r.byID {
		if c.TenderID == tenderID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContractID < out[j].ContractID })
	return out
}
