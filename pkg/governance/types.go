// Package governance implements the invariant library, command handlers,
// projections, and tick engine for the four core aggregates: workspace,
// delegation, law, and budget (C4-C7, C9). Grounded on the teacher's
// pkg/governance package layout, generalized from a single obligation
// aggregate to the four aggregates this kernel owns.
package governance

import (
	"time"

	"github.com/latticework/govkernel/pkg/money"
)

// Visibility controls who can observe a delegation edge.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityOrgOnly Visibility = "org_only"
	VisibilityPublic  Visibility = "public"
)

// Workspace is the aggregate root every law, budget, and delegation is
// scoped under.
type Workspace struct {
	WorkspaceID       string
	Name              string
	ParentWorkspaceID string
	Scope             map[string]string
	CreatedAt         time.Time
	ArchivedAt        *time.Time
}

// Archived reports whether the workspace has been terminally archived.
func (w Workspace) Archived() bool { return w.ArchivedAt != nil }

// Delegation is a directed edge granting decision rights from one actor
// to another, bounded by a TTL.
type Delegation struct {
	DelegationID string
	WorkspaceID  string
	FromActor    string
	ToActor      string
	TTLDays      int
	CreatedAt    time.Time
	ExpiresAt    time.Time
	Visibility   Visibility
	RevokedAt    *time.Time
	ExpiredAt    *time.Time
}

// Active reports whether the delegation is neither revoked nor expired
// as of now.
func (d Delegation) Active(now time.Time) bool {
	return d.RevokedAt == nil && d.ExpiredAt == nil && !now.After(d.ExpiresAt)
}

// Reversibility classifies how hard a law is to undo.
type Reversibility string

const (
	ReversibilityReversible     Reversibility = "REVERSIBLE"
	ReversibilitySemiReversible Reversibility = "SEMI_REVERSIBLE"
	ReversibilityIrreversible   Reversibility = "IRREVERSIBLE"
)

// LawStatus is the law lifecycle state.
type LawStatus string

const (
	LawStatusDraft    LawStatus = "DRAFT"
	LawStatusActive   LawStatus = "ACTIVE"
	LawStatusReview   LawStatus = "REVIEW"
	LawStatusSunset   LawStatus = "SUNSET"
	LawStatusArchived LawStatus = "ARCHIVED"
)

// Law is a governance rule with a checkpoint-driven review lifecycle.
type Law struct {
	LawID           string
	WorkspaceID     string
	Title           string
	Scope           string
	Reversibility   Reversibility
	Checkpoints     []int
	Params          map[string]string
	Status          LawStatus
	CheckpointIndex int
	NextCheckpointAt *time.Time
	ActivatedAt     *time.Time
	Version         uint64
}

// ReviewOutcome names the three ways a REVIEW cycle can resolve.
type ReviewOutcome string

const (
	ReviewOutcomeContinue ReviewOutcome = "continue"
	ReviewOutcomeAdjust   ReviewOutcome = "adjust"
	ReviewOutcomeSunset   ReviewOutcome = "sunset"
)

// BudgetStatus is the budget lifecycle state.
type BudgetStatus string

const (
	BudgetStatusDraft  BudgetStatus = "DRAFT"
	BudgetStatusActive BudgetStatus = "ACTIVE"
	BudgetStatusClosed BudgetStatus = "CLOSED"
)

// FlexClass bounds how much a single adjustment may move a budget item,
// as a fraction of its current allocation.
type FlexClass string

const (
	FlexClassCritical     FlexClass = "CRITICAL"
	FlexClassImportant    FlexClass = "IMPORTANT"
	FlexClassAspirational FlexClass = "ASPIRATIONAL"
)

// BudgetItem is a single line item within a Budget.
type BudgetItem struct {
	ItemID     string
	Name       string
	Allocated  money.Amount
	Spent      money.Amount
	FlexClass  FlexClass
	Category   string
}

// Budget is a fiscal-year allocation envelope for a law, made up of
// items whose allocations must always sum to BudgetTotal.
type Budget struct {
	BudgetID    string
	LawID       string
	FiscalYear  int
	Items       map[string]BudgetItem
	BudgetTotal money.Amount
	Status      BudgetStatus
	CreatedAt   time.Time
	ActivatedAt *time.Time
	ClosedAt    *time.Time
	Version     uint64
}

// Adjustment is one line of a proposed AdjustAllocation command.
type Adjustment struct {
	ItemID string
	Change money.Amount
}
