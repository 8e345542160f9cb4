// Package policy defines the immutable Safety Policy (C10): every
// numeric threshold the invariant library, command handlers, and tick
// engine consult. The policy is a plain value passed by construction —
// no package-level mutable configuration exists anywhere in this module.
package policy

import (
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"
)

// BalanceMode names the enforcement mode for budget balance checks.
type BalanceMode string

// STRICT is the only supported mode today; RELAXED is named in the
// original design but never implemented — this kernel enforces exact
// zero-sum balance unconditionally, per spec §4.3.
const BalanceModeStrict BalanceMode = "STRICT"

// FlexLimits maps a BudgetItem flex class to its maximum per-adjustment
// percentage change. Ceilings are stored as decimal strings ("0.05"),
// not float64, so the exact-decimal boundary tests in spec §8 (5.000000%
// accepted, 5.000001% rejected) compare against an exact rational rather
// than a float64's binary approximation of a decimal fraction.
type FlexLimits struct {
	Critical     string `yaml:"critical" json:"critical"`
	Important    string `yaml:"important" json:"important"`
	Aspirational string `yaml:"aspirational" json:"aspirational"`
}

// Policy is the immutable set of thresholds governing the kernel's
// anti-entrenchment safeguards. Construct with Default or Load; there is
// no exported way to mutate a Policy after construction.
type Policy struct {
	MaxDelegationTTLDays int `yaml:"max_delegation_ttl_days" json:"max_delegation_ttl_days"`

	DelegationGiniWarn     float64 `yaml:"delegation_gini_warn" json:"delegation_gini_warn"`
	DelegationGiniHalt     float64 `yaml:"delegation_gini_halt" json:"delegation_gini_halt"`
	DelegationInDegreeWarn int     `yaml:"delegation_in_degree_warn" json:"delegation_in_degree_warn"`
	DelegationInDegreeHalt int     `yaml:"delegation_in_degree_halt" json:"delegation_in_degree_halt"`

	BudgetFlexLimits   FlexLimits  `yaml:"budget_flex_limits" json:"budget_flex_limits"`
	BudgetBalanceMode  BalanceMode `yaml:"budget_balance_mode" json:"budget_balance_mode"`

	SupplierGiniWarn float64 `yaml:"supplier_gini_warn" json:"supplier_gini_warn"`
	SupplierGiniHalt float64 `yaml:"supplier_gini_halt" json:"supplier_gini_halt"`

	// DefaultCheckpoints is the compiled table of checkpoint defaults.
	// CreateLaw does not read it: a law created with an empty checkpoint
	// schedule is rejected rather than given these defaults.
	DefaultCheckpoints []int `yaml:"default_checkpoints" json:"default_checkpoints"`

	// IrreversibleMaxFirstCheckpointDays resolves the open question in
	// spec §9: laws with reversibility IRREVERSIBLE must schedule their
	// first checkpoint at or before this many days. This strengthens
	// enforcement rather than silently preserving the looser behavior.
	IrreversibleMaxFirstCheckpointDays int `yaml:"irreversible_max_first_checkpoint_days" json:"irreversible_max_first_checkpoint_days"`
}

// FlexCeiling returns the maximum fractional change allowed for a flex
// class as an exact rational, or an error for an unrecognized class.
func (p Policy) FlexCeiling(class string) (*big.Rat, error) {
	var s string
	switch class {
	case "CRITICAL":
		s = p.BudgetFlexLimits.Critical
	case "IMPORTANT":
		s = p.BudgetFlexLimits.Important
	case "ASPIRATIONAL":
		s = p.BudgetFlexLimits.Aspirational
	default:
		return nil, fmt.Errorf("policy: unknown flex class %q", class)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("policy: invalid flex ceiling %q for class %q", s, class)
	}
	return r, nil
}

// Default returns the conservative default policy, matching the
// thresholds carried in spec §4.9 and the reference implementation's
// constitutional defaults.
func Default() Policy {
	return Policy{
		MaxDelegationTTLDays: 365,

		DelegationGiniWarn:     0.55,
		DelegationGiniHalt:     0.70,
		DelegationInDegreeWarn: 500,
		DelegationInDegreeHalt: 2000,

		BudgetFlexLimits: FlexLimits{
			Critical:     "0.05",
			Important:    "0.15",
			Aspirational: "0.50",
		},
		BudgetBalanceMode: BalanceModeStrict,

		SupplierGiniWarn: 0.30,
		SupplierGiniHalt: 0.50,

		DefaultCheckpoints:                 []int{30, 90, 180, 365},
		IrreversibleMaxFirstCheckpointDays: 30,
	}
}

// Load reads a YAML policy override file and layers it over Default,
// grounded on the teacher's pkg/config/profile_loader.go YAML-profile
// pattern. Fields absent from the file keep their default value.
func Load(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("policy: load %q: %w", path, err)
	}
	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("policy: parse %q: %w", path, err)
	}
	return p, nil
}
