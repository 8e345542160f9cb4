package procurement

import (
	"crypto/sha256"
	"math/big"

	"github.com/latticework/govkernel/pkg/kernelerr"
)

// Select runs the tender's configured mechanism against the feasible set
// and returns the winning supplier_id. An empty feasible set is
// NoFeasibleSupplier, distinct from any mechanism-internal failure.
func Select(mechanism SelectionMechanism, feasible []Supplier, seed string) (string, error) {
	if len(feasible) == 0 {
		return "", kernelerr.New(kernelerr.CodeNoFeasibleSupplier, "no supplier passed the feasibility gates")
	}
	switch mechanism {
	case MechanismRotation:
		return selectRotation(feasible), nil
	case MechanismRandom:
		return selectRandom(feasible, seed)
	case MechanismHybrid:
		return selectHybrid(feasible, seed)
	default:
		return "", kernelerr.New(kernelerr.CodeInvalidCommand, "unknown selection mechanism: "+string(mechanism))
	}
}

// selectRotation picks the supplier with the least total_value_awarded,
// ties broken by lexicographic supplier_id.
func selectRotation(feasible []Supplier) string {
	best := feasible[0]
	for _, s := range feasible[1:] {
		switch s.TotalValueAwarded.Cmp(best.TotalValueAwarded) {
		case -1:
			best = s
		case 0:
			if s.SupplierID < best.SupplierID {
				best = s
			}
		}
	}
	return best.SupplierID
}

// selectRandom sorts the feasible set by supplier_id, computes
// h = SHA256(seed), and picks index = int(h) mod n. Grounded verbatim on
// spec §4.7's explicit formula (not the original Python source's seeded
// random.Random(...).randint variant — spec.md's Testable Properties
// scenario 7 pins this exact SHA-256-mod-n rule for cross-implementation
// reproducibility).
func selectRandom(feasible []Supplier, seed string) (string, error) {
	sorted := sortedByID(feasible)
	digest := sha256.Sum256([]byte(seed))
	h := new(big.Int).SetBytes(digest[:])
	n := big.NewInt(int64(len(sorted)))
	index := new(big.Int).Mod(h, n).Int64()
	return sorted[index].SupplierID, nil
}

// selectHybrid restricts the feasible set to suppliers whose
// total_value_awarded <= 1.1 * min_awarded_in_feasible_set, then applies
// RANDOM to the restricted set.
func selectHybrid(feasible []Supplier, seed string) (string, error) {
	min := feasible[0].TotalValueAwarded
	for _, s := range feasible[1:] {
		if s.TotalValueAwarded.Cmp(min) < 0 {
			min = s.TotalValueAwarded
		}
	}
	minFloat, _ := min.Float64()
	ceiling := minFloat * 1.1

	var restricted []Supplier
	for _, s := range feasible {
		v, _ := s.TotalValueAwarded.Float64()
		if v <= ceiling {
			restricted = append(restricted, s)
		}
	}
	return selectRandom(restricted, seed)
}

func sortedByID(suppliers []Supplier) []Supplier {
	out := make([]Supplier, len(suppliers))
	copy(out, suppliers)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].SupplierID < out[j-1].SupplierID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
