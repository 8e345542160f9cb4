package procurement

import "sort"

// giniOf computes the Gini coefficient of a non-negative distribution.
// Duplicated in miniature from governance.Gini rather than imported,
// since procurement must not depend on governance (governance already
// depends on procurement for its Tender/Supplier/Contract projections).
func giniOf(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum, weighted float64
	for i, x := range sorted {
		sum += x
		weighted += float64(i+1) * x
	}
	if sum == 0 {
		return 0
	}
	g := (2*weighted)/(float64(n)*sum) - float64(n+1)/float64(n)
	if g < 0 {
		g = 0
	}
	if g > 1 {
		g = 1
	}
	return g
}
