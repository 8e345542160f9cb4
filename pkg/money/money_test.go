package money

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSubCmp(t *testing.T) {
	a := New(1000, 2)
	b := New(250, 2)
	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), sum.Minor)

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, int64(750), diff.Minor)

	assert.Equal(t, 1, a.Cmp(b))
	assert.Equal(t, -1, b.Cmp(a))
	assert.Equal(t, 0, a.Cmp(a))
}

func TestScaleMismatchErrors(t *testing.T) {
	a := New(100, 2)
	b := New(100, 3)
	_, err := a.Add(b)
	require.Error(t, err)
}

func TestRatioExceeds_ExactBoundary(t *testing.T) {
	ceiling := big.NewRat(5, 100)
	base := New(50000000, 2)
	exact := New(2500000, 2)
	overOne := New(2500001, 2)

	exceeds, err := RatioExceeds(exact, base, ceiling)
	require.NoError(t, err)
	assert.False(t, exceeds)

	exceeds, err = RatioExceeds(overOne, base, ceiling)
	require.NoError(t, err)
	assert.True(t, exceeds)
}

func TestRatioExceeds_ZeroBaseIsError(t *testing.T) {
	_, err := RatioExceeds(New(100, 2), Zero(2), big.NewRat(1, 2))
	require.Error(t, err)
}

func TestSum(t *testing.T) {
	sum, err := Sum([]Amount{New(100, 2), New(200, 2), New(-50, 2)})
	require.NoError(t, err)
	assert.Equal(t, int64(250), sum.Minor)
}

func TestParseRoundTrips(t *testing.T) {
	a, err := Parse("1234.56", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), a.Minor)
	assert.Equal(t, "1234.56", a.String())
}

func TestParse_RejectsExcessPrecision(t *testing.T) {
	_, err := Parse("1.005", 2)
	require.Error(t, err)
}
