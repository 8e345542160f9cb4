package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_FlexCeilingsParseExact(t *testing.T) {
	pol := Default()
	ceiling, err := pol.FlexCeiling("CRITICAL")
	require.NoError(t, err)
	assert.Equal(t, "1/20", ceiling.RatString())
}

func TestFlexCeiling_UnknownClass(t *testing.T) {
	pol := Default()
	_, err := pol.FlexCeiling("UNKNOWN")
	require.Error(t, err)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/policy.yaml")
	require.Error(t, err)
}
