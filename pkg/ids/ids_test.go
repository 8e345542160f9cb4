package ids

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventID_RoundTrips(t *testing.T) {
	id, err := NewEventID(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	s := id.String()
	assert.Len(t, s, 26)

	parsed, err := ParseEventID(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestEventID_SortsByTimestamp(t *testing.T) {
	earlier, err := NewEventID(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	later, err := NewEventID(time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC))
	require.NoError(t, err)

	assert.True(t, earlier.Less(later))
	assert.False(t, later.Less(earlier))
}

func TestParseEventID_RejectsWrongLength(t *testing.T) {
	_, err := ParseEventID("TOOSHORT")
	require.Error(t, err)
}

func TestNewCorrelationID_ProducesDistinctValues(t *testing.T) {
	a, err := NewCorrelationID()
	require.NoError(t, err)
	b, err := NewCorrelationID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
