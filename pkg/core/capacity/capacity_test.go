package capacity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_ThreeDrivers(t *testing.T) {
	c, err := Compute(Input{
		DriverCount:     3,
		SeatsPerDriver:  5,
		AlreadyRostered: 3,
		WaitlistSize:    5,
	})
	require.NoError(t, err)

	assert.Equal(t, 15, c.TotalRosterCapacity)
	assert.Equal(t, 12, c.RemainingRosterSlots)
	assert.Equal(t, 5, c.WaitlistSize)
	assert.Equal(t, 17, c.MaxPlaced())
	assert.False(t, c.Overbooked)
}

func TestCompute_DefaultSeats(t *testing.T) {
	c, err := Compute(Input{DriverCount: 2})
	require.NoError(t, err)

	assert.Equal(t, DefaultSeatsPerDriver, c.SeatsPerDriver)
	assert.Equal(t, 10, c.TotalRosterCapacity)
	assert.Equal(t, 10, c.RemainingRosterSlots)
}

func TestCompute_RosterLimitOverridesDrivers(t *testing.T) {
	c, err := Compute(Input{DriverCount: 4, RosterLimit: 12, AlreadyRostered: 2})
	require.NoError(t, err)

	assert.Equal(t, 12, c.TotalRosterCapacity)
	assert.Equal(t, 10, c.RemainingRosterSlots)
}

func TestCompute_Overbooked(t *testing.T) {
	// 1 driver seats 5, but 7 eboard members are already on the roster
	c, err := Compute(Input{DriverCount: 1, AlreadyRostered: 7, WaitlistSize: 3})
	require.NoError(t, err)

	assert.Equal(t, 0, c.RemainingRosterSlots)
	assert.True(t, c.Overbooked)
	assert.Equal(t, 3, c.MaxPlaced())
}

func TestCompute_NegativeInputs(t *testing.T) {
	tests := []struct {
		name  string
		input Input
	}{
		{"drivers", Input{DriverCount: -1}},
		{"seats", Input{DriverCount: 1, SeatsPerDriver: -5}},
		{"rostered", Input{DriverCount: 1, AlreadyRostered: -1}},
		{"waitlist", Input{DriverCount: 1, WaitlistSize: -2}},
		{"limit", Input{DriverCount: 1, RosterLimit: -3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.input)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "must not be negative")
		})
	}
}
