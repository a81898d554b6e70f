package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_HappyPath(t *testing.T) {
	m := New()
	assert.Equal(t, CollectingEboard, m.State())

	for _, s := range []State{CollectingDrivers, DecidingRoster, CollectingNonDrivers, Done} {
		require.NoError(t, m.Advance(s))
		assert.Equal(t, s, m.State())
	}
}

func TestMachine_RejectsSkipsAndBackwardMoves(t *testing.T) {
	m := New()

	assert.ErrorIs(t, m.Advance(DecidingRoster), ErrInvalidTransition)
	assert.ErrorIs(t, m.Advance(CollectingEboard), ErrInvalidTransition)
	assert.Equal(t, CollectingEboard, m.State())

	require.NoError(t, m.Advance(CollectingDrivers))
	assert.ErrorIs(t, m.Advance(CollectingEboard), ErrInvalidTransition)
}

func TestMachine_DoneIsTerminal(t *testing.T) {
	m := &Machine{state: Done}
	assert.ErrorIs(t, m.Advance(CollectingEboard), ErrInvalidTransition)
}

func TestMachine_RequireAndReset(t *testing.T) {
	m := New()
	require.NoError(t, m.Require(CollectingEboard))
	assert.ErrorIs(t, m.Require(DecidingRoster), ErrInvalidTransition)

	require.NoError(t, m.Advance(CollectingDrivers))
	m.Reset()
	assert.Equal(t, CollectingEboard, m.State())
}

func TestNext(t *testing.T) {
	n, ok := Next(DecidingRoster)
	assert.True(t, ok)
	assert.Equal(t, CollectingNonDrivers, n)

	_, ok = Next(Done)
	assert.False(t, ok)
}
