package hsms

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Valid_FillsDefaults(t *testing.T) {
	var c Config
	require.NoError(t, c.Valid())

	assert.Equal(t, 45*time.Second, c.T3)
	assert.Equal(t, 10*time.Second, c.T5)
	assert.Equal(t, 5*time.Second, c.T6)
	assert.Equal(t, 30*time.Second, c.LinktestPeriod)
	assert.Equal(t, 10*time.Second, c.EstablishCommTimeout)
	assert.Equal(t, 1<<20, c.SendBlockSize)
	assert.Equal(t, 500*time.Millisecond, c.SelectPoll)
}

func TestConfig_Valid_RejectsOutOfRangeT3(t *testing.T) {
	c := Config{T3: 500 * time.Second}
	assert.Error(t, c.Valid())
}

func TestConfig_Valid_PreservesExplicitInRangeValues(t *testing.T) {
	c := Config{T3: 10 * time.Second}
	require.NoError(t, c.Valid())
	assert.Equal(t, 10*time.Second, c.T3)
}

func TestDefaultConfig_IsAlreadyValid(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 45*time.Second, c.T3)
}
