package secsvar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt_EncodeDecodeRoundtrip(t *testing.T) {
	tests := []struct {
		description string
		width       int
		values      []int64
		expected    []byte
	}{
		{
			description: "I1 single value",
			width:       1,
			values:      []int64{-1},
			expected:    []byte{0o31<<2 | 1, 1, 0xff},
		},
		{
			description: "I4 two values",
			width:       4,
			values:      []int64{1, -1},
			expected:    []byte{0o34<<2 | 1, 8, 0, 0, 0, 1, 0xff, 0xff, 0xff, 0xff},
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			v, err := NewInt(tc.width, tc.values...)
			require.NoError(t, err)

			encoded, err := v.Encode()
			require.NoError(t, err)
			assert.Equal(t, tc.expected, encoded)

			decoded, err := NewInt(tc.width)
			require.NoError(t, err)
			n, err := decoded.Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, len(encoded), n)
			assert.Equal(t, tc.values, decoded.Values())
		})
	}
}

func TestInt_Set_RangeChecksWidth(t *testing.T) {
	_, err := NewInt(1, 200)
	assert.Error(t, err)
}

func TestInt_Clone_IsIndependent(t *testing.T) {
	v, err := NewInt(2, 5)
	require.NoError(t, err)

	clone := v.Clone().(*Int)
	require.NoError(t, clone.Append(7))

	assert.Equal(t, []int64{5}, v.Values())
	assert.Equal(t, []int64{5, 7}, clone.Values())
}
