package secsvar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListStructure_EncodeDecodeRoundtrip(t *testing.T) {
	mdln, err := NewASCII(-1, "EQP001")
	require.NoError(t, err)
	softrev, err := NewASCII(-1, "1.0")
	require.NoError(t, err)

	ls, err := NewListStructure([]string{"MDLN", "SOFTREV"}, []Variable{mdln, softrev})
	require.NoError(t, err)

	encoded, err := ls.Encode()
	require.NoError(t, err)

	blankMDLN, err := NewASCII(-1, "")
	require.NoError(t, err)
	blankRev, err := NewASCII(-1, "")
	require.NoError(t, err)
	decoded, err := NewListStructure([]string{"MDLN", "SOFTREV"}, []Variable{blankMDLN, blankRev})
	require.NoError(t, err)

	n, err := decoded.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)

	field, err := decoded.Get("MDLN")
	require.NoError(t, err)
	assert.Equal(t, "EQP001", field.(*Text).Value())
}

func TestListStructure_DuplicateNameRejected(t *testing.T) {
	a, _ := NewBinary(1, 0)
	b, _ := NewBinary(1, 0)
	_, err := NewListStructure([]string{"X", "X"}, []Variable{a, b})
	assert.Error(t, err)
}

func TestListStructure_GetByNameAndIndex(t *testing.T) {
	ceid, err := NewUint(4, 7)
	require.NoError(t, err)
	ls, err := NewListStructure([]string{"CEID"}, []Variable{ceid})
	require.NoError(t, err)

	byName, err := ls.Get("CEID")
	require.NoError(t, err)
	byIndex, err := ls.Get(0)
	require.NoError(t, err)
	assert.Equal(t, byName, byIndex)

	_, err = ls.Get("MISSING")
	assert.Error(t, err)
	_, err = ls.Get(5)
	assert.Error(t, err)
}
