package operation

import (
	"testing"

	"github.com/hupe1980/meshkit/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindNames(t *testing.T) {
	for k := range Kind(NumKinds) {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	k, err := ParseKind("face-swap")
	require.NoError(t, err)
	assert.Equal(t, FaceSwap, k)

	k, err = ParseKind(" Edge-Collapse ")
	require.NoError(t, err)
	assert.Equal(t, EdgeCollapse, k)

	_, err = ParseKind("vertex_insert")
	assert.Error(t, err)
	assert.Equal(t, "Kind(9)", Kind(9).String())
}

func TestKindRegion(t *testing.T) {
	assert.Equal(t, mesh.VertexRegion, VertexSmooth.Region())
	for _, k := range []Kind{EdgeSplit, EdgeCollapse, EdgeSwap, FaceSwap} {
		assert.Equal(t, mesh.EdgeRegion, k.Region(), k.String())
	}
}

func TestOutcomeAndStateNames(t *testing.T) {
	assert.Equal(t, "deferred", Deferred.String())
	assert.Equal(t, "rolled_back", StateRolledBack.String())
	assert.Equal(t, "committed", StateCommitted.String())
	assert.Equal(t, "Outcome(42)", Outcome(42).String())
}
