package sequencer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eachNode(n *TreeNode, fn func(*TreeNode)) {
	if n == nil {
		return
	}
	fn(n)
	eachNode(n.Left, fn)
	eachNode(n.Right, fn)
}

func TestBuildTreeIsComplete(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	trunk := testSequence(0, 4, 7)

	for depth := 0; depth <= 3; depth++ {
		tree := BuildTree(trunk, nil, depth, rng)

		assert.Equal(t, 1<<(depth+1)-1, tree.CountNodes(), "depth %d", depth)
		eachNode(tree, func(n *TreeNode) {
			if n.Depth < depth {
				assert.NotNil(t, n.Left)
				assert.NotNil(t, n.Right)
			} else {
				assert.Nil(t, n.Left)
				assert.Nil(t, n.Right)
			}
		})
	}
}

func TestBuildTreeDepthZeroIsRootOnly(t *testing.T) {
	t.Parallel()

	tree := BuildTree(testSequence(0), nil, 0, rand.New(rand.NewSource(1)))

	assert.Equal(t, 1, tree.CountNodes())
	assert.Equal(t, ModNone, tree.Mod)
	assert.Equal(t, 0, tree.Depth)
}

func TestBuildTreeDefaultRecipe(t *testing.T) {
	t.Parallel()

	// No config at all: every depth falls back to transpose +7 / -5.
	tree := BuildTree(testSequence(0, 12), nil, 1, rand.New(rand.NewSource(1)))

	require.NotNil(t, tree.Left)
	require.NotNil(t, tree.Right)
	assert.Equal(t, []int{7, 19}, activePitches(tree.Left.Sequence))
	assert.Equal(t, []int{-5, 7}, activePitches(tree.Right.Sequence))
	assert.Equal(t, ModTranspose, tree.Left.Mod)
	assert.Equal(t, ModTranspose, tree.Right.Mod)
}

func TestBuildTreeTransposeBranch(t *testing.T) {
	t.Parallel()

	cfg := []BranchConfig{{Left: ModTranspose, LeftParam: 7}}
	tree := BuildTree(testSequence(0), cfg, 1, rand.New(rand.NewSource(1)))

	assert.Equal(t, 7, tree.Left.Sequence.Steps[0].Pitch)
	// Right is ModNone in this config: plain clone of the parent.
	assert.Equal(t, 0, tree.Right.Sequence.Steps[0].Pitch)
}

func TestBuildTreeConfigIndexGovernsChildDepth(t *testing.T) {
	t.Parallel()

	cfg := []BranchConfig{
		{Left: ModTranspose, Right: ModTranspose, LeftParam: 1, RightParam: 1},
		{Left: ModTranspose, Right: ModTranspose, LeftParam: 10, RightParam: 10},
	}
	tree := BuildTree(testSequence(0), cfg, 2, rand.New(rand.NewSource(1)))

	assert.Equal(t, 1, tree.Left.Sequence.Steps[0].Pitch, "config[0] derives depth 1")
	assert.Equal(t, 11, tree.Left.Left.Sequence.Steps[0].Pitch, "config[1] derives depth 2")
}

func TestBuildTreeInvertAndReverseKinds(t *testing.T) {
	t.Parallel()

	cfg := []BranchConfig{{Left: ModInvert, Right: ModReverse}}
	tree := BuildTree(testSequence(0, 4, 7), cfg, 1, rand.New(rand.NewSource(1)))

	assert.Equal(t, []int{7, 3, 0}, activePitches(tree.Left.Sequence))
	assert.Equal(t, []int{7, 4, 0}, activePitches(tree.Right.Sequence))
	assert.Equal(t, ModInvert, tree.Left.Mod)
	assert.Equal(t, ModReverse, tree.Right.Mod)
}

func TestBuildTreeMutateUnsetParamFallback(t *testing.T) {
	t.Parallel()

	// An unset mutate parameter falls back to 0.3, which rounds to a zero
	// jitter bound: the child matches its parent exactly.
	cfg := []BranchConfig{{Left: ModMutate, Right: ModMutate}}
	trunk := testSequence(0, 5, -3)
	tree := BuildTree(trunk, cfg, 1, rand.New(rand.NewSource(1)))

	assert.Equal(t, activePitches(trunk), activePitches(tree.Left.Sequence))
	assert.Equal(t, activePitches(trunk), activePitches(tree.Right.Sequence))
}

func TestBuildTreeClonesTrunk(t *testing.T) {
	t.Parallel()

	trunk := testSequence(0, 4)
	tree := BuildTree(trunk, nil, 1, rand.New(rand.NewSource(1)))

	tree.Sequence.Steps[0].Pitch = 99
	assert.Equal(t, 0, trunk.Steps[0].Pitch, "tree owns its own copies")
}
