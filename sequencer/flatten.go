package sequencer

import (
	"math"
	"math/rand"
)

// pathEpsilon keeps pathValue == 1.0 from selecting one past the last
// root-to-leaf path.
const pathEpsilon = 1e-9

// Flatten linearizes one root-to-leaf path of the tree into a single
// playable sequence. The visited nodes are reordered per branchOrder, each
// node's active steps are reordered per the trunk's playback order, and
// every emitted step is tagged with its source depth and in-node index.
//
// The result declares OrderForward: branch and step ordering are baked
// into the linear layout, so consumers always traverse it front to back.
// Random shuffles happen here, once per flatten, never per tick.
//
// A nil tree bypasses flattening and returns the trunk as-is.
func Flatten(tree *TreeNode, trunk *Sequence, branchesCount int, pathValue float64, branchOrder PlaybackOrder, rng *rand.Rand) *Sequence {
	if tree == nil {
		return trunk.Clone()
	}

	nodes := selectPath(tree, branchesCount, pathValue)
	nodes = reorderNodes(nodes, branchOrder, rng)

	out := &Sequence{
		Scale:         trunk.Scale,
		PlaybackOrder: OrderForward,
	}
	for _, node := range nodes {
		active := node.Sequence.ActiveSteps()
		tagged := make([]Step, len(active))
		copy(tagged, active)
		for i := range tagged {
			tagged[i].OriginalIndex = i
		}
		for _, i := range orderIndexes(trunk.PlaybackOrder, len(tagged), rng) {
			st := tagged[i]
			st.Depth = node.Depth
			out.Steps = append(out.Steps, st)
		}
	}
	out.Length = len(out.Steps)
	return out
}

// selectPath walks root to leaf following the binary rendering of the
// continuous path value, most-significant (shallowest) bit first: 0 takes
// the left child, 1 the right. Every visited node is collected, root
// included. A missing child ends the path at the last valid node.
func selectPath(root *TreeNode, branchesCount int, pathValue float64) []*TreeNode {
	maxPaths := 1 << branchesCount
	pathIndex := int(math.Floor(pathValue * (float64(maxPaths) - pathEpsilon)))
	if pathIndex < 0 {
		pathIndex = 0
	}
	if pathIndex >= maxPaths {
		pathIndex = maxPaths - 1
	}

	nodes := []*TreeNode{root}
	node := root
	for i := 0; i < branchesCount; i++ {
		next := node.Left
		if (pathIndex>>(branchesCount-1-i))&1 == 1 {
			next = node.Right
		}
		if next == nil {
			break
		}
		nodes = append(nodes, next)
		node = next
	}
	return nodes
}

func reorderNodes(nodes []*TreeNode, order PlaybackOrder, rng *rand.Rand) []*TreeNode {
	idx := orderIndexes(order, len(nodes), rng)
	out := make([]*TreeNode, len(idx))
	for i, j := range idx {
		out[i] = nodes[j]
	}
	return out
}

// orderIndexes returns the traversal index order for n elements under the
// given policy. Pendulum appends the reversed interior (both endpoints
// excluded) to the forward pass: [0..n-1, n-2..1].
func orderIndexes(order PlaybackOrder, n int, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	switch order {
	case OrderBackward:
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			idx[i], idx[j] = idx[j], idx[i]
		}
	case OrderPendulum:
		for i := n - 2; i >= 1; i-- {
			idx = append(idx, i)
		}
	case OrderRandom:
		rng.Shuffle(n, func(i, j int) {
			idx[i], idx[j] = idx[j], idx[i]
		})
	}
	return idx
}
