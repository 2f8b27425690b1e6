package sequencer

import "math/rand"

// BranchConfig is the per-depth transformation recipe. Index i configures
// the transformation applied when deriving depth i+1 children from depth
// i parents.
type BranchConfig struct {
	Left       ModKind `json:"left"`
	Right      ModKind `json:"right"`
	LeftParam  float64 `json:"leftParam"`
	RightParam float64 `json:"rightParam"`
}

// Recipe used for any depth with no configured branch.
var defaultBranchConfig = BranchConfig{
	Left:       ModTranspose,
	Right:      ModTranspose,
	LeftParam:  7,
	RightParam: -5,
}

// TreeNode is one node of the fractal tree. Each parent exclusively owns
// its two children; trees are rebuilt whole on every regeneration and
// never patched in place.
type TreeNode struct {
	Sequence *Sequence
	Depth    int
	Mod      ModKind // transformation that produced this node, ModNone at root
	Left     *TreeNode
	Right    *TreeNode
}

// BuildTree derives a complete binary tree of sequences from the trunk.
// Every node below maxDepth has exactly two children; nodes at maxDepth
// have none. maxDepth 0 yields the root alone.
func BuildTree(trunk *Sequence, config []BranchConfig, maxDepth int, rng *rand.Rand) *TreeNode {
	root := &TreeNode{Sequence: trunk.Clone()}
	grow(root, config, maxDepth, rng)
	return root
}

func grow(node *TreeNode, config []BranchConfig, maxDepth int, rng *rand.Rand) {
	if node.Depth >= maxDepth {
		return
	}
	cfg := defaultBranchConfig
	if node.Depth < len(config) {
		cfg = config[node.Depth]
	}
	node.Left = &TreeNode{
		Sequence: applyModification(node.Sequence, cfg.Left, cfg.LeftParam, rng),
		Depth:    node.Depth + 1,
		Mod:      cfg.Left,
	}
	node.Right = &TreeNode{
		Sequence: applyModification(node.Sequence, cfg.Right, cfg.RightParam, rng),
		Depth:    node.Depth + 1,
		Mod:      cfg.Right,
	}
	grow(node.Left, config, maxDepth, rng)
	grow(node.Right, config, maxDepth, rng)
}

// applyModification produces a child sequence from a parent. An unset
// mutate parameter falls back to 0.3.
func applyModification(seq *Sequence, kind ModKind, param float64, rng *rand.Rand) *Sequence {
	switch kind {
	case ModTranspose:
		return Transpose(seq, int(param))
	case ModInvert:
		return Invert(seq)
	case ModReverse:
		return Reverse(seq)
	case ModMutate:
		amount := param
		if amount == 0 {
			amount = 0.3
		}
		return Mutate(seq, amount, rng)
	default:
		return seq.Clone()
	}
}

// CountNodes walks the whole tree. Cheap at the depths in play here.
func (n *TreeNode) CountNodes() int {
	if n == nil {
		return 0
	}
	return 1 + n.Left.CountNodes() + n.Right.CountNodes()
}
