package sequencer

import (
	"math/rand"
	"sync/atomic"
	"time"
)

// NumPatterns is the bank size per channel.
const NumPatterns = 8

// Pattern bundles one trunk sequence with its fractal parameters.
type Pattern struct {
	Trunk          *Sequence      `json:"trunk"`
	BranchesCount  int            `json:"branchesCount"` // tree depth
	PathValue      float64        `json:"pathValue"`     // 0.0-1.0 path selector
	MutationAmount float64        `json:"mutationAmount"`
	RootOffset     int            `json:"rootOffsetSemitones"`
	DivMult        float64        `json:"divMult"` // clock subdivision factor
	BranchConfig   []BranchConfig `json:"branchConfig"`
	BranchOrder    PlaybackOrder  `json:"branchPlaybackOrder"`
}

// NewPattern returns a pattern with an all-gates-off trunk and the
// default fractal parameters.
func NewPattern() *Pattern {
	return &Pattern{
		Trunk:          NewSequence(),
		BranchesCount:  1,
		PathValue:      0,
		MutationAmount: 2,
		DivMult:        1,
	}
}

// normalize repairs a pattern after JSON load or external construction so
// the builder and flattener can run on it without error.
func (p *Pattern) normalize() {
	if p.Trunk == nil {
		p.Trunk = NewSequence()
	}
	if p.Trunk.Steps == nil {
		p.Trunk.Steps = make([]Step, SeqCapacity)
	}
	if p.Trunk.Length < 1 {
		p.Trunk.Length = 1
	}
	if p.Trunk.Length > len(p.Trunk.Steps) {
		p.Trunk.Length = len(p.Trunk.Steps)
	}
	for i := range p.Trunk.Steps {
		if p.Trunk.Steps[i].Ratchets < 1 {
			p.Trunk.Steps[i].Ratchets = 1
		}
	}
	if p.BranchesCount < 0 {
		p.BranchesCount = 0
	}
	if p.PathValue < 0 {
		p.PathValue = 0
	}
	if p.PathValue > 1 {
		p.PathValue = 1
	}
	if p.DivMult <= 0 {
		p.DivMult = 1
	}
}

// Snapshot bundles the flattened sequence with the playback parameters
// it was generated under. The scheduler reads one snapshot per resolve
// and never touches the live pattern, so the edit goroutine can mutate
// pattern fields freely between Regenerate calls.
type Snapshot struct {
	Seq        *Sequence
	DivMult    float64
	RootOffset int
	// Order is the trunk's step order at generation time, read by the
	// scheduler as its index-resolution policy. The sequence's own
	// PlaybackOrder is always forward and describes layout only.
	Order PlaybackOrder
}

// Channel owns a bank of patterns, the tree generated from the active
// one, and the cached flattened snapshot the scheduler plays from.
//
// The cache is the defining consistency point: random branch and step
// shuffles are rolled once per regeneration, so the active sequence is
// stable across ticks until an explicit edit. The snapshot pointer is
// the only state shared with the tick path; the scheduler only ever
// loads it, never triggers a rebuild.
type Channel struct {
	Patterns [NumPatterns]*Pattern `json:"patterns"`
	Active   int                   `json:"active"`

	tree   *TreeNode
	active atomic.Pointer[Snapshot]

	// Edit-path randomness (mutate jitter, flatten shuffles). Distinct
	// from the scheduler's per-tick RNG: these re-roll per structural
	// edit only.
	editRNG *rand.Rand
}

// NewChannel returns a channel with a full bank of default patterns and
// an initial flattened sequence.
func NewChannel() *Channel {
	c := &Channel{}
	for i := range c.Patterns {
		c.Patterns[i] = NewPattern()
	}
	c.normalize()
	c.Regenerate()
	return c
}

// normalize repairs the channel after JSON load: nil patterns, missing
// RNG, out-of-range active index.
func (c *Channel) normalize() {
	for i := range c.Patterns {
		if c.Patterns[i] == nil {
			c.Patterns[i] = NewPattern()
		}
		c.Patterns[i].normalize()
	}
	if c.Active < 0 || c.Active >= NumPatterns {
		c.Active = 0
	}
	if c.editRNG == nil {
		c.editRNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}

// ActivePattern returns the pattern currently driving playback.
func (c *Channel) ActivePattern() *Pattern {
	return c.Patterns[c.Active]
}

// SelectPattern switches the bank slot and rebuilds.
func (c *Channel) SelectPattern(idx int) {
	if idx < 0 || idx >= NumPatterns {
		return
	}
	c.Active = idx
	c.Regenerate()
}

// Regenerate rebuilds the fractal tree from the active pattern and swaps
// in a freshly flattened snapshot. Every edit to trunk content, branch
// configuration, branch count, path value, order policies, div/mult, or
// root offset must be followed by a call here before the next tick
// observes it; there is no partial-invalidation path.
func (c *Channel) Regenerate() {
	c.normalize()
	p := c.ActivePattern()
	c.tree = BuildTree(p.Trunk, p.BranchConfig, p.BranchesCount, c.editRNG)
	flat := Flatten(c.tree, p.Trunk, p.BranchesCount, p.PathValue, p.BranchOrder, c.editRNG)
	// Single pointer swap: the tick path never observes a half-built
	// sequence or a pattern field mid-edit.
	c.active.Store(&Snapshot{
		Seq:        flat,
		DivMult:    p.DivMult,
		RootOffset: p.RootOffset,
		Order:      p.Trunk.PlaybackOrder,
	})
}

// MutateTrunk jitters the active pattern's gated trunk pitches by the
// pattern's mutation amount and rebuilds. The trunk itself changes, so
// the jitter persists with the pattern.
func (c *Channel) MutateTrunk() {
	c.normalize()
	p := c.ActivePattern()
	p.Trunk = Mutate(p.Trunk, p.MutationAmount, c.editRNG)
	c.Regenerate()
}

// PlaybackSnapshot returns the current playback snapshot. Nil only
// before the first Regenerate.
func (c *Channel) PlaybackSnapshot() *Snapshot {
	return c.active.Load()
}

// ActiveSequence returns the current flattened sequence. Nil only before
// the first Regenerate.
func (c *Channel) ActiveSequence() *Sequence {
	if snap := c.active.Load(); snap != nil {
		return snap.Seq
	}
	return nil
}

// Tree returns the most recently generated tree, for visualization.
func (c *Channel) Tree() *TreeNode {
	return c.tree
}
