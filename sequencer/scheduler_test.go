package sequencer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trigger struct {
	pitch    int
	duration float64
	when     float64
}

type fakeSink struct {
	triggers []trigger
	allOff   int
}

func (f *fakeSink) TriggerNote(pitch int, duration float64, when float64) {
	f.triggers = append(f.triggers, trigger{pitch, duration, when})
}

func (f *fakeSink) AllNotesOff() { f.allOff++ }

// schedulerChannel builds a trunk-only channel (no branches) playing the
// given pitches forward.
func schedulerChannel(pitches ...int) *Channel {
	ch := NewChannel()
	p := ch.ActivePattern()
	p.BranchesCount = 0
	p.Trunk = testSequence(pitches...)
	ch.Regenerate()
	return ch
}

func testEngine(sink Sink) *Engine {
	return &Engine{
		Tempo:           120,
		RatchetsEnabled: true,
		Lookahead:       DefaultLookahead,
		Sink:            sink,
	}
}

func TestStepDuration(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.125, stepDuration(120, 1), 1e-12)
	assert.InDelta(t, 0.0625, stepDuration(120, 2), 1e-12)
	assert.InDelta(t, 0.5, stepDuration(120, 0.25), 1e-12)
	assert.InDelta(t, 0.25, stepDuration(60, 1), 1e-12)
	assert.InDelta(t, 0.125, stepDuration(0, 1), 1e-12, "non-positive tempo falls back to 120")
	assert.InDelta(t, 0.125, stepDuration(120, 0), 1e-12, "non-positive divMult falls back to 1")
}

func TestSchedulerBasicTiming(t *testing.T) {
	t.Parallel()

	// 120 BPM, divMult 1, default 50% gate: steps every 0.125s sounding
	// for 0.0625s each.
	sink := &fakeSink{}
	eng := testEngine(sink)
	s := NewScheduler(schedulerChannel(0, 2, 4, 5))
	s.Start()

	s.Tick(eng, 0)
	require.Len(t, sink.triggers, 1)
	assert.Equal(t, 60, sink.triggers[0].pitch)
	assert.InDelta(t, 0.0, sink.triggers[0].when, 1e-12)
	assert.InDelta(t, 0.0625, sink.triggers[0].duration, 1e-12)

	s.Tick(eng, 0.05)
	require.Len(t, sink.triggers, 2)
	assert.Equal(t, 62, sink.triggers[1].pitch)
	assert.InDelta(t, 0.125, sink.triggers[1].when, 1e-12)
}

func TestSchedulerNeverDoubleSchedules(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	eng := testEngine(sink)
	s := NewScheduler(schedulerChannel(0, 2))
	s.Start()

	s.Tick(eng, 0)
	n := len(sink.triggers)
	s.Tick(eng, 0)
	s.Tick(eng, 0)
	assert.Len(t, sink.triggers, n, "repeated ticks at the same clock add nothing")
}

func TestSchedulerIgnoresTicksWhileStopped(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	eng := testEngine(sink)
	s := NewScheduler(schedulerChannel(0))

	s.Tick(eng, 0)
	assert.Empty(t, sink.triggers)
}

func TestSchedulerRatchetSubdivision(t *testing.T) {
	t.Parallel()

	ch := NewChannel()
	p := ch.ActivePattern()
	p.BranchesCount = 0
	p.Trunk = testSequence(0, 4)
	p.Trunk.Steps[0].Ratchets = 4
	ch.Regenerate()

	sink := &fakeSink{}
	eng := testEngine(sink)
	s := NewScheduler(ch)
	s.Start()

	// Four 0.03125s sub-triggers fit in the 0.1s window; the next base
	// step at 0.125 does not.
	s.Tick(eng, 0)
	require.Len(t, sink.triggers, 4)
	for i, tr := range sink.triggers {
		assert.Equal(t, 60, tr.pitch)
		assert.InDelta(t, float64(i)*0.03125, tr.when, 1e-12)
		assert.InDelta(t, 0.015625, tr.duration, 1e-12, "gate scales with the ratchet slice")
	}
}

func TestSchedulerRatchetsDisabledPlaysOnce(t *testing.T) {
	t.Parallel()

	ch := NewChannel()
	p := ch.ActivePattern()
	p.BranchesCount = 0
	p.Trunk = testSequence(0, 4)
	p.Trunk.Steps[0].Ratchets = 4
	ch.Regenerate()

	sink := &fakeSink{}
	eng := testEngine(sink)
	eng.RatchetsEnabled = false
	s := NewScheduler(ch)
	s.Start()

	s.Tick(eng, 0)
	require.Len(t, sink.triggers, 1)
	assert.InDelta(t, 0.0625, sink.triggers[0].duration, 1e-12, "full step gate when ratchets are bypassed")
}

func TestSchedulerDivMultShortensSteps(t *testing.T) {
	t.Parallel()

	ch := schedulerChannel(0, 2, 4)
	ch.ActivePattern().DivMult = 2
	ch.Regenerate()

	sink := &fakeSink{}
	eng := testEngine(sink)
	s := NewScheduler(ch)
	s.Start()

	s.Tick(eng, 0)
	require.Len(t, sink.triggers, 2)
	assert.InDelta(t, 0.0625, sink.triggers[1].when, 1e-12)
}

func TestSchedulerGateOffStepIsSilentButAdvances(t *testing.T) {
	t.Parallel()

	ch := NewChannel()
	p := ch.ActivePattern()
	p.BranchesCount = 0
	p.Trunk = testSequence(0, 4, 7)
	p.Trunk.Steps[1].GateOn = false
	ch.Regenerate()

	sink := &fakeSink{}
	eng := testEngine(sink)
	eng.Lookahead = 0.3
	s := NewScheduler(ch)
	s.Start()

	s.Tick(eng, 0)
	require.Len(t, sink.triggers, 2)
	assert.InDelta(t, 0.0, sink.triggers[0].when, 1e-12)
	assert.InDelta(t, 0.25, sink.triggers[1].when, 1e-12, "silent step still occupies its slot")
	assert.Equal(t, 67, sink.triggers[1].pitch)
}

func TestSchedulerGateLengthVariants(t *testing.T) {
	t.Parallel()

	ch := NewChannel()
	p := ch.ActivePattern()
	p.BranchesCount = 0
	p.Trunk = testSequence(0, 0)
	p.Trunk.Steps[0].GateLength = GateTrigger
	p.Trunk.Steps[1].GateLength = GateTied
	ch.Regenerate()

	sink := &fakeSink{}
	eng := testEngine(sink)
	eng.Lookahead = 0.2
	s := NewScheduler(ch)
	s.Start()

	s.Tick(eng, 0)
	require.Len(t, sink.triggers, 2)
	assert.InDelta(t, TriggerGateSeconds, sink.triggers[0].duration, 1e-12)
	assert.InDelta(t, 0.125, sink.triggers[1].duration, 1e-12, "tied gate spans the full slot")
}

func TestSchedulerPitchOffsets(t *testing.T) {
	t.Parallel()

	// Step pitch 4 quantized in major stays 4; +2 root offset, +60 base.
	ch := schedulerChannel(4)
	ch.ActivePattern().RootOffset = 2

	sink := &fakeSink{}
	eng := testEngine(sink)
	s := NewScheduler(ch)
	s.Start()

	s.Tick(eng, 0)
	require.Len(t, sink.triggers, 1)
	assert.Equal(t, 66, sink.triggers[0].pitch)
}

func TestSchedulerQuantizesToTrunkScale(t *testing.T) {
	t.Parallel()

	ch := NewChannel()
	p := ch.ActivePattern()
	p.BranchesCount = 0
	p.Trunk = testSequence(1) // not in major, ties snap to the root
	ch.Regenerate()

	sink := &fakeSink{}
	eng := testEngine(sink)
	s := NewScheduler(ch)
	s.Start()

	s.Tick(eng, 0)
	require.Len(t, sink.triggers, 1)
	assert.Equal(t, 60, sink.triggers[0].pitch)
}

func TestSchedulerStopResetsAndReleases(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	eng := testEngine(sink)
	s := NewScheduler(schedulerChannel(0, 2))
	s.Start()
	s.Tick(eng, 0)
	require.NotEmpty(t, sink.triggers)
	assert.Equal(t, 0, s.LastTriggeredStep())

	s.Stop(eng)
	assert.False(t, s.Running())
	assert.Equal(t, 1, sink.allOff)
	assert.Equal(t, noStep, s.LastTriggeredStep())

	// Restart plays from the top.
	n := len(sink.triggers)
	s.Start()
	s.Tick(eng, 5.0)
	require.Len(t, sink.triggers, n+1)
	assert.Equal(t, 60, sink.triggers[n].pitch)
	assert.InDelta(t, 5.0, sink.triggers[n].when, 1e-12)
}

func TestSchedulerZeroLengthSequenceStaysSilent(t *testing.T) {
	t.Parallel()

	ch := schedulerChannel(0)
	ch.active.Store(&Snapshot{Seq: &Sequence{}, DivMult: 1})

	sink := &fakeSink{}
	eng := testEngine(sink)
	s := NewScheduler(ch)
	s.Start()

	s.Tick(eng, 0)
	assert.Empty(t, sink.triggers)
	s.Tick(eng, 0.5)
	assert.Empty(t, sink.triggers, "schedule time keeps moving without triggers")
}

func TestSchedulerIgnoresPatternEditsUntilRegenerate(t *testing.T) {
	t.Parallel()

	ch := schedulerChannel(4)
	pat := ch.ActivePattern()
	pat.RootOffset = 2
	pat.DivMult = 2
	ch.Regenerate()

	// Stale edits: the tick path only ever sees the snapshot, so these
	// stay invisible until the next Regenerate.
	pat.RootOffset = 50
	pat.DivMult = 0.25
	pat.Trunk.PlaybackOrder = OrderBackward

	sink := &fakeSink{}
	eng := testEngine(sink)
	s := NewScheduler(ch)
	s.Start()

	s.Tick(eng, 0)
	require.Len(t, sink.triggers, 2)
	assert.Equal(t, 66, sink.triggers[0].pitch)
	assert.InDelta(t, 0.0625, sink.triggers[1].when, 1e-12)

	ch.Regenerate()
	s.Tick(eng, 10)
	last := sink.triggers[len(sink.triggers)-1]
	assert.Equal(t, 114, last.pitch, "regeneration publishes the new offset")
}

func TestSchedulerReadsTrunkOrderPolicy(t *testing.T) {
	t.Parallel()

	// Backward trunk order applies twice: once baked into the flattened
	// layout, once at index resolution. Net effect is the original forward
	// pitch order.
	ch := NewChannel()
	p := ch.ActivePattern()
	p.BranchesCount = 0
	p.Trunk = testSequence(0, 4, 7)
	p.Trunk.PlaybackOrder = OrderBackward
	ch.Regenerate()

	require.Equal(t, OrderForward, ch.ActiveSequence().PlaybackOrder)

	sink := &fakeSink{}
	eng := testEngine(sink)
	eng.Lookahead = 0.3
	s := NewScheduler(ch)
	s.Start()

	s.Tick(eng, 0)
	require.Len(t, sink.triggers, 3)
	assert.Equal(t, []int{60, 64, 67}, []int{
		sink.triggers[0].pitch, sink.triggers[1].pitch, sink.triggers[2].pitch,
	})
}

func TestResolveStepIndexForward(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	got := make([]int, 0, 6)
	for n := int64(0); n < 6; n++ {
		got = append(got, resolveStepIndex(OrderForward, n, 4, rng))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 0, 1}, got)
}

func TestResolveStepIndexBackward(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	got := make([]int, 0, 6)
	for n := int64(0); n < 6; n++ {
		got = append(got, resolveStepIndex(OrderBackward, n, 4, rng))
	}
	assert.Equal(t, []int{3, 2, 1, 0, 3, 2}, got)
}

func TestResolveStepIndexPendulum(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	got := make([]int, 0, 8)
	for n := int64(0); n < 8; n++ {
		got = append(got, resolveStepIndex(OrderPendulum, n, 4, rng))
	}
	// Endpoints play once per cycle, interior twice.
	assert.Equal(t, []int{0, 1, 2, 3, 2, 1, 0, 1}, got)
}

func TestResolveStepIndexRandomStaysInRange(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	seen := map[int]bool{}
	for n := int64(0); n < 200; n++ {
		idx := resolveStepIndex(OrderRandom, n, 5, rng)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 5)
		seen[idx] = true
	}
	assert.Greater(t, len(seen), 1, "random order actually varies")
}

func TestResolveStepIndexSingleStep(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	for _, order := range []PlaybackOrder{OrderForward, OrderBackward, OrderPendulum, OrderRandom} {
		for n := int64(0); n < 4; n++ {
			assert.Equal(t, 0, resolveStepIndex(order, n, 1, rng))
		}
	}
}
