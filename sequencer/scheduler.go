package sequencer

import (
	"math/rand"
	"time"

	"fractal-seq/debug"
)

// Sink receives scheduled note triggers. Implementations handle synthesis
// or MIDI emission and honor the schedule time with best-effort latency
// compensation.
type Sink interface {
	// TriggerNote schedules one note: MIDI semitone pitch, sounding
	// duration in seconds, absolute schedule-clock time in seconds.
	TriggerNote(pitch int, duration float64, when float64)
	// AllNotesOff releases anything still sounding or pending.
	AllNotesOff()
}

// Engine carries the transport-wide playback context into the tick path,
// rather than having the scheduler capture it ambiently.
type Engine struct {
	Tempo           float64 // BPM
	RatchetsEnabled bool
	Lookahead       float64 // seconds scheduled ahead of the clock
	Sink            Sink
}

const (
	// DefaultLookahead is the scheduling window checked on every tick.
	DefaultLookahead = 0.1
	// BaseNote anchors step pitch 0 at middle C.
	BaseNote = 60

	noStep = -1
)

// Scheduler advances a cursor through the channel's active sequence and
// emits trigger events against the transport clock. It is driven entirely
// by Tick callbacks at a fixed fine subdivision of the tempo; it performs
// no I/O and allocates nothing on the tick path.
type Scheduler struct {
	channel *Channel

	running             bool
	currentBaseStep     int64 // logical step counter, only Stop resets it
	currentRatchetCount int
	nextNoteTime        float64 // absolute schedule time; zero means uninitialized
	lastTriggeredStep   int

	// Tick-path randomness for OrderRandom index resolution: re-rolled on
	// every resolution, unlike the channel's once-per-edit shuffles.
	rng *rand.Rand
}

// NewScheduler creates a scheduler reading from the given channel.
func NewScheduler(channel *Channel) *Scheduler {
	return &Scheduler{
		channel:           channel,
		lastTriggeredStep: noStep,
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start begins playback. No-op while already running.
func (s *Scheduler) Start() {
	s.running = true
}

// Stop halts playback and resets all tick state: step counter to zero,
// ratchet count to zero, schedule time to the zero sentinel, last
// triggered step to none. The sink gets an explicit all-notes-off so no
// trigger is left without a release.
func (s *Scheduler) Stop(eng *Engine) {
	s.running = false
	s.currentBaseStep = 0
	s.currentRatchetCount = 0
	s.nextNoteTime = 0
	s.lastTriggeredStep = noStep
	if eng != nil && eng.Sink != nil {
		eng.Sink.AllNotesOff()
	}
}

// Running reports whether the scheduler is playing.
func (s *Scheduler) Running() bool {
	return s.running
}

// LastTriggeredStep returns the index into the active sequence of the
// most recent trigger, or -1 if nothing has fired since the last Stop.
func (s *Scheduler) LastTriggeredStep() int {
	return s.lastTriggeredStep
}

// Tick is the transport callback. now is the current schedule-clock time
// in seconds. It schedules every sub-trigger falling inside the lookahead
// window; once nextNoteTime is ahead of now+lookahead it does nothing, so
// a fine tick cadence never double-schedules.
//
// Nothing here may panic out to the transport driver; anomalies degrade
// to silence for the tick.
func (s *Scheduler) Tick(eng *Engine, now float64) {
	if !s.running {
		return
	}
	if s.nextNoteTime == 0 {
		s.nextNoteTime = now
	}
	for s.nextNoteTime <= now+eng.Lookahead {
		if !s.scheduleNext(eng) {
			return
		}
	}
}

// scheduleNext emits at most one sub-trigger at nextNoteTime and advances
// the cursor past it. Returns false when the tick should stop early.
//
// Everything it needs from the pattern comes out of the atomically
// swapped snapshot; the live pattern belongs to the edit goroutine and
// is never read here.
func (s *Scheduler) scheduleNext(eng *Engine) bool {
	snap := s.channel.PlaybackSnapshot()
	if snap == nil {
		s.nextNoteTime += stepDuration(eng.Tempo, 1)
		return true
	}
	seq := snap.Seq

	stepDur := stepDuration(eng.Tempo, snap.DivMult)

	// A zero-length active sequence produces no trigger events; keep the
	// schedule time moving so playback resumes cleanly after an edit.
	if seq == nil || seq.Length <= 0 {
		s.nextNoteTime += stepDur
		return true
	}

	idx := resolveStepIndex(snap.Order, s.currentBaseStep, seq.Length, s.rng)
	if idx < 0 || idx >= seq.Length {
		// Cannot happen with modulo resolution; skip the tick and reset
		// the counter to keep playback alive.
		debug.Log("sched", "step index %d out of range (len=%d), resetting", idx, seq.Length)
		s.currentBaseStep = 0
		return false
	}
	step := &seq.Steps[idx]

	ratchets := 1
	if eng.RatchetsEnabled && step.Ratchets > 1 {
		ratchets = step.Ratchets
	}
	ratchetDur := stepDur / float64(ratchets)

	if step.GateOn && eng.Sink != nil {
		pitch := Quantize(step.Pitch, seq.Scale) + snap.RootOffset + BaseNote
		eng.Sink.TriggerNote(pitch, step.GateLength.Duration(ratchetDur), s.nextNoteTime)
		s.lastTriggeredStep = idx
	}

	s.currentRatchetCount++
	s.nextNoteTime += ratchetDur
	if s.currentRatchetCount >= ratchets {
		s.currentRatchetCount = 0
		s.currentBaseStep++
	}
	return true
}

// stepDuration is the nominal sub-step length: a sixteenth note divided
// by divMult. The same division applies whether divMult multiplies or
// divides the clock; higher divMult always means shorter steps.
func stepDuration(tempo, divMult float64) float64 {
	if tempo <= 0 {
		tempo = 120
	}
	if divMult <= 0 {
		divMult = 1
	}
	sixteenth := 60.0 / tempo / 4.0
	return sixteenth / divMult
}

// resolveStepIndex maps the monotonically increasing step counter onto a
// sequence index under the playback order. The policy is the trunk's
// order as captured in the snapshot: the flattened sequence's own order
// is always forward by construction and describes concatenation only.
func resolveStepIndex(order PlaybackOrder, n int64, length int, rng *rand.Rand) int {
	if length <= 1 {
		return 0
	}
	switch order {
	case OrderBackward:
		return (length - 1) - int(n%int64(length))
	case OrderPendulum:
		cycle := int64(2*length - 2)
		pos := int(n % cycle)
		if pos < length {
			return pos
		}
		return int(cycle) - pos
	case OrderRandom:
		return rng.Intn(length)
	default:
		return int(n % int64(length))
	}
}
