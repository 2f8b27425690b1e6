package sequencer

import (
	"sync"
	"time"

	"fractal-seq/debug"
)

// ticksPerBeat is the transport callback resolution: 1/32 beat, finer
// than the smallest playable step.
const ticksPerBeat = 32

// Transport drives the scheduler from the wall clock. It owns the engine
// context and the tick goroutine; edits go through the channel and only
// ever reach the transport as Play/Stop/SetTempo calls.
type Transport struct {
	mu        sync.RWMutex
	engine    *Engine
	scheduler *Scheduler
	channel   *Channel

	playing  bool
	t0       time.Time
	stopChan chan struct{}
}

// NewTransport wires a channel and a sink into a playable transport.
func NewTransport(channel *Channel, sink Sink) *Transport {
	return &Transport{
		engine: &Engine{
			Tempo:           120,
			RatchetsEnabled: true,
			Lookahead:       DefaultLookahead,
			Sink:            sink,
		},
		scheduler: NewScheduler(channel),
		channel:   channel,
	}
}

// Channel returns the channel this transport plays.
func (t *Transport) Channel() *Channel {
	return t.channel
}

// Play starts the tick loop. No-op while already playing.
func (t *Transport) Play() {
	t.mu.Lock()
	if t.playing {
		t.mu.Unlock()
		return
	}
	t.playing = true
	t.t0 = time.Now()
	t.stopChan = make(chan struct{})
	t.scheduler.Start()
	// Sinks that translate schedule time to wall time need our origin.
	if cs, ok := t.engine.Sink.(interface{ SetClock(time.Time) }); ok {
		cs.SetClock(t.t0)
	}
	stop := t.stopChan
	t.mu.Unlock()

	debug.Log("transport", "play, tempo=%.1f", t.Tempo())
	go t.tickLoop(stop)
}

// Stop halts the tick loop, resets the scheduler, and releases anything
// still sounding. Safe to call at any point between ticks.
func (t *Transport) Stop() {
	t.mu.Lock()
	if !t.playing {
		t.mu.Unlock()
		return
	}
	t.playing = false
	close(t.stopChan)
	t.scheduler.Stop(t.engine)
	t.mu.Unlock()
	debug.Log("transport", "stop")
}

// Playing reports whether the transport is running.
func (t *Transport) Playing() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.playing
}

// SetTempo clamps to 20-300 BPM. Takes effect on the next tick without
// resetting playback state.
func (t *Transport) SetTempo(bpm float64) {
	if bpm < 20 {
		bpm = 20
	}
	if bpm > 300 {
		bpm = 300
	}
	t.mu.Lock()
	t.engine.Tempo = bpm
	t.mu.Unlock()
}

// Tempo returns the current BPM.
func (t *Transport) Tempo() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.engine.Tempo
}

// SetRatchetsEnabled toggles the global ratchet flag read at trigger time.
func (t *Transport) SetRatchetsEnabled(on bool) {
	t.mu.Lock()
	t.engine.RatchetsEnabled = on
	t.mu.Unlock()
}

// RatchetsEnabled reports the global ratchet flag.
func (t *Transport) RatchetsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.engine.RatchetsEnabled
}

// LastTriggeredStep exposes the scheduler's playhead for display.
func (t *Transport) LastTriggeredStep() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scheduler.LastTriggeredStep()
}

// tickLoop invokes the scheduler at a fixed fine subdivision of the
// current tempo. The interval is recomputed every pass so live tempo
// changes take effect immediately.
func (t *Transport) tickLoop(stop chan struct{}) {
	for {
		t.mu.RLock()
		tempo := t.engine.Tempo
		t.mu.RUnlock()
		interval := time.Duration(float64(time.Second) * 60.0 / tempo / ticksPerBeat)

		select {
		case <-stop:
			return
		case <-time.After(interval):
			t.mu.Lock()
			if t.playing {
				now := time.Since(t.t0).Seconds()
				t.scheduler.Tick(t.engine, now)
			}
			t.mu.Unlock()
		}
	}
}
