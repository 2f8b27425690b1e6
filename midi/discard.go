package midi

import "fractal-seq/debug"

// Discard is the sink used when no MIDI out port is available: triggers
// are logged and dropped, so the engine stays usable headless.
type Discard struct{}

func (Discard) TriggerNote(pitch int, duration float64, when float64) {
	debug.Log("midi", "discard trigger pitch=%d dur=%.3fs at=%.3fs", pitch, duration, when)
}

func (Discard) AllNotesOff() {}
