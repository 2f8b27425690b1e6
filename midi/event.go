package midi

import "time"

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
)

// Event is one timed entry in the sink's dispatch queue.
type Event struct {
	When     time.Time
	Type     uint8 // NoteOn, NoteOff
	Note     uint8
	Velocity uint8
}
