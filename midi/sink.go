package midi

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"fractal-seq/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// allNotesOffCC is the channel-mode controller that silences a channel.
const allNotesOffCC = 123

// DefaultVelocity is used for every scheduled trigger.
const DefaultVelocity = 100

// Sink emits scheduled notes to a MIDI out port. Triggers arrive with
// absolute schedule-clock times (seconds since SetClock's origin); a
// dispatch goroutine sends note-on at that wall time and note-off after
// the trigger's duration.
type Sink struct {
	mu       sync.Mutex
	send     func(gomidi.Message) error
	channel  uint8 // 0-based wire channel
	t0       time.Time
	queue    []Event
	sounding map[uint8]int // refcount of notes with a pending note-off

	wakeChan chan struct{}
	stopChan chan struct{}
}

// NewSink opens the named MIDI out port and starts the dispatch loop.
// channel is the 1-based MIDI channel.
func NewSink(portName string, channel uint8) (*Sink, error) {
	var send func(gomidi.Message) error
	for _, port := range gomidi.GetOutPorts() {
		if port.String() == portName {
			s, err := gomidi.SendTo(port)
			if err != nil {
				return nil, err
			}
			send = s
			break
		}
	}
	if send == nil {
		return nil, fmt.Errorf("midi out port %q not found", portName)
	}
	return newSinkWithSender(send, channel), nil
}

// newSinkWithSender is the injectable constructor used by tests.
func newSinkWithSender(send func(gomidi.Message) error, channel uint8) *Sink {
	if channel >= 1 {
		channel--
	}
	s := &Sink{
		send:     send,
		channel:  channel,
		t0:       time.Now(),
		sounding: make(map[uint8]int),
		wakeChan: make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
	go s.dispatchLoop()
	return s
}

// SetClock pins schedule time zero to the given wall instant. The
// transport calls this when playback starts so the sink and scheduler
// share one time base.
func (s *Sink) SetClock(t0 time.Time) {
	s.mu.Lock()
	s.t0 = t0
	s.mu.Unlock()
	s.wake()
}

// TriggerNote enqueues a note-on at `when` and its note-off at
// when+duration. Pitch is clamped to the MIDI range.
func (s *Sink) TriggerNote(pitch int, duration float64, when float64) {
	if pitch < 0 {
		pitch = 0
	}
	if pitch > 127 {
		pitch = 127
	}
	note := uint8(pitch)

	s.mu.Lock()
	on := s.t0.Add(time.Duration(when * float64(time.Second)))
	off := s.t0.Add(time.Duration((when + duration) * float64(time.Second)))
	s.queue = append(s.queue,
		Event{When: on, Type: NoteOn, Note: note, Velocity: DefaultVelocity},
		Event{When: off, Type: NoteOff, Note: note},
	)
	sort.SliceStable(s.queue, func(i, j int) bool {
		return s.queue[i].When.Before(s.queue[j].When)
	})
	s.mu.Unlock()
	s.wake()
}

// AllNotesOff drops every pending event and releases every note that got
// a note-on without its note-off yet, then sends the channel-mode all
// notes off as a backstop.
func (s *Sink) AllNotesOff() {
	s.mu.Lock()
	s.queue = s.queue[:0]
	notes := make([]uint8, 0, len(s.sounding))
	for note := range s.sounding {
		notes = append(notes, note)
	}
	s.sounding = make(map[uint8]int)
	s.mu.Unlock()

	for _, note := range notes {
		s.send(gomidi.NoteOff(s.channel, note))
	}
	s.send(gomidi.ControlChange(s.channel, allNotesOffCC, 0))
	debug.Log("midi", "all notes off (%d released)", len(notes))
}

// Close stops the dispatch loop and silences the channel.
func (s *Sink) Close() {
	s.AllNotesOff()
	close(s.stopChan)
}

// wake signals the dispatch loop to recalculate its next deadline.
func (s *Sink) wake() {
	select {
	case s.wakeChan <- struct{}{}:
	default:
	}
}

// dispatchLoop waits for the earliest queued event and sends it on time.
// A wake (new event, clock change) interrupts the wait so the deadline is
// recomputed.
func (s *Sink) dispatchLoop() {
	for {
		s.mu.Lock()
		var wait time.Duration
		haveEvent := len(s.queue) > 0
		if haveEvent {
			wait = time.Until(s.queue[0].When)
		}
		s.mu.Unlock()

		if !haveEvent {
			select {
			case <-s.stopChan:
				return
			case <-s.wakeChan:
			}
			continue
		}

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-s.stopChan:
				timer.Stop()
				return
			case <-s.wakeChan:
				timer.Stop()
				continue
			case <-timer.C:
			}
		}

		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			continue
		}
		evt := s.queue[0]
		s.queue = s.queue[1:]
		emit := true
		switch evt.Type {
		case NoteOn:
			s.sounding[evt.Note]++
		case NoteOff:
			if s.sounding[evt.Note] > 0 {
				s.sounding[evt.Note]--
			}
			if s.sounding[evt.Note] > 0 {
				// Another trigger still holds this pitch; swallow the
				// release so it isn't cut short.
				emit = false
			} else {
				delete(s.sounding, evt.Note)
			}
		}
		s.mu.Unlock()

		if !emit {
			continue
		}
		switch evt.Type {
		case NoteOn:
			s.send(gomidi.NoteOn(s.channel, evt.Note, evt.Velocity))
		case NoteOff:
			s.send(gomidi.NoteOff(s.channel, evt.Note))
		}
	}
}

// OutPorts lists the names of the available MIDI out ports.
func OutPorts() []string {
	var names []string
	for _, port := range gomidi.GetOutPorts() {
		names = append(names, port.String())
	}
	return names
}
