package sequencer

// SeqCapacity is the fixed step capacity of an edited sequence.
const SeqCapacity = 32

// GateLength selects how long a triggered note sounds relative to the
// ratchet slot that fired it.
type GateLength int

const (
	GateTrigger GateLength = iota // fixed-length blip, tempo independent
	Gate10
	Gate25
	Gate50
	Gate75
	Gate90
	GateTied
	GateLengthCount
)

// TriggerGateSeconds is the fixed gate time used by GateTrigger.
const TriggerGateSeconds = 0.006

// Gate length values (as fraction of the ratchet slot)
var gateLengthFractions = [GateLengthCount]float64{
	GateTrigger: 0,
	Gate10:      0.10,
	Gate25:      0.25,
	Gate50:      0.50,
	Gate75:      0.75,
	Gate90:      0.90,
	GateTied:    1.0,
}

var gateLengthNames = []string{"Trig", "10%", "25%", "50%", "75%", "90%", "Tied"}

func (g GateLength) String() string {
	if g < 0 || int(g) >= len(gateLengthNames) {
		return "?"
	}
	return gateLengthNames[g]
}

// Duration converts the gate length into seconds for one ratchet slot.
func (g GateLength) Duration(ratchetDuration float64) float64 {
	if g == GateTrigger {
		return TriggerGateSeconds
	}
	if g < 0 || g >= GateLengthCount {
		return ratchetDuration
	}
	return ratchetDuration * gateLengthFractions[g]
}

// PlaybackOrder governs traversal order. It is used both for in-node step
// traversal and for branch-node traversal along a flattened path.
type PlaybackOrder int

const (
	OrderForward PlaybackOrder = iota
	OrderBackward
	OrderPendulum
	OrderRandom
	OrderCount
)

var orderNames = []string{"Forward", "Backward", "Pendulum", "Random"}

func (o PlaybackOrder) String() string {
	if o < 0 || int(o) >= len(orderNames) {
		return "?"
	}
	return orderNames[o]
}

// Step is one slot in a sequence.
type Step struct {
	Pitch      int        `json:"pitch"` // semitones from root, pre-quantization
	GateOn     bool       `json:"gateOn"`
	Ratchets   int        `json:"ratchets"` // sub-triggers per step, >= 1
	GateLength GateLength `json:"gateLength"`
	Slew       float64    `json:"slew"` // portamento amount 0-1, carried but not scheduled

	// Set by the flattener only: which tree depth and which in-node slot
	// this step came from. Consumers read them for display, nothing more.
	Depth         int `json:"-"`
	OriginalIndex int `json:"-"`
}

// Sequence is an ordered step buffer plus playback policy. Edited
// sequences hold SeqCapacity slots with Length marking the active prefix;
// flattened sequences may be longer, with Length == len(Steps).
type Sequence struct {
	Steps         []Step        `json:"steps"`
	Length        int           `json:"length"`
	Scale         ScaleType     `json:"scale"`
	PlaybackOrder PlaybackOrder `json:"playbackOrder"`
}

// NewSequence returns an all-gates-off sequence at full capacity.
func NewSequence() *Sequence {
	s := &Sequence{
		Steps:  make([]Step, SeqCapacity),
		Length: 16,
		Scale:  ScaleMajor,
	}
	for i := range s.Steps {
		s.Steps[i].Ratchets = 1
		s.Steps[i].GateLength = Gate50
	}
	return s
}

// Clone copies the sequence, steps array element-wise.
func (s *Sequence) Clone() *Sequence {
	c := *s
	c.Steps = make([]Step, len(s.Steps))
	copy(c.Steps, s.Steps)
	return &c
}

// ActiveSteps returns the playable prefix. Steps beyond Length are inert
// storage and are never read by transformations or flattening.
func (s *Sequence) ActiveSteps() []Step {
	n := s.Length
	if n > len(s.Steps) {
		n = len(s.Steps)
	}
	if n < 0 {
		n = 0
	}
	return s.Steps[:n]
}
