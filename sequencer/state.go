package sequencer

// State is the persisted project shape: one channel's pattern bank plus
// transport preferences. Runtime-only playback fields live on the
// scheduler and are never serialized.
type State struct {
	ProjectName     string   `json:"-"`
	Tempo           float64  `json:"tempo"`
	RatchetsEnabled bool     `json:"ratchetsEnabled"`
	Channel         *Channel `json:"channel"`
}

// NewState creates a fresh state with defaults.
func NewState() *State {
	return &State{
		Tempo:           120,
		RatchetsEnabled: true,
		Channel:         NewChannel(),
	}
}

// normalize repairs a state after JSON load so the tree builder and
// flattener can run on it immediately.
func (s *State) normalize() {
	if s.Tempo <= 0 {
		s.Tempo = 120
	}
	if s.Channel == nil {
		s.Channel = NewChannel()
		return
	}
	s.Channel.normalize()
	s.Channel.Regenerate()
}
