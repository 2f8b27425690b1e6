package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fractal-seq/sequencer"
	"fractal-seq/widgets"
)

// refreshInterval paces playhead redraws while the transport runs.
const refreshInterval = 100 * time.Millisecond

type Model struct {
	Transport *sequencer.Transport
	State     *sequencer.State

	cursor    int // selected trunk step
	editDepth int // branch-config depth being edited
	status    string
	quitting  bool
}

type frameMsg time.Time

func NewModel(transport *sequencer.Transport, state *sequencer.State) Model {
	return Model{
		Transport: transport,
		State:     state,
	}
}

func frameTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return frameTick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())
	case frameMsg:
		return m, frameTick()
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	ch := m.Transport.Channel()
	pat := ch.ActivePattern()
	trunk := pat.Trunk
	step := &trunk.Steps[m.cursor]
	m.status = ""

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		m.Transport.Stop()
		return m, tea.Quit

	case "p":
		if m.Transport.Playing() {
			m.Transport.Stop()
		} else {
			m.Transport.Play()
		}

	case "+", "=":
		m.Transport.SetTempo(m.Transport.Tempo() + 5)
	case "-", "_":
		m.Transport.SetTempo(m.Transport.Tempo() - 5)

	case "t":
		m.Transport.SetRatchetsEnabled(!m.Transport.RatchetsEnabled())

	// Trunk step editing. Everything below regenerates.
	case "h", "left":
		if m.cursor > 0 {
			m.cursor--
		}
	case "l", "right":
		if m.cursor < trunk.Length-1 {
			m.cursor++
		}
	case "j", "down":
		step.Pitch--
		ch.Regenerate()
	case "k", "up":
		step.Pitch++
		ch.Regenerate()
	case " ":
		step.GateOn = !step.GateOn
		ch.Regenerate()
	case "r":
		if step.Ratchets > 1 {
			step.Ratchets--
			ch.Regenerate()
		}
	case "R":
		if step.Ratchets < 8 {
			step.Ratchets++
			ch.Regenerate()
		}
	case "g":
		if step.GateLength > sequencer.GateTrigger {
			step.GateLength--
			ch.Regenerate()
		}
	case "G":
		if step.GateLength < sequencer.GateTied {
			step.GateLength++
			ch.Regenerate()
		}
	case "[":
		if trunk.Length > 1 {
			trunk.Length--
			if m.cursor >= trunk.Length {
				m.cursor = trunk.Length - 1
			}
			ch.Regenerate()
		}
	case "]":
		if trunk.Length < sequencer.SeqCapacity {
			trunk.Length++
			ch.Regenerate()
		}

	// Policies and fractal parameters.
	case "o":
		trunk.PlaybackOrder = (trunk.PlaybackOrder + 1) % sequencer.OrderCount
		ch.Regenerate()
	case "O":
		pat.BranchOrder = (pat.BranchOrder + 1) % sequencer.OrderCount
		ch.Regenerate()
	case "s":
		trunk.Scale = (trunk.Scale + 1) % sequencer.ScaleCount
		ch.Regenerate()
	case "b":
		if pat.BranchesCount > 0 {
			pat.BranchesCount--
			if m.editDepth >= pat.BranchesCount {
				m.editDepth = max(0, pat.BranchesCount-1)
			}
			ch.Regenerate()
		}
	case "B":
		if pat.BranchesCount < 3 {
			pat.BranchesCount++
			ch.Regenerate()
		}
	case "v":
		pat.PathValue -= 0.05
		if pat.PathValue < 0 {
			pat.PathValue = 0
		}
		ch.Regenerate()
	case "V":
		pat.PathValue += 0.05
		if pat.PathValue > 1 {
			pat.PathValue = 1
		}
		ch.Regenerate()
	case "d":
		pat.DivMult /= 2
		if pat.DivMult < 0.25 {
			pat.DivMult = 0.25
		}
		ch.Regenerate()
	case "D":
		pat.DivMult *= 2
		if pat.DivMult > 8 {
			pat.DivMult = 8
		}
		ch.Regenerate()
	case "z":
		pat.RootOffset--
		ch.Regenerate()
	case "x":
		pat.RootOffset++
		ch.Regenerate()

	case "a":
		ch.MutateTrunk()
	case "A":
		pat.MutationAmount++
		if pat.MutationAmount > 12 {
			pat.MutationAmount = 1
		}

	// Branch recipe editing at the selected depth.
	case "e":
		m.editDepth = (m.editDepth + 1) % max(1, pat.BranchesCount)
	case "m":
		cfg := m.branchConfigAt(pat, m.editDepth)
		cfg.Left = nextMod(cfg.Left)
		ch.Regenerate()
	case "M":
		cfg := m.branchConfigAt(pat, m.editDepth)
		cfg.Right = nextMod(cfg.Right)
		ch.Regenerate()
	case "n":
		cfg := m.branchConfigAt(pat, m.editDepth)
		cfg.LeftParam--
		ch.Regenerate()
	case "N":
		cfg := m.branchConfigAt(pat, m.editDepth)
		cfg.LeftParam++
		ch.Regenerate()
	case "u":
		cfg := m.branchConfigAt(pat, m.editDepth)
		cfg.RightParam--
		ch.Regenerate()
	case "U":
		cfg := m.branchConfigAt(pat, m.editDepth)
		cfg.RightParam++
		ch.Regenerate()

	case "<", ",":
		ch.SelectPattern(ch.Active - 1)
		m.cursor = 0
	case ">", ".":
		ch.SelectPattern(ch.Active + 1)
		m.cursor = 0

	case "w":
		m.State.Tempo = m.Transport.Tempo()
		m.State.RatchetsEnabled = m.Transport.RatchetsEnabled()
		name := m.State.ProjectName
		if err := sequencer.SaveProject(m.State, name); err != nil {
			m.status = fmt.Sprintf("save failed: %v", err)
		} else {
			m.status = fmt.Sprintf("saved project %q", m.State.ProjectName)
		}
	}

	return m, nil
}

// branchConfigAt grows the pattern's recipe list out to the requested
// depth, seeding new entries with the default transpose recipe so edits
// start from what the builder would have used.
func (m Model) branchConfigAt(pat *sequencer.Pattern, depth int) *sequencer.BranchConfig {
	for len(pat.BranchConfig) <= depth {
		pat.BranchConfig = append(pat.BranchConfig, sequencer.BranchConfig{
			Left: sequencer.ModTranspose, Right: sequencer.ModTranspose,
			LeftParam: 7, RightParam: -5,
		})
	}
	return &pat.BranchConfig[depth]
}

func nextMod(m sequencer.ModKind) sequencer.ModKind {
	next := m + 1
	if next >= sequencer.ModCount {
		next = sequencer.ModTranspose
	}
	return next
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	ch := m.Transport.Channel()
	pat := ch.ActivePattern()
	trunk := pat.Trunk

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#c864ff"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))

	playState := "STOP"
	if m.Transport.Playing() {
		playState = "PLAY"
	}
	ratchets := "off"
	if m.Transport.RatchetsEnabled() {
		ratchets = "on"
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render(fmt.Sprintf(
		"fractal-seq  %s  %3.0fbpm  pattern %d/%d  ratchets:%s",
		playState, m.Transport.Tempo(), ch.Active+1, sequencer.NumPatterns, ratchets)))
	out.WriteString("\n\n")

	out.WriteString(m.renderTrunk(trunk))
	out.WriteString("\n")

	out.WriteString(fmt.Sprintf(
		"Branches: %d  Path: %.2f  BranchOrder: %s  StepOrder: %s  Scale: %s  Div: %g  Root: %+d  Mut: %g\n",
		pat.BranchesCount, pat.PathValue, pat.BranchOrder, trunk.PlaybackOrder,
		trunk.Scale, pat.DivMult, pat.RootOffset, pat.MutationAmount))

	out.WriteString(m.renderBranchConfig(pat))
	out.WriteString("\n")

	out.WriteString(m.renderActive(ch))
	out.WriteString("\n")

	if m.status != "" {
		out.WriteString(m.status)
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(dimStyle.Render(widgets.RenderKeyHelp([]widgets.KeySection{
		{Keys: []widgets.KeyBinding{
			{Key: "h / l", Desc: "select step"},
			{Key: "j / k", Desc: "pitch -/+"},
			{Key: "space", Desc: "toggle gate"},
			{Key: "r / R", Desc: "ratchets -/+"},
			{Key: "g / G", Desc: "gate length -/+"},
			{Key: "[ / ]", Desc: "trunk length -/+"},
			{Key: "b / B", Desc: "branch depth -/+"},
			{Key: "v / V", Desc: "path value -/+"},
			{Key: "o / O", Desc: "cycle step/branch order"},
			{Key: "s", Desc: "cycle scale"},
			{Key: "d / D", Desc: "div/mult"},
			{Key: "a / A", Desc: "mutate trunk / amount"},
			{Key: "e m/M n/N u/U", Desc: "edit branch recipe"},
			{Key: "< / >", Desc: "prev/next pattern"},
			{Key: "p  +/-  t  w  q", Desc: "play, tempo, ratchets, save, quit"},
		}},
	})))
	out.WriteString("\n")

	return out.String()
}

// renderTrunk draws the editable trunk grid in the style of a hardware
// step sequencer: pitch, gate, ratchet, and gate-length rows.
func (m Model) renderTrunk(trunk *sequencer.Sequence) string {
	var out strings.Builder

	out.WriteString("   │")
	for i := 0; i < trunk.Length; i++ {
		name := pitchToName(trunk.Steps[i].Pitch + sequencer.BaseNote)
		if i == m.cursor {
			out.WriteString(fmt.Sprintf("[%3s]│", name))
		} else {
			out.WriteString(fmt.Sprintf(" %3s │", name))
		}
	}
	out.WriteString(" Pitch\n")

	out.WriteString("   │")
	for i := 0; i < trunk.Length; i++ {
		gateChar := "○"
		if trunk.Steps[i].GateOn {
			gateChar = "●"
		}
		out.WriteString(fmt.Sprintf("  %s  │", gateChar))
	}
	out.WriteString(" Gate\n")

	out.WriteString("   │")
	for i := 0; i < trunk.Length; i++ {
		out.WriteString(fmt.Sprintf("  %d  │", trunk.Steps[i].Ratchets))
	}
	out.WriteString(" Ratchets\n")

	out.WriteString("   │")
	for i := 0; i < trunk.Length; i++ {
		out.WriteString(fmt.Sprintf("%4s │", trunk.Steps[i].GateLength))
	}
	out.WriteString(" GateLen\n")

	return out.String()
}

func (m Model) renderBranchConfig(pat *sequencer.Pattern) string {
	if pat.BranchesCount == 0 {
		return "Trunk only (no branches)\n"
	}
	var out strings.Builder
	for d := 0; d < pat.BranchesCount; d++ {
		left, right := sequencer.ModTranspose, sequencer.ModTranspose
		lp, rp := 7.0, -5.0
		if d < len(pat.BranchConfig) {
			cfg := pat.BranchConfig[d]
			left, right, lp, rp = cfg.Left, cfg.Right, cfg.LeftParam, cfg.RightParam
		}
		marker := " "
		if d == m.editDepth {
			marker = ">"
		}
		out.WriteString(fmt.Sprintf("%s depth %d: L=%s(%g)  R=%s(%g)\n",
			marker, d+1, left, lp, right, rp))
	}
	return out.String()
}

// renderActive draws the flattened sequence as one cell per step: the
// digit is the source depth, colored per depth, with the playhead
// highlighted.
func (m Model) renderActive(ch *sequencer.Channel) string {
	seq := ch.ActiveSequence()
	if seq == nil || seq.Length == 0 {
		return "(no active sequence)\n"
	}

	depthColors := [][3]uint8{
		{255, 255, 255},
		{200, 100, 255},
		{255, 100, 50},
		{0, 150, 255},
	}
	playhead := m.Transport.LastTriggeredStep()

	cells := make([]string, seq.Length)
	for i := 0; i < seq.Length; i++ {
		st := seq.Steps[i]
		color := depthColors[st.Depth%len(depthColors)]
		glyph := fmt.Sprintf("%d", st.Depth)
		if !st.GateOn {
			glyph = "·"
			color = [3]uint8{60, 60, 60}
		}
		if i == playhead && m.Transport.Playing() {
			glyph = "▶"
		}
		cells[i] = widgets.RenderCell(color, glyph)
	}

	var out strings.Builder
	out.WriteString(fmt.Sprintf("Active (%d steps): ", seq.Length))
	out.WriteString(widgets.RenderCellRow(cells))
	out.WriteString("\n")
	return out.String()
}

func pitchToName(pitch int) string {
	notes := []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	for pitch < 0 {
		pitch += 12
	}
	octave := pitch/12 - 1
	return fmt.Sprintf("%s%d", notes[pitch%12], octave)
}
