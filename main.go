package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"fractal-seq/config"
	"fractal-seq/debug"
	"fractal-seq/midi"
	"fractal-seq/sequencer"
	"fractal-seq/tui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Debug {
		if err := debug.Enable(); err != nil {
			fmt.Printf("Error enabling debug log: %v\n", err)
		}
		defer debug.Disable()
	}

	// Resume the last project if one exists, otherwise start fresh.
	state := sequencer.NewState()
	if cfg.UI.LastProject != "" {
		if loaded, err := sequencer.LoadProject(cfg.UI.LastProject, ""); err == nil {
			state = loaded
		}
	}

	// Open the configured MIDI out, or run silently when there is none.
	var sink sequencer.Sink = midi.Discard{}
	if cfg.Output.PortName != "" {
		s, err := midi.NewSink(cfg.Output.PortName, cfg.Output.Channel)
		if err != nil {
			fmt.Printf("%v - running without MIDI output\n", err)
			fmt.Printf("Available ports: %v\n", midi.OutPorts())
		} else {
			sink = s
			defer s.Close()
		}
	}

	transport := sequencer.NewTransport(state.Channel, sink)
	transport.SetTempo(state.Tempo)
	transport.SetRatchetsEnabled(state.RatchetsEnabled)

	m := tui.NewModel(transport, state)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	cfg.UI.LastTempo = transport.Tempo()
	cfg.UI.LastProject = state.ProjectName
	cfg.Save()
}
