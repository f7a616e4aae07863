package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stagelinkmusic/stagelink/internal/netsync"
	"github.com/stagelinkmusic/stagelink/internal/theory"
)

const volumeStep = 0.05

type stateMsg netsync.RemoteState
type statusMsg netsync.Status

func Key(help string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	VolUp   key.Binding
	VolDown key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.VolUp, k.VolDown, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Select}, {k.VolUp, k.VolDown, k.Refresh, k.Quit}}
}

var keys = keyMap{
	Up:      Key("up", "k", "up"),
	Down:    Key("down", "j", "down"),
	Select:  Key("select preset", "enter", " "),
	VolUp:   Key("volume up", "+", "="),
	VolDown: Key("volume down", "-", "_"),
	Refresh: Key("refresh", "r"),
	Quit:    Key("quit", "q", "ctrl+c"),
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	searchStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	connStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	detailStyle   = lipgloss.NewStyle().Faint(true)
	volumeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	noPresetStyle = lipgloss.NewStyle().Faint(true).Italic(true)
)

type model struct {
	client *netsync.Client
	addr   string

	state  netsync.RemoteState
	status netsync.Status
	cursor int
	width  int
	help   help.Model
}

func newModel(client *netsync.Client, addr string) model {
	return model{
		client: client,
		addr:   addr,
		status: netsync.StatusSearching,
		help:   help.New(),
	}
}

// Init kicks off discovery (or a direct dial) once the program is running,
// so the client's callbacks always have a live program to send into.
func (m model) Init() tea.Cmd {
	client, addr := m.client, m.addr
	return func() tea.Msg {
		if addr != "" {
			if err := client.Connect(addr); err != nil {
				return statusMsg(netsync.StatusError)
			}
			return statusMsg(netsync.StatusConnected)
		}
		client.Start()
		return nil
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case stateMsg:
		firstLoad := len(m.state.Presets) == 0
		m.state = netsync.RemoteState(msg)
		if m.cursor >= len(m.state.Presets) {
			m.cursor = max(0, len(m.state.Presets)-1)
		}
		if firstLoad && m.state.HasActiveIndex && m.state.ActivePresetIndex < len(m.state.Presets) {
			m.cursor = m.state.ActivePresetIndex
		}

	case statusMsg:
		m.status = netsync.Status(msg)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.state.Presets)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Select):
			if m.cursor < len(m.state.Presets) {
				m.client.SelectPreset(m.cursor)
			}
		case key.Matches(msg, keys.VolUp):
			m.client.SetMasterVolume(clampUnit(m.state.MasterVolume + volumeStep))
		case key.Matches(msg, keys.VolDown):
			m.client.SetMasterVolume(clampUnit(m.state.MasterVolume - volumeStep))
		case key.Matches(msg, keys.Refresh):
			m.client.RequestPresets()
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("StageLink Remote"))
	b.WriteString("  ")
	b.WriteString(m.statusBadge())
	b.WriteString("\n\n")

	if len(m.state.Presets) == 0 {
		b.WriteString(noPresetStyle.Render("no presets yet"))
		b.WriteString("\n")
	}
	for i, p := range m.state.Presets {
		line := fmt.Sprintf("%2d. %s", i+1, p.Name)
		detail := fmt.Sprintf("  %s %s · %s", theory.NoteName(p.RootNote), p.Scale, p.Mode)
		if p.BPM > 0 {
			detail += fmt.Sprintf(" · %d bpm", p.BPM)
		}
		line += detailStyle.Render(detail)

		switch {
		case i == m.cursor:
			b.WriteString(cursorStyle.Render("> " + line))
		case m.state.HasActiveIndex && i == m.state.ActivePresetIndex:
			b.WriteString(activeStyle.Render("* " + line))
		default:
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(volumeStyle.Render("master " + volumeBar(m.state.MasterVolume)))
	b.WriteString("\n\n")
	b.WriteString(m.help.View(keys))
	return b.String()
}

func (m model) statusBadge() string {
	switch m.status {
	case netsync.StatusConnected:
		return connStyle.Render("● connected")
	case netsync.StatusError:
		return errStyle.Render("● connection lost, retrying")
	default:
		return searchStyle.Render("● searching")
	}
}

func volumeBar(v float64) string {
	const width = 20
	filled := int(v*width + 0.5)
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("[%s] %3.0f%%", bar, v*100)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
