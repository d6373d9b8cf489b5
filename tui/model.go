package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-retune/tuning"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	onScaleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	offScale     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	cursorStyle  = lipgloss.NewStyle().Background(lipgloss.Color("57"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Model browses a tuning table: one row per MIDI key, on-scale degrees
// highlighted, cursor row expanded with the quantized MPE target.
type Model struct {
	Table     *tuning.Table
	BendRange int

	cursor   int // selected MIDI key
	top      int // first visible row
	height   int
	quitting bool
}

func NewModel(table *tuning.Table, bendRange int) Model {
	return Model{
		Table:     table,
		BendRange: bendRange,
		cursor:    tuning.AnchorKey,
		top:       tuning.AnchorKey - 10,
		height:    24,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit

		case "up", "k":
			m.cursor--
		case "down", "j":
			m.cursor++
		case "pgup", "u":
			m.cursor -= m.rows()
		case "pgdown", "d":
			m.cursor += m.rows()
		case "g", "home":
			m.cursor = 0
		case "G", "end":
			m.cursor = tuning.NumKeys - 1
		case "c":
			m.cursor = tuning.AnchorKey
		}
		m.clamp()

	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.clamp()
	}

	return m, nil
}

func (m *Model) rows() int {
	// header, separator, detail line and help line surround the list
	r := m.height - 6
	if r < 4 {
		r = 4
	}
	return r
}

func (m *Model) clamp() {
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor > tuning.NumKeys-1 {
		m.cursor = tuning.NumKeys - 1
	}
	rows := m.rows()
	if m.cursor < m.top {
		m.top = m.cursor
	}
	if m.cursor >= m.top+rows {
		m.top = m.cursor - rows + 1
	}
	if m.top > tuning.NumKeys-rows {
		m.top = tuning.NumKeys - rows
	}
	if m.top < 0 {
		m.top = 0
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	p := m.Table.Preset
	b.WriteString(titleStyle.Render(fmt.Sprintf("Tuning table: %s", p.Name)))
	b.WriteString(fmt.Sprintf("  (steps=%d offset=%d mode=%d)\n", p.Steps(), p.Offset(), p.Mode))
	b.WriteString(headerStyle.Render(fmt.Sprintf("%4s  %12s  %10s  %10s  %s", "MIDI", "Freq (Hz)", "Cents", "Coord", "Scale")))
	b.WriteString("\n")

	rows := m.rows()
	for i := m.top; i < m.top+rows && i < tuning.NumKeys; i++ {
		e := m.Table.Entries[i]
		marker := " "
		if e.OnScale {
			marker = "*"
		}
		line := fmt.Sprintf("%4d  %12.3f  %+10.3f  (%3d,%3d)  %s",
			e.MidiNote, e.FrequencyHz, e.CentsFromRoot,
			e.NaturalCoord.X, e.NaturalCoord.Y, marker)

		style := offScale
		if e.OnScale {
			style = onScaleStyle
		}
		if i == m.cursor {
			style = cursorStyle
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	e := m.Table.Entries[m.cursor]
	note, bend := tuning.Quantize(e.FrequencyHz, m.BendRange)
	b.WriteString(fmt.Sprintf("\nkey %d -> MPE note %d, bend %+d (range ±%d st)\n",
		m.cursor, note, int(bend)-tuning.BendCenter, m.BendRange))

	b.WriteString(helpStyle.Render("j/k: move • u/d: page • c: middle C • q: quit"))
	return b.String()
}

// Run opens the browser in the alternate screen.
func Run(table *tuning.Table, bendRange int) error {
	p := tea.NewProgram(NewModel(table, bendRange), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
