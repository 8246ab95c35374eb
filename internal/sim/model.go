package sim

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sweeney/epaper-clock/internal/display"
	"github.com/sweeney/epaper-clock/internal/logic"
	"github.com/sweeney/epaper-clock/internal/status"
)

// batteryStep is the voltage change per key press.
const batteryStep = 50

const maxLogLines = 8

// EventMsg carries a device Event into the program.
type EventMsg Event

// LogMsg carries one log line into the program.
type LogMsg string

type tickMsg time.Time

type keyMap struct {
	Update key.Binding
	User   key.Binding
	Pull   key.Binding
	Raise  key.Binding
	Lower  key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Update, k.User, k.Pull, k.Raise, k.Lower, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Update: key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "update button")),
	User:   key.NewBinding(key.WithKeys("s", " "), key.WithHelp("s", "user button")),
	Pull:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pull battery")),
	Raise:  key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "battery up")),
	Lower:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "battery down")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Model is the simulate TUI.
type Model struct {
	dev   *Device
	step  int
	frame *display.Frame
	snap  status.Snapshot
	boot  int
	led   bool
	cold  int
	err   error
	logs  []string
	help  help.Model

	width    int
	height   int
	quitting bool
}

// NewModel creates the TUI for dev. step is the pixel downsampling of the
// panel preview.
func NewModel(dev *Device, step int) Model {
	return Model{dev: dev, step: step, help: help.New(), width: 80, height: 24}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Update):
			m.dev.Press(logic.PinUpdate)
		case key.Matches(msg, keys.User):
			m.dev.Press(logic.PinUser)
		case key.Matches(msg, keys.Pull):
			m.dev.PullBattery()
		case key.Matches(msg, keys.Raise):
			m.dev.AdjustBattery(batteryStep)
		case key.Matches(msg, keys.Lower):
			m.dev.AdjustBattery(-batteryStep)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tickMsg:
		return m, tickCmd()

	case EventMsg:
		switch msg.Kind {
		case EventFrame:
			f := msg.Frame
			m.frame = &f
			m.snap = msg.Snapshot
			m.boot = msg.Boot
			m.led = msg.LED
		case EventBootEnded:
			m.snap = msg.Snapshot
			m.err = msg.Err
		case EventPowerCycle:
			m.cold++
			m.led = false
		}

	case LogMsg:
		m.logs = append(m.logs, strings.TrimRight(string(msg), "\n"))
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))
	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)
	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))
	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)
	panelStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("255"))
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("EPAPER CLOCK - SIMULATION"))
	s.WriteString("\n")
	s.WriteString(m.help.View(keys))
	s.WriteString("\n\n")

	if m.frame != nil {
		s.WriteString(panelStyle.Render(HalfBlocks(m.frame.Image, m.step)))
	} else {
		s.WriteString(headerStyle.Render("(panel blank)"))
	}
	s.WriteString("\n")

	row := func(label, value string) {
		fmt.Fprintf(&s, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", label)), valueStyle.Render(value))
	}
	row("Boot", fmt.Sprintf("#%d (%d since power)", m.snap.BootCount, m.boot))
	row("Mode", fmt.Sprintf("%s (%s)", m.snap.Mode, m.snap.Reason))
	row("Wake", fmt.Sprintf("%s / %s", m.snap.Wake.Cause, m.snap.Wake.Source))
	row("Battery", fmt.Sprintf("%s, cell %d mV", orDash(m.snap.Battery), m.dev.Millivolts()))
	row("Last sync", m.snap.LastSync.String())
	row("Drift", fmt.Sprintf("%.3fs over %d", m.snap.Drift.Average, m.snap.Drift.Count))
	row("Next wake", m.snap.NextWake.Round(time.Millisecond).String())
	row("LED", onOff(m.led))
	row("Reports", fmt.Sprintf("%d", m.dev.Reports()))
	row("Power cuts", fmt.Sprintf("%d", m.cold))
	if m.err != nil {
		s.WriteString(errorStyle.Render("✗ " + m.err.Error()))
		s.WriteString("\n")
	}

	if len(m.logs) > 0 {
		s.WriteString(boxStyle.Width(max(m.width-4, 20)).Render(strings.Join(m.logs, "\n")))
	}
	return s.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// LogWriter forwards each write, one log record per write, to send.
type LogWriter struct {
	Send func(tea.Msg)
}

func (w LogWriter) Write(p []byte) (int, error) {
	if w.Send != nil {
		w.Send(LogMsg(string(p)))
	}
	return len(p), nil
}
