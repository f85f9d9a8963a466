// Package tui renders a live status view of the rig: which devices are
// plugged in, what channels and presets they hold, and a tail of recent
// events.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jorgetrad99/guitar-midi-sub000/engine"
)

// eventLogSize is how many recent events the view keeps.
const eventLogSize = 6

// Event is one registry happening shown in the log tail.
type Event struct {
	At   time.Time
	Text string
}

// Notifier bridges engine notifications into the bubbletea event loop. Sends
// never block: if the UI falls behind, events are dropped, not queued.
type Notifier struct {
	ch chan Event
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan Event, 32)}
}

func (n *Notifier) Events() <-chan Event { return n.ch }

func (n *Notifier) push(text string) {
	select {
	case n.ch <- Event{At: time.Now(), Text: text}:
	default:
	}
}

func (n *Notifier) DeviceConnected(device string, typ engine.DeviceType) {
	n.push(fmt.Sprintf("connected  %s (%s)", device, typ))
}

func (n *Notifier) DeviceDisconnected(device string) {
	n.push(fmt.Sprintf("gone       %s", device))
}

func (n *Notifier) PresetChanged(device string, presetID int) {
	n.push(fmt.Sprintf("preset %-3d %s", presetID, device))
}

type EventMsg Event

type tickMsg time.Time

type Model struct {
	Registry *engine.Registry
	notifier *Notifier

	selected int
	events   []Event
	status   string
	quitting bool
}

func NewModel(registry *engine.Registry, notifier *Notifier) Model {
	return Model{Registry: registry, notifier: notifier}
}

func ListenForEvents(n *Notifier) tea.Cmd {
	return func() tea.Msg {
		return EventMsg(<-n.Events())
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(ListenForEvents(m.notifier), tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.selected < len(m.Registry.Devices())-1 {
				m.selected++
			}

		case "left", "h":
			m.status = m.stepPreset(-1)

		case "right", "l":
			m.status = m.stepPreset(+1)

		case "r":
			m.Registry.Scan()
			m.status = "rescanned"
		}

	case EventMsg:
		m.events = append(m.events, Event(msg))
		if len(m.events) > eventLogSize {
			m.events = m.events[len(m.events)-eventLogSize:]
		}
		return m, ListenForEvents(m.notifier)

	case tickMsg:
		return m, tick()
	}

	return m, nil
}

// stepPreset moves the selected device to the next populated preset slot in
// the given direction, wrapping inside its range.
func (m Model) stepPreset(dir int) string {
	devices := m.Registry.Devices()
	if m.selected >= len(devices) {
		return ""
	}
	d := devices[m.selected]
	as := d.Assignment()
	span := as.RangeEnd - as.RangeStart + 1

	id := d.ActivePreset()
	for i := 0; i < span; i++ {
		id += dir
		if id > as.RangeEnd {
			id = as.RangeStart
		}
		if id < as.RangeStart {
			id = as.RangeEnd
		}
		if _, ok := d.Preset(id); !ok {
			continue
		}
		if err := m.Registry.ChangePreset(d.Name, id); err != nil {
			return fmt.Sprintf("preset change failed: %v", err)
		}
		return ""
	}
	return "no other presets"
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229"))
	downStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render("guitar-midi"))
	out.WriteString("\n\n")

	devices := m.Registry.Devices()
	if len(devices) == 0 {
		out.WriteString(dimStyle.Render("  no devices - plug something in"))
		out.WriteString("\n")
	}
	for i, d := range devices {
		marker := "  "
		if i == m.selected {
			marker = "> "
		}

		presetName := "-"
		if p, ok := d.Preset(d.ActivePreset()); ok {
			presetName = p.Name
		}
		line := fmt.Sprintf("%s%-28s %-17s ch%-2d  [%d-%d]  %s",
			marker, d.Name, d.Type, d.Assignment().Channel(),
			d.Assignment().RangeStart, d.Assignment().RangeEnd, presetName)

		switch {
		case d.State() == engine.StateDisconnected:
			out.WriteString(downStyle.Render(line + "  (gone)"))
		case i == m.selected:
			out.WriteString(selStyle.Render(line))
		default:
			out.WriteString(line)
		}
		out.WriteString("\n")
	}

	if len(m.events) > 0 {
		out.WriteString("\n")
		for _, ev := range m.events {
			out.WriteString(dimStyle.Render(fmt.Sprintf("  %s  %s", ev.At.Format("15:04:05"), ev.Text)))
			out.WriteString("\n")
		}
	}

	out.WriteString("\n")
	out.WriteString(dimStyle.Render("j/k:select  h/l:preset  r:rescan  q:quit"))
	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render(m.status))
	}
	out.WriteString("\n")

	return out.String()
}
