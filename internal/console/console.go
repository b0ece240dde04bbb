// Package console is an optional, observational operator dashboard: it
// renders subscriber counts, the current sequencer step, and the MQTT
// ingress connection state, but never drives server logic — it is a
// pure bubbletea/lipgloss view over a status feed the server pushes
// into, the same shape as the reference server's own TUI.
package console

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Status is a point-in-time snapshot the server pushes to the console.
type Status struct {
	ServerAddr     string
	SubscriberCount map[string]int // keyed by Service.String()
	CurrentStep    string
	MQTTConnected  bool
}

// Console renders Status updates in a full-screen terminal view.
type Console struct {
	program *tea.Program
	updates chan Status
}

// New creates a Console. The server address it renders is supplied to Run,
// since that's also what seeds the initial Status before any Update arrives.
func New() *Console {
	return &Console{
		updates: make(chan Status, 10),
	}
}

// Update pushes a new status snapshot; non-blocking, drops the update
// if the console isn't keeping up (purely observational, never a queue
// other components depend on draining).
func (c *Console) Update(status Status) {
	select {
	case c.updates <- status:
	default:
	}
}

// Run starts the console and blocks until the user quits.
func (c *Console) Run(serverAddr string) error {
	m := consoleModel{
		status:    Status{ServerAddr: serverAddr, SubscriberCount: map[string]int{}},
		startTime: time.Now(),
	}
	c.program = tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		for status := range c.updates {
			if c.program != nil {
				c.program.Send(statusMsg(status))
			}
		}
	}()

	_, err := c.program.Run()
	return err
}

// Stop ends the console session.
func (c *Console) Stop() {
	if c.program != nil {
		c.program.Quit()
	}
	close(c.updates)
}

type tickMsg time.Time
type statusMsg Status

type consoleModel struct {
	status    Status
	startTime time.Time
	quitting  bool
}

func (m consoleModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		return m, tickEvery()
	case statusMsg:
		m.status = Status(msg)
		return m, nil
	}
	return m, nil
}

func (m consoleModel) View() string {
	if m.quitting {
		return "Shutting down console...\n"
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	var b strings.Builder
	b.WriteString(titleStyle.Render("Lamarrs Operator Console"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Server: "))
	b.WriteString(valueStyle.Render(m.status.ServerAddr))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Uptime: "))
	b.WriteString(valueStyle.Render(time.Since(m.startTime).Round(time.Second).String()))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("MQTT ingress: "))
	if m.status.MQTTConnected {
		b.WriteString(okStyle.Render("connected"))
	} else {
		b.WriteString(badStyle.Render("disconnected"))
	}
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Current step: "))
	if m.status.CurrentStep == "" {
		b.WriteString(valueStyle.Render("(none)"))
	} else {
		b.WriteString(valueStyle.Render(m.status.CurrentStep))
	}
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Subscribers:"))
	b.WriteString("\n")
	for _, svc := range []string{"Subtitle", "Colour", "AudioPlayer", "Midi"} {
		count := m.status.SubscriberCount[svc]
		b.WriteString(fmt.Sprintf("  %-12s", svc))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%d", count)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))
	return b.String()
}
