// Package tui is the interactive view of a running app.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/caffeineduck/modhost/app"
	"github.com/caffeineduck/modhost/executor"
)

const defaultRate = 100 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	pausedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFD700"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

type tickMsg time.Time

type reportMsg app.Report

type model struct {
	ctx      context.Context
	app      *app.App
	rate     time.Duration
	maxTicks uint64
	help     help.Model

	last     app.Report
	stepped  uint64
	paused   bool
	busy     bool
	waiting  bool
	finished bool
}

func newModel(ctx context.Context, a *app.App, rate time.Duration, maxTicks uint64) *model {
	if rate <= 0 {
		rate = defaultRate
	}
	return &model{
		ctx:      ctx,
		app:      a,
		rate:     rate,
		maxTicks: maxTicks,
		help:     help.New(),
	}
}

func (m *model) Init() tea.Cmd {
	return m.schedule()
}

func (m *model) schedule() tea.Cmd {
	m.waiting = true
	return tea.Tick(m.rate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *model) step() tea.Cmd {
	m.busy = true
	return func() tea.Msg { return reportMsg(m.app.Step(m.ctx)) }
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Pause):
			m.paused = !m.paused
			if !m.paused && !m.busy && !m.waiting && !m.finished {
				return m, m.schedule()
			}
		case key.Matches(msg, keys.Step):
			if m.paused && !m.busy && !m.finished {
				return m, m.step()
			}
		}

	case tickMsg:
		m.waiting = false
		if m.paused || m.busy || m.finished {
			return m, nil
		}
		return m, m.step()

	case reportMsg:
		m.busy = false
		m.last = app.Report(msg)
		m.stepped++
		if m.maxTicks > 0 && m.stepped >= m.maxTicks {
			m.finished = true
			return m, nil
		}
		if !m.paused && !m.waiting {
			return m, m.schedule()
		}

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	}
	return m, nil
}

func (m *model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("modhost"))
	b.WriteString(" ")
	b.WriteString(statStyle.Render(fmt.Sprintf("tick %d", m.app.Tick())))
	b.WriteString(dimStyle.Render(" • "))
	b.WriteString(statStyle.Render(fmt.Sprintf("entities %d", m.app.World().Len())))
	b.WriteString(dimStyle.Render(" • "))
	b.WriteString(statStyle.Render(fmt.Sprintf("windows %d", m.app.Host().Windows())))
	switch {
	case m.finished:
		b.WriteString(" ")
		b.WriteString(pausedStyle.Render("finished"))
	case m.paused:
		b.WriteString(" ")
		b.WriteString(pausedStyle.Render("paused"))
	}
	b.WriteString("\n\n")

	exts := m.app.Host().Extensions()
	if len(exts) == 0 {
		b.WriteString(dimStyle.Render("no extensions loaded"))
		b.WriteString("\n")
	}
	for _, ext := range exts {
		b.WriteString(m.extensionLine(ext))
		b.WriteString("\n")
	}

	if m.last.Duration > 0 {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("last tick %d: %d spawned in %s",
			m.last.Tick, len(m.last.Spawned), m.last.Duration.Round(time.Microsecond))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(keys))
	return b.String()
}

func (m *model) extensionLine(ext *executor.Extension) string {
	stats := ext.Stats()
	line := fmt.Sprintf("%s %s %s",
		nameStyle.Render(fmt.Sprintf("%-16s", ext.Name())),
		dimStyle.Render(fmt.Sprintf("%-8s", ext.Schedule())),
		statStyle.Render(fmt.Sprintf("runs %-5d spawns %-5d", stats.Invocations, stats.Spawns)))

	switch out, ok := ext.LastOutcome(); {
	case ext.Closed():
		if ok && out.Err != nil {
			return line + " " + errorStyle.Render("closed: "+out.Err.Error())
		}
		return line + " " + errorStyle.Render("closed")
	case !ok:
		return line + " " + dimStyle.Render("waiting")
	case out.Err != nil:
		return line + " " + errorStyle.Render(out.Err.Error())
	case out.Message != "":
		return line + " " + messageStyle.Render(out.Message)
	default:
		return line
	}
}

// Run shows the interactive view until the user quits or ctx is done.
func Run(ctx context.Context, a *app.App, rate time.Duration, maxTicks uint64) error {
	p := tea.NewProgram(newModel(ctx, a, rate, maxTicks), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
