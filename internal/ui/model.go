package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertwitch/blockfs/internal/queue"
	"github.com/dustin/go-humanize"
)

const (
	// pollInterval is the interval at which the progress is polled.
	pollInterval = 100 * time.Millisecond

	// maxLogs is the number of log lines kept for the log panel.
	maxLogs = 100
)

//nolint:gochecknoglobals
var (
	// titleStyle defines the style for a panel's title.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	// borderStyle defines the style for a panel's borders.
	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4"))

	// infoStyle defines the style for a panel's text.
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	// helpStyle defines the style for the help line.
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(0, 1)
)

// progressMsg is a [tea.Msg] containing polled [queue.Progress].
type progressMsg struct {
	data queue.Progress
}

// doneMsg is a [tea.Msg] asking the model to quit after the work is done.
type doneMsg struct{}

// TeaModel is the principal [tea.Model] of the user interface.
type TeaModel struct {
	width int
	title string

	cancel    context.CancelFunc
	uiHandler *Handler
	source    progressProvider

	data         queue.Progress
	bar          progress.Model
	logsViewport viewport.Model
	logs         []string

	ready bool
	done  bool
}

// NewTeaModel returns an initial new [TeaModel].
//
//nolint:mnd
func NewTeaModel(uiHandler *Handler, title string, source progressProvider, cancel context.CancelFunc) TeaModel {
	return TeaModel{
		title:        title,
		cancel:       cancel,
		uiHandler:    uiHandler,
		source:       source,
		bar:          progress.New(progress.WithDefaultGradient(), progress.WithWidth(60)),
		logsViewport: viewport.New(60, 10),
		logs:         make([]string, 0, maxLogs),
	}
}

// Init initializes the model within a [tea.Program].
func (m TeaModel) Init() tea.Cmd {
	return pollProgress(m.source)
}

// pollProgress produces a [tea.Cmd] returning a [progressMsg] after the
// [pollInterval].
func pollProgress(source progressProvider) tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return progressMsg{data: source.Progress()}
	})
}

// Update is the principal message handling method of the model.
//
//nolint:mnd,ireturn
func (m TeaModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()

			return m, tea.Quit
		case "q":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width - 2
		m.bar.Width = m.width - 2
		m.logsViewport.Width = m.width
		m.logsViewport.Height = max(msg.Height-12, 3)
		m.renderLogs()

		if !m.ready {
			m.ready = true
			if m.uiHandler != nil {
				m.uiHandler.Ready.Store(true)
			}
		}

	case progressMsg:
		m.data = msg.data
		cmds = append(cmds, m.bar.SetPercent(m.data.ProgressPct/100))

		if !m.done {
			cmds = append(cmds, pollProgress(m.source))
		}

	case doneMsg:
		m.done = true
		m.data = m.source.Progress()

		return m, tea.Sequence(m.bar.SetPercent(m.data.ProgressPct/100), tea.Quit)

	case LogMsg:
		if len(m.logs) >= maxLogs {
			m.logs = m.logs[1:]
		}
		m.logs = append(m.logs, string(msg))
		m.renderLogs()

	case progress.FrameMsg:
		updated, cmd := m.bar.Update(msg)
		if bar, ok := updated.(progress.Model); ok {
			m.bar = bar
		}
		cmds = append(cmds, cmd)
	}

	m.logsViewport, cmd = m.logsViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *TeaModel) renderLogs() {
	if len(m.logs) == 0 {
		return
	}

	logs := lipgloss.NewStyle().
		Width(m.logsViewport.Width).
		Render(strings.TrimSuffix(strings.Join(m.logs, ""), "\n"))

	m.logsViewport.SetContent(logs)
	m.logsViewport.GotoBottom()
}

// View is the principal rendering function of the model.
func (m TeaModel) View() string {
	if !m.ready {
		return "Loading the GUI..."
	}

	progressSection := borderStyle.Width(m.width).Render(
		lipgloss.JoinVertical(
			lipgloss.Left,
			titleStyle.Width(m.width).Render(m.title),
			"",
			m.bar.View(),
			"",
			infoStyle.Width(m.width).Render(formatDetails(m.data)),
		),
	)

	logsSection := borderStyle.Width(m.width).Render(
		lipgloss.JoinVertical(
			lipgloss.Left,
			titleStyle.Width(m.width).Render("Process Information"),
			m.logsViewport.View(),
		),
	)

	helpSection := helpStyle.Width(m.width).Render("q: quit gui • ctrl+c: quit program")

	return lipgloss.JoinVertical(lipgloss.Left, progressSection, logsSection, helpSection)
}

// formatDetails renders the textual progress information.
func formatDetails(p queue.Progress) string {
	var s strings.Builder

	fmt.Fprintf(&s, "Progress: %.2f%% (%d/%d files)\n", p.ProgressPct, p.ProcessedItems, p.TotalItems)
	fmt.Fprintf(&s, "Files: InProgress=%d, Success=%d, Failed=%d\n", p.InProgressItems, p.SuccessItems, p.FailedItems)
	fmt.Fprintf(&s, "Data: %s of %s", humanize.Bytes(uint64(max(p.DoneBytes, 0))), humanize.Bytes(uint64(max(p.TotalBytes, 0)))) //nolint:gosec

	if p.BytesPerSec > 0 {
		fmt.Fprintf(&s, " at %s/s", humanize.Bytes(uint64(p.BytesPerSec)))
	}
	s.WriteString("\n")

	switch {
	case p.HasFinished:
		fmt.Fprintf(&s, "Time: Started=%s, Finished=%s", p.StartTime.Format(time.TimeOnly), p.FinishTime.Format(time.TimeOnly))
	case p.HasStarted:
		fmt.Fprintf(&s, "Time: Started=%s, %s left", p.StartTime.Format(time.TimeOnly), p.TimeLeft.Round(time.Second))
	default:
		s.WriteString("Time: Waiting to start")
	}

	return s.String()
}
