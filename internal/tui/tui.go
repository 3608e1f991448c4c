// Package tui provides a Bubble Tea terminal user interface for hudl-downloader.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/diegotyner/Hudl-Downloader/internal/config"
	"github.com/diegotyner/Hudl-Downloader/internal/download"
	"github.com/diegotyner/Hudl-Downloader/internal/hudl"
	"github.com/diegotyner/Hudl-Downloader/internal/model"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B00")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	labelStyle = lipgloss.NewStyle().
			Width(14).
			Foreground(lipgloss.Color("#F8B500"))
)

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateDownloading
	StateComplete
	StateError
)

// Form fields, in focus order.
const (
	fieldURL = iota
	fieldStart
	fieldEnd
	fieldName
	fieldCount
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Time    time.Time
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state    State
	inputs   []textinput.Model
	focus    int
	spinner  spinner.Model
	progress progress.Model
	base     *config.Settings
	settings *config.Settings
	logs     []LogEntry
	err      error

	// Download context
	ctx    context.Context
	cancel context.CancelFunc

	// Download manager reference
	manager *download.Manager
	events  chan download.ProgressEvent
	report  *download.Report

	// Download progress
	current download.Progress

	// Options
	resolution hudl.Resolution
	allowGaps  bool
	keep       bool
	verbose    bool

	width  int
	height int
}

// NewModel creates a new TUI model. base supplies every setting the form
// does not cover; nil uses the defaults.
func NewModel(base *config.Settings) Model {
	if base == nil {
		base = config.DefaultSettings()
	}

	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.CharLimit = 500
		ti.Width = 60
		inputs[i] = ti
	}
	inputs[fieldURL].Placeholder = "https://.../sn-xxxx/720p-2.5.hls/media-xxxx_b2890800_d10000_0.ts"
	inputs[fieldStart].Placeholder = strconv.Itoa(base.StartIndex)
	inputs[fieldStart].CharLimit = 6
	inputs[fieldEnd].Placeholder = strconv.Itoa(base.EndIndex)
	inputs[fieldEnd].CharLimit = 6
	inputs[fieldName].Placeholder = base.OutputName
	inputs[fieldURL].Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B00"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:      StateInput,
		inputs:     inputs,
		spinner:    sp,
		progress:   prog,
		base:       base,
		logs:       make([]LogEntry, 0),
		ctx:        ctx,
		cancel:     cancel,
		resolution: hudl.Resolution(base.Resolution),
		allowGaps:  base.AllowGaps,
		keep:       base.KeepSegments,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// DownloadDoneMsg is sent when the run completes.
	DownloadDoneMsg struct {
		Report   *download.Report
		Progress download.Progress
		Err      error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading {
				m.cancel()
			}
			return m, nil

		case "tab", "down":
			if m.state == StateInput {
				m.setFocus((m.focus + 1) % fieldCount)
				return m, nil
			}

		case "shift+tab", "up":
			if m.state == StateInput {
				m.setFocus((m.focus + fieldCount - 1) % fieldCount)
				return m, nil
			}

		case "enter":
			if m.state == StateInput && m.inputs[fieldURL].Value() != "" {
				return m.start()
			}

		case "ctrl+r":
			if m.state == StateInput {
				m.resolution = nextResolution(m.resolution)
				return m, nil
			}

		case "ctrl+g":
			if m.state == StateInput {
				m.allowGaps = !m.allowGaps
				return m, nil
			}

		case "ctrl+k":
			if m.state == StateInput {
				m.keep = !m.keep
				return m, nil
			}

		case "ctrl+e":
			if m.state == StateInput {
				m.verbose = !m.verbose
				return m, nil
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				// Reset for new download; the form keeps its values
				m.state = StateInput
				m.logs = nil
				m.err = nil
				m.report = nil
				m.current = download.Progress{}
				m.manager = nil
				m.events = nil
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.setFocus(fieldURL)
				return m, nil
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case DownloadDoneMsg:
		m.drainEvents()
		m.report = msg.Report
		m.current = msg.Progress
		switch {
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		default:
			m.state = StateComplete
		}

	case TickMsg:
		// Update progress from manager
		if m.manager != nil && m.state == StateDownloading {
			m.drainEvents()
			m.current = m.manager.GetProgress()
			cmds = append(cmds, m.progress.SetPercent(percent(m.current)), tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update focused text input
	if m.state == StateInput {
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) setFocus(i int) {
	m.inputs[m.focus].Blur()
	m.focus = i
	m.inputs[m.focus].Focus()
}

// start builds the settings from the form and launches the run.
func (m Model) start() (tea.Model, tea.Cmd) {
	settings, err := m.buildSettings()
	if err == nil {
		m.events = make(chan download.ProgressEvent, 256)
		events := m.events
		m.manager, err = download.NewManager(settings, func(event download.ProgressEvent) {
			select {
			case events <- event:
			default: // the log pane only shows the tail
			}
		})
	}
	if err != nil {
		m.state = StateError
		m.err = err
		return m, nil
	}

	m.settings = settings
	m.state = StateDownloading
	return m, tea.Batch(startDownload(m.ctx, m.manager), tickProgress(), m.spinner.Tick)
}

// buildSettings applies the form to a copy of the base settings and
// validates the result.
func (m Model) buildSettings() (*config.Settings, error) {
	s := *m.base
	s.Resolution = int(m.resolution)
	s.AllowGaps = m.allowGaps
	s.KeepSegments = m.keep

	if err := s.ApplySegmentURL(strings.TrimSpace(m.inputs[fieldURL].Value())); err != nil {
		return nil, err
	}
	// An explicit choice made with ctrl+r wins over the URL.
	if m.resolution != hudl.Resolution(m.base.Resolution) {
		s.Resolution = int(m.resolution)
	}

	if v := strings.TrimSpace(m.inputs[fieldStart].Value()); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("start index %q is not a number", v)
		}
		s.StartIndex = n
	}
	if v := strings.TrimSpace(m.inputs[fieldEnd].Value()); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("end index %q is not a number", v)
		}
		s.EndIndex = n
	}
	if v := strings.TrimSpace(m.inputs[fieldName].Value()); v != "" {
		s.OutputName = v
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *Model) drainEvents() {
	for {
		select {
		case event := <-m.events:
			// Filter verbose messages if not in verbose mode
			if event.Level == download.LevelVerbose && !m.verbose {
				continue
			}
			m.logs = append(m.logs, LogEntry{Time: event.Time, Message: event.Message, Level: event.Level})
			// Keep only last 10 logs
			if len(m.logs) > 10 {
				m.logs = m.logs[len(m.logs)-10:]
			}
		default:
			return
		}
	}
}

func nextResolution(r hudl.Resolution) hudl.Resolution {
	all := hudl.Resolutions()
	for i, res := range all {
		if res == r {
			return all[(i+1)%len(all)]
		}
	}
	return all[0]
}

func percent(p download.Progress) float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Done+p.Failed) / float64(p.Total)
}

// tickProgress returns a command to tick progress updates.
func tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// startDownload runs the manager in the background.
func startDownload(ctx context.Context, manager *download.Manager) tea.Cmd {
	return func() tea.Msg {
		report, err := manager.Run(ctx)
		return DownloadDoneMsg{Report: report, Progress: manager.GetProgress(), Err: err}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("🏈 Hudl Downloader"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Download game film from the Hudl CDN"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Paste any segment URL of the game:"))
	b.WriteString("\n\n")

	labels := [fieldCount]string{"Segment URL", "Start index", "End index", "Name"}
	for i, in := range m.inputs {
		b.WriteString(labelStyle.Render(labels[i]))
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Resolution: %s (ctrl+r)\n", m.resolution))
	b.WriteString(fmt.Sprintf("  %s Merge with missing segments (ctrl+g)\n", check(m.allowGaps)))
	b.WriteString(fmt.Sprintf("  %s Keep segment files (ctrl+k)\n", check(m.keep)))
	b.WriteString(fmt.Sprintf("  %s Verbose/debug output (ctrl+e)\n", check(m.verbose)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Download path: %s", m.base.DownloadsPath)))
	b.WriteString("\n")

	return b.String()
}

func check(on bool) string {
	if on {
		return "[×]"
	}
	return "[ ]"
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("Segments %d-%d at %s → %s",
		m.settings.StartIndex, m.settings.EndIndex, hudl.Resolution(m.settings.Resolution), m.manager.OutputPath())))
	b.WriteString("\n\n")

	// Progress bar
	b.WriteString(m.progress.ViewAs(percent(m.current)))
	b.WriteString("\n")

	status := fmt.Sprintf("Segments: %d/%d | Downloaded: %s", m.current.Done, m.current.Total, humanize.Bytes(uint64(m.current.ReceivedBytes)))
	if m.current.Failed > 0 {
		status += fmt.Sprintf(" | Failed: %d", m.current.Failed)
	}
	b.WriteString(infoStyle.Render(status))
	b.WriteString("\n\n")

	// Logs
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	r := m.report
	msg := fmt.Sprintf("✨ Download Complete!\n\n"+
		"Output: %s\n"+
		"Segments: %d (%d reused)\n"+
		"Size: %s",
		r.Output, r.Fetched+r.Skipped, r.Skipped, humanize.Bytes(uint64(r.Bytes)))
	if len(r.Missing) > 0 {
		msg += fmt.Sprintf("\nMissing: %s", model.FormatIndices(r.Missing))
	}
	b.WriteString(boxStyle.Render(msg))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("❌ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(dimStyle.Render(log.Time.Format("15:04:05")) + " ")
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • tab: next field • ctrl+r: resolution • esc: quit"
	case StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new download • q: quit"
	}
	return ""
}

// Run starts the TUI application.
func Run(base *config.Settings) error {
	p := tea.NewProgram(NewModel(base), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
