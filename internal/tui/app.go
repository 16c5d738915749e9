// internal/tui/app.go
//
// This is the main TUI (Terminal User Interface) for the semester planner.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The session itself lives in a session.Controller. The App only turns key
// presses into session events and runs the resulting effects as commands,
// so every network call happens off the UI loop and its result comes back
// as a message.

package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/semester-planner/internal/gateway"
	"github.com/kingrea/semester-planner/internal/intake"
	"github.com/kingrea/semester-planner/internal/logbook"
	"github.com/kingrea/semester-planner/internal/session"
)

const (
	defaultRequestTimeout = 2 * time.Minute
	healthTimeout         = 5 * time.Second
)

var phaseOrder = []session.Phase{
	session.PhaseIntake,
	session.PhaseInterview,
	session.PhaseResult,
}

// Saver writes a finalized plan into a directory.
type Saver interface {
	SaveTo(ctx context.Context, version, dir string) (string, error)
}

// HealthChecker reports whether the planner service is reachable.
type HealthChecker interface {
	Health(ctx context.Context) (gateway.Health, error)
}

// FileLoader reads a document chosen by path.
type FileLoader func(path string) (gateway.File, error)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithSaver enables saving finalized plans into dir.
func WithSaver(saver Saver, dir string) AppOption {
	return func(a *App) {
		a.saver = saver
		a.saveDir = dir
	}
}

// WithHealthCheck pings the service when the program starts.
func WithHealthCheck(checker HealthChecker) AppOption {
	return func(a *App) {
		a.health = checker
	}
}

// WithLogbook shows the tail of the journey log under the board.
func WithLogbook(book *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = book
	}
}

// WithFileLoader replaces the disk loader used for typed paths.
func WithFileLoader(load FileLoader) AppOption {
	return func(a *App) {
		if load != nil {
			a.load = load
		}
	}
}

// WithRequestTimeout bounds each upload and finalize call.
func WithRequestTimeout(d time.Duration) AppOption {
	return func(a *App) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// effectResultMsg carries the outcome of a gateway call back into Update.
type effectResultMsg struct {
	event session.Event
}

type healthMsg struct {
	health gateway.Health
	err    error
}

type savedMsg struct {
	path string
	err  error
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	ctrl    *session.Controller
	logbook *logbook.Logbook
	saver   Saver
	saveDir string
	health  HealthChecker
	load    FileLoader
	timeout time.Duration

	// UI components
	input   textinput.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	statusMsg     string
	serviceStatus string
	savedPath     string
	saving        bool

	// last rendered position, used to clear the input between questions
	lastPhase  session.Phase
	lastCursor int

	// Window size (we get this from bubbletea)
	width  int
	height int
}

// NewApp creates an App around ctrl.
func NewApp(ctrl *session.Controller, opts ...AppOption) *App {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 4096
	input.Cursor.SetMode(cursor.CursorStatic)
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))

	app := &App{
		ctrl:          ctrl,
		load:          func(path string) (gateway.File, error) { return intake.Load(path, intake.DefaultMaxBytes) },
		timeout:       defaultRequestTimeout,
		input:         input,
		spinner:       spin,
		help:          help.New(),
		keys:          newKeyMap(),
		serviceStatus: "not checked",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.syncInput(ctrl.State())
	return app
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Error(format, args...)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return a.checkHealth()
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		a.input.Width = max(20, msg.Width/2)
		return a, nil

	case effectResultMsg:
		st, eff := a.ctrl.Dispatch(msg.event)
		a.afterDispatch(st)
		return a, a.runEffect(eff)

	case healthMsg:
		switch {
		case msg.err != nil:
			a.serviceStatus = "offline: " + gateway.Message(msg.err)
		case msg.health.Online():
			a.serviceStatus = "online"
		default:
			a.serviceStatus = strings.TrimSpace(msg.health.Status)
		}
		return a, nil

	case savedMsg:
		a.saving = false
		if msg.err != nil {
			a.statusMsg = "Download failed: " + gateway.Message(msg.err)
			a.logError("Download failed: %s", gateway.Message(msg.err))
			return a, nil
		}
		a.savedPath = msg.path
		a.statusMsg = "Saved " + msg.path
		a.logInfo("Plan saved to %s", msg.path)
		return a, nil

	case spinner.TickMsg:
		if !a.ctrl.State().Busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		st := a.ctrl.State()
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keys.Dismiss):
			if st.Err != nil {
				a.afterDispatch(a.dispatch(session.ErrorDismissed{}))
			}
			return a, nil
		case key.Matches(msg, a.keys.Submit):
			return a.submit(st)
		case key.Matches(msg, a.keys.Retry):
			next, eff := a.ctrl.Dispatch(session.FinalizeRequested{Attempt: a.ctrl.NewAttempt()})
			a.afterDispatch(next)
			return a, a.runEffect(eff)
		case key.Matches(msg, a.keys.Reset):
			return a.reset()
		case st.Phase == session.PhaseResult:
			// No input on the result screen, so plain letters act as shortcuts.
			switch {
			case key.Matches(msg, a.keys.Save):
				return a, a.save(st)
			case key.Matches(msg, a.keys.NewDocument):
				return a.reset()
			case key.Matches(msg, a.keys.Leave):
				return a, tea.Quit
			}
			return a, nil
		}
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) dispatch(ev session.Event) session.State {
	st, _ := a.ctrl.Dispatch(ev)
	return st
}

// submit handles enter: a path in Intake, an answer in Interview.
func (a *App) submit(st session.State) (tea.Model, tea.Cmd) {
	value := a.input.Value()
	switch st.Phase {
	case session.PhaseIntake:
		if st.Busy {
			// Enter is ignored until the running upload settles.
			return a, nil
		}
		file, err := a.load(value)
		if err == nil {
			err = a.ctrl.CheckFile(file)
		}
		if err != nil {
			a.afterDispatch(a.dispatch(session.InvalidInput{Err: err}))
			return a, nil
		}
		next, eff := a.ctrl.Dispatch(session.FileSubmitted{Attempt: a.ctrl.NewAttempt(), File: file})
		a.afterDispatch(next)
		return a, a.runEffect(eff)
	case session.PhaseInterview:
		next, eff := a.ctrl.Dispatch(session.AnswerSubmitted{Attempt: a.ctrl.NewAttempt(), Text: value})
		a.afterDispatch(next)
		return a, a.runEffect(eff)
	}
	return a, nil
}

func (a *App) reset() (tea.Model, tea.Cmd) {
	a.savedPath = ""
	a.afterDispatch(a.dispatch(session.ResetRequested{}))
	a.statusMsg = "Session cleared."
	return a, nil
}

// runEffect performs eff off the UI loop and feeds its result back as a
// message. The spinner ticks only while the session is busy.
func (a *App) runEffect(eff session.Effect) tea.Cmd {
	if eff == nil {
		return nil
	}
	ctrl, timeout := a.ctrl, a.timeout
	run := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return effectResultMsg{event: ctrl.Run(ctx, eff)}
	}
	return tea.Batch(a.spinner.Tick, run)
}

func (a *App) checkHealth() tea.Cmd {
	if a.health == nil {
		return nil
	}
	checker := a.health
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
		defer cancel()
		h, err := checker.Health(ctx)
		return healthMsg{health: h, err: err}
	}
}

func (a *App) save(st session.State) tea.Cmd {
	if a.saver == nil || strings.TrimSpace(a.saveDir) == "" {
		a.statusMsg = "Saving is not configured; use the download link."
		return nil
	}
	if a.saving || st.Version() == "" {
		return nil
	}
	a.saving = true
	a.statusMsg = fmt.Sprintf("Saving plan %s...", st.Version())
	saver, dir, version, timeout := a.saver, a.saveDir, st.Version(), a.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		path, err := saver.SaveTo(ctx, version, dir)
		return savedMsg{path: path, err: err}
	}
}

// afterDispatch refreshes the status line and the input after a transition.
func (a *App) afterDispatch(st session.State) {
	switch {
	case st.Err != nil:
		a.statusMsg = st.Message
	case st.Busy && st.Phase == session.PhaseIntake:
		a.statusMsg = fmt.Sprintf("Uploading %s...", st.FileName)
	case st.Busy:
		a.statusMsg = fmt.Sprintf("Submitting %d answers...", st.Answers.Len())
	case st.Phase == session.PhaseInterview:
		a.statusMsg = fmt.Sprintf("Question %s", st.Snapshot().Progress())
	case st.Phase == session.PhaseResult:
		a.statusMsg = fmt.Sprintf("Plan version %s is ready.", st.Version())
	default:
		a.statusMsg = ""
	}
	a.syncInput(st)
}

func (a *App) syncInput(st session.State) {
	moved := st.Phase != a.lastPhase || st.Cursor != a.lastCursor
	a.lastPhase, a.lastCursor = st.Phase, st.Cursor
	switch st.Phase {
	case session.PhaseIntake:
		a.input.Placeholder = "path/to/syllabus.pdf"
	case session.PhaseInterview:
		a.input.Placeholder = "your answer"
	}
	if moved {
		a.input.SetValue("")
	}
}

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	rightWidth := max(32, width/3)
	leftWidth := width - rightWidth - 4
	if leftWidth < 40 {
		leftWidth = width - 4
	}
	if leftWidth < 20 {
		leftWidth = width
		rightWidth = 0
	}
	st := a.ctrl.State()
	var content string
	switch st.Phase {
	case session.PhaseIntake:
		content = a.renderIntake(st)
	case session.PhaseInterview:
		content = a.renderInterview(st)
	case session.PhaseResult:
		content = a.renderResult(st)
	}
	return a.renderStatusBoard(st, content, leftWidth, rightWidth)
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, _ := a.logbook.Tail(8)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s", fileName))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

func (a *App) renderStatusBoard(st session.State, mainContent string, leftWidth, rightWidth int) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render("⬡ SEMESTER PLANNER")
	left := lipgloss.JoinVertical(lipgloss.Left,
		renderPhasePanel(st),
		"",
		mainContent,
	)
	leftBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(max(20, leftWidth)).
		Render(left)
	var body string
	if rightWidth > 0 {
		rightBox := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1).
			Width(max(20, rightWidth)).
			Render(a.renderSessionPanel(st))
		body = lipgloss.JoinHorizontal(lipgloss.Top, leftBox, rightBox)
	} else {
		body = leftBox
	}
	sections := []string{header, body}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(a.statusMsg)
	sections = append(sections, footer, a.help.View(a.keys.forPhase(st)))
	return strings.Join(sections, "\n")
}

func renderPhasePanel(st session.State) string {
	pos, total := phasePosition(st.Phase)
	lines := []string{fmt.Sprintf("Phase: %s (%d/%d)", titleCase(st.Phase.String()), pos+1, total)}
	if next := upcomingPhases(st.Phase); len(next) > 0 {
		names := make([]string, 0, len(next))
		for _, p := range next {
			names = append(names, titleCase(p.String()))
		}
		lines = append(lines, fmt.Sprintf("Next: %s", strings.Join(names, " → ")))
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
}

func (a *App) renderSessionPanel(st session.State) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render("SESSION")
	value := func(v string) string {
		if strings.TrimSpace(v) == "" {
			return "-"
		}
		return v
	}
	lines := []string{
		title,
		fmt.Sprintf("Service: %s", a.serviceStatus),
		fmt.Sprintf("File: %s", value(st.FileName)),
		fmt.Sprintf("Session: %s", value(st.SessionID)),
	}
	if st.Queue.Len() > 0 {
		backend, prefs := st.Queue.Counts()
		lines = append(lines,
			fmt.Sprintf("Questions: %d (%d syllabus, %d preferences)", st.Queue.Len(), backend, prefs),
			fmt.Sprintf("Answered: %d", st.Answers.Len()),
		)
	}
	if v := st.Version(); v != "" {
		lines = append(lines, fmt.Sprintf("Version: %s", v))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderIntake(st session.State) string {
	lines := []string{
		lipgloss.NewStyle().Bold(true).Render("Upload a syllabus"),
		dim("Type the path to a PDF, DOCX, PNG or JPG file and press enter."),
		"",
	}
	if st.Busy {
		lines = append(lines, fmt.Sprintf("%s Uploading %s...", a.spinner.View(), st.FileName))
	} else {
		lines = append(lines, a.input.View())
	}
	return withError(st, strings.Join(lines, "\n"))
}

func (a *App) renderInterview(st session.State) string {
	task, _ := st.Current()
	lines := []string{dim(fmt.Sprintf("Question %s", st.Snapshot().Progress()))}
	if c := strings.TrimSpace(task.Context); c != "" {
		lines = append(lines, dim(c))
	}
	lines = append(lines, lipgloss.NewStyle().Bold(true).Render(strings.TrimSpace(task.Question)), "")
	switch {
	case st.Busy:
		lines = append(lines, fmt.Sprintf("%s Generating your plan...", a.spinner.View()))
	case st.CanRetry():
		lines = append(lines,
			a.input.View(),
			"",
			dim(fmt.Sprintf("Press ctrl+r to submit the %d answers again, or change the last answer.", st.Answers.Len())),
		)
	default:
		lines = append(lines, a.input.View())
	}
	return withError(st, strings.Join(lines, "\n"))
}

func (a *App) renderResult(st session.State) string {
	ok := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50"))
	lines := []string{
		ok.Render(fmt.Sprintf("✓ Plan version %s is ready", st.Version())),
		"",
		fmt.Sprintf("Download: %s", a.ctrl.DownloadURL()),
	}
	if a.savedPath != "" {
		lines = append(lines, fmt.Sprintf("Saved: %s", a.savedPath))
	}
	return withError(st, strings.Join(lines, "\n"))
}

func withError(st session.State, body string) string {
	if st.Err == nil {
		return body
	}
	msg := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF6B6B")).
		Render("✗ " + st.Message)
	return body + "\n\n" + msg
}

func dim(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render(s)
}

func titleCase(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	lower := strings.ToLower(value)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func phasePosition(p session.Phase) (int, int) {
	for i, phase := range phaseOrder {
		if p == phase {
			return i, len(phaseOrder)
		}
	}
	return len(phaseOrder), len(phaseOrder)
}

func upcomingPhases(p session.Phase) []session.Phase {
	pos, _ := phasePosition(p)
	if pos+1 >= len(phaseOrder) {
		return nil
	}
	return phaseOrder[pos+1:]
}
