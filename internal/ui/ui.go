package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/mtpsync/internal/device"
	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/shared"
	"github.com/desertthunder/mtpsync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	DiffView ViewState = iota
	ConfirmView
	TransferView
	ResultView
)

// DesiredFunc builds the desired set, re-resolving playlists on every call.
type DesiredFunc func(ctx context.Context) (models.DesiredSet, error)

// ModelOpts configures a [Model].
type ModelOpts struct {
	Engine  tasks.SyncEngine
	Device  *device.Handle
	Desired DesiredFunc
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	engine       tasks.SyncEngine
	device       *device.Handle
	loadDesired  DesiredFunc
	width        int
	height       int
	loading      bool
	desired      models.DesiredSet
	diff         *tasks.DiffResult
	missingList  list.Model
	progressChan chan tasks.ProgressUpdate
	doneChan     chan runComplete
	progress     tasks.ProgressUpdate
	transfer     *tasks.TransferProgress
	log          []string
	result       *tasks.RunResult
	err          error
	spinner      spinner.Model
	bar          progress.Model
	help         help.Model
	keys         keyMap
}

const logLines = 5

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts ModelOpts) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return &Model{
		ctx:         ctx,
		view:        DiffView,
		engine:      opts.Engine,
		device:      opts.Device,
		loadDesired: opts.Desired,
		loading:     true,
		spinner:     s,
		bar:         progress.New(progress.WithDefaultGradient()),
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// ViewState returns the current view.
func (m *Model) ViewState() ViewState { return m.view }

// Err returns the last error shown to the user.
func (m *Model) Err() error { return m.err }

// Result returns the result of the last completed run.
func (m *Model) Result() *tasks.RunResult { return m.result }

// Init initializes the TUI by computing the diff.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.computeDiff())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-8, 10)
		if m.diff != nil {
			m.missingList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case DiffView:
			return m.handleDiffKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case TransferView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgDiffComputed:
		data := msg.data.(diffComputed)
		m.loading = false
		m.err = data.err
		if data.err != nil {
			return m, nil
		}
		m.desired = data.desired
		m.diff = data.diff

		items := make([]list.Item, len(data.diff.Items))
		for i, it := range data.diff.Items {
			items[i] = missingItem{item: it}
		}
		m.missingList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.missingList.Title = fmt.Sprintf("%d of %d item(s) missing on device", len(data.diff.Missing), data.diff.Desired)
		m.missingList.SetSize(m.width-4, m.height-8)
		return m, nil

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.progress = update
		switch data := update.Data.(type) {
		case tasks.TransferProgress:
			m.transfer = &data
		case models.RunItem:
			m.transfer = nil
			m.appendLog(update.Message)
		default:
			if update.Phase == tasks.Transcode {
				m.appendLog(update.Message)
			}
		}
		return m, m.waitForProgress()

	case MsgRunComplete:
		data := msg.data.(runComplete)
		m.result = data.result
		m.err = data.err
		m.view = ResultView
		m.progressChan = nil
		m.doneChan = nil
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case DiffView:
		return m.renderDiff()
	case ConfirmView:
		return m.renderConfirm()
	case TransferView:
		return m.renderTransfer()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleDiffKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case m.loading:
		return m, nil
	case key.Matches(msg, m.keys.restart):
		return m, m.refresh()
	case key.Matches(msg, m.keys.enter):
		if m.err == nil && m.diff != nil && len(m.diff.Items) > 0 {
			m.view = ConfirmView
		}
		return m, nil
	}

	if m.diff == nil {
		return m, nil
	}
	var cmd tea.Cmd
	m.missingList, cmd = m.missingList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = DiffView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = TransferView
		return m, m.startRun()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = DiffView
		return m, m.refresh()
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != DiffView || m.diff == nil {
		return m, nil
	}
	var cmd tea.Cmd
	m.missingList, cmd = m.missingList.Update(msg)
	return m, cmd
}

func (m *Model) refresh() tea.Cmd {
	m.loading = true
	m.err = nil
	m.diff = nil
	m.result = nil
	m.transfer = nil
	m.log = nil
	m.progress = tasks.ProgressUpdate{}
	return tea.Batch(m.spinner.Tick, m.computeDiff())
}

func (m *Model) computeDiff() tea.Cmd {
	ctx, engine, h, load := m.ctx, m.engine, m.device, m.loadDesired
	return func() tea.Msg {
		desired, err := load(ctx)
		if err != nil {
			return diffComputedMsg(nil, nil, err)
		}
		diff, err := engine.Diff(ctx, nil, h, desired)
		return diffComputedMsg(desired, diff, err)
	}
}

func (m *Model) startRun() tea.Cmd {
	progressChan := make(chan tasks.ProgressUpdate, 64)
	doneChan := make(chan runComplete, 1)
	m.progressChan = progressChan
	m.doneChan = doneChan
	m.log = nil

	ctx, engine, h, desired := m.ctx, m.engine, m.device, m.desired
	go func() {
		result, err := engine.Run(ctx, progressChan, h, desired)
		doneChan <- runComplete{result: result, err: err}
		close(progressChan)
	}()

	return tea.Batch(m.spinner.Tick, m.waitForProgress())
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan, doneChan := m.progressChan, m.doneChan
	return func() tea.Msg {
		if progressChan == nil {
			return nil
		}

		update, ok := <-progressChan
		if !ok {
			done := <-doneChan
			return runCompleteMsg(done.result, done.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) appendLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > logLines {
		m.log = m.log[len(m.log)-logLines:]
	}
}

func (m *Model) renderDiff() string {
	if m.loading {
		return fmt.Sprintf("%s Reading playlists and device...\n\n%s", m.spinner.View(), m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	}
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" + m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})
	}
	if len(m.diff.Items) == 0 {
		title := styles.ok.Render("✓ Device is up to date")
		info := fmt.Sprintf("\n%d item(s) in playlists, all present in %s", m.diff.Desired, m.diff.Area.Description)
		return fmt.Sprintf("%s\n%s\n\n%s", title, info, m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit}))
	}

	helpKeys := []key.Binding{m.keys.enter, m.keys.restart, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.missingList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Sync %d item(s) to '%s'?", len(m.diff.Items), m.device.Name()))
	info := fmt.Sprintf("\nStorage: %s\nFolder: %s\n", m.diff.Area.Description, m.diff.Tree.Name)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	return fmt.Sprintf("%s\n%s\n%s", title, info, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderTransfer() string {
	title := styles.title.Render("Syncing to " + m.device.Name())

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")

	switch m.progress.Phase {
	case tasks.Transcode, tasks.Transfer:
		b.WriteString(fmt.Sprintf("%s %s (%d/%d)\n", m.spinner.View(), m.progress.Phase, m.progress.Step, m.progress.Total))
		b.WriteString(m.bar.ViewAs(fraction(int64(m.progress.Step), int64(m.progress.Total))))
		b.WriteString("\n")
	default:
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), m.progress.Message))
	}

	if m.transfer != nil {
		b.WriteString(fmt.Sprintf("\n%s  %s / %s\n", m.transfer.Destination, shared.FormatBytes(m.transfer.Sent), shared.FormatBytes(m.transfer.Total)))
		b.WriteString(m.bar.ViewAs(fraction(m.transfer.Sent, m.transfer.Total)))
		b.WriteString("\n")
	}

	if len(m.log) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.help.Render(strings.Join(m.log, "\n")))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.result == nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %v", m.err)) + "\n\n" + helpView
	}

	report := m.result.Report()
	var title string
	switch {
	case m.err != nil:
		title = styles.err.Render(fmt.Sprintf("✗ Sync stopped: %v", m.err))
	case report.Failed > 0:
		title = styles.warn.Render("! Sync finished with failures")
	default:
		title = styles.ok.Render("✓ Sync complete")
	}

	info := fmt.Sprintf(
		"\nDevice: %s (%s)\nTransferred: %d/%d (%s)\nDuration: %s",
		report.Device,
		report.StorageArea,
		report.Transferred,
		report.Missing,
		shared.FormatBytes(report.Bytes),
		report.Duration.Round(time.Millisecond),
	)

	var failed string
	if report.Failed > 0 {
		failed = fmt.Sprintf("\n\n%s", styles.warn.Render(fmt.Sprintf("%d item(s) failed:", report.Failed)))
		for _, it := range report.Items {
			if it.Failed() {
				failed += fmt.Sprintf("\n  • %s [%s] %s", it.Destination, it.Stage, it.Error)
			}
		}
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed, helpView)
}

func fraction(n, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(n) / float64(total)
}
