package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pipetide/pipetide/internal/events"
)

// TaskState represents the observed state of one task.
type TaskState struct {
	URL       string
	Name      string
	Status    string // "running", "done", "fail", "skipped"
	Log       []string
	StartTime time.Time
	Duration  time.Duration
}

// TaskPaneModel is the task list plus per-task log viewport.
type TaskPaneModel struct {
	tasks       map[string]*TaskState // task URL -> state
	taskOrder   []string              // first-seen order for display
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewTaskPaneModel creates a new task pane model.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{
		tasks:    make(map[string]*TaskState),
		viewport: viewport.New(0, 0),
	}
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if !m.focused {
			break
		}

		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.taskOrder)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskStartedEvent:
		state := m.ensureTask(msg.URL)
		state.Status = "running"
		state.StartTime = msg.Timestamp
		line := fmt.Sprintf("%s started", msg.Timestamp.Format("15:04:05"))
		if msg.ChunkID >= 0 {
			line += fmt.Sprintf(" (chunk %d)", msg.ChunkID)
		}
		state.Log = append(state.Log, line)
		if m.selectedURL() == msg.URL {
			m.updateViewportContent()
		}

	case events.TaskFinishedEvent:
		if state, exists := m.tasks[msg.URL]; exists {
			state.Status = msg.Status
			state.Duration = msg.Duration
			state.Log = append(state.Log, fmt.Sprintf("%s finished %s after %v",
				msg.Timestamp.Format("15:04:05"), msg.Status, msg.Duration.Round(time.Millisecond)))
			if m.selectedURL() == msg.URL {
				m.updateViewportContent()
			}
		}

	case events.TaskSkippedEvent:
		state := m.ensureTask(msg.URL)
		state.Status = "skipped"
		state.Log = append(state.Log, fmt.Sprintf("%s outputs up to date, not run",
			msg.Timestamp.Format("15:04:05")))
		if m.selectedURL() == msg.URL {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// ensureTask returns the state for a URL, registering it on first sight.
func (m *TaskPaneModel) ensureTask(url string) *TaskState {
	if state, exists := m.tasks[url]; exists {
		return state
	}
	state := &TaskState{
		URL:  url,
		Name: taskDisplayName(url),
	}
	m.tasks[url] = state
	m.taskOrder = append(m.taskOrder, url)
	if len(m.taskOrder) == 1 {
		m.selectedIdx = 0
		m.updateViewportContent()
	}
	return state
}

// taskDisplayName shortens a task URL to its final path segment.
func taskDisplayName(url string) string {
	trimmed := strings.TrimSuffix(url, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := 30
	viewportWidth := m.width - listWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(listWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// renderTaskList renders the task list column.
func (m TaskPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	} else {
		for i, url := range m.taskOrder {
			state := m.tasks[url]
			icon := m.StatusIcon(state.Status)
			name := state.Name
			if len(name) > width-6 {
				name = name[:width-9] + "..."
			}

			line := fmt.Sprintf("%s %s", icon, name)
			if i == m.selectedIdx {
				line = lipgloss.NewStyle().
					Background(lipgloss.Color("62")).
					Foreground(lipgloss.Color("0")).
					Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled status indicator.
func (m TaskPaneModel) StatusIcon(status string) string {
	switch status {
	case "running":
		return StyleStatusRunning.Render("●")
	case "done":
		return StyleStatusComplete.Render("✓")
	case "fail":
		return StyleStatusFailed.Render("✗")
	case "skipped":
		return StyleStatusComplete.Render("≡")
	default:
		return StyleStatusPending.Render("○")
	}
}

// selectedURL returns the URL of the currently selected task.
func (m TaskPaneModel) selectedURL() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.taskOrder) {
		return m.taskOrder[m.selectedIdx]
	}
	return ""
}

// updateViewportContent fills the viewport with the selected task's log.
func (m *TaskPaneModel) updateViewportContent() {
	url := m.selectedURL()
	if url == "" {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}

	state, exists := m.tasks[url]
	if !exists {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}

	lines := append([]string{state.URL, ""}, state.Log...)
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

// resizeViewport resizes the viewport based on pane dimensions.
func (m *TaskPaneModel) resizeViewport() {
	listWidth := 30
	viewportWidth := m.width - listWidth - 4
	viewportHeight := m.height - 4

	if viewportWidth < 10 {
		viewportWidth = 10
	}
	if viewportHeight < 5 {
		viewportHeight = 5
	}

	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
