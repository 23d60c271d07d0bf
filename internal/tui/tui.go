package tui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mkessler-io/motionbridge/internal/db"
	"github.com/mkessler-io/motionbridge/internal/history"
)

// Tab represents a dashboard tab
type Tab int

const (
	TabStatus Tab = iota
	TabTools
	TabHistory
)

func (t Tab) String() string {
	return []string{"Status", "Tools", "History"}[t]
}

// gatewayStatus mirrors GET /api/status
type gatewayStatus struct {
	BridgeConnected bool   `json:"bridge_connected"`
	SessionID       string `json:"session_id"`
	ToolCount       int    `json:"tool_count"`
	ToolSource      string `json:"tool_source"`
	Model           string `json:"model"`
	UptimeSeconds   int    `json:"uptime_seconds"`
}

// gatewayTool mirrors one entry of GET /api/tools
type gatewayTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Model is the main TUI model
type Model struct {
	// Config
	gatewayURL string
	dbPath     string

	// State
	currentTab  Tab
	width       int
	height      int
	ready       bool
	lastRefresh time.Time
	err         error

	// Data
	status      *gatewayStatus
	tools       []gatewayTool
	invocations []history.Invocation

	// Components
	spinner spinner.Model
}

// tickMsg is sent periodically to refresh data
type tickMsg time.Time

// dataMsg carries refreshed data
type dataMsg struct {
	status      *gatewayStatus
	tools       []gatewayTool
	invocations []history.Invocation
	err         error
}

// NewModel creates a new TUI model
func NewModel(gatewayURL, dbPath string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return Model{
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		dbPath:     dbPath,
		currentTab: TabStatus,
		spinner:    s,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.refreshData,
		tickEvery(5*time.Second),
	)
}

// tickEvery returns a command that ticks every duration
func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refreshData fetches fresh data
func (m Model) refreshData() tea.Msg {
	data := dataMsg{}
	client := &http.Client{Timeout: 3 * time.Second}

	// Gateway status
	if resp, err := client.Get(m.gatewayURL + "/api/status"); err == nil {
		var st gatewayStatus
		if json.NewDecoder(resp.Body).Decode(&st) == nil {
			data.status = &st
		}
		resp.Body.Close()
	} else {
		data.err = err
	}

	// Tool inventory
	if resp, err := client.Get(m.gatewayURL + "/api/tools"); err == nil {
		var payload struct {
			Tools []gatewayTool `json:"tools"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			data.tools = payload.Tools
		}
		resp.Body.Close()
	}

	// Recent invocations from the audit log
	if database, err := db.Open(m.dbPath); err == nil {
		svc := history.NewService(database)
		if rows, _, err := svc.List(history.Filter{Limit: 15}); err == nil {
			data.invocations = rows
		}
		database.Close()
	}

	return data
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "1":
			m.currentTab = TabStatus
		case "2":
			m.currentTab = TabTools
		case "3":
			m.currentTab = TabHistory
		case "r":
			return m, m.refreshData
		case "tab":
			m.currentTab = Tab((int(m.currentTab) + 1) % 3)
		case "shift+tab":
			m.currentTab = Tab((int(m.currentTab) + 2) % 3)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case tickMsg:
		return m, tea.Batch(
			m.refreshData,
			tickEvery(5*time.Second),
		)

	case dataMsg:
		m.status = msg.status
		m.tools = msg.tools
		m.invocations = msg.invocations
		m.err = msg.err
		m.lastRefresh = time.Now()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	if !m.ready {
		return "\n  Loading..."
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	switch m.currentTab {
	case TabStatus:
		b.WriteString(m.renderStatusTab())
	case TabTools:
		b.WriteString(m.renderToolsTab())
	case TabHistory:
		b.WriteString(m.renderHistoryTab())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m Model) renderHeader() string {
	title := "motionbridge"
	refresh := fmt.Sprintf("Last refresh: %s", m.lastRefresh.Format("15:04:05"))

	headerWidth := m.width
	if headerWidth < 60 {
		headerWidth = 60
	}

	left := lipgloss.NewStyle().Bold(true).Render(title)
	right := lipgloss.NewStyle().Foreground(mutedColor).Render(refresh)

	gap := headerWidth - lipgloss.Width(left) - lipgloss.Width(right) - 4
	if gap < 0 {
		gap = 0
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color("#1E293B")).
		Foreground(lipgloss.Color("#FFFFFF")).
		Padding(0, 1).
		Width(headerWidth).
		Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderTabs() string {
	var tabs []string
	for i := 0; i < 3; i++ {
		tab := Tab(i)
		style := tabStyle
		if tab == m.currentTab {
			style = activeTabStyle
		}
		tabs = append(tabs, style.Render(fmt.Sprintf("[%d]%s", i+1, tab.String())))
	}
	return strings.Join(tabs, " ")
}

func (m Model) renderFooter() string {
	help := "  [1-3] Switch tabs  [Tab] Next  [r] Refresh  [q] Quit"
	return helpStyle.Render(help)
}

func (m Model) renderStatusTab() string {
	if m.status == nil {
		msg := statusMutedStyle.Render("  Gateway unreachable at " + m.gatewayURL)
		if m.err != nil {
			msg += "\n" + statusErrorStyle.Render("  "+m.err.Error())
		}
		return msg
	}

	gatewayBox := boxStyle.Width(35).Render(
		titleStyle.Render("Gateway") + "\n" +
			fmt.Sprintf("Bridge:  %s\n", StatusIcon(m.status.BridgeConnected)) +
			fmt.Sprintf("Model:   %s\n", m.status.Model) +
			fmt.Sprintf("Uptime:  %ds", m.status.UptimeSeconds),
	)

	toolsBox := boxStyle.Width(35).Render(
		titleStyle.Render("Tools") + "\n" +
			fmt.Sprintf("Count:   %s\n", statusActiveStyle.Render(fmt.Sprintf("%d", m.status.ToolCount))) +
			fmt.Sprintf("Source:  %s\n", m.status.ToolSource) +
			fmt.Sprintf("Session: %s", shorten(m.status.SessionID, 18)),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, gatewayBox, "  ", toolsBox)
}

func (m Model) renderToolsTab() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Tools"))
	b.WriteString("\n\n")

	if len(m.tools) == 0 {
		b.WriteString(statusMutedStyle.Render("  No tools"))
		return b.String()
	}

	for _, t := range m.tools {
		b.WriteString(fmt.Sprintf("  %s %s\n", statusActiveStyle.Render("●"), t.Name))
		if t.Description != "" {
			b.WriteString(subtitleStyle.Render("      " + t.Description))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m Model) renderHistoryTab() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Recent invocations"))
	b.WriteString("\n\n")

	if len(m.invocations) == 0 {
		b.WriteString(statusMutedStyle.Render("  No invocations recorded"))
		return b.String()
	}

	for _, inv := range m.invocations {
		line := fmt.Sprintf("  %s %s %s (%dms)",
			StatusIcon(inv.OK),
			inv.CreatedAt.Format("15:04:05"),
			inv.Tool,
			inv.ElapsedMS)
		if !inv.OK && inv.Error != "" {
			line += statusPendingStyle.Render("  " + shorten(inv.Error, 50))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// Run starts the TUI
func Run(gatewayURL, dbPath string) error {
	p := tea.NewProgram(
		NewModel(gatewayURL, dbPath),
		tea.WithAltScreen(),
	)

	_, err := p.Run()
	return err
}
