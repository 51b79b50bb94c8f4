package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"solana-spot-engine/internal/config"
	"solana-spot-engine/internal/engine"
	"solana-spot-engine/internal/ranking"
)

var (
	ColorBg           = lipgloss.Color("#0f1c2e")
	ColorBorder       = lipgloss.Color("#2e7de9")
	ColorText         = lipgloss.Color("#a9b1d6")
	ColorAccentGreen  = lipgloss.Color("#41a6b5")
	ColorAccentPurple = lipgloss.Color("#bd93f9")
	ColorActive       = lipgloss.Color("#7aa2f7")

	ColorSuccess = lipgloss.Color("#73daca")
	ColorWarning = lipgloss.Color("#ff9e64")
	ColorError   = lipgloss.Color("#f7768e")
	ColorProfit  = lipgloss.Color("#9ece6a")
	ColorLoss    = lipgloss.Color("#f7768e")

	StylePage        = lipgloss.NewStyle().Background(ColorBg).Foreground(ColorText)
	StyleHeader      = lipgloss.NewStyle().Bold(true).Foreground(ColorActive)
	StyleKey         = lipgloss.NewStyle().Foreground(ColorAccentPurple).Bold(true)
	StyleProfit      = lipgloss.NewStyle().Foreground(ColorProfit)
	StyleLoss        = lipgloss.NewStyle().Foreground(ColorLoss)
	ColorGray        = ColorText
	StyleTableHeader = lipgloss.NewStyle().Foreground(ColorActive).Bold(true)
	StyleFooter      = lipgloss.NewStyle().Foreground(ColorText)
	StyleModal       = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(ColorBorder).Padding(1, 2)
	StyleHelpText    = lipgloss.NewStyle().Foreground(ColorAccentPurple).Italic(true)
)

func RenderHotKey(k, d string) string {
	return StyleKey.Render("["+k+"]") + d
}

// Screen identifies one of the dashboard's tabs.
type Screen string

const (
	ScreenDashboard Screen = "dashboard"
	ScreenQueue     Screen = "queue"
	ScreenRotations Screen = "rotations"
)

// KeyMap is the global keybinding set.
type KeyMap struct {
	Pause, ForceClose, Queue, Rotations, Theme, Quit key.Binding
	Up, Down, Tab, Enter, Escape                     key.Binding
}

var keys = KeyMap{
	Pause:      key.NewBinding(key.WithKeys("p")),
	ForceClose: key.NewBinding(key.WithKeys("x")),
	Queue:      key.NewBinding(key.WithKeys("2")),
	Rotations:  key.NewBinding(key.WithKeys("3")),
	Theme:      key.NewBinding(key.WithKeys("t")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c")),
	Up:         key.NewBinding(key.WithKeys("up", "k")),
	Down:       key.NewBinding(key.WithKeys("down", "j")),
	Tab:        key.NewBinding(key.WithKeys("tab")),
	Enter:      key.NewBinding(key.WithKeys("enter")),
	Escape:     key.NewBinding(key.WithKeys("esc")),
}

// RotationLogEntry is one row of the rotation log tail.
type RotationLogEntry struct {
	Time      time.Time
	Action    ranking.Action
	WorstMint string
	BestMint  string
	Reason    string
}

// RejectionEntry is one sizer rejection shown in the dashboard's footer log.
type RejectionEntry struct {
	Time   time.Time
	Mint   string
	Reason string
}

// Model is the dashboard's Bubbletea state.
type Model struct {
	Config        *config.Manager
	WalletBalance float64
	Running       bool
	Paused        bool
	StartTime     time.Time

	CurrentScreen Screen
	Width, Height int
	Selected      int

	Held            []ranking.RankedItem
	Candidates      []ranking.RankedItem
	ScoutQueueDepth int
	CoreSlotsUsed   int
	ScoutSlotsUsed  int
	GovernorHaircut float64
	LastTick        engine.TickSummary
	RotationLog     []RotationLogEntry
	Rejections      []RejectionEntry

	OnTogglePause func()
	OnForceClose  func(mint string)

	Anim AnimationState
}

// NewModel builds the dashboard's initial state.
func NewModel(cfg *config.Manager) Model {
	return Model{
		Config:        cfg,
		Running:       true,
		StartTime:     time.Now(),
		CurrentScreen: ScreenDashboard,
		Anim:          NewAnimationState(),
	}
}

// SetCallbacks wires the admin actions the dashboard can trigger.
func (m *Model) SetCallbacks(pause func(), forceClose func(string)) {
	m.OnTogglePause = pause
	m.OnForceClose = forceClose
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.SetWindowTitle("solana-spot-engine"), AnimationTickCmd())
}

// Messages pushed into the program from the tick loop via tea.Program.Send.
type TickSummaryMsg struct{ Summary engine.TickSummary }
type HeldUpdateMsg struct{ Items []ranking.RankedItem }
type CandidateUpdateMsg struct{ Items []ranking.RankedItem }
type CapacityMsg struct{ ScoutUsed, CoreUsed, QueueDepth int }
type GovernorMsg struct{ Haircut float64 }
type BalanceMsg struct{ SOL float64 }
type RotationMsg struct{ Entry RotationLogEntry }
type RejectionMsg struct{ Entry RejectionEntry }

const maxLogLines = 30

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleGlobalInput(msg)
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
	case AnimationTickMsg:
		m.Anim.Tick()
		return m, AnimationTickCmd()
	case TickSummaryMsg:
		m.LastTick = msg.Summary
	case HeldUpdateMsg:
		m.Held = msg.Items
	case CandidateUpdateMsg:
		m.Candidates = msg.Items
	case CapacityMsg:
		m.ScoutSlotsUsed, m.CoreSlotsUsed, m.ScoutQueueDepth = msg.ScoutUsed, msg.CoreUsed, msg.QueueDepth
	case GovernorMsg:
		m.GovernorHaircut = msg.Haircut
	case BalanceMsg:
		m.WalletBalance = msg.SOL
	case RotationMsg:
		m.RotationLog = append(m.RotationLog, msg.Entry)
		if len(m.RotationLog) > maxLogLines {
			m.RotationLog = m.RotationLog[len(m.RotationLog)-maxLogLines:]
		}
	case RejectionMsg:
		m.Rejections = append(m.Rejections, msg.Entry)
		if len(m.Rejections) > maxLogLines {
			m.Rejections = m.Rejections[len(m.Rejections)-maxLogLines:]
		}
	}
	return m, nil
}

func (m Model) handleGlobalInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.Running = false
		return m, tea.Quit
	case key.Matches(msg, keys.Pause):
		m.Paused = !m.Paused
		if m.OnTogglePause != nil {
			m.OnTogglePause()
		}
	case key.Matches(msg, keys.Theme):
		CycleTheme()
	case key.Matches(msg, keys.Queue):
		m.CurrentScreen = ScreenQueue
	case key.Matches(msg, keys.Rotations):
		m.CurrentScreen = ScreenRotations
	case key.Matches(msg, keys.Tab):
		m.CurrentScreen = nextScreen(m.CurrentScreen)
	case key.Matches(msg, keys.Up):
		if m.Selected > 0 {
			m.Selected--
		}
	case key.Matches(msg, keys.Down):
		if m.Selected < len(m.Held)-1 {
			m.Selected++
		}
	case key.Matches(msg, keys.ForceClose):
		if m.OnForceClose != nil && m.Selected < len(m.Held) {
			m.OnForceClose(m.Held[m.Selected].Mint)
		}
	}
	if msg.String() == "1" {
		m.CurrentScreen = ScreenDashboard
	}
	return m, nil
}

func nextScreen(s Screen) Screen {
	switch s {
	case ScreenDashboard:
		return ScreenQueue
	case ScreenQueue:
		return ScreenRotations
	default:
		return ScreenDashboard
	}
}

func (m Model) View() string {
	if m.Width == 0 {
		return "initializing..."
	}

	header := m.renderHeader()
	var body string
	switch m.CurrentScreen {
	case ScreenQueue:
		body = m.renderQueue()
	case ScreenRotations:
		body = m.renderRotations()
	default:
		body = m.renderDashboard()
	}
	footer := m.renderFooter()

	return StylePage.Render(strings.Join([]string{header, body, footer}, "\n"))
}

func (m Model) renderHeader() string {
	status := "RUNNING"
	if m.Paused {
		status = "PAUSED"
	}
	style := StyleHeader
	if m.GovernorHaircut > 0 {
		pulse := m.Anim.PulseValue(0, 1, 40)
		warnColor := ColorWarning
		if pulse > 0.5 {
			warnColor = ColorError
		}
		style = style.Copy().Foreground(warnColor)
	}
	return style.Render(fmt.Sprintf(
		"solana-spot-engine | %s | wallet %.3f SOL | scout %d/ core %d | queue depth %d | haircut %.2f",
		status, m.WalletBalance, m.ScoutSlotsUsed, m.CoreSlotsUsed, m.ScoutQueueDepth, m.GovernorHaircut))
}

func (m Model) renderDashboard() string {
	var b strings.Builder
	b.WriteString(StyleTableHeader.Render("MINT        SLOT    RANK     PNL%   FLAGS") + "\n")
	for i, h := range m.Held {
		if h.Held == nil {
			continue
		}
		pnlPct := 0.0
		if h.Held.EntryPrice > 0 {
			pnlPct = (h.Held.CurrentPrice - h.Held.EntryPrice) / h.Held.EntryPrice * 100
		}
		style := StyleProfit
		if pnlPct < 0 {
			style = StyleLoss
		}
		cursor := " "
		if i == m.Selected {
			cursor = ">"
		}
		b.WriteString(fmt.Sprintf("%s%-12s%-8s%7.2f  %s\n", cursor, truncate(h.Mint, 12), h.Held.SlotType, h.Rank, style.Render(fmt.Sprintf("%6.2f%%", pnlPct))))
	}
	return b.String()
}

func (m Model) renderQueue() string {
	var b strings.Builder
	b.WriteString(StyleTableHeader.Render("CANDIDATE MINTS (rank desc)") + "\n")
	sorted := append([]ranking.RankedItem(nil), m.Candidates...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank > sorted[j].Rank })
	for _, c := range sorted {
		b.WriteString(fmt.Sprintf("%-12s  rank %6.2f\n", truncate(c.Mint, 12), c.Rank))
	}
	return b.String()
}

func (m Model) renderRotations() string {
	var b strings.Builder
	b.WriteString(StyleTableHeader.Render("ROTATION LOG") + "\n")
	for i := len(m.RotationLog) - 1; i >= 0; i-- {
		r := m.RotationLog[i]
		b.WriteString(fmt.Sprintf("%s  %-32s %-12s -> %-12s (%s)\n",
			r.Time.Format("15:04:05"), r.Action, truncate(r.WorstMint, 12), truncate(r.BestMint, 12), r.Reason))
	}
	b.WriteString("\n" + StyleTableHeader.Render("SIZER REJECTIONS") + "\n")
	for i := len(m.Rejections) - 1; i >= 0; i-- {
		r := m.Rejections[i]
		b.WriteString(fmt.Sprintf("%s  %-12s %s\n", r.Time.Format("15:04:05"), truncate(r.Mint, 12), r.Reason))
	}
	return b.String()
}

func (m Model) renderFooter() string {
	return StyleFooter.Render(RenderHotKey("p", " pause") + RenderHotKey("x", " close") +
		RenderHotKey("2", " queue") + RenderHotKey("3", " rotations") + RenderHotKey("t", " theme") + RenderHotKey("q", " quit"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
