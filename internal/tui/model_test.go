package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"solana-spot-engine/internal/ranking"
)

func TestUpdate_HeldUpdateMsgReplacesItems(t *testing.T) {
	m := NewModel(nil)
	held := []ranking.RankedItem{{Mint: "MintA", Rank: 2.5, Held: &ranking.HeldPosition{SlotType: ranking.SlotScout}}}

	updated, _ := m.Update(HeldUpdateMsg{Items: held})
	model := updated.(Model)
	require.Len(t, model.Held, 1)
	require.Equal(t, "MintA", model.Held[0].Mint)
}

func TestUpdate_CapacityMsgSetsSlotCounts(t *testing.T) {
	m := NewModel(nil)
	updated, _ := m.Update(CapacityMsg{ScoutUsed: 2, CoreUsed: 1, QueueDepth: 4})
	model := updated.(Model)
	require.Equal(t, 2, model.ScoutSlotsUsed)
	require.Equal(t, 1, model.CoreSlotsUsed)
	require.Equal(t, 4, model.ScoutQueueDepth)
}

func TestUpdate_RotationLogTrimsToMax(t *testing.T) {
	m := NewModel(nil)
	for i := 0; i < maxLogLines+5; i++ {
		updated, _ := m.Update(RotationMsg{Entry: RotationLogEntry{Time: time.Now(), Action: ranking.ActionTrailingStopExit}})
		m = updated.(Model)
	}
	require.Len(t, m.RotationLog, maxLogLines)
}

func TestHandleGlobalInput_PauseTogglesAndInvokesCallback(t *testing.T) {
	m := NewModel(nil)
	called := false
	m.SetCallbacks(func() { called = true }, nil)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	model := updated.(Model)
	require.True(t, model.Paused)
	require.True(t, called)
}

func TestHandleGlobalInput_ForceCloseUsesSelectedMint(t *testing.T) {
	m := NewModel(nil)
	m.Held = []ranking.RankedItem{{Mint: "MintA"}, {Mint: "MintB"}}
	m.Selected = 1
	var closedMint string
	m.SetCallbacks(nil, func(mint string) { closedMint = mint })

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	require.Equal(t, "MintB", closedMint)
}

func TestHandleGlobalInput_QuitStopsProgram(t *testing.T) {
	m := NewModel(nil)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	model := updated.(Model)
	require.False(t, model.Running)
	require.NotNil(t, cmd)
}

func TestView_RendersWithoutPanicOnceSized(t *testing.T) {
	m := NewModel(nil)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	model := updated.(Model)
	model.Held = []ranking.RankedItem{{Mint: "MintA", Rank: 1.0, Held: &ranking.HeldPosition{SlotType: ranking.SlotCore, EntryPrice: 1.0, CurrentPrice: 1.1}}}

	require.NotPanics(t, func() { _ = model.View() })
}
