package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogtb/go-gridcalc/packages/spreadsheet"
)

type fakeSaver struct {
	mu      sync.Mutex
	touches int
	flushes int
	err     error
}

func (s *fakeSaver) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touches++
}

func (s *fakeSaver) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return s.err
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, msgs ...tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(Model)
	}
	return m, cmd
}

func typeText(text string) []tea.Msg {
	msgs := make([]tea.Msg, 0, len(text))
	for _, r := range text {
		msgs = append(msgs, runes(string(r)))
	}
	return msgs
}

func newModel(t *testing.T) (Model, *spreadsheet.Workbook, *fakeSaver) {
	t.Helper()
	wb := spreadsheet.NewWorkbook("Test")
	saver := &fakeSaver{}
	m := New(wb, WithSaver(saver), WithInterval(time.Millisecond))
	m, _ = press(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, wb, saver
}

func TestNavigation(t *testing.T) {
	m, _, _ := newModel(t)
	assert.Equal(t, "A1", m.selected().String())

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown}, runes("j"), runes("l"), tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, "C3", m.selected().String())

	m, _ = press(t, m, runes("k"), tea.KeyMsg{Type: tea.KeyLeft}, runes("h"))
	assert.Equal(t, "A2", m.selected().String())

	m, _ = press(t, m, runes("h"), tea.KeyMsg{Type: tea.KeyUp}, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "A1", m.selected().String(), "selection is clamped")

	for i := 0; i < 30; i++ {
		m, _ = press(t, m, runes("l"))
	}
	assert.Equal(t, "Z1", m.selected().String())
	assert.Greater(t, m.leftCol, uint32(0), "viewport follows the selection")
}

func TestEditAndSubmit(t *testing.T) {
	m, wb, saver := newModel(t)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, m.editing)
	m, _ = press(t, m, typeText("42")...)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.editing)
	assert.Equal(t, "A2", m.selected().String(), "submit moves down")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = press(t, m, typeText("=A1*2")...)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	value, err := wb.Value("A2")
	require.NoError(t, err)
	assert.Equal(t, 84.0, value)
	assert.Equal(t, 2, saver.touches)

	// editing loads the raw text back into the bar
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyUp}, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "=A1*2", m.input.Value())

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.editing)
	assert.Empty(t, m.input.Value())
	value, err = wb.Value("A2")
	require.NoError(t, err)
	assert.Equal(t, 84.0, value, "esc discards the edit")
}

func TestEditingKeysGoToInput(t *testing.T) {
	m, wb, _ := newModel(t)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = press(t, m, typeText("hjkl")...)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	cell, ok := wb.Cell("A1")
	require.True(t, ok)
	assert.Equal(t, "hjkl", cell.Raw)
}

func TestSheets(t *testing.T) {
	m, wb, _ := newModel(t)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	require.Len(t, wb.Sheets(), 2)
	assert.Equal(t, "Sheet2", wb.ActiveSheet().Name)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "Sheet1", wb.ActiveSheet().Name)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, "Sheet2", wb.ActiveSheet().Name)
	assert.Contains(t, m.View(), "Sheet2")
}

func TestDeleteAndFormat(t *testing.T) {
	m, wb, _ := newModel(t)
	require.NoError(t, wb.Submit("A1", "5"))

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlB}, tea.KeyMsg{Type: tea.KeyCtrlU}, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("i"), Alt: true})
	cell, ok := wb.Cell("A1")
	require.True(t, ok)
	assert.Equal(t, spreadsheet.CellFormat{Bold: true, Italic: true, Underline: true}, cell.Format)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlB})
	cell, _ = wb.Cell("A1")
	assert.False(t, cell.Format.Bold)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	_, ok = wb.Cell("A1")
	assert.False(t, ok)
}

func TestAutoSaveToggle(t *testing.T) {
	m, wb, saver := newModel(t)
	require.True(t, wb.AutoSave())

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlA})
	assert.False(t, wb.AutoSave())
	assert.Contains(t, m.View(), "auto-save off")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = press(t, m, typeText("1")...)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Zero(t, saver.touches, "no auto-save while disabled")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlA})
	assert.True(t, wb.AutoSave())
	assert.Equal(t, 1, saver.touches)
}

func TestSave(t *testing.T) {
	m, _, saver := newModel(t)

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, savedMsg{}, msg)
	assert.Equal(t, 1, saver.flushes)

	m, _ = press(t, m, msg)
	assert.Contains(t, m.status, "saved")
	assert.NoError(t, m.lastErr)

	saver.err = errors.New("disk full")
	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	m, _ = press(t, m, cmd())
	assert.ErrorContains(t, m.lastErr, "disk full")
	assert.Contains(t, m.View(), "disk full")
}

func TestSaveWithoutStore(t *testing.T) {
	m := New(spreadsheet.NewWorkbook("Unsaved"))
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Nil(t, cmd)
	assert.Equal(t, spreadsheet.FailedPrecondition, spreadsheet.CodeOf(m.lastErr))
}

func TestRefreshTick(t *testing.T) {
	m, wb, _ := newModel(t)
	require.NoError(t, wb.Submit("A1", "=RAND()"))

	m, cmd := press(t, m, refreshMsg(time.Now()))
	require.NotNil(t, cmd, "the tick reschedules itself")
	assert.Equal(t, 1, m.refreshes)
}

func TestQuit(t *testing.T) {
	m, _, _ := newModel(t)
	for _, msg := range []tea.KeyMsg{{Type: tea.KeyCtrlC}, {Type: tea.KeyCtrlQ}} {
		_, cmd := press(t, m, msg)
		require.NotNil(t, cmd)
		assert.Equal(t, tea.Quit(), cmd())
	}
}

func TestView(t *testing.T) {
	m, wb, _ := newModel(t)
	require.NoError(t, wb.Submit("A1", "10"))
	require.NoError(t, wb.Submit("B1", "=A1/0"))
	require.NoError(t, wb.Submit("C1", "=C1"))

	view := m.View()
	for _, want := range []string{"Sheet1", "A", "B", "10", "#ERROR", "#CIRCULAR", "auto-save on", "number"} {
		assert.Contains(t, view, want)
	}
	assert.GreaterOrEqual(t, strings.Count(view, "\n"), int(m.visibleRows()))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 12))
	assert.Equal(t, "abcdefghijk…", truncate("abcdefghijklmnop", 12))
}
