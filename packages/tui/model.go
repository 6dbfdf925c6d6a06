// Package tui is the interactive terminal grid for a workbook
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/vogtb/go-gridcalc/packages/spreadsheet"
	"go.uber.org/zap"
)

const (
	columnWidth    = 12
	rowNumberWidth = 5
	// tabs, column header, formula bar (3 lines), status, help
	chromeHeight = 7
	saveTimeout  = 10 * time.Second
)

// Saver persists the workbook. store.AutoSaver implements it.
type Saver interface {
	Touch()
	Flush(ctx context.Context) error
}

// refreshMsg drives the volatile refresh loop
type refreshMsg time.Time

// savedMsg reports the outcome of an explicit save
type savedMsg struct {
	at  time.Time
	err error
}

// Option configures a Model
type Option func(*Model)

// WithSaver enables ctrl+s and auto-save
func WithSaver(saver Saver) Option {
	return func(m *Model) {
		m.saver = saver
	}
}

// WithInterval sets the volatile refresh interval
func WithInterval(interval time.Duration) Option {
	return func(m *Model) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Model) {
		m.logger = logger.Named("tui")
	}
}

// Model is the bubbletea model of the grid
type Model struct {
	wb       *spreadsheet.Workbook
	saver    Saver
	logger   *zap.Logger
	interval time.Duration

	keys   keyMap
	help   help.Model
	styles Styles
	input  textinput.Model

	editing   bool
	width     int
	height    int
	topRow    uint32
	leftCol   uint32
	status    string
	lastErr   error
	refreshes int
}

// New builds a model over wb
func New(wb *spreadsheet.Workbook, opts ...Option) Model {
	input := textinput.New()
	input.Placeholder = "value or =formula"
	input.Prompt = ""
	input.CharLimit = 1024

	m := Model{
		wb:       wb,
		logger:   zap.NewNop(),
		interval: time.Second,
		keys:     defaultKeyMap(),
		help:     help.New(),
		styles:   DefaultStyles(),
		input:    input,
		width:    80,
		height:   24,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), textinput.Blink)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m Model) save() tea.Cmd {
	saver := m.saver
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		err := saver.Flush(ctx)
		return savedMsg{at: time.Now(), err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		if refreshed := m.wb.RefreshVolatile(); len(refreshed) > 0 {
			m.refreshes++
		}
		return m, m.tick()

	case savedMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			m.logger.Error("save failed", zap.Error(msg.err))
		} else {
			m.lastErr = nil
			m.status = "saved " + msg.at.Format("15:04:05")
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-rowNumberWidth-4, 10)
		m.help.Width = msg.Width
		m.scrollToSelection()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateGrid(msg)
	}
	return m, nil
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Edit):
		addr := m.selected()
		if err := m.wb.Submit(addr.String(), m.input.Value()); err != nil {
			m.lastErr = err
			return m, nil
		}
		m.logger.Debug("cell submitted", zap.String("cell", addr.String()))
		m.stopEditing()
		m.touch()
		m.move(1, 0)
		return m, nil
	case key.Matches(msg, m.keys.Cancel):
		m.stopEditing()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	addr := m.selected().String()

	switch {
	case key.Matches(msg, m.keys.Up):
		m.move(-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.move(1, 0)
	case key.Matches(msg, m.keys.Left):
		m.move(0, -1)
	case key.Matches(msg, m.keys.Right):
		m.move(0, 1)
	case key.Matches(msg, m.keys.Edit):
		cell, _ := m.wb.Cell(addr)
		m.editing = true
		m.input.SetValue(cell.Raw)
		m.input.CursorEnd()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Cancel):
		m.input.Reset()
		m.lastErr = nil
		m.status = ""
	case key.Matches(msg, m.keys.NextSheet):
		m.switchSheet(m.wb.CycleSheet(1))
	case key.Matches(msg, m.keys.PrevSheet):
		m.switchSheet(m.wb.CycleSheet(-1))
	case key.Matches(msg, m.keys.NewSheet):
		info, err := m.wb.AddSheet("")
		if err != nil {
			m.lastErr = err
			break
		}
		m.switchSheet(info)
		m.touch()
	case key.Matches(msg, m.keys.Delete):
		if err := m.wb.Remove(addr); err != nil {
			m.lastErr = err
			break
		}
		m.touch()
	case key.Matches(msg, m.keys.AutoSave):
		enabled := !m.wb.AutoSave()
		m.wb.SetAutoSave(enabled)
		m.status = "auto-save " + onOff(enabled)
		if enabled {
			m.touch()
		}
	case key.Matches(msg, m.keys.Save):
		if m.saver == nil {
			m.lastErr = spreadsheet.NewApplicationError(spreadsheet.FailedPrecondition, "no store configured")
			break
		}
		m.status = "saving..."
		return m, m.save()
	case key.Matches(msg, m.keys.Bold):
		m.toggleFormat(addr, func(f *spreadsheet.CellFormat) { f.Bold = !f.Bold })
	case key.Matches(msg, m.keys.Italic):
		m.toggleFormat(addr, func(f *spreadsheet.CellFormat) { f.Italic = !f.Italic })
	case key.Matches(msg, m.keys.Underline):
		m.toggleFormat(addr, func(f *spreadsheet.CellFormat) { f.Underline = !f.Underline })
	}
	return m, nil
}

func (m *Model) stopEditing() {
	m.editing = false
	m.lastErr = nil
	m.input.Blur()
	m.input.Reset()
}

func (m *Model) touch() {
	if m.saver != nil && m.wb.AutoSave() {
		m.saver.Touch()
	}
}

func (m *Model) toggleFormat(addr string, toggle func(*spreadsheet.CellFormat)) {
	cell, _ := m.wb.Cell(addr)
	format := cell.Format
	toggle(&format)
	if err := m.wb.SetFormat(addr, format); err != nil {
		m.lastErr = err
		return
	}
	m.touch()
}

func (m *Model) switchSheet(info spreadsheet.SheetInfo) {
	m.status = info.Name
	m.lastErr = nil
	m.topRow, m.leftCol = 0, 0
	m.scrollToSelection()
}

func (m Model) selected() spreadsheet.CellAddress {
	var addr spreadsheet.CellAddress
	m.wb.View(func(s *spreadsheet.Sheet) {
		addr = s.SelectedCell
	})
	return addr
}

// move shifts the selection, clamped to the sheet
func (m *Model) move(dRow, dCol int) {
	var rows, cols uint32
	addr := m.selected()
	m.wb.View(func(s *spreadsheet.Sheet) {
		rows, cols = s.RowCount, s.ColumnCount
	})

	row := clamp(int(addr.Row)+dRow, int(rows)-1)
	col := clamp(int(addr.Column)+dCol, int(cols)-1)
	next := spreadsheet.CellAddress{Row: uint32(row), Column: uint32(col)}
	if err := m.wb.Select(next.String()); err != nil {
		m.lastErr = err
		return
	}
	m.scrollToSelection()
}

func clamp(v, hi int) int {
	return max(0, min(v, hi))
}

func (m Model) visibleRows() uint32 {
	return uint32(max(m.height-chromeHeight, 1))
}

func (m Model) visibleColumns() uint32 {
	return uint32(max((m.width-rowNumberWidth)/(columnWidth+1), 1))
}

// scrollToSelection keeps the selected cell inside the viewport
func (m *Model) scrollToSelection() {
	addr := m.selected()
	rows, cols := m.visibleRows(), m.visibleColumns()
	if addr.Row < m.topRow {
		m.topRow = addr.Row
	} else if addr.Row >= m.topRow+rows {
		m.topRow = addr.Row - rows + 1
	}
	if addr.Column < m.leftCol {
		m.leftCol = addr.Column
	} else if addr.Column >= m.leftCol+cols {
		m.leftCol = addr.Column - cols + 1
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.viewTabs())
	b.WriteString("\n")

	var selected spreadsheet.Cell
	var addr spreadsheet.CellAddress
	m.wb.View(func(s *spreadsheet.Sheet) {
		addr = s.SelectedCell
		selected, _ = s.CellAt(addr)
		b.WriteString(m.viewGrid(s))
	})

	b.WriteString(m.viewFormulaBar(addr, selected))
	b.WriteString("\n")
	b.WriteString(m.viewStatus(addr, selected))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) viewTabs() string {
	var tabs []string
	for _, info := range m.wb.Sheets() {
		style := m.styles.Tab
		if info.Active {
			style = m.styles.ActiveTab
		}
		tabs = append(tabs, style.Render(info.Name))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) viewGrid(s *spreadsheet.Sheet) string {
	var b strings.Builder
	lastCol := min(m.leftCol+m.visibleColumns(), s.ColumnCount)
	lastRow := min(m.topRow+m.visibleRows(), s.RowCount)

	b.WriteString(strings.Repeat(" ", rowNumberWidth))
	for col := m.leftCol; col < lastCol; col++ {
		letter := string(rune('A' + col))
		b.WriteString(" ")
		b.WriteString(m.styles.Header.Width(columnWidth).Render(letter))
	}
	b.WriteString("\n")

	for row := m.topRow; row < lastRow; row++ {
		b.WriteString(m.styles.RowNumber.Width(rowNumberWidth).Render(fmt.Sprint(row + 1)))
		for col := m.leftCol; col < lastCol; col++ {
			addr := spreadsheet.CellAddress{Row: row, Column: col}
			cell, _ := s.CellAt(addr)
			text := truncate(s.DisplayAt(addr), columnWidth)
			b.WriteString(" ")
			b.WriteString(m.styles.cellStyle(cell, addr == s.SelectedCell, columnWidth).Render(text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewFormulaBar(addr spreadsheet.CellAddress, cell spreadsheet.Cell) string {
	content := cell.Raw
	if m.editing {
		content = m.input.View()
	}
	bar := m.styles.Address.Render(addr.String()) + content
	return m.styles.FormulaBar.Width(max(m.width, 1)).Render(bar)
}

func (m Model) viewStatus(addr spreadsheet.CellAddress, cell spreadsheet.Cell) string {
	parts := []string{addr.String(), cell.Type.String(), "auto-save " + onOff(m.wb.AutoSave())}
	if saved := m.wb.LastSaved(); !saved.IsZero() {
		parts = append(parts, "last saved "+saved.Local().Format("15:04:05"))
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	line := m.styles.Status.Render(strings.Join(parts, " · "))
	if m.lastErr != nil {
		line += "  " + m.styles.Error.Render(m.lastErr.Error())
	}
	return line
}

func truncate(text string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	return string(runes[:width-1]) + "…"
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
