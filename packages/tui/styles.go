package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/vogtb/go-gridcalc/packages/spreadsheet"
)

var (
	Primary     = lipgloss.Color("#101F38")
	Accent      = lipgloss.Color("#8BC34A")
	Muted       = lipgloss.Color("#6b7280")
	Border      = lipgloss.Color("#dce0e5")
	Destructive = lipgloss.Color("#e53935")
	Selection   = lipgloss.Color("#2196F3")
)

// Styles groups the lipgloss styles used by the view
type Styles struct {
	Tab         lipgloss.Style
	ActiveTab   lipgloss.Style
	Header      lipgloss.Style
	RowNumber   lipgloss.Style
	Cell        lipgloss.Style
	Selected    lipgloss.Style
	FormulaBar  lipgloss.Style
	Address     lipgloss.Style
	Status      lipgloss.Style
	Error       lipgloss.Style
	CircularErr lipgloss.Style
}

// DefaultStyles returns the default styles
func DefaultStyles() Styles {
	return Styles{
		Tab:         lipgloss.NewStyle().Padding(0, 1).Foreground(Muted),
		ActiveTab:   lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("#ffffff")).Background(Primary),
		Header:      lipgloss.NewStyle().Bold(true).Foreground(Muted).Align(lipgloss.Center),
		RowNumber:   lipgloss.NewStyle().Foreground(Muted).Align(lipgloss.Right),
		Cell:        lipgloss.NewStyle(),
		Selected:    lipgloss.NewStyle().Reverse(true).Foreground(Selection),
		FormulaBar:  lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true, false).BorderForeground(Border),
		Address:     lipgloss.NewStyle().Bold(true).Foreground(Accent).Width(5),
		Status:      lipgloss.NewStyle().Foreground(Muted),
		Error:       lipgloss.NewStyle().Foreground(Destructive),
		CircularErr: lipgloss.NewStyle().Foreground(Destructive).Bold(true),
	}
}

// cellStyle applies a cell's format over the base style. numbers default to
// right alignment.
func (s Styles) cellStyle(cell spreadsheet.Cell, selected bool, width int) lipgloss.Style {
	style := s.Cell
	if selected {
		style = s.Selected
	}
	style = style.Width(width).MaxWidth(width)

	format := cell.Format
	if format.Bold {
		style = style.Bold(true)
	}
	if format.Italic {
		style = style.Italic(true)
	}
	if format.Underline {
		style = style.Underline(true)
	}
	if format.Color != "" && !selected {
		style = style.Foreground(lipgloss.Color(format.Color))
	}
	if format.Background != "" && !selected {
		style = style.Background(lipgloss.Color(format.Background))
	}
	if err, ok := cell.Value.(*spreadsheet.SpreadsheetError); ok && !selected {
		if err.ErrorCode == spreadsheet.ErrorCodeCircular {
			style = style.Inherit(s.CircularErr)
		} else {
			style = style.Inherit(s.Error)
		}
	}

	switch format.Align {
	case spreadsheet.AlignLeft:
		style = style.Align(lipgloss.Left)
	case spreadsheet.AlignCenter:
		style = style.Align(lipgloss.Center)
	case spreadsheet.AlignRight:
		style = style.Align(lipgloss.Right)
	default:
		if _, ok := cell.Value.(float64); ok {
			style = style.Align(lipgloss.Right)
		}
	}
	return style
}
