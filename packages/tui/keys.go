package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the grid's key bindings
type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	Edit      key.Binding
	Cancel    key.Binding
	NextSheet key.Binding
	PrevSheet key.Binding
	NewSheet  key.Binding
	Delete    key.Binding
	AutoSave  key.Binding
	Save      key.Binding
	Bold      key.Binding
	Italic    key.Binding
	Underline key.Binding
	Quit      key.Binding
}

// terminals send ctrl+i as tab, so italic lives on alt+i
func defaultKeyMap() keyMap {
	return keyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
		Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
		Edit:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "edit")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		NextSheet: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next sheet")),
		PrevSheet: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev sheet")),
		NewSheet:  key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new sheet")),
		Delete:    key.NewBinding(key.WithKeys("ctrl+d", "delete"), key.WithHelp("ctrl+d", "clear cell")),
		AutoSave:  key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "auto-save")),
		Save:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Bold:      key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "bold")),
		Italic:    key.NewBinding(key.WithKeys("alt+i"), key.WithHelp("alt+i", "italic")),
		Underline: key.NewBinding(key.WithKeys("ctrl+u"), key.WithHelp("ctrl+u", "underline")),
		Quit:      key.NewBinding(key.WithKeys("ctrl+c", "ctrl+q"), key.WithHelp("ctrl+q", "quit")),
	}
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Edit, k.NextSheet, k.Delete, k.Save, k.AutoSave, k.Quit}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Edit, k.Cancel, k.Delete},
		{k.NextSheet, k.PrevSheet, k.NewSheet},
		{k.Bold, k.Italic, k.Underline},
		{k.Save, k.AutoSave, k.Quit},
	}
}
