package app

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the screen's key bindings. It implements help.KeyMap.
type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Open   key.Binding
	Back   key.Binding
	Help   key.Binding
	Quit   key.Binding
	Left   key.Binding
	Right  key.Binding
	Choose key.Binding
	Defer  key.Binding
	Accept key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Back:   key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Left:   key.NewBinding(key.WithKeys("left", "h", "shift+tab")),
		Right:  key.NewBinding(key.WithKeys("right", "l", "tab")),
		Choose: key.NewBinding(key.WithKeys("enter", " ")),
		Defer:  key.NewBinding(key.WithKeys("n", "esc")),
		Accept: key.NewBinding(key.WithKeys("y")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Open, k.Back, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Open, k.Back},
		{k.Help, k.Quit},
	}
}
