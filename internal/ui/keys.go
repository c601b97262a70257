package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Load    key.Binding
	Play    key.Binding
	Stop    key.Binding
	Mute    key.Binding
	Reset   key.Binding
	Lock    key.Binding
	Back    key.Binding
	Release key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func binding(help string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

func newKeyMap() keyMap {
	return keyMap{
		Load:    binding("load song", "enter"),
		Play:    binding("play/pause", "space", " "),
		Stop:    binding("stop", "s"),
		Mute:    key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8"), key.WithHelp("1-8", "mute")),
		Reset:   binding("reset faders", "r"),
		Lock:    binding("cursor lock", "l"),
		Back:    binding("songs", "esc", "backspace"),
		Release: binding("free cursor", "ctrl+r"),
		Help:    binding("help", "?"),
		Quit:    binding("quit", "q", "ctrl+c"),
	}
}

// mixKeys is the key map shown while mixing
type mixKeys struct{ keyMap }

func (k mixKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.Stop, k.Mute, k.Lock, k.Back, k.Help}
}

func (k mixKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.Stop},
		{k.Mute, k.Reset},
		{k.Lock, k.Release},
		{k.Back, k.Quit},
	}
}
