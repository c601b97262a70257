package ui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/audiolibrelab/stemtouch/internal/catalog"
	"github.com/audiolibrelab/stemtouch/internal/console"
)

type mode int

const (
	modeBrowse mode = iota
	modeMix
)

type tickMsg time.Time

type songsMsg struct {
	songs []catalog.Song
	err   error
}

type loadedMsg struct {
	name string
	err  error
}

// songItem adapts a catalog song to the list
type songItem struct {
	song catalog.Song
}

func (i songItem) Title() string {
	if i.song.IsSelected {
		return i.song.Name + " *"
	}
	return i.song.Name
}

func (i songItem) Description() string {
	if !i.song.Playable() {
		return fmt.Sprintf("%d stems, too many to mix", len(i.song.Stems))
	}
	return fmt.Sprintf("%d stems  %s", len(i.song.Stems), i.song.ModTimeHuman)
}

func (i songItem) FilterValue() string { return i.song.Name }

// Model is the interactive console screen
type Model struct {
	ctx     context.Context
	console console.Service
	tick    time.Duration
	keys    keyMap
	styles  styles

	mode    mode
	songs   list.Model
	help    help.Model
	snap    console.Snapshot
	loading string
	status  string
	width   int
	height  int
}

// NewModel creates the console screen, starting on the song list
func NewModel(ctx context.Context, svc console.Service, th *Theme, tick time.Duration) Model {
	if th == nil {
		th = DefaultTheme()
	}
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}

	songs := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	songs.Title = "Songs"
	songs.DisableQuitKeybindings()
	songs.SetShowHelp(true)

	return Model{
		ctx:     ctx,
		console: svc,
		tick:    tick,
		keys:    newKeyMap(),
		styles:  newStyles(th),
		songs:   songs,
		help:    help.New(),
	}
}

// Load returns a command loading name, for starting directly on a song
func (m Model) Load(name string) tea.Cmd {
	return loadSong(m.ctx, m.console, name)
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		listSongs(m.console),
		tickEvery(m.tick),
	)
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func listSongs(svc console.Service) tea.Cmd {
	return func() tea.Msg {
		songs, err := svc.ListSongs()
		return songsMsg{songs: songs, err: err}
	}
}

func loadSong(ctx context.Context, svc console.Service, name string) tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{name: name, err: svc.LoadSong(ctx, name)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.songs.SetSize(msg.Width, msg.Height-2)
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.console.Tick()
		m.snap = m.console.Snapshot()
		return m, tickEvery(m.tick)

	case songsMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		items := make([]list.Item, len(msg.songs))
		selected := 0
		for i, s := range msg.songs {
			items[i] = songItem{song: s}
			if s.IsSelected {
				selected = i
			}
		}
		cmd := m.songs.SetItems(items)
		m.songs.Select(selected)
		return m, cmd

	case loadedMsg:
		m.loading = ""
		if msg.err != nil {
			m.status = fmt.Sprintf("Cannot load %s: %v", msg.name, msg.err)
			return m, nil
		}
		m.status = ""
		m.mode = modeMix
		if err := m.console.SetFaderMode(true); err != nil {
			m.status = err.Error()
		}
		m.snap = m.console.Snapshot()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Release) {
			m.console.EmergencyRelease("hotkey")
			return m, nil
		}
		if m.mode == modeMix {
			return m.updateMix(msg)
		}
		return m.updateBrowse(msg)
	}

	if m.mode == modeBrowse {
		var cmd tea.Cmd
		m.songs, cmd = m.songs.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.songs.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.songs, cmd = m.songs.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Load):
		item, ok := m.songs.SelectedItem().(songItem)
		if !ok || m.loading != "" {
			return m, nil
		}
		m.loading = item.song.Name
		m.status = "Loading " + item.song.Name + "..."
		return m, loadSong(m.ctx, m.console, item.song.Name)
	}

	var cmd tea.Cmd
	m.songs, cmd = m.songs.Update(msg)
	return m, cmd
}

func (m Model) updateMix(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var err error

	switch {
	case key.Matches(msg, m.keys.Quit):
		if err := m.console.SetFaderMode(false); err != nil {
			slog.Warn("Leaving fader mode failed", "error", err)
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Back):
		err = m.console.SetFaderMode(false)
		m.mode = modeBrowse
		m.snap = m.console.Snapshot()
		m.status = ""
		if err != nil {
			m.status = err.Error()
		}
		return m, listSongs(m.console)

	case key.Matches(msg, m.keys.Play):
		err = m.console.TogglePlay(m.ctx)

	case key.Matches(msg, m.keys.Stop):
		err = m.console.Stop()

	case key.Matches(msg, m.keys.Mute):
		err = m.console.ToggleMute(int(msg.String()[0] - '1'))

	case key.Matches(msg, m.keys.Reset):
		err = m.console.ResetFaders()

	case key.Matches(msg, m.keys.Lock):
		err = m.console.ToggleCursorLock()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	m.status = ""
	if err != nil {
		m.status = err.Error()
	}
	m.snap = m.console.Snapshot()
	return m, nil
}
