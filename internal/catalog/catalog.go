package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/stemtouch/internal/audio"
)

// ErrSongNotFound is returned when no song directory has the requested name
var ErrSongNotFound = errors.New("song not found")

const selectionFile = "selection.yaml"

// StemFile is one audio file of a song
type StemFile struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	SizeHuman string `json:"size_human"`
	Extension string `json:"extension"`
}

// Song is a directory of stem files
type Song struct {
	Name         string     `json:"name"`
	Path         string     `json:"path"`
	Stems        []StemFile `json:"stems"`
	ModTime      time.Time  `json:"mod_time"`
	ModTimeHuman string     `json:"mod_time_human"`
	IsSelected   bool       `json:"is_selected"`
}

// StemNames returns the stem names in zone order
func (s Song) StemNames() []string {
	names := make([]string, len(s.Stems))
	for i, st := range s.Stems {
		names[i] = st.Name
	}
	return names
}

// Playable reports whether the song has an acceptable stem count
func (s Song) Playable() bool {
	return audio.ValidateStemCount(len(s.Stems)) == nil
}

// Selection is the library state stored in selection.yaml
type Selection struct {
	SelectedSong string `yaml:"selected_song"`
}

// Library lists songs below a directory
type Library struct {
	dir  string
	exts map[string]bool

	mu sync.RWMutex
}

// New creates a library rooted at dir accepting the given file extensions
func New(dir string, extensions []string) *Library {
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}
	return &Library{dir: dir, exts: exts}
}

// Dir returns the library root
func (l *Library) Dir() string {
	return l.dir
}

// List returns every song directory holding at least one stem, sorted by name.
// The selected song is marked.
func (l *Library) List() ([]Song, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read library directory: %w", err)
	}

	selected, _ := l.selectedLocked()

	var songs []Song
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		song, err := l.readSong(entry.Name())
		if err != nil {
			slog.Warn("Failed to read song directory", "song", entry.Name(), "error", err)
			continue
		}
		if len(song.Stems) == 0 {
			continue
		}
		song.IsSelected = song.Name == selected
		songs = append(songs, *song)
	}

	sort.Slice(songs, func(i, j int) bool {
		return strings.ToLower(songs[i].Name) < strings.ToLower(songs[j].Name)
	})

	return songs, nil
}

// Find returns the song called name
func (l *Library) Find(name string) (*Song, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: %q", ErrSongNotFound, name)
	}

	info, err := os.Stat(filepath.Join(l.dir, name))
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSongNotFound, name)
	}

	song, err := l.readSong(name)
	if err != nil {
		return nil, err
	}
	if len(song.Stems) == 0 {
		return nil, fmt.Errorf("%w: %s has no stems", ErrSongNotFound, name)
	}
	return song, nil
}

func (l *Library) readSong(name string) (*Song, error) {
	songDir := filepath.Join(l.dir, name)

	files, err := os.ReadDir(songDir)
	if err != nil {
		return nil, err
	}

	song := &Song{Name: name, Path: songDir}
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(file.Name()))
		if !l.exts[ext] {
			continue
		}

		info, err := file.Info()
		if err != nil {
			slog.Warn("Failed to get file info", "file", file.Name(), "error", err)
			continue
		}

		song.Stems = append(song.Stems, StemFile{
			Name:      strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())),
			Path:      filepath.Join(songDir, file.Name()),
			Size:      info.Size(),
			SizeHuman: formatBytes(info.Size()),
			Extension: strings.TrimPrefix(ext, "."),
		})
		if info.ModTime().After(song.ModTime) {
			song.ModTime = info.ModTime()
		}
	}

	sort.Slice(song.Stems, func(i, j int) bool {
		return song.Stems[i].Name < song.Stems[j].Name
	})
	if !song.ModTime.IsZero() {
		song.ModTimeHuman = song.ModTime.Format("2006-01-02 15:04:05")
	}
	return song, nil
}

// Load decodes every stem of song in parallel at sampleRate. The stem count is
// checked before anything is decoded.
func Load(ctx context.Context, song *Song, sampleRate int) ([]*audio.Stem, error) {
	if err := audio.ValidateStemCount(len(song.Stems)); err != nil {
		return nil, fmt.Errorf("cannot load %s: %w", song.Name, err)
	}

	stems := make([]*audio.Stem, len(song.Stems))
	g, ctx := errgroup.WithContext(ctx)

	for i, file := range song.Stems {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			stem, err := audio.DecodeFile(file.Path, sampleRate)
			if err != nil {
				return err
			}
			stems[i] = stem
			slog.Debug("Stem decoded", "song", song.Name, "stem", stem.Name, "duration", stem.Duration().Round(time.Millisecond), "took", time.Since(start).Round(time.Millisecond))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("cannot load %s: %w", song.Name, err)
	}
	return stems, nil
}

// Selected returns the last selected song name, or "" if none was recorded
func (l *Library) Selected() (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.selectedLocked()
}

func (l *Library) selectedLocked() (string, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, selectionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	var sel Selection
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", selectionFile, err)
	}
	return sel.SelectedSong, nil
}

// SetSelected records name as the selected song
func (l *Library) SetSelected(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := yaml.Marshal(&Selection{SelectedSong: name})
	if err != nil {
		return fmt.Errorf("failed to marshal selection: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.dir, selectionFile), data, 0644); err != nil {
		return fmt.Errorf("failed to save selection: %w", err)
	}
	return nil
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
