package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/MimeLyc/comicshelf/pkg/file"
)

// Preferences are the viewer settings kept between sessions.
type Preferences struct {
	// UseLocalImages serves images from the dataset's images/ tree instead
	// of their original URLs.
	UseLocalImages bool `json:"use_local_images"`
}

// LoadPreferencesFile reads path. A missing file yields the defaults.
func LoadPreferencesFile(path string) (Preferences, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Preferences{}, nil
	}
	if err != nil {
		return Preferences{}, err
	}
	var prefs Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return Preferences{}, fmt.Errorf("invalid preferences file: %w", err)
	}
	return prefs, nil
}

func WritePreferencesFile(path string, prefs Preferences) error {
	content, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')
	return file.WriteAtomic(path, content, 0o600)
}

type PreferencesStore struct {
	path string

	mu      sync.RWMutex
	current Preferences
}

// OpenPreferencesStore loads the preferences at path, or the defaults if
// the file does not exist yet.
func OpenPreferencesStore(path string) (*PreferencesStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("preferences file path is required")
	}
	prefs, err := LoadPreferencesFile(path)
	if err != nil {
		return nil, err
	}
	return &PreferencesStore{path: path, current: prefs}, nil
}

func (s *PreferencesStore) Get() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *PreferencesStore) Update(next Preferences) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := WritePreferencesFile(s.path, next); err != nil {
		return s.current, err
	}
	s.current = next
	return next, nil
}
