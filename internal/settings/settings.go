// Package settings persists the CLI's API base URL and bearer token in a small
// YAML file under the user's configuration directory.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/iwvelando/loan-support/pkg/client"
	"github.com/iwvelando/loan-support/pkg/constants"
	"gopkg.in/yaml.v3"
)

// Settings are the values a client needs to reach the API.
type Settings struct {
	APIBase     string `yaml:"apiBase"`
	BearerToken string `yaml:"bearerToken"`
}

// Update names the fields to change; nil fields are left as they are.
type Update struct {
	APIBase     *string
	BearerToken *string
}

// Defaults returns the settings used when nothing has been saved.
func Defaults() Settings {
	return Settings{APIBase: constants.DefaultAPIBase}
}

// ClientConfig converts the settings into an explicit client configuration.
func (s Settings) ClientConfig() client.Config {
	return client.Config{BaseURL: s.APIBase, BearerToken: s.BearerToken}
}

// Store reads and writes settings at a fixed path.
type Store struct {
	path string
}

// DefaultPath is <user config dir>/loan-support/settings.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, constants.SettingsDirName, constants.SettingsFileName), nil
}

// NewStore creates a Store at path, or at DefaultPath when path is empty.
func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		def, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = def
	}
	return &Store{path: path}, nil
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the saved settings. Missing files and empty values fall back to
// Defaults.
func (s *Store) Load() (Settings, error) {
	settings := Defaults()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("failed to read settings: %w", err)
	}

	var stored Settings
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return settings, fmt.Errorf("failed to parse settings %s: %w", s.path, err)
	}

	if strings.TrimSpace(stored.APIBase) != "" {
		settings.APIBase = strings.TrimSpace(stored.APIBase)
	}
	settings.BearerToken = strings.TrimSpace(stored.BearerToken)
	return settings, nil
}

// Save applies u on top of the current settings and writes them with 0600
// permissions, since the file may hold a token.
func (s *Store) Save(u Update) (Settings, error) {
	current, err := s.Load()
	if err != nil {
		return current, err
	}

	if u.APIBase != nil {
		current.APIBase = strings.TrimSpace(*u.APIBase)
		if current.APIBase == "" {
			current.APIBase = constants.DefaultAPIBase
		}
	}
	if u.BearerToken != nil {
		current.BearerToken = strings.TrimSpace(*u.BearerToken)
	}

	data, err := yaml.Marshal(current)
	if err != nil {
		return current, fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return current, fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return current, fmt.Errorf("failed to write settings: %w", err)
	}
	return current, nil
}

// Clear removes the saved settings.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear settings: %w", err)
	}
	return nil
}
