package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Preferences is the small JSON document remembering the last-used
// account between runs.
type Preferences struct {
	Domain string `mapstructure:"domain" json:"domain"`
}

// DefaultPreferencesPath returns ~/.config/mg2dsn/defaults.json.
func DefaultPreferencesPath() string {
	return filepath.Join(ConfigDir(), "defaults.json")
}

func newPreferencesViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	return v
}

// readPreferences loads path into v. A missing file is not an error.
func readPreferences(v *viper.Viper, path string) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) || errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		return false, fmt.Errorf("reading preferences %s: %w", path, err)
	}
	return true, nil
}

// LoadPreferences reads the preference file at path. A missing file yields
// empty preferences.
func LoadPreferences(path string) (*Preferences, error) {
	v := newPreferencesViper(path)
	if _, err := readPreferences(v, path); err != nil {
		return nil, err
	}

	prefs := &Preferences{}
	if err := v.Unmarshal(prefs); err != nil {
		return nil, fmt.Errorf("parsing preferences %s: %w", path, err)
	}
	return prefs, nil
}

// RememberDomain rewrites the preference file with domain as the
// last-used account. Other keys already in the file are kept.
func RememberDomain(path, domain string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating preferences directory %s: %w", dir, err)
	}

	v := newPreferencesViper(path)
	if _, err := readPreferences(v, path); err != nil {
		return err
	}
	v.Set("domain", domain)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing preferences to %s: %w", path, err)
	}
	return nil
}

// ResolveDomain picks the domain argument if given, otherwise the
// remembered one. ok is false when neither is available.
func ResolveDomain(arg string, prefs *Preferences) (domain string, ok bool) {
	if arg != "" {
		return arg, true
	}
	if prefs != nil && prefs.Domain != "" {
		return prefs.Domain, true
	}
	return "", false
}
