package backend

import (
	"errors"
	"fmt"
	"strings"

	"wallet/internal/config"
)

// DefaultDataDirectory holds memory backend seed files when none is configured.
const DefaultDataDirectory = "data"

var backendTypes = []BackendType{SQLiteBackend, SheetsBackend, MemoryBackend}

// ParseBackendType accepts DATA_BACKEND values case-insensitively.
func ParseBackendType(s string) (BackendType, error) {
	bt := BackendType(strings.ToLower(strings.TrimSpace(s)))
	if !bt.IsValid() {
		return "", fmt.Errorf("unknown backend %q, want one of %s", s, strings.Join(GetBackendTypeStrings(), ", "))
	}
	return bt, nil
}

// FromAppConfig selects the backend settings out of the application config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	bt, err := ParseBackendType(appConfig.DataBackend)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{Type: bt}
	switch bt {
	case SQLiteBackend:
		cfg.SQLiteDBPath = appConfig.SQLiteDBPath
	case SheetsBackend:
		cfg.GoogleSpreadsheetID = appConfig.GoogleSpreadsheetID
		cfg.GoogleSheetName = appConfig.GoogleSheetName
		cfg.GoogleServiceAccountFile = appConfig.GoogleServiceAccountFile
		cfg.GoogleServiceAccountJSON = appConfig.GoogleServiceAccountJSON
	case MemoryBackend:
		cfg.DataDirectory = appConfig.DataDir
	}
	return cfg, nil
}

// Validate reports every missing setting for the selected backend.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %q", c.Type)
	}

	var errs []error
	switch c.Type {
	case SQLiteBackend:
		if strings.TrimSpace(c.SQLiteDBPath) == "" {
			errs = append(errs, errors.New("sqlite backend: database path is required"))
		}
	case SheetsBackend:
		if strings.TrimSpace(c.GoogleSpreadsheetID) == "" {
			errs = append(errs, errors.New("sheets backend: spreadsheet id is required"))
		}
		if c.GoogleServiceAccountFile != "" && c.GoogleServiceAccountJSON != "" {
			errs = append(errs, errors.New("sheets backend: set either a service account file or inline JSON, not both"))
		}
	}
	return errors.Join(errs...)
}

// dataDirectory returns the memory seed directory, defaulting when unset.
func (c Config) dataDirectory() string {
	if c.DataDirectory == "" {
		return DefaultDataDirectory
	}
	return c.DataDirectory
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return append([]BackendType(nil), backendTypes...)
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	out := make([]string, len(backendTypes))
	for i, t := range backendTypes {
		out[i] = t.String()
	}
	return out
}
