// Package sqlitepath resolves the location of the transcript SQLite
// database for client commands that read an existing database.
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

func ResolveSQLitePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("UNISTREAM_SQLITE")); envPath != "" {
		return envPath, nil
	}
	if envPath := strings.TrimSpace(os.Getenv("UNISTREAM_DB")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.New("could not find unistream SQLite database; pass --sqlite")
}

func sqliteCandidates() []string {
	candidates := []string{
		"unistream.db",
		"unistream.sqlite",
		filepath.Join(".unistream", "unistream.db"),
		filepath.Join(".unistream", "unistream.sqlite"),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append([]string{
			filepath.Join(home, ".unistream", "unistream.db"),
			filepath.Join(home, ".unistream", "unistream.sqlite"),
		}, candidates...)
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "unistream", "unistream.db"),
			filepath.Join(xdgHome, "unistream", "unistream.sqlite"),
		}, candidates...)
	}

	return candidates
}
