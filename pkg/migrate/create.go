package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

// CreateSQLMigration writes an empty goose migration named
// <dir>/<version>_<name>.sql. The version is the current UTC time, bumped past
// the newest existing file so versions stay strictly increasing.
func CreateSQLMigration(dir string, name string) (string, error) {
	if dir == "" || dir == EmbeddedDir {
		return "", fmt.Errorf("a writable dir is required")
	}
	safe := sanitizeName(name)
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	version, err := nextVersion(dir, time.Now().UTC())
	if err != nil {
		return "", err
	}
	fullpath := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version, safe))
	if _, err := os.Stat(fullpath); err == nil {
		return "", fmt.Errorf("migration already exists: %s", fullpath)
	}

	template := fmt.Sprintf(`-- +goose Up
-- +goose StatementBegin
-- %s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %s
-- +goose StatementEnd
`, safe, safe)

	if err := os.WriteFile(fullpath, []byte(template), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, nil
}

func sanitizeName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}

func nextVersion(dir string, now time.Time) (string, error) {
	files, err := listMigrations(os.DirFS(dir))
	if err != nil {
		return "", err
	}
	candidate := now
	if len(files) > 0 {
		latest, err := time.Parse(versionLayout, files[len(files)-1].version)
		if err != nil {
			return "", fmt.Errorf("parse version %q: %w", files[len(files)-1].version, err)
		}
		if !candidate.After(latest) {
			candidate = latest.Add(time.Second)
		}
	}
	return candidate.Format(versionLayout), nil
}
