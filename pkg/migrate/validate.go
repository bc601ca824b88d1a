package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/palletwine/palletwine-backend/pkg/migrate/migrations"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

type migrationFile struct {
	version string
	name    string
}

// listMigrations returns the .sql files in fsys sorted by version. It fails on
// malformed names and duplicate versions.
func listMigrations(fsys fs.FS) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	seen := map[string]string{}
	var files []migrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", e.Name())
		}
		if prev, ok := seen[m[1]]; ok {
			return nil, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, e.Name())
		}
		seen[m[1]] = e.Name()
		files = append(files, migrationFile{version: m[1], name: e.Name()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

// ValidateDir checks a migrations directory on disk, or the embedded set when
// dir is EmbeddedDir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	if dir == EmbeddedDir {
		return ValidateFS(migrations.FS)
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks filenames, goose section markers and that every
// StatementBegin has a matching StatementEnd.
func ValidateFS(fsys fs.FS) error {
	files, err := listMigrations(fsys)
	if err != nil {
		return err
	}
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f.name)
		if err != nil {
			return fmt.Errorf("read file %q: %w", f.name, err)
		}
		txt := string(b)
		upAt := strings.Index(txt, "-- +goose Up")
		downAt := strings.Index(txt, "-- +goose Down")
		if upAt < 0 {
			return fmt.Errorf("migration %q missing \"-- +goose Up\"", f.name)
		}
		if downAt < 0 {
			return fmt.Errorf("migration %q missing \"-- +goose Down\"", f.name)
		}
		if downAt < upAt {
			return fmt.Errorf("migration %q declares Down before Up", f.name)
		}
		begins := strings.Count(txt, "-- +goose StatementBegin")
		ends := strings.Count(txt, "-- +goose StatementEnd")
		if begins != ends {
			return fmt.Errorf("migration %q has %d StatementBegin but %d StatementEnd", f.name, begins, ends)
		}
	}
	return nil
}
