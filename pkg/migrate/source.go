package migrate

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"
)

// DefaultDir is where new migrations are written by `migrate -cmd=create`.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// Migrations returns the schema compiled into the binary, rooted at the
// migration files.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

// ValidateDir runs ValidateFS over a directory on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks every .sql file in fsys: the YYYYMMDDHHMMSS_name.sql
// naming, unique versions, both goose sections, and balanced statement
// blocks within each section.
func ValidateFS(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	seen := map[string]string{}
	for _, name := range names {
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		if err := validateSections(string(body)); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

func validateSections(body string) error {
	upAt := strings.Index(body, "-- +goose Up")
	downAt := strings.Index(body, "-- +goose Down")
	switch {
	case upAt < 0:
		return fmt.Errorf(`missing "-- +goose Up"`)
	case downAt < 0:
		return fmt.Errorf(`missing "-- +goose Down"`)
	case downAt < upAt:
		return fmt.Errorf("down section precedes up section")
	}
	for label, section := range map[string]string{"up": body[upAt:downAt], "down": body[downAt:]} {
		begins := strings.Count(section, "-- +goose StatementBegin")
		ends := strings.Count(section, "-- +goose StatementEnd")
		if begins != ends {
			return fmt.Errorf("%s section has %d StatementBegin and %d StatementEnd markers", label, begins, ends)
		}
	}
	return nil
}

func latestVersion(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	latest := ""
	for _, e := range entries {
		if m := sqlFileRe.FindStringSubmatch(e.Name()); m != nil && m[1] > latest {
			latest = m[1]
		}
	}
	return latest, nil
}
