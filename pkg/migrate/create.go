package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeNameRe = regexp.MustCompile(`[^a-z0-9_]+`)

// migrationTemplate is valid for both postgres and sqlite3; keep new DDL
// portable so the sqlite test suite can run it.
const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert %[1]s
-- +goose StatementEnd
`

// MigrationFile returns the filename and skeleton body for a migration
// named name, versioned at the given instant.
func MigrationFile(name string, at time.Time) (string, string, error) {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = unsafeNameRe.ReplaceAllString(strings.ReplaceAll(slug, " ", "_"), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return "", "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	filename := at.UTC().Format("20060102150405") + "_" + slug + ".sql"
	return filename, fmt.Sprintf(migrationTemplate, slug), nil
}

// CreateSQLMigration writes a new goose migration skeleton into dir and
// returns its path.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	filename, body, err := MigrationFile(name, time.Now())
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	full := filepath.Join(dir, filename)
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", full, err)
	}
	defer f.Close()
	if _, err := f.WriteString(body); err != nil {
		return "", fmt.Errorf("write migration %q: %w", full, err)
	}
	return full, nil
}
