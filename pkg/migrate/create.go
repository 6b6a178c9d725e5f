package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var slugStripRe = regexp.MustCompile(`[^a-z0-9]+`)

// scaffoldNow is swapped in tests to pin the version prefix.
var scaffoldNow = func() time.Time { return time.Now().UTC() }

const scaffoldBody = `-- +goose Up
-- +goose StatementBegin
-- %[1]s: timestamps are TIMESTAMPTZ in UTC, uuids default to gen_random_uuid().
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- undo %[1]s
-- +goose StatementEnd
`

func migrationSlug(name string) string {
	return strings.Trim(slugStripRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

// CreateSQLMigration scaffolds <dir>/<YYYYMMDDHHMMSS>_<slug>.sql. When another
// file already claims the version, the next free second is used so ValidateDir
// never sees a duplicate.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", errors.New("dir is required")
	}
	slug := migrationSlug(name)
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	taken, err := takenVersions(dir)
	if err != nil {
		return "", err
	}
	at := scaffoldNow()
	for taken[at.Format(versionLayout)] {
		at = at.Add(time.Second)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", at.Format(versionLayout), slug))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", path, err)
	}
	if _, err := fmt.Fprintf(f, scaffoldBody, slug); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close migration %q: %w", path, err)
	}
	return path, nil
}

func takenVersions(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}
	taken := make(map[string]bool, len(entries))
	for _, e := range entries {
		if m := sqlFileRe.FindStringSubmatch(e.Name()); m != nil {
			taken[m[1]] = true
		}
	}
	return taken, nil
}
