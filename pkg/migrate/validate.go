package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/multierr"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	upMarker   = "-- +goose Up"
	downMarker = "-- +goose Down"
)

// ValidateDir checks every .sql file in dir and reports all problems at once:
// name shape, a real UTC timestamp as version, unique versions, and exactly one
// Up section followed by one Down section.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	var problems error
	byVersion := make(map[string]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			problems = multierr.Append(problems, fmt.Errorf("%s: expected YYYYMMDDHHMMSS_name.sql", name))
			continue
		}
		if _, err := time.Parse(versionLayout, m[1]); err != nil {
			problems = multierr.Append(problems, fmt.Errorf("%s: version is not a timestamp", name))
		}
		if prev, dup := byVersion[m[1]]; dup {
			problems = multierr.Append(problems, fmt.Errorf("%s: version %s already used by %s", name, m[1], prev))
		}
		byVersion[m[1]] = name

		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			problems = multierr.Append(problems, fmt.Errorf("%s: %w", name, err))
			continue
		}
		problems = multierr.Append(problems, checkSections(name, string(body)))
	}
	return problems
}

func checkSections(name, body string) error {
	ups, downs := strings.Count(body, upMarker), strings.Count(body, downMarker)
	switch {
	case ups != 1:
		return fmt.Errorf("%s: want one %q, found %d", name, upMarker, ups)
	case downs != 1:
		return fmt.Errorf("%s: want one %q, found %d", name, downMarker, downs)
	case strings.Index(body, downMarker) < strings.Index(body, upMarker):
		return fmt.Errorf("%s: Down section precedes Up", name)
	}
	return nil
}
