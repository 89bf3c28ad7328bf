package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,127}$`)

// BuildDatasetFilePath lays out table data as <dataset>/<table>/part-NNNNN.parquet.
func BuildDatasetFilePath(dataset, table string, part int) (string, error) {
	if err := validatePathComponent(dataset, "dataset"); err != nil {
		return "", err
	}
	if err := validatePathComponent(table, "table"); err != nil {
		return "", err
	}
	if part < 0 {
		return "", fmt.Errorf("part must be >= 0")
	}
	return path.Join(dataset, table, fmt.Sprintf("part-%05d.parquet", part)), nil
}

// ParseDatasetFilePath is the inverse of BuildDatasetFilePath. ok is false
// for keys that do not follow the layout.
func ParseDatasetFilePath(key string) (dataset, table string, ok bool) {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) != 3 || !strings.HasSuffix(parts[2], ".parquet") {
		return "", "", false
	}
	if validatePathComponent(parts[0], "dataset") != nil || validatePathComponent(parts[1], "table") != nil {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
