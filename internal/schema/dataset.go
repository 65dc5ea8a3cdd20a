package schema

import (
	"path/filepath"
	"strings"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
	FormatNDJSON  Format = "ndjson"
)

// Dataset is one queryable relation backed by one or more files of the same format.
type Dataset struct {
	Name       string
	Format     Format
	Glob       string
	SamplePath string
}

// FormatFor maps a file name to its dataset format by extension.
func FormatFor(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv":
		return FormatCSV, true
	case ".parquet":
		return FormatParquet, true
	case ".ndjson", ".jsonl":
		return FormatNDJSON, true
	default:
		return "", false
	}
}

// IsDataFile reports whether name is a visible file with a supported extension.
func IsDataFile(name string) bool {
	if isHidden(filepath.Base(name)) {
		return false
	}
	_, ok := FormatFor(name)
	return ok
}

func viewName(base string) string {
	return strings.ReplaceAll(base, ".", "_")
}

func stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isHidden(base string) bool {
	return strings.HasPrefix(base, ".")
}
