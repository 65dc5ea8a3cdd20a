package schema

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discover lists the datasets found directly in dir, sorted by path.
//
// A subdirectory is one dataset: its first visible file decides the format and
// every sibling with the same extension is matched by the dataset glob. Sibling
// files are assumed to share the first file's shape; nothing checks that.
func Discover(dir string) ([]Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %q: %w", dir, err)
	}
	paths := make([]string, 0, len(entries))
	isDir := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if isHidden(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		paths = append(paths, path)
		isDir[path] = entry.IsDir()
	}
	sort.Strings(paths)

	datasets := make([]Dataset, 0, len(paths))
	for _, path := range paths {
		if isDir[path] {
			dataset, ok, err := discoverDirectory(path)
			if err != nil {
				return nil, err
			}
			if ok {
				datasets = append(datasets, dataset)
			}
			continue
		}
		format, ok := FormatFor(path)
		if !ok {
			continue
		}
		datasets = append(datasets, Dataset{
			Name:       viewName(stem(path)),
			Format:     format,
			Glob:       path,
			SamplePath: path,
		})
	}
	return datasets, nil
}

func discoverDirectory(dir string) (Dataset, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Dataset{}, false, fmt.Errorf("read directory %q: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || isHidden(entry.Name()) {
			continue
		}
		sample := filepath.Join(dir, entry.Name())
		format, ok := FormatFor(sample)
		if !ok {
			return Dataset{}, false, nil
		}
		return Dataset{
			Name:       viewName(stem(dir)),
			Format:     format,
			Glob:       filepath.Join(dir, "*"+filepath.Ext(sample)),
			SamplePath: sample,
		}, true, nil
	}
	return Dataset{}, false, nil
}

// CreateViews returns the ordered CREATE VIEW statements for the datasets in dir.
func CreateViews(dir string) ([]string, error) {
	datasets, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	statements := make([]string, 0, len(datasets))
	for _, dataset := range datasets {
		statement, err := ViewFor(dataset)
		if err != nil {
			return nil, err
		}
		statements = append(statements, statement)
	}
	return statements, nil
}

// ViewFor renders the CREATE VIEW statement for one dataset.
func ViewFor(dataset Dataset) (string, error) {
	name := quoteIdent(dataset.Name)
	glob := quoteString(dataset.Glob)
	switch dataset.Format {
	case FormatCSV:
		return fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM read_csv_auto(%s, header=true)", name, glob), nil
	case FormatParquet:
		return fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM %s", name, glob), nil
	case FormatNDJSON:
		keys, err := sniffJSONKeys(dataset.SamplePath)
		if err != nil {
			return "", fmt.Errorf("sniff %q: %w", dataset.SamplePath, err)
		}
		columns := make([]string, 0, len(keys))
		for _, key := range keys {
			columns = append(columns, fmt.Sprintf("json->>%s AS %s", quoteString(key), quoteIdent(key)))
		}
		if len(columns) == 0 {
			columns = append(columns, "json")
		}
		return fmt.Sprintf("CREATE VIEW %s AS SELECT %s FROM read_json_objects(%s)", name, strings.Join(columns, ", "), glob), nil
	default:
		return "", fmt.Errorf("unsupported dataset format %q", dataset.Format)
	}
}

// sniffJSONKeys returns the top-level keys of the first line of path, in file order.
func sniffJSONKeys(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	reader := bufio.NewReader(file)
	line, err := reader.ReadString('\n')
	if err != nil && strings.TrimSpace(line) == "" {
		return nil, fmt.Errorf("read first line: %w", err)
	}

	decoder := json.NewDecoder(strings.NewReader(line))
	token, err := decoder.Token()
	if err != nil {
		return nil, fmt.Errorf("decode first line: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("first line is not a JSON object")
	}

	keys := make([]string, 0)
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("decode key: %w", err)
		}
		key, ok := token.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", token)
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := decoder.Decode(&skip); err != nil {
			return nil, fmt.Errorf("decode value of %q: %w", key, err)
		}
	}
	return keys, nil
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
