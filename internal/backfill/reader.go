package backfill

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MikeSquared-Agency/rapport/internal/conversation"
)

const maxLineBytes = 10 << 20

// ReadFile loads conversations from a .json file (one object or an array)
// or a .jsonl file (one object per line). Malformed JSONL lines are
// reported in skipped and do not fail the file.
func ReadFile(path string) (convs []conversation.Input, skipped []string, err error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		return readJSONL(path)
	case ".json":
		convs, err := readJSON(path)
		return convs, nil, err
	default:
		return nil, nil, fmt.Errorf("unsupported file type: %s", path)
	}
}

func readJSON(path string) ([]conversation.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var list []conversation.Input
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return list, nil
	}

	var in conversation.Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return []conversation.Input{in}, nil
}

func readJSONL(path string) ([]conversation.Input, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var convs []conversation.Input
	var skipped []string

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var in conversation.Input
		if err := json.Unmarshal(raw, &in); err != nil {
			skipped = append(skipped, fmt.Sprintf("%s:%d: %v", path, line, err))
			continue
		}
		convs = append(convs, in)
	}
	if err := sc.Err(); err != nil {
		return convs, skipped, fmt.Errorf("scan %s: %w", path, err)
	}
	return convs, skipped, nil
}

// Discover lists .json and .jsonl files under dir, sorted by path.
func Discover(dir string) ([]string, error) {
	dir = expandHome(dir)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".json", ".jsonl":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
