package frames

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Walk yields regular files under root whose extension is in exts, depth
// first in lexical order. Symlinks are followed; a directory reached twice
// through links is visited once. Iteration stops when the consumer breaks.
func Walk(root string, exts []string) iter.Seq2[string, error] {
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}

	return func(yield func(string, error) bool) {
		visited := make(map[string]struct{})
		walkDir(root, allowed, visited, yield)
	}
}

func walkDir(dir string, allowed, visited map[string]struct{}, yield func(string, error) bool) bool {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return yield("", fmt.Errorf("resolve %s: %w", dir, err))
	}
	if _, seen := visited[resolved]; seen {
		return true
	}
	visited[resolved] = struct{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return yield("", fmt.Errorf("read dir %s: %w", dir, err))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		// Stat follows links so a link to a directory is descended.
		info, err := os.Stat(path)
		if err != nil {
			if !yield("", fmt.Errorf("stat %s: %w", path, err)) {
				return false
			}
			continue
		}
		if info.IsDir() {
			if !walkDir(path, allowed, visited, yield) {
				return false
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(entry.Name()), "."))
		if _, ok := allowed[ext]; !ok {
			continue
		}
		if !yield(path, nil) {
			return false
		}
	}
	return true
}
