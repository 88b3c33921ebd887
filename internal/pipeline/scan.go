package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Artifact is one enumerated source file: stable identity, absolute path
// and normalized content.
type Artifact struct {
	// ID is the slash-normalized path relative to the scan root. It is the
	// artifact's stable identity across runs and machines.
	ID string

	// Path is the absolute filesystem path.
	Path string

	// Content is the normalized source bytes (see NormalizeSource).
	Content []byte
}

// Scanner enumerates candidate source artifacts deterministically.
//
// Enumeration discipline:
//   - Glob expansion walks the tree once and matches slash-relative paths.
//   - The expanded list is strictly sorted and deduplicated.
//   - File contents are read and normalized up front, so everything after
//     enumeration operates on content, never on filesystem metadata.
//
// Filesystem ordering never affects the result.
type Scanner struct {
	// BaseDir is the absolute scan root.
	BaseDir string

	// Include holds the glob patterns, relative to BaseDir. A pattern may
	// contain one "**" segment matching any number of directories.
	Include []string

	// ExcludeDirs lists directory paths (relative to BaseDir) that are
	// never descended into, typically the output and cache directories.
	ExcludeDirs []string

	// ExcludeSuffix drops files carrying the generated-output suffix so a
	// previous run's fragments are never rescanned as input.
	ExcludeSuffix string
}

// Scan enumerates, reads and normalizes all matching artifacts, sorted by ID.
func (s *Scanner) Scan() ([]Artifact, error) {
	excluded := make(map[string]struct{}, len(s.ExcludeDirs))
	for _, d := range s.ExcludeDirs {
		if d != "" {
			excluded[filepath.ToSlash(d)] = struct{}{}
		}
	}

	ids := make(map[string]struct{})
	err := filepath.WalkDir(s.BaseDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, relErr := filepath.Rel(s.BaseDir, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if _, skip := excluded[rel]; skip {
				return fs.SkipDir
			}
			return nil
		}

		if s.ExcludeSuffix != "" && strings.HasSuffix(rel, s.ExcludeSuffix) {
			return nil
		}
		for _, pattern := range s.Include {
			if matchArtifact(pattern, rel) {
				ids[rel] = struct{}{}
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating artifacts: %w", err)
	}

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	out := make([]Artifact, 0, len(sorted))
	for _, id := range sorted {
		full := filepath.Join(s.BaseDir, filepath.FromSlash(id))
		content, readErr := os.ReadFile(full)
		if readErr != nil {
			return nil, fmt.Errorf("reading artifact %s: %w", id, readErr)
		}
		out = append(out, Artifact{
			ID:      id,
			Path:    full,
			Content: NormalizeSource(content),
		})
	}
	return out, nil
}

// matchArtifact matches a slash-relative path against a glob pattern.
// Besides path.Match syntax, a single "**" segment matches any number of
// leading directories, so "**/*.cs" covers the whole tree.
func matchArtifact(pattern, rel string) bool {
	if !strings.Contains(pattern, "**") {
		ok, _ := path.Match(pattern, rel)
		return ok
	}

	parts := strings.SplitN(pattern, "**", 2)
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")

	if prefix != "" {
		if rel != prefix && !strings.HasPrefix(rel, prefix+"/") {
			return false
		}
		rel = strings.TrimPrefix(strings.TrimPrefix(rel, prefix), "/")
	}

	segments := strings.Split(rel, "/")
	for i := 0; i <= len(segments); i++ {
		candidate := strings.Join(segments[i:], "/")
		if ok, _ := path.Match(suffix, candidate); ok {
			return true
		}
	}
	return false
}
