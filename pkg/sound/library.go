// Package sound loads per-note samples from sound-group directories and
// plays them on an audio backend.
package sound

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// FallbackGroup is the default group when the sounds directory is empty.
const FallbackGroup = "default"

// Library is a directory of sound groups. Each subdirectory is a group
// holding one <note>.wav file per playable note.
type Library struct {
	dir string
}

// NewLibrary returns a library rooted at dir.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// Dir returns the library root.
func (l *Library) Dir() string { return l.dir }

// Groups rescans the library and returns the group names in order.
func (l *Library) Groups() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	groups := []string{}
	for _, e := range entries {
		if e.IsDir() {
			groups = append(groups, e.Name())
		}
	}
	sort.Strings(groups)
	return groups, nil
}

// DefaultGroup returns the first group, or FallbackGroup if there is none.
func (l *Library) DefaultGroup() string {
	groups, err := l.Groups()
	if err != nil || len(groups) == 0 {
		return FallbackGroup
	}
	return groups[0]
}

// SamplePath returns where the sample for note in group lives.
func (l *Library) SamplePath(group string, note int) string {
	return filepath.Join(l.dir, group, strconv.Itoa(note)+".wav")
}
