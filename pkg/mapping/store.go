// Package mapping keeps the note to sound-group assignments and persists
// them as named JSON files.
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// NumNotes is the number of MIDI note numbers.
const NumNotes = 128

var (
	ErrInvalidNote  = errors.New("note must be between 0 and 127")
	ErrUnknownGroup = errors.New("unknown sound group")
	ErrInvalidName  = errors.New("invalid mapping name")
	ErrNotFound     = errors.New("mapping not found")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// Catalog lists the sound groups a note may be assigned to.
type Catalog interface {
	Groups() ([]string, error)
}

// Store maps every note to a sound group. It is safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	notes        [NumNotes]string
	dir          string
	catalog      Catalog
	defaultGroup string
	log          *zap.Logger
}

// NewStore returns a store with every note on defaultGroup. Named mappings
// are read from and written to dir.
func NewStore(dir string, catalog Catalog, defaultGroup string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{dir: dir, catalog: catalog, defaultGroup: defaultGroup, log: log}
	s.Reset()
	return s
}

// DefaultGroup returns the group notes start on.
func (s *Store) DefaultGroup() string { return s.defaultGroup }

// Group returns the group assigned to note.
func (s *Store) Group(note int) (string, error) {
	if err := checkNote(note); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notes[note], nil
}

// SetGroup assigns group to note. The group must exist in the catalog.
func (s *Store) SetGroup(note int, group string) error {
	return s.Apply(map[int]string{note: group})
}

// Apply assigns several notes at once. Nothing changes unless every entry
// is valid.
func (s *Store) Apply(assignments map[int]string) error {
	groups, err := s.available()
	if err != nil {
		return err
	}
	for note, group := range assignments {
		if err := checkNote(note); err != nil {
			return fmt.Errorf("note %d: %w", note, err)
		}
		if !groups[group] {
			return fmt.Errorf("%w: %q", ErrUnknownGroup, group)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for note, group := range assignments {
		s.notes[note] = group
	}
	return nil
}

// Reset puts every note back on the default group.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notes {
		s.notes[i] = s.defaultGroup
	}
}

// Snapshot returns a copy of all assignments.
func (s *Store) Snapshot() map[int]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]string, NumNotes)
	for note, group := range s.notes {
		out[note] = group
	}
	return out
}

// Save writes the current assignments to <dir>/<name>.json.
func (s *Store) Save(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create mappings dir: %w", err)
	}

	raw := make(map[string]string, NumNotes)
	for note, group := range s.Snapshot() {
		raw[strconv.Itoa(note)] = group
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write mapping: %w", err)
	}
	s.log.Info("mapping saved", zap.String("name", name), zap.String("path", path))
	return nil
}

// Load applies the named mapping on top of the current assignments.
func (s *Store) Load(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("failed to read mapping: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse mapping %s: %w", name, err)
	}
	assignments := make(map[int]string, len(raw))
	for key, group := range raw {
		note, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("mapping %s: note key %q is not a number", name, key)
		}
		assignments[note] = group
	}
	if err := s.Apply(assignments); err != nil {
		return fmt.Errorf("mapping %s: %w", name, err)
	}
	s.log.Info("mapping loaded", zap.String("name", name), zap.Int("notes", len(assignments)))
	return nil
}

// List returns the saved mapping names in order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether a mapping called name has been saved.
func (s *Store) Exists(name string) bool {
	path, err := s.path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// ParseAssignments reads "note=group" pairs such as "36=drum_kit".
func ParseAssignments(pairs []string) (map[int]string, error) {
	out := make(map[int]string, len(pairs))
	for _, pair := range pairs {
		key, group, ok := strings.Cut(pair, "=")
		if !ok || group == "" {
			return nil, fmt.Errorf("assignment %q must look like note=group", pair)
		}
		note, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("assignment %q: note is not a number", pair)
		}
		if err := checkNote(note); err != nil {
			return nil, fmt.Errorf("assignment %q: %w", pair, err)
		}
		out[note] = strings.TrimSpace(group)
	}
	return out, nil
}

func (s *Store) path(name string) (string, error) {
	if !namePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name+".json"), nil
}

func (s *Store) available() (map[string]bool, error) {
	groups, err := s.catalog.Groups()
	if err != nil {
		return nil, fmt.Errorf("failed to list sound groups: %w", err)
	}
	out := make(map[string]bool, len(groups))
	for _, g := range groups {
		out[g] = true
	}
	return out, nil
}

func checkNote(note int) error {
	if note < 0 || note >= NumNotes {
		return ErrInvalidNote
	}
	return nil
}
