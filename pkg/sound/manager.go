package sound

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrNoGroup        = errors.New("no sound group assigned")
	ErrSampleNotFound = errors.New("sample not found")
)

// Backend decodes samples and plays them.
type Backend interface {
	// Decode turns an encoded sample into PCM the backend can play.
	Decode(r io.Reader) ([]byte, error)
	// Play starts pcm without waiting for it to finish.
	Play(pcm []byte) error
	Close() error
}

// Mapping resolves the group a note plays from.
type Mapping interface {
	Group(note int) (string, error)
	SetGroup(note int, group string) error
}

type cacheKey struct {
	note  int
	group string
}

// Manager plays notes through a Backend, caching decoded samples per
// (note, group). It is safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	cache   map[cacheKey][]byte
	library *Library
	mapping Mapping
	backend Backend
	log     *zap.Logger
}

// NewManager wires a library, mapping and backend together.
func NewManager(library *Library, mapping Mapping, backend Backend, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cache:   make(map[cacheKey][]byte),
		library: library,
		mapping: mapping,
		backend: backend,
		log:     log,
	}
}

// PlayNote plays the sample for note from its assigned group.
func (m *Manager) PlayNote(note int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pcm, group, err := m.load(note)
	if err != nil {
		return err
	}
	if err := m.backend.Play(pcm); err != nil {
		return fmt.Errorf("failed to play note %d: %w", note, err)
	}
	m.log.Debug("note played", zap.Int("note", note), zap.String("group", group))
	return nil
}

// NoteGroup returns the group note plays from.
func (m *Manager) NoteGroup(note int) (string, error) {
	return m.mapping.Group(note)
}

// SetNoteGroup reassigns note and drops its cached sample for that group.
func (m *Manager) SetNoteGroup(note int, group string) error {
	if err := m.mapping.SetGroup(note, group); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.cache, cacheKey{note: note, group: group})
	m.mu.Unlock()
	return nil
}

// Purge empties the sample cache.
func (m *Manager) Purge() {
	m.mu.Lock()
	m.cache = make(map[cacheKey][]byte)
	m.mu.Unlock()
}

// Cached returns the number of cached samples.
func (m *Manager) Cached() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}

// Close releases the backend.
func (m *Manager) Close() error {
	return m.backend.Close()
}

// load must be called with m.mu held.
func (m *Manager) load(note int) ([]byte, string, error) {
	group, err := m.mapping.Group(note)
	if err != nil {
		return nil, "", err
	}
	if group == "" {
		return nil, "", fmt.Errorf("%w: note %d", ErrNoGroup, note)
	}

	key := cacheKey{note: note, group: group}
	if pcm, ok := m.cache[key]; ok {
		return pcm, group, nil
	}

	path := m.library.SamplePath(group, note)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %s", ErrSampleNotFound, path)
		}
		return nil, "", err
	}
	defer func() { _ = f.Close() }()

	pcm, err := m.backend.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	m.cache[key] = pcm
	m.log.Debug("sample loaded", zap.String("path", path), zap.Int("bytes", len(pcm)))
	return pcm, group, nil
}
