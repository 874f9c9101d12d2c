package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"unipal-workers/internal/models"
)

// snapshotFile is the on-disk layout: {"students": {contact: profile}}.
type snapshotFile struct {
	Students map[string]map[string]interface{} `json:"students"`
}

// SnapshotStore keeps the raw profile maps in a JSON file next to the SQL
// store. Writes go to a temporary file that is renamed into place.
type SnapshotStore struct {
	path string
	mu   sync.Mutex
}

func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

func (s *SnapshotStore) load() (snapshotFile, error) {
	f := snapshotFile{Students: map[string]map[string]interface{}{}}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return f, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse snapshot %s: %w", s.path, err)
	}
	if f.Students == nil {
		f.Students = map[string]map[string]interface{}{}
	}
	return f, nil
}

func (s *SnapshotStore) save(f snapshotFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".students-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// Put stores p under its contact. With replaceExisting every other student
// is dropped first, leaving p as the only entry.
func (s *SnapshotStore) Put(p models.StudentProfile, replaceExisting bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return err
	}
	if replaceExisting {
		f.Students = map[string]map[string]interface{}{}
	}
	f.Students[p.ContactInfo] = p.ToMap()
	return s.save(f)
}

// Get returns the stored profile for contact.
func (s *SnapshotStore) Get(contact string) (models.StudentProfile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return models.StudentProfile{}, false, err
	}
	m, ok := f.Students[contact]
	if !ok {
		return models.StudentProfile{}, false, nil
	}
	p, err := models.ProfileFromMap(m)
	if err != nil {
		return models.StudentProfile{}, false, fmt.Errorf("decode snapshot entry: %w", err)
	}
	return p, true, nil
}

// Clear empties the snapshot.
func (s *SnapshotStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(snapshotFile{Students: map[string]map[string]interface{}{}})
}
