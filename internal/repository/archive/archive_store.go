package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ai-trivia-bot/internal/pkg/logger"
	"ai-trivia-bot/pkg/store"
)

var (
	// ErrNotFound signals a question key that does not exist (anymore).
	ErrNotFound = errors.New("archive: entry not found")

	// ErrAmbiguousPrefix signals a truncated key prefix matching more than
	// one entry. Never silently pick one.
	ErrAmbiguousPrefix = errors.New("archive: prefix matches multiple entries")
)

// Store is the durable question→answer archive, persisted as one flat JSON
// object with stable insertion order.
//
// Concurrency discipline: every mutation is a read-modify-write under the
// store's single exclusive lock; a save replaces the whole document via
// temp-file + rename so no reader ever observes a partial write. Reads hand
// out copies of the last fully-written snapshot and take only a brief lock.
type Store struct {
	mu      sync.Mutex
	path    string
	entries []store.Entry
	logger  logger.ILogger
}

// NewStore loads the archive document at path. Load fails soft: a missing or
// unparsable document yields an empty archive with the anomaly logged.
func NewStore(path string, log logger.ILogger) *Store {
	s := &Store{
		path:   path,
		logger: log,
	}
	s.entries = s.load()
	return s
}

func (s *Store) load() []store.Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) && s.logger != nil {
			s.logger.Warn("ArchiveStore", "Failed to read archive document, starting empty", map[string]interface{}{
				"path":  s.path,
				"error": err.Error(),
			})
		}
		return nil
	}

	entries, err := decodeDocument(data)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("ArchiveStore", "Archive document unparsable, starting empty", map[string]interface{}{
				"path":  s.path,
				"error": err.Error(),
			})
		}
		return nil
	}
	return entries
}

// Snapshot returns a copy of the current archive in insertion order.
func (s *Store) Snapshot() []store.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]store.Entry, len(s.entries))
	copy(snapshot, s.entries)
	return snapshot
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Update upserts an entry: an existing question (case-insensitive compare,
// original casing kept) has its answer overwritten in place, a new one is
// appended. The whole read-modify-write runs under the store lock.
func (s *Store) Update(question, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if strings.EqualFold(e.Question, question) {
			updated := make([]store.Entry, len(s.entries))
			copy(updated, s.entries)
			updated[i].Answer = answer
			return s.replace(updated)
		}
	}
	return s.replace(append(s.snapshotLocked(), store.Entry{Question: question, Answer: answer}))
}

// Delete removes the entry for question. Returns whether removal occurred.
func (s *Store) Delete(question string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if strings.EqualFold(e.Question, question) {
			updated := make([]store.Entry, 0, len(s.entries)-1)
			updated = append(updated, s.entries[:i]...)
			updated = append(updated, s.entries[i+1:]...)
			if err := s.replace(updated); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// ResolveByPrefix maps a truncated question-key prefix (from a bounded
// callback token) back to the full key. Zero matches is ErrNotFound; more
// than one is ErrAmbiguousPrefix — the collision must surface, not hide.
func (s *Store) ResolveByPrefix(prefix string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found string
	var count int
	for _, e := range s.entries {
		if strings.HasPrefix(e.Question, prefix) {
			found = e.Question
			count++
		}
	}
	switch count {
	case 0:
		return "", ErrNotFound
	case 1:
		return found, nil
	default:
		return "", ErrAmbiguousPrefix
	}
}

func (s *Store) snapshotLocked() []store.Entry {
	snapshot := make([]store.Entry, len(s.entries))
	copy(snapshot, s.entries)
	return snapshot
}

// replace persists the candidate document and, only on success, makes it the
// in-memory state. A failed save leaves the previous snapshot intact so the
// caller can report a failed commit without corrupting reads.
func (s *Store) replace(entries []store.Entry) error {
	if err := s.save(entries); err != nil {
		if s.logger != nil {
			s.logger.Error("ArchiveStore", "Failed to save archive document", map[string]interface{}{
				"path":  s.path,
				"error": err.Error(),
			})
		}
		return err
	}
	s.entries = entries
	return nil
}

func (s *Store) save(entries []store.Entry) error {
	data, err := encodeDocument(entries)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".archive-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// encodeDocument renders the archive as a flat JSON object, one key per
// question, preserving insertion order (encoding/json maps would sort keys).
func encodeDocument(entries []store.Entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, e := range entries {
		q, err := json.Marshal(e.Question)
		if err != nil {
			return nil, err
		}
		a, err := json.Marshal(e.Answer)
		if err != nil {
			return nil, err
		}
		buf.WriteString("    ")
		buf.Write(q)
		buf.WriteString(": ")
		buf.Write(a)
		if i < len(entries)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// decodeDocument parses the flat object keeping document key order, which a
// plain map unmarshal would lose.
func decodeDocument(data []byte) ([]store.Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("archive: document is not a JSON object")
	}

	var entries []store.Entry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("archive: non-string key in document")
		}

		var answer string
		if err := dec.Decode(&answer); err != nil {
			return nil, fmt.Errorf("archive: answer for %q is not a string: %w", key, err)
		}
		entries = append(entries, store.Entry{Question: key, Answer: answer})
	}
	return entries, nil
}
