package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ai-trivia-bot/internal/pkg/logger"
)

// UsageStats is the persisted layout of stats.json: every user that ever
// contacted the bot plus the timestamp of the last curator add.
type UsageStats struct {
	Users     []int64 `json:"users"`
	LastAdded string  `json:"last_added"`
}

// StatsStore persists UsageStats with the same whole-document-replace and
// exclusive-lock discipline as the archive, under its own lock so stats
// writes never contend with archive writes.
type StatsStore struct {
	mu     sync.Mutex
	path   string
	stats  UsageStats
	logger logger.ILogger
}

func NewStatsStore(path string, log logger.ILogger) *StatsStore {
	s := &StatsStore{
		path:   path,
		stats:  UsageStats{LastAdded: "N/A"},
		logger: log,
	}
	s.load()
	return s
}

func (s *StatsStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) && s.logger != nil {
			s.logger.Warn("StatsStore", "Failed to read stats document, starting fresh", map[string]interface{}{
				"path":  s.path,
				"error": err.Error(),
			})
		}
		return
	}

	var loaded UsageStats
	if err := json.Unmarshal(data, &loaded); err != nil {
		if s.logger != nil {
			s.logger.Warn("StatsStore", "Stats document unparsable, starting fresh", map[string]interface{}{
				"path":  s.path,
				"error": err.Error(),
			})
		}
		return
	}
	if loaded.LastAdded == "" {
		loaded.LastAdded = "N/A"
	}
	s.stats = loaded
}

// RecordUser registers a user id on first contact. Returns true when the id
// was new.
func (s *StatsStore) RecordUser(userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.stats.Users {
		if id == userID {
			return false, nil
		}
	}
	updated := s.stats
	updated.Users = append(append([]int64(nil), s.stats.Users...), userID)
	if err := s.save(updated); err != nil {
		return false, err
	}
	s.stats = updated
	return true, nil
}

// MarkAdded stamps the time of a successful curator add.
func (s *StatsStore) MarkAdded(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := s.stats
	updated.LastAdded = t.Format(time.RFC3339)
	if err := s.save(updated); err != nil {
		return err
	}
	s.stats = updated
	return nil
}

// Stats returns a copy of the current usage stats.
func (s *StatsStore) Stats() UsageStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.stats
	out.Users = append([]int64(nil), s.stats.Users...)
	return out
}

func (s *StatsStore) save(stats UsageStats) error {
	data, err := json.MarshalIndent(stats, "", "    ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".stats-*.json")
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
