package memory

import (
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"ai-trivia-bot/pkg/store"
)

// SessionRepository holds per-conversation curation sessions in memory.
// TTL eviction doubles as the idle-session policy: an abandoned flow simply
// expires instead of lingering until restart.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository() *SessionRepository {
	// Default expiration of 1 hour, purge sweep every 10 minutes
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(session *store.Session) {
	r.cache.Set(key(session.ChatID), session, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(chatID int64) (*store.Session, bool) {
	if x, found := r.cache.Get(key(chatID)); found {
		return x.(*store.Session), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(chatID int64) {
	r.cache.Delete(key(chatID))
}

func key(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
