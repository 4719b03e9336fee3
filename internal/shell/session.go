package shell

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storylens/internal/upload"
)

// Session - состояние одного браузера: флаг показа формы и форма загрузки.
type Session struct {
	ID   string
	View *upload.View

	mu           sync.Mutex
	showUploader bool
	lastSeen     time.Time
}

// NewSession создает сессию с видимой формой загрузки.
func NewSession(id string) *Session {
	return &Session{ID: id, View: upload.NewView(), showUploader: true, lastSeen: time.Now()}
}

func (s *Session) ShowUploader() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showUploader
}

func (s *Session) setShowUploader(v bool) {
	s.mu.Lock()
	s.showUploader = v
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// SessionStore хранит сессии в памяти и удаляет неактивные дольше ttl.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewSessionStore(ttl time.Duration, logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger.Named("SessionStore"),
	}
}

// GetOrCreate возвращает сессию по id или создает новую с новым id.
// created=true, если id нужно заново записать в cookie.
func (st *SessionStore) GetOrCreate(id string) (sess *Session, created bool) {
	now := st.now()
	st.mu.Lock()
	defer st.mu.Unlock()

	if id != "" {
		if s, ok := st.sessions[id]; ok && (st.ttl <= 0 || s.idleSince(now) < st.ttl) {
			s.touch(now)
			return s, false
		}
	}
	s := NewSession(uuid.NewString())
	s.touch(now)
	st.sessions[s.ID] = s
	return s, true
}

// Lookup возвращает существующую неистекшую сессию, не создавая новую.
func (st *SessionStore) Lookup(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	now := st.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok || (st.ttl > 0 && s.idleSince(now) >= st.ttl) {
		return nil, false
	}
	return s, true
}

// Len - число активных сессий.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep удаляет истекшие сессии и возвращает их число.
func (st *SessionStore) Sweep() int {
	if st.ttl <= 0 {
		return 0
	}
	now := st.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, s := range st.sessions {
		if s.idleSince(now) >= st.ttl {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// Run периодически вызывает Sweep до отмены ctx.
func (st *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				st.logger.Debug("Expired sessions removed", zap.Int("count", n), zap.Int("active", st.Len()))
			}
		}
	}
}
