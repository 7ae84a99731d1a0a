package dialog

import (
	"sync"
)

// sessionEntry 带独立锁的会话记录，保证同一用户的消息串行处理
type sessionEntry struct {
	mu      sync.Mutex
	session Session
}

// SessionStore 按用户ID管理会话，首次交互时惰性创建
type SessionStore struct {
	mu      sync.Mutex
	entries map[int64]*sessionEntry
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		entries: make(map[int64]*sessionEntry),
	}
}

// With 在持有该用户会话锁的情况下执行 fn。
// Telegram 可能并发投递同一用户的多条消息，这里串行化避免状态交错。
func (s *SessionStore) With(userID int64, fn func(*Session)) {
	s.mu.Lock()
	entry, ok := s.entries[userID]
	if !ok {
		entry = &sessionEntry{}
		s.entries[userID] = entry
	}
	s.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	fn(&entry.session)
}

// Snapshot 返回会话当前状态的副本，仅用于测试和日志
func (s *SessionStore) Snapshot(userID int64) Session {
	var copied Session
	s.With(userID, func(session *Session) {
		copied = *session
	})
	return copied
}
