package quiz

import (
	"errors"
	"sync"
	"time"

	"rank-service/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrNoSession covers both "never started" and "expired"; the caller
	// cannot tell the difference and is asked to restart either way.
	ErrNoSession = errors.New("no active quiz session")
	// ErrOutOfSync rejects an answer for a question index the session has
	// moved past, e.g. a duplicate or replayed submission.
	ErrOutOfSync = errors.New("answer out of sync with session")
	// ErrSessionActive rejects starting a second session while one lives.
	ErrSessionActive = errors.New("quiz session already in progress")
)

// Session is one in-flight quiz attempt. Held only in process memory,
// never persisted.
type Session struct {
	Token     string
	MemberID  string
	GuildID   string
	Questions []models.Question
	Index     int
	Score     int
	StartedAt time.Time
	ExpiresAt time.Time
}

// AnswerResult is what advancing a session yields: either the next
// question, or the completed flag with the final score.
type AnswerResult struct {
	Completed bool
	Correct   bool
	Score     int
	Total     int
	Index     int
	Next      *models.Question
}

// SessionStore owns all live sessions, at most one per member. Expiry is an
// absolute timestamp checked lazily on every access; a background sweeper
// evicts abandoned sessions so the map cannot grow unbounded.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	lifetime time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

func NewSessionStore(lifetime time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		lifetime: lifetime,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

// StartSweeper launches the periodic eviction goroutine. Eviction is
// idempotent with the lazy expiry checks.
func (s *SessionStore) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.evictExpired()
			}
		}
	}()
}

func (s *SessionStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *SessionStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for memberID, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, memberID)
		}
	}
}

// live returns the member's session if present and unexpired, deleting it
// on sight when expired. Callers hold the lock.
func (s *SessionStore) live(memberID string) *Session {
	session, ok := s.sessions[memberID]
	if !ok {
		return nil
	}
	if s.now().After(session.ExpiresAt) {
		delete(s.sessions, memberID)
		return nil
	}
	return session
}

// Start creates a session at question zero. It fails with ErrSessionActive
// while an unexpired session exists for the member.
func (s *SessionStore) Start(memberID, guildID string, questions []models.Question) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live(memberID) != nil {
		return nil, ErrSessionActive
	}

	now := s.now()
	session := &Session{
		Token:     uuid.NewString(),
		MemberID:  memberID,
		GuildID:   guildID,
		Questions: questions,
		StartedAt: now,
		ExpiresAt: now.Add(s.lifetime),
	}
	s.sessions[memberID] = session
	return session, nil
}

// Answer applies one submission to the member's session. A submission for
// any index other than the session's current one mutates nothing. On the
// final question the session is destroyed and the result carries the final
// score; grading against the pass threshold is the caller's business.
func (s *SessionStore) Answer(memberID string, index, choice int) (AnswerResult, *Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.live(memberID)
	if session == nil {
		return AnswerResult{}, nil, ErrNoSession
	}
	if index != session.Index {
		return AnswerResult{}, nil, ErrOutOfSync
	}

	question := session.Questions[session.Index]
	correct := choice == question.Correct
	if correct {
		session.Score++
	}
	session.Index++

	result := AnswerResult{
		Correct: correct,
		Score:   session.Score,
		Total:   len(session.Questions),
		Index:   session.Index,
	}

	if session.Index >= len(session.Questions) {
		delete(s.sessions, memberID)
		result.Completed = true
		return result, session, nil
	}

	next := session.Questions[session.Index]
	result.Next = &next
	return result, session, nil
}

// Peek returns the member's live session without mutating it.
func (s *SessionStore) Peek(memberID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(memberID)
}
