package quiz

import (
	"errors"
	"testing"
	"time"

	"rank-service/internal/models"
)

func testQuestions(n int) []models.Question {
	out := make([]models.Question, n)
	for i := range out {
		out[i] = models.Question{
			Prompt:  "question",
			Choices: []string{"a", "b", "c"},
			Correct: i % 3,
		}
	}
	return out
}

func TestSessionStart(t *testing.T) {
	store := NewSessionStore(10 * time.Minute)

	session, err := store.Start("m", "g", testQuestions(3))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if session.Token == "" {
		t.Error("session has no token")
	}
	if session.Index != 0 || session.Score != 0 {
		t.Errorf("new session at index=%d score=%d, want zeroes", session.Index, session.Score)
	}

	if _, err := store.Start("m", "g", testQuestions(3)); !errors.Is(err, ErrSessionActive) {
		t.Errorf("second Start err = %v, want ErrSessionActive", err)
	}

	// Another member is unaffected.
	if _, err := store.Start("other", "g", testQuestions(3)); err != nil {
		t.Errorf("Start for another member failed: %v", err)
	}
}

func TestSessionAnswerFlow(t *testing.T) {
	store := NewSessionStore(10 * time.Minute)
	questions := testQuestions(3) // correct choices: 0, 1, 2

	if _, err := store.Start("m", "g", questions); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	result, _, err := store.Answer("m", 0, 0)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if !result.Correct || result.Score != 1 || result.Completed {
		t.Errorf("after correct answer: %+v", result)
	}
	if result.Next == nil || result.Index != 1 {
		t.Errorf("expected next question at index 1, got %+v", result)
	}

	result, _, err = store.Answer("m", 1, 0) // wrong, correct is 1
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if result.Correct || result.Score != 1 {
		t.Errorf("wrong answer scored: %+v", result)
	}

	result, session, err := store.Answer("m", 2, 2)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if !result.Completed || result.Score != 2 || result.Total != 3 {
		t.Errorf("final result = %+v, want completed with score 2/3", result)
	}
	if session == nil || session.Score != 2 {
		t.Errorf("completed session = %+v", session)
	}

	// Completion destroys the session.
	if store.Peek("m") != nil {
		t.Error("session survived completion")
	}
	if _, _, err := store.Answer("m", 3, 0); !errors.Is(err, ErrNoSession) {
		t.Errorf("answer after completion err = %v, want ErrNoSession", err)
	}
}

func TestSessionAnswerOutOfSync(t *testing.T) {
	store := NewSessionStore(10 * time.Minute)

	if _, err := store.Start("m", "g", testQuestions(3)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, _, err := store.Answer("m", 0, 0); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	// Replay of the already-answered index mutates nothing.
	if _, _, err := store.Answer("m", 0, 0); !errors.Is(err, ErrOutOfSync) {
		t.Errorf("replayed answer err = %v, want ErrOutOfSync", err)
	}
	if _, _, err := store.Answer("m", 2, 0); !errors.Is(err, ErrOutOfSync) {
		t.Errorf("skipped-ahead answer err = %v, want ErrOutOfSync", err)
	}

	session := store.Peek("m")
	if session == nil || session.Index != 1 || session.Score != 1 {
		t.Errorf("session mutated by rejected answers: %+v", session)
	}
}

func TestSessionAnswerWithoutSession(t *testing.T) {
	store := NewSessionStore(10 * time.Minute)
	if _, _, err := store.Answer("m", 0, 0); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	store := NewSessionStore(10 * time.Minute)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	if _, err := store.Start("m", "g", testQuestions(3)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	current = current.Add(11 * time.Minute)

	if store.Peek("m") != nil {
		t.Error("expired session still live")
	}
	if _, _, err := store.Answer("m", 0, 0); !errors.Is(err, ErrNoSession) {
		t.Errorf("answer on expired session err = %v, want ErrNoSession", err)
	}

	// Expiry frees the slot for a fresh start.
	if _, err := store.Start("m", "g", testQuestions(3)); err != nil {
		t.Errorf("Start after expiry failed: %v", err)
	}
}

func TestEvictExpired(t *testing.T) {
	store := NewSessionStore(10 * time.Minute)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	if _, err := store.Start("stale", "g", testQuestions(3)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	current = current.Add(5 * time.Minute)
	if _, err := store.Start("fresh", "g", testQuestions(3)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	current = current.Add(6 * time.Minute)

	store.evictExpired()

	store.mu.Lock()
	_, staleKept := store.sessions["stale"]
	_, freshKept := store.sessions["fresh"]
	store.mu.Unlock()

	if staleKept {
		t.Error("sweeper kept the expired session")
	}
	if !freshKept {
		t.Error("sweeper evicted the live session")
	}
}
