// Package quiz holds the promotion gate: the eligibility check on the
// tracked probation window and the in-memory quiz session engine.
package quiz

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"rank-service/internal/models"
)

// Bank is the immutable question pool sessions draw from.
type Bank struct {
	questions []models.Question
}

// LoadBank reads the pool from a JSON file and validates it against the
// session size drawn from it.
func LoadBank(path string, sessionSize int) (*Bank, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question pool: %w", err)
	}
	var questions []models.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse question pool: %w", err)
	}
	return NewBank(questions, sessionSize)
}

func NewBank(questions []models.Question, sessionSize int) (*Bank, error) {
	if len(questions) < sessionSize {
		return nil, fmt.Errorf("question pool has %d questions, need at least %d", len(questions), sessionSize)
	}
	for i, q := range questions {
		if q.Prompt == "" {
			return nil, fmt.Errorf("question %d has an empty prompt", i)
		}
		if len(q.Choices) < 2 {
			return nil, fmt.Errorf("question %d has fewer than two choices", i)
		}
		if q.Correct < 0 || q.Correct >= len(q.Choices) {
			return nil, fmt.Errorf("question %d has correct index %d out of range", i, q.Correct)
		}
	}
	return &Bank{questions: questions}, nil
}

func (b *Bank) Size() int {
	return len(b.questions)
}

// Sample draws n distinct questions uniformly at random without
// replacement.
func (b *Bank) Sample(n int) []models.Question {
	indexes := make([]int, len(b.questions))
	for i := range indexes {
		indexes[i] = i
	}
	rand.Shuffle(len(indexes), func(i, j int) {
		indexes[i], indexes[j] = indexes[j], indexes[i]
	})

	out := make([]models.Question, n)
	for i := 0; i < n; i++ {
		out[i] = b.questions[indexes[i]]
	}
	return out
}
