package quiz

import (
	"context"
	"errors"
	"time"

	"rank-service/internal/models"
	"rank-service/internal/repository"
)

type Verdict int

const (
	VerdictNotTracked Verdict = iota
	VerdictStillWaiting
	VerdictCoolingDown
	VerdictEligible
)

// Eligibility is the gate's answer; Remaining is set for the waiting and
// cooldown verdicts.
type Eligibility struct {
	Verdict   Verdict
	Remaining time.Duration
}

// RecordFinder is the read side of the member record store.
type RecordFinder interface {
	Find(ctx context.Context, memberID string) (*models.MemberRecord, error)
}

// Gate decides whether a probationary member may start the quiz. It is
// read-only: checking never mutates the record.
type Gate struct {
	records       RecordFinder
	minimumTenure time.Duration
	cooldown      time.Duration
	passThreshold int
	now           func() time.Time
}

func NewGate(records RecordFinder, minimumTenure, cooldown time.Duration, passThreshold int) *Gate {
	return &Gate{
		records:       records,
		minimumTenure: minimumTenure,
		cooldown:      cooldown,
		passThreshold: passThreshold,
		now:           time.Now,
	}
}

// WithClock replaces the gate's time source.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

func (g *Gate) Check(ctx context.Context, memberID string) (Eligibility, error) {
	record, err := g.records.Find(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Eligibility{Verdict: VerdictNotTracked}, nil
		}
		return Eligibility{}, err
	}

	now := g.now()
	elapsed := now.Sub(record.TrackedSinceTime())
	if elapsed < g.minimumTenure {
		return Eligibility{
			Verdict:   VerdictStillWaiting,
			Remaining: g.minimumTenure - elapsed,
		}, nil
	}

	// Cooldown only follows a failed attempt.
	if lastAttempt, ok := record.LastAttemptTime(); ok && record.LastScore != nil && *record.LastScore < g.passThreshold {
		since := now.Sub(lastAttempt)
		if since < g.cooldown {
			return Eligibility{
				Verdict:   VerdictCoolingDown,
				Remaining: g.cooldown - since,
			}, nil
		}
	}

	return Eligibility{Verdict: VerdictEligible}, nil
}
