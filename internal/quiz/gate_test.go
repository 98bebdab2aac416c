package quiz

import (
	"context"
	"errors"
	"testing"
	"time"

	"rank-service/internal/models"
	"rank-service/internal/repository"
)

type fakeRecordFinder struct {
	record *models.MemberRecord
	err    error
}

func (f *fakeRecordFinder) Find(ctx context.Context, memberID string) (*models.MemberRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestGateCheck(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tenure := 14 * 24 * time.Hour
	cooldown := 24 * time.Hour
	threshold := 4

	testCases := []struct {
		name          string
		record        *models.MemberRecord
		findErr       error
		wantVerdict   Verdict
		wantRemaining time.Duration
	}{
		{
			name:        "untracked member",
			findErr:     repository.ErrNotFound,
			wantVerdict: VerdictNotTracked,
		},
		{
			name: "tenure not yet served",
			record: &models.MemberRecord{
				MemberID:     "m",
				TrackedSince: base.Add(-10 * 24 * time.Hour).Unix(),
			},
			wantVerdict:   VerdictStillWaiting,
			wantRemaining: 4 * 24 * time.Hour,
		},
		{
			name: "tenure served and no attempt",
			record: &models.MemberRecord{
				MemberID:     "m",
				TrackedSince: base.Add(-15 * 24 * time.Hour).Unix(),
			},
			wantVerdict: VerdictEligible,
		},
		{
			name: "failed attempt inside cooldown",
			record: &models.MemberRecord{
				MemberID:     "m",
				TrackedSince: base.Add(-20 * 24 * time.Hour).Unix(),
				LastAttempt:  int64Ptr(base.Add(-6 * time.Hour).Unix()),
				LastScore:    intPtr(2),
			},
			wantVerdict:   VerdictCoolingDown,
			wantRemaining: 18 * time.Hour,
		},
		{
			name: "failed attempt past cooldown",
			record: &models.MemberRecord{
				MemberID:     "m",
				TrackedSince: base.Add(-20 * 24 * time.Hour).Unix(),
				LastAttempt:  int64Ptr(base.Add(-25 * time.Hour).Unix()),
				LastScore:    intPtr(2),
			},
			wantVerdict: VerdictEligible,
		},
		{
			name: "passing attempt carries no cooldown",
			record: &models.MemberRecord{
				MemberID:     "m",
				TrackedSince: base.Add(-20 * 24 * time.Hour).Unix(),
				LastAttempt:  int64Ptr(base.Add(-1 * time.Hour).Unix()),
				LastScore:    intPtr(5),
			},
			wantVerdict: VerdictEligible,
		},
		{
			name: "tenure check precedes cooldown",
			record: &models.MemberRecord{
				MemberID:     "m",
				TrackedSince: base.Add(-2 * 24 * time.Hour).Unix(),
				LastAttempt:  int64Ptr(base.Add(-1 * time.Hour).Unix()),
				LastScore:    intPtr(0),
			},
			wantVerdict:   VerdictStillWaiting,
			wantRemaining: 12 * 24 * time.Hour,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gate := NewGate(&fakeRecordFinder{record: tc.record, err: tc.findErr}, tenure, cooldown, threshold).
				WithClock(func() time.Time { return base })

			got, err := gate.Check(context.Background(), "m")
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if got.Verdict != tc.wantVerdict {
				t.Errorf("verdict = %v, want %v", got.Verdict, tc.wantVerdict)
			}
			if got.Remaining != tc.wantRemaining {
				t.Errorf("remaining = %v, want %v", got.Remaining, tc.wantRemaining)
			}
		})
	}
}

func TestGateCheckPropagatesStoreError(t *testing.T) {
	storeErr := errors.New("connection reset")
	gate := NewGate(&fakeRecordFinder{err: storeErr}, time.Hour, time.Hour, 4)

	if _, err := gate.Check(context.Background(), "m"); !errors.Is(err, storeErr) {
		t.Errorf("err = %v, want %v", err, storeErr)
	}
}
