package models

import "time"

// MemberRecord tracks a member for the duration of their probation.
// One document exists per member holding the probationary role; the record
// is created when the role is granted and deleted when it is removed.
type MemberRecord struct {
	MemberID     string `bson:"_id" json:"member_id"`
	TrackedSince int64  `bson:"tracked_since" json:"tracked_since"`
	LastAttempt  *int64 `bson:"last_attempt,omitempty" json:"last_attempt,omitempty"`
	LastScore    *int   `bson:"last_score,omitempty" json:"last_score,omitempty"`
}

func (r *MemberRecord) TrackedSinceTime() time.Time {
	return time.Unix(r.TrackedSince, 0)
}

func (r *MemberRecord) LastAttemptTime() (time.Time, bool) {
	if r.LastAttempt == nil {
		return time.Time{}, false
	}
	return time.Unix(*r.LastAttempt, 0), true
}
