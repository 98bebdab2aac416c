package tier

import (
	"context"
	"log"
	"time"

	"rank-service/internal/models"
)

// RecordStore is the slice of the member record store the reconciler owns:
// record lifecycle follows the probationary role exactly.
type RecordStore interface {
	Track(ctx context.Context, memberID string, now time.Time) error
	Untrack(ctx context.Context, memberID string) error
}

// RoleMutator mutates guild roles. Calls are independently fallible and
// never retried here.
type RoleMutator interface {
	AddRole(ctx context.Context, guildID, memberID, roleID string) error
	RemoveRole(ctx context.Context, guildID, memberID, roleID string) error
}

// Reconciler consumes membership role-change events and drives the held
// rank role toward the tier resolved from the member's title roles.
type Reconciler struct {
	table       *Table
	records     RecordStore
	roles       RoleMutator
	trialRoleID string
	now         func() time.Time
}

func NewReconciler(table *Table, records RecordStore, roles RoleMutator, trialRoleID string) *Reconciler {
	return &Reconciler{
		table:       table,
		records:     records,
		roles:       roles,
		trialRoleID: trialRoleID,
		now:         time.Now,
	}
}

// HandleRoleChange processes one membership-change event. The returned
// error covers only the durable record store; role mutations are
// best-effort and their failures are logged, not propagated, so one failed
// side never blocks the other and a transient platform error is never
// amplified into a retry loop.
func (r *Reconciler) HandleRoleChange(ctx context.Context, ev models.MemberRolesChangedEvent) error {
	beforeIDs := models.IDSet(ev.Before)
	afterIDs := models.IDSet(ev.After)

	// Probation tracking first, independent of tier logic.
	_, hadTrial := beforeIDs[r.trialRoleID]
	_, hasTrial := afterIDs[r.trialRoleID]
	if !hadTrial && hasTrial {
		if err := r.records.Track(ctx, ev.MemberID, r.now()); err != nil {
			return err
		}
	}
	if hadTrial && !hasTrial {
		if err := r.records.Untrack(ctx, ev.MemberID); err != nil {
			return err
		}
	}

	// Loop guard: an event whose entire diff is rank roles is the echo of
	// our own mutation and must not re-trigger resolution.
	changed := symmetricDifference(beforeIDs, afterIDs)
	if len(changed) > 0 && allRankRoles(r.table, changed) {
		return nil
	}

	desired, hasDesired := r.table.Resolve(models.NameSet(ev.After))
	held, hasHeld := r.table.HeldRank(afterIDs)

	if hasHeld == hasDesired && held == desired.RoleID {
		return nil
	}

	if hasHeld {
		if err := r.roles.RemoveRole(ctx, ev.GuildID, ev.MemberID, held); err != nil {
			log.Printf("Failed to remove rank role %s from member %s: %v", held, ev.MemberID, err)
		}
	}
	if hasDesired {
		if err := r.roles.AddRole(ctx, ev.GuildID, ev.MemberID, desired.RoleID); err != nil {
			log.Printf("Failed to add rank role %s to member %s: %v", desired.RoleID, ev.MemberID, err)
		}
	}
	return nil
}

func symmetricDifference(a, b map[string]struct{}) []string {
	var out []string
	for id := range a {
		if _, ok := b[id]; !ok {
			out = append(out, id)
		}
	}
	for id := range b {
		if _, ok := a[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func allRankRoles(table *Table, ids []string) bool {
	for _, id := range ids {
		if !table.IsRankRole(id) {
			return false
		}
	}
	return true
}
