package tier

import (
	"context"
	"errors"
	"testing"
	"time"

	"rank-service/internal/models"
)

type fakeRecords struct {
	tracked   []string
	untracked []string
	failTrack bool
}

func (f *fakeRecords) Track(ctx context.Context, memberID string, now time.Time) error {
	if f.failTrack {
		return errors.New("store down")
	}
	f.tracked = append(f.tracked, memberID)
	return nil
}

func (f *fakeRecords) Untrack(ctx context.Context, memberID string) error {
	f.untracked = append(f.untracked, memberID)
	return nil
}

type roleCall struct {
	memberID string
	roleID   string
}

type fakeRoles struct {
	added      []roleCall
	removed    []roleCall
	failRemove bool
	failAdd    bool
}

func (f *fakeRoles) AddRole(ctx context.Context, guildID, memberID, roleID string) error {
	if f.failAdd {
		return errors.New("add failed")
	}
	f.added = append(f.added, roleCall{memberID, roleID})
	return nil
}

func (f *fakeRoles) RemoveRole(ctx context.Context, guildID, memberID, roleID string) error {
	if f.failRemove {
		return errors.New("remove failed")
	}
	f.removed = append(f.removed, roleCall{memberID, roleID})
	return nil
}

const trialRoleID = "role-trial"

func refs(pairs ...[2]string) []models.RoleRef {
	out := make([]models.RoleRef, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, models.RoleRef{ID: p[0], Name: p[1]})
	}
	return out
}

func newTestReconciler(t *testing.T) (*Reconciler, *fakeRecords, *fakeRoles) {
	t.Helper()
	table, err := NewTable(testBuckets())
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	records := &fakeRecords{}
	roles := &fakeRoles{}
	return NewReconciler(table, records, roles, trialRoleID), records, roles
}

func TestLoopSuppression(t *testing.T) {
	r, _, roles := newTestReconciler(t)

	// The only change is a rank role: this is the echo of our own mutation.
	ev := models.MemberRolesChangedEvent{
		GuildID:  "g",
		MemberID: "m",
		Before:   refs([2]string{"x", "Lead"}),
		After:    refs([2]string{"x", "Lead"}, [2]string{"role-t3", "Tier 3"}),
	}
	if err := r.HandleRoleChange(context.Background(), ev); err != nil {
		t.Fatalf("HandleRoleChange failed: %v", err)
	}

	if len(roles.added) != 0 || len(roles.removed) != 0 {
		t.Errorf("self-caused event triggered mutations: added=%v removed=%v", roles.added, roles.removed)
	}
}

func TestReconcileAddsResolvedRank(t *testing.T) {
	r, _, roles := newTestReconciler(t)

	ev := models.MemberRolesChangedEvent{
		GuildID:  "g",
		MemberID: "m",
		Before:   refs(),
		After:    refs([2]string{"x", "Lead"}),
	}
	if err := r.HandleRoleChange(context.Background(), ev); err != nil {
		t.Fatalf("HandleRoleChange failed: %v", err)
	}

	if len(roles.removed) != 0 {
		t.Errorf("unexpected removals: %v", roles.removed)
	}
	if len(roles.added) != 1 || roles.added[0] != (roleCall{"m", "role-t3"}) {
		t.Errorf("added = %v, want [{m role-t3}]", roles.added)
	}
}

func TestReconcileSwapsStaleRank(t *testing.T) {
	r, _, roles := newTestReconciler(t)

	// Title changed from Lead to Admin while the old rank role lingers.
	ev := models.MemberRolesChangedEvent{
		GuildID:  "g",
		MemberID: "m",
		Before:   refs([2]string{"x", "Lead"}, [2]string{"role-t3", "Tier 3"}),
		After:    refs([2]string{"y", "Admin"}, [2]string{"role-t3", "Tier 3"}),
	}
	if err := r.HandleRoleChange(context.Background(), ev); err != nil {
		t.Fatalf("HandleRoleChange failed: %v", err)
	}

	if len(roles.removed) != 1 || roles.removed[0] != (roleCall{"m", "role-t3"}) {
		t.Errorf("removed = %v, want [{m role-t3}]", roles.removed)
	}
	if len(roles.added) != 1 || roles.added[0] != (roleCall{"m", "role-t2"}) {
		t.Errorf("added = %v, want [{m role-t2}]", roles.added)
	}
}

func TestReconcileRemovesRankWhenNoTitleLeft(t *testing.T) {
	r, _, roles := newTestReconciler(t)

	ev := models.MemberRolesChangedEvent{
		GuildID:  "g",
		MemberID: "m",
		Before:   refs([2]string{"x", "Moderator"}, [2]string{"role-t1", "Tier 1"}),
		After:    refs([2]string{"role-t1", "Tier 1"}),
	}
	if err := r.HandleRoleChange(context.Background(), ev); err != nil {
		t.Fatalf("HandleRoleChange failed: %v", err)
	}

	if len(roles.removed) != 1 || roles.removed[0] != (roleCall{"m", "role-t1"}) {
		t.Errorf("removed = %v, want [{m role-t1}]", roles.removed)
	}
	if len(roles.added) != 0 {
		t.Errorf("unexpected additions: %v", roles.added)
	}
}

func TestReconcileNoOpWhenConverged(t *testing.T) {
	r, _, roles := newTestReconciler(t)

	ev := models.MemberRolesChangedEvent{
		GuildID:  "g",
		MemberID: "m",
		Before:   refs([2]string{"x", "Lead"}, [2]string{"role-t3", "Tier 3"}),
		After:    refs([2]string{"x", "Lead"}, [2]string{"role-t3", "Tier 3"}, [2]string{"y", "Birthday"}),
	}
	if err := r.HandleRoleChange(context.Background(), ev); err != nil {
		t.Fatalf("HandleRoleChange failed: %v", err)
	}

	if len(roles.added) != 0 || len(roles.removed) != 0 {
		t.Errorf("converged member mutated: added=%v removed=%v", roles.added, roles.removed)
	}
}

func TestRemoveFailureDoesNotBlockAdd(t *testing.T) {
	r, _, roles := newTestReconciler(t)
	roles.failRemove = true

	ev := models.MemberRolesChangedEvent{
		GuildID:  "g",
		MemberID: "m",
		Before:   refs([2]string{"x", "Lead"}, [2]string{"role-t3", "Tier 3"}),
		After:    refs([2]string{"y", "Admin"}, [2]string{"role-t3", "Tier 3"}),
	}
	if err := r.HandleRoleChange(context.Background(), ev); err != nil {
		t.Fatalf("HandleRoleChange failed: %v", err)
	}

	if len(roles.added) != 1 || roles.added[0] != (roleCall{"m", "role-t2"}) {
		t.Errorf("add was blocked by remove failure: added=%v", roles.added)
	}
}

func TestProbationLifecycle(t *testing.T) {
	t.Run("gaining probation tracks the member", func(t *testing.T) {
		r, records, _ := newTestReconciler(t)

		ev := models.MemberRolesChangedEvent{
			GuildID:  "g",
			MemberID: "m",
			Before:   refs(),
			After:    refs([2]string{trialRoleID, "Trial Moderator"}),
		}
		if err := r.HandleRoleChange(context.Background(), ev); err != nil {
			t.Fatalf("HandleRoleChange failed: %v", err)
		}
		if len(records.tracked) != 1 || records.tracked[0] != "m" {
			t.Errorf("tracked = %v, want [m]", records.tracked)
		}
	})

	t.Run("losing probation untracks the member", func(t *testing.T) {
		r, records, _ := newTestReconciler(t)

		ev := models.MemberRolesChangedEvent{
			GuildID:  "g",
			MemberID: "m",
			Before:   refs([2]string{trialRoleID, "Trial Moderator"}),
			After:    refs(),
		}
		if err := r.HandleRoleChange(context.Background(), ev); err != nil {
			t.Fatalf("HandleRoleChange failed: %v", err)
		}
		if len(records.untracked) != 1 || records.untracked[0] != "m" {
			t.Errorf("untracked = %v, want [m]", records.untracked)
		}
	})

	t.Run("unrelated change touches no records", func(t *testing.T) {
		r, records, _ := newTestReconciler(t)

		ev := models.MemberRolesChangedEvent{
			GuildID:  "g",
			MemberID: "m",
			Before:   refs([2]string{trialRoleID, "Trial Moderator"}),
			After:    refs([2]string{trialRoleID, "Trial Moderator"}, [2]string{"y", "Birthday"}),
		}
		if err := r.HandleRoleChange(context.Background(), ev); err != nil {
			t.Fatalf("HandleRoleChange failed: %v", err)
		}
		if len(records.tracked) != 0 || len(records.untracked) != 0 {
			t.Errorf("records touched: tracked=%v untracked=%v", records.tracked, records.untracked)
		}
	})

	t.Run("record store failure is returned for requeue", func(t *testing.T) {
		r, records, _ := newTestReconciler(t)
		records.failTrack = true

		ev := models.MemberRolesChangedEvent{
			GuildID:  "g",
			MemberID: "m",
			Before:   refs(),
			After:    refs([2]string{trialRoleID, "Trial Moderator"}),
		}
		if err := r.HandleRoleChange(context.Background(), ev); err == nil {
			t.Error("expected record store error to propagate")
		}
	})
}
