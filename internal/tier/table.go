// Package tier derives the single rank role a member should hold from the
// cosmetic title roles they carry, and reconciles the held rank against it.
package tier

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Bucket maps a set of cosmetic title roles to one rank role. Buckets are
// ordered highest precedence first; a member matching several buckets gets
// the first one only.
type Bucket struct {
	Tier     string   `json:"tier"`
	RoleID   string   `json:"roleId,omitempty"`
	RoleName string   `json:"roleName,omitempty"`
	Titles   []string `json:"titles"`
}

type Table struct {
	buckets []Bucket
	rankIDs map[string]struct{}
}

// roleResolver is the slice of the platform capability the table needs to
// turn configured role names into IDs.
type roleResolver interface {
	RoleIDByName(ctx context.Context, guildID, name string) (string, error)
}

// LoadTable reads the bucket table from a JSON file. The table is
// configuration data: bucket contents vary per community, only the
// resolve-by-precedence mechanism is fixed.
func LoadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tier table: %w", err)
	}
	var buckets []Bucket
	if err := json.Unmarshal(raw, &buckets); err != nil {
		return nil, fmt.Errorf("failed to parse tier table: %w", err)
	}
	return NewTable(buckets)
}

func NewTable(buckets []Bucket) (*Table, error) {
	if len(buckets) == 0 {
		return nil, fmt.Errorf("tier table has no buckets")
	}
	for _, b := range buckets {
		if b.Tier == "" {
			return nil, fmt.Errorf("tier table bucket with empty tier name")
		}
		if b.RoleID == "" && b.RoleName == "" {
			return nil, fmt.Errorf("bucket %s names neither a role ID nor a role name", b.Tier)
		}
		if len(b.Titles) == 0 {
			return nil, fmt.Errorf("bucket %s has no title roles", b.Tier)
		}
	}
	t := &Table{buckets: buckets}
	t.rebuildRankIDs()
	return t, nil
}

func (t *Table) rebuildRankIDs() {
	t.rankIDs = make(map[string]struct{}, len(t.buckets))
	for _, b := range t.buckets {
		if b.RoleID != "" {
			t.rankIDs[b.RoleID] = struct{}{}
		}
	}
}

// EnsureRoleIDs resolves buckets configured by role name instead of role ID.
// Communities maintain the table by hand and some only know the role names;
// the IDs are fetched once at startup.
func (t *Table) EnsureRoleIDs(ctx context.Context, guildID string, roles roleResolver) error {
	for i := range t.buckets {
		if t.buckets[i].RoleID != "" {
			continue
		}
		id, err := roles.RoleIDByName(ctx, guildID, t.buckets[i].RoleName)
		if err != nil {
			return fmt.Errorf("failed to resolve rank role for bucket %s: %w", t.buckets[i].Tier, err)
		}
		t.buckets[i].RoleID = id
	}
	t.rebuildRankIDs()
	return nil
}

// Resolve returns the highest-precedence bucket whose titles intersect the
// held role names. Pure and deterministic; lower-precedence matches are
// ignored, not summed.
func (t *Table) Resolve(heldNames map[string]struct{}) (Bucket, bool) {
	for _, b := range t.buckets {
		for _, title := range b.Titles {
			if _, ok := heldNames[title]; ok {
				return b, true
			}
		}
	}
	return Bucket{}, false
}

// IsRankRole reports whether the role ID is one of the table's managed rank
// roles.
func (t *Table) IsRankRole(roleID string) bool {
	_, ok := t.rankIDs[roleID]
	return ok
}

// HeldRank scans a member's role IDs for the rank role they currently hold.
// At most one is expected; with the invariant broken the highest-precedence
// one wins and reconciliation removes it before adding the correct role.
func (t *Table) HeldRank(heldIDs map[string]struct{}) (string, bool) {
	for _, b := range t.buckets {
		if _, ok := heldIDs[b.RoleID]; ok {
			return b.RoleID, true
		}
	}
	return "", false
}
