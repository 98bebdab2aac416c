package models

// RoleRef identifies one guild role as carried on gateway events.
type RoleRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MemberRolesChangedEvent is the gateway's member-update payload: the full
// role set before and after the change.
type MemberRolesChangedEvent struct {
	GuildID   string    `json:"guildId"`
	MemberID  string    `json:"memberId"`
	Before    []RoleRef `json:"before"`
	After     []RoleRef `json:"after"`
	Timestamp int64     `json:"timestamp"`
}

// QuizEvent is published to the rank exchange on quiz start and completion.
type QuizEvent struct {
	EventType    string `json:"eventType"`
	SessionToken string `json:"sessionToken"`
	MemberID     string `json:"memberId"`
	GuildID      string `json:"guildId"`
	Score        int    `json:"score,omitempty"`
	Total        int    `json:"total,omitempty"`
	Passed       bool   `json:"passed,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

// IDSet returns the role IDs of refs as a set.
func IDSet(refs []RoleRef) map[string]struct{} {
	out := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		out[r.ID] = struct{}{}
	}
	return out
}

// NameSet returns the role names of refs as a set.
func NameSet(refs []RoleRef) map[string]struct{} {
	out := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		out[r.Name] = struct{}{}
	}
	return out
}
