package domain

// VisitDebug is an optional verbose event describing a guard decision.
type VisitDebug struct {
	Type          string   `json:"type"` // visit_debug
	SchemaVersion int      `json:"schemaVersion"`
	GuestID       string   `json:"guestId,omitempty"`
	Visit         int      `json:"visit"`
	Event         string   `json:"event"`
	Reason        Decision `json:"reason"`
	IdleMs        int64    `json:"idle_ms,omitempty"`
}
