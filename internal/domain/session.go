package domain

import "time"

// VisitStart is emitted when a guest begins a new visit
type VisitStart struct {
	Type          string   `json:"type"`            // "visit_start"
	SchemaVersion int      `json:"schemaVersion"`   // 1
	Alert         string   `json:"alert,omitempty"` // "RETURNING_GUEST" after the first visit
	GuestID       string   `json:"guestId"`
	Visit         int      `json:"visit"`  // Visit number (1, 2, 3...)
	Reason        Decision `json:"reason"` // created, page_visit or inactivity
	Page          string   `json:"page,omitempty"`
	Timestamp     string   `json:"timestamp"` // ISO8601 timestamp
}

// VisitEnd is emitted when an open visit is closed by a transition
type VisitEnd struct {
	Type          string       `json:"type"` // "visit_end"
	SchemaVersion int          `json:"schemaVersion"`
	GuestID       string       `json:"guestId"`
	Visit         int          `json:"visit"`
	Summary       VisitSummary `json:"summary"`
}

// VisitSummary contains statistics about a closed visit
type VisitSummary struct {
	Clicks       int      `json:"clicks"`
	Moves        int      `json:"moves"`
	Scrolls      int      `json:"scrolls"`
	Interactions int      `json:"interactions"`
	Pages        []string `json:"pages"`
	DurationMs   int64    `json:"duration_ms"`
}

// VisitChange pairs the visit that closed with the one that opened
type VisitChange struct {
	EndVisit   *VisitEnd
	StartVisit *VisitStart
}

// NewVisitStart creates a new VisitStart event
func NewVisitStart(guestID string, visit int, reason Decision, page string, at time.Time) *VisitStart {
	s := &VisitStart{
		Type:          "visit_start",
		SchemaVersion: 1,
		GuestID:       guestID,
		Visit:         visit,
		Reason:        reason,
		Page:          page,
		Timestamp:     at.UTC().Format(time.RFC3339),
	}
	if visit > 1 {
		s.Alert = "RETURNING_GUEST"
	}
	return s
}

// NewVisitEnd creates a VisitEnd event from a closed record
func NewVisitEnd(guestID string, rec SessionRecord) *VisitEnd {
	return &VisitEnd{
		Type:          "visit_end",
		SchemaVersion: 1,
		GuestID:       guestID,
		Visit:         rec.VisitNumber,
		Summary: VisitSummary{
			Clicks:       rec.Detail.ClickCount,
			Moves:        rec.Detail.MoveCount,
			Scrolls:      rec.Detail.ScrollCount,
			Interactions: rec.InteractionCount,
			Pages:        rec.Detail.Pages,
			DurationMs:   rec.Detail.DurationMs,
		},
	}
}
