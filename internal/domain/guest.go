package domain

import (
	"strings"
	"time"
)

// InteractionType classifies a tracked pointer or scroll event
type InteractionType string

const (
	InteractionClick  InteractionType = "click"
	InteractionMove   InteractionType = "move"
	InteractionScroll InteractionType = "scroll"
)

// ParseInteractionType converts a string to an InteractionType
func ParseInteractionType(s string) (InteractionType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "click":
		return InteractionClick, true
	case "move", "mousemove":
		return InteractionMove, true
	case "scroll":
		return InteractionScroll, true
	default:
		return "", false
	}
}

// Position is a viewport coordinate
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ElementInfo describes the target of a click
type ElementInfo struct {
	Tag       string `json:"tagName,omitempty"`
	ID        string `json:"id,omitempty"`
	ClassName string `json:"className,omitempty"`
	Text      string `json:"textContent,omitempty"`
}

// Interaction is one entry in a visit's sampled interaction log
type Interaction struct {
	Type      InteractionType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Position  Position        `json:"position"`
	Element   *ElementInfo    `json:"element,omitempty"`
	Page      string          `json:"page,omitempty"`
}

// DeviceFingerprint is the set of device attributes hashed into a guest id.
// Field names double as the keys of the hashed JSON document.
type DeviceFingerprint struct {
	ScreenWidth  int    `json:"screenWidth"`
	ScreenHeight int    `json:"screenHeight"`
	ColorDepth   int    `json:"colorDepth"`
	Timezone     string `json:"timezone"`
	Language     string `json:"language"`
	Platform     string `json:"platform"`
	UserAgent    string `json:"userAgent"`
}

// GuestFingerprint is the fingerprint snapshot stored with an identity
type GuestFingerprint struct {
	DeviceFingerprint
	Hash string `json:"hash"`
}

// SessionDetail holds the per-visit counters and logs
type SessionDetail struct {
	ClickCount   int           `json:"clickCount"`
	MoveCount    int           `json:"moveCount"`
	ScrollCount  int           `json:"scrollCount"`
	Interactions []Interaction `json:"interactions"`
	Pages        []string      `json:"pages"`
	DurationMs   int64         `json:"duration"`
}

// SessionRecord is a closed visit
type SessionRecord struct {
	VisitNumber      int           `json:"visitNumber"`
	StartTime        time.Time     `json:"startTime"`
	EndTime          time.Time     `json:"endTime"`
	InteractionCount int           `json:"interactionCount"`
	Detail           SessionDetail `json:"sessionData"`
}

// GuestIdentity is the persisted record for one guest
type GuestIdentity struct {
	GuestID             string           `json:"guestId"`
	Fingerprint         GuestFingerprint `json:"fingerprint"`
	FirstVisit          time.Time        `json:"firstVisit"`
	VisitCount          int              `json:"visitCount"`
	LastInteractionTime time.Time        `json:"lastInteractionTime"`
	CurrentSessionStart time.Time        `json:"currentSessionStart"`
	TotalTimeSpent      int64            `json:"totalTimeSpent"`
	ReturnVisits        []SessionRecord  `json:"returnVisits"`
}

// Clone returns a deep copy so callers cannot alias tracker state
func (g *GuestIdentity) Clone() *GuestIdentity {
	if g == nil {
		return nil
	}
	c := *g
	c.ReturnVisits = make([]SessionRecord, len(g.ReturnVisits))
	for i, r := range g.ReturnVisits {
		c.ReturnVisits[i] = r.clone()
	}
	return &c
}

func (r SessionRecord) clone() SessionRecord {
	r.Detail.Interactions = append([]Interaction(nil), r.Detail.Interactions...)
	r.Detail.Pages = append([]string(nil), r.Detail.Pages...)
	return r
}

// SessionStats are the live counters of the open visit
type SessionStats struct {
	VisitNumber      int       `json:"visitNumber"`
	StartTime        time.Time `json:"startTime"`
	ClickCount       int       `json:"clickCount"`
	MoveCount        int       `json:"moveCount"`
	ScrollCount      int       `json:"scrollCount"`
	InteractionCount int       `json:"interactionCount"`
	Pages            []string  `json:"pages"`
}

// GuestView is what the tracker hands back for every event
type GuestView struct {
	Type          string `json:"type"` // "guest"
	SchemaVersion int    `json:"schemaVersion"`
	GuestIdentity
	IsReturning            bool         `json:"isReturning"`
	CurrentSessionDuration int64        `json:"currentSessionDuration"`
	SessionID              string       `json:"sessionId"`
	Session                SessionStats `json:"sessionStats"`
	Decision               Decision     `json:"decision"`

	// Change is set when the event opened a new visit
	Change *VisitChange `json:"-"`
}

// Decision records what the transition guard did with an event
type Decision string

const (
	DecisionCreated         Decision = "created"
	DecisionPageVisit       Decision = "page_visit"
	DecisionInactivity      Decision = "inactivity"
	DecisionContinued       Decision = "continued"
	DecisionGuardSuppressed Decision = "guard_suppressed"
	DecisionReadOnly        Decision = "read_only"
)

// StartsVisit reports whether the decision opened a visit
func (d Decision) StartsVisit() bool {
	return d == DecisionCreated || d == DecisionPageVisit || d == DecisionInactivity
}

// DeviceInfo is the parsed description sent along with mirror writes
type DeviceInfo struct {
	Browser        string `json:"browser"`
	BrowserVersion string `json:"browserVersion,omitempty"`
	OS             string `json:"os"`
	OSVersion      string `json:"osVersion,omitempty"`
	DeviceType     string `json:"deviceType"`
	Platform       string `json:"platform,omitempty"`
	ScreenWidth    int    `json:"screenWidth"`
	ScreenHeight   int    `json:"screenHeight"`
	ViewportWidth  int    `json:"viewportWidth"`
	ViewportHeight int    `json:"viewportHeight"`
	UserAgent      string `json:"userAgent"`
}

// GuestVisit is the mirror payload for a new visit
type GuestVisit struct {
	GuestID      string          `json:"guestId"`
	Fingerprint  string          `json:"fingerprint"`
	VisitCount   int             `json:"visitCount"`
	IsReturning  bool            `json:"isReturning"`
	ReturnVisits []SessionRecord `json:"returnVisits"`
	SessionID    string          `json:"sessionId"`
	Page         string          `json:"page"`
	URL          string          `json:"url"`
	Device       DeviceInfo      `json:"device"`
	TenantID     string          `json:"tenantId,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}
