package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/badalhalder99/vital/internal/domain"
	"github.com/badalhalder99/vital/internal/filter"
	"github.com/badalhalder99/vital/internal/fingerprint"
	"github.com/badalhalder99/vital/internal/metrics"
	"github.com/badalhalder99/vital/internal/mirror"
	"github.com/badalhalder99/vital/internal/store"
)

// Storage keys. The fingerprint record key is derived from the stable guest
// id, never from the current fingerprint.
const (
	GuestIDKey           = "vital_guest_id"
	FingerprintKeyPrefix = "vital_guest_fp_"
)

const pageVisitKey = "page_visit"

// Thresholds are the time and size limits of visit bucketing
type Thresholds struct {
	InactivityTimeout time.Duration // idle gap that starts a new visit
	TransitionGuard   time.Duration // minimum spacing between visit starts
	PageVisitDebounce time.Duration // page visits closer than this are dropped
	MoveSampleRate    int           // log one of every N moves
	MaxLogEntries     int           // interaction log cap per visit
}

// DefaultThresholds returns the standard limits
func DefaultThresholds() Thresholds {
	return Thresholds{
		InactivityTimeout: 5 * time.Minute,
		TransitionGuard:   2 * time.Second,
		PageVisitDebounce: 2 * time.Second,
		MoveSampleRate:    10,
		MaxLogEntries:     1000,
	}
}

// Tracker identifies a guest by device fingerprint and buckets their
// interactions into visits. One Tracker models one page instance; instances
// sharing a store are not coordinated.
type Tracker struct {
	mu sync.Mutex

	clock     clock.Clock
	store     store.Store
	mirror    mirror.Mirror
	inspector fingerprint.Inspector
	logger    *zap.Logger
	th        Thresholds
	tenantID  string
	entropy   io.Reader

	sessionID      string
	currentPage    string
	currentURL     string
	state          *visitState
	lastTransition time.Time
	pageDebounce   *filter.Debouncer

	// last identity this instance saw; authoritative while unsaved
	cached  *domain.GuestIdentity
	unsaved bool
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock sets the time source
func WithClock(c clock.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithMirror sets the backend replication target
func WithMirror(m mirror.Mirror) Option {
	return func(t *Tracker) { t.mirror = m }
}

// WithLogger sets the logger for swallowed failures
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithThresholds overrides the bucketing limits
func WithThresholds(th Thresholds) Option {
	return func(t *Tracker) { t.th = th }
}

// WithTenant tags mirror writes with a tenant id
func WithTenant(id string) Option {
	return func(t *Tracker) { t.tenantID = id }
}

// WithPage sets the page the tracker was loaded on. An empty page keeps "/".
func WithPage(page, url string) Option {
	return func(t *Tracker) {
		if page != "" {
			t.currentPage = page
		}
		t.currentURL = url
	}
}

// WithEntropy sets the randomness used for guest id suffixes
func WithEntropy(r io.Reader) Option {
	return func(t *Tracker) { t.entropy = r }
}

// NewTracker creates a tracker over the given store and device inspector
func NewTracker(st store.Store, inspector fingerprint.Inspector, opts ...Option) *Tracker {
	t := &Tracker{
		clock:       clock.New(),
		store:       st,
		mirror:      mirror.Nop{},
		inspector:   inspector,
		logger:      zap.NewNop(),
		th:          DefaultThresholds(),
		sessionID:   uuid.NewString(),
		currentPage: "/",
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.entropy == nil {
		t.entropy = ulid.DefaultEntropy()
	}
	if t.th.MoveSampleRate < 1 {
		t.th.MoveSampleRate = 1
	}
	t.pageDebounce = filter.NewDebouncer(t.clock, t.th.PageVisitDebounce)
	return t
}

// Fingerprint computes the current device fingerprint and its hash
func (t *Tracker) Fingerprint() (domain.DeviceFingerprint, string) {
	return fingerprint.Of(t.inspector.Inspect())
}

// SessionID returns the id of this page instance
func (t *Tracker) SessionID() string {
	return t.sessionID
}

// CurrentVisit returns the visit number of the open visit (0 before the
// first identify)
func (t *Tracker) CurrentVisit() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == nil {
		return 0
	}
	return t.state.visitNumber
}

// Identify reads or creates the guest identity and applies the visit
// transition guard. A call with neither flag set never writes.
func (t *Tracker) Identify(ctx context.Context, isInteraction, forceNewVisit bool) *domain.GuestView {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	id, decision, change := t.identify(ctx, now, isInteraction, forceNewVisit)
	return t.view(id, decision, change, now)
}

// Lookup returns the stored identity without creating one. ok is false when
// no guest has been recorded on this device yet.
func (t *Tracker) Lookup(ctx context.Context) (view *domain.GuestView, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.cached.Clone()
	if t.cached == nil {
		guestID, err := t.store.Get(ctx, GuestIDKey)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				t.storeError("get", GuestIDKey, err)
			}
			return nil, false
		}
		guestID = strings.TrimSpace(guestID)
		if guestID == "" {
			return nil, false
		}
		if id = t.loadIdentity(ctx, guestID); id == nil {
			return nil, false
		}
	}

	if t.state == nil {
		t.state = newVisitState(id.VisitCount, id.CurrentSessionStart, t.currentPage)
	}
	return t.view(id, domain.DecisionReadOnly, nil, t.clock.Now()), true
}

// RecordInteraction registers a click, move or scroll on the open visit
func (t *Tracker) RecordInteraction(ctx context.Context, in domain.Interaction) *domain.GuestView {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	id, decision, change := t.identify(ctx, now, true, false)

	if in.Timestamp.IsZero() {
		in.Timestamp = now
	}
	if in.Page == "" {
		in.Page = t.currentPage
	}

	s := t.state
	switch in.Type {
	case domain.InteractionClick:
		s.clicks++
		s.log(in, t.th.MaxLogEntries)
	case domain.InteractionScroll:
		s.scrolls++
		s.log(in, t.th.MaxLogEntries)
	case domain.InteractionMove:
		s.moves++
		if (s.moves-1)%t.th.MoveSampleRate == 0 {
			s.log(in, t.th.MaxLogEntries)
		}
	default:
		t.logger.Debug("ignoring unknown interaction type", zap.String("type", string(in.Type)))
		return t.view(id, decision, change, now)
	}
	metrics.InteractionsRecorded.WithLabelValues(string(in.Type)).Inc()

	return t.view(id, decision, change, now)
}

// RecordPageVisit forces a new visit for a page load. Calls within the
// debounce window of the previous accepted call are dropped and reported
// with accepted=false.
func (t *Tracker) RecordPageVisit(ctx context.Context, page, url string) (view *domain.GuestView, accepted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if res := t.pageDebounce.Check(pageVisitKey); !res.Allow {
		t.logger.Debug("page visit debounced",
			zap.String("page", page),
			zap.Duration("since_last", res.SinceLast),
			zap.Int("suppressed", res.Suppressed))
		id, decision, _ := t.identify(ctx, now, false, false)
		return t.view(id, decision, nil, now), false
	}

	if page != "" {
		t.currentPage = page
	}
	if url != "" {
		t.currentURL = url
	}
	id, decision, change := t.identify(ctx, now, false, true)
	t.state.addPage(t.currentPage)
	return t.view(id, decision, change, now), true
}

// CloseSession stamps the end time of the open visit and returns it. The
// visit is not appended to the guest's history; that only happens when the
// next visit starts.
func (t *Tracker) CloseSession() domain.SessionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == nil {
		return domain.SessionRecord{}
	}
	now := t.clock.Now()
	t.state.end = now
	return t.state.record(t.state.visitNumber, now)
}

// Reset deletes the stable id and every fingerprint record, then clears
// in-memory state. Store failures are logged.
func (t *Tracker) Reset(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys, err := t.store.Keys(ctx, FingerprintKeyPrefix)
	if err != nil {
		t.storeError("keys", "", err)
	}
	for _, k := range append(keys, GuestIDKey) {
		if err := t.store.Remove(ctx, k); err != nil {
			t.storeError("remove", k, err)
		}
	}

	t.state = nil
	t.lastTransition = time.Time{}
	t.pageDebounce.Reset()
	t.cached = nil
	t.unsaved = false
	t.sessionID = uuid.NewString()
	t.logger.Info("guest data reset", zap.Int("records_removed", len(keys)))
}

// identify is the guarded read-modify-write. Caller holds t.mu.
func (t *Tracker) identify(ctx context.Context, now time.Time, isInteraction, forceNewVisit bool) (*domain.GuestIdentity, domain.Decision, *domain.VisitChange) {
	id, created := t.loadOrCreate(ctx, now)
	if created {
		t.state = newVisitState(1, now, t.currentPage)
		t.lastTransition = now
		t.persist(ctx, id)
		t.dispatch(id, now)
		metrics.VisitsStarted.WithLabelValues(string(domain.DecisionCreated)).Inc()
		t.logger.Debug("guest created", zap.String("guest_id", id.GuestID))
		return id, domain.DecisionCreated, &domain.VisitChange{
			StartVisit: domain.NewVisitStart(id.GuestID, 1, domain.DecisionCreated, t.currentPage, now),
		}
	}

	if t.state == nil {
		// the open visit started before this page instance
		t.state = newVisitState(id.VisitCount, id.CurrentSessionStart, t.currentPage)
	}

	if !isInteraction && !forceNewVisit {
		return id, domain.DecisionReadOnly, nil
	}

	idle := now.Sub(id.LastInteractionTime)
	reason := domain.DecisionContinued
	switch {
	case forceNewVisit:
		reason = domain.DecisionPageVisit
	case idle > t.th.InactivityTimeout:
		reason = domain.DecisionInactivity
	}

	if reason.StartsVisit() {
		if t.lastTransition.IsZero() || now.Sub(t.lastTransition) >= t.th.TransitionGuard {
			return id, reason, t.startVisit(ctx, id, reason, now)
		}
		t.logger.Debug("visit transition suppressed by guard",
			zap.String("guest_id", id.GuestID),
			zap.Duration("since_last_transition", now.Sub(t.lastTransition)))
		reason = domain.DecisionGuardSuppressed
	}

	id.LastInteractionTime = now
	t.persist(ctx, id)
	return id, reason, nil
}

func (t *Tracker) startVisit(ctx context.Context, id *domain.GuestIdentity, reason domain.Decision, now time.Time) *domain.VisitChange {
	rec := t.state.record(id.VisitCount, now)
	id.ReturnVisits = append(id.ReturnVisits, rec)
	id.TotalTimeSpent += rec.Detail.DurationMs
	id.VisitCount++

	t.state = newVisitState(id.VisitCount, now, t.currentPage)
	id.CurrentSessionStart = now
	id.LastInteractionTime = now
	t.lastTransition = now

	t.persist(ctx, id)
	t.dispatch(id, now)

	metrics.VisitsStarted.WithLabelValues(string(reason)).Inc()
	t.logger.Debug("visit started",
		zap.String("guest_id", id.GuestID),
		zap.Int("visit", id.VisitCount),
		zap.String("reason", string(reason)))

	return &domain.VisitChange{
		EndVisit:   domain.NewVisitEnd(id.GuestID, rec),
		StartVisit: domain.NewVisitStart(id.GuestID, id.VisitCount, reason, t.currentPage, now),
	}
}

// loadOrCreate returns the persisted identity, or a fresh one that has not
// been written yet (created=true).
func (t *Tracker) loadOrCreate(ctx context.Context, now time.Time) (id *domain.GuestIdentity, created bool) {
	if t.unsaved && t.cached != nil {
		return t.cached.Clone(), false
	}

	guestID, err := t.store.Get(ctx, GuestIDKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		t.storeError("get", GuestIDKey, err)
		if t.cached != nil {
			return t.cached.Clone(), false
		}
	}
	guestID = strings.TrimSpace(guestID)

	if guestID != "" {
		if id := t.loadIdentity(ctx, guestID); id != nil {
			return id, false
		}
	}

	fp, hash := t.Fingerprint()
	if guestID == "" {
		guestID = t.newGuestID(hash, now)
		if err := t.store.Set(ctx, GuestIDKey, guestID); err != nil {
			t.storeError("set", GuestIDKey, err)
		}
	}

	return &domain.GuestIdentity{
		GuestID:             guestID,
		Fingerprint:         domain.GuestFingerprint{DeviceFingerprint: fp, Hash: hash},
		FirstVisit:          now,
		VisitCount:          1,
		LastInteractionTime: now,
		CurrentSessionStart: now,
		ReturnVisits:        []domain.SessionRecord{},
	}, true
}

// loadIdentity returns nil when the record is absent or unusable
func (t *Tracker) loadIdentity(ctx context.Context, guestID string) *domain.GuestIdentity {
	raw, err := t.store.Get(ctx, FingerprintKeyPrefix+guestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		t.storeError("get", FingerprintKeyPrefix+guestID, err)
		if t.cached != nil && t.cached.GuestID == guestID {
			return t.cached.Clone()
		}
		return nil
	}

	var id domain.GuestIdentity
	if err := json.Unmarshal([]byte(raw), &id); err != nil || id.VisitCount < 1 {
		t.logger.Warn("discarding malformed guest record",
			zap.String("guest_id", guestID),
			zap.Error(err))
		return nil
	}
	id.GuestID = guestID
	if id.ReturnVisits == nil {
		id.ReturnVisits = []domain.SessionRecord{}
	}
	return &id
}

func (t *Tracker) newGuestID(hash string, now time.Time) string {
	suffix, err := ulid.New(ulid.Timestamp(now), t.entropy)
	if err != nil {
		// entropy exhausted; fall back to the default source
		suffix = ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	}
	return "guest_" + hash + "_" + strings.ToLower(suffix.String())
}

func (t *Tracker) persist(ctx context.Context, id *domain.GuestIdentity) {
	t.cached = id.Clone()

	b, err := json.Marshal(id)
	if err != nil {
		t.unsaved = true
		t.logger.Warn("failed to encode guest record", zap.String("guest_id", id.GuestID), zap.Error(err))
		return
	}
	if err := t.store.Set(ctx, FingerprintKeyPrefix+id.GuestID, string(b)); err != nil {
		t.unsaved = true
		t.storeError("set", FingerprintKeyPrefix+id.GuestID, err)
		return
	}
	t.unsaved = false
}

func (t *Tracker) dispatch(id *domain.GuestIdentity, now time.Time) {
	env := t.inspector.Inspect()
	c := id.Clone()
	t.mirror.Dispatch(domain.GuestVisit{
		GuestID:      c.GuestID,
		Fingerprint:  c.Fingerprint.Hash,
		VisitCount:   c.VisitCount,
		IsReturning:  c.VisitCount > 1,
		ReturnVisits: c.ReturnVisits,
		SessionID:    t.sessionID,
		Page:         t.currentPage,
		URL:          t.currentURL,
		Device:       fingerprint.Describe(env),
		TenantID:     t.tenantID,
		Timestamp:    now,
	})
}

func (t *Tracker) storeError(op, key string, err error) {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	t.logger.Warn("guest store operation failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err))
}

func (t *Tracker) view(id *domain.GuestIdentity, decision domain.Decision, change *domain.VisitChange, now time.Time) *domain.GuestView {
	v := &domain.GuestView{
		Type:                   "guest",
		SchemaVersion:          1,
		GuestIdentity:          *id.Clone(),
		IsReturning:            id.VisitCount > 1,
		CurrentSessionDuration: now.Sub(id.CurrentSessionStart).Milliseconds(),
		SessionID:              t.sessionID,
		Decision:               decision,
		Change:                 change,
	}
	if t.state != nil {
		v.Session = t.state.stats()
	}
	return v
}

// visitState is the open visit of this page instance. It is never persisted
// directly; record() projects it into a SessionRecord when the visit closes.
type visitState struct {
	visitNumber  int
	start        time.Time
	end          time.Time
	clicks       int
	moves        int
	scrolls      int
	interactions []domain.Interaction
	pages        []string
}

func newVisitState(visit int, start time.Time, page string) *visitState {
	s := &visitState{visitNumber: visit, start: start}
	s.addPage(page)
	return s
}

func (s *visitState) addPage(page string) {
	if page != "" && !lo.Contains(s.pages, page) {
		s.pages = append(s.pages, page)
	}
}

func (s *visitState) log(in domain.Interaction, max int) {
	s.interactions = append(s.interactions, in)
	if max > 0 && len(s.interactions) > max {
		s.interactions = s.interactions[len(s.interactions)-max:]
	}
}

func (s *visitState) record(visit int, now time.Time) domain.SessionRecord {
	return domain.SessionRecord{
		VisitNumber:      visit,
		StartTime:        s.start,
		EndTime:          now,
		InteractionCount: s.clicks + s.moves + s.scrolls,
		Detail: domain.SessionDetail{
			ClickCount:   s.clicks,
			MoveCount:    s.moves,
			ScrollCount:  s.scrolls,
			Interactions: append([]domain.Interaction{}, s.interactions...),
			Pages:        append([]string{}, s.pages...),
			DurationMs:   now.Sub(s.start).Milliseconds(),
		},
	}
}

func (s *visitState) stats() domain.SessionStats {
	return domain.SessionStats{
		VisitNumber:      s.visitNumber,
		StartTime:        s.start,
		ClickCount:       s.clicks,
		MoveCount:        s.moves,
		ScrollCount:      s.scrolls,
		InteractionCount: s.clicks + s.moves + s.scrolls,
		Pages:            append([]string{}, s.pages...),
	}
}
