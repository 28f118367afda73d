package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/badalhalder99/vital/internal/domain"
	"github.com/badalhalder99/vital/internal/fingerprint"
	"github.com/badalhalder99/vital/internal/mirror"
	"github.com/badalhalder99/vital/internal/store"
)

var ctx = context.Background()

type recordingMirror struct {
	mu     sync.Mutex
	visits []domain.GuestVisit
}

func (m *recordingMirror) Dispatch(v domain.GuestVisit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visits = append(m.visits, v)
}

func (m *recordingMirror) Close() error { return nil }

func (m *recordingMirror) all() []domain.GuestVisit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.GuestVisit(nil), m.visits...)
}

// flakyStore fails writes or reads on demand
type flakyStore struct {
	*store.MemoryStore
	failSet bool
	failGet bool
}

func (f *flakyStore) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("quota exceeded")
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func (f *flakyStore) Get(ctx context.Context, key string) (string, error) {
	if f.failGet {
		return "", errors.New("storage disabled")
	}
	return f.MemoryStore.Get(ctx, key)
}

// mutableInspector lets tests change the environment after creation
type mutableInspector struct {
	env fingerprint.Environment
}

func (m *mutableInspector) Inspect() fingerprint.Environment { return m.env }

func testEnv() fingerprint.Environment {
	return fingerprint.Environment{
		ScreenWidth:    1440,
		ScreenHeight:   900,
		ColorDepth:     24,
		ViewportWidth:  1440,
		ViewportHeight: 780,
		Timezone:       "Asia/Dhaka",
		Language:       "en-GB",
		Platform:       "MacIntel",
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	}
}

type fixture struct {
	clock  *clock.Mock
	store  store.Store
	mirror *recordingMirror
	insp   *mutableInspector
	logs   *observer.ObservedLogs
	logger *zap.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	core, logs := observer.New(zap.DebugLevel)
	return &fixture{
		clock:  clk,
		store:  store.NewMemoryStore(),
		mirror: &recordingMirror{},
		insp:   &mutableInspector{env: testEnv()},
		logs:   logs,
		logger: zap.New(core),
	}
}

// tracker builds a new page instance over the fixture's shared store
func (f *fixture) tracker(opts ...Option) *Tracker {
	base := []Option{
		WithClock(f.clock),
		WithMirror(f.mirror),
		WithLogger(f.logger),
		WithTenant("7"),
		WithPage("/", "http://localhost/"),
	}
	return NewTracker(f.store, f.insp, append(base, opts...)...)
}

func (f *fixture) stored(t *testing.T) *domain.GuestIdentity {
	t.Helper()
	guestID, err := f.store.Get(ctx, GuestIDKey)
	require.NoError(t, err)
	raw, err := f.store.Get(ctx, FingerprintKeyPrefix+guestID)
	require.NoError(t, err)
	var id domain.GuestIdentity
	require.NoError(t, json.Unmarshal([]byte(raw), &id))
	return &id
}

func assertInvariant(t *testing.T, v *domain.GuestView) {
	t.Helper()
	assert.Equal(t, v.VisitCount, 1+len(v.ReturnVisits), "visitCount must equal 1 + len(returnVisits)")
	var total int64
	for _, r := range v.ReturnVisits {
		total += r.Detail.DurationMs
	}
	assert.Equal(t, total, v.TotalTimeSpent)
}

func click(x, y int) domain.Interaction {
	return domain.Interaction{Type: domain.InteractionClick, Position: domain.Position{X: x, Y: y}}
}

func TestTrackerCreatesGuestOnFirstIdentify(t *testing.T) {
	f := newFixture(t)
	tr := f.tracker()

	v := tr.Identify(ctx, false, false)

	_, hash := tr.Fingerprint()
	assert.True(t, strings.HasPrefix(v.GuestID, "guest_"+hash+"_"), v.GuestID)
	assert.Equal(t, 1, v.VisitCount)
	assert.False(t, v.IsReturning)
	assert.Empty(t, v.ReturnVisits)
	assert.Equal(t, domain.DecisionCreated, v.Decision)
	assert.Equal(t, f.clock.Now(), v.FirstVisit)
	assert.Equal(t, hash, v.Fingerprint.Hash)
	assert.Equal(t, "en", v.Fingerprint.Language)
	require.NotNil(t, v.Change)
	assert.Equal(t, 1, v.Change.StartVisit.Visit)
	assert.Nil(t, v.Change.EndVisit)

	stored := f.stored(t)
	assert.Equal(t, v.GuestID, stored.GuestID)
	assert.Equal(t, 1, stored.VisitCount)

	visits := f.mirror.all()
	require.Len(t, visits, 1)
	assert.False(t, visits[0].IsReturning)
	assert.Equal(t, 1, visits[0].VisitCount)
	assert.Equal(t, hash, visits[0].Fingerprint)
	assert.Equal(t, "7", visits[0].TenantID)
	assert.Equal(t, tr.SessionID(), visits[0].SessionID)
	assert.Equal(t, "Safari", visits[0].Device.Browser)
	assert.Equal(t, 1440, visits[0].Device.ViewportWidth)
}

func TestIdentifyReadOnlyDoesNotWrite(t *testing.T) {
	f := newFixture(t)
	tr := f.tracker()
	created := tr.Identify(ctx, false, false)

	f.clock.Add(10 * time.Minute)
	v := tr.Identify(ctx, false, false)

	assert.Equal(t, domain.DecisionReadOnly, v.Decision)
	assert.Equal(t, 1, v.VisitCount)
	assert.Equal(t, created.LastInteractionTime, f.stored(t).LastInteractionTime)
	assert.Equal(t, (10 * time.Minute).Milliseconds(), v.CurrentSessionDuration)
	assert.Len(t, f.mirror.all(), 1)
}

func TestLookupNeverCreates(t *testing.T) {
	f := newFixture(t)

	v, ok := f.tracker().Lookup(ctx)
	assert.False(t, ok)
	assert.Nil(t, v)

	keys, err := f.store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Empty(t, f.mirror.all())

	t.Run("orphaned id is not revived", func(t *testing.T) {
		require.NoError(t, f.store.Set(ctx, GuestIDKey, "guest_abc_orphan"))
		_, ok := f.tracker().Lookup(ctx)
		assert.False(t, ok)
		_, err := f.store.Get(ctx, FingerprintKeyPrefix+"guest_abc_orphan")
		assert.ErrorIs(t, err, store.ErrNotFound)
		require.NoError(t, f.store.Remove(ctx, GuestIDKey))
	})

	t.Run("returns the stored guest read-only", func(t *testing.T) {
		created := f.tracker().Identify(ctx, true, false)
		f.clock.Add(10 * time.Minute)

		v, ok := f.tracker().Lookup(ctx)
		require.True(t, ok)
		assert.Equal(t, created.GuestID, v.GuestID)
		assert.Equal(t, domain.DecisionReadOnly, v.Decision)
		assert.Equal(t, 1, v.Session.VisitNumber)
		assert.Equal(t, created.LastInteractionTime, f.stored(t).LastInteractionTime)
		assert.Len(t, f.mirror.all(), 1)
	})
}

func TestGuestIDStableUnderFingerprintDrift(t *testing.T) {
	f := newFixture(t)
	first := f.tracker().Identify(ctx, false, false)
	_, before := f.tracker().Fingerprint()

	f.insp.env.ScreenWidth = 2560
	f.insp.env.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0"

	tr := f.tracker()
	_, after := tr.Fingerprint()
	require.NotEqual(t, before, after)

	v := tr.Identify(ctx, true, false)
	assert.Equal(t, first.GuestID, v.GuestID)
	assert.Equal(t, before, v.Fingerprint.Hash, "stored fingerprint is the first-seen snapshot")
}

func TestClicksWithinOneSecondStayInVisit(t *testing.T) {
	f := newFixture(t)
	tr := f.tracker()
	start := tr.Identify(ctx, false, false).VisitCount

	var v *domain.GuestView
	for i := 0; i < 10; i++ {
		f.clock.Add(100 * time.Millisecond)
		v = tr.RecordInteraction(ctx, click(i, i))
	}

	assert.Equal(t, start, v.VisitCount)
	assert.Equal(t, 10, v.Session.ClickCount)
	assert.Equal(t, 10, v.Session.InteractionCount)
	assert.Equal(t, domain.DecisionContinued, v.Decision)
	assert.Equal(t, f.clock.Now(), f.stored(t).LastInteractionTime)
}

func TestPageVisitsTwoSecondsApart(t *testing.T) {
	f := newFixture(t)
	tr := f.tracker()
	base := tr.Identify(ctx, false, false).VisitCount

	f.clock.Add(2 * time.Second)
	tr.RecordInteraction(ctx, click(1, 1))
	v1, ok := tr.RecordPageVisit(ctx, "/pricing", "http://localhost/pricing")
	require.True(t, ok)

	f.clock.Add(2 * time.Second)
	v2, ok := tr.RecordPageVisit(ctx, "/docs", "http://localhost/docs")
	require.True(t, ok)

	assert.Equal(t, base+1, v1.VisitCount)
	assert.Equal(t, base+2, v2.VisitCount)
	assert.True(t, v2.IsReturning)
	require.Len(t, v2.ReturnVisits, 2)

	firstVisit := v2.ReturnVisits[0]
	assert.Equal(t, 1, firstVisit.VisitNumber)
	assert.Equal(t, 1, firstVisit.Detail.ClickCount)
	assert.Equal(t, []string{"/"}, firstVisit.Detail.Pages)
	assert.Equal(t, int64(2000), firstVisit.Detail.DurationMs)

	secondVisit := v2.ReturnVisits[1]
	assert.Equal(t, 2, secondVisit.VisitNumber)
	assert.Equal(t, []string{"/pricing"}, secondVisit.Detail.Pages)
	assert.Equal(t, []string{"/docs"}, v2.Session.Pages)
	assertInvariant(t, v2)

	require.NotNil(t, v2.Change)
	assert.Equal(t, 2, v2.Change.EndVisit.Visit)
	assert.Equal(t, 3, v2.Change.StartVisit.Visit)
	assert.Equal(t, domain.DecisionPageVisit, v2.Change.StartVisit.Reason)
	assert.Equal(t, "RETURNING_GUEST", v2.Change.StartVisit.Alert)

	visits := f.mirror.all()
	require.Len(t, visits, 3)
	assert.Equal(t, "/docs", visits[2].Page)
	assert.Equal(t, "http://localhost/docs", visits[2].URL)
	assert.True(t, visits[2].IsReturning)
	assert.Len(t, visits[2].ReturnVisits, 2)
}

func TestPageVisitDebounce(t *testing.T) {
	f := newFixture(t)
	tr := f.tracker()
	tr.Identify(ctx, false, false)
	f.clock.Add(time.Minute)

	v1, ok := tr.RecordPageVisit(ctx, "/a", "")
	require.True(t, ok)

	f.clock.Add(1500 * time.Millisecond)
	v2, ok := tr.RecordPageVisit(ctx, "/a", "")
	assert.False(t, ok)

	assert.Equal(t, 2, v1.VisitCount)
	assert.Equal(t, 2, v2.VisitCount)
	assert.Nil(t, v2.Change)
	assert.Len(t, f.mirror.all(), 2)
}

func TestFirstPageVisitOfNewInstanceStartsVisit(t *testing.T) {
	f := newFixture(t)
	f.tracker().Identify(ctx, false, false)

	f.clock.Add(30 * time.Second)
	v, ok := f.tracker().RecordPageVisit(ctx, "/", "")
	require.True(t, ok)

	assert.Equal(t, 2, v.VisitCount)
	require.Len(t, v.ReturnVisits, 1)
	// the open visit of the previous page load started at creation
	assert.Equal(t, int64(30000), v.ReturnVisits[0].Detail.DurationMs)
	assertInvariant(t, v)
}

func TestInactivityThreshold(t *testing.T) {
	tests := []struct {
		name     string
		gap      time.Duration
		expected int
		decision domain.Decision
	}{
		{"just over five minutes starts a visit", 5*time.Minute + time.Second, 2, domain.DecisionInactivity},
		{"exactly five minutes does not", 5 * time.Minute, 1, domain.DecisionContinued},
		{"just under five minutes does not", 4*time.Minute + 59*time.Second, 1, domain.DecisionContinued},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tr := f.tracker()
			tr.RecordInteraction(ctx, click(0, 0))

			f.clock.Add(tt.gap)
			v := tr.RecordInteraction(ctx, click(1, 1))

			assert.Equal(t, tt.expected, v.VisitCount)
			assert.Equal(t, tt.decision, v.Decision)
			assertInvariant(t, v)
		})
	}
}

func TestInactivityAcrossPageInstances(t *testing.T) {
	f := newFixture(t)
	f.tracker().RecordInteraction(ctx, click(0, 0))

	f.clock.Add(6 * time.Minute)
	v := f.tracker().RecordInteraction(ctx, click(1, 1))

	assert.Equal(t, 2, v.VisitCount)
	assert.Equal(t, 1, v.Session.ClickCount, "the click lands in the new visit")
	assertInvariant(t, v)
}

func TestTransitionGuardSuppressesRapidBoundaries(t *testing.T) {
	t.Run("inactivity right after a visit start", func(t *testing.T) {
		f := newFixture(t)
		th := DefaultThresholds()
		th.InactivityTimeout = time.Second
		tr := f.tracker(WithThresholds(th))
		tr.Identify(ctx, false, false)

		f.clock.Add(1500 * time.Millisecond)
		v := tr.RecordInteraction(ctx, click(0, 0))
		assert.Equal(t, domain.DecisionGuardSuppressed, v.Decision)
		assert.Equal(t, 1, v.VisitCount)

		f.clock.Add(1500 * time.Millisecond)
		v = tr.RecordInteraction(ctx, click(0, 0))
		assert.Equal(t, domain.DecisionInactivity, v.Decision)
		assert.Equal(t, 2, v.VisitCount)
	})

	t.Run("page visits without debounce", func(t *testing.T) {
		f := newFixture(t)
		th := DefaultThresholds()
		th.PageVisitDebounce = 0
		tr := f.tracker(WithThresholds(th))
		tr.Identify(ctx, false, false)
		f.clock.Add(time.Minute)

		v1, ok := tr.RecordPageVisit(ctx, "/a", "")
		require.True(t, ok)
		f.clock.Add(time.Second)
		v2, ok := tr.RecordPageVisit(ctx, "/b", "")
		require.True(t, ok)

		assert.Equal(t, 2, v1.VisitCount)
		assert.Equal(t, 2, v2.VisitCount)
		assert.Equal(t, domain.DecisionGuardSuppressed, v2.Decision)
		assert.Equal(t, []string{"/a", "/b"}, v2.Session.Pages)
		assertInvariant(t, v2)
	})
}

func TestMoveSampling(t *testing.T) {
	f := newFixture(t)
	tr := f.tracker()

	for i := 0; i < 25; i++ {
		tr.RecordInteraction(ctx, domain.Interaction{Type: domain.InteractionMove, Position: domain.Position{X: i}})
	}
	tr.RecordInteraction(ctx, domain.Interaction{Type: domain.InteractionScroll})

	rec := tr.CloseSession()
	assert.Equal(t, 25, rec.Detail.MoveCount)
	assert.Equal(t, 1, rec.Detail.ScrollCount)
	assert.Equal(t, 26, rec.InteractionCount)

	require.Len(t, rec.Detail.Interactions, 4)
	assert.Equal(t, 0, rec.Detail.Interactions[0].Position.X)
	assert.Equal(t, 10, rec.Detail.Interactions[1].Position.X)
	assert.Equal(t, 20, rec.Detail.Interactions[2].Position.X)
	assert.Equal(t, domain.InteractionScroll, rec.Detail.Interactions[3].Type)
}

func TestInteractionLogIsCapped(t *testing.T) {
	f := newFixture(t)
	th := DefaultThresholds()
	th.MaxLogEntries = 5
	tr := f.tracker(WithThresholds(th))

	for i := 0; i < 8; i++ {
		tr.RecordInteraction(ctx, click(i, 0))
	}

	rec := tr.CloseSession()
	assert.Equal(t, 8, rec.Detail.ClickCount)
	require.Len(t, rec.Detail.Interactions, 5)
	assert.Equal(t, 3, rec.Detail.Interactions[0].Position.X, "oldest entries are dropped first")
	assert.Equal(t, 7, rec.Detail.Interactions[4].Position.X)
	assert.Equal(t, "/", rec.Detail.Interactions[0].Page)
}

func TestUnknownInteractionIsIgnored(t *testing.T) {
	f := newFixture(t)
	tr := f.tracker()

	v := tr.RecordInteraction(ctx, domain.Interaction{Type: "hover"})
	assert.Equal(t, 0, v.Session.InteractionCount)
}

func TestCloseSessionDoesNotAppend(t *testing.T) {
	f := newFixture(t)
	tr := f.tracker()
	tr.RecordInteraction(ctx, click(1, 2))
	f.clock.Add(45 * time.Second)

	rec := tr.CloseSession()
	assert.Equal(t, 1, rec.VisitNumber)
	assert.Equal(t, f.clock.Now(), rec.EndTime)
	assert.Equal(t, int64(45000), rec.Detail.DurationMs)
	assert.Equal(t, 1, rec.Detail.ClickCount)

	stored := f.stored(t)
	assert.Equal(t, 1, stored.VisitCount)
	assert.Empty(t, stored.ReturnVisits)
	assert.Zero(t, stored.TotalTimeSpent)
}

func TestCloseSessionBeforeIdentify(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, domain.SessionRecord{}, f.tracker().CloseSession())
}

func TestResetClearsAllState(t *testing.T) {
	f := newFixture(t)
	tr := f.tracker()
	before := tr.Identify(ctx, false, false)
	f.clock.Add(3 * time.Second)
	tr.RecordPageVisit(ctx, "/x", "")
	require.NoError(t, f.store.Set(ctx, "unrelated", "keep"))

	tr.Reset(ctx)

	keys, err := f.store.Keys(ctx, FingerprintKeyPrefix)
	require.NoError(t, err)
	assert.Empty(t, keys)
	_, err = f.store.Get(ctx, GuestIDKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
	v, err := f.store.Get(ctx, "unrelated")
	require.NoError(t, err)
	assert.Equal(t, "keep", v)
	assert.Equal(t, 0, tr.CurrentVisit())

	after := tr.Identify(ctx, false, false)
	assert.Equal(t, 1, after.VisitCount)
	assert.Empty(t, after.ReturnVisits)
	assert.NotEqual(t, before.GuestID, after.GuestID)
	assert.NotEqual(t, before.SessionID, after.SessionID)

	// debounce was cleared too
	_, ok := tr.RecordPageVisit(ctx, "/y", "")
	assert.True(t, ok)
}

func TestMalformedRecordYieldsFreshIdentity(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Set(ctx, GuestIDKey, "guest_abc_persisted"))
	require.NoError(t, f.store.Set(ctx, FingerprintKeyPrefix+"guest_abc_persisted", "{not json"))

	v := f.tracker().Identify(ctx, true, false)

	assert.Equal(t, "guest_abc_persisted", v.GuestID)
	assert.Equal(t, 1, v.VisitCount)
	assert.Equal(t, domain.DecisionCreated, v.Decision)
	assert.Equal(t, 1, f.logs.FilterMessage("discarding malformed guest record").Len())
	assert.Equal(t, 1, f.stored(t).VisitCount)
}

func TestMissingRecordKeepsPersistedID(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Set(ctx, GuestIDKey, "guest_abc_orphan"))

	v := f.tracker().Identify(ctx, false, false)
	assert.Equal(t, "guest_abc_orphan", v.GuestID)
	assert.Equal(t, 1, v.VisitCount)
}

func TestStoreWriteFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	fs := &flakyStore{MemoryStore: store.NewMemoryStore()}
	f.store = fs
	tr := f.tracker()
	tr.Identify(ctx, false, false)

	fs.failSet = true
	f.clock.Add(3 * time.Second)
	v, ok := tr.RecordPageVisit(ctx, "/next", "")
	require.True(t, ok)
	assert.Equal(t, 2, v.VisitCount, "call returns the in-memory increment")
	assert.GreaterOrEqual(t, f.logs.FilterMessage("guest store operation failed").Len(), 1)

	// the same instance keeps its in-memory record
	f.clock.Add(3 * time.Second)
	v, _ = tr.RecordPageVisit(ctx, "/again", "")
	assert.Equal(t, 3, v.VisitCount)
	assertInvariant(t, v)

	// a new page load only sees what reached the store
	fs.failSet = false
	assert.Equal(t, 1, f.tracker().Identify(ctx, false, false).VisitCount)
}

func TestStoreReadFailureTreatedAsAbsent(t *testing.T) {
	f := newFixture(t)
	fs := &flakyStore{MemoryStore: store.NewMemoryStore(), failGet: true}
	f.store = fs

	v := f.tracker().Identify(ctx, false, false)
	assert.Equal(t, 1, v.VisitCount)
	assert.NotEmpty(t, v.GuestID)
	assert.GreaterOrEqual(t, f.logs.FilterMessage("guest store operation failed").Len(), 1)
}

func TestMirrorFailureDoesNotAffectCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newFixture(t)
	client := mirror.New(srv.URL, mirror.WithLogger(f.logger))
	tr := NewTracker(f.store, f.insp, WithClock(f.clock), WithMirror(client), WithLogger(f.logger))

	tr.Identify(ctx, false, false)
	f.clock.Add(3 * time.Second)
	v, _ := tr.RecordPageVisit(ctx, "/p", "")
	require.NoError(t, client.Close())

	assert.Equal(t, 2, v.VisitCount)
	assert.Equal(t, 2, f.stored(t).VisitCount)
	assert.Equal(t, 2, f.logs.FilterMessage("guest visit mirror write failed").Len())
}

func TestInvariantHoldsAcrossMixedEvents(t *testing.T) {
	f := newFixture(t)
	tr := f.tracker()

	steps := []struct {
		advance time.Duration
		event   func() *domain.GuestView
	}{
		{0, func() *domain.GuestView { return tr.Identify(ctx, false, false) }},
		{500 * time.Millisecond, func() *domain.GuestView { return tr.RecordInteraction(ctx, click(1, 1)) }},
		{time.Second, func() *domain.GuestView { v, _ := tr.RecordPageVisit(ctx, "/a", ""); return v }},
		{3 * time.Second, func() *domain.GuestView { v, _ := tr.RecordPageVisit(ctx, "/b", ""); return v }},
		{time.Second, func() *domain.GuestView { return tr.RecordInteraction(ctx, click(2, 2)) }},
		{10 * time.Minute, func() *domain.GuestView { return tr.RecordInteraction(ctx, click(3, 3)) }},
		{time.Second, func() *domain.GuestView { v, _ := tr.RecordPageVisit(ctx, "/c", ""); return v }},
		{5 * time.Second, func() *domain.GuestView { v, _ := tr.RecordPageVisit(ctx, "/d", ""); return v }},
	}

	for _, s := range steps {
		f.clock.Add(s.advance)
		v := s.event()
		assertInvariant(t, v)
		stored := f.stored(t)
		assert.Equal(t, stored.VisitCount, 1+len(stored.ReturnVisits))
	}
	assert.Equal(t, 4, tr.CurrentVisit())
}
