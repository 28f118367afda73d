package mirror

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/badalhalder99/vital/internal/domain"
)

func sampleVisit() domain.GuestVisit {
	return domain.GuestVisit{
		GuestID:     "guest_abc_01h",
		Fingerprint: "abc",
		VisitCount:  2,
		IsReturning: true,
		SessionID:   "session-1",
		Page:        "/pricing",
		URL:         "http://localhost/pricing",
		Device:      domain.DeviceInfo{Browser: "Chrome", DeviceType: "desktop"},
		TenantID:    "7",
	}
}

func TestClientDispatchPostsVisit(t *testing.T) {
	var mu sync.Mutex
	var got map[string]interface{}
	var path, contentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		path = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		_ = json.Unmarshal(b, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	c.Dispatch(sampleVisit())
	require.NoError(t, c.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, TrackGuestVisitPath, path)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "guest_abc_01h", got["guestId"])
	assert.Equal(t, "abc", got["fingerprint"])
	assert.EqualValues(t, 2, got["visitCount"])
	assert.Equal(t, true, got["isReturning"])
	assert.Equal(t, "/pricing", got["page"])
	assert.Equal(t, "7", got["tenantId"])
}

func TestClientDispatchLogsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	c := New(srv.URL, WithLogger(zap.New(core)))
	c.Dispatch(sampleVisit())
	require.NoError(t, c.Close())

	entries := logs.FilterMessage("guest visit mirror write failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "guest_abc_01h", entries[0].ContextMap()["guest_id"])
	assert.Contains(t, entries[0].ContextMap()["error"], "500")
}

func TestClientDispatchDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()

	c := New(srv.URL)
	start := time.Now()
	c.Dispatch(sampleVisit())
	assert.Less(t, time.Since(start), time.Second)

	close(release)
	require.NoError(t, c.Close())
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL, WithTimeout(50*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Send(ctx, sampleVisit())
	assert.Error(t, err)
}

func TestClientBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL)
	for i := 0; i < 5; i++ {
		require.Error(t, c.Send(context.Background(), sampleVisit()))
	}

	err := c.Send(context.Background(), sampleVisit())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, calls, "open breaker must not reach the collector")
}

func TestClientDropsAfterClose(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := New("http://127.0.0.1:1", WithLogger(zap.New(core)))
	require.NoError(t, c.Close())

	c.Dispatch(sampleVisit())
	assert.Equal(t, 1, logs.FilterMessage("mirror closed, dropping guest visit").Len())
}

func TestNop(t *testing.T) {
	var m Mirror = Nop{}
	m.Dispatch(sampleVisit())
	assert.NoError(t, m.Close())
}
