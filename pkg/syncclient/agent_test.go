package syncclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	mu         sync.Mutex
	remotePush bool
	pushToken  string
	alerts     []string
}

func (p *fakePlatform) RequestPermission(ctx context.Context) (bool, error) { return true, nil }

func (p *fakePlatform) SupportsRemotePush() bool { return p.remotePush }

func (p *fakePlatform) DevicePushToken(ctx context.Context) (string, error) {
	return p.pushToken, nil
}

func (p *fakePlatform) PresentAlert(title, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, body)
}

func (p *fakePlatform) alertCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alerts)
}

// fakeBackend is a minimal in-memory stand-in for the notification REST
// surface.
type fakeBackend struct {
	unread           int64
	polls            int64
	registeredTokens chan string
	notifications    []Notification
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{registeredTokens: make(chan string, 1)}
}

func (b *fakeBackend) server() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/notifications/unread-count", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&b.polls, 1)
		json.NewEncoder(w).Encode(map[string]int64{"count": atomic.LoadInt64(&b.unread)})
	})
	mux.HandleFunc("/api/v1/notifications/push-token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if r.Method == http.MethodPost {
			b.registeredTokens <- body["token"]
		}
		json.NewEncoder(w).Encode(map[string]bool{"registered": true})
	})
	mux.HandleFunc("/api/v1/notifications/mark-read", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int64{"affected": 1})
	})
	mux.HandleFunc("/api/v1/notifications/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v1/notifications", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ListResponse{
			Notifications: b.notifications,
			Total:         int64(len(b.notifications)),
			Unread:        atomic.LoadInt64(&b.unread),
			Page:          1,
		})
	})
	return httptest.NewServer(mux)
}

func (b *fakeBackend) pollCount() int64 { return atomic.LoadInt64(&b.polls) }

// startAgent brings an agent to Idle with the first (baseline) poll done.
// A one-hour interval keeps the ticker from firing during the test; every
// later poll is driven explicitly through HandleAppForeground.
func startAgent(t *testing.T, backend *fakeBackend, platform *fakePlatform) *Agent {
	t.Helper()
	server := backend.server()
	t.Cleanup(server.Close)

	agent := NewAgent(NewClient(server.URL, server.Client()), platform, time.Hour)
	require.NoError(t, agent.Start(context.Background(), "test-jwt"))

	require.Eventually(t, func() bool {
		return backend.pollCount() >= 1 && agent.State() == StateIdle
	}, 2*time.Second, 10*time.Millisecond)
	return agent
}

func TestFirstPollSeedsBaselineWithoutAlert(t *testing.T) {
	backend := newFakeBackend()
	backend.unread = 5 // pre-existing unread items
	platform := &fakePlatform{}

	agent := startAgent(t, backend, platform)

	assert.Equal(t, int64(5), agent.Unread())
	assert.Zero(t, platform.alertCount(), "baseline poll must never raise an alert")
}

func TestPollAlertsOnlyOnIncrease(t *testing.T) {
	backend := newFakeBackend()
	backend.unread = 5
	platform := &fakePlatform{}

	agent := startAgent(t, backend, platform)

	// Unchanged count: no alert.
	agent.HandleAppForeground(context.Background())
	assert.Zero(t, platform.alertCount())

	// Count rose by 3: one alert describing the delta.
	atomic.StoreInt64(&backend.unread, 8)
	agent.HandleAppForeground(context.Background())
	require.Equal(t, 1, platform.alertCount())
	assert.Contains(t, platform.alerts[0], "3")
	assert.Equal(t, int64(8), agent.Unread())

	// Count dropped (read on another device): no alert, state updated.
	atomic.StoreInt64(&backend.unread, 2)
	agent.HandleAppForeground(context.Background())
	assert.Equal(t, 1, platform.alertCount())
	assert.Equal(t, int64(2), agent.Unread())
}

func TestStartRegistersDeviceToken(t *testing.T) {
	backend := newFakeBackend()
	platform := &fakePlatform{remotePush: true, pushToken: "ExponentPushToken[test-device]"}

	startAgent(t, backend, platform)

	select {
	case token := <-backend.registeredTokens:
		assert.Equal(t, "ExponentPushToken[test-device]", token)
	case <-time.After(2 * time.Second):
		t.Fatal("device token was never registered")
	}
}

func TestStartWithoutRemotePushSkipsTokenRegistration(t *testing.T) {
	backend := newFakeBackend()
	platform := &fakePlatform{remotePush: false}

	startAgent(t, backend, platform)

	select {
	case token := <-backend.registeredTokens:
		t.Fatalf("unexpected token registration: %s", token)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandlePushReceivedIncrementsOptimistically(t *testing.T) {
	backend := newFakeBackend()
	backend.unread = 2
	platform := &fakePlatform{}

	agent := startAgent(t, backend, platform)

	agent.HandlePushReceived()
	assert.Equal(t, int64(3), agent.Unread())
}

func TestOptimisticMutationsFloorAtZero(t *testing.T) {
	backend := newFakeBackend()
	backend.notifications = []Notification{
		{ID: "n1", IsRead: false},
		{ID: "n2", IsRead: true},
	}
	platform := &fakePlatform{}

	agent := startAgent(t, backend, platform)
	agent.Refresh(context.Background())

	require.Eventually(t, func() bool {
		return len(agent.Notifications()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Marking an already-read notification is a no-op.
	agent.MarkRead(context.Background(), "n2")
	assert.Equal(t, int64(0), agent.Unread())

	// Marking the same unread notification twice only counts once.
	agent.MarkRead(context.Background(), "n1")
	agent.MarkRead(context.Background(), "n1")
	assert.Equal(t, int64(0), agent.Unread())

	agent.MarkAllRead(context.Background())
	assert.Equal(t, int64(0), agent.Unread())
}

func TestRemoveNotificationDropsLocally(t *testing.T) {
	backend := newFakeBackend()
	backend.unread = 1
	backend.notifications = []Notification{
		{ID: "n1", IsRead: false},
		{ID: "n2", IsRead: true},
	}
	platform := &fakePlatform{}

	agent := startAgent(t, backend, platform)
	agent.Refresh(context.Background())

	require.Eventually(t, func() bool {
		return len(agent.Notifications()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	agent.RemoveNotification(context.Background(), "n1")
	remaining := agent.Notifications()
	require.Len(t, remaining, 1)
	assert.Equal(t, "n2", remaining[0].ID)
	assert.Equal(t, int64(0), agent.Unread())
}

func TestLogoutClearsStateAndIgnoresLatePolls(t *testing.T) {
	backend := newFakeBackend()
	backend.unread = 4
	platform := &fakePlatform{}

	agent := startAgent(t, backend, platform)
	staleSession := agent.session

	agent.Logout()
	assert.Equal(t, StateUnregistered, agent.State())
	assert.Equal(t, int64(0), agent.Unread())
	assert.Empty(t, agent.Notifications())

	// A poll that was in flight at logout resolves now and must be ignored.
	agent.pollOnce(context.Background(), staleSession)
	assert.Equal(t, StateUnregistered, agent.State())
	assert.Equal(t, int64(0), agent.Unread())
}

// Logout may run while polls and refreshes are still in flight; teardown
// only ignores their results, it never force-cancels them. The auth token
// swap must not race with concurrent request building.
func TestLogoutConcurrentWithInFlightPolls(t *testing.T) {
	backend := newFakeBackend()
	backend.unread = 3
	platform := &fakePlatform{}

	agent := startAgent(t, backend, platform)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			agent.HandleAppForeground(context.Background())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			agent.Refresh(context.Background())
		}
	}()

	time.Sleep(5 * time.Millisecond)
	agent.Logout()
	wg.Wait()

	// Whatever resolved after logout was ignored.
	assert.Equal(t, StateUnregistered, agent.State())
	assert.Equal(t, int64(0), agent.Unread())
	assert.Empty(t, agent.Notifications())
}

func TestRestartReseedsBaseline(t *testing.T) {
	backend := newFakeBackend()
	backend.unread = 4
	platform := &fakePlatform{}

	agent := startAgent(t, backend, platform)
	agent.Logout()

	atomic.StoreInt64(&backend.unread, 9)
	polls := backend.pollCount()
	require.NoError(t, agent.Start(context.Background(), "test-jwt"))
	require.Eventually(t, func() bool {
		return backend.pollCount() > polls && agent.State() == StateIdle
	}, 2*time.Second, 10*time.Millisecond)

	// The count is higher than before logout, but the first poll of the
	// new session only seeds the baseline.
	assert.Equal(t, int64(9), agent.Unread())
	assert.Zero(t, platform.alertCount())
}
