package syncclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// State is the agent's lifecycle state.
type State string

const (
	StateUnregistered State = "unregistered"
	StateRegistering  State = "registering"
	StateIdle         State = "idle"
	StatePolling      State = "polling"
)

// DefaultPollInterval is the fixed interval between unread-count polls.
const DefaultPollInterval = 30 * time.Second

// Agent reconciles a device's local notification state against the backend.
// Three asynchronous sources feed it: the periodic poll, foreground push
// deliveries and the user's own actions. All local updates are commutative
// and idempotent-safe; the unread counter is floored at zero.
type Agent struct {
	client   *Client
	platform Platform
	interval time.Duration

	mu            sync.Mutex
	state         State
	seeded        bool
	lastCount     int64
	unread        int64
	notifications []Notification
	// session guards against stale responses: a poll resolving after
	// logout carries an old session number and is ignored.
	session    uint64
	cancelPoll context.CancelFunc
}

// NewAgent creates an Agent. A zero interval falls back to
// DefaultPollInterval.
func NewAgent(client *Client, platform Platform, interval time.Duration) *Agent {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Agent{
		client:   client,
		platform: platform,
		interval: interval,
		state:    StateUnregistered,
	}
}

// State returns the agent's current lifecycle state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Unread returns the local unread counter.
func (a *Agent) Unread() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unread
}

// Notifications returns the locally cached notification list.
func (a *Agent) Notifications() []Notification {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Notification, len(a.notifications))
	copy(out, a.notifications)
	return out
}

// Start registers the device after a successful authentication: request
// local-notification permission, register the push token when the runtime
// supports remote push, then begin the fixed-interval poll loop and an
// immediate full refresh.
func (a *Agent) Start(ctx context.Context, authToken string) error {
	a.mu.Lock()
	if a.state != StateUnregistered {
		a.mu.Unlock()
		return errors.New("agent already started")
	}
	a.state = StateRegistering
	a.mu.Unlock()

	a.client.SetAuthToken(authToken)

	if _, err := a.platform.RequestPermission(ctx); err != nil {
		log.Printf("syncclient: permission request failed: %v", err)
	}

	if a.platform.SupportsRemotePush() {
		token, err := a.platform.DevicePushToken(ctx)
		if err != nil {
			log.Printf("syncclient: failed to acquire device push token: %v", err)
		} else if err := a.client.RegisterPushToken(ctx, token); err != nil {
			log.Printf("syncclient: failed to register push token: %v", err)
		}
	}

	pollCtx, cancel := context.WithCancel(context.Background())

	a.mu.Lock()
	a.state = StateIdle
	a.seeded = false
	a.session++
	session := a.session
	a.cancelPoll = cancel
	a.mu.Unlock()

	go a.pollLoop(pollCtx, session)
	go a.Refresh(ctx)

	return nil
}

func (a *Agent) pollLoop(ctx context.Context, session uint64) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	// Seed the baseline right away so the first interval tick already has
	// a previous count to compare against.
	a.pollOnce(ctx, session)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.pollOnce(ctx, session)
		}
	}
}

// pollOnce fetches the authoritative unread count and reconciles local
// state. The first poll after (re)registration only seeds the baseline; every
// subsequent poll raises a local alert when the count rose since the previous
// poll, then updates local state unconditionally.
func (a *Agent) pollOnce(ctx context.Context, session uint64) {
	a.mu.Lock()
	if a.session != session || a.state == StateUnregistered {
		a.mu.Unlock()
		return
	}
	if a.state == StateIdle {
		a.state = StatePolling
	}
	a.mu.Unlock()

	count, err := a.client.UnreadCount(ctx)

	a.mu.Lock()
	// Stale-response guard: the agent may have logged out while the poll
	// was in flight.
	if a.session != session || a.state == StateUnregistered {
		a.mu.Unlock()
		return
	}
	if a.state == StatePolling {
		a.state = StateIdle
	}
	if err != nil {
		a.mu.Unlock()
		log.Printf("syncclient: poll failed: %v", err)
		return
	}

	var alertDelta int64
	if !a.seeded {
		a.seeded = true
	} else if count > a.lastCount {
		alertDelta = count - a.lastCount
	}
	a.lastCount = count
	a.unread = count
	a.mu.Unlock()

	if alertDelta > 0 {
		a.platform.PresentAlert("FruitSense", fmt.Sprintf("You have %d new notifications", alertDelta))
	}
}

// Refresh fetches the first page of notifications and replaces the local
// cache. Used at startup, on tap and whenever cached state cannot be trusted
// because another device may have mutated it.
func (a *Agent) Refresh(ctx context.Context) {
	a.mu.Lock()
	if a.state == StateUnregistered {
		a.mu.Unlock()
		return
	}
	session := a.session
	a.mu.Unlock()

	resp, err := a.client.ListNotifications(ctx, 1, 20)
	if err != nil {
		log.Printf("syncclient: refresh failed: %v", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != session || a.state == StateUnregistered {
		return
	}
	a.notifications = resp.Notifications
	a.unread = resp.Unread
}

// HandlePushReceived is the foreground delivery listener: a push arriving
// while the app is active optimistically bumps the local unread counter
// without waiting for the next poll.
func (a *Agent) HandlePushReceived() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateUnregistered {
		return
	}
	a.unread++
}

// HandleNotificationTap triggers a full list refresh rather than trusting
// cached state.
func (a *Agent) HandleNotificationTap(ctx context.Context) {
	a.Refresh(ctx)
}

// HandleAppForeground forces one immediate out-of-cycle poll.
func (a *Agent) HandleAppForeground(ctx context.Context) {
	a.mu.Lock()
	session := a.session
	a.mu.Unlock()
	a.pollOnce(ctx, session)
}

// MarkRead optimistically marks the given notifications read locally and
// issues the matching server call. No rollback happens if the server call
// fails; the next poll or refresh corrects the window.
func (a *Agent) MarkRead(ctx context.Context, ids ...string) {
	a.mu.Lock()
	for _, id := range ids {
		for i := range a.notifications {
			if a.notifications[i].ID == id && !a.notifications[i].IsRead {
				a.notifications[i].IsRead = true
				if a.unread > 0 {
					a.unread--
				}
			}
		}
	}
	a.mu.Unlock()

	if _, err := a.client.MarkRead(ctx, ids); err != nil {
		log.Printf("syncclient: mark-read failed: %v", err)
	}
}

// MarkAllRead optimistically zeroes the local unread state and issues the
// mark-all server call.
func (a *Agent) MarkAllRead(ctx context.Context) {
	a.mu.Lock()
	for i := range a.notifications {
		a.notifications[i].IsRead = true
	}
	a.unread = 0
	a.mu.Unlock()

	if _, err := a.client.MarkRead(ctx, nil); err != nil {
		log.Printf("syncclient: mark-all-read failed: %v", err)
	}
}

// RemoveNotification optimistically drops the notification locally and
// issues the delete call.
func (a *Agent) RemoveNotification(ctx context.Context, id string) {
	a.mu.Lock()
	kept := a.notifications[:0]
	for _, n := range a.notifications {
		if n.ID == id {
			if !n.IsRead && a.unread > 0 {
				a.unread--
			}
			continue
		}
		kept = append(kept, n)
	}
	a.notifications = kept
	a.mu.Unlock()

	if err := a.client.DeleteNotification(ctx, id); err != nil {
		log.Printf("syncclient: delete failed: %v", err)
	}
}

// Logout stops the poll timer and clears local notification state. The
// device token stays registered; only an explicit UnregisterPushToken call
// clears it. In-flight polls are not force-cancelled, only ignored through
// the session guard.
func (a *Agent) Logout() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelPoll != nil {
		a.cancelPoll()
		a.cancelPoll = nil
	}
	a.session++
	a.state = StateUnregistered
	a.seeded = false
	a.lastCount = 0
	a.unread = 0
	a.notifications = nil
	a.client.SetAuthToken("")
}
