// Package fanout distributes one forum event into per-recipient notification
// records and eligible push messages.
package fanout

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fruitsense/backend/internal/models"
	"github.com/fruitsense/backend/internal/push"
	"github.com/fruitsense/backend/internal/repositories"
)

// Audience describes who an event addresses: every active account, or the
// single author of the resource the event touched.
type Audience struct {
	broadcast bool
	userID    uint
}

// BroadcastAudience addresses all active accounts.
func BroadcastAudience() Audience {
	return Audience{broadcast: true}
}

// UserAudience addresses a single account.
func UserAudience(userID uint) Audience {
	return Audience{userID: userID}
}

// Event is one domain event handed to the dispatcher by a collaborator whose
// own write has already committed and whose response has been sent.
type Event struct {
	ActorID    uint
	Type       models.NotificationType
	Audience   Audience
	Title      string
	Body       string
	Payload    models.Payload
	SettingKey repositories.SettingKey
}

// Dispatcher computes recipients, persists notification records and feeds
// eligible messages to the push sender.
type Dispatcher struct {
	notificationRepo repositories.NotificationRepository
	userRepo         repositories.UserRepository
	tokenRepo        repositories.TokenRepository
	sender           push.Sender
	timeout          time.Duration
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(
	notificationRepo repositories.NotificationRepository,
	userRepo repositories.UserRepository,
	tokenRepo repositories.TokenRepository,
	sender push.Sender,
) *Dispatcher {
	return &Dispatcher{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		tokenRepo:        tokenRepo,
		sender:           sender,
		timeout:          30 * time.Second,
	}
}

// DispatchDetached runs Dispatch on a fresh background context in its own
// goroutine. The triggering request has already responded, so any error here
// is logged and swallowed, never retried and never surfaced upstream.
func (d *Dispatcher) DispatchDetached(event Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.Dispatch(ctx, event); err != nil {
			log.Printf("fanout: dispatch of %s event failed: %v", event.Type, err)
		}
	}()
}

// Dispatch performs the fan-out synchronously: resolve the recipient set,
// remove the actor, bulk-insert the notification records, then expand to one
// push message per eligible token and hand the list to the sender.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	recipients, err := d.resolveRecipients(event)
	if err != nil {
		return fmt.Errorf("failed to resolve recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil
	}

	notifications := make([]*models.Notification, 0, len(recipients))
	actorID := event.ActorID
	for _, recipient := range recipients {
		n := &models.Notification{
			RecipientID: recipient,
			Type:        event.Type,
			Title:       event.Title,
			Body:        event.Body,
			Data:        event.Payload,
		}
		if event.ActorID != 0 {
			n.ActorID = &actorID
		}
		notifications = append(notifications, n)
	}

	inserted, err := d.notificationRepo.BulkAppend(ctx, notifications)
	if err != nil {
		return fmt.Errorf("failed to store notifications: %w", err)
	}
	log.Printf("fanout: stored %d %s notifications", inserted, event.Type)

	// Push eligibility is independent of the stored rows: active account,
	// at least one token, matching settings flag enabled.
	tokens, err := d.tokenRepo.EligibleTokens(ctx, recipients, event.SettingKey)
	if err != nil {
		return fmt.Errorf("failed to resolve push tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	messages := make([]push.Message, 0, len(tokens))
	for _, t := range tokens {
		messages = append(messages, push.Message{
			To:    t.Token,
			Title: event.Title,
			Body:  event.Body,
			Data:  event.Payload,
			Sound: "default",
		})
	}
	return d.sender.Send(ctx, messages)
}

// resolveRecipients expands the audience and removes the actor
// unconditionally, so an actor is never notified about their own activity.
func (d *Dispatcher) resolveRecipients(event Event) ([]uint, error) {
	if !event.Audience.broadcast {
		if event.Audience.userID == 0 || event.Audience.userID == event.ActorID {
			return nil, nil
		}
		return []uint{event.Audience.userID}, nil
	}

	ids, err := d.userRepo.ActiveUserIDs()
	if err != nil {
		return nil, err
	}

	recipients := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == event.ActorID {
			continue
		}
		recipients = append(recipients, id)
	}
	return recipients, nil
}
