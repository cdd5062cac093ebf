package service

import (
	"context"

	"github.com/google/uuid"
)

// Notifier is the two-operation surface of the live notification relay.
// Delivery is best-effort: the core never depends on it succeeding, and a
// failed announce must not fail the operation that triggered it.
type Notifier interface {
	// AnnounceNewMessage tells subscribers of a chat room that new
	// messages exist and should be re-fetched.
	AnnounceNewMessage(ctx context.Context, chatID uuid.UUID)

	// AnnounceMembershipChanged tells subscribers that the chat's member
	// list changed.
	AnnounceMembershipChanged(ctx context.Context, chatID uuid.UUID)
}

// NopNotifier discards announcements. Used in tests and when the relay
// is not configured.
type NopNotifier struct{}

func (NopNotifier) AnnounceNewMessage(context.Context, uuid.UUID) {}

func (NopNotifier) AnnounceMembershipChanged(context.Context, uuid.UUID) {}
