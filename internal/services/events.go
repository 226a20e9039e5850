package services

import "github.com/google/uuid"

const (
	EventMemberJoined   = "member_joined"
	EventMemberRemoved  = "member_removed"
	EventInviteCreated  = "invite_created"
	EventInviteRedeemed = "invite_redeemed"
	EventInviteRevoked  = "invite_revoked"
	EventListCreated    = "list_created"
	EventItemAdded      = "item_added"
)

// EventPublisher fans family changes out to live subscribers.
type EventPublisher interface {
	PublishFamilyEvent(familyID uuid.UUID, event string, data any)
}

type nopPublisher struct{}

func (nopPublisher) PublishFamilyEvent(uuid.UUID, string, any) {}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
