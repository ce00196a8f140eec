package repository

import (
	"context"
	"time"

	"storecare/internal/domain/entity"
)

// Subscription is a live feed of message rows inserted into one
// conversation after the subscription was opened. Events is closed once
// the feed ends, either through Close or because the backend dropped it.
type Subscription interface {
	Events() <-chan *entity.Message
	Close() error
}

// ConversationStore is the backend collaborator a chat screen syncs
// against.
type ConversationStore interface {
	ReadConversation(ctx context.Context, id string) (*entity.Conversation, error)
	// WriteConversationAssignment overwrites assignedStaffId unconditionally.
	WriteConversationAssignment(ctx context.Context, id, staffID string) error
	// WriteConversationOwner overwrites userId unconditionally.
	WriteConversationOwner(ctx context.Context, id, userID string) error
	UpdateConversationTimestamp(ctx context.Context, id string, t time.Time) error

	// ListMessages returns every message ordered by createdAt ascending.
	ListMessages(ctx context.Context, conversationID string) ([]*entity.Message, error)
	InsertMessage(ctx context.Context, conversationID, senderID, content string) (*entity.Message, error)
	SubscribeToNewMessages(ctx context.Context, conversationID string) (Subscription, error)
}

// ConversationClaimer is implemented by stores that can set a claim field
// only when it is still empty, atomically. It returns the field's value
// after the call and whether this call was the one that set it.
type ConversationClaimer interface {
	ClaimConversation(ctx context.Context, id string, field entity.ClaimField, actorID string) (string, bool, error)
}

type ConversationFilter struct {
	UserID string
	// StaffID restricts to conversations assigned to this staff member.
	StaffID string
	// UnassignedOnly restricts to the staff chat queue.
	UnassignedOnly bool
}

// ConversationDirectory covers the list and creation screens around the
// chat itself.
type ConversationDirectory interface {
	CreateConversation(ctx context.Context, conversation *entity.Conversation) error
	// FindUnassignedByUser returns the user's newest conversation no staff
	// member has claimed yet.
	FindUnassignedByUser(ctx context.Context, userID string) (*entity.Conversation, error)
	// ListConversations orders by updatedAt descending.
	ListConversations(ctx context.Context, filter ConversationFilter, limit, offset int) ([]*entity.Conversation, int64, error)
	// LatestMessage returns the newest message, or nil when there is none.
	LatestMessage(ctx context.Context, conversationID string) (*entity.Message, error)
}
