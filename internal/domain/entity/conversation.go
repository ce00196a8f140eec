package entity

import "time"

type Conversation struct {
	ID              string    `json:"id" firestore:"id"`
	UserID          string    `json:"user_id" firestore:"userId"`
	AssignedStaffID string    `json:"assigned_staff_id,omitempty" firestore:"assignedStaffId"`
	StoreRef        string    `json:"store_ref,omitempty" firestore:"storeRef,omitempty"`
	CreatedAt       time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt       time.Time `json:"updated_at" firestore:"updatedAt"` // bumped on every message
}

// ClaimField names the conversation field an actor claims when first
// opening the conversation.
type ClaimField string

const (
	ClaimFieldAssignedStaff ClaimField = "assignedStaffId"
	ClaimFieldOwner         ClaimField = "userId"
)

// Claimant returns the current value of field.
func (c *Conversation) Claimant(field ClaimField) string {
	if field == ClaimFieldOwner {
		return c.UserID
	}
	return c.AssignedStaffID
}

func (c *Conversation) HasParticipant(actorID string) bool {
	return actorID != "" && (c.UserID == actorID || c.AssignedStaffID == actorID)
}

func (c *Conversation) IsAssigned() bool {
	return c.AssignedStaffID != ""
}

// ConversationSummary is a list row: the conversation plus a preview of
// its newest message, if any.
type ConversationSummary struct {
	*Conversation
	LastMessage *Message `json:"last_message,omitempty"`
}
