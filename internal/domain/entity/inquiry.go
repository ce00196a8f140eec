package entity

import "time"

type InquiryStatus string

const (
	InquiryReceived   InquiryStatus = "received"
	InquiryInProgress InquiryStatus = "in_progress"
	InquiryDone       InquiryStatus = "done"
	InquiryOnHold     InquiryStatus = "on_hold"
)

func (s InquiryStatus) Valid() bool {
	switch s {
	case InquiryReceived, InquiryInProgress, InquiryDone, InquiryOnHold:
		return true
	}
	return false
}

type InquiryCategory string

const (
	InquiryGeneral          InquiryCategory = "general"
	InquiryTechnicalSupport InquiryCategory = "technical_support"
	InquiryService          InquiryCategory = "service"
	InquiryOther            InquiryCategory = "other"
)

type InquiryPriority string

const (
	InquiryPriorityLow    InquiryPriority = "low"
	InquiryPriorityNormal InquiryPriority = "normal"
	InquiryPriorityHigh   InquiryPriority = "high"
)

type Inquiry struct {
	ID        string          `json:"id" firestore:"id"`
	UserID    string          `json:"user_id" firestore:"userId"`
	StoreRef  string          `json:"store_ref,omitempty" firestore:"storeRef,omitempty"`
	Category  InquiryCategory `json:"category" firestore:"category"`
	Priority  InquiryPriority `json:"priority" firestore:"priority"`
	Title     string          `json:"title" firestore:"title"`
	Body      string          `json:"body" firestore:"body"`
	Status    InquiryStatus   `json:"status" firestore:"status"`
	CreatedAt time.Time       `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time       `json:"updated_at" firestore:"updatedAt"`

	// Responses is filled on detail reads, oldest first.
	Responses []*InquiryResponse `json:"responses,omitempty" firestore:"-"`
}

// InquiryResponse is one entry in an inquiry's staff thread. Entries are
// only ever appended. Internal notes are visible to staff only.
type InquiryResponse struct {
	ID             string    `json:"id" firestore:"id"`
	InquiryID      string    `json:"inquiry_id" firestore:"inquiryId"`
	StaffID        string    `json:"staff_id" firestore:"staffId"`
	Content        string    `json:"content" firestore:"content"`
	IsInternalNote bool      `json:"is_internal_note" firestore:"isInternalNote"`
	CreatedAt      time.Time `json:"created_at" firestore:"createdAt"`
}
