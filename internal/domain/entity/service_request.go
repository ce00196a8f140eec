package entity

import "time"

type ServiceType string

const (
	ServiceValveReplacement ServiceType = "valve_replacement"
	ServiceAlarmReplacement ServiceType = "alarm_replacement"
	ServicePipeRemoval      ServiceType = "pipe_removal"
)

// Detail keys written on service requests.
const (
	DetailAlarmType  = "alarm_type"
	DetailExtraNotes = "extra_notes"
)

// ValveItems are the countable parts a valve replacement can order.
var ValveItems = []string{"valve_8mm", "air_regulator"}

// AlarmTypes are the detector kinds an alarm replacement chooses from.
var AlarmTypes = []string{"lpg", "lng", "other"}

type ServiceRequestStatus string

const (
	ServiceRequestPending    ServiceRequestStatus = "pending"
	ServiceRequestScheduled  ServiceRequestStatus = "scheduled"
	ServiceRequestInProgress ServiceRequestStatus = "in_progress"
	ServiceRequestCompleted  ServiceRequestStatus = "completed"
	ServiceRequestCancelled  ServiceRequestStatus = "cancelled"
)

var serviceRequestTransitions = map[ServiceRequestStatus][]ServiceRequestStatus{
	ServiceRequestPending:    {ServiceRequestScheduled, ServiceRequestCancelled},
	ServiceRequestScheduled:  {ServiceRequestInProgress, ServiceRequestCancelled},
	ServiceRequestInProgress: {ServiceRequestCompleted, ServiceRequestCancelled},
}

// CanTransition reports whether a request in status from may move to to.
func (from ServiceRequestStatus) CanTransition(to ServiceRequestStatus) bool {
	for _, next := range serviceRequestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RequestDetail is one key/value line of what the customer asked for,
// e.g. {"valve_8mm", "2"} or {"alarm_type", "lpg"}.
type RequestDetail struct {
	Key   string `json:"key" firestore:"key"`
	Value string `json:"value" firestore:"value"`
}

type ServiceRequest struct {
	ID            string               `json:"id" firestore:"id"`
	UserID        string               `json:"user_id" firestore:"userId"`
	Type          ServiceType          `json:"type" firestore:"type"`
	StoreRef      string               `json:"store_ref" firestore:"storeRef"`
	Details       []RequestDetail      `json:"details" firestore:"details"`
	PreferredDate *time.Time           `json:"preferred_date,omitempty" firestore:"preferredDate,omitempty"`
	Status        ServiceRequestStatus `json:"status" firestore:"status"`
	StaffNote     string               `json:"staff_note,omitempty" firestore:"staffNote,omitempty"`
	CreatedAt     time.Time            `json:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time            `json:"updated_at" firestore:"updatedAt"`
}

// Detail returns the value stored under key.
func (r *ServiceRequest) Detail(key string) (string, bool) {
	for _, d := range r.Details {
		if d.Key == key {
			return d.Value, true
		}
	}
	return "", false
}
