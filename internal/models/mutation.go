package models

import "time"

const (
	// MutationLocationUpdate is the only mutation type today: a folder
	// moved to a new location while the station was offline.
	MutationLocationUpdate = "location_update"
)

// MutationPayload carries everything needed to perform the deferred write.
// PatientID may be empty for scans taken fully offline; NoRM is then the
// fallback lookup key resolved during sync.
type MutationPayload struct {
	PatientID  string `json:"patient_id,omitempty"`
	NoRM       string `json:"no_rm,omitempty"`
	LocationID string `json:"location_id"`
	StaffID    string `json:"staff_id,omitempty"`
	Note       string `json:"note,omitempty"`
	UserID     string `json:"user_id"`
}

// QueuedMutation is a unit of deferred work in the offline queue. Items are
// immutable once enqueued; they only ever leave the queue by removal.
// RetryCount is kept in the record shape for the persisted format but is
// not incremented or consulted: transient failures retry without limit.
type QueuedMutation struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    MutationPayload `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
	RetryCount int             `json:"retry_count"`
}
