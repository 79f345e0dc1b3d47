package models

import "time"

type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "PENDING"
	InviteStatusAccepted InviteStatus = "ACCEPTED"
	InviteStatusRejected InviteStatus = "REJECTED"
)

// CanTransitionTo allows only PENDING -> ACCEPTED and PENDING -> REJECTED.
func (s InviteStatus) CanTransitionTo(next InviteStatus) bool {
	return s == InviteStatusPending && (next == InviteStatusAccepted || next == InviteStatusRejected)
}

type PrivateEvent struct {
	ID          int64         `json:"id"`
	OrganizerID ParticipantID `json:"organizer_id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	StartTime   time.Time     `json:"start_time"`
	CourseID    int32         `json:"course_id"`
	RouteID     int64         `json:"route_id,omitempty"`
	Sport       Sport         `json:"sport"`
	Laps        int32         `json:"laps,omitempty"`
	DistanceM   int32         `json:"distance_m,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type Invite struct {
	EventID       int64         `json:"event_id"`
	ParticipantID ParticipantID `json:"participant_id"`
	Status        InviteStatus  `json:"status"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

const NotificationTypePrivateEventInvite = "PRIVATE_EVENT_INVITE"

type Notification struct {
	ID            string        `json:"id"`
	ParticipantID ParticipantID `json:"participant_id"`
	EventID       int64         `json:"event_id"`
	Type          string        `json:"type"`
	Read          bool          `json:"read"`
	CreatedAt     time.Time     `json:"created_at"`
}

// SegmentResult is a finished segment effort.
type SegmentResult struct {
	ID              int64         `json:"id"`
	PlayerID        ParticipantID `json:"player_id"`
	RealmID         int64         `json:"server_realm"`
	CourseID        int32         `json:"course_id"`
	SegmentID       int64         `json:"segment_id"`
	EventSubgroupID int64         `json:"event_subgroup_id,omitempty"`
	FirstName       string        `json:"first_name"`
	LastName        string        `json:"last_name"`
	WorldTime       int64         `json:"world_time"`
	FinishTimeStr   string        `json:"finish_time_str,omitempty"`
	ElapsedMs       int64         `json:"elapsed_ms"`
	WeightGrams     int32         `json:"weight_in_grams,omitempty"`
	AvgPower        int32         `json:"avg_power,omitempty"`
	Male            bool          `json:"is_male"`
	PlayerType      PlayerType    `json:"player_type,omitempty"`
	AvgHR           int32         `json:"avg_hr,omitempty"`
	Sport           Sport         `json:"sport"`
	ActivityID      int64         `json:"activity_id,omitempty"`
}
