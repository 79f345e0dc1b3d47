package kafka

import "time"

// Events published by the relay

type RiderPresenceEvent struct {
	ParticipantID int64     `json:"participant_id"`
	CourseID      int32     `json:"course_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type SegmentResultEvent struct {
	ResultID  int64     `json:"result_id"`
	PlayerID  int64     `json:"player_id"`
	SegmentID int64     `json:"segment_id"`
	CourseID  int32     `json:"course_id"`
	ElapsedMs int64     `json:"elapsed_ms"`
	Timestamp time.Time `json:"timestamp"`
}

type EventInviteEvent struct {
	EventID   int64     `json:"event_id"`
	Inviter   int64     `json:"inviter"`
	Invitee   int64     `json:"invitee"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Events consumed by the relay (from the chat bridge)

type ChatInboundEvent struct {
	FromID    int64     `json:"from_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Message   string    `json:"message"`
	CourseID  int32     `json:"course_id"`
	Timestamp time.Time `json:"timestamp"`
}
