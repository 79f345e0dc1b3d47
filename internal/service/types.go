package service

import (
	"time"

	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/internal/protocol"
)

type LoginInput struct {
	ParticipantID models.ParticipantID
	RelayKey      []byte
	// State is the initial position. A zero state puts the rider online
	// with no position until the first telemetry packet.
	State *models.PositionState
	// Profile, when set, is saved to the profile store before the rider
	// goes online.
	Profile *models.FullProfile
}

type LoginOutput struct {
	ParticipantID  models.ParticipantID `json:"participant_id"`
	RelaySessionID uint32               `json:"relay_session_id"`
	ExpiresIn      int64                `json:"expiration"`
	WorldTime      int64                `json:"world_time"`
	UDPConfig      protocol.UDPConfig   `json:"-"`
	TCPAddress     string               `json:"tcp_address"`
}

type RideOnInput struct {
	From models.ParticipantID
	To   models.ParticipantID
}

type SubgroupInput struct {
	ParticipantID models.ParticipantID
	EventID       int64
	SubgroupID    int64
}

type ChatInput struct {
	FromID    models.ParticipantID
	FirstName string
	LastName  string
	Message   string
	CourseID  int32
}

type CreatePrivateEventInput struct {
	Name        string                 `json:"name" validate:"required,max=128"`
	Description string                 `json:"description" validate:"max=1024"`
	StartTime   time.Time              `json:"start_time" validate:"required"`
	CourseID    int32                  `json:"course_id" validate:"gte=0"`
	RouteID     int64                  `json:"route_id" validate:"gte=0"`
	Sport       models.Sport           `json:"sport"`
	Laps        int32                  `json:"laps" validate:"gte=0,lte=100"`
	DistanceM   int32                  `json:"distance_m" validate:"gte=0"`
	Invitees    []models.ParticipantID `json:"invitees" validate:"max=200,dive,gt=0"`
}

// EditPrivateEventInput replaces the invite list. Nil fields are left as
// they are.
type EditPrivateEventInput struct {
	Name        *string                `json:"name" validate:"omitempty,max=128"`
	Description *string                `json:"description" validate:"omitempty,max=1024"`
	StartTime   *time.Time             `json:"start_time"`
	CourseID    *int32                 `json:"course_id" validate:"omitempty,gte=0"`
	RouteID     *int64                 `json:"route_id" validate:"omitempty,gte=0"`
	Laps        *int32                 `json:"laps" validate:"omitempty,gte=0,lte=100"`
	DistanceM   *int32                 `json:"distance_m" validate:"omitempty,gte=0"`
	Invitees    []models.ParticipantID `json:"invitees" validate:"max=200,dive,gt=0"`
}

type PrivateEventOutput struct {
	models.PrivateEvent
	Invites []models.Invite `json:"invites"`
}

// OnlineRider is one row of the admin online list.
type OnlineRider struct {
	ParticipantID models.ParticipantID `json:"participant_id"`
	CourseID      int32                `json:"course_id"`
	Sport         models.Sport         `json:"sport"`
	HasSession    bool                 `json:"has_session"`
	TCPConnected  bool                 `json:"tcp_connected"`
	UDPAddr       string               `json:"udp_addr,omitempty"`
}
