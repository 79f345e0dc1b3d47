package models

import "time"

// MirrorEvent is published to Redis pub/sub whenever an instance routes a
// frame, so peer instances can deliver it to their own riders.
type MirrorEvent struct {
	InstanceID string          `json:"instance_id"`
	OriginID   ParticipantID   `json:"origin_id"`
	Origin     *PositionState  `json:"origin,omitempty"`
	FrameType  FrameType       `json:"frame_type"`
	CourseID   int32           `json:"course_id,omitempty"`
	Targets    []ParticipantID `json:"targets,omitempty"`
	Frame      []byte          `json:"frame"`
	Timestamp  time.Time       `json:"timestamp"`
}
