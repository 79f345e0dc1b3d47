package kafka

const (
	TopicRiderOnline    = "rider.online"
	TopicRiderOffline   = "rider.offline"
	TopicSegmentResult  = "segment.result"
	TopicEventInvite    = "event.invite"
	TopicChatInbound    = "chat.inbound"
	HeaderTimestamp     = "timestamp"
	HeaderRequestID     = "request_id"
	OfflineReasonLogout = "logout"
	OfflineReasonKicked = "kicked"
)
