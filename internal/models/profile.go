package models

// FullProfile is what the profile store hands back. Only a handful of fields
// are needed by the relay.
type FullProfile struct {
	ID          ParticipantID `json:"id"`
	FirstName   string        `json:"first_name"`
	LastName    string        `json:"last_name"`
	CountryCode int32         `json:"country_code"`
	Male        bool          `json:"male"`
	PlayerType  PlayerType    `json:"player_type"`
	WeightGrams int32         `json:"weight_grams"`
	RouteID     int64         `json:"route_id"`
}

// PartialProfile is the public identity shown next to a rider.
type PartialProfile struct {
	ID          ParticipantID `json:"player_id"`
	FirstName   string        `json:"first_name"`
	LastName    string        `json:"last_name"`
	CountryCode int32         `json:"country_code"`
	Male        bool          `json:"male"`
	PlayerType  PlayerType    `json:"player_type"`
	RouteID     int64         `json:"route,omitempty"`
}

func (p FullProfile) Partial() PartialProfile {
	return PartialProfile{
		ID:          p.ID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		CountryCode: p.CountryCode,
		Male:        p.Male,
		PlayerType:  p.PlayerType,
		RouteID:     p.RouteID,
	}
}
