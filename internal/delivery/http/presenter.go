package http

import (
	"time"

	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/internal/service"
)

type loginRequest struct {
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	CountryCode int32             `json:"country_code"`
	Male        bool              `json:"male"`
	PlayerType  models.PlayerType `json:"player_type"`
	WeightGrams int32             `json:"weight_grams"`
	CourseID    int32             `json:"course_id"`
	RoadID      int32             `json:"road_id"`
	X           float32           `json:"x"`
	Y           float32           `json:"y"`
	Sport       models.Sport      `json:"sport"`
}

func (r loginRequest) hasProfile() bool {
	return r.FirstName != "" || r.LastName != ""
}

func (r loginRequest) toInput(ident loginIdentity) service.LoginInput {
	in := service.LoginInput{
		ParticipantID: ident.id,
		RelayKey:      ident.key,
	}
	if r.hasProfile() {
		in.Profile = &models.FullProfile{
			ID:          ident.id,
			FirstName:   r.FirstName,
			LastName:    r.LastName,
			CountryCode: r.CountryCode,
			Male:        r.Male,
			PlayerType:  r.PlayerType,
			WeightGrams: r.WeightGrams,
		}
	}
	if r.CourseID != 0 {
		st := &models.PositionState{ID: ident.id, X: r.X, Y: r.Y, Sport: r.Sport}
		st.SetRoadLocation(r.CourseID, true, r.RoadID)
		in.State = st
	}
	return in
}

type loginIdentity struct {
	id  models.ParticipantID
	key []byte
}

type rideOnRequest struct {
	OtherID models.ParticipantID `json:"profileId"`
}

type rosterResp struct {
	PlayerID    models.ParticipantID `json:"player_id"`
	Kind        string               `json:"kind"`
	FirstName   string               `json:"first_name"`
	LastName    string               `json:"last_name"`
	CountryCode int32                `json:"country_code"`
	Male        bool                 `json:"male"`
	Distance    int32                `json:"distance"`
	Time        int32                `json:"time"`
	Sport       string               `json:"sport"`
	X           float32              `json:"x"`
	Y           float32              `json:"y"`
	Altitude    float32              `json:"altitude"`
}

type worldResp struct {
	ID             int64        `json:"id"`
	WorldID        int64        `json:"world_id"`
	Name           string       `json:"name"`
	CourseID       int32        `json:"course_id"`
	PlayerCount    int          `json:"player_count"`
	WorldTime      int64        `json:"world_time"`
	RealTime       int64        `json:"real_time"`
	PacePartners   []rosterResp `json:"pace_partners"`
	Followees      []rosterResp `json:"followees"`
	Others         []rosterResp `json:"others"`
	PacePartnerCnt int          `json:"pace_partner_count"`
}

func newRosterResp(entries []models.RosterEntry) []rosterResp {
	out := make([]rosterResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, rosterResp{
			PlayerID:    e.Profile.ID,
			Kind:        e.Kind.String(),
			FirstName:   e.Profile.FirstName,
			LastName:    e.Profile.LastName,
			CountryCode: e.Profile.CountryCode,
			Male:        e.Profile.Male,
			Distance:    e.State.Distance,
			Time:        e.State.Time,
			Sport:       e.State.Sport.Name(),
			X:           e.State.X,
			Y:           e.State.Y,
			Altitude:    e.State.Altitude,
		})
	}
	return out
}

func newWorldResp(v models.WorldView, c models.CourseView) worldResp {
	return worldResp{
		ID:             v.WorldID,
		WorldID:        v.WorldID,
		Name:           v.Name,
		CourseID:       c.CourseID,
		PlayerCount:    c.Count,
		WorldTime:      v.WorldTime,
		RealTime:       v.RealTime,
		PacePartners:   newRosterResp(c.PacePartners),
		Followees:      newRosterResp(c.Followees),
		Others:         newRosterResp(c.Others),
		PacePartnerCnt: len(c.PacePartners),
	}
}

func newWorldsResp(v models.WorldView) []worldResp {
	out := make([]worldResp, 0, len(v.Courses))
	for _, c := range v.Courses {
		out = append(out, newWorldResp(v, c))
	}
	return out
}

type segmentResultIDResp struct {
	ID int64 `json:"id"`
}

type loginResp struct {
	*service.LoginOutput
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}
