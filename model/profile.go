package model

import "slices"

type TeeShirtSize string

const TeeShirtNotSpecified TeeShirtSize = "NOT_SPECIFIED"

var teeShirtSizes = []TeeShirtSize{
	TeeShirtNotSpecified,
	"XS_M", "XS_W",
	"S_M", "S_W",
	"M_M", "M_W",
	"L_M", "L_W",
	"XL_M", "XL_W",
	"XXL_M", "XXL_W",
	"XXXL_M", "XXXL_W",
}

func (s TeeShirtSize) Valid() bool {
	return slices.Contains(teeShirtSizes, s)
}

type Profile struct {
	UserID                 string       `json:"-" bson:"_id"`
	DisplayName            string       `json:"displayName" bson:"displayName"`
	MainEmail              string       `json:"mainEmail" bson:"mainEmail"`
	TeeShirtSize           TeeShirtSize `json:"teeShirtSize" bson:"teeShirtSize"`
	ConferenceKeysToAttend []string     `json:"conferenceKeysToAttend" bson:"conferenceKeysToAttend"`
}

func (p *Profile) IsRegistered(conferenceKey string) bool {
	return slices.Contains(p.ConferenceKeysToAttend, conferenceKey)
}

// Register appends conferenceKey to the registration set. It reports false when already present.
func (p *Profile) Register(conferenceKey string) bool {
	if p.IsRegistered(conferenceKey) {
		return false
	}
	p.ConferenceKeysToAttend = append(p.ConferenceKeysToAttend, conferenceKey)
	return true
}

// Unregister removes conferenceKey from the registration set. It reports false when absent.
func (p *Profile) Unregister(conferenceKey string) bool {
	i := slices.Index(p.ConferenceKeysToAttend, conferenceKey)
	if i < 0 {
		return false
	}
	p.ConferenceKeysToAttend = slices.Delete(p.ConferenceKeysToAttend, i, i+1)
	return true
}
