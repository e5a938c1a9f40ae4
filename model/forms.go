package model

type ConferenceForm struct {
	Name                 string   `json:"name"`
	Description          string   `json:"description,omitempty"`
	OrganizerUserID      string   `json:"organizerUserId,omitempty"`
	Topics               []string `json:"topics,omitempty"`
	City                 string   `json:"city,omitempty"`
	StartDate            string   `json:"startDate,omitempty"`
	Month                int      `json:"month,omitempty"`
	EndDate              string   `json:"endDate,omitempty"`
	MaxAttendees         *int     `json:"maxAttendees,omitempty"`
	SeatsAvailable       *int     `json:"seatsAvailable,omitempty"`
	WebsafeKey           string   `json:"websafeKey,omitempty"`
	OrganizerDisplayName string   `json:"organizerDisplayName,omitempty"`
}

type ConferenceForms struct {
	Items []ConferenceForm `json:"items"`
}

type ConferenceQueryForm struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type ConferenceQueryForms struct {
	Filters []ConferenceQueryForm `json:"filters"`
}

type SessionForm struct {
	Name       string   `json:"name"`
	Highlights []string `json:"highlights,omitempty"`
	Speakers   []string `json:"speakers,omitempty"`
	Duration   int      `json:"duration,omitempty"`
	Type       string   `json:"type,omitempty"`
	Date       string   `json:"date,omitempty"`
	StartTime  string   `json:"startTime,omitempty"`
	ParentKey  string   `json:"parentKey,omitempty"`
	WebsafeKey string   `json:"websafeKey,omitempty"`
}

type SessionForms struct {
	Items []SessionForm `json:"items"`
}

type ProfileMiniForm struct {
	DisplayName  string `json:"displayName"`
	TeeShirtSize string `json:"teeShirtSize"`
}

type ProfileForm struct {
	DisplayName            string   `json:"displayName"`
	MainEmail              string   `json:"mainEmail"`
	TeeShirtSize           string   `json:"teeShirtSize"`
	ConferenceKeysToAttend []string `json:"conferenceKeysToAttend"`
}

type WishlistForm struct {
	SessionKey string `json:"sessionKey"`
}

type BooleanMessage struct {
	Data bool `json:"data"`
}

type StringMessage struct {
	Data string `json:"data"`
}
