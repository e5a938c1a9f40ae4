package model

import "time"

type Conference struct {
	Key             string     `json:"websafeKey" bson:"_id"`
	Ancestors       []string   `json:"-" bson:"ancestors"`
	Name            string     `json:"name" bson:"name"`
	Description     string     `json:"description" bson:"description"`
	OrganizerUserID string     `json:"organizerUserId" bson:"organizerUserId"`
	Topics          []string   `json:"topics" bson:"topics"`
	City            string     `json:"city" bson:"city"`
	StartDate       *time.Time `json:"startDate" bson:"startDate,omitempty"`
	Month           int        `json:"month" bson:"month"`
	EndDate         *time.Time `json:"endDate" bson:"endDate,omitempty"`
	MaxAttendees    int        `json:"maxAttendees" bson:"maxAttendees"`
	SeatsAvailable  int        `json:"seatsAvailable" bson:"seatsAvailable"`
}

// SeatsTaken is the number of registrations the conference currently holds.
func (c *Conference) SeatsTaken() int {
	return c.MaxAttendees - c.SeatsAvailable
}

// Defaults applied to unset conference fields on creation.
var (
	DefaultCity           = "Default City"
	DefaultMaxAttendees   = 0
	DefaultSeatsAvailable = 0
	DefaultTopics         = []string{"Default", "Topic"}
)
