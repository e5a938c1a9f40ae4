package model

import "time"

type Speaker struct {
	Name string `json:"name" bson:"name"`
}

type Session struct {
	Key           string     `json:"websafeKey" bson:"_id"`
	Ancestors     []string   `json:"-" bson:"ancestors"`
	ConferenceKey string     `json:"conferenceKey" bson:"conferenceKey"`
	Name          string     `json:"name" bson:"name"`
	Type          string     `json:"type" bson:"type"`
	Date          *time.Time `json:"date" bson:"date,omitempty"`
	// StartTime is minutes after midnight.
	StartTime  *int      `json:"startTime" bson:"startTime,omitempty"`
	Duration   int       `json:"duration" bson:"duration"`
	Speakers   []Speaker `json:"speakers" bson:"speakers"`
	Highlights []string  `json:"highlights" bson:"highlights"`
}

func (s *Session) SpeakerNames() []string {
	names := make([]string, 0, len(s.Speakers))
	for _, speaker := range s.Speakers {
		names = append(names, speaker.Name)
	}
	return names
}

// FeaturedSpeaker is the cached result of featured speaker recomputation.
type FeaturedSpeaker struct {
	Speaker  string   `json:"speaker"`
	Sessions []string `json:"sessions"`
}
