package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// FieldMapping copies one wire-form field onto an entity field. Apply reports false when the
// form leaves the field unset, in which case the entity is untouched.
type FieldMapping[F, E any] struct {
	Source      string
	Destination string
	Apply       func(form *F, entity *E) (bool, error)
}

// FieldError reports a form field whose value could not be transformed.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ApplyFields runs every mapping in order and returns the names of the source fields applied.
func ApplyFields[F, E any](mappings []FieldMapping[F, E], form *F, entity *E) ([]string, error) {
	var applied []string
	for _, m := range mappings {
		ok, err := m.Apply(form, entity)
		if err != nil {
			return applied, &FieldError{Field: m.Source, Err: err}
		}
		if ok {
			applied = append(applied, m.Source)
		}
	}
	return applied, nil
}

var ConferenceFormFields = []FieldMapping[ConferenceForm, Conference]{
	{"name", "Name", func(f *ConferenceForm, c *Conference) (bool, error) {
		return setString(&c.Name, f.Name), nil
	}},
	{"description", "Description", func(f *ConferenceForm, c *Conference) (bool, error) {
		return setString(&c.Description, f.Description), nil
	}},
	{"topics", "Topics", func(f *ConferenceForm, c *Conference) (bool, error) {
		return setStrings(&c.Topics, f.Topics), nil
	}},
	{"city", "City", func(f *ConferenceForm, c *Conference) (bool, error) {
		return setString(&c.City, f.City), nil
	}},
	// month follows the start date
	{"startDate", "StartDate,Month", func(f *ConferenceForm, c *Conference) (bool, error) {
		ok, err := setDate(&c.StartDate, f.StartDate)
		if ok {
			c.Month = int(c.StartDate.Month())
		}
		return ok, err
	}},
	{"endDate", "EndDate", func(f *ConferenceForm, c *Conference) (bool, error) {
		return setDate(&c.EndDate, f.EndDate)
	}},
	{"maxAttendees", "MaxAttendees", func(f *ConferenceForm, c *Conference) (bool, error) {
		if f.MaxAttendees == nil {
			return false, nil
		}
		if *f.MaxAttendees < 0 {
			return false, fmt.Errorf("cannot be negative")
		}
		c.MaxAttendees = *f.MaxAttendees
		return true, nil
	}},
}

var SessionFormFields = []FieldMapping[SessionForm, Session]{
	{"name", "Name", func(f *SessionForm, s *Session) (bool, error) {
		return setString(&s.Name, f.Name), nil
	}},
	{"type", "Type", func(f *SessionForm, s *Session) (bool, error) {
		return setString(&s.Type, f.Type), nil
	}},
	{"highlights", "Highlights", func(f *SessionForm, s *Session) (bool, error) {
		return setStrings(&s.Highlights, f.Highlights), nil
	}},
	{"speakers", "Speakers", func(f *SessionForm, s *Session) (bool, error) {
		var speakers []Speaker
		for _, name := range f.Speakers {
			if name = strings.TrimSpace(name); name != "" {
				speakers = append(speakers, Speaker{Name: name})
			}
		}
		if len(speakers) == 0 {
			return false, nil
		}
		s.Speakers = speakers
		return true, nil
	}},
	{"duration", "Duration", func(f *SessionForm, s *Session) (bool, error) {
		if f.Duration == 0 {
			return false, nil
		}
		if f.Duration < 0 {
			return false, fmt.Errorf("cannot be negative")
		}
		s.Duration = f.Duration
		return true, nil
	}},
	{"date", "Date", func(f *SessionForm, s *Session) (bool, error) {
		return setDate(&s.Date, f.Date)
	}},
	{"startTime", "StartTime", func(f *SessionForm, s *Session) (bool, error) {
		if strings.TrimSpace(f.StartTime) == "" {
			return false, nil
		}
		minutes, err := ParseTimeOfDay(f.StartTime)
		if err != nil {
			return false, err
		}
		s.StartTime = &minutes
		return true, nil
	}},
}

var ProfileFormFields = []FieldMapping[ProfileMiniForm, Profile]{
	{"displayName", "DisplayName", func(f *ProfileMiniForm, p *Profile) (bool, error) {
		return setString(&p.DisplayName, f.DisplayName), nil
	}},
	{"teeShirtSize", "TeeShirtSize", func(f *ProfileMiniForm, p *Profile) (bool, error) {
		if f.TeeShirtSize == "" {
			return false, nil
		}
		size := TeeShirtSize(strings.ToUpper(f.TeeShirtSize))
		if !size.Valid() {
			return false, fmt.Errorf("unknown size %q", f.TeeShirtSize)
		}
		p.TeeShirtSize = size
		return true, nil
	}},
}

func ConferenceToForm(c *Conference, displayName string) ConferenceForm {
	maxAttendees, seats := c.MaxAttendees, c.SeatsAvailable
	return ConferenceForm{
		Name:                 c.Name,
		Description:          c.Description,
		OrganizerUserID:      c.OrganizerUserID,
		Topics:               c.Topics,
		City:                 c.City,
		StartDate:            FormatDate(c.StartDate),
		Month:                c.Month,
		EndDate:              FormatDate(c.EndDate),
		MaxAttendees:         &maxAttendees,
		SeatsAvailable:       &seats,
		WebsafeKey:           c.Key,
		OrganizerDisplayName: displayName,
	}
}

func SessionToForm(s *Session) SessionForm {
	form := SessionForm{
		Name:       s.Name,
		Highlights: s.Highlights,
		Speakers:   s.SpeakerNames(),
		Duration:   s.Duration,
		Type:       s.Type,
		Date:       FormatDate(s.Date),
		ParentKey:  s.ConferenceKey,
		WebsafeKey: s.Key,
	}
	if s.StartTime != nil {
		form.StartTime = FormatTimeOfDay(*s.StartTime)
	}
	return form
}

func ProfileToForm(p *Profile) ProfileForm {
	return ProfileForm{
		DisplayName:            p.DisplayName,
		MainEmail:              p.MainEmail,
		TeeShirtSize:           string(p.TeeShirtSize),
		ConferenceKeysToAttend: p.ConferenceKeysToAttend,
	}
}

// ParseDate accepts YYYY-MM-DD, ignoring anything after the first ten characters.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if len(value) > len(dateLayout) {
		value = value[:len(dateLayout)]
	}
	return time.Parse(dateLayout, value)
}

func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

// ParseTimeOfDay parses a 24-hour HH:MM value into minutes after midnight.
func ParseTimeOfDay(value string) (int, error) {
	t, err := time.Parse(timeLayout, strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func FormatTimeOfDay(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func setString(dst *string, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	*dst = value
	return true
}

func setStrings(dst *[]string, values []string) bool {
	if len(values) == 0 {
		return false
	}
	*dst = append([]string(nil), values...)
	return true
}

func setDate(dst **time.Time, value string) (bool, error) {
	if strings.TrimSpace(value) == "" {
		return false, nil
	}
	t, err := ParseDate(value)
	if err != nil {
		return false, err
	}
	*dst = &t
	return true, nil
}
