package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"conference-central/database"
	apperrors "conference-central/errors"
	"conference-central/model"
)

var timeOperators = map[string]database.Operator{
	"BEFORE": database.OpLt,
	"DURING": database.OpEq,
	"AFTER":  database.OpGt,
}

// CreateSession adds a session under the conference named by form.ParentKey and schedules a
// featured speaker check for every speaker.
func (s *Service) CreateSession(ctx context.Context, caller *Caller, form model.SessionForm) (model.SessionForm, error) {
	if err := requireCaller(caller); err != nil {
		return model.SessionForm{}, err
	}
	if strings.TrimSpace(form.ParentKey) == "" {
		return model.SessionForm{}, apperrors.BadRequest("Session 'parentKey' field required")
	}
	if strings.TrimSpace(form.Name) == "" {
		return model.SessionForm{}, apperrors.BadRequest("Session 'name' field required")
	}

	sess := &model.Session{}
	if _, err := model.ApplyFields(model.SessionFormFields, &form, sess); err != nil {
		return model.SessionForm{}, apperrors.Wrap(apperrors.KindBadRequest, err, "invalid session")
	}
	conf, err := s.conference(ctx, form.ParentKey)
	if err != nil {
		return model.SessionForm{}, err
	}

	parent, err := model.DecodeKey(conf.Key)
	if err != nil {
		return model.SessionForm{}, err
	}
	key, err := s.store.AllocateID(ctx, model.KindSession, parent)
	if err != nil {
		return model.SessionForm{}, err
	}
	sess.Key = key.Encode()
	sess.Ancestors = key.Ancestors()
	sess.ConferenceKey = conf.Key
	if err := s.store.PutSession(ctx, sess); err != nil {
		return model.SessionForm{}, err
	}
	s.logger.Info("session created", zap.String("key", sess.Key), zap.String("conference", conf.Key))

	seen := map[string]bool{}
	for _, speaker := range sess.SpeakerNames() {
		if seen[speaker] {
			continue
		}
		seen[speaker] = true
		s.enqueue(TaskSetFeaturedSpeaker, map[string]string{
			"conferenceKey": conf.Key,
			"speaker":       speaker,
		})
	}
	return model.SessionToForm(sess), nil
}

func (s *Service) GetConferenceSessions(ctx context.Context, websafeKey string) (model.SessionForms, error) {
	return s.conferenceSessions(ctx, websafeKey)
}

func (s *Service) GetConferenceSessionsByType(ctx context.Context, websafeKey, sessionType string) (model.SessionForms, error) {
	return s.conferenceSessions(ctx, websafeKey, database.Filter{Field: "type", Op: database.OpEq, Value: sessionType})
}

func (s *Service) conferenceSessions(ctx context.Context, websafeKey string, filters ...database.Filter) (model.SessionForms, error) {
	conf, err := s.conference(ctx, websafeKey)
	if err != nil {
		return model.SessionForms{}, err
	}
	return s.querySessions(ctx, database.Query{
		Ancestor: conf.Key,
		Filters:  filters,
		OrderBy:  []string{"startTime", "name"},
	})
}

func (s *Service) GetSessionsBySpeaker(ctx context.Context, speaker string) (model.SessionForms, error) {
	return s.querySessions(ctx, database.Query{
		Filters: []database.Filter{{Field: "speakers.name", Op: database.OpEq, Value: speaker}},
		OrderBy: []string{"startTime", "name"},
	})
}

func (s *Service) GetConferenceSessionsByHighlight(ctx context.Context, highlight string) (model.SessionForms, error) {
	return s.querySessions(ctx, database.Query{
		Filters: []database.Filter{{Field: "highlights", Op: database.OpEq, Value: highlight}},
		OrderBy: []string{"name"},
	})
}

// GetConferencesWithSessionHighlights lists each conference holding at least one session with the
// highlight, once.
func (s *Service) GetConferencesWithSessionHighlights(ctx context.Context, highlight string) (model.ConferenceForms, error) {
	sessions, err := s.store.QuerySessions(ctx, database.Query{
		Filters: []database.Filter{{Field: "highlights", Op: database.OpEq, Value: highlight}},
		OrderBy: []string{"name"},
	})
	if err != nil {
		return model.ConferenceForms{}, err
	}

	seen := map[string]bool{}
	keys := []string{}
	for _, sess := range sessions {
		if !seen[sess.ConferenceKey] {
			seen[sess.ConferenceKey] = true
			keys = append(keys, sess.ConferenceKey)
		}
	}
	confs, err := s.store.GetConferences(ctx, keys)
	if err != nil {
		return model.ConferenceForms{}, err
	}
	return s.conferenceForms(ctx, confs)
}

// GetConferenceSessionsByFilters returns sessions of any type other than sessionType that start
// before, during or after the given time of day. The store handles the type inequality, the time
// comparison happens here since only one inequality field is allowed per query.
func (s *Service) GetConferenceSessionsByFilters(ctx context.Context, sessionType, timeOfDay, operator string) (model.SessionForms, error) {
	op, ok := timeOperators[strings.ToUpper(strings.TrimSpace(operator))]
	if !ok {
		return model.SessionForms{}, apperrors.BadRequest("Unknown time operator %q, use BEFORE, DURING or AFTER", operator)
	}
	minutes, err := model.ParseTimeOfDay(timeOfDay)
	if err != nil {
		return model.SessionForms{}, apperrors.Wrap(apperrors.KindBadRequest, err, "time must be HH:MM")
	}

	sessions, err := s.store.QuerySessions(ctx, database.Query{
		Filters: []database.Filter{{Field: "type", Op: database.OpNe, Value: sessionType}},
		OrderBy: []string{"type", "startTime"},
	})
	if err != nil {
		return model.SessionForms{}, err
	}

	matched := make([]model.Session, 0, len(sessions))
	for _, sess := range sessions {
		if sess.StartTime == nil {
			continue
		}
		start := *sess.StartTime
		if (op == database.OpLt && start < minutes) ||
			(op == database.OpEq && start == minutes) ||
			(op == database.OpGt && start > minutes) {
			matched = append(matched, sess)
		}
	}
	return sessionForms(matched), nil
}

func (s *Service) querySessions(ctx context.Context, q database.Query) (model.SessionForms, error) {
	sessions, err := s.store.QuerySessions(ctx, q)
	if err != nil {
		return model.SessionForms{}, err
	}
	return sessionForms(sessions), nil
}
