package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"conference-central/database"
	apperrors "conference-central/errors"
	"conference-central/model"
)

// CreateConference stores a new conference owned by the caller. Fields the form leaves out take
// their defaults and every seat starts out available.
func (s *Service) CreateConference(ctx context.Context, caller *Caller, form model.ConferenceForm) (model.ConferenceForm, error) {
	if err := requireCaller(caller); err != nil {
		return model.ConferenceForm{}, err
	}
	if strings.TrimSpace(form.Name) == "" {
		return model.ConferenceForm{}, apperrors.BadRequest("Conference 'name' field required")
	}

	conf := &model.Conference{
		OrganizerUserID: caller.UserID,
		City:            model.DefaultCity,
		MaxAttendees:    model.DefaultMaxAttendees,
		SeatsAvailable:  model.DefaultSeatsAvailable,
		Topics:          append([]string(nil), model.DefaultTopics...),
	}
	if _, err := model.ApplyFields(model.ConferenceFormFields, &form, conf); err != nil {
		return model.ConferenceForm{}, apperrors.Wrap(apperrors.KindBadRequest, err, "invalid conference")
	}
	if conf.MaxAttendees > 0 {
		conf.SeatsAvailable = conf.MaxAttendees
	}

	key, err := s.store.AllocateID(ctx, model.KindConference, model.ProfileKey(caller.UserID))
	if err != nil {
		return model.ConferenceForm{}, err
	}
	conf.Key = key.Encode()
	conf.Ancestors = key.Ancestors()
	if err := s.store.PutConference(ctx, conf); err != nil {
		return model.ConferenceForm{}, err
	}
	s.logger.Info("conference created", zap.String("key", conf.Key), zap.String("organizer", caller.UserID))

	if caller.Email != "" {
		s.enqueue(TaskSendConfirmationEmail, map[string]string{
			"email":          caller.Email,
			"conferenceInfo": conferenceInfo(conf),
		})
	}
	s.enqueue(TaskSetAnnouncement, nil)

	names, err := s.displayNames(ctx, []string{caller.UserID})
	if err != nil {
		return model.ConferenceForm{}, err
	}
	return model.ConferenceToForm(conf, names[caller.UserID]), nil
}

func conferenceInfo(c *model.Conference) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\r\n", c.Name)
	if c.Description != "" {
		fmt.Fprintf(&b, "Description: %s\r\n", c.Description)
	}
	fmt.Fprintf(&b, "City: %s\r\n", c.City)
	fmt.Fprintf(&b, "Topics: %s\r\n", strings.Join(c.Topics, ", "))
	if c.StartDate != nil {
		fmt.Fprintf(&b, "Start date: %s\r\n", model.FormatDate(c.StartDate))
	}
	if c.EndDate != nil {
		fmt.Fprintf(&b, "End date: %s\r\n", model.FormatDate(c.EndDate))
	}
	fmt.Fprintf(&b, "Max attendees: %d\r\n", c.MaxAttendees)
	return b.String()
}

// UpdateConference applies the fields present in form. Only the organizer may update, and a new
// capacity keeps the number of seats already taken.
func (s *Service) UpdateConference(ctx context.Context, caller *Caller, websafeKey string, form model.ConferenceForm) (model.ConferenceForm, error) {
	if err := requireCaller(caller); err != nil {
		return model.ConferenceForm{}, err
	}

	var updated *model.Conference
	err := s.transact(ctx, "update conference", func(ctx context.Context) error {
		conf, err := s.conference(ctx, websafeKey)
		if err != nil {
			return err
		}
		if conf.OrganizerUserID != caller.UserID {
			return apperrors.Forbidden("Only the owner can update the conference.")
		}

		taken := conf.SeatsTaken()
		if _, err := model.ApplyFields(model.ConferenceFormFields, &form, conf); err != nil {
			return apperrors.Wrap(apperrors.KindBadRequest, err, "invalid conference")
		}
		if conf.MaxAttendees < taken {
			return apperrors.BadRequest("Cannot set max attendees to %d, %d seats are already taken", conf.MaxAttendees, taken)
		}
		conf.SeatsAvailable = conf.MaxAttendees - taken

		if err := s.store.PutConference(ctx, conf); err != nil {
			return err
		}
		updated = conf
		return nil
	})
	if err != nil {
		return model.ConferenceForm{}, err
	}
	s.enqueue(TaskSetAnnouncement, nil)

	names, err := s.displayNames(ctx, []string{updated.OrganizerUserID})
	if err != nil {
		return model.ConferenceForm{}, err
	}
	return model.ConferenceToForm(updated, names[updated.OrganizerUserID]), nil
}

func (s *Service) GetConference(ctx context.Context, websafeKey string) (model.ConferenceForm, error) {
	conf, err := s.conference(ctx, websafeKey)
	if err != nil {
		return model.ConferenceForm{}, err
	}
	names, err := s.displayNames(ctx, []string{conf.OrganizerUserID})
	if err != nil {
		return model.ConferenceForm{}, err
	}
	return model.ConferenceToForm(conf, names[conf.OrganizerUserID]), nil
}

// GetConferencesCreated lists the caller's own conferences by name.
func (s *Service) GetConferencesCreated(ctx context.Context, caller *Caller) (model.ConferenceForms, error) {
	if err := requireCaller(caller); err != nil {
		return model.ConferenceForms{}, err
	}
	confs, err := s.store.QueryConferences(ctx, database.Query{
		Ancestor: model.ProfileKey(caller.UserID).Encode(),
		OrderBy:  []string{"name"},
	})
	if err != nil {
		return model.ConferenceForms{}, err
	}
	return s.conferenceForms(ctx, confs)
}

func (s *Service) QueryConferences(ctx context.Context, filters []model.ConferenceQueryForm) (model.ConferenceForms, error) {
	q, err := translateFilters(filters)
	if err != nil {
		return model.ConferenceForms{}, err
	}
	confs, err := s.store.QueryConferences(ctx, q)
	if err != nil {
		return model.ConferenceForms{}, err
	}
	return s.conferenceForms(ctx, confs)
}

// GetConferencesToAttend lists the conferences the caller is registered for.
func (s *Service) GetConferencesToAttend(ctx context.Context, caller *Caller) (model.ConferenceForms, error) {
	if err := requireCaller(caller); err != nil {
		return model.ConferenceForms{}, err
	}
	prof, err := s.store.GetProfile(ctx, caller.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return model.ConferenceForms{Items: []model.ConferenceForm{}}, nil
	}
	if err != nil {
		return model.ConferenceForms{}, err
	}
	confs, err := s.store.GetConferences(ctx, prof.ConferenceKeysToAttend)
	if err != nil {
		return model.ConferenceForms{}, err
	}
	return s.conferenceForms(ctx, confs)
}
