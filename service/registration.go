package service

import (
	"context"

	"go.uber.org/zap"

	apperrors "conference-central/errors"
)

// RegisterForConference takes a seat at the conference for the caller. The seat count and the
// caller's registrations change together or not at all.
func (s *Service) RegisterForConference(ctx context.Context, caller *Caller, websafeKey string) (bool, error) {
	return s.conferenceRegistration(ctx, caller, websafeKey, true)
}

// UnregisterFromConference gives the caller's seat back. It reports false when the caller was
// not registered.
func (s *Service) UnregisterFromConference(ctx context.Context, caller *Caller, websafeKey string) (bool, error) {
	return s.conferenceRegistration(ctx, caller, websafeKey, false)
}

func (s *Service) conferenceRegistration(ctx context.Context, caller *Caller, websafeKey string, register bool) (bool, error) {
	if err := requireCaller(caller); err != nil {
		return false, err
	}

	var changed bool
	err := s.transact(ctx, "conference registration", func(ctx context.Context) error {
		changed = false

		prof, _, err := s.loadProfile(ctx, caller)
		if err != nil {
			return err
		}
		conf, err := s.conference(ctx, websafeKey)
		if err != nil {
			return err
		}

		if register {
			if prof.IsRegistered(conf.Key) {
				return apperrors.Conflict("You have already registered for this conference")
			}
			if conf.SeatsAvailable <= 0 {
				return apperrors.Conflict("There are no seats available.")
			}
			prof.Register(conf.Key)
			conf.SeatsAvailable--
		} else {
			if !prof.Unregister(conf.Key) {
				return nil
			}
			conf.SeatsAvailable++
		}

		if err := s.store.PutProfile(ctx, prof); err != nil {
			return err
		}
		if err := s.store.PutConference(ctx, conf); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if changed {
		s.logger.Info("registration changed",
			zap.String("user", caller.UserID),
			zap.String("conference", websafeKey),
			zap.Bool("registered", register))
		s.enqueue(TaskSetAnnouncement, nil)
	}
	return changed, nil
}
