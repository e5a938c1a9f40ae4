package service

import (
	"context"

	apperrors "conference-central/errors"
	"conference-central/model"
)

// GetProfile returns the caller's profile, creating it on first use.
func (s *Service) GetProfile(ctx context.Context, caller *Caller) (model.ProfileForm, error) {
	if err := requireCaller(caller); err != nil {
		return model.ProfileForm{}, err
	}
	var prof *model.Profile
	err := s.transact(ctx, "get profile", func(ctx context.Context) error {
		p, created, err := s.loadProfile(ctx, caller)
		if err != nil {
			return err
		}
		if created {
			if err := s.store.PutProfile(ctx, p); err != nil {
				return err
			}
		}
		prof = p
		return nil
	})
	if err != nil {
		return model.ProfileForm{}, err
	}
	return model.ProfileToForm(prof), nil
}

// SaveProfile updates the caller's display name and tee shirt size. Empty fields are left as they are.
func (s *Service) SaveProfile(ctx context.Context, caller *Caller, form model.ProfileMiniForm) (model.ProfileForm, error) {
	if err := requireCaller(caller); err != nil {
		return model.ProfileForm{}, err
	}
	var prof *model.Profile
	err := s.transact(ctx, "save profile", func(ctx context.Context) error {
		p, _, err := s.loadProfile(ctx, caller)
		if err != nil {
			return err
		}
		if _, err := model.ApplyFields(model.ProfileFormFields, &form, p); err != nil {
			return apperrors.Wrap(apperrors.KindBadRequest, err, "invalid profile")
		}
		if err := s.store.PutProfile(ctx, p); err != nil {
			return err
		}
		prof = p
		return nil
	})
	if err != nil {
		return model.ProfileForm{}, err
	}
	return model.ProfileToForm(prof), nil
}
