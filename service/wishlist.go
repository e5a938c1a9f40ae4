package service

import (
	"context"
	"errors"

	"conference-central/database"
	"conference-central/model"
)

// AddSessionToWishlist records the session in the caller's wishlist. Adding a session twice
// leaves the wishlist unchanged.
func (s *Service) AddSessionToWishlist(ctx context.Context, caller *Caller, sessionKey string) (model.WishlistForm, error) {
	if err := requireCaller(caller); err != nil {
		return model.WishlistForm{}, err
	}
	sess, err := s.session(ctx, sessionKey)
	if err != nil {
		return model.WishlistForm{}, err
	}

	err = s.transact(ctx, "add session to wishlist", func(ctx context.Context) error {
		wl, err := s.store.GetWishlist(ctx, caller.UserID)
		if errors.Is(err, database.ErrNotFound) {
			wl = &model.Wishlist{UserID: caller.UserID}
		} else if err != nil {
			return err
		}
		if !wl.Add(sess.Key) {
			return nil
		}
		return s.store.PutWishlist(ctx, wl)
	})
	if err != nil {
		return model.WishlistForm{}, err
	}
	return model.WishlistForm{SessionKey: sess.Key}, nil
}

func (s *Service) GetSessionsInWishlist(ctx context.Context, caller *Caller) (model.SessionForms, error) {
	if err := requireCaller(caller); err != nil {
		return model.SessionForms{}, err
	}
	wl, err := s.store.GetWishlist(ctx, caller.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return model.SessionForms{Items: []model.SessionForm{}}, nil
	}
	if err != nil {
		return model.SessionForms{}, err
	}

	sessions, err := s.store.GetSessions(ctx, wl.SessionKeys)
	if err != nil {
		return model.SessionForms{}, err
	}
	return sessionForms(sessions), nil
}
