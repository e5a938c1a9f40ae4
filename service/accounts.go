package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"conference-central/database"
	apperrors "conference-central/errors"
	"conference-central/model"
)

// Signup stores a new account with a bcrypt hash of its password.
func (s *Service) Signup(ctx context.Context, login, email, password string) (*model.UserData, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperrors.BadRequest("login and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindBadRequest, err, "unacceptable password")
	}
	user := &model.UserData{Login: login, Email: strings.TrimSpace(email), HashedPassword: string(hash)}

	err = s.transact(ctx, "signup", func(ctx context.Context) error {
		_, err := s.store.GetUserData(ctx, login)
		if err == nil {
			return apperrors.Conflict("login %q is already taken", login)
		}
		if !errors.Is(err, database.ErrNotFound) {
			return err
		}
		return s.store.PutUserData(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("account created", zap.String("login", login))
	return user, nil
}

// Authenticate checks the password against the stored hash.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*model.UserData, error) {
	user, err := s.store.GetUserData(ctx, strings.TrimSpace(login))
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperrors.Unauthorized("Invalid login or password")
	}
	if err != nil {
		return nil, err
	}
	if !isPasswordHashCorrect(user.HashedPassword, password) {
		return nil, apperrors.Unauthorized("Invalid login or password")
	}
	return user, nil
}

func isPasswordHashCorrect(dbHash, pass string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(dbHash), []byte(pass))
	return err == nil
}
