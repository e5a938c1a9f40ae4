package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"conference-central/cache"
	"conference-central/database"
	apperrors "conference-central/errors"
	"conference-central/mail"
	"conference-central/model"
	"conference-central/tasks"
)

const (
	TaskSendConfirmationEmail = "/tasks/send_confirmation_email"
	TaskSetAnnouncement       = "/tasks/set_announcement"
	TaskSetFeaturedSpeaker    = "/tasks/set_featured_speaker"

	AnnouncementsKey   = "RECENT_ANNOUNCEMENTS"
	FeaturedSpeakerKey = "FEATURED_SPEAKER"
)

// Caller is the authenticated user behind a request.
type Caller struct {
	UserID string
	Email  string
}

func (c *Caller) nickname() string {
	if name, _, ok := strings.Cut(c.Email, "@"); ok && name != "" {
		return name
	}
	return c.UserID
}

type Deps struct {
	Store           database.Store
	Announcements   cache.CacheManager[string]
	FeaturedSpeaker cache.CacheManager[model.FeaturedSpeaker]
	Queue           tasks.Enqueuer
	Mailer          mail.Mailer
	Logger          *zap.Logger
	// Tracer defaults to the global otel tracer provider.
	Tracer trace.Tracer
}

type Options struct {
	// TxAttempts bounds how many times a transaction is tried when it hits a write conflict.
	TxAttempts       uint
	TxInitialBackoff time.Duration
}

type Service struct {
	store         database.Store
	announcements cache.CacheManager[string]
	featured      cache.CacheManager[model.FeaturedSpeaker]
	queue         tasks.Enqueuer
	mailer        mail.Mailer
	logger        *zap.Logger
	tracer        trace.Tracer
	opts          Options
}

func New(deps Deps, opts Options) *Service {
	if opts.TxAttempts == 0 {
		opts.TxAttempts = 3
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer("conference-central/service")
	}
	return &Service{
		store:         deps.Store,
		announcements: deps.Announcements,
		featured:      deps.FeaturedSpeaker,
		queue:         deps.Queue,
		mailer:        deps.Mailer,
		logger:        deps.Logger.Named("service"),
		tracer:        tracer,
		opts:          opts,
	}
}

// transact runs fn as a store transaction, retrying on write conflicts. When every attempt
// conflicts the result is a transient error.
func (s *Service) transact(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	b := backoff.NewExponentialBackOff()
	if s.opts.TxInitialBackoff > 0 {
		b.InitialInterval = s.opts.TxInitialBackoff
	}

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := s.store.RunInTransaction(ctx, fn)
		if err != nil && !errors.Is(err, database.ErrConcurrentModification) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.opts.TxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Debug("transaction conflict, retrying", zap.String("op", op), zap.Duration("in", next))
		}),
	)
	span.SetAttributes(attribute.Int("tx.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperrors.KindOf(err).String())
	}
	if errors.Is(err, database.ErrConcurrentModification) {
		s.logger.Warn("transaction retries exhausted", zap.String("op", op), zap.Int("attempts", attempts), zap.Error(err))
		return apperrors.Wrap(apperrors.KindTransient, err, "%s: too much contention, try again", op)
	}
	return err
}

// enqueue hands a task to the queue. Failures are logged and otherwise ignored.
func (s *Service) enqueue(url string, params map[string]string) {
	if err := s.queue.Enqueue(url, params); err != nil {
		s.logger.Warn("task not enqueued", zap.String("url", url), zap.Error(err))
	}
}

func requireCaller(caller *Caller) error {
	if caller == nil || caller.UserID == "" {
		return apperrors.Unauthorized("Authorization required")
	}
	return nil
}

func (s *Service) conference(ctx context.Context, websafeKey string) (*model.Conference, error) {
	key, err := model.DecodeKindKey(websafeKey, model.KindConference)
	if err != nil {
		return nil, apperrors.NotFound("No conference found with key: %s", websafeKey)
	}
	conf, err := s.store.GetConference(ctx, key.Encode())
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperrors.NotFound("No conference found with key: %s", websafeKey)
	}
	return conf, err
}

func (s *Service) session(ctx context.Context, websafeKey string) (*model.Session, error) {
	key, err := model.DecodeKindKey(websafeKey, model.KindSession)
	if err != nil {
		return nil, apperrors.NotFound("No session for the given key was found: %s", websafeKey)
	}
	sess, err := s.store.GetSession(ctx, key.Encode())
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperrors.NotFound("No session for the given key was found: %s", websafeKey)
	}
	return sess, err
}

// loadProfile returns the caller's profile, or a new unsaved one when none exists yet.
func (s *Service) loadProfile(ctx context.Context, caller *Caller) (*model.Profile, bool, error) {
	prof, err := s.store.GetProfile(ctx, caller.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return &model.Profile{
			UserID:                 caller.UserID,
			DisplayName:            caller.nickname(),
			MainEmail:              caller.Email,
			TeeShirtSize:           model.TeeShirtNotSpecified,
			ConferenceKeysToAttend: []string{},
		}, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return prof, false, nil
}

func (s *Service) displayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, id := range userIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	profiles, err := s.store.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		names[p.UserID] = p.DisplayName
	}
	return names, nil
}

func (s *Service) conferenceForms(ctx context.Context, confs []model.Conference) (model.ConferenceForms, error) {
	organizers := make([]string, 0, len(confs))
	for _, c := range confs {
		organizers = append(organizers, c.OrganizerUserID)
	}
	names, err := s.displayNames(ctx, organizers)
	if err != nil {
		return model.ConferenceForms{}, err
	}

	forms := model.ConferenceForms{Items: make([]model.ConferenceForm, 0, len(confs))}
	for i := range confs {
		forms.Items = append(forms.Items, model.ConferenceToForm(&confs[i], names[confs[i].OrganizerUserID]))
	}
	return forms, nil
}

func sessionForms(sessions []model.Session) model.SessionForms {
	forms := model.SessionForms{Items: make([]model.SessionForm, 0, len(sessions))}
	for i := range sessions {
		forms.Items = append(forms.Items, model.SessionToForm(&sessions[i]))
	}
	return forms
}
