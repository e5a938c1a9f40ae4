package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"conference-central/database"
	apperrors "conference-central/errors"
	"conference-central/model"
	"conference-central/tasks"
)

const (
	nearlySoldOutSeats = 5

	announcementPrefix  = "Last chance to attend! The following conferences are nearly sold out:"
	featuredSpeakerText = "%s is speaking at the following sessions: %s"
	noFeaturedSpeaker   = "No featured speaker is available"

	confirmationSubject = "You created a new Conference!"
	confirmationBody    = "Hi, you have created a following conference:\r\n\r\n%s"
)

// TaskRouter is where task handlers are registered, usually a *tasks.Queue.
type TaskRouter interface {
	Handle(url string, handler tasks.HandlerFunc)
}

// RegisterTasks binds the background task handlers to their URLs.
func (s *Service) RegisterTasks(r TaskRouter) {
	r.Handle(TaskSetAnnouncement, func(ctx context.Context, params map[string]string) error {
		_, err := s.RecomputeAnnouncement(ctx)
		return err
	})

	r.Handle(TaskSetFeaturedSpeaker, func(ctx context.Context, params map[string]string) error {
		_, err := s.RecomputeFeaturedSpeaker(ctx, params["conferenceKey"], params["speaker"])
		if apperrors.Is(err, apperrors.KindBadRequest) {
			return tasks.Permanent(err)
		}
		return err
	})

	r.Handle(TaskSendConfirmationEmail, func(ctx context.Context, params map[string]string) error {
		email := params["email"]
		if email == "" {
			return tasks.Permanent(fmt.Errorf("confirmation email: no recipient"))
		}
		return s.mailer.Send(ctx, email, confirmationSubject, fmt.Sprintf(confirmationBody, params["conferenceInfo"]))
	})
}

// ScheduleAnnouncement queues an announcement recompute.
func (s *Service) ScheduleAnnouncement() {
	s.enqueue(TaskSetAnnouncement, nil)
}

// RecomputeAnnouncement caches the names of conferences that are nearly sold out, or clears the
// cached announcement when there are none.
func (s *Service) RecomputeAnnouncement(ctx context.Context) (string, error) {
	ctx, span := s.tracer.Start(ctx, "recompute announcement")
	defer span.End()

	confs, err := s.store.QueryConferences(ctx, database.Query{
		Filters: []database.Filter{
			{Field: "seatsAvailable", Op: database.OpLte, Value: nearlySoldOutSeats},
			{Field: "seatsAvailable", Op: database.OpGt, Value: 0},
		},
		OrderBy: []string{"seatsAvailable", "name"},
	})
	if err != nil {
		return "", err
	}

	if len(confs) == 0 {
		s.announcements.Delete(ctx, AnnouncementsKey)
		return "", nil
	}

	names := make([]string, 0, len(confs))
	for _, c := range confs {
		names = append(names, c.Name)
	}
	announcement := announcementPrefix + " " + strings.Join(names, ", ")
	s.announcements.Set(ctx, AnnouncementsKey, announcement)
	s.logger.Debug("announcement updated", zap.Int("conferences", len(confs)))
	return announcement, nil
}

// RecomputeFeaturedSpeaker caches the speaker as featured when they hold two or more sessions at
// the conference. It reports whether the cache was updated.
func (s *Service) RecomputeFeaturedSpeaker(ctx context.Context, conferenceKey, speaker string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "recompute featured speaker", trace.WithAttributes(attribute.String("speaker", speaker)))
	defer span.End()

	key, err := model.DecodeKindKey(conferenceKey, model.KindConference)
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindBadRequest, err, "featured speaker")
	}
	if strings.TrimSpace(speaker) == "" {
		return false, apperrors.BadRequest("featured speaker: no speaker given")
	}

	sessions, err := s.store.QuerySessions(ctx, database.Query{
		Ancestor: key.Encode(),
		Filters:  []database.Filter{{Field: "speakers.name", Op: database.OpEq, Value: speaker}},
		OrderBy:  []string{"name"},
	})
	if err != nil {
		return false, err
	}
	if len(sessions) < 2 {
		return false, nil
	}

	featured := model.FeaturedSpeaker{Speaker: speaker, Sessions: make([]string, 0, len(sessions))}
	for _, sess := range sessions {
		featured.Sessions = append(featured.Sessions, sess.Name)
	}
	s.featured.Set(ctx, FeaturedSpeakerKey, featured)
	s.logger.Debug("featured speaker updated", zap.String("speaker", speaker), zap.Int("sessions", len(sessions)))
	return true, nil
}

func (s *Service) GetAnnouncement(ctx context.Context) model.StringMessage {
	announcement, _ := s.announcements.Get(ctx, AnnouncementsKey)
	return model.StringMessage{Data: announcement}
}

func (s *Service) GetFeaturedSpeaker(ctx context.Context) model.StringMessage {
	featured, ok := s.featured.Get(ctx, FeaturedSpeakerKey)
	if !ok {
		return model.StringMessage{Data: noFeaturedSpeaker}
	}
	return model.StringMessage{Data: fmt.Sprintf(featuredSpeakerText, featured.Speaker, strings.Join(featured.Sessions, ", "))}
}
