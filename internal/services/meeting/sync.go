package services

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/civil"

	"github.com/magabrotheeeer/session-scheduler/internal/conferencing"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/civiltime"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
)

// CalendarSynchronizer ищет в календаре платформы встречу, созданную в обход
// сервиса, чтобы не создавать на ту же дату второе событие.
type CalendarSynchronizer struct {
	adapters *conferencing.Registry
	clock    *civiltime.Clock
	marker   string
	log      *slog.Logger
}

// NewCalendarSynchronizer создает новый экземпляр CalendarSynchronizer.
func NewCalendarSynchronizer(adapters *conferencing.Registry, clock *civiltime.Clock, marker string, log *slog.Logger) *CalendarSynchronizer {
	return &CalendarSynchronizer{adapters: adapters, clock: clock, marker: marker, log: log}
}

// FindRemoteEventForDate возвращает первое событие дня d с меткой продукта
// и ссылкой на видеоконференцию, либо nil. Платформы без поиска событий
// всегда дают nil.
func (c *CalendarSynchronizer) FindRemoteEventForDate(ctx context.Context, platform models.Platform, d civil.Date) (*models.Meeting, error) {
	const op = "services.FindRemoteEventForDate"
	adapter, err := c.adapters.Get(platform)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	lister, ok := adapter.(conferencing.EventLister)
	if !ok {
		return nil, nil
	}

	from, to := c.clock.DayBounds(d)
	events, err := lister.ListEvents(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, ev := range events {
		if !c.matches(ev) {
			continue
		}
		c.log.Debug("remote event matched",
			slog.String("op", op),
			slog.String("date", d.String()),
			slog.String("remote_event_id", ev.ID))
		return &models.Meeting{
			MeetingDate:   d,
			Platform:      platform,
			MeetingLink:   ev.JoinURL,
			HostLink:      ev.HostURL,
			StartTime:     ev.Start,
			EndTime:       ev.End,
			RemoteEventID: ev.ID,
			Attendees:     ev.Attendees,
		}, nil
	}
	return nil, nil
}

func (c *CalendarSynchronizer) matches(ev conferencing.RemoteEvent) bool {
	if ev.JoinURL == "" {
		return false
	}
	return conferencing.ContainsMarker(ev.Summary, c.marker) || conferencing.ContainsMarker(ev.Description, c.marker)
}
