// Package services управляет встречей дня: находит её локально или в удалённом
// календаре, при необходимости создаёт на платформе и дописывает новых участников.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"

	"github.com/magabrotheeeer/session-scheduler/internal/conferencing"
	"github.com/magabrotheeeer/session-scheduler/internal/config"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/apperr"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/civiltime"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/retry"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/sl"
	"github.com/magabrotheeeer/session-scheduler/internal/metrics"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
	"github.com/magabrotheeeer/session-scheduler/internal/storage/repository"
)

// Итоговые состояния встречи для метрик и логов.
const (
	StateLocalFound  = "local_found"
	StateRemoteFound = "remote_found"
	StateCreated     = "created"
)

// createdBySync записывается в created_by для встреч, найденных в календаре.
const createdBySync = "calendar_sync"

// MeetingRepository определяет методы хранилища, нужные оркестратору.
type MeetingRepository interface {
	GetMeetingByDate(ctx context.Context, d civil.Date) (*models.Meeting, error)
	CreateMeeting(ctx context.Context, m *models.Meeting) (int64, error)
	UpdateMeetingLink(ctx context.Context, id int64, link, hostLink string) error
	AddAttendees(ctx context.Context, meetingID int64, userIDs []string) (int, error)
	AddGuests(ctx context.Context, meetingID int64, guests []models.Attendee) (int, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	GetUsersByEmails(ctx context.Context, emails []string) ([]models.User, error)
}

// Defaults — значения, подставляемые в запрос, если вызывающий их не задал.
type Defaults struct {
	Platform         models.Platform
	Title            string
	Description      string
	Marker           string
	StartTime        civil.Time
	Duration         time.Duration
	SyncFromCalendar bool
}

// DefaultsFromConfig разбирает секцию meetings конфига.
func DefaultsFromConfig(cfg config.Meetings) (Defaults, error) {
	const op = "services.DefaultsFromConfig"
	platform, err := models.ParsePlatform(cfg.DefaultPlatform)
	if err != nil {
		return Defaults{}, fmt.Errorf("%s: %w", op, err)
	}
	start, err := civiltime.ParseTime(cfg.StartTime)
	if err != nil {
		return Defaults{}, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.Duration <= 0 {
		return Defaults{}, fmt.Errorf("%s: duration must be positive", op)
	}
	return Defaults{
		Platform:         platform,
		Title:            cfg.DefaultTitle,
		Description:      cfg.DefaultDescription,
		Marker:           cfg.Marker,
		StartTime:        start,
		Duration:         cfg.Duration,
		SyncFromCalendar: cfg.SyncFromCalendar,
	}, nil
}

// ManageRequest — параметры ManageMeeting. Пустые поля заполняются из Defaults.
type ManageRequest struct {
	Date             civil.Date
	Platform         models.Platform
	StartTime        *civil.Time
	Duration         time.Duration
	Title            string
	Description      string
	UserIDs          []string
	Operation        models.Operation
	SyncFromCalendar *bool
	CreatedBy        string
	IsDefault        bool
}

// Option настраивает MeetingService.
type Option func(*MeetingService)

// WithRetryPolicy заменяет политику повторов вызовов платформы.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *MeetingService) {
		s.retry = p
	}
}

// MeetingService — оркестратор встречи дня.
type MeetingService struct {
	repo     MeetingRepository
	adapters *conferencing.Registry
	clock    *civiltime.Clock
	defaults Defaults
	retry    retry.Policy
	sync     *CalendarSynchronizer
	enroller *Enroller
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewMeetingService создает новый экземпляр MeetingService.
func NewMeetingService(repo MeetingRepository, adapters *conferencing.Registry, clock *civiltime.Clock,
	defaults Defaults, m *metrics.Metrics, log *slog.Logger, opts ...Option) *MeetingService {
	s := &MeetingService{
		repo:     repo,
		adapters: adapters,
		clock:    clock,
		defaults: defaults,
		retry:    retry.DefaultPolicy,
		metrics:  m,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sync = NewCalendarSynchronizer(adapters, clock, defaults.Marker, log)
	s.enroller = NewEnroller(repo, adapters, m, log)
	return s
}

// ManageMeeting возвращает единственную встречу на дату: найденную локально,
// импортированную из календаря платформы или созданную заново, и дописывает
// в неё участников, которых там ещё нет.
func (s *MeetingService) ManageMeeting(ctx context.Context, req ManageRequest) (*models.Meeting, error) {
	const op = "services.ManageMeeting"
	req, err := s.normalize(req)
	if err != nil {
		return nil, apperr.Validation(op, err.Error())
	}
	log := s.log.With(
		slog.String("op", op),
		slog.String("date", req.Date.String()),
		slog.String("operation", string(req.Operation)))

	meeting, err := s.localMeeting(ctx, req.Date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	state := StateLocalFound

	if meeting != nil {
		if req.Operation == models.OpCreate {
			return nil, apperr.Conflict(op, "meeting already exists for "+req.Date.String(), meeting)
		}
		s.reconcileLink(ctx, meeting)
	}

	if meeting == nil && *req.SyncFromCalendar && req.Operation != models.OpCreate {
		meeting, err = s.importFromCalendar(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		state = StateRemoteFound
	}

	if meeting == nil {
		if req.Operation == models.OpGet {
			return nil, apperr.NotFound(op, "no meeting scheduled for "+req.Date.String())
		}
		meeting, err = s.create(ctx, req)
		if err != nil {
			return nil, err
		}
		state = StateCreated
	}

	meeting, err = s.enroller.Enroll(ctx, meeting, req.UserIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.MeetingManaged(state)
	log.Info("meeting resolved",
		slog.String("state", state),
		slog.Int64("meeting_id", meeting.ID),
		slog.Int("attendees", len(meeting.Attendees)))
	return meeting, nil
}

func (s *MeetingService) normalize(req ManageRequest) (ManageRequest, error) {
	if !req.Date.IsValid() {
		return req, errors.New("meeting date is not a valid calendar date")
	}
	op, err := models.ParseOperation(string(req.Operation))
	if err != nil {
		return req, err
	}
	req.Operation = op

	if req.Platform == "" {
		req.Platform = s.defaults.Platform
	}
	if _, err = models.ParsePlatform(string(req.Platform)); err != nil {
		return req, err
	}
	if req.StartTime == nil {
		t := s.defaults.StartTime
		req.StartTime = &t
	}
	if !req.StartTime.IsValid() {
		return req, errors.New("start time is not valid")
	}
	if req.Duration == 0 {
		req.Duration = s.defaults.Duration
	}
	if req.Duration <= 0 || req.Duration > 24*time.Hour {
		return req, errors.New("duration must be between 0 and 24h")
	}
	if req.Title == "" {
		req.Title = s.defaults.Title
	}
	if req.Description == "" {
		req.Description = s.defaults.Description
	}
	if req.SyncFromCalendar == nil {
		v := s.defaults.SyncFromCalendar
		req.SyncFromCalendar = &v
	}
	return req, nil
}

func (s *MeetingService) localMeeting(ctx context.Context, d civil.Date) (*models.Meeting, error) {
	m, err := s.repo.GetMeetingByDate(ctx, d)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return m, err
}

// importFromCalendar ищет событие на платформе и сохраняет его локально.
// Ошибка поиска не мешает созданию новой встречи.
func (s *MeetingService) importFromCalendar(ctx context.Context, req ManageRequest) (*models.Meeting, error) {
	found, err := s.sync.FindRemoteEventForDate(ctx, req.Platform, req.Date)
	if err != nil {
		if apperr.Is(err, apperr.KindRemoteAuth) {
			return nil, err
		}
		s.log.Warn("calendar sync failed, falling back to create",
			slog.String("date", req.Date.String()), sl.Err(err))
		return nil, nil
	}
	if found == nil {
		return nil, nil
	}

	remoteAttendees := found.Attendees
	found.Attendees = nil
	found.CreatedBy = createdBySync
	found.IsDefault = req.IsDefault
	meeting, err := s.persist(ctx, found)
	if err != nil {
		return nil, err
	}
	if err = s.linkRemoteAttendees(ctx, meeting, remoteAttendees); err != nil {
		return nil, err
	}
	s.log.Info("meeting imported from calendar",
		slog.Int64("meeting_id", meeting.ID),
		slog.String("remote_event_id", meeting.RemoteEventID))
	return meeting, nil
}

// linkRemoteAttendees связывает участников удалённого события с локальными
// пользователями по email, чтобы не добавлять их повторно. Адреса без
// локального пользователя сохраняются как гости: список участников на
// платформе перезаписывается целиком, и без них гости пропали бы при
// следующей записи.
func (s *MeetingService) linkRemoteAttendees(ctx context.Context, m *models.Meeting, remote []models.Attendee) error {
	if len(remote) == 0 {
		return nil
	}
	emails := make([]string, 0, len(remote))
	for _, a := range remote {
		if a.Email != "" {
			emails = append(emails, a.Email)
		}
	}
	users, err := s.repo.GetUsersByEmails(ctx, emails)
	if err != nil {
		return err
	}
	var ids []string
	for _, u := range users {
		if m.HasAttendee(u.UUID, u.Email) {
			continue
		}
		ids = append(ids, u.UUID)
		m.Attendees = append(m.Attendees, models.Attendee{UserID: u.UUID, Email: u.Email, Name: u.Name})
	}
	if _, err = s.repo.AddAttendees(ctx, m.ID, ids); err != nil {
		return err
	}

	var guests []models.Attendee
	for _, a := range remote {
		if a.Email == "" || m.HasAttendee("", a.Email) {
			continue
		}
		guest := models.Attendee{Email: a.Email, Name: a.Name}
		guests = append(guests, guest)
		m.Attendees = append(m.Attendees, guest)
	}
	_, err = s.repo.AddGuests(ctx, m.ID, guests)
	return err
}

func (s *MeetingService) create(ctx context.Context, req ManageRequest) (*models.Meeting, error) {
	const op = "services.createMeeting"
	adapter, err := s.adapters.Get(req.Platform)
	if err != nil {
		return nil, apperr.Validation(op, err.Error())
	}

	start := s.clock.Instant(req.Date, *req.StartTime)
	end := start.Add(req.Duration)
	event := conferencing.EventRequest{
		Start:       start,
		End:         end,
		Title:       req.Title,
		Description: conferencing.EnsureMarker(req.Description, s.defaults.Marker),
		TimeZone:    s.clock.Location().String(),
	}
	created, err := retry.Do(ctx, s.log, s.retry, "create_event",
		func(ctx context.Context) (*conferencing.CreatedEvent, error) {
			return adapter.CreateEvent(ctx, event)
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	link := created.JoinURL
	if link == "" {
		link = models.LinkPending
	}
	meeting, err := s.persist(ctx, &models.Meeting{
		MeetingDate:   req.Date,
		Platform:      req.Platform,
		MeetingLink:   link,
		HostLink:      created.HostURL,
		StartTime:     start,
		EndTime:       end,
		RemoteEventID: created.RemoteID,
		CreatedBy:     req.CreatedBy,
		IsDefault:     req.IsDefault,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if meeting.RemoteEventID != created.RemoteID {
		s.log.Warn("concurrent request created the meeting first, remote event left orphaned",
			slog.String("date", req.Date.String()),
			slog.String("orphan_remote_event_id", created.RemoteID))
		if req.Operation == models.OpCreate {
			return nil, apperr.Conflict(op, "meeting already exists for "+req.Date.String(), meeting)
		}
	}
	return meeting, nil
}

// persist сохраняет встречу. Если параллельный запрос уже сохранил встречу
// на эту дату, возвращается его запись.
func (s *MeetingService) persist(ctx context.Context, m *models.Meeting) (*models.Meeting, error) {
	id, err := s.repo.CreateMeeting(ctx, m)
	if errors.Is(err, repository.ErrDuplicate) {
		s.log.Info("meeting inserted concurrently, using existing row",
			slog.String("date", m.MeetingDate.String()))
		existing, err := s.repo.GetMeetingByDate(ctx, m.MeetingDate)
		if err != nil {
			return nil, err
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}
	m.ID = id
	return m, nil
}

// reconcileLink дозапрашивает ссылку, если при создании платформа её не вернула.
func (s *MeetingService) reconcileLink(ctx context.Context, m *models.Meeting) {
	if !m.LinkIsPending() || m.RemoteEventID == "" {
		return
	}
	log := s.log.With(slog.Int64("meeting_id", m.ID), slog.String("remote_event_id", m.RemoteEventID))
	adapter, err := s.adapters.Get(m.Platform)
	if err != nil {
		log.Warn("cannot reconcile pending link", sl.Err(err))
		return
	}
	event, err := retry.Do(ctx, s.log, s.retry, "get_event",
		func(ctx context.Context) (*conferencing.RemoteEvent, error) {
			return adapter.GetEvent(ctx, m.RemoteEventID)
		})
	if err != nil {
		log.Warn("failed to fetch pending meeting link", sl.Err(err))
		return
	}
	if event.JoinURL == "" {
		log.Info("meeting link still pending")
		return
	}
	if err = s.repo.UpdateMeetingLink(ctx, m.ID, event.JoinURL, event.HostURL); err != nil {
		log.Error("failed to store reconciled link", sl.Err(err))
		return
	}
	m.MeetingLink = event.JoinURL
	if event.HostURL != "" {
		m.HostLink = event.HostURL
	}
	log.Info("pending meeting link reconciled")
}
