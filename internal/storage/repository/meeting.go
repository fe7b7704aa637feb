package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/magabrotheeeer/session-scheduler/internal/models"
)

const meetingColumns = `id, meeting_date, platform, meeting_link, host_link, start_time,
			      end_time, remote_event_id, created_by, is_default`

// GetMeetingByDate возвращает встречу на дату вместе с участниками.
func (s *Storage) GetMeetingByDate(ctx context.Context, d civil.Date) (*models.Meeting, error) {
	const op = "storage.GetMeetingByDate"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + meetingColumns + `
			  FROM meetings
			  WHERE meeting_date = $1::date`
	var (
		m        models.Meeting
		date     time.Time
		platform string
	)
	err := s.DB.QueryRowContext(ctx, query, dateArg(d)).Scan(&m.ID, &date, &platform,
		&m.MeetingLink, &m.HostLink, &m.StartTime, &m.EndTime, &m.RemoteEventID,
		&m.CreatedBy, &m.IsDefault)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	m.MeetingDate = dateFromDB(date)
	m.Platform = models.Platform(platform)

	attendees, err := s.ListAttendees(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.Attendees = attendees
	return &m, nil
}

// CreateMeeting сохраняет встречу и возвращает её id. Если на дату уже есть
// встреча, возвращается ErrDuplicate.
func (s *Storage) CreateMeeting(ctx context.Context, m *models.Meeting) (int64, error) {
	const op = "storage.CreateMeeting"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO meetings (meeting_date, platform, meeting_link, host_link, start_time,
			      end_time, remote_event_id, created_by, is_default)
			  VALUES ($1::date, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING id`
	var id int64
	err := s.DB.QueryRowContext(ctx, query,
		dateArg(m.MeetingDate), string(m.Platform), m.MeetingLink, m.HostLink,
		m.StartTime.UTC(), m.EndTime.UTC(), m.RemoteEventID, m.CreatedBy, m.IsDefault).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return id, nil
}

// UpdateMeetingLink сохраняет ссылки, полученные от платформы после создания.
func (s *Storage) UpdateMeetingLink(ctx context.Context, id int64, link, hostLink string) error {
	const op = "storage.UpdateMeetingLink"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE meetings
			  SET meeting_link = $1, host_link = COALESCE(NULLIF($2, ''), host_link)
			  WHERE id = $3`
	res, err := s.DB.ExecContext(ctx, query, link, hostLink, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// ListAttendees возвращает участников встречи в порядке добавления: связанных
// пользователей и гостей без локальной учётной записи (у гостя пустой UserID).
func (s *Storage) ListAttendees(ctx context.Context, meetingID int64) ([]models.Attendee, error) {
	const op = "storage.ListAttendees"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT a.user_id, a.email, a.name
			  FROM (
			      SELECT u.uid::text AS user_id, COALESCE(u.email, '') AS email, u.name AS name, ma.added_at
			      FROM meeting_attendees ma
			      JOIN users u ON u.uid = ma.user_uid
			      WHERE ma.meeting_id = $1
			      UNION ALL
			      SELECT '', g.email, g.name, g.added_at
			      FROM meeting_guests g
			      WHERE g.meeting_id = $1
			        AND NOT EXISTS (
			            SELECT 1 FROM meeting_attendees la
			            JOIN users lu ON lu.uid = la.user_uid
			            WHERE la.meeting_id = g.meeting_id AND lower(lu.email) = lower(g.email))
			  ) a
			  ORDER BY a.added_at, a.user_id, a.email`
	rows, err := s.DB.QueryContext(ctx, query, meetingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.Attendee
	for rows.Next() {
		var a models.Attendee
		if err = rows.Scan(&a.UserID, &a.Email, &a.Name); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// AddAttendees добавляет участников одной транзакцией. Уже добавленные
// пропускаются. Возвращает число новых записей.
func (s *Storage) AddAttendees(ctx context.Context, meetingID int64, userIDs []string) (int, error) {
	const op = "storage.AddAttendees"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if len(userIDs) == 0 {
		return 0, nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO meeting_attendees (meeting_id, user_uid)
			  VALUES ($1, $2)
			  ON CONFLICT DO NOTHING`
	added := 0
	for _, id := range userIDs {
		res, err := tx.ExecContext(ctx, query, meetingID, id)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		added += int(n)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return added, nil
}

// AddGuests сохраняет участников удалённого события, у которых нет локальной
// учётной записи. Повтор email (без учёта регистра) пропускается.
func (s *Storage) AddGuests(ctx context.Context, meetingID int64, guests []models.Attendee) (int, error) {
	const op = "storage.AddGuests"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if len(guests) == 0 {
		return 0, nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO meeting_guests (meeting_id, email, name)
			  VALUES ($1, $2, $3)
			  ON CONFLICT DO NOTHING`
	added := 0
	for _, g := range guests {
		res, err := tx.ExecContext(ctx, query, meetingID, g.Email, g.Name)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		added += int(n)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return added, nil
}
