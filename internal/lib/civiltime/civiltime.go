// Package civiltime переводит гражданские (настенные) даты и время фиксированной
// временной зоны в абсолютные моменты времени и обратно. Все сравнения дат подписок
// и встреч в сервисе проходят через этот пакет.
package civiltime

import (
	"fmt"
	"strings"
	"time"
	// Встроенная база временных зон, чтобы не зависеть от tzdata в контейнере.
	_ "time/tzdata"

	"cloud.google.com/go/civil"
)

// DateLayout — формат гражданской даты во внешних интерфейсах.
const DateLayout = "2006-01-02"

// Clock привязывает гражданские даты к одной временной зоне.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// Option настраивает Clock.
type Option func(*Clock)

// WithNow подменяет источник текущего времени (используется в тестах).
func WithNow(now func() time.Time) Option {
	return func(c *Clock) {
		c.now = now
	}
}

// New создаёт Clock для временной зоны с именем tz из базы IANA.
func New(tz string, opts ...Option) (*Clock, error) {
	const op = "civiltime.New"
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return NewInLocation(loc, opts...), nil
}

// NewInLocation создаёт Clock для уже загруженной временной зоны.
func NewInLocation(loc *time.Location, opts ...Option) *Clock {
	c := &Clock{loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Location возвращает временную зону часов.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now возвращает текущий момент в зоне часов.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today возвращает текущую гражданскую дату.
func (c *Clock) Today() civil.Date {
	return civil.DateOf(c.Now())
}

// DateOf возвращает гражданскую дату момента t в зоне часов.
func (c *Clock) DateOf(t time.Time) civil.Date {
	return civil.DateOf(t.In(c.loc))
}

// Instant собирает абсолютный момент из гражданской даты и времени.
func (c *Clock) Instant(d civil.Date, t civil.Time) time.Time {
	return civil.DateTime{Date: d, Time: t}.In(c.loc)
}

// DayBounds возвращает полуинтервал [00:00, 24:00) гражданской даты.
func (c *Clock) DayBounds(d civil.Date) (time.Time, time.Time) {
	return d.In(c.loc), d.AddDays(1).In(c.loc)
}

// IsPast сообщает, что дата строго раньше сегодняшней.
func (c *Clock) IsPast(d civil.Date) bool {
	return d.Before(c.Today())
}

// ParseDate разбирает дату в формате 2006-01-02.
func ParseDate(s string) (civil.Date, error) {
	const op = "civiltime.ParseDate"
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return civil.Date{}, fmt.Errorf("%s: %w", op, err)
	}
	return d, nil
}

// ParseTime разбирает время в формате 15:04 или 15:04:05.
func ParseTime(s string) (civil.Time, error) {
	const op = "civiltime.ParseTime"
	s = strings.TrimSpace(s)
	if strings.Count(s, ":") == 1 {
		s += ":00"
	}
	t, err := civil.ParseTime(s)
	if err != nil {
		return civil.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// FromDB переводит значение колонки DATE в гражданскую дату без сдвига зоны.
func FromDB(t time.Time) civil.Date {
	return civil.Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// LastDay возвращает последний включённый день полуинтервала [start, end).
func LastDay(end civil.Date) civil.Date {
	return end.AddDays(-1)
}
